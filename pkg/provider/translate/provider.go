// Package translate defines the Translator interface for text translation
// backends.
//
// A Translator wraps an LLM or dedicated machine-translation service behind
// the one call the pipeline needs: instruction + source text in, translated
// text out. The instruction carries the per-language translation profile
// (e.g., "Translate the user's speech from English to Tamil. Respond only
// with the translation.").
//
// Implementations must be safe for concurrent use: the pipeline invokes one
// Translate call per configured language in parallel for every utterance.
package translate

import "context"

// Translator is the abstraction over any translation backend.
type Translator interface {
	// Translate renders text according to instruction and returns the
	// translated text.
	//
	// An empty result with a nil error is a valid outcome: the backend
	// produced nothing usable and the caller should drop the utterance for
	// that language. A non-nil error indicates the call itself failed
	// (network, auth, rate limit); callers treat both the same way — the
	// (utterance, language) pair is dropped and logged, never retried.
	Translate(ctx context.Context, instruction, text string) (string, error)
}
