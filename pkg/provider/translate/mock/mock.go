// Package mock provides a test double for the translate.Translator interface.
//
// Configure Results keyed by instruction to give each language branch its own
// translation, or Err / Errs to make specific branches fail while others
// succeed.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/polyglossa/pkg/provider/translate"
)

// TranslateCall records a single invocation of Translator.Translate.
type TranslateCall struct {
	// Instruction is the system instruction passed to Translate.
	Instruction string
	// Text is the source text passed to Translate.
	Text string
}

// Translator is a mock implementation of translate.Translator.
type Translator struct {
	mu sync.Mutex

	// Result is the default translation returned by every call when Results
	// has no entry for the instruction.
	Result string

	// Results maps an instruction to its translation, letting each language
	// branch receive distinct output.
	Results map[string]string

	// Err, if non-nil, is returned by every call unless Errs overrides it.
	Err error

	// Errs maps an instruction to an error, letting a single branch fail
	// while the others succeed.
	Errs map[string]error

	// Delay, if set, is waited before returning (or until ctx is done).
	Delay func(ctx context.Context) error

	// TranslateCalls records every call to Translate.
	TranslateCalls []TranslateCall
}

// Translate records the call and returns the configured result or error for
// the given instruction.
func (t *Translator) Translate(ctx context.Context, instruction, text string) (string, error) {
	t.mu.Lock()
	t.TranslateCalls = append(t.TranslateCalls, TranslateCall{Instruction: instruction, Text: text})
	delay := t.Delay
	err, errOK := t.Errs[instruction]
	if !errOK {
		err = t.Err
	}
	result, resOK := t.Results[instruction]
	if !resOK {
		result = t.Result
	}
	t.mu.Unlock()

	if delay != nil {
		if derr := delay(ctx); derr != nil {
			return "", derr
		}
	}
	if err != nil {
		return "", err
	}
	return result, nil
}

// TranslateCallCount returns the number of Translate calls. Thread-safe.
func (t *Translator) TranslateCallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.TranslateCalls)
}

// Ensure Translator implements translate.Translator at compile time.
var _ translate.Translator = (*Translator)(nil)
