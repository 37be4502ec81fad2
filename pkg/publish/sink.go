// Package publish defines the Sink interface for delivering translated audio
// and subtitles to listeners.
//
// Each configured language gets its own Sink: synthesised audio frames go out
// as an audio track, translated text goes out as subtitle messages on the
// language's subtitle topic. A Sink is owned by the publishing side of a
// pipeline branch and must tolerate concurrent publishes from multiple
// speaker pipelines sharing the same language.
package publish

import (
	"context"
	"time"

	"github.com/MrWong99/polyglossa/pkg/audio"
)

// TopicPrefix is prepended to a language code to form its subtitle topic.
const TopicPrefix = "subtitles-"

// SubtitleTopic returns the subtitle topic for a language code, e.g.
// "subtitles-ta" for "ta".
func SubtitleTopic(lang string) string {
	return TopicPrefix + lang
}

// Subtitle is a single translated caption published alongside the audio.
type Subtitle struct {
	// Topic is the destination topic, conventionally SubtitleTopic(lang).
	Topic string
	// Language is the target language code (e.g., "ta").
	Language string
	// Text is the translated caption text.
	Text string
	// Speaker identifies the originating speaker.
	Speaker string
	// Timestamp is when the caption was produced.
	Timestamp time.Time
}

// Sink delivers audio frames and subtitles for one language.
//
// Implementations must be safe for concurrent use. After Close, publish
// calls must return an error rather than panic; callers treat publish
// errors on a closed sink as a signal to stop the branch.
type Sink interface {
	// PublishFrame delivers one audio frame to listeners.
	PublishFrame(ctx context.Context, frame audio.AudioFrame) error

	// PublishSubtitle delivers one caption to the subtitle topic.
	PublishSubtitle(ctx context.Context, sub Subtitle) error

	// Close releases the sink. Safe to call more than once.
	Close() error
}
