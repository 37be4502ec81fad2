package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/polyglossa/internal/observe"
	"github.com/MrWong99/polyglossa/pkg/audio"
	"github.com/MrWong99/polyglossa/pkg/provider/stt"
	sttmock "github.com/MrWong99/polyglossa/pkg/provider/stt/mock"
)

// testMetrics returns a Metrics instance that records into the void, keeping
// tests independent of the global meter provider.
func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

// feedSegments pushes segments into a new channel and closes it.
func feedSegments(segs ...audio.UtteranceSegment) <-chan audio.UtteranceSegment {
	ch := make(chan audio.UtteranceSegment, len(segs))
	for _, s := range segs {
		ch <- s
	}
	close(ch)
	return ch
}

func testSegment() audio.UtteranceSegment {
	return audio.UtteranceSegment{
		Frames: []audio.AudioFrame{frame20ms(0), frame20ms(20 * time.Millisecond)},
		Start:  0,
		End:    40 * time.Millisecond,
	}
}

func newTestTranscriber(t *testing.T, provider stt.Provider) *Transcriber {
	t.Helper()
	return NewTranscriber(provider, TranscriberConfig{
		Stream:  stt.StreamConfig{SampleRate: 16000, Channels: 1, Language: "en"},
		Metrics: testMetrics(t),
	})
}

func TestTranscriber_ForwardsFinals(t *testing.T) {
	t.Parallel()

	sess := sttmock.NewSession()
	sess.FinalsCh <- stt.Transcript{Text: "  hello world ", IsFinal: true, Confidence: 0.95}
	provider := &sttmock.Provider{Session: sess}

	tr := newTestTranscriber(t, provider)
	out := tr.Run(context.Background(), feedSegments(testSegment()))

	got, ok := <-out
	if !ok {
		t.Fatal("want one final, channel closed early")
	}
	if got.Text != "hello world" {
		t.Errorf("text: want trimmed %q, got %q", "hello world", got.Text)
	}

	if _, ok := <-out; ok {
		t.Error("want output closed after input ends")
	}
	if err := tr.Err(); err != nil {
		t.Errorf("Err: want nil, got %v", err)
	}
	if sess.SendAudioCallCount() != 2 {
		t.Errorf("SendAudio calls: want 2, got %d", sess.SendAudioCallCount())
	}
}

func TestTranscriber_SuppressesInterims(t *testing.T) {
	t.Parallel()

	sess := sttmock.NewSession()
	sess.PartialsCh <- stt.Transcript{Text: "hel", IsFinal: false}
	sess.PartialsCh <- stt.Transcript{Text: "hello wor", IsFinal: false}
	sess.FinalsCh <- stt.Transcript{Text: "hello world", IsFinal: true}
	provider := &sttmock.Provider{Session: sess}

	tr := newTestTranscriber(t, provider)
	out := tr.Run(context.Background(), feedSegments(testSegment()))

	var finals []stt.Transcript
	for tr := range out {
		finals = append(finals, tr)
	}
	if len(finals) != 1 {
		t.Fatalf("forwarded transcripts: want 1, got %d", len(finals))
	}
	if finals[0].Text != "hello world" {
		t.Errorf("text: want %q, got %q", "hello world", finals[0].Text)
	}
}

func TestTranscriber_NoiseFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want bool
	}{
		{"empty", "", false},
		{"whitespace only", "   ", false},
		{"single rune", "a", false},
		{"single rune padded", "  a  ", false},
		{"two runes", "ok", true},
		{"two runes non-ascii", "नम", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sess := sttmock.NewSession()
			sess.FinalsCh <- stt.Transcript{Text: tt.text, IsFinal: true}
			provider := &sttmock.Provider{Session: sess}

			tr := newTestTranscriber(t, provider)
			out := tr.Run(context.Background(), feedSegments(testSegment()))

			var got []stt.Transcript
			for f := range out {
				got = append(got, f)
			}
			if forwarded := len(got) == 1; forwarded != tt.want {
				t.Errorf("forwarded = %v, want %v (text %q)", forwarded, tt.want, tt.text)
			}
		})
	}
}

func TestTranscriber_SeveredSessionIsFatal(t *testing.T) {
	t.Parallel()

	errConn := errors.New("connection reset")
	sess := sttmock.NewSession()
	sess.Fail(errConn)
	provider := &sttmock.Provider{Session: sess}

	tr := newTestTranscriber(t, provider)
	// Two segments queued, but the severed session must stop the transcriber
	// after the first.
	out := tr.Run(context.Background(), feedSegments(testSegment(), testSegment()))

	if _, ok := <-out; ok {
		t.Fatal("want output closed on severed session")
	}
	if !errors.Is(tr.Err(), errConn) {
		t.Errorf("Err: want %v, got %v", errConn, tr.Err())
	}
	if provider.StartStreamCallCount() != 1 {
		t.Errorf("StartStream calls: want 1, got %d", provider.StartStreamCallCount())
	}
}

func TestTranscriber_StartStreamFailureIsFatal(t *testing.T) {
	t.Parallel()

	errAuth := errors.New("bad api key")
	provider := &sttmock.Provider{StartStreamErr: errAuth}

	tr := newTestTranscriber(t, provider)
	out := tr.Run(context.Background(), feedSegments(testSegment()))

	if _, ok := <-out; ok {
		t.Fatal("want output closed on start failure")
	}
	if !errors.Is(tr.Err(), errAuth) {
		t.Errorf("Err: want %v, got %v", errAuth, tr.Err())
	}
}

func TestTranscriber_SendFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	sessBad := sttmock.NewSession()
	sessBad.SendAudioErr = errors.New("pipe broken")
	sessGood := sttmock.NewSession()
	sessGood.FinalsCh <- stt.Transcript{Text: "still here", IsFinal: true}
	provider := &sttmock.Provider{Sessions: []stt.SessionHandle{sessBad, sessGood}}

	tr := newTestTranscriber(t, provider)
	out := tr.Run(context.Background(), feedSegments(testSegment(), testSegment()))

	got, ok := <-out
	if !ok {
		t.Fatal("want the second segment to still produce a final")
	}
	if got.Text != "still here" {
		t.Errorf("text: want %q, got %q", "still here", got.Text)
	}
	if _, ok := <-out; ok {
		t.Error("want output closed after input ends")
	}
	if err := tr.Err(); err != nil {
		t.Errorf("Err: want nil, got %v", err)
	}
}
