package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/MrWong99/polyglossa/pkg/publish"
)

func TestBuildSubtitleMessage(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	payload, err := buildSubtitleMessage(publish.Subtitle{
		Topic:     "subtitles-ta",
		Language:  "ta",
		Text:      "வணக்கம்",
		Speaker:   "alice",
		Timestamp: ts,
	})
	if err != nil {
		t.Fatalf("buildSubtitleMessage: %v", err)
	}

	var got subtitleMessage
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Topic != "subtitles-ta" {
		t.Errorf("topic: want %q, got %q", "subtitles-ta", got.Topic)
	}
	if got.Text != "வணக்கம்" {
		t.Errorf("text: want %q, got %q", "வணக்கம்", got.Text)
	}
	if got.Speaker != "alice" {
		t.Errorf("speaker: want %q, got %q", "alice", got.Speaker)
	}
	if got.Timestamp != ts.Format(time.RFC3339Nano) {
		t.Errorf("timestamp: want %q, got %q", ts.Format(time.RFC3339Nano), got.Timestamp)
	}
}

func TestBuildSubtitleMessage_DefaultTopic(t *testing.T) {
	t.Parallel()

	payload, err := buildSubtitleMessage(publish.Subtitle{Language: "hi", Text: "नमस्ते"})
	if err != nil {
		t.Fatalf("buildSubtitleMessage: %v", err)
	}

	var got subtitleMessage
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Topic != "subtitles-hi" {
		t.Errorf("topic: want %q, got %q", "subtitles-hi", got.Topic)
	}
}

func TestBytesToInt16s(t *testing.T) {
	t.Parallel()

	got := bytesToInt16s([]byte{0x01, 0x00, 0xFF, 0xFF, 0x00, 0x80})
	want := []int16{1, -1, -32768}
	if len(got) != len(want) {
		t.Fatalf("length: want %d, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: want %d, got %d", i, want[i], got[i])
		}
	}
}
