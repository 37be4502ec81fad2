package audio

import "time"

// AudioFrame is a single immutable chunk of PCM audio flowing through the
// pipeline. Frames are the atomic unit of audio transport — received from the
// room, buffered by the segmenter, pushed into recognition, produced by
// synthesis, and published to listeners. A frame is consumed exactly once by
// the next stage and never mutated.
type AudioFrame struct {
	// Data is raw little-endian int16 PCM.
	Data []byte

	// SampleRate in Hz (e.g., 48000 for room audio, 16000 for STT input,
	// 24000 for synthesized output).
	SampleRate int

	// Channels: 1 for mono (STT and synthesis), 2 for stereo room audio.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the play time covered by the frame's samples. Returns 0 for
// frames with an unset format.
func (f AudioFrame) Duration() time.Duration {
	if f.SampleRate == 0 || f.Channels == 0 {
		return 0
	}
	samples := len(f.Data) / 2 / f.Channels
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}

// UtteranceSegment is an ordered, finite run of contiguous frames bounded by a
// detected start and end of speech. Segments are created by the segmenter,
// handed to the transcriber exactly once, and discarded afterwards.
type UtteranceSegment struct {
	// Frames are the buffered audio frames in capture order, including the
	// pre-roll captured shortly before speech was detected.
	Frames []AudioFrame

	// Start is the timestamp of the first frame in the segment.
	Start time.Duration

	// End is the timestamp at which end-of-speech was detected.
	End time.Duration
}

// Duration returns the total play time of the segment's frames.
func (s UtteranceSegment) Duration() time.Duration {
	var d time.Duration
	for _, f := range s.Frames {
		d += f.Duration()
	}
	return d
}
