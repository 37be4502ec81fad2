package audio

import (
	"testing"
	"time"
)

// pcm16 packs int16 samples as little-endian bytes.
func pcm16(samples ...int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// sample16 reads the i-th little-endian int16 sample.
func sample16(pcm []byte, i int) int16 {
	return int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
}

func TestStereoToMono(t *testing.T) {
	t.Parallel()

	// Two stereo frames: (1000, 3000) and (-2000, -4000).
	in := pcm16(1000, 3000, -2000, -4000)
	out := StereoToMono(in)

	if len(out) != len(in)/2 {
		t.Fatalf("output length: want %d, got %d", len(in)/2, len(out))
	}
	if got := sample16(out, 0); got != 2000 {
		t.Errorf("frame 0: want 2000, got %d", got)
	}
	if got := sample16(out, 1); got != -3000 {
		t.Errorf("frame 1: want -3000, got %d", got)
	}
}

func TestResampleMono16_Downsample(t *testing.T) {
	t.Parallel()

	// 48 kHz → 16 kHz keeps every third sample's worth of duration.
	srcSamples := 480
	in := make([]byte, 0, srcSamples*2)
	for range srcSamples {
		in = append(in, pcm16(1200)...)
	}

	out := ResampleMono16(in, 48000, 16000)
	if want := srcSamples / 3 * 2; len(out) != want {
		t.Fatalf("output length: want %d bytes, got %d", want, len(out))
	}
	// A constant signal must survive interpolation unchanged.
	for i := 0; i < len(out)/2; i++ {
		if got := sample16(out, i); got != 1200 {
			t.Fatalf("sample %d: want 1200, got %d", i, got)
		}
	}
}

func TestResampleMono16_Upsample(t *testing.T) {
	t.Parallel()

	// Linear ramp 0, 300 upsampled 2x: the interpolated midpoint lands
	// halfway between the two source samples.
	out := ResampleMono16(pcm16(0, 300), 8000, 16000)
	if len(out) != 8 {
		t.Fatalf("output length: want 8 bytes, got %d", len(out))
	}
	if got := sample16(out, 0); got != 0 {
		t.Errorf("sample 0: want 0, got %d", got)
	}
	if got := sample16(out, 1); got != 150 {
		t.Errorf("sample 1: want 150, got %d", got)
	}
	if got := sample16(out, 2); got != 300 {
		t.Errorf("sample 2: want 300, got %d", got)
	}
}

func TestResampleMono16_NoWork(t *testing.T) {
	t.Parallel()

	in := pcm16(1, 2, 3)
	if out := ResampleMono16(in, 16000, 16000); &out[0] != &in[0] {
		t.Error("same-rate resample: want input returned unchanged")
	}
	if out := ResampleMono16(in, 0, 16000); &out[0] != &in[0] {
		t.Error("invalid source rate: want input returned unchanged")
	}
}

func TestFormatConverter_PassThrough(t *testing.T) {
	t.Parallel()

	c := &FormatConverter{Target: Format{SampleRate: 16000, Channels: 1}}
	in := AudioFrame{Data: pcm16(7, 8, 9), SampleRate: 16000, Channels: 1}

	out := c.Convert(in)
	if &out.Data[0] != &in.Data[0] {
		t.Error("matching format: want the frame returned without copying")
	}
}

func TestFormatConverter_StereoHighRateToMonoLowRate(t *testing.T) {
	t.Parallel()

	c := &FormatConverter{Target: Format{SampleRate: 16000, Channels: 1}}

	// 48 kHz stereo: 60 stereo frames = 240 bytes → 20 mono samples at 16 kHz.
	srcFrames := 60
	data := make([]byte, 0, srcFrames*4)
	for range srcFrames {
		data = append(data, pcm16(900, 1100)...) // downmixes to 1000
	}
	ts := 120 * time.Millisecond

	out := c.Convert(AudioFrame{Data: data, SampleRate: 48000, Channels: 2, Timestamp: ts})
	if out.SampleRate != 16000 || out.Channels != 1 {
		t.Fatalf("output format = %d Hz / %d ch, want 16000 / 1", out.SampleRate, out.Channels)
	}
	if want := srcFrames / 3 * 2; len(out.Data) != want {
		t.Fatalf("output length: want %d bytes, got %d", want, len(out.Data))
	}
	if out.Timestamp != ts {
		t.Errorf("timestamp: want %v, got %v", ts, out.Timestamp)
	}
	for i := 0; i < len(out.Data)/2; i++ {
		if got := sample16(out.Data, i); got != 1000 {
			t.Fatalf("sample %d: want 1000, got %d", i, got)
		}
	}
}

func TestFormatConverter_DropsMisalignedFrame(t *testing.T) {
	t.Parallel()

	c := &FormatConverter{Target: Format{SampleRate: 16000, Channels: 1}}
	out := c.Convert(AudioFrame{Data: []byte{1, 2, 3}, SampleRate: 48000, Channels: 1, Timestamp: time.Second})

	if len(out.Data) != 0 {
		t.Errorf("misaligned frame: want empty data, got %d bytes", len(out.Data))
	}
	if out.SampleRate != 16000 || out.Channels != 1 {
		t.Errorf("output format = %d Hz / %d ch, want target 16000 / 1", out.SampleRate, out.Channels)
	}
	if out.Timestamp != time.Second {
		t.Errorf("timestamp: want 1s, got %v", out.Timestamp)
	}
}
