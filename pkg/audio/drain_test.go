package audio

import "testing"

func TestDrain(t *testing.T) {
	t.Parallel()

	ch := make(chan AudioFrame, 3)
	for range 3 {
		ch <- AudioFrame{}
	}
	close(ch)

	Drain(ch)
	if _, ok := <-ch; ok {
		t.Fatal("want channel fully drained and closed")
	}
}
