package audio

import "testing"

func TestReplay_FeedDeliversBlocks(t *testing.T) {
	r := NewReplay()
	var got [][]float32
	if err := r.Start(func(block []float32) {
		got = append(got, block)
	}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	r.Feed([]float32{0.1, 0.2})
	r.Feed([]float32{0.3})

	if len(got) != 2 {
		t.Fatalf("delivered %d blocks; want 2", len(got))
	}
	if len(got[0]) != 2 || len(got[1]) != 1 {
		t.Errorf("block sizes = %d, %d; want 2, 1", len(got[0]), len(got[1]))
	}
}

func TestReplay_DoubleStart(t *testing.T) {
	r := NewReplay()
	if err := r.Start(func([]float32) {}); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := r.Start(func([]float32) {}); err == nil {
		t.Fatal("second Start should fail")
	}
}

func TestReplay_FeedAfterStopDropped(t *testing.T) {
	r := NewReplay()
	delivered := 0
	if err := r.Start(func([]float32) { delivered++ }); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	r.Feed([]float32{0.5})
	if delivered != 0 {
		t.Errorf("delivered = %d after Stop; want 0", delivered)
	}
}

func TestReplay_FeedBeforeStartDropped(t *testing.T) {
	r := NewReplay()
	r.Feed([]float32{0.5}) // must not panic
}

func TestReplay_StopIdempotent(t *testing.T) {
	r := NewReplay()
	if err := r.Stop(); err != nil {
		t.Errorf("Stop on idle source: %v", err)
	}
	if err := r.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}
