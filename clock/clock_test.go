package clock_test

import (
	"testing"
	"time"

	"github.com/xraph/orbit/clock"
)

func TestFakeClockAdvance(t *testing.T) {
	c := clock.FakeUnix(100)
	c.Advance(5 * time.Second)
	if got := clock.Unix(c.Now()); got != 105 {
		t.Fatalf("Now = %d, want 105", got)
	}

	c.Advance(-time.Hour)
	if got := clock.Unix(c.Now()); got != 105 {
		t.Fatalf("negative advance moved clock to %d", got)
	}
}

func TestFakeClockSetIsMonotonic(t *testing.T) {
	c := clock.FakeUnix(1000)
	c.SetUnix(500)
	if got := clock.Unix(c.Now()); got != 1000 {
		t.Fatalf("clock moved backwards to %d", got)
	}
	c.SetUnix(2000)
	if got := clock.Unix(c.Now()); got != 2000 {
		t.Fatalf("Now = %d, want 2000", got)
	}
}

func TestUnixClampsBeforeEpoch(t *testing.T) {
	if got := clock.Unix(time.Unix(-10, 0)); got != 0 {
		t.Fatalf("Unix(-10) = %d, want 0", got)
	}
}
