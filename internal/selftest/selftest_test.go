package selftest

import (
	"testing"

	"github.com/coreman2200/funtimes-lightstrip/internal/color"
	"github.com/coreman2200/funtimes-lightstrip/internal/layout"
)

func run(t *testing.T, r *Runner, l layout.Layout) [][]color.RGB {
	t.Helper()
	var frames [][]color.RGB
	for i := 0; i < 1000; i++ {
		px := make([]color.RGB, l.Count())
		if !r.Step(l, px) {
			return frames
		}
		frames = append(frames, px)
	}
	t.Fatal("runner never finished")
	return nil
}

func TestIndexSweep(t *testing.T) {
	l, _ := layout.New(5, nil)
	frames := run(t, NewRunner(Plan{Kind: IndexSweep}), l)
	if len(frames) != 5 {
		t.Fatalf("expected 5 frames, got %d", len(frames))
	}
	for i, px := range frames {
		for j, c := range px {
			want := color.Black
			if i == j {
				want = color.White
			}
			if c != want {
				t.Fatalf("frame %d device %d: got %#v", i, j, c)
			}
		}
	}
}

func TestRGBChannelsHold(t *testing.T) {
	l, _ := layout.New(3, nil)
	frames := run(t, NewRunner(Plan{Kind: RGBTest, Hold: 2}), l)
	if len(frames) != 6 {
		t.Fatalf("expected 6 frames, got %d", len(frames))
	}
	if frames[1][0] != (color.RGB{R: 255}) || frames[2][2] != (color.RGB{G: 255}) || frames[5][1] != (color.RGB{B: 255}) {
		t.Fatalf("unexpected channel order: %v", frames)
	}
}

func TestGroupSweep(t *testing.T) {
	l, _ := layout.New(6, []int{1, 2, 3})
	frames := run(t, NewRunner(Plan{Kind: GroupSweep}), l)
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}
	lit := func(px []color.RGB) int {
		n := 0
		for _, c := range px {
			if c != color.Black {
				n++
			}
		}
		return n
	}
	for g, want := range []int{1, 2, 3} {
		if got := lit(frames[g]); got != want {
			t.Fatalf("group %d: expected %d lit, got %d", g, want, got)
		}
	}
	if frames[2][3] == color.Black || frames[2][2] != color.Black {
		t.Fatal("third group must cover devices 3..5")
	}
}

func TestParseKind(t *testing.T) {
	if k, ok := ParseKind("group_sweep"); !ok || k != GroupSweep {
		t.Fatalf("got %q %v", k, ok)
	}
	if _, ok := ParseKind("plane_z"); ok {
		t.Fatal("plane_z is not a strip test")
	}
}
