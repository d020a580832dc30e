package graph

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"sort"
	"testing"

	"alprofile/internal/extruder/models"
)

func square(x, y, size float64) models.SegmentSet {
	return models.SegmentSet{
		models.Seg(x, y, x+size, y),
		models.Seg(x+size, y, x+size, y+size),
		models.Seg(x+size, y+size, x, y+size),
		models.Seg(x, y+size, x, y),
	}
}

func permutations(n int) [][]int {
	if n == 1 {
		return [][]int{{0}}
	}
	var out [][]int
	for _, p := range permutations(n - 1) {
		for i := 0; i <= len(p); i++ {
			q := append(append(append([]int{}, p[:i]...), n-1), p[i:]...)
			out = append(out, q)
		}
	}
	return out
}

func members(l models.ClosedLoop) []int {
	out := append([]int(nil), l.Segments...)
	sort.Ints(out)
	return out
}

func TestFindLoopsSquareAnyOrder(t *testing.T) {
	base := square(0, 0, 1)

	for _, perm := range permutations(4) {
		for mask := 0; mask < 16; mask++ {
			segs := make(models.SegmentSet, 4)
			for i, j := range perm {
				segs[i] = base[j]
				if mask&(1<<i) != 0 {
					segs[i] = segs[i].Reverse()
				}
			}

			loops, err := FindLoops(context.Background(), Build(segs, 0.01), 0, 0)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(loops) != 1 {
				t.Fatalf("perm %v mask %04b: expected 1 loop, got %d", perm, mask, len(loops))
			}
			if loops[0].Len() != 4 || !reflect.DeepEqual(members(loops[0]), []int{0, 1, 2, 3}) {
				t.Fatalf("perm %v mask %04b: unexpected loop %+v", perm, mask, loops[0])
			}
			if a := loops[0].Area(); a < 0.999 && a > -0.999 {
				t.Fatalf("loop area %v", a)
			}
		}
	}
}

func TestFindLoopsToleranceRobust(t *testing.T) {
	const tol = 0.01
	segs := append(square(0, 0, 100), square(200, 0, 30)...)
	want, err := FindLoops(context.Background(), Build(segs, tol), 0, 0)
	if err != nil || len(want) != 2 {
		t.Fatalf("baseline: %v loops, err %v", len(want), err)
	}

	rng := rand.New(rand.NewSource(7))
	jitter := func() float64 { return (rng.Float64()*2 - 1) * 0.99 * tol }

	for round := 0; round < 200; round++ {
		noisy := make(models.SegmentSet, len(segs))
		for i, s := range segs {
			noisy[i] = models.Seg(s.Start.X+jitter(), s.Start.Y+jitter(), s.End.X+jitter(), s.End.Y+jitter())
		}

		got, err := FindLoops(context.Background(), Build(noisy, tol), 0, 0)
		if err != nil {
			t.Fatalf("round %d: %v", round, err)
		}
		if len(got) != len(want) {
			t.Fatalf("round %d: expected %d loops, got %d", round, len(want), len(got))
		}
		for i := range got {
			if !reflect.DeepEqual(members(got[i]), members(want[i])) {
				t.Fatalf("round %d: loop %d membership changed", round, i)
			}
		}
	}
}

func TestFindLoopsOpenPolyline(t *testing.T) {
	segs := models.SegmentSet{
		models.Seg(0, 10, 0, 0),
		models.Seg(0, 0, 20, 0),
		models.Seg(20, 0, 20, 10),
	}
	loops, err := FindLoops(context.Background(), Build(segs, 0.01), 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(loops) != 0 {
		t.Errorf("open geometry produced %d loops", len(loops))
	}
}

func TestFindLoopsRejectsTwoSegmentLoop(t *testing.T) {
	segs := models.SegmentSet{
		models.Seg(0, 0, 10, 0),
		models.Seg(10, 0, 0, 0),
	}
	loops, _ := FindLoops(context.Background(), Build(segs, 0.01), 0, 0)
	if len(loops) != 0 {
		t.Errorf("expected noise loop to be discarded, got %+v", loops)
	}
}

func TestFindLoopsLimits(t *testing.T) {
	segs := append(append(square(0, 0, 1), square(5, 0, 1)...), square(10, 0, 1)...)
	ix := Build(segs, 0.01)

	tests := []struct {
		name      string
		maxLoops  int
		maxLength int
		want      int
	}{
		{"unbounded", 0, 0, 3},
		{"max loops", 2, 0, 2},
		{"length valve", 0, 3, 0},
		{"length exact", 0, 4, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loops, err := FindLoops(context.Background(), ix, tt.maxLoops, tt.maxLength)
			if err != nil {
				t.Fatal(err)
			}
			if len(loops) != tt.want {
				t.Errorf("expected %d loops, got %d", tt.want, len(loops))
			}
		})
	}
}

func TestFindLoopsSharedVertex(t *testing.T) {
	segs := models.SegmentSet{
		models.Seg(0, 0, 2, 1),
		models.Seg(2, 1, 2, -1),
		models.Seg(2, -1, 0, 0),
		models.Seg(0, 0, -2, 1),
		models.Seg(-2, 1, -2, -1),
		models.Seg(-2, -1, 0, 0),
	}
	loops, err := FindLoops(context.Background(), Build(segs, 0.01), 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(loops) != 2 {
		t.Fatalf("expected 2 triangles, got %d", len(loops))
	}
	for _, l := range loops {
		if l.Len() != 3 {
			t.Errorf("expected triangle, got %d points", l.Len())
		}
	}
}

func TestFindLoopsIdempotent(t *testing.T) {
	segs := append(square(0, 0, 3), models.Seg(3, 0, 6, 0), models.Seg(6, 0, 6, 3), models.Seg(6, 3, 3, 3))
	ix := Build(segs, 0.01)

	first, err := FindLoops(context.Background(), ix, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	second, err := FindLoops(context.Background(), ix, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("results differ between calls:\n%+v\n%+v", first, second)
	}
}

func TestFindLoopsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := FindLoops(ctx, Build(square(0, 0, 1), 0.01), 0, 0)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
