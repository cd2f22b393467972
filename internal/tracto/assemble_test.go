package tracto

import (
	"context"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestArcLength(t *testing.T) {
	s := Streamline{{X: 0}, {X: 3}, {X: 3, Y: 4}}
	if got := s.ArcLength(); math.Abs(got-7) > 1e-12 {
		t.Errorf("ArcLength = %v, want 7", got)
	}
	if got := (Streamline{{X: 5}}).ArcLength(); got != 0 {
		t.Errorf("single-point ArcLength = %v, want 0", got)
	}
}

func TestLengthFilterDiscardsWhole(t *testing.T) {
	// Three seeds whose streamlines end up short, medium and long; with
	// MinLength 20 and MaxLength 200 only the medium survives intact.
	vol := NewUniformFieldVolume(400, 3, 3, r3.Vec{X: 1}, 1)
	pred := &FieldPredictor{Depth: 1, Width: 4, WithProb: true}

	cfg := testConfig()
	cfg.MinLength = 20
	cfg.MaxLength = 200

	// Per-seed iteration budgets are global, so vary the lengths with a
	// mask instead: corridors of width 5, 25 and 250 around each seed.
	data := make([]uint8, 400*3*3)
	allow := func(lo, hi int) {
		for x := lo; x <= hi; x++ {
			for y := 0; y < 3; y++ {
				for z := 0; z < 3; z++ {
					data[(x*3+y)*3+z] = 1
				}
			}
		}
	}
	allow(10, 15)   // seed 12: total extent 5
	allow(30, 55)   // seed 42: total extent 25
	allow(100, 350) // seed 225: total extent 250
	mask, err := NewMask(vol, data)
	if err != nil {
		t.Fatalf("NewMask: %v", err)
	}

	cfg.MaxIterations = 300
	tr, err := NewTracker(cfg, vol, pred, WithMask(mask))
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}

	seeds := []r3.Vec{
		{X: 12, Y: 1, Z: 1},
		{X: 42, Y: 1, Z: 1},
		{X: 225, Y: 1, Z: 1},
	}
	res, err := tr.Run(context.Background(), seeds)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Streamlines) != 1 {
		t.Fatalf("got %d streamlines, want 1 (only the mid-length one)", len(res.Streamlines))
	}
	if res.SeedIndices[0] != 1 {
		t.Errorf("surviving seed index = %d, want 1", res.SeedIndices[0])
	}
	l := res.Streamlines[0].ArcLength()
	if l < cfg.MinLength || l > cfg.MaxLength {
		t.Errorf("surviving length %v outside [%v, %v]", l, cfg.MinLength, cfg.MaxLength)
	}

	// Filtered-out particles still count in the tally.
	total := 0
	for _, n := range res.Tally {
		total += n
	}
	if total != 2*len(seeds) {
		t.Errorf("tally total = %d, want %d", total, 2*len(seeds))
	}
}

func TestAnnotationsNilWithoutProbability(t *testing.T) {
	vol := NewUniformFieldVolume(5, 5, 5, r3.Vec{X: 1}, 1)
	pred := &FieldPredictor{Depth: 1, Width: 4, WithProb: false}
	tr, err := NewTracker(testConfig(), vol, pred)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	res, err := tr.Run(context.Background(), []r3.Vec{{X: 2, Y: 2, Z: 2}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Annotations != nil {
		t.Errorf("annotations = %v, want nil without a probability head", res.Annotations)
	}
	// Without probabilities the threshold never fires; both passes run
	// to the grid edge.
	if got := res.Tally[CauseOutOfBounds]; got != 2 {
		t.Errorf("out_of_bounds tally = %d, want 2", got)
	}
}

func TestLengthStats(t *testing.T) {
	res := &Result{
		Streamlines: []Streamline{
			{{X: 0}, {X: 10}},
			{{X: 0}, {X: 20}},
			{{X: 0}, {X: 30}},
		},
	}
	s := res.LengthStats()
	if s.Count != 3 {
		t.Errorf("Count = %d, want 3", s.Count)
	}
	if math.Abs(s.Mean-20) > 1e-12 {
		t.Errorf("Mean = %v, want 20", s.Mean)
	}
	if s.Min != 10 || s.Max != 30 {
		t.Errorf("Min/Max = %v/%v, want 10/30", s.Min, s.Max)
	}
	if s.P50 != 20 {
		t.Errorf("P50 = %v, want 20", s.P50)
	}

	empty := (&Result{}).LengthStats()
	if empty != (LengthStats{}) {
		t.Errorf("empty LengthStats = %+v, want zero value", empty)
	}
}
