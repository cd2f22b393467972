package tracto

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWindowFirstPushReplicates(t *testing.T) {
	w := NewContextWindow(3, 2)
	w.Push([]float64{1, 2})

	got := w.AsModelInput(nil)
	want := []float64{1, 2, 1, 2, 1, 2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("model input after first push (-want +got):\n%s", diff)
	}
}

func TestWindowEvictsOldest(t *testing.T) {
	w := NewContextWindow(3, 1)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		w.Push([]float64{v})
	}

	got := w.AsModelInput(nil)
	want := []float64{3, 4, 5}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("model input order (-want +got):\n%s", diff)
	}
}

func TestWindowDepthOne(t *testing.T) {
	w := NewContextWindow(1, 2)
	w.Push([]float64{1, 2})
	w.Push([]float64{3, 4})

	got := w.AsModelInput(nil)
	want := []float64{3, 4}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("depth-1 window (-want +got):\n%s", diff)
	}
}

func TestWindowCopiesSample(t *testing.T) {
	w := NewContextWindow(2, 1)
	s := []float64{7}
	w.Push(s)
	s[0] = 99
	w.Push(s)

	got := w.AsModelInput(nil)
	if got[0] != 7 || got[1] != 99 {
		t.Errorf("window aliased caller slice: %v", got)
	}
}

func TestWindowAppendsToDst(t *testing.T) {
	w := NewContextWindow(2, 1)
	w.Push([]float64{1})
	w.Push([]float64{2})

	buf := make([]float64, 0, 2)
	got := w.AsModelInput(buf)
	if len(got) != 2 || &got[0] != &buf[:1][0] {
		t.Error("AsModelInput did not reuse dst capacity")
	}
}
