package dataset

import (
	"math"
	"math/rand"
	"testing"

	"github.com/seehuhn/mt19937"
	"gorgonia.org/tensor"
)

func testRNG(seed int64) *rand.Rand {
	src := mt19937.New()
	src.Seed(seed)
	return rand.New(src)
}

func makeDataset(t *testing.T, n int, transform Transform) *Dataset {
	t.Helper()
	images := make([]*tensor.Dense, n)
	labels := make([]int, n)
	for i := range images {
		images[i] = grayImage(4, 4, float32(i))
		labels[i] = i % 2
	}
	ds, err := New(images, labels, transform)
	if err != nil {
		t.Fatalf("new dataset: %v", err)
	}
	return ds
}

func TestBinarizeClamps(t *testing.T) {
	in := []int{-2, -1, 0, 1, 2, 3}
	got := Binarize(in)
	for i, l := range in {
		want := int(math.Min(math.Max(float64(l), 0), 1))
		if got[i] != want {
			t.Fatalf("binarize(%d) = %d, want %d", l, got[i], want)
		}
	}
}

func TestNewRejectsMismatch(t *testing.T) {
	images := []*tensor.Dense{grayImage(4, 4, 0), grayImage(4, 4, 1)}
	if _, err := New(images, []int{0}, nil); err == nil {
		t.Fatal("expected length mismatch error")
	}
	uneven := []*tensor.Dense{grayImage(4, 4, 0), grayImage(4, 5, 1)}
	if _, err := New(uneven, []int{0, 1}, nil); err == nil {
		t.Fatal("expected shape mismatch error")
	}
	if _, err := New(nil, nil, nil); err == nil {
		t.Fatal("expected empty dataset error")
	}
}

func TestAtBounds(t *testing.T) {
	ds := makeDataset(t, 5, nil)
	if ds.Len() != 5 {
		t.Fatalf("len = %d, want 5", ds.Len())
	}
	for i := 0; i < ds.Len(); i++ {
		if _, _, err := ds.At(i); err != nil {
			t.Fatalf("at(%d): %v", i, err)
		}
	}
	if _, _, err := ds.At(-1); err == nil {
		t.Fatal("expected error for index -1")
	}
	if _, _, err := ds.At(5); err == nil {
		t.Fatal("expected error for index 5")
	}
}

func TestAtAppliesTransformLazily(t *testing.T) {
	calls := 0
	counting := func(x *tensor.Dense) (*tensor.Dense, error) {
		calls++
		return x, nil
	}
	ds := makeDataset(t, 3, counting)
	if calls != 0 {
		t.Fatalf("transform ran %d times at construction", calls)
	}
	ds.At(0)
	ds.At(0)
	if calls != 2 {
		t.Fatalf("transform ran %d times, want once per access", calls)
	}
}

func TestSplitSizesAndDisjointness(t *testing.T) {
	for _, n := range []int{10, 11, 37} {
		ds := makeDataset(t, n, nil)
		train, test, err := ds.Split(0.2, testRNG(99))
		if err != nil {
			t.Fatalf("split %d: %v", n, err)
		}
		wantTrain := int(math.Round(0.8 * float64(n)))
		if train.Len() != wantTrain || test.Len() != n-wantTrain {
			t.Fatalf("split %d: got %d/%d, want %d/%d", n, train.Len(), test.Len(), wantTrain, n-wantTrain)
		}

		seen := map[*tensor.Dense]bool{}
		for _, side := range []*Dataset{train, test} {
			for _, img := range side.images {
				if seen[img] {
					t.Fatalf("split %d: sample appears on both sides", n)
				}
				seen[img] = true
			}
		}
		if len(seen) != n {
			t.Fatalf("split %d: union covers %d samples, want %d", n, len(seen), n)
		}
	}
}

func TestSplitReproducible(t *testing.T) {
	ds := makeDataset(t, 20, nil)
	a1, _, err := ds.Split(0.2, testRNG(7))
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	a2, _, err := ds.Split(0.2, testRNG(7))
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	l1, l2 := a1.Labels(), a2.Labels()
	for i := range l1 {
		if l1[i] != l2[i] {
			t.Fatalf("same seed produced different splits at %d", i)
		}
	}
}

func TestMergeAndRelabel(t *testing.T) {
	a := makeDataset(t, 3, nil).Relabel(0)
	b := makeDataset(t, 4, nil).Relabel(1)
	merged, err := Merge(a, b)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if merged.Len() != 7 {
		t.Fatalf("merged len = %d, want 7", merged.Len())
	}
	labels := merged.Labels()
	for i, l := range labels {
		want := 0
		if i >= 3 {
			want = 1
		}
		if l != want {
			t.Fatalf("label[%d] = %d, want %d", i, l, want)
		}
	}
}
