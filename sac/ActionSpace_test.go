package sac

import (
	"math"
	"testing"
)

func TestDiscreteOffsets(t *testing.T) {
	space := NewDiscrete([]int{2, 3})
	if err := space.Validate(); err != nil {
		t.Fatal(err)
	}

	offsets := space.Offsets()
	want := []int{0, 2, 5}
	if len(offsets) != len(want) {
		t.Fatalf("invalid number of offsets \n\twant(%v) \n\thave(%v)",
			len(want), len(offsets))
	}
	for i := range want {
		if offsets[i] != want[i] {
			t.Errorf("invalid offset at index %v \n\twant(%v) "+
				"\n\thave(%v)", i, want[i], offsets[i])
		}
	}

	if size := space.TotalSize(); size != 5 {
		t.Errorf("invalid total size \n\twant(%v) \n\thave(%v)", 5, size)
	}
	if n := space.NumBranches(); n != 2 {
		t.Errorf("invalid number of branches \n\twant(%v) \n\thave(%v)",
			2, n)
	}
}

func TestTargetEntropy(t *testing.T) {
	continuous := NewContinuous(3)
	targets := continuous.TargetEntropy()
	if len(targets) != 1 || targets[0] != -3.0 {
		t.Errorf("invalid continuous target entropy \n\twant(%v) "+
			"\n\thave(%v)", []float64{-3.0}, targets)
	}

	discrete := NewDiscrete([]int{2, 5})
	targets = discrete.TargetEntropy()
	want := []float64{0.1 * math.Log(2), 0.1 * math.Log(5)}
	if len(targets) != len(want) {
		t.Fatalf("invalid number of target entropies \n\twant(%v) "+
			"\n\thave(%v)", len(want), len(targets))
	}
	for i := range want {
		if math.Abs(targets[i]-want[i]) > 1e-12 {
			t.Errorf("invalid target entropy for branch %v \n\twant(%v) "+
				"\n\thave(%v)", i, want[i], targets[i])
		}
	}
}

func TestOneHot(t *testing.T) {
	space := NewDiscrete([]int{2, 3})

	// Batch of 2: (action 1, action 2) and (action 0, action 0)
	oneHot, err := space.OneHot([]int{1, 2, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}

	want := []float64{
		0, 1, 0, 0, 1,
		1, 0, 1, 0, 0,
	}
	if len(oneHot) != len(want) {
		t.Fatalf("invalid one-hot size \n\twant(%v) \n\thave(%v)",
			len(want), len(oneHot))
	}
	for i := range want {
		if oneHot[i] != want[i] {
			t.Errorf("invalid one-hot entry at index %v \n\twant(%v) "+
				"\n\thave(%v)", i, want[i], oneHot[i])
		}
	}

	if _, err := space.OneHot([]int{1, 3, 0, 0}, 2); err == nil {
		t.Error("expected an error for an out-of-range action index")
	}
	if _, err := space.OneHot([]int{1, 2}, 2); err == nil {
		t.Error("expected an error for too few action indices")
	}
}

func TestActionSpaceValidate(t *testing.T) {
	if err := NewContinuous(0).Validate(); err == nil {
		t.Error("expected an error for zero action dimensions")
	}
	if err := NewDiscrete(nil).Validate(); err == nil {
		t.Error("expected an error for no branches")
	}
	if err := NewDiscrete([]int{3, 0}).Validate(); err == nil {
		t.Error("expected an error for an empty branch")
	}
	if err := NewContinuous(2).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
