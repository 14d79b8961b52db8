// Package sac implements the learning core of a Soft Actor-Critic
// agent: construction of the actor and twin-critic networks, the
// composite losses that drive gradient-based training, and the target
// network bookkeeping that stabilizes Q-learning.
package sac

import (
	"fmt"
	"math"
)

// ActionSpace describes the actions a policy selects: either a single
// block of continuous action dimensions, or an ordered list of
// discrete action branches, each an independent categorical decision.
//
// For discrete spaces, every per-branch quantity (logits,
// probabilities, Q estimates, one-hot actions) is stored concatenated
// along the feature axis and split at the cumulative branch
// boundaries. The boundaries are fixed for the lifetime of a model.
type ActionSpace struct {
	continuous bool
	dims       int
	branches   []int
}

// NewContinuous returns an ActionSpace of dims continuous action
// dimensions.
func NewContinuous(dims int) ActionSpace {
	return ActionSpace{continuous: true, dims: dims}
}

// NewDiscrete returns a multi-discrete ActionSpace with one
// categorical branch per entry of branches, where branches[i] is the
// number of actions available in branch i.
func NewDiscrete(branches []int) ActionSpace {
	owned := make([]int, len(branches))
	copy(owned, branches)
	return ActionSpace{branches: owned}
}

// Validate returns an error if the action space cannot parameterize an
// actor.
func (a ActionSpace) Validate() error {
	if a.continuous {
		if a.dims <= 0 {
			return fmt.Errorf("actionspace: continuous dimensionality must "+
				"be positive \n\twant(>0) \n\thave(%v)", a.dims)
		}
		return nil
	}

	if len(a.branches) == 0 {
		return fmt.Errorf("actionspace: at least one discrete branch is " +
			"required")
	}
	for i, size := range a.branches {
		if size <= 0 {
			return fmt.Errorf("actionspace: branch %v has non-positive "+
				"size %v", i, size)
		}
	}
	return nil
}

// Continuous returns whether the action space is continuous
func (a ActionSpace) Continuous() bool {
	return a.continuous
}

// Dims returns the number of continuous action dimensions. It panics
// on discrete action spaces.
func (a ActionSpace) Dims() int {
	if !a.continuous {
		panic("dims: discrete action spaces have no continuous " +
			"dimensionality")
	}
	return a.dims
}

// Branches returns a copy of the per-branch action counts. It panics
// on continuous action spaces.
func (a ActionSpace) Branches() []int {
	if a.continuous {
		panic("branches: continuous action spaces have no branches")
	}
	branches := make([]int, len(a.branches))
	copy(branches, a.branches)
	return branches
}

// NumBranches returns the number of discrete branches, or 0 for
// continuous action spaces.
func (a ActionSpace) NumBranches() int {
	return len(a.branches)
}

// TotalSize returns the width of the concatenated action
// representation: the number of continuous dimensions, or the sum of
// all branch sizes.
func (a ActionSpace) TotalSize() int {
	if a.continuous {
		return a.dims
	}
	total := 0
	for _, size := range a.branches {
		total += size
	}
	return total
}

// Offsets returns the cumulative split boundaries of the concatenated
// branch representation: offsets[i] is the first column of branch i
// and offsets[len(branches)] is the total width. Splitting any
// concatenated per-branch tensor at these boundaries and concatenating
// the pieces reproduces the original tensor.
func (a ActionSpace) Offsets() []int {
	offsets := make([]int, len(a.branches)+1)
	for i, size := range a.branches {
		offsets[i+1] = offsets[i] + size
	}
	return offsets
}

// TargetEntropy returns the entropy targets the entropy coefficient is
// tuned towards: the negated action dimensionality for continuous
// spaces, and 0.1*ln(branch size) per branch for discrete spaces.
func (a ActionSpace) TargetEntropy() []float64 {
	if a.continuous {
		return []float64{-float64(a.dims)}
	}

	targets := make([]float64, len(a.branches))
	for i, size := range a.branches {
		targets[i] = 0.1 * math.Log(float64(size))
	}
	return targets
}

// OneHot encodes a batch of per-branch action indices as concatenated
// one-hot vectors. The actions slice holds batch*numBranches indices
// in row-major order; the result holds batch*TotalSize() values.
func (a ActionSpace) OneHot(actions []int, batch int) ([]float64, error) {
	if a.continuous {
		return nil, fmt.Errorf("onehot: continuous actions cannot be " +
			"one-hot encoded")
	}
	if len(actions) != batch*len(a.branches) {
		return nil, fmt.Errorf("onehot: invalid number of action indices "+
			"\n\twant(%v) \n\thave(%v)", batch*len(a.branches), len(actions))
	}

	width := a.TotalSize()
	offsets := a.Offsets()
	encoded := make([]float64, batch*width)
	for row := 0; row < batch; row++ {
		for b, size := range a.branches {
			index := actions[row*len(a.branches)+b]
			if index < 0 || index >= size {
				return nil, fmt.Errorf("onehot: action %v out of range for "+
					"branch %v of size %v", index, b, size)
			}
			encoded[row*width+offsets[b]+index] = 1.0
		}
	}
	return encoded, nil
}
