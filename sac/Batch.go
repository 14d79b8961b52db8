package sac

import "fmt"

// Batch holds a minibatch of transitions to update a SAC model with.
// All tensors are flattened in row-major order.
type Batch struct {
	// Obs and NextObs hold the observations before and after each
	// transition, each of batch x obsDims values
	Obs     []float64
	NextObs []float64

	// ContinuousActions holds batch x actionDims executed actions for
	// continuous action spaces. DiscreteActions holds batch x
	// numBranches action indices for discrete action spaces. Only one
	// of the two is set.
	ContinuousActions []float64
	DiscreteActions   []int

	// Rewards holds one reward per transition for each reward stream,
	// in the order of Config.StreamNames
	Rewards [][]float64

	// Dones flags episode-terminating transitions with 1.0
	Dones []float64

	// Masks weights each transition's contribution to the losses.
	// Masked-out transitions (0.0) contribute nothing.
	Masks []float64

	// ActionMasks flags currently available discrete actions with 1.0
	// in the concatenated branch representation, batch x total branch
	// size values. Nil denotes all actions available.
	ActionMasks []float64

	// Memories holds the recurrent memory at the start of each
	// sequence, batch x memorySize values. Nil for feedforward models.
	Memories []float64
}

// Size returns the number of transitions in the batch
func (b Batch) Size() int {
	return len(b.Dones)
}

// validate returns an error if the batch is inconsistent with the
// given configuration.
func (b Batch) validate(c Config) error {
	batch := b.Size()
	if batch != c.BatchSize {
		return fmt.Errorf("batch: invalid batch size \n\twant(%v) "+
			"\n\thave(%v)", c.BatchSize, batch)
	}

	if len(b.Obs) != batch*c.ObsDims {
		return fmt.Errorf("batch: invalid number of observation features "+
			"\n\twant(%v) \n\thave(%v)", batch*c.ObsDims, len(b.Obs))
	}
	if len(b.NextObs) != batch*c.ObsDims {
		return fmt.Errorf("batch: invalid number of next observation "+
			"features \n\twant(%v) \n\thave(%v)", batch*c.ObsDims,
			len(b.NextObs))
	}

	if c.ActionSpace.Continuous() {
		if len(b.ContinuousActions) != batch*c.ActionSpace.Dims() {
			return fmt.Errorf("batch: invalid number of continuous actions "+
				"\n\twant(%v) \n\thave(%v)", batch*c.ActionSpace.Dims(),
				len(b.ContinuousActions))
		}
	} else {
		if len(b.DiscreteActions) != batch*c.ActionSpace.NumBranches() {
			return fmt.Errorf("batch: invalid number of discrete actions "+
				"\n\twant(%v) \n\thave(%v)",
				batch*c.ActionSpace.NumBranches(), len(b.DiscreteActions))
		}
		total := c.ActionSpace.TotalSize()
		if b.ActionMasks != nil && len(b.ActionMasks) != batch*total {
			return fmt.Errorf("batch: invalid number of action mask "+
				"entries \n\twant(%v) \n\thave(%v)", batch*total,
				len(b.ActionMasks))
		}
	}

	if len(b.Rewards) != len(c.StreamNames) {
		return fmt.Errorf("batch: one reward signal is required per "+
			"stream \n\twant(%v) \n\thave(%v)", len(c.StreamNames),
			len(b.Rewards))
	}
	for i, rewards := range b.Rewards {
		if len(rewards) != batch {
			return fmt.Errorf("batch: invalid number of rewards for "+
				"stream %v \n\twant(%v) \n\thave(%v)", c.StreamNames[i],
				batch, len(rewards))
		}
	}

	if len(b.Masks) != batch {
		return fmt.Errorf("batch: invalid number of loss masks "+
			"\n\twant(%v) \n\thave(%v)", batch, len(b.Masks))
	}

	if c.UseRecurrent && len(b.Memories) != batch*c.MemorySize {
		return fmt.Errorf("batch: invalid number of memory features "+
			"\n\twant(%v) \n\thave(%v)", batch*c.MemorySize, len(b.Memories))
	}
	return nil
}
