// Package expreplay implements an experience replay buffer for
// soft actor-critic training. Transitions carry one reward per reward
// stream, and sampled minibatches come out in the layout the sac
// package consumes.
package expreplay

import (
	"fmt"

	"github.com/samuelfneumann/gosac/sac"
)

// Transition holds a single environment transition. Exactly one of
// ContinuousAction and DiscreteAction is set, matching the model's
// action space. ActionMask and Memory may be nil when unused.
type Transition struct {
	Obs     []float64
	NextObs []float64

	ContinuousAction []float64
	DiscreteAction   []int

	// Rewards holds one reward per stream, in the order of the model
	// configuration's StreamNames
	Rewards []float64

	Done       float64
	ActionMask []float64
	Memory     []float64
}

// ExperienceReplayer implements an experience replay buffer of SAC
// transitions.
type ExperienceReplayer interface {
	// Add stores a transition in the buffer, evicting an old one when
	// the buffer is full
	Add(t Transition) error

	// Sample draws a minibatch of stored transitions. Sample returns
	// an error until the buffer holds at least MinCapacity()
	// transitions.
	Sample() (sac.Batch, error)

	// Capacity returns the current number of stored transitions
	Capacity() int

	// MaxCapacity returns the maximum number of stored transitions
	MaxCapacity() int

	// MinCapacity returns the number of transitions required before
	// the buffer can be sampled
	MinCapacity() int

	// BatchSize returns the number of transitions per sampled batch
	BatchSize() int
}

// cache implements a concrete ExperienceReplayer. Transition fields
// are stored in flat parallel slices indexed by buffer slot.
type cache struct {
	cfg sac.Config

	obsCache        []float64
	nextObsCache    []float64
	contActionCache []float64
	discActionCache []int
	rewardCache     []float64 // slot-major, one entry per stream
	doneCache       []float64
	maskCache       []float64
	memoryCache     []float64

	size int // stored transitions

	remover Selector
	sampler Selector

	minCapacity int
	maxCapacity int
}

// New returns a new ExperienceReplayer for transitions matching cfg.
// The remover chooses which slot an insert overwrites once the buffer
// is full; the sampler chooses which slots a minibatch draws from.
func New(remover, sampler Selector, minCapacity, maxCapacity int,
	cfg sac.Config) (ExperienceReplayer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	if minCapacity <= 0 {
		return nil, fmt.Errorf("new: minCapacity must be > 0")
	}
	if maxCapacity < 1 {
		return nil, fmt.Errorf("new: maxCapacity must be >= 1")
	}
	if maxCapacity < sampler.BatchSize() {
		return nil, fmt.Errorf("new: cannot have batch size (%v) > max "+
			"buffer capacity (%v)", sampler.BatchSize(), maxCapacity)
	}
	if sampler.BatchSize() != cfg.BatchSize {
		return nil, fmt.Errorf("new: sampler batch size must match the "+
			"model's \n\twant(%v) \n\thave(%v)", cfg.BatchSize,
			sampler.BatchSize())
	}

	c := &cache{
		cfg:          cfg,
		obsCache:     make([]float64, maxCapacity*cfg.ObsDims),
		nextObsCache: make([]float64, maxCapacity*cfg.ObsDims),
		rewardCache: make([]float64,
			maxCapacity*len(cfg.StreamNames)),
		doneCache:   make([]float64, maxCapacity),
		remover:     remover,
		sampler:     sampler,
		minCapacity: minCapacity,
		maxCapacity: maxCapacity,
	}
	if cfg.ActionSpace.Continuous() {
		c.contActionCache = make([]float64,
			maxCapacity*cfg.ActionSpace.Dims())
	} else {
		c.discActionCache = make([]int,
			maxCapacity*cfg.ActionSpace.NumBranches())
		c.maskCache = make([]float64,
			maxCapacity*cfg.ActionSpace.TotalSize())
	}
	if cfg.UseRecurrent {
		c.memoryCache = make([]float64, maxCapacity*cfg.MemorySize)
	}

	remover.registerAsRemover()
	return c, nil
}

// Add stores t, overwriting the slot chosen by the remover when the
// buffer is full.
func (c *cache) Add(t Transition) error {
	if err := c.validate(t); err != nil {
		return fmt.Errorf("add: %v", err)
	}

	var slot int
	if c.size < c.maxCapacity {
		slot = c.size
		c.size++
	} else {
		slot = c.remover.choose(c)
	}
	c.store(slot, t)
	return nil
}

// store writes t into the parallel caches at the given slot
func (c *cache) store(slot int, t Transition) {
	cfg := c.cfg
	copy(c.obsCache[slot*cfg.ObsDims:], t.Obs)
	copy(c.nextObsCache[slot*cfg.ObsDims:], t.NextObs)

	streams := len(cfg.StreamNames)
	copy(c.rewardCache[slot*streams:], t.Rewards)
	c.doneCache[slot] = t.Done

	if cfg.ActionSpace.Continuous() {
		copy(c.contActionCache[slot*cfg.ActionSpace.Dims():],
			t.ContinuousAction)
	} else {
		copy(c.discActionCache[slot*cfg.ActionSpace.NumBranches():],
			t.DiscreteAction)

		total := cfg.ActionSpace.TotalSize()
		if t.ActionMask == nil {
			for i := 0; i < total; i++ {
				c.maskCache[slot*total+i] = 1.0
			}
		} else {
			copy(c.maskCache[slot*total:], t.ActionMask)
		}
	}
	if cfg.UseRecurrent {
		copy(c.memoryCache[slot*cfg.MemorySize:], t.Memory)
	}
}

// validate checks t against the configuration the buffer was built for
func (c *cache) validate(t Transition) error {
	cfg := c.cfg
	if len(t.Obs) != cfg.ObsDims || len(t.NextObs) != cfg.ObsDims {
		return fmt.Errorf("invalid observation size \n\twant(%v) "+
			"\n\thave(%v, %v)", cfg.ObsDims, len(t.Obs), len(t.NextObs))
	}
	if len(t.Rewards) != len(cfg.StreamNames) {
		return fmt.Errorf("one reward is required per stream "+
			"\n\twant(%v) \n\thave(%v)", len(cfg.StreamNames),
			len(t.Rewards))
	}
	if cfg.ActionSpace.Continuous() {
		if len(t.ContinuousAction) != cfg.ActionSpace.Dims() {
			return fmt.Errorf("invalid action size \n\twant(%v) "+
				"\n\thave(%v)", cfg.ActionSpace.Dims(),
				len(t.ContinuousAction))
		}
	} else {
		if len(t.DiscreteAction) != cfg.ActionSpace.NumBranches() {
			return fmt.Errorf("one action index is required per branch "+
				"\n\twant(%v) \n\thave(%v)", cfg.ActionSpace.NumBranches(),
				len(t.DiscreteAction))
		}
		total := cfg.ActionSpace.TotalSize()
		if t.ActionMask != nil && len(t.ActionMask) != total {
			return fmt.Errorf("invalid action mask size \n\twant(%v) "+
				"\n\thave(%v)", total, len(t.ActionMask))
		}
	}
	if cfg.UseRecurrent && len(t.Memory) != cfg.MemorySize {
		return fmt.Errorf("invalid memory size \n\twant(%v) "+
			"\n\thave(%v)", cfg.MemorySize, len(t.Memory))
	}
	return nil
}

// Sample draws a minibatch chosen by the sampler
func (c *cache) Sample() (sac.Batch, error) {
	if c.size < c.minCapacity {
		return sac.Batch{}, fmt.Errorf("sample: buffer below min "+
			"capacity \n\twant(≥%v) \n\thave(%v)", c.minCapacity, c.size)
	}

	cfg := c.cfg
	batchSize := c.sampler.BatchSize()
	streams := len(cfg.StreamNames)

	batch := sac.Batch{
		Obs:     make([]float64, batchSize*cfg.ObsDims),
		NextObs: make([]float64, batchSize*cfg.ObsDims),
		Rewards: make([][]float64, streams),
		Dones:   make([]float64, batchSize),
		Masks:   make([]float64, batchSize),
	}
	for i := range batch.Rewards {
		batch.Rewards[i] = make([]float64, batchSize)
	}
	if cfg.ActionSpace.Continuous() {
		batch.ContinuousActions = make([]float64,
			batchSize*cfg.ActionSpace.Dims())
	} else {
		batch.DiscreteActions = make([]int,
			batchSize*cfg.ActionSpace.NumBranches())
		batch.ActionMasks = make([]float64,
			batchSize*cfg.ActionSpace.TotalSize())
	}
	if cfg.UseRecurrent {
		batch.Memories = make([]float64, batchSize*cfg.MemorySize)
	}

	for i := 0; i < batchSize; i++ {
		slot := c.sampler.choose(c)

		copy(batch.Obs[i*cfg.ObsDims:(i+1)*cfg.ObsDims],
			c.obsCache[slot*cfg.ObsDims:])
		copy(batch.NextObs[i*cfg.ObsDims:(i+1)*cfg.ObsDims],
			c.nextObsCache[slot*cfg.ObsDims:])
		for s := 0; s < streams; s++ {
			batch.Rewards[s][i] = c.rewardCache[slot*streams+s]
		}
		batch.Dones[i] = c.doneCache[slot]
		batch.Masks[i] = 1.0

		if cfg.ActionSpace.Continuous() {
			dims := cfg.ActionSpace.Dims()
			copy(batch.ContinuousActions[i*dims:(i+1)*dims],
				c.contActionCache[slot*dims:])
		} else {
			branches := cfg.ActionSpace.NumBranches()
			copy(batch.DiscreteActions[i*branches:(i+1)*branches],
				c.discActionCache[slot*branches:])
			total := cfg.ActionSpace.TotalSize()
			copy(batch.ActionMasks[i*total:(i+1)*total],
				c.maskCache[slot*total:])
		}
		if cfg.UseRecurrent {
			copy(batch.Memories[i*cfg.MemorySize:(i+1)*cfg.MemorySize],
				c.memoryCache[slot*cfg.MemorySize:])
		}
	}
	return batch, nil
}

// Capacity returns the current number of stored transitions
func (c *cache) Capacity() int {
	return c.size
}

// MaxCapacity returns the maximum number of stored transitions
func (c *cache) MaxCapacity() int {
	return c.maxCapacity
}

// MinCapacity returns the number of transitions required before the
// buffer can be sampled.
func (c *cache) MinCapacity() int {
	return c.minCapacity
}

// BatchSize returns the number of transitions per sampled batch
func (c *cache) BatchSize() int {
	return c.sampler.BatchSize()
}
