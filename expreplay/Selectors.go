package expreplay

import (
	"golang.org/x/exp/rand"
)

// Selector implements functionality for choosing which buffer slot an
// operation acts on: removers choose the slot an insert overwrites
// when the buffer is full, samplers choose the slots a minibatch draws
// from.
type Selector interface {
	// choose selects one buffer slot
	choose(c *cache) int

	// BatchSize returns the number of transitions per sampled batch.
	// It is only meaningful for samplers.
	BatchSize() int

	// registerAsRemover registers a Selector as a remover. Some
	// Selectors behave differently as removers, so they are notified
	// when they become one.
	registerAsRemover()
}

// uniformSelector is a Selector which selects slots uniformly randomly
type uniformSelector struct {
	samples int
	rng     *rand.Rand
}

// NewUniformSelector returns a new Selector which selects slots
// uniformly randomly from the stored transitions.
func NewUniformSelector(samples int, seed uint64) Selector {
	return &uniformSelector{
		samples: samples,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// registerAsRemover implements Selector interface
func (u *uniformSelector) registerAsRemover() {}

// BatchSize returns the number of transitions per sampled batch
func (u *uniformSelector) BatchSize() int {
	return u.samples
}

// choose selects a uniformly random stored slot
func (u *uniformSelector) choose(c *cache) int {
	return u.rng.Intn(c.Capacity())
}

// fifoSelector is a Selector which selects slots first-in first-out.
// As a remover it cycles through the buffer, evicting the oldest
// transition first.
type fifoSelector struct {
	samples int
	remover bool
	cursor  int
}

// NewFifoSelector returns a new Selector which selects slots first-in
// first-out.
func NewFifoSelector(samples int) Selector {
	return &fifoSelector{samples: samples}
}

// registerAsRemover implements Selector interface
func (f *fifoSelector) registerAsRemover() {
	f.remover = true
}

// BatchSize returns the number of transitions per sampled batch
func (f *fifoSelector) BatchSize() int {
	return f.samples
}

// choose selects the oldest slot and advances the cursor
func (f *fifoSelector) choose(c *cache) int {
	slot := f.cursor
	f.cursor = (f.cursor + 1) % c.MaxCapacity()
	return slot
}
