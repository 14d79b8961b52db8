package expreplay

import (
	"testing"

	"github.com/samuelfneumann/gosac/initwfn"
	"github.com/samuelfneumann/gosac/sac"
)

func testConfig(t *testing.T, space sac.ActionSpace) sac.Config {
	t.Helper()
	init, err := initwfn.NewGlorotN(1.0)
	if err != nil {
		t.Fatal(err)
	}
	return sac.Config{
		ObsDims:           2,
		ActionSpace:       space,
		StreamNames:       []string{"extrinsic", "curiosity"},
		Gammas:            []float64{0.99, 0.9},
		HiddenSize:        8,
		NumLayers:         1,
		BatchSize:         2,
		LearningRate:      3e-4,
		FinalLearningRate: 1e-10,
		MaxSteps:          1000,
		Tau:               0.005,
		InitEntCoef:       1.0,
		InitWFn:           init,
		Seed:              7,
	}
}

func transition(obs float64, space sac.ActionSpace) Transition {
	t := Transition{
		Obs:     []float64{obs, obs},
		NextObs: []float64{obs + 1, obs + 1},
		Rewards: []float64{obs, -obs},
	}
	if space.Continuous() {
		t.ContinuousAction = make([]float64, space.Dims())
	} else {
		t.DiscreteAction = make([]int, space.NumBranches())
	}
	return t
}

func TestBufferGatesOnMinCapacity(t *testing.T) {
	cfg := testConfig(t, sac.NewContinuous(2))
	buffer, err := New(NewFifoSelector(1), NewUniformSelector(2, 3), 3, 10,
		cfg)
	if err != nil {
		t.Fatal(err)
	}

	if err := buffer.Add(transition(1.0, cfg.ActionSpace)); err != nil {
		t.Fatal(err)
	}
	if _, err := buffer.Sample(); err == nil {
		t.Error("expected an error sampling below min capacity")
	}

	for i := 2; i <= 3; i++ {
		err := buffer.Add(transition(float64(i), cfg.ActionSpace))
		if err != nil {
			t.Fatal(err)
		}
	}
	batch, err := buffer.Sample()
	if err != nil {
		t.Fatal(err)
	}
	if batch.Size() != cfg.BatchSize {
		t.Errorf("invalid batch size \n\twant(%v) \n\thave(%v)",
			cfg.BatchSize, batch.Size())
	}
	if len(batch.Rewards) != len(cfg.StreamNames) {
		t.Errorf("invalid number of reward streams \n\twant(%v) "+
			"\n\thave(%v)", len(cfg.StreamNames), len(batch.Rewards))
	}
	for i := range batch.Masks {
		if batch.Masks[i] != 1.0 {
			t.Errorf("sampled transition %v is masked out", i)
		}
	}
}

func TestBufferEvictsOldestFirst(t *testing.T) {
	cfg := testConfig(t, sac.NewContinuous(2))
	cfg.BatchSize = 1
	buffer, err := New(NewFifoSelector(1), NewFifoSelector(1), 1, 2, cfg)
	if err != nil {
		t.Fatal(err)
	}

	for i := 1; i <= 3; i++ {
		err := buffer.Add(transition(float64(i), cfg.ActionSpace))
		if err != nil {
			t.Fatal(err)
		}
	}
	if buffer.Capacity() != 2 {
		t.Fatalf("invalid capacity \n\twant(%v) \n\thave(%v)", 2,
			buffer.Capacity())
	}

	// Slot 0 held the first transition until the third insert evicted
	// it; the fifo sampler starts at slot 0.
	batch, err := buffer.Sample()
	if err != nil {
		t.Fatal(err)
	}
	if batch.Obs[0] != 3.0 {
		t.Errorf("oldest transition was not evicted \n\twant(%v) "+
			"\n\thave(%v)", 3.0, batch.Obs[0])
	}
}

func TestBufferStoresDiscreteMasks(t *testing.T) {
	cfg := testConfig(t, sac.NewDiscrete([]int{2, 3}))
	cfg.BatchSize = 1
	buffer, err := New(NewFifoSelector(1), NewFifoSelector(1), 1, 4, cfg)
	if err != nil {
		t.Fatal(err)
	}

	// A nil action mask defaults to all actions available
	if err := buffer.Add(transition(1.0, cfg.ActionSpace)); err != nil {
		t.Fatal(err)
	}
	batch, err := buffer.Sample()
	if err != nil {
		t.Fatal(err)
	}
	for i, m := range batch.ActionMasks {
		if m != 1.0 {
			t.Errorf("default action mask not fully available at "+
				"index %v: %v", i, m)
		}
	}
}

func TestBufferRejectsInvalidTransitions(t *testing.T) {
	cfg := testConfig(t, sac.NewContinuous(2))
	buffer, err := New(NewFifoSelector(1), NewUniformSelector(2, 3), 1, 4,
		cfg)
	if err != nil {
		t.Fatal(err)
	}

	bad := transition(1.0, cfg.ActionSpace)
	bad.Obs = bad.Obs[:1]
	if err := buffer.Add(bad); err == nil {
		t.Error("expected an error for a truncated observation")
	}

	bad = transition(1.0, cfg.ActionSpace)
	bad.Rewards = bad.Rewards[:1]
	if err := buffer.Add(bad); err == nil {
		t.Error("expected an error for missing stream rewards")
	}
}

func TestNewRejectsInvalidArguments(t *testing.T) {
	cfg := testConfig(t, sac.NewContinuous(2))
	if _, err := New(NewFifoSelector(1), NewUniformSelector(2, 3), 0, 4,
		cfg); err == nil {
		t.Error("expected an error for a non-positive min capacity")
	}
	if _, err := New(NewFifoSelector(1), NewUniformSelector(2, 3), 1, 1,
		cfg); err == nil {
		t.Error("expected an error for capacity below the batch size")
	}
	if _, err := New(NewFifoSelector(1), NewUniformSelector(4, 3), 1, 8,
		cfg); err == nil {
		t.Error("expected an error for a sampler batch size mismatch")
	}
}
