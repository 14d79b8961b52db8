package sac

import (
	"math"
	"testing"

	"github.com/samuelfneumann/gosac/initwfn"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
)

// randomBatch fills a batch with uniform random transitions
func randomBatch(cfg Config, seed uint64) Batch {
	src := rand.NewSource(seed)
	rng := distuv.Uniform{Min: -1.0, Max: 1.0, Src: src}

	batch := Batch{
		Obs:     make([]float64, cfg.BatchSize*cfg.ObsDims),
		NextObs: make([]float64, cfg.BatchSize*cfg.ObsDims),
		Rewards: make([][]float64, len(cfg.StreamNames)),
		Dones:   make([]float64, cfg.BatchSize),
		Masks:   make([]float64, cfg.BatchSize),
	}
	for i := range batch.Obs {
		batch.Obs[i] = rng.Rand()
		batch.NextObs[i] = rng.Rand()
	}
	for i := range batch.Rewards {
		batch.Rewards[i] = make([]float64, cfg.BatchSize)
		for j := range batch.Rewards[i] {
			batch.Rewards[i][j] = rng.Rand()
		}
	}
	for i := range batch.Masks {
		batch.Masks[i] = 1.0
	}
	batch.Dones[cfg.BatchSize-1] = 1.0

	if cfg.ActionSpace.Continuous() {
		batch.ContinuousActions = make([]float64,
			cfg.BatchSize*cfg.ActionSpace.Dims())
		for i := range batch.ContinuousActions {
			batch.ContinuousActions[i] = math.Tanh(rng.Rand())
		}
	} else {
		batch.DiscreteActions = make([]int,
			cfg.BatchSize*cfg.ActionSpace.NumBranches())
		for row := 0; row < cfg.BatchSize; row++ {
			for b, size := range cfg.ActionSpace.Branches() {
				index := int(rng.Rand()*0.5*float64(size) +
					0.5*float64(size))
				if index >= size {
					index = size - 1
				}
				batch.DiscreteActions[row*cfg.ActionSpace.NumBranches()+b] =
					index
			}
		}
	}
	if cfg.UseRecurrent {
		batch.Memories = make([]float64, cfg.BatchSize*cfg.MemorySize)
	}
	return batch
}

// varsEqual reports whether every positionally matching parameter pair
// holds identical values.
func varsEqual(a, b G.Nodes) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x := a[i].Value().Data().([]float64)
		y := b[i].Value().Data().([]float64)
		if len(x) != len(y) {
			return false
		}
		for j := range x {
			if x[j] != y[j] {
				return false
			}
		}
	}
	return true
}

func finiteLosses(t *testing.T, losses Losses) {
	t.Helper()
	checks := map[string]float64{
		"q1":          losses.Q1,
		"q2":          losses.Q2,
		"value":       losses.Value,
		"policy":      losses.Policy,
		"ent coef":    losses.EntCoef,
		"total value": losses.TotalValue,
	}
	for name, loss := range checks {
		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			t.Errorf("%v loss is not finite: %v", name, loss)
		}
	}
}

func TestNewSynchronizesNetworks(t *testing.T) {
	model, err := New(validConfig(t, NewContinuous(2)))
	if err != nil {
		t.Fatal(err)
	}

	if !varsEqual(model.criticNet.CriticVars, model.policyNet.CriticVars) {
		t.Error("critic replica parameters differ from the policy " +
			"network's")
	}
	if !varsEqual(model.targetNet.ValueVars, model.policyNet.ValueVars) {
		t.Error("target parameters differ from the policy network's " +
			"value parameters")
	}
}

func TestUpdateContinuous(t *testing.T) {
	cfg := validConfig(t, NewContinuous(2))
	model, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	batch := randomBatch(cfg, 11)

	losses, err := model.Update(batch)
	if err != nil {
		t.Fatal(err)
	}
	finiteLosses(t, losses)

	actions := model.SelectedActions()
	if len(actions) != cfg.BatchSize*cfg.ActionSpace.Dims() {
		t.Fatalf("invalid number of sampled actions \n\twant(%v) "+
			"\n\thave(%v)", cfg.BatchSize*cfg.ActionSpace.Dims(),
			len(actions))
	}
	for i, a := range actions {
		if a <= -1.0 || a >= 1.0 {
			t.Errorf("squashed action %v out of (-1, 1): %v", i, a)
		}
	}
	deterministic := model.DeterministicActions()
	for i, a := range deterministic {
		if a <= -1.0 || a >= 1.0 {
			t.Errorf("deterministic action %v out of (-1, 1): %v", i, a)
		}
	}

	if coefs := model.EntCoef(); len(coefs) != 1 || coefs[0] <= 0 {
		t.Errorf("invalid entropy coefficients: %v", coefs)
	}
	if entropy := model.Entropy(); math.IsNaN(entropy) {
		t.Error("policy entropy is NaN")
	}

	estimates := model.ValueEstimates()
	for _, name := range cfg.StreamNames {
		if len(estimates[name]) != cfg.BatchSize {
			t.Errorf("invalid number of value estimates for stream %v "+
				"\n\twant(%v) \n\thave(%v)", name, cfg.BatchSize,
				len(estimates[name]))
		}
	}
	q1, q2 := model.QEstimates()
	for _, name := range cfg.StreamNames {
		if len(q1[name]) != cfg.BatchSize || len(q2[name]) != cfg.BatchSize {
			t.Errorf("invalid number of Q estimates for stream %v", name)
		}
	}

	// The critic replica is folded back after every update
	if !varsEqual(model.criticNet.CriticVars, model.policyNet.CriticVars) {
		t.Error("critic replica out of sync after an update")
	}

	// A second update on the same model must also succeed
	if losses, err = model.Update(randomBatch(cfg, 13)); err != nil {
		t.Fatal(err)
	}
	finiteLosses(t, losses)
}

func TestUpdateDiscrete(t *testing.T) {
	cfg := validConfig(t, NewDiscrete([]int{2, 3}))
	model, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	batch := randomBatch(cfg, 29)

	// Mask out the first action of the first branch everywhere
	total := cfg.ActionSpace.TotalSize()
	batch.ActionMasks = make([]float64, cfg.BatchSize*total)
	for i := range batch.ActionMasks {
		batch.ActionMasks[i] = 1.0
	}
	for row := 0; row < cfg.BatchSize; row++ {
		batch.ActionMasks[row*total] = 0.0
	}

	losses, err := model.Update(batch)
	if err != nil {
		t.Fatal(err)
	}
	finiteLosses(t, losses)

	if coefs := model.EntCoef(); len(coefs) != 2 {
		t.Errorf("expected one entropy coefficient per branch "+
			"\n\twant(%v) \n\thave(%v)", 2, len(coefs))
	}

	indices := model.SampledIndices()
	numBranches := cfg.ActionSpace.NumBranches()
	if len(indices) != cfg.BatchSize*numBranches {
		t.Fatalf("invalid number of sampled indices \n\twant(%v) "+
			"\n\thave(%v)", cfg.BatchSize*numBranches, len(indices))
	}
	branches := cfg.ActionSpace.Branches()
	for row := 0; row < cfg.BatchSize; row++ {
		for b := 0; b < numBranches; b++ {
			index := indices[row*numBranches+b]
			if index < 0 || index >= branches[b] {
				t.Errorf("sampled index %v out of range for branch %v",
					index, b)
			}
		}
		if indices[row*numBranches] == 0 {
			t.Errorf("sampled the masked-out action in row %v", row)
		}
	}
}

func TestTargetUpdates(t *testing.T) {
	cfg := validConfig(t, NewContinuous(2))
	cfg.Tau = 1.0
	model, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := model.Update(randomBatch(cfg, 31)); err != nil {
		t.Fatal(err)
	}
	if varsEqual(model.targetNet.ValueVars, model.policyNet.ValueVars) {
		t.Fatal("update left the value parameters unchanged")
	}

	// tau = 1 makes the soft update a hard copy
	if err := model.TargetSoftUpdate(); err != nil {
		t.Fatal(err)
	}
	if !varsEqual(model.targetNet.ValueVars, model.policyNet.ValueVars) {
		t.Error("full-rate soft update did not copy the value parameters")
	}

	if _, err := model.Update(randomBatch(cfg, 37)); err != nil {
		t.Fatal(err)
	}
	if err := model.TargetInit(); err != nil {
		t.Fatal(err)
	}
	if !varsEqual(model.targetNet.ValueVars, model.policyNet.ValueVars) {
		t.Error("target initialization did not copy the value parameters")
	}
}

func TestUpdateRejectsInvalidBatch(t *testing.T) {
	cfg := validConfig(t, NewContinuous(2))
	model, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	batch := randomBatch(cfg, 41)
	batch.Dones = batch.Dones[:cfg.BatchSize-1]
	if _, err := model.Update(batch); err == nil {
		t.Error("expected an error for a truncated batch")
	}
}

func TestUpdateNormalization(t *testing.T) {
	cfg := validConfig(t, NewContinuous(2))
	cfg.Normalize = true
	model, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	obs := make([]float64, 2*cfg.ObsDims)
	for i := range obs {
		obs[i] = float64(i)
	}
	if err := model.UpdateNormalization(obs); err != nil {
		t.Fatal(err)
	}
	if model.normalizer.Steps() != model.targetNormalizer.Steps() {
		t.Error("target normalizer statistics were not mirrored")
	}

	if _, err := model.Update(randomBatch(cfg, 43)); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateRecurrent(t *testing.T) {
	cfg := validConfig(t, NewContinuous(2))
	cfg.UseRecurrent = true
	cfg.MemorySize = 16
	cfg.SequenceLength = 1
	model, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	losses, err := model.Update(randomBatch(cfg, 47))
	if err != nil {
		t.Fatal(err)
	}
	finiteLosses(t, losses)

	memory := model.MemoryOut()
	if len(memory) != cfg.BatchSize*cfg.MemorySize {
		t.Errorf("invalid memory output size \n\twant(%v) \n\thave(%v)",
			cfg.BatchSize*cfg.MemorySize, len(memory))
	}
}

func TestUpdateSharedTrunk(t *testing.T) {
	cfg := validConfig(t, NewContinuous(2))
	cfg.ShareTrunk = true
	model, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	losses, err := model.Update(randomBatch(cfg, 53))
	if err != nil {
		t.Fatal(err)
	}
	finiteLosses(t, losses)
}

// TestUpdateDiscretePolicyLossAveragesBranches checks the policy loss
// against a hand computation. With all weights initialized to zero,
// every branch distribution is uniform and every Q estimate is zero,
// so the per-branch loss collapses to the branch's entropy sum
// size*(1/size)*log(1/size + eps) and the policy loss is the average
// of the two branches, not their sum.
func TestUpdateDiscretePolicyLossAveragesBranches(t *testing.T) {
	cfg := validConfig(t, NewDiscrete([]int{2, 3}))
	zeroes, err := initwfn.NewZeroes()
	if err != nil {
		t.Fatal(err)
	}
	cfg.InitWFn = zeroes

	model, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	losses, err := model.Update(randomBatch(cfg, 59))
	if err != nil {
		t.Fatal(err)
	}

	want := (math.Log(0.5+epsilon) + math.Log(1.0/3.0+epsilon)) / 2.0
	if math.Abs(losses.Policy-want) > 1e-9 {
		t.Errorf("invalid policy loss \n\twant(%v) \n\thave(%v)",
			want, losses.Policy)
	}
	sum := math.Log(0.5+epsilon) + math.Log(1.0/3.0+epsilon)
	if math.Abs(losses.Policy-sum) < 1e-9 {
		t.Error("policy loss sums branch losses instead of averaging them")
	}
}

func TestUpdateFullyMaskedBatch(t *testing.T) {
	spaces := map[string]ActionSpace{
		"continuous": NewContinuous(2),
		"discrete":   NewDiscrete([]int{2, 3}),
	}
	for name, space := range spaces {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig(t, space)
			model, err := New(cfg)
			if err != nil {
				t.Fatal(err)
			}

			batch := randomBatch(cfg, 61)
			for i := range batch.Masks {
				batch.Masks[i] = 0.0
			}
			losses, err := model.Update(batch)
			if err != nil {
				t.Fatal(err)
			}

			zeros := map[string]float64{
				"q1":          losses.Q1,
				"q2":          losses.Q2,
				"value":       losses.Value,
				"policy":      losses.Policy,
				"ent coef":    losses.EntCoef,
				"total value": losses.TotalValue,
			}
			for loss, value := range zeros {
				if value != 0.0 {
					t.Errorf("fully masked batch should yield a zero %v "+
						"loss \n\thave(%v)", loss, value)
				}
			}
		})
	}
}

func TestParameterGroupAccessors(t *testing.T) {
	cfg := validConfig(t, NewContinuous(2))
	model, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	policy := model.PolicyVars()
	value := model.ValueVars()
	q := model.QVars()
	critic := model.CriticVars()
	if len(policy) == 0 || len(value) == 0 || len(q) == 0 {
		t.Fatalf("empty parameter group \n\thave(policy %v, value %v, "+
			"q %v)", len(policy), len(value), len(q))
	}
	if len(critic) != len(value)+len(q) {
		t.Fatalf("critic group should be the value group followed by "+
			"the Q group \n\twant(%v) \n\thave(%v)", len(value)+len(q),
			len(critic))
	}
	for i, node := range value {
		if critic[i] != node {
			t.Fatalf("critic group does not start with the value group "+
				"at position %v", i)
		}
	}
	for i, node := range q {
		if critic[len(value)+i] != node {
			t.Fatalf("critic group does not end with the Q group at "+
				"position %v", i)
		}
	}
}
