package sac

import (
	"fmt"

	"github.com/samuelfneumann/gosac/solver"
	"github.com/samuelfneumann/gosac/utils/floatutils"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distmv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Losses holds the scalar losses of one SAC update
type Losses struct {
	Q1         float64
	Q2         float64
	Value      float64
	Policy     float64
	EntCoef    float64
	TotalValue float64
}

// SAC implements the learning core of a Soft Actor-Critic agent. It
// owns three Network instances (the policy network with the actor, a
// critic replica trained by the value-side loss, and the target
// network that computes bootstrap values), the entropy coefficient
// tuner, and one decayed-Adam solver per loss.
//
// Each Update performs one forward pass of all networks from a
// consistent parameter snapshot, then applies the policy, value-side,
// and entropy-coefficient optimizer steps in that fixed order.
type SAC struct {
	cfg Config

	policyNet *Network
	criticNet *Network
	targetNet *Network

	pOps  *policyOps
	cOps  *criticOps
	tuner *entropyTuner

	policyVM G.VM
	criticVM G.VM
	targetVM G.VM

	policySolver *solver.Solver
	criticSolver *solver.Solver

	targetValueVal G.Value
	policyMemVal   G.Value
	valueVals      map[string]*G.Value
	valueVal       G.Value

	normalizer       *Normalizer
	targetNormalizer *Normalizer

	source    rand.Source
	noiseDist *distmv.Normal

	losses      Losses
	entropyStat float64

	continuousActions    []float64
	deterministicActions []float64
	discreteActions      []int
	memoryOut            []float64
}

// New returns a new SAC model for the given configuration. The target
// network starts as an exact copy of the policy network's value
// parameters.
func New(cfg Config) (*SAC, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("sac: %v", err)
	}

	policyNet, err := newNetwork(cfg, policyNetwork)
	if err != nil {
		return nil, fmt.Errorf("sac: could not construct policy "+
			"network: %v", err)
	}
	criticNet, err := newNetwork(cfg, criticNetwork)
	if err != nil {
		return nil, fmt.Errorf("sac: could not construct critic "+
			"network: %v", err)
	}
	targetNet, err := newNetwork(cfg, targetNetwork)
	if err != nil {
		return nil, fmt.Errorf("sac: could not construct target "+
			"network: %v", err)
	}

	pOps, err := addPolicyOps(policyNet, cfg)
	if err != nil {
		return nil, fmt.Errorf("sac: %v", err)
	}
	cOps, err := addCriticOps(criticNet, cfg)
	if err != nil {
		return nil, fmt.Errorf("sac: %v", err)
	}
	tuner, err := newEntropyTuner(cfg)
	if err != nil {
		return nil, fmt.Errorf("sac: %v", err)
	}

	s := &SAC{
		cfg:       cfg,
		policyNet: policyNet,
		criticNet: criticNet,
		targetNet: targetNet,
		pOps:      pOps,
		cOps:      cOps,
		tuner:     tuner,
		valueVals: make(map[string]*G.Value, len(cfg.StreamNames)),
		source:    rand.NewSource(cfg.Seed),
	}

	// Value estimates of the policy network, per stream and averaged
	for _, name := range cfg.StreamNames {
		val := new(G.Value)
		G.Read(policyNet.valueHeads[name], val)
		s.valueVals[name] = val
	}
	G.Read(policyNet.value, &s.valueVal)
	G.Read(targetNet.value, &s.targetValueVal)
	if cfg.UseRecurrent {
		G.Read(policyNet.memoryOut, &s.policyMemVal)
	}

	if _, err := G.Grad(pOps.policyLoss,
		policyNet.PolicyVars...); err != nil {
		return nil, fmt.Errorf("sac: could not compute policy "+
			"gradient: %v", err)
	}
	s.policyVM = G.NewTapeMachine(policyNet.g,
		G.BindDualValues(policyNet.PolicyVars...))

	if _, err := G.Grad(cOps.totalValueLoss,
		criticNet.CriticVars...); err != nil {
		return nil, fmt.Errorf("sac: could not compute value "+
			"gradient: %v", err)
	}
	s.criticVM = G.NewTapeMachine(criticNet.g,
		G.BindDualValues(criticNet.CriticVars...))

	s.targetVM = G.NewTapeMachine(targetNet.g)

	s.policySolver, err = solver.NewDecayedAdam(cfg.LearningRate,
		cfg.FinalLearningRate, cfg.MaxSteps)
	if err != nil {
		return nil, fmt.Errorf("sac: %v", err)
	}
	s.criticSolver, err = solver.NewDecayedAdam(cfg.LearningRate,
		cfg.FinalLearningRate, cfg.MaxSteps)
	if err != nil {
		return nil, fmt.Errorf("sac: %v", err)
	}

	// The critic replica trains the critic parameters; it must start
	// from, and stay identical to, the policy network's critic.
	if err := copyVars(criticNet.CriticVars,
		policyNet.CriticVars); err != nil {
		return nil, fmt.Errorf("sac: could not initialize critic "+
			"replica: %v", err)
	}
	if err := s.TargetInit(); err != nil {
		return nil, fmt.Errorf("sac: %v", err)
	}

	if cfg.Normalize {
		s.normalizer = NewNormalizer(cfg.ObsDims)
		s.targetNormalizer = NewNormalizer(cfg.ObsDims)
	}

	if cfg.ActionSpace.Continuous() {
		dims := cfg.ActionSpace.Dims()
		mu := make([]float64, dims)
		sigma := mat.NewSymDense(dims, nil)
		for i := 0; i < dims; i++ {
			sigma.SetSym(i, i, 1.0)
		}
		var ok bool
		s.noiseDist, ok = distmv.NewNormal(mu, sigma, s.source)
		if !ok {
			return nil, fmt.Errorf("sac: could not construct noise " +
				"distribution")
		}
	}

	return s, nil
}

// Update performs one SAC training step on the batch: a forward pass
// of all networks from a consistent snapshot, then the policy,
// value-side, and entropy-coefficient optimizer steps in that fixed
// order. The returned losses are those of this step. Update does not
// touch the target network; callers invoke TargetSoftUpdate after each
// Update.
func (s *SAC) Update(batch Batch) (Losses, error) {
	if err := batch.validate(s.cfg); err != nil {
		return Losses{}, fmt.Errorf("update: %v", err)
	}

	cfg := s.cfg
	batchSize := cfg.BatchSize
	obs := batch.Obs
	nextObs := batch.NextObs
	if cfg.Normalize {
		obs = s.normalizer.Normalize(obs)
		nextObs = s.targetNormalizer.Normalize(nextObs)
	}

	targetValue, err := s.targetForward(nextObs, batch)
	if err != nil {
		return Losses{}, fmt.Errorf("update: %v", err)
	}

	coefs := s.tuner.coefficients()
	read, err := s.policyForward(obs, batch, coefs)
	if err != nil {
		return Losses{}, fmt.Errorf("update: %v", err)
	}

	// Policy optimizer step. The critic replica shares no parameters
	// with the actor, so the value-side gradients below still come
	// from the same snapshot.
	model := G.NodesToValueGrads(s.policyNet.PolicyVars)
	if err := s.policySolver.Step(model); err != nil {
		return Losses{}, fmt.Errorf("update: could not step policy "+
			"solver: %v", err)
	}
	s.policyVM.Reset()

	vBackups, entropySums := s.backups(read, coefs)

	if err := s.criticForward(obs, batch, targetValue,
		vBackups); err != nil {
		return Losses{}, fmt.Errorf("update: %v", err)
	}
	model = G.NodesToValueGrads(s.criticNet.CriticVars)
	if err := s.criticSolver.Step(model); err != nil {
		return Losses{}, fmt.Errorf("update: could not step value "+
			"solver: %v", err)
	}
	s.criticVM.Reset()

	if err := s.tuner.step(entropySums,
		floatutils.Duplicate(batch.Masks)); err != nil {
		return Losses{}, fmt.Errorf("update: %v", err)
	}

	// Fold the freshly trained critic back into the policy network so
	// the next forward pass sees it.
	if err := copyVars(s.policyNet.CriticVars,
		s.criticNet.CriticVars); err != nil {
		return Losses{}, fmt.Errorf("update: could not synchronize "+
			"critic parameters: %v", err)
	}

	s.losses = Losses{
		Q1:         scalarValue(s.cOps.q1LossVal),
		Q2:         scalarValue(s.cOps.q2LossVal),
		Value:      scalarValue(s.cOps.valueLossVal),
		Policy:     scalarValue(s.pOps.policyLossVal),
		EntCoef:    s.tuner.lossValue(),
		TotalValue: scalarValue(s.cOps.totalLossVal),
	}

	if cfg.ActionSpace.Continuous() {
		s.entropyStat = stat.Mean(read.entropy, nil)
		s.continuousActions = read.actions
		s.deterministicActions = read.deterministic
	} else {
		s.entropyStat = discreteEntropy(read.logProbs, batchSize)
		s.discreteActions = sampleBranches(read.probs, cfg.ActionSpace,
			batchSize, s.source)
	}
	if cfg.UseRecurrent && s.policyMemVal != nil {
		s.memoryOut = denseData(s.policyMemVal)
	}

	return s.losses, nil
}

// policyReads collects the values read out of the policy network's
// forward pass. Everything here is detached from the gradient graph.
type policyReads struct {
	logProbs      []float64 // (batch, 1) or (batch, TotalSize())
	probs         []float64 // discrete
	actions       []float64 // continuous
	deterministic []float64 // continuous
	entropy       []float64 // continuous
	minQs         map[string][]float64
}

// targetForward evaluates the target network on the next observations
// and returns the bootstrap values, one per sample.
func (s *SAC) targetForward(nextObs []float64,
	batch Batch) ([]float64, error) {
	cfg := s.cfg
	obsTensor := tensor.New(
		tensor.WithBacking(floatutils.Duplicate(nextObs)),
		tensor.WithShape(cfg.BatchSize, cfg.ObsDims),
	)
	if err := G.Let(s.targetNet.obs, obsTensor); err != nil {
		return nil, fmt.Errorf("targetForward: could not set "+
			"observations: %v", err)
	}

	if cfg.UseRecurrent {
		sub := cfg.MemorySize / 4
		backing := make([]float64, cfg.BatchSize*sub)
		for row := 0; row < cfg.BatchSize; row++ {
			copy(backing[row*sub:(row+1)*sub],
				batch.Memories[row*cfg.MemorySize:row*cfg.MemorySize+sub])
		}
		memTensor := tensor.New(
			tensor.WithBacking(backing),
			tensor.WithShape(cfg.BatchSize, sub),
		)
		if err := G.Let(s.targetNet.memoryIn, memTensor); err != nil {
			return nil, fmt.Errorf("targetForward: could not set "+
				"memory: %v", err)
		}
	}

	if err := s.targetVM.RunAll(); err != nil {
		return nil, fmt.Errorf("targetForward: could not run target "+
			"network: %v", err)
	}
	defer s.targetVM.Reset()

	return denseData(s.targetValueVal), nil
}

// policyForward runs the policy network's forward and backward pass on
// the batch and returns the values the rest of the update needs.
func (s *SAC) policyForward(obs []float64, batch Batch,
	coefs []float64) (*policyReads, error) {
	cfg := s.cfg
	batchSize := cfg.BatchSize

	obsTensor := tensor.New(
		tensor.WithBacking(floatutils.Duplicate(obs)),
		tensor.WithShape(batchSize, cfg.ObsDims),
	)
	if err := G.Let(s.policyNet.obs, obsTensor); err != nil {
		return nil, fmt.Errorf("policyForward: could not set "+
			"observations: %v", err)
	}

	maskTensor := tensor.New(
		tensor.WithBacking(floatutils.Duplicate(batch.Masks)),
		tensor.WithShape(batchSize),
	)
	if err := G.Let(s.pOps.mask, maskTensor); err != nil {
		return nil, fmt.Errorf("policyForward: could not set loss "+
			"masks: %v", err)
	}

	if cfg.UseRecurrent {
		memTensor := tensor.New(
			tensor.WithBacking(floatutils.Duplicate(batch.Memories)),
			tensor.WithShape(batchSize, cfg.MemorySize),
		)
		if err := G.Let(s.policyNet.memoryIn, memTensor); err != nil {
			return nil, fmt.Errorf("policyForward: could not set "+
				"memory: %v", err)
		}
	}

	if cfg.ActionSpace.Continuous() {
		if err := G.Let(s.pOps.entCoef, coefs[0]); err != nil {
			return nil, fmt.Errorf("policyForward: could not set entropy "+
				"coefficient: %v", err)
		}

		dims := cfg.ActionSpace.Dims()
		noise := make([]float64, batchSize*dims)
		for row := 0; row < batchSize; row++ {
			s.noiseDist.Rand(noise[row*dims : (row+1)*dims])
		}
		noiseTensor := tensor.New(
			tensor.WithBacking(noise),
			tensor.WithShape(batchSize, dims),
		)
		if err := G.Let(s.policyNet.cActor.noise, noiseTensor); err != nil {
			return nil, fmt.Errorf("policyForward: could not set "+
				"noise: %v", err)
		}
	} else {
		coefTensor := tensor.New(
			tensor.WithBacking(floatutils.Duplicate(coefs)),
			tensor.WithShape(len(coefs)),
		)
		if err := G.Let(s.pOps.entCoef, coefTensor); err != nil {
			return nil, fmt.Errorf("policyForward: could not set entropy "+
				"coefficients: %v", err)
		}

		masks := batch.ActionMasks
		if masks == nil {
			masks = floatutils.Ones(batchSize * cfg.ActionSpace.TotalSize())
		}
		maskTensor := tensor.New(
			tensor.WithBacking(floatutils.Duplicate(masks)),
			tensor.WithShape(batchSize, cfg.ActionSpace.TotalSize()),
		)
		if err := G.Let(s.policyNet.dActor.actionMasks,
			maskTensor); err != nil {
			return nil, fmt.Errorf("policyForward: could not set action "+
				"masks: %v", err)
		}
	}

	if err := s.policyVM.RunAll(); err != nil {
		return nil, fmt.Errorf("policyForward: could not run policy "+
			"network: %v", err)
	}

	read := &policyReads{
		logProbs: denseData(s.pOps.logProbsVal),
		minQs:    make(map[string][]float64, len(cfg.StreamNames)),
	}
	for _, name := range cfg.StreamNames {
		read.minQs[name] = denseData(*s.pOps.minQVals[name])
	}
	if cfg.ActionSpace.Continuous() {
		read.actions = denseData(s.pOps.actionVal)
		read.deterministic = denseData(s.pOps.detActionVal)
		read.entropy = denseData(s.pOps.entropyVal)
	} else {
		read.probs = denseData(s.pOps.probsVal)
	}
	return read, nil
}

// backups computes the gradient-blocked regression targets of the
// value loss and the entropy-coefficient loss from the policy forward
// pass: per-stream value backups min(Q1,Q2) - entropy bonus, and the
// per-sample log-probability sums shifted by the target entropy.
func (s *SAC) backups(read *policyReads,
	coefs []float64) (map[string][]float64, []float64) {
	cfg := s.cfg
	batchSize := cfg.BatchSize
	targets := cfg.ActionSpace.TargetEntropy()

	vBackups := make(map[string][]float64, len(cfg.StreamNames))
	var entropySums []float64

	if cfg.ActionSpace.Continuous() {
		bonus := make([]float64, batchSize)
		entropySums = make([]float64, batchSize)
		for i := 0; i < batchSize; i++ {
			bonus[i] = coefs[0] * read.logProbs[i]
			entropySums[i] = read.logProbs[i] + targets[0]
		}
		for _, name := range cfg.StreamNames {
			backup := make([]float64, batchSize)
			for i := 0; i < batchSize; i++ {
				backup[i] = read.minQs[name][i] - bonus[i]
			}
			vBackups[name] = backup
		}
		return vBackups, entropySums
	}

	space := cfg.ActionSpace
	offsets := space.Offsets()
	numBranches := space.NumBranches()
	width := space.TotalSize()

	// Per-branch log-probability sums per sample
	branchSums := make([]float64, batchSize*numBranches)
	for i := 0; i < batchSize; i++ {
		for b := 0; b < numBranches; b++ {
			sum := 0.0
			for a := offsets[b]; a < offsets[b+1]; a++ {
				sum += read.logProbs[i*width+a]
			}
			branchSums[i*numBranches+b] = sum
		}
	}

	entropySums = make([]float64, batchSize*numBranches)
	bonus := make([]float64, batchSize)
	for i := 0; i < batchSize; i++ {
		branchBonus := 0.0
		for b := 0; b < numBranches; b++ {
			sum := branchSums[i*numBranches+b]
			entropySums[i*numBranches+b] = sum + targets[b]
			branchBonus += coefs[b] * sum
		}
		bonus[i] = branchBonus / float64(numBranches)
	}

	for _, name := range cfg.StreamNames {
		backup := make([]float64, batchSize)
		for i := 0; i < batchSize; i++ {
			backup[i] = read.minQs[name][i] - bonus[i]
		}
		vBackups[name] = backup
	}
	return vBackups, entropySums
}

// criticForward runs the critic network's forward and backward pass
func (s *SAC) criticForward(obs []float64, batch Batch,
	targetValue []float64, vBackups map[string][]float64) error {
	cfg := s.cfg
	batchSize := cfg.BatchSize

	obsTensor := tensor.New(
		tensor.WithBacking(floatutils.Duplicate(obs)),
		tensor.WithShape(batchSize, cfg.ObsDims),
	)
	if err := G.Let(s.criticNet.obs, obsTensor); err != nil {
		return fmt.Errorf("criticForward: could not set "+
			"observations: %v", err)
	}

	var actions []float64
	var actionWidth int
	if cfg.ActionSpace.Continuous() {
		actions = floatutils.Duplicate(batch.ContinuousActions)
		actionWidth = cfg.ActionSpace.Dims()
	} else {
		var err error
		actions, err = cfg.ActionSpace.OneHot(batch.DiscreteActions,
			batchSize)
		if err != nil {
			return fmt.Errorf("criticForward: %v", err)
		}
		actionWidth = cfg.ActionSpace.TotalSize()
	}
	actionTensor := tensor.New(
		tensor.WithBacking(actions),
		tensor.WithShape(batchSize, actionWidth),
	)
	if err := G.Let(s.criticNet.extActions, actionTensor); err != nil {
		return fmt.Errorf("criticForward: could not set actions: %v", err)
	}

	doneTensor := tensor.New(
		tensor.WithBacking(floatutils.Duplicate(batch.Dones)),
		tensor.WithShape(batchSize, 1),
	)
	if err := G.Let(s.cOps.dones, doneTensor); err != nil {
		return fmt.Errorf("criticForward: could not set dones: %v", err)
	}

	targetTensor := tensor.New(
		tensor.WithBacking(floatutils.Duplicate(targetValue)),
		tensor.WithShape(batchSize, 1),
	)
	if err := G.Let(s.cOps.targetValue, targetTensor); err != nil {
		return fmt.Errorf("criticForward: could not set target "+
			"values: %v", err)
	}

	maskTensor := tensor.New(
		tensor.WithBacking(floatutils.Duplicate(batch.Masks)),
		tensor.WithShape(batchSize),
	)
	if err := G.Let(s.cOps.mask, maskTensor); err != nil {
		return fmt.Errorf("criticForward: could not set loss masks: %v",
			err)
	}

	for i, name := range cfg.StreamNames {
		rewardTensor := tensor.New(
			tensor.WithBacking(floatutils.Duplicate(batch.Rewards[i])),
			tensor.WithShape(batchSize, 1),
		)
		if err := G.Let(s.cOps.rewards[name], rewardTensor); err != nil {
			return fmt.Errorf("criticForward: could not set rewards of "+
				"stream %v: %v", name, err)
		}

		backupTensor := tensor.New(
			tensor.WithBacking(vBackups[name]),
			tensor.WithShape(batchSize, 1),
		)
		if err := G.Let(s.cOps.vBackups[name], backupTensor); err != nil {
			return fmt.Errorf("criticForward: could not set value backup "+
				"of stream %v: %v", name, err)
		}
	}

	if cfg.UseRecurrent {
		memTensor := tensor.New(
			tensor.WithBacking(floatutils.Duplicate(batch.Memories)),
			tensor.WithShape(batchSize, cfg.MemorySize),
		)
		if err := G.Let(s.criticNet.memoryIn, memTensor); err != nil {
			return fmt.Errorf("criticForward: could not set memory: %v",
				err)
		}
	}

	if err := s.criticVM.RunAll(); err != nil {
		return fmt.Errorf("criticForward: could not run critic "+
			"network: %v", err)
	}
	return nil
}

// TargetInit hard-copies the policy network's value parameters into
// the target network. It is invoked once at construction and may be
// invoked again to reset the target.
func (s *SAC) TargetInit() error {
	err := copyVars(s.targetNet.ValueVars, s.policyNet.ValueVars)
	if err != nil {
		return fmt.Errorf("targetInit: %v", err)
	}
	return nil
}

// TargetSoftUpdate blends the target network's value parameters toward
// the policy network's with the configured Polyak rate.
func (s *SAC) TargetSoftUpdate() error {
	err := polyakVars(s.targetNet.ValueVars, s.policyNet.ValueVars,
		s.cfg.Tau)
	if err != nil {
		return fmt.Errorf("targetSoftUpdate: %v", err)
	}
	return nil
}

// UpdateNormalization folds the observations into the running
// normalization statistics and mirrors the updated statistics to the
// target network.
func (s *SAC) UpdateNormalization(obs []float64) error {
	if !s.cfg.Normalize {
		return nil
	}
	if err := s.normalizer.Update(obs); err != nil {
		return fmt.Errorf("updateNormalization: %v", err)
	}
	if err := s.targetNormalizer.CopyFrom(s.normalizer); err != nil {
		return fmt.Errorf("updateNormalization: %v", err)
	}
	return nil
}

// EntCoef returns the current entropy coefficients: one value for
// continuous action spaces, one per branch for discrete spaces.
func (s *SAC) EntCoef() []float64 {
	return s.tuner.coefficients()
}

// Entropy returns the mean policy entropy of the last Update
func (s *SAC) Entropy() float64 {
	return s.entropyStat
}

// SelectedActions returns the actions the actor sampled during the
// last Update: batch x Dims() squashed continuous actions, detached
// from the gradient graph. It panics on discrete action spaces.
func (s *SAC) SelectedActions() []float64 {
	if !s.cfg.ActionSpace.Continuous() {
		panic("selectedActions: discrete action spaces sample indices, " +
			"use SampledIndices")
	}
	return floatutils.Duplicate(s.continuousActions)
}

// DeterministicActions returns tanh of the actor's predicted mean from
// the last Update. It panics on discrete action spaces.
func (s *SAC) DeterministicActions() []float64 {
	if !s.cfg.ActionSpace.Continuous() {
		panic("deterministicActions: no deterministic action for " +
			"discrete action spaces")
	}
	return floatutils.Duplicate(s.deterministicActions)
}

// SampledIndices returns the per-branch action indices sampled from
// the masked policy during the last Update, batch x NumBranches()
// values. It panics on continuous action spaces.
func (s *SAC) SampledIndices() []int {
	if s.cfg.ActionSpace.Continuous() {
		panic("sampledIndices: continuous action spaces sample real " +
			"vectors, use SelectedActions")
	}
	indices := make([]int, len(s.discreteActions))
	copy(indices, s.discreteActions)
	return indices
}

// ValueEstimates returns the policy network's per-stream value
// estimates of the last Update, one value per sample.
func (s *SAC) ValueEstimates() map[string][]float64 {
	estimates := make(map[string][]float64, len(s.valueVals))
	for name, val := range s.valueVals {
		if *val != nil {
			estimates[name] = denseData(*val)
		}
	}
	return estimates
}

// QEstimates returns the critic's per-stream twin Q estimates at the
// executed actions from the last Update.
func (s *SAC) QEstimates() (map[string][]float64, map[string][]float64) {
	q1 := make(map[string][]float64, len(s.cOps.q1Vals))
	q2 := make(map[string][]float64, len(s.cOps.q2Vals))
	for name, val := range s.cOps.q1Vals {
		if *val != nil {
			q1[name] = denseData(*val)
		}
	}
	for name, val := range s.cOps.q2Vals {
		if *val != nil {
			q2[name] = denseData(*val)
		}
	}
	return q1, q2
}

// MemoryOut returns the concatenated recurrent memory outputs of the
// last Update in sub-stream order (value, q1, q2, policy), or nil for
// feedforward models.
func (s *SAC) MemoryOut() []float64 {
	return floatutils.Duplicate(s.memoryOut)
}

// Losses returns the losses of the last Update
func (s *SAC) Losses() Losses {
	return s.losses
}

// PolicyVars returns the parameters trained by the policy loss: the
// actor heads, and the actor's own trunk unless it is shared with the
// critic.
func (s *SAC) PolicyVars() G.Nodes {
	return s.policyNet.PolicyVars
}

// ValueVars returns the trunk and value head parameters of the policy
// network. These are the parameters mirrored into the target network.
func (s *SAC) ValueVars() G.Nodes {
	return s.policyNet.ValueVars
}

// QVars returns the twin Q stream parameters of the policy network
func (s *SAC) QVars() G.Nodes {
	return s.policyNet.QVars
}

// CriticVars returns the parameters trained by the critic losses:
// ValueVars followed by QVars.
func (s *SAC) CriticVars() G.Nodes {
	return s.policyNet.CriticVars
}

// denseData copies the float64 backing of a read value
func denseData(v G.Value) []float64 {
	switch data := v.Data().(type) {
	case float64:
		return []float64{data}
	case []float64:
		return floatutils.Duplicate(data)
	}
	return nil
}

// scalarValue extracts a scalar float64 from a read value
func scalarValue(v G.Value) float64 {
	if v == nil {
		return 0
	}
	return v.Data().(float64)
}

// discreteEntropy computes the mean over samples of the summed
// per-action entropy -p*log(p).
func discreteEntropy(logProbs []float64, batch int) float64 {
	if batch == 0 {
		return 0
	}
	total := 0.0
	for _, lp := range logProbs {
		total -= lp
	}
	return total / float64(batch)
}
