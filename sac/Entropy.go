package sac

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/gosac/solver"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// entropyTuner owns the trainable entropy coefficient and its loss.
// The coefficient is stored as a log-parameterization (a scalar for
// continuous action spaces, one entry per branch for discrete spaces)
// and lives on its own graph: the realized log-probability sums it is
// regressed against arrive as placeholder values, already detached
// from the policy network.
type entropyTuner struct {
	g          *G.ExprGraph
	logEntCoef *G.Node
	sums       *G.Node // (batch, n) logProb sums plus target entropy
	mask       *G.Node // (batch,)

	loss    *G.Node
	lossVal G.Value

	vm     G.VM
	solver *solver.Solver
	n      int
}

// newEntropyTuner returns an entropyTuner with n coefficients
// initialized to log(cfg.InitEntCoef).
func newEntropyTuner(cfg Config) (*entropyTuner, error) {
	n := 1
	if !cfg.ActionSpace.Continuous() {
		n = cfg.ActionSpace.NumBranches()
	}

	g := G.NewGraph()
	logEntCoef := G.NewVector(
		g,
		tensor.Float64,
		G.WithShape(n),
		G.WithName("log_ent_coef"),
		G.WithInit(G.ValuesOf(math.Log(cfg.InitEntCoef))),
	)
	sums := G.NewMatrix(g, tensor.Float64,
		G.WithShape(cfg.BatchSize, n), G.WithName("entropy_sums"))
	mask := G.NewVector(g, tensor.Float64, G.WithShape(cfg.BatchSize),
		G.WithName("loss_masks"))

	coefRow, err := G.Reshape(logEntCoef, []int{1, n})
	if err != nil {
		return nil, fmt.Errorf("newEntropyTuner: %v", err)
	}
	weighted, err := G.BroadcastHadamardProd(sums, coefRow, nil,
		[]byte{0})
	if err != nil {
		return nil, fmt.Errorf("newEntropyTuner: %v", err)
	}
	perSample, err := G.Mean(weighted, 1)
	if err != nil {
		return nil, fmt.Errorf("newEntropyTuner: %v", err)
	}
	mean, err := maskedMean(mask, perSample)
	if err != nil {
		return nil, fmt.Errorf("newEntropyTuner: %v", err)
	}
	loss, err := G.Neg(mean)
	if err != nil {
		return nil, fmt.Errorf("newEntropyTuner: %v", err)
	}

	tuner := &entropyTuner{
		g:          g,
		logEntCoef: logEntCoef,
		sums:       sums,
		mask:       mask,
		loss:       loss,
		n:          n,
	}
	G.Read(loss, &tuner.lossVal)

	if _, err := G.Grad(loss, logEntCoef); err != nil {
		return nil, fmt.Errorf("newEntropyTuner: could not compute "+
			"gradient: %v", err)
	}
	tuner.vm = G.NewTapeMachine(g, G.BindDualValues(logEntCoef))

	tuner.solver, err = solver.NewDecayedAdam(cfg.LearningRate,
		cfg.FinalLearningRate, cfg.MaxSteps)
	if err != nil {
		return nil, fmt.Errorf("newEntropyTuner: %v", err)
	}

	return tuner, nil
}

// coefficients returns the current entropy coefficients, exponentiated
// out of the log-parameterization.
func (e *entropyTuner) coefficients() []float64 {
	var logs []float64
	switch data := e.logEntCoef.Value().Data().(type) {
	case float64:
		logs = []float64{data}
	case []float64:
		logs = data
	}

	coefs := make([]float64, len(logs))
	for i, l := range logs {
		coefs[i] = math.Exp(l)
	}
	return coefs
}

// step performs one optimizer step on the log coefficients. The sums
// argument holds batch x n values of realized log-probability sums
// plus target entropy.
func (e *entropyTuner) step(sums, masks []float64) error {
	batch := len(masks)
	sumsTensor := tensor.New(
		tensor.WithBacking(sums),
		tensor.WithShape(batch, e.n),
	)
	if err := G.Let(e.sums, sumsTensor); err != nil {
		return fmt.Errorf("step: could not set entropy sums: %v", err)
	}
	maskTensor := tensor.New(
		tensor.WithBacking(masks),
		tensor.WithShape(batch),
	)
	if err := G.Let(e.mask, maskTensor); err != nil {
		return fmt.Errorf("step: could not set loss masks: %v", err)
	}

	if err := e.vm.RunAll(); err != nil {
		return fmt.Errorf("step: could not run entropy graph: %v", err)
	}
	defer e.vm.Reset()

	err := e.solver.Step(G.NodesToValueGrads(G.Nodes{e.logEntCoef}))
	if err != nil {
		return fmt.Errorf("step: could not step solver: %v", err)
	}
	return nil
}

// lossValue returns the entropy-coefficient loss of the last step
func (e *entropyTuner) lossValue() float64 {
	if e.lossVal == nil {
		return math.NaN()
	}
	return e.lossVal.Data().(float64)
}
