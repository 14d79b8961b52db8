package solver

import (
	"fmt"
	"math"

	G "gorgonia.org/gorgonia"
)

// PolynomialDecay computes a learning rate that is polynomially decayed
// from an initial value to a floor over a fixed horizon of steps. After
// the horizon is reached, the floor is returned forever.
type PolynomialDecay struct {
	Init  float64
	Final float64
	Steps int
	Power float64
}

// NewPolynomialDecay returns a new polynomial decay schedule. A power
// of 1 gives a linear decay from init to final over steps steps.
func NewPolynomialDecay(init, final float64, steps int,
	power float64) (*PolynomialDecay, error) {
	if init <= 0 {
		return nil, fmt.Errorf("newPolynomialDecay: initial learning rate "+
			"must be positive \n\twant(>0) \n\thave(%v)", init)
	}
	if final > init {
		return nil, fmt.Errorf("newPolynomialDecay: floor cannot exceed "+
			"the initial learning rate \n\twant(≤%v) \n\thave(%v)", init, final)
	}
	if steps < 1 {
		return nil, fmt.Errorf("newPolynomialDecay: decay horizon must be "+
			"positive \n\twant(>0) \n\thave(%v)", steps)
	}

	return &PolynomialDecay{
		Init:  init,
		Final: final,
		Steps: steps,
		Power: power,
	}, nil
}

// At returns the learning rate at gradient step t
func (p *PolynomialDecay) At(t int) float64 {
	if t >= p.Steps {
		return p.Final
	}
	frac := 1.0 - float64(t)/float64(p.Steps)
	return (p.Init-p.Final)*math.Pow(frac, p.Power) + p.Final
}

// DecayedAdamConfig describes a configuration of an Adam solver whose
// step size follows a polynomial decay schedule. Gorgonia's own solvers
// fix their learning rate at construction time, so the decayed variant
// is implemented here.
type DecayedAdamConfig struct {
	InitStepSize  float64
	FinalStepSize float64
	DecaySteps    int
	Epsilon       float64
	Beta1         float64
	Beta2         float64
}

// NewDecayedAdam returns a new Adam Solver whose step size decays
// linearly from stepSize to finalStepSize over decaySteps gradient
// steps.
func NewDecayedAdam(stepSize, finalStepSize float64,
	decaySteps int) (*Solver, error) {
	if _, err := NewPolynomialDecay(stepSize, finalStepSize, decaySteps,
		1.0); err != nil {
		return nil, fmt.Errorf("newDecayedAdam: %v", err)
	}

	adam := DecayedAdamConfig{
		InitStepSize:  stepSize,
		FinalStepSize: finalStepSize,
		DecaySteps:    decaySteps,
		Epsilon:       1e-8,
		Beta1:         0.9,
		Beta2:         0.999,
	}

	return newSolver(DecayedAdam, adam)
}

// Create returns the decayed Adam solver described by the config
func (d DecayedAdamConfig) Create() G.Solver {
	schedule := &PolynomialDecay{
		Init:  d.InitStepSize,
		Final: d.FinalStepSize,
		Steps: d.DecaySteps,
		Power: 1.0,
	}
	return &decayedAdam{
		schedule: schedule,
		eps:      d.Epsilon,
		beta1:    d.Beta1,
		beta2:    d.Beta2,
	}
}

// ValidType returns if the given Solver type is a valid type to be
// created with this config.
func (d DecayedAdamConfig) ValidType(t Type) bool {
	return t == DecayedAdam
}

// decayedAdam implements the Adam update rule with a scheduled step
// size. Moment estimates are keyed by position in the model slice, so
// the same model slice must be passed on every call to Step.
type decayedAdam struct {
	schedule *PolynomialDecay
	eps      float64
	beta1    float64
	beta2    float64

	step int
	m    [][]float64 // First moment estimates
	v    [][]float64 // Second moment estimates
}

// Step updates the weights in model along the gradient direction
func (a *decayedAdam) Step(model []G.ValueGrad) error {
	if a.m == nil {
		a.m = make([][]float64, len(model))
		a.v = make([][]float64, len(model))
	}
	if len(model) != len(a.m) {
		return fmt.Errorf("step: inconsistent model size \n\twant(%v) "+
			"\n\thave(%v)", len(a.m), len(model))
	}

	a.step++
	lr := a.schedule.At(a.step - 1)
	correction1 := 1.0 - math.Pow(a.beta1, float64(a.step))
	correction2 := 1.0 - math.Pow(a.beta2, float64(a.step))

	for i, valueGrad := range model {
		grad, err := valueGrad.Grad()
		if err != nil {
			return fmt.Errorf("step: could not get gradient %v: %v", i, err)
		}

		weights, ok := valueGrad.Value().Data().([]float64)
		if !ok {
			// Scalar parameters store their data unboxed
			return a.stepScalar(i, valueGrad, grad, lr, correction1,
				correction2)
		}
		gradData := grad.Data().([]float64)

		if a.m[i] == nil {
			a.m[i] = make([]float64, len(weights))
			a.v[i] = make([]float64, len(weights))
		}

		for j := range weights {
			g := gradData[j]
			a.m[i][j] = a.beta1*a.m[i][j] + (1.0-a.beta1)*g
			a.v[i][j] = a.beta2*a.v[i][j] + (1.0-a.beta2)*g*g

			mHat := a.m[i][j] / correction1
			vHat := a.v[i][j] / correction2
			weights[j] -= lr * mHat / (math.Sqrt(vHat) + a.eps)
		}
	}
	return nil
}

// stepScalar performs the Adam update for a scalar parameter
func (a *decayedAdam) stepScalar(i int, valueGrad G.ValueGrad,
	grad G.Value, lr, correction1, correction2 float64) error {
	w, ok := valueGrad.Value().Data().(float64)
	if !ok {
		return fmt.Errorf("step: unsupported parameter type %T",
			valueGrad.Value().Data())
	}
	g, ok := grad.Data().(float64)
	if !ok {
		return fmt.Errorf("step: unsupported gradient type %T", grad.Data())
	}

	if a.m[i] == nil {
		a.m[i] = make([]float64, 1)
		a.v[i] = make([]float64, 1)
	}

	a.m[i][0] = a.beta1*a.m[i][0] + (1.0-a.beta1)*g
	a.v[i][0] = a.beta2*a.v[i][0] + (1.0-a.beta2)*g*g

	mHat := a.m[i][0] / correction1
	vHat := a.v[i][0] / correction2

	updated := w - lr*mHat/(math.Sqrt(vHat)+a.eps)
	return G.Let(nodeOf(valueGrad), updated)
}

// nodeOf extracts the graph node backing a ValueGrad. Models built
// with BindDualValues are node slices in practice.
func nodeOf(valueGrad G.ValueGrad) *G.Node {
	if n, ok := valueGrad.(*G.Node); ok {
		return n
	}
	panic(fmt.Sprintf("nodeOf: expected *gorgonia.Node, got %T", valueGrad))
}
