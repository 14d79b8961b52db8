package sac

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/gosac/network"
	"github.com/samuelfneumann/gosac/utils/op"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

const (
	// Clamp band of the actor's log standard deviation
	logStdMin float64 = -20.0
	logStdMax float64 = 2.0

	// Numeric guard added before divisions and logarithms
	epsilon float64 = 1e-6
)

// continuousActor holds the graph nodes of a Gaussian policy with a
// tanh squash. Actions are sampled with the reparameterization trick:
// a standard normal noise placeholder is scaled by the predicted
// standard deviation and shifted by the predicted mean, so gradients
// flow from the critic through the sampled action into the actor's
// parameters.
type continuousActor struct {
	noise *G.Node // (batch, dims) standard normal draws

	action        *G.Node // tanh-squashed sample
	deterministic *G.Node // tanh of the predicted mean
	logProbs      *G.Node // (batch, 1) squashed log density
	entropy       *G.Node // (batch,) Gaussian entropy

	vars G.Nodes
}

// newContinuousActor builds a Gaussian-with-tanh-squash actor on top
// of the policy embedding. The mean and log standard deviation are
// independent linear heads, and the log standard deviation is clamped
// to [logStdMin, logStdMax] to avoid degenerate variances.
func newContinuousActor(g *G.ExprGraph, hiddenPolicy *G.Node, width int,
	cfg Config, memory *G.Node) (*continuousActor, *G.Node, error) {
	batch := cfg.BatchSize
	dims := cfg.ActionSpace.Dims()
	init := cfg.initFn()

	enc, err := network.NewEncoderMLP(g, width, cfg.HiddenSize,
		cfg.NumLayers, network.Swish(), init, "policy_encoder")
	if err != nil {
		return nil, nil, fmt.Errorf("newContinuousActor: could not "+
			"construct policy encoder: %v", err)
	}
	hidden, err := enc.Fwd(hiddenPolicy)
	if err != nil {
		return nil, nil, fmt.Errorf("newContinuousActor: %v", err)
	}

	vars := make(G.Nodes, 0, len(enc.Learnables())+7)
	vars = append(vars, enc.Learnables()...)
	headWidth := enc.Outputs()

	var memoryOut *G.Node
	if memory != nil {
		cell, err := cfg.recurrentMaker()(g, headWidth, memory.Shape()[1],
			"policy_cell")
		if err != nil {
			return nil, nil, fmt.Errorf("newContinuousActor: could not "+
				"construct recurrent cell: %v", err)
		}
		hidden, memoryOut, err = cell.Fwd(hidden, memory,
			cfg.SequenceLength)
		if err != nil {
			return nil, nil, fmt.Errorf("newContinuousActor: %v", err)
		}
		vars = append(vars, cell.Learnables()...)
		headWidth = memory.Shape()[1]
	}

	muHead, err := network.NewDense(g, headWidth, dims, true, init,
		"policy_mu")
	if err != nil {
		return nil, nil, fmt.Errorf("newContinuousActor: could not "+
			"construct mean head: %v", err)
	}
	logStdHead, err := network.NewDense(g, headWidth, dims, true, init,
		"policy_log_std")
	if err != nil {
		return nil, nil, fmt.Errorf("newContinuousActor: could not "+
			"construct log std head: %v", err)
	}
	vars = append(vars, muHead.Learnables()...)
	vars = append(vars, logStdHead.Learnables()...)

	mu, err := muHead.Fwd(hidden)
	if err != nil {
		return nil, nil, fmt.Errorf("newContinuousActor: %v", err)
	}
	logStd, err := logStdHead.Fwd(hidden)
	if err != nil {
		return nil, nil, fmt.Errorf("newContinuousActor: %v", err)
	}
	logStd, err = op.Clip(logStd, logStdMin, logStdMax)
	if err != nil {
		return nil, nil, fmt.Errorf("newContinuousActor: could not clamp "+
			"log std: %v", err)
	}
	sigma, err := G.Exp(logStd)
	if err != nil {
		return nil, nil, fmt.Errorf("newContinuousActor: %v", err)
	}

	// Reparameterization trick
	noise := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(batch, dims),
		G.WithName("policy_noise"),
	)
	scaled, err := G.HadamardProd(noise, sigma)
	if err != nil {
		return nil, nil, fmt.Errorf("newContinuousActor: %v", err)
	}
	sample, err := G.Add(mu, scaled)
	if err != nil {
		return nil, nil, fmt.Errorf("newContinuousActor: %v", err)
	}

	logProbs, err := gaussianLogProbs(sample, mu, sigma, logStd, batch)
	if err != nil {
		return nil, nil, fmt.Errorf("newContinuousActor: %v", err)
	}

	action, err := G.Tanh(sample)
	if err != nil {
		return nil, nil, fmt.Errorf("newContinuousActor: %v", err)
	}
	deterministic, err := G.Tanh(mu)
	if err != nil {
		return nil, nil, fmt.Errorf("newContinuousActor: %v", err)
	}

	logProbs, err = squashCorrection(logProbs, action, batch)
	if err != nil {
		return nil, nil, fmt.Errorf("newContinuousActor: %v", err)
	}

	// Closed-form entropy of the pre-squash Gaussian
	shifted, err := G.Add(logStd,
		G.NewConstant(0.5*math.Log(2.0*math.Pi*math.E)))
	if err != nil {
		return nil, nil, fmt.Errorf("newContinuousActor: %v", err)
	}
	entropy, err := G.Sum(shifted, 1)
	if err != nil {
		return nil, nil, fmt.Errorf("newContinuousActor: %v", err)
	}

	return &continuousActor{
		noise:         noise,
		action:        action,
		deterministic: deterministic,
		logProbs:      logProbs,
		entropy:       entropy,
		vars:          vars,
	}, memoryOut, nil
}

// gaussianLogProbs returns the (batch, 1) log density of sample under
// the Gaussian with the given mean and standard deviation, summed over
// action dimensions.
func gaussianLogProbs(sample, mu, sigma, logStd *G.Node,
	batch int) (*G.Node, error) {
	diff, err := G.Sub(sample, mu)
	if err != nil {
		return nil, err
	}
	denom, err := G.Add(sigma, G.NewConstant(epsilon))
	if err != nil {
		return nil, err
	}
	ratio, err := G.HadamardDiv(diff, denom)
	if err != nil {
		return nil, err
	}
	sq, err := G.Square(ratio)
	if err != nil {
		return nil, err
	}

	twoLogStd, err := G.Mul(G.NewConstant(2.0), logStd)
	if err != nil {
		return nil, err
	}
	sum, err := G.Add(sq, twoLogStd)
	if err != nil {
		return nil, err
	}
	sum, err = G.Add(sum, G.NewConstant(math.Log(2.0*math.Pi)))
	if err != nil {
		return nil, err
	}
	pre, err := G.Mul(G.NewConstant(-0.5), sum)
	if err != nil {
		return nil, err
	}

	logProbs, err := G.Sum(pre, 1)
	if err != nil {
		return nil, err
	}
	return G.Reshape(logProbs, []int{batch, 1})
}

// squashCorrection subtracts the tanh Jacobian term from the Gaussian
// log density, yielding the log density of the squashed action.
func squashCorrection(logProbs, action *G.Node, batch int) (*G.Node,
	error) {
	sq, err := G.Square(action)
	if err != nil {
		return nil, err
	}
	oneMinus, err := G.Sub(G.NewConstant(1.0), sq)
	if err != nil {
		return nil, err
	}
	guarded, err := G.Add(oneMinus, G.NewConstant(epsilon))
	if err != nil {
		return nil, err
	}
	logTerm, err := G.Log(guarded)
	if err != nil {
		return nil, err
	}
	correction, err := G.Sum(logTerm, 1)
	if err != nil {
		return nil, err
	}
	correction, err = G.Reshape(correction, []int{batch, 1})
	if err != nil {
		return nil, err
	}
	return G.Sub(logProbs, correction)
}
