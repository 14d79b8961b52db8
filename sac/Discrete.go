package sac

import (
	"fmt"

	"github.com/samuelfneumann/gosac/network"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// discreteActor holds the graph nodes of a multi-branch categorical
// policy. Each branch is an independent linear head whose logits are
// routed through the masking layer, so probabilities are always
// normalized over the actions currently available.
type discreteActor struct {
	actionMasks *G.Node // (batch, TotalSize()) action availability

	dist *maskedDistribution

	// logProbs holds p*log(p) per action in the concatenated branch
	// representation. It plays the role the squashed log density plays
	// for continuous actors, even though the derivation differs.
	logProbs *G.Node

	vars G.Nodes
}

// newDiscreteActor builds a per-branch categorical actor on top of the
// policy embedding. Branch heads are bias-free.
func newDiscreteActor(g *G.ExprGraph, hiddenPolicy *G.Node, width int,
	cfg Config, memory *G.Node) (*discreteActor, *G.Node, error) {
	batch := cfg.BatchSize
	space := cfg.ActionSpace
	init := cfg.initFn()

	enc, err := network.NewEncoderMLP(g, width, cfg.HiddenSize,
		cfg.NumLayers, network.Swish(), init, "policy_encoder")
	if err != nil {
		return nil, nil, fmt.Errorf("newDiscreteActor: could not construct "+
			"policy encoder: %v", err)
	}
	hidden, err := enc.Fwd(hiddenPolicy)
	if err != nil {
		return nil, nil, fmt.Errorf("newDiscreteActor: %v", err)
	}

	vars := make(G.Nodes, 0, len(enc.Learnables())+space.NumBranches())
	vars = append(vars, enc.Learnables()...)
	headWidth := enc.Outputs()

	var memoryOut *G.Node
	if memory != nil {
		cell, err := cfg.recurrentMaker()(g, headWidth, memory.Shape()[1],
			"policy_cell")
		if err != nil {
			return nil, nil, fmt.Errorf("newDiscreteActor: could not "+
				"construct recurrent cell: %v", err)
		}
		hidden, memoryOut, err = cell.Fwd(hidden, memory,
			cfg.SequenceLength)
		if err != nil {
			return nil, nil, fmt.Errorf("newDiscreteActor: %v", err)
		}
		vars = append(vars, cell.Learnables()...)
		headWidth = memory.Shape()[1]
	}

	branchLogits := make([]*G.Node, space.NumBranches())
	for b, size := range space.Branches() {
		head, err := network.NewDense(g, headWidth, size, false, init,
			fmt.Sprintf("policy_branch%d", b))
		if err != nil {
			return nil, nil, fmt.Errorf("newDiscreteActor: could not "+
				"construct branch head %v: %v", b, err)
		}
		branchLogits[b], err = head.Fwd(hidden)
		if err != nil {
			return nil, nil, fmt.Errorf("newDiscreteActor: %v", err)
		}
		vars = append(vars, head.Learnables()...)
	}

	logits := branchLogits[0]
	if len(branchLogits) > 1 {
		logits, err = G.Concat(1, branchLogits...)
		if err != nil {
			return nil, nil, fmt.Errorf("newDiscreteActor: could not "+
				"concatenate branch logits: %v", err)
		}
	}

	actionMasks := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(batch, space.TotalSize()),
		G.WithName("action_masks"),
	)
	dist, err := maskLogits(logits, actionMasks, space)
	if err != nil {
		return nil, nil, fmt.Errorf("newDiscreteActor: %v", err)
	}

	logProbs, err := G.HadamardProd(dist.probs, dist.logProbs)
	if err != nil {
		return nil, nil, fmt.Errorf("newDiscreteActor: %v", err)
	}

	return &discreteActor{
		actionMasks: actionMasks,
		dist:        dist,
		logProbs:    logProbs,
		vars:        vars,
	}, memoryOut, nil
}
