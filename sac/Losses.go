package sac

import (
	"fmt"

	"github.com/samuelfneumann/gosac/utils/op"
	"github.com/samuelfneumann/gosac/utils/tensorutils"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// policyOps holds the training nodes attached to the policy network's
// graph: the policy improvement loss and the read-out values the rest
// of the update consumes. The entropy coefficient enters this graph as
// a placeholder, so policy gradients never flow into it.
type policyOps struct {
	mask    *G.Node
	entCoef *G.Node // scalar (continuous) or per-branch vector

	policyLoss *G.Node

	policyLossVal G.Value
	logProbsVal   G.Value
	probsVal      G.Value // discrete only
	actionVal     G.Value // continuous only
	detActionVal  G.Value // continuous only
	entropyVal    G.Value // continuous only
	minQVals      map[string]*G.Value
}

// addPolicyOps builds the policy loss on the policy network's graph.
//
// Continuous: mean over action dimensions of
// entCoef*logProbs - q1_p, then a masked batch mean. Discrete: the
// analogous term per branch, summed over the branch's actions and
// averaged across branches so large branches do not dominate.
func addPolicyOps(net *Network, cfg Config) (*policyOps, error) {
	if net.kind != policyNetwork {
		return nil, fmt.Errorf("addPolicyOps: not a policy network")
	}
	g := net.g
	batch := cfg.BatchSize

	ops := &policyOps{
		minQVals: make(map[string]*G.Value, len(cfg.StreamNames)),
	}
	ops.mask = G.NewVector(g, tensor.Float64, G.WithShape(batch),
		G.WithName("loss_masks"))

	if cfg.ActionSpace.Continuous() {
		ops.entCoef = G.NewScalar(g, tensor.Float64,
			G.WithName("ent_coef"))

		weighted, err := G.Mul(ops.entCoef, net.cActor.logProbs)
		if err != nil {
			return nil, fmt.Errorf("addPolicyOps: %v", err)
		}
		diff, err := G.Sub(weighted, net.q1P)
		if err != nil {
			return nil, fmt.Errorf("addPolicyOps: %v", err)
		}
		perSample, err := G.Mean(diff, 1)
		if err != nil {
			return nil, fmt.Errorf("addPolicyOps: %v", err)
		}
		if ops.policyLoss, err = maskedMean(ops.mask,
			perSample); err != nil {
			return nil, fmt.Errorf("addPolicyOps: %v", err)
		}

		// min(Q1, Q2) at the sampled action, per stream, for the
		// value regression target
		for _, name := range cfg.StreamNames {
			minQ, err := op.Min(net.q1PHeads[name], net.q2PHeads[name])
			if err != nil {
				return nil, fmt.Errorf("addPolicyOps: could not compute "+
					"min policy Q of stream %v: %v", name, err)
			}
			val := new(G.Value)
			G.Read(minQ, val)
			ops.minQVals[name] = val
		}

		G.Read(net.cActor.logProbs, &ops.logProbsVal)
		G.Read(net.cActor.action, &ops.actionVal)
		G.Read(net.cActor.deterministic, &ops.detActionVal)
		G.Read(net.cActor.entropy, &ops.entropyVal)
	} else {
		space := cfg.ActionSpace
		numBranches := space.NumBranches()
		ops.entCoef = G.NewVector(g, tensor.Float64,
			G.WithShape(numBranches), G.WithName("ent_coef"))

		// Expected Q under the current policy, per branch
		qTerm1, err := G.HadamardProd(net.dActor.dist.probs, net.q1P)
		if err != nil {
			return nil, fmt.Errorf("addPolicyOps: %v", err)
		}

		branchLosses := make([]*G.Node, numBranches)
		offsets := space.Offsets()
		for b := 0; b < numBranches; b++ {
			lp, err := sliceCols(net.dActor.logProbs, offsets[b],
				offsets[b+1])
			if err != nil {
				return nil, fmt.Errorf("addPolicyOps: %v", err)
			}
			qt, err := sliceCols(qTerm1, offsets[b], offsets[b+1])
			if err != nil {
				return nil, fmt.Errorf("addPolicyOps: %v", err)
			}

			coef, err := G.Slice(ops.entCoef,
				tensorutils.NewSlice(b, b+1, 1))
			if err != nil {
				return nil, fmt.Errorf("addPolicyOps: could not slice "+
					"entropy coefficient of branch %v: %v", b, err)
			}
			weighted, err := G.Mul(coef, lp)
			if err != nil {
				return nil, fmt.Errorf("addPolicyOps: %v", err)
			}
			term, err := G.Sub(weighted, qt)
			if err != nil {
				return nil, fmt.Errorf("addPolicyOps: %v", err)
			}
			if branchLosses[b], err = sumCols(term, batch); err != nil {
				return nil, fmt.Errorf("addPolicyOps: %v", err)
			}
		}

		perSample, err := meanNodes(branchLosses)
		if err != nil {
			return nil, fmt.Errorf("addPolicyOps: %v", err)
		}
		if ops.policyLoss, err = maskedMean(ops.mask,
			perSample); err != nil {
			return nil, fmt.Errorf("addPolicyOps: %v", err)
		}

		// min over the twin critics of the policy-weighted Q, per
		// stream
		for _, name := range cfg.StreamNames {
			prod1, err := G.HadamardProd(net.dActor.dist.probs,
				net.q1PHeads[name])
			if err != nil {
				return nil, fmt.Errorf("addPolicyOps: %v", err)
			}
			prod2, err := G.HadamardProd(net.dActor.dist.probs,
				net.q2PHeads[name])
			if err != nil {
				return nil, fmt.Errorf("addPolicyOps: %v", err)
			}
			e1, err := branchExpectation(prod1, space, batch)
			if err != nil {
				return nil, fmt.Errorf("addPolicyOps: %v", err)
			}
			e2, err := branchExpectation(prod2, space, batch)
			if err != nil {
				return nil, fmt.Errorf("addPolicyOps: %v", err)
			}
			minQ, err := op.Min(e1, e2)
			if err != nil {
				return nil, fmt.Errorf("addPolicyOps: could not compute "+
					"min policy Q of stream %v: %v", name, err)
			}
			val := new(G.Value)
			G.Read(minQ, val)
			ops.minQVals[name] = val
		}

		G.Read(net.dActor.logProbs, &ops.logProbsVal)
		G.Read(net.dActor.dist.probs, &ops.probsVal)
	}

	G.Read(ops.policyLoss, &ops.policyLossVal)
	return ops, nil
}

// criticOps holds the training nodes attached to the critic network's
// graph: the twin Q losses and the value loss. Both regression targets
// enter the graph as placeholders (the Q backup's bootstrap value from
// the target network, the value backup from the policy network's
// forward pass), so no gradient can flow into them.
type criticOps struct {
	mask        *G.Node
	dones       *G.Node            // (batch, 1)
	targetValue *G.Node            // (batch, 1) target network value
	rewards     map[string]*G.Node // (batch, 1) per stream
	vBackups    map[string]*G.Node // (batch, 1) per stream

	q1Loss, q2Loss, valueLoss, totalValueLoss *G.Node

	q1LossVal, q2LossVal       G.Value
	valueLossVal, totalLossVal G.Value

	// Per-stream Q estimates at the executed actions
	q1Vals, q2Vals map[string]*G.Value
}

// addCriticOps builds the value-side losses on the critic network's
// graph. For each stream, the Q regression target is
// reward + (1-done)*gamma*targetValue; squared errors are
// mask-multiplied, mean-reduced, halved, and averaged across streams.
func addCriticOps(net *Network, cfg Config) (*criticOps, error) {
	if net.kind != criticNetwork {
		return nil, fmt.Errorf("addCriticOps: not a critic network")
	}
	g := net.g
	batch := cfg.BatchSize
	space := cfg.ActionSpace

	ops := &criticOps{
		mask: G.NewVector(g, tensor.Float64, G.WithShape(batch),
			G.WithName("loss_masks")),
		dones: G.NewMatrix(g, tensor.Float64, G.WithShape(batch, 1),
			G.WithName("dones")),
		targetValue: G.NewMatrix(g, tensor.Float64,
			G.WithShape(batch, 1), G.WithName("target_value")),
		rewards:  make(map[string]*G.Node, len(cfg.StreamNames)),
		vBackups: make(map[string]*G.Node, len(cfg.StreamNames)),
		q1Vals:   make(map[string]*G.Value, len(cfg.StreamNames)),
		q2Vals:   make(map[string]*G.Value, len(cfg.StreamNames)),
	}

	// Discrete Q estimates are gathered at the executed actions by a
	// one-hot multiply, so the critic takes the executed actions as a
	// one-hot placeholder.
	if !space.Continuous() {
		net.extActions = G.NewMatrix(
			g,
			tensor.Float64,
			G.WithShape(batch, space.TotalSize()),
			G.WithName("external_actions"),
		)
	}

	notDone, err := G.Sub(G.NewConstant(1.0), ops.dones)
	if err != nil {
		return nil, fmt.Errorf("addCriticOps: %v", err)
	}

	q1Losses := make([]*G.Node, len(cfg.StreamNames))
	q2Losses := make([]*G.Node, len(cfg.StreamNames))
	valueLosses := make([]*G.Node, len(cfg.StreamNames))
	for i, name := range cfg.StreamNames {
		ops.rewards[name] = G.NewMatrix(g, tensor.Float64,
			G.WithShape(batch, 1), G.WithName(name+"_rewards"))
		ops.vBackups[name] = G.NewMatrix(g, tensor.Float64,
			G.WithShape(batch, 1), G.WithName(name+"_value_backup"))

		// q_backup = r + (1-done)*gamma*targetValue
		discounted, err := G.Mul(G.NewConstant(cfg.Gammas[i]), notDone)
		if err != nil {
			return nil, fmt.Errorf("addCriticOps: %v", err)
		}
		boot, err := G.HadamardProd(discounted, ops.targetValue)
		if err != nil {
			return nil, fmt.Errorf("addCriticOps: %v", err)
		}
		qBackup, err := G.Add(ops.rewards[name], boot)
		if err != nil {
			return nil, fmt.Errorf("addCriticOps: %v", err)
		}

		q1Stream, q2Stream := net.q1Heads[name], net.q2Heads[name]
		if !space.Continuous() {
			if q1Stream, err = gatherQ(q1Stream, net.extActions, space,
				batch); err != nil {
				return nil, fmt.Errorf("addCriticOps: %v", err)
			}
			if q2Stream, err = gatherQ(q2Stream, net.extActions, space,
				batch); err != nil {
				return nil, fmt.Errorf("addCriticOps: %v", err)
			}
		}

		q1Val, q2Val := new(G.Value), new(G.Value)
		G.Read(q1Stream, q1Val)
		G.Read(q2Stream, q2Val)
		ops.q1Vals[name] = q1Val
		ops.q2Vals[name] = q2Val

		if q1Losses[i], err = halfMaskedMSE(ops.mask, qBackup,
			q1Stream); err != nil {
			return nil, fmt.Errorf("addCriticOps: %v", err)
		}
		if q2Losses[i], err = halfMaskedMSE(ops.mask, qBackup,
			q2Stream); err != nil {
			return nil, fmt.Errorf("addCriticOps: %v", err)
		}
		if valueLosses[i], err = halfMaskedMSE(ops.mask,
			net.valueHeads[name], ops.vBackups[name]); err != nil {
			return nil, fmt.Errorf("addCriticOps: %v", err)
		}
	}

	if ops.q1Loss, err = meanNodes(q1Losses); err != nil {
		return nil, fmt.Errorf("addCriticOps: %v", err)
	}
	if ops.q2Loss, err = meanNodes(q2Losses); err != nil {
		return nil, fmt.Errorf("addCriticOps: %v", err)
	}
	if ops.valueLoss, err = meanNodes(valueLosses); err != nil {
		return nil, fmt.Errorf("addCriticOps: %v", err)
	}

	qSum, err := G.Add(ops.q1Loss, ops.q2Loss)
	if err != nil {
		return nil, fmt.Errorf("addCriticOps: %v", err)
	}
	if ops.totalValueLoss, err = G.Add(qSum, ops.valueLoss); err != nil {
		return nil, fmt.Errorf("addCriticOps: %v", err)
	}

	G.Read(ops.q1Loss, &ops.q1LossVal)
	G.Read(ops.q2Loss, &ops.q2LossVal)
	G.Read(ops.valueLoss, &ops.valueLossVal)
	G.Read(ops.totalValueLoss, &ops.totalLossVal)

	return ops, nil
}

// maskedMean multiplies per-sample values by the validity mask and
// takes the unconditional mean over the batch. Masked-out samples
// still count toward the denominator.
func maskedMean(mask, x *G.Node) (*G.Node, error) {
	flat := x
	if len(x.Shape()) > 1 {
		var err error
		flat, err = G.Reshape(x, []int{x.Shape()[0]})
		if err != nil {
			return nil, fmt.Errorf("maskedMean: could not flatten: %v", err)
		}
	}
	masked, err := G.HadamardProd(mask, flat)
	if err != nil {
		return nil, fmt.Errorf("maskedMean: %v", err)
	}
	return G.Mean(masked)
}

// halfMaskedMSE returns 0.5 times the masked mean squared difference
// between target and pred.
func halfMaskedMSE(mask, target, pred *G.Node) (*G.Node, error) {
	diff, err := G.Sub(target, pred)
	if err != nil {
		return nil, fmt.Errorf("halfMaskedMSE: %v", err)
	}
	sq, err := G.Square(diff)
	if err != nil {
		return nil, fmt.Errorf("halfMaskedMSE: %v", err)
	}
	mean, err := maskedMean(mask, sq)
	if err != nil {
		return nil, fmt.Errorf("halfMaskedMSE: %v", err)
	}
	return G.Mul(G.NewConstant(0.5), mean)
}

// sumCols sums a (batch, n) node over its columns, returning a
// (batch, 1) node.
func sumCols(x *G.Node, batch int) (*G.Node, error) {
	sum, err := G.Sum(x, 1)
	if err != nil {
		return nil, fmt.Errorf("sumCols: %v", err)
	}
	return G.Reshape(sum, []int{batch, 1})
}

// branchExpectation reduces a (batch, TotalSize()) product tensor to a
// (batch, 1) node: each branch's columns are summed, and the branch
// sums are averaged.
func branchExpectation(x *G.Node, space ActionSpace, batch int) (*G.Node,
	error) {
	offsets := space.Offsets()
	sums := make([]*G.Node, space.NumBranches())
	for b := range sums {
		branch, err := sliceCols(x, offsets[b], offsets[b+1])
		if err != nil {
			return nil, fmt.Errorf("branchExpectation: %v", err)
		}
		if sums[b], err = sumCols(branch, batch); err != nil {
			return nil, fmt.Errorf("branchExpectation: %v", err)
		}
	}
	return meanNodes(sums)
}

// gatherQ gathers per-action Q estimates at the one-hot encoded
// executed actions: the per-branch products are summed and the branch
// sums averaged, yielding one estimate per sample.
func gatherQ(qHead, oneHot *G.Node, space ActionSpace,
	batch int) (*G.Node, error) {
	prod, err := G.HadamardProd(oneHot, qHead)
	if err != nil {
		return nil, fmt.Errorf("gatherQ: %v", err)
	}
	return branchExpectation(prod, space, batch)
}
