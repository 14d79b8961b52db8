package sac

import (
	"fmt"

	"github.com/samuelfneumann/gosac/utils/tensorutils"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
)

// maskedDistribution holds the per-branch masked policy distribution
// of a discrete actor: probabilities and log probabilities normalized
// over the currently available actions, concatenated in the branch
// representation.
type maskedDistribution struct {
	probs    *G.Node
	logProbs *G.Node
}

// sliceCols returns columns [start, end) of a (batch, n) node as a
// (batch, end-start) node. Width-1 slices collapse the column axis, so
// the result is always reshaped back to a matrix.
func sliceCols(x *G.Node, start, end int) (*G.Node, error) {
	sliced, err := G.Slice(x, nil, tensorutils.NewSlice(start, end, 1))
	if err != nil {
		return nil, fmt.Errorf("sliceCols: could not slice columns "+
			"[%v, %v): %v", start, end, err)
	}
	return G.Reshape(sliced, []int{x.Shape()[0], end - start})
}

// maskLogits converts concatenated per-branch logits into per-branch
// probabilities restricted to the available actions. For each branch,
// the softmax of the branch logits is shifted by a small epsilon,
// multiplied by the availability mask, and renormalized; log
// probabilities are log(p + epsilon).
func maskLogits(logits, actionMasks *G.Node,
	space ActionSpace) (*maskedDistribution, error) {
	offsets := space.Offsets()
	numBranches := space.NumBranches()
	eps := G.NewConstant(epsilon)

	probBranches := make([]*G.Node, numBranches)
	logProbBranches := make([]*G.Node, numBranches)
	for b := 0; b < numBranches; b++ {
		branchLogits, err := sliceCols(logits, offsets[b], offsets[b+1])
		if err != nil {
			return nil, fmt.Errorf("maskLogits: %v", err)
		}
		branchMask, err := sliceCols(actionMasks, offsets[b], offsets[b+1])
		if err != nil {
			return nil, fmt.Errorf("maskLogits: %v", err)
		}

		softmax, err := G.SoftMax(branchLogits, 1)
		if err != nil {
			return nil, fmt.Errorf("maskLogits: could not compute softmax "+
				"of branch %v: %v", b, err)
		}
		shifted, err := G.Add(softmax, eps)
		if err != nil {
			return nil, fmt.Errorf("maskLogits: could not shift "+
				"probabilities of branch %v: %v", b, err)
		}
		raw, err := G.HadamardProd(shifted, branchMask)
		if err != nil {
			return nil, fmt.Errorf("maskLogits: could not mask branch "+
				"%v: %v", b, err)
		}

		sums, err := G.Sum(raw, 1)
		if err != nil {
			return nil, fmt.Errorf("maskLogits: could not sum branch "+
				"%v: %v", b, err)
		}
		sums, err = G.Reshape(sums, []int{raw.Shape()[0], 1})
		if err != nil {
			return nil, fmt.Errorf("maskLogits: could not reshape branch "+
				"sums of branch %v: %v", b, err)
		}
		normalized, err := G.BroadcastHadamardDiv(raw, sums, nil, []byte{1})
		if err != nil {
			return nil, fmt.Errorf("maskLogits: could not renormalize "+
				"branch %v: %v", b, err)
		}

		shiftedNorm, err := G.Add(normalized, eps)
		if err != nil {
			return nil, fmt.Errorf("maskLogits: could not shift normalized "+
				"probabilities of branch %v: %v", b, err)
		}
		logProbs, err := G.Log(shiftedNorm)
		if err != nil {
			return nil, fmt.Errorf("maskLogits: could not compute log "+
				"probabilities of branch %v: %v", b, err)
		}

		probBranches[b] = normalized
		logProbBranches[b] = logProbs
	}

	probs := probBranches[0]
	logProbs := logProbBranches[0]
	if numBranches > 1 {
		var err error
		probs, err = G.Concat(1, probBranches...)
		if err != nil {
			return nil, fmt.Errorf("maskLogits: could not concatenate "+
				"probabilities: %v", err)
		}
		logProbs, err = G.Concat(1, logProbBranches...)
		if err != nil {
			return nil, fmt.Errorf("maskLogits: could not concatenate log "+
				"probabilities: %v", err)
		}
	}

	return &maskedDistribution{probs: probs, logProbs: logProbs}, nil
}

// sampleBranches draws one action index per branch per batch row from
// the masked probabilities (batch x TotalSize() values, row-major).
// The returned slice holds batch x NumBranches() indices.
func sampleBranches(probs []float64, space ActionSpace, batch int,
	source rand.Source) []int {
	offsets := space.Offsets()
	width := space.TotalSize()
	numBranches := space.NumBranches()

	actions := make([]int, batch*numBranches)
	for row := 0; row < batch; row++ {
		for b := 0; b < numBranches; b++ {
			weights := probs[row*width+offsets[b] : row*width+offsets[b+1]]
			dist := distuv.NewCategorical(weights, source)
			actions[row*numBranches+b] = int(dist.Rand())
		}
	}
	return actions
}
