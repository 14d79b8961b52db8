package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// MLP implements a multi-layered perceptron whose forward pass can be
// applied to more than one input node in the same computational graph.
// Every call to Fwd reuses the same weight nodes, so evaluating the
// MLP at two different inputs shares parameters between the two
// evaluations.
type MLP struct {
	g      *G.ExprGraph
	layers []Layer

	numInputs  int
	numOutputs int
}

// NewMLP returns a new MLP on graph g taking features input features.
// Layer i has hiddenSizes[i] units, biases[i] set whether it has a
// bias unit, and activations[i] is its activation function.
func NewMLP(g *G.ExprGraph, features int, hiddenSizes []int, biases []bool,
	activations []*Activation, init G.InitWFn, name string) (*MLP, error) {
	if features <= 0 {
		return nil, fmt.Errorf("newMLP: features must be positive "+
			"\n\twant(>0) \n\thave(%v)", features)
	}
	if len(hiddenSizes) == 0 {
		return nil, fmt.Errorf("newMLP: at least one layer is required")
	}
	if len(hiddenSizes) != len(activations) {
		return nil, fmt.Errorf("newMLP: invalid number of activations "+
			"\n\twant(%v) \n\thave(%v)", len(hiddenSizes), len(activations))
	}
	if len(hiddenSizes) != len(biases) {
		return nil, fmt.Errorf("newMLP: invalid number of biases "+
			"\n\twant(%v) \n\thave(%v)", len(hiddenSizes), len(biases))
	}

	layers := make([]Layer, len(hiddenSizes))
	in := features
	for i, out := range hiddenSizes {
		if out <= 0 {
			return nil, fmt.Errorf("newMLP: layer %v has non-positive "+
				"size %v", i, out)
		}
		layers[i] = newFCLayer(g, in, out, biases[i], activations[i], init,
			fmt.Sprintf("%v_l%d", name, i))
		in = out
	}

	return &MLP{
		g:          g,
		layers:     layers,
		numInputs:  features,
		numOutputs: hiddenSizes[len(hiddenSizes)-1],
	}, nil
}

// NewDense returns a single fully connected layer as an MLP. This is
// the common case for prediction heads placed on top of an encoder.
func NewDense(g *G.ExprGraph, features, outputs int, bias bool,
	init G.InitWFn, name string) (*MLP, error) {
	return NewMLP(g, features, []int{outputs}, []bool{bias},
		[]*Activation{Identity()}, init, name)
}

// NewEncoderMLP returns an MLP of depth layers, each of width units
// with the given activation. This mirrors the repeated
// width-by-width hidden stacks used by the critic and actor trunks.
func NewEncoderMLP(g *G.ExprGraph, features, width, depth int,
	act *Activation, init G.InitWFn, name string) (*MLP, error) {
	sizes := make([]int, depth)
	biases := make([]bool, depth)
	acts := make([]*Activation, depth)
	for i := range sizes {
		sizes[i] = width
		biases[i] = true
		acts[i] = act
	}
	return NewMLP(g, features, sizes, biases, acts, init, name)
}

// Graph returns the computational graph the MLP belongs to
func (m *MLP) Graph() *G.ExprGraph {
	return m.g
}

// Features returns the number of input features the MLP expects
func (m *MLP) Features() int {
	return m.numInputs
}

// Outputs returns the number of outputs of the final layer
func (m *MLP) Outputs() int {
	return m.numOutputs
}

// Fwd adds the forward pass of the MLP on input x to the computational
// graph. Fwd may be called multiple times with different inputs; all
// calls share the same weights.
func (m *MLP) Fwd(x *G.Node) (*G.Node, error) {
	if x.Graph() != m.g {
		return nil, fmt.Errorf("fwd: input belongs to a different graph")
	}

	pred := x
	var err error
	for i, l := range m.layers {
		if pred, err = l.fwd(pred); err != nil {
			return nil, fmt.Errorf("fwd: could not compute forward pass of "+
				"layer %v: %v", i, err)
		}
	}
	return pred, nil
}

// Learnables returns the learnable nodes of the MLP
func (m *MLP) Learnables() G.Nodes {
	learnables := make(G.Nodes, 0, 2*len(m.layers))
	for i := range m.layers {
		learnables = append(learnables, m.layers[i].Weights())
		if bias := m.layers[i].Bias(); bias != nil {
			learnables = append(learnables, bias)
		}
	}
	return learnables
}
