package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// RecurrentCell maps an embedding and an incoming memory state to a
// recurrent output and an outgoing memory state. The output always has
// the memory's width, so layers stacked after a recurrent cell take
// memory-sized inputs.
type RecurrentCell interface {
	// Fwd adds the recurrent forward pass to the graph. The
	// sequenceLength parameter gives the number of consecutive
	// timesteps each batch row group represents.
	Fwd(x, memory *G.Node, sequenceLength int) (out, memoryOut *G.Node,
		err error)

	Learnables() G.Nodes
}

// RecurrentCellMaker constructs a RecurrentCell on graph g for
// embeddings with features inputs and a memory of memorySize units.
type RecurrentCellMaker func(g *G.ExprGraph, features, memorySize int,
	name string) (RecurrentCell, error)

// elmanCell implements a simple recurrent cell:
//
//	h' = tanh(x·Wx + h·Wh + b)
//
// with h' used both as the cell output and the outgoing memory state.
type elmanCell struct {
	wx, wh, b *G.Node
}

// NewElmanCell returns a RecurrentCellMaker building simple recurrent
// cells with the given weight initializer.
func NewElmanCell(init G.InitWFn) RecurrentCellMaker {
	return func(g *G.ExprGraph, features, memorySize int,
		name string) (RecurrentCell, error) {
		if features <= 0 || memorySize <= 0 {
			return nil, fmt.Errorf("newElmanCell: sizes must be positive "+
				"\n\thave(features=%v, memory=%v)", features, memorySize)
		}

		wx := G.NewMatrix(g, tensor.Float64,
			G.WithShape(features, memorySize),
			G.WithName(name+"_Wx"), G.WithInit(init))
		wh := G.NewMatrix(g, tensor.Float64,
			G.WithShape(memorySize, memorySize),
			G.WithName(name+"_Wh"), G.WithInit(init))
		b := G.NewMatrix(g, tensor.Float64, G.WithShape(1, memorySize),
			G.WithName(name+"_b"), G.WithInit(G.Zeroes()))

		return &elmanCell{wx: wx, wh: wh, b: b}, nil
	}
}

// Fwd adds the recurrent forward pass to the graph. The cell applies a
// single recurrent transition per call; callers unroll sequences by
// feeding the outgoing memory back in.
func (e *elmanCell) Fwd(x, memory *G.Node, sequenceLength int) (*G.Node,
	*G.Node, error) {
	if sequenceLength < 1 {
		return nil, nil, fmt.Errorf("fwd: sequence length must be positive "+
			"\n\twant(>0) \n\thave(%v)", sequenceLength)
	}

	xw, err := G.Mul(x, e.wx)
	if err != nil {
		return nil, nil, fmt.Errorf("fwd: could not project input: %v", err)
	}
	hw, err := G.Mul(memory, e.wh)
	if err != nil {
		return nil, nil, fmt.Errorf("fwd: could not project memory: %v", err)
	}
	sum, err := G.Add(xw, hw)
	if err != nil {
		return nil, nil, fmt.Errorf("fwd: could not combine projections: %v",
			err)
	}
	sum, err = G.BroadcastAdd(sum, e.b, nil, []byte{0})
	if err != nil {
		return nil, nil, fmt.Errorf("fwd: could not add bias: %v", err)
	}
	h, err := G.Tanh(sum)
	if err != nil {
		return nil, nil, fmt.Errorf("fwd: could not apply tanh: %v", err)
	}

	return h, h, nil
}

// Learnables returns the learnable nodes of the cell
func (e *elmanCell) Learnables() G.Nodes {
	return G.Nodes{e.wx, e.wh, e.b}
}
