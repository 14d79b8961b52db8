package network

import (
	G "gorgonia.org/gorgonia"
)

// ObservationEncoder maps raw observation nodes to a fixed-width
// embedding node in the same graph. Implementations that own trainable
// parameters expose them through Learnables so callers can assign them
// to the correct optimizer group.
type ObservationEncoder interface {
	Fwd(obs *G.Node) (*G.Node, error)
	Learnables() G.Nodes

	// Outputs returns the width of the embedding the encoder produces
	Outputs() int
}

// ObservationEncoderMaker constructs an ObservationEncoder on graph g
// for observations with the given number of features. The name
// parameter namespaces the encoder's parameter nodes.
type ObservationEncoderMaker func(g *G.ExprGraph, features int,
	name string) (ObservationEncoder, error)

// identityEncoder passes observations through unchanged. It is the
// default observation stream for vector observations.
type identityEncoder struct {
	features int
}

func (i identityEncoder) Fwd(obs *G.Node) (*G.Node, error) {
	return obs, nil
}

func (i identityEncoder) Learnables() G.Nodes {
	return nil
}

func (i identityEncoder) Outputs() int {
	return i.features
}

// IdentityEncoder returns an ObservationEncoderMaker whose encoders
// pass vector observations through unchanged.
func IdentityEncoder() ObservationEncoderMaker {
	return func(_ *G.ExprGraph, features int,
		_ string) (ObservationEncoder, error) {
		return identityEncoder{features: features}, nil
	}
}

// MLPEncoder returns an ObservationEncoderMaker whose encoders are
// MLPs of the given width and depth.
func MLPEncoder(width, depth int, act *Activation,
	init G.InitWFn) ObservationEncoderMaker {
	return func(g *G.ExprGraph, features int,
		name string) (ObservationEncoder, error) {
		return NewEncoderMLP(g, features, width, depth, act, init, name)
	}
}
