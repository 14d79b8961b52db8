package sac

import (
	"fmt"

	"github.com/samuelfneumann/gosac/network"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// networkKind selects which sub-networks a Network instance builds
type networkKind int

const (
	// policyNetwork builds the full network: actor, twin Q-heads
	// evaluated at the actor's own action, and value heads
	policyNetwork networkKind = iota

	// criticNetwork builds the critic only: twin Q-heads evaluated at
	// an externally supplied action, and value heads
	criticNetwork

	// targetNetwork builds value heads only. It is never trained
	// directly; its parameters track the policy network's value
	// parameters through hard and Polyak updates.
	targetNetwork
)

// Network is one instance of the SAC network architecture, owning its
// own computational graph and parameters. Which sub-networks exist
// depends on the Network's kind. Parameter groups are explicit lists
// recorded as the graph is built, so optimizers and target updates
// select exactly the parameters they own.
type Network struct {
	g    *G.ExprGraph
	kind networkKind

	// Placeholders
	obs        *G.Node
	memoryIn   *G.Node
	extActions *G.Node // critic kind: the batch's executed actions
	memoryOut  *G.Node

	// Value stream: one head per reward stream plus their average
	valueHeads map[string]*G.Node
	value      *G.Node

	// Twin Q streams. Heads keyed by reward stream name. The pHeads
	// reuse the q parameters but are evaluated at the actor's own
	// action; they exist on policy networks only. For discrete action
	// spaces the Q-heads output one estimate per action, so the policy
	// evaluation is the head itself.
	q1Heads, q2Heads   map[string]*G.Node
	q1PHeads, q2PHeads map[string]*G.Node
	q1P, q2P           *G.Node

	cActor *continuousActor
	dActor *discreteActor

	// Parameter groups. CriticVars is ValueVars followed by QVars;
	// pairwise ordering is identical across Network instances built
	// from the same Config, so cross-network parameter copies match
	// parameters positionally.
	ValueVars  G.Nodes
	QVars      G.Nodes
	CriticVars G.Nodes
	PolicyVars G.Nodes
}

// newNetwork builds a Network of the given kind from cfg. The Config
// must already be validated.
func newNetwork(cfg Config, kind networkKind) (*Network, error) {
	g := G.NewGraph()
	batch := cfg.BatchSize

	net := &Network{g: g, kind: kind}
	net.obs = G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(batch, cfg.ObsDims),
		G.WithName("observations"),
	)

	// The recurrent memory of the full network is split equally
	// between the value, q1, q2, and policy sub-streams, in that
	// order. The target network carries only the value sub-stream.
	var memValue, memQ1, memQ2, memPolicy *G.Node
	if cfg.UseRecurrent {
		sub := cfg.MemorySize / 4
		if kind == targetNetwork {
			net.memoryIn = G.NewMatrix(g, tensor.Float64,
				G.WithShape(batch, sub), G.WithName("memory_in"))
			memValue = net.memoryIn
		} else {
			net.memoryIn = G.NewMatrix(g, tensor.Float64,
				G.WithShape(batch, cfg.MemorySize),
				G.WithName("memory_in"))

			var err error
			if memValue, err = sliceCols(net.memoryIn, 0, sub); err != nil {
				return nil, fmt.Errorf("newNetwork: %v", err)
			}
			if memQ1, err = sliceCols(net.memoryIn, sub,
				2*sub); err != nil {
				return nil, fmt.Errorf("newNetwork: %v", err)
			}
			if memQ2, err = sliceCols(net.memoryIn, 2*sub,
				3*sub); err != nil {
				return nil, fmt.Errorf("newNetwork: %v", err)
			}
			if kind == policyNetwork {
				if memPolicy, err = sliceCols(net.memoryIn, 3*sub,
					4*sub); err != nil {
					return nil, fmt.Errorf("newNetwork: %v", err)
				}
			}
		}
	}

	maker := cfg.encoderMaker()
	trunk, err := maker(g, cfg.ObsDims, "critic_value_obs")
	if err != nil {
		return nil, fmt.Errorf("newNetwork: could not construct critic "+
			"observation stream: %v", err)
	}
	hiddenCritic, err := trunk.Fwd(net.obs)
	if err != nil {
		return nil, fmt.Errorf("newNetwork: %v", err)
	}
	trunkWidth := trunk.Outputs()

	// Actor
	var policyMemOut *G.Node
	if kind == policyNetwork {
		hiddenPolicy := hiddenCritic
		policyWidth := trunkWidth
		policyTrunkVars := trunk.Learnables()
		if !cfg.ShareTrunk {
			policyTrunk, err := maker(g, cfg.ObsDims, "policy_obs")
			if err != nil {
				return nil, fmt.Errorf("newNetwork: could not construct "+
					"policy observation stream: %v", err)
			}
			hiddenPolicy, err = policyTrunk.Fwd(net.obs)
			if err != nil {
				return nil, fmt.Errorf("newNetwork: %v", err)
			}
			policyWidth = policyTrunk.Outputs()
			policyTrunkVars = policyTrunk.Learnables()
		}

		var actorVars G.Nodes
		if cfg.ActionSpace.Continuous() {
			net.cActor, policyMemOut, err = newContinuousActor(g,
				hiddenPolicy, policyWidth, cfg, memPolicy)
			if err != nil {
				return nil, fmt.Errorf("newNetwork: %v", err)
			}
			actorVars = net.cActor.vars
		} else {
			net.dActor, policyMemOut, err = newDiscreteActor(g,
				hiddenPolicy, policyWidth, cfg, memPolicy)
			if err != nil {
				return nil, fmt.Errorf("newNetwork: %v", err)
			}
			actorVars = net.dActor.vars
		}

		net.PolicyVars = make(G.Nodes, 0,
			len(policyTrunkVars)+len(actorVars))
		net.PolicyVars = append(net.PolicyVars, policyTrunkVars...)
		net.PolicyVars = append(net.PolicyVars, actorVars...)
	}

	// Value stream
	valueHeads, value, valueVars, valueMemOut, err := buildValueStream(g,
		hiddenCritic, trunkWidth, cfg, memValue)
	if err != nil {
		return nil, fmt.Errorf("newNetwork: %v", err)
	}
	net.valueHeads = valueHeads
	net.value = value
	net.ValueVars = make(G.Nodes, 0, len(trunk.Learnables())+len(valueVars))
	net.ValueVars = append(net.ValueVars, trunk.Learnables()...)
	net.ValueVars = append(net.ValueVars, valueVars...)

	// Twin Q streams
	var q1MemOut, q2MemOut *G.Node
	if kind != targetNetwork {
		extInput, policyInput, err := net.qInputs(cfg, hiddenCritic)
		if err != nil {
			return nil, fmt.Errorf("newNetwork: %v", err)
		}

		var q1Vars, q2Vars G.Nodes
		net.q1Heads, net.q1PHeads, q1Vars, q1MemOut, err = buildQStream(g,
			extInput, policyInput, cfg, memQ1, "q1")
		if err != nil {
			return nil, fmt.Errorf("newNetwork: %v", err)
		}
		net.q2Heads, net.q2PHeads, q2Vars, q2MemOut, err = buildQStream(g,
			extInput, policyInput, cfg, memQ2, "q2")
		if err != nil {
			return nil, fmt.Errorf("newNetwork: %v", err)
		}

		net.QVars = make(G.Nodes, 0, len(q1Vars)+len(q2Vars))
		net.QVars = append(net.QVars, q1Vars...)
		net.QVars = append(net.QVars, q2Vars...)

		if kind == policyNetwork {
			if net.q1P, err = meanNodes(streamNodes(net.q1PHeads,
				cfg.StreamNames)); err != nil {
				return nil, fmt.Errorf("newNetwork: %v", err)
			}
			if net.q2P, err = meanNodes(streamNodes(net.q2PHeads,
				cfg.StreamNames)); err != nil {
				return nil, fmt.Errorf("newNetwork: %v", err)
			}
		}
	}

	net.CriticVars = make(G.Nodes, 0, len(net.ValueVars)+len(net.QVars))
	net.CriticVars = append(net.CriticVars, net.ValueVars...)
	net.CriticVars = append(net.CriticVars, net.QVars...)

	// Concatenated memory out, in sub-stream order
	if cfg.UseRecurrent {
		memOuts := make([]*G.Node, 0, 4)
		for _, out := range []*G.Node{valueMemOut, q1MemOut, q2MemOut,
			policyMemOut} {
			if out != nil {
				memOuts = append(memOuts, out)
			}
		}
		net.memoryOut = memOuts[0]
		if len(memOuts) > 1 {
			net.memoryOut, err = G.Concat(1, memOuts...)
			if err != nil {
				return nil, fmt.Errorf("newNetwork: could not concatenate "+
					"memory outputs: %v", err)
			}
		}
	}

	return net, nil
}

// qInputs returns the embeddings the twin Q streams are evaluated at:
// the external-action evaluation and the policy-action evaluation.
// Continuous Q functions condition on the concatenated (embedding,
// action) vector; discrete Q functions output one estimate per action
// directly from the embedding, so both evaluations coincide.
func (net *Network) qInputs(cfg Config, hiddenCritic *G.Node) (*G.Node,
	*G.Node, error) {
	if !cfg.ActionSpace.Continuous() {
		return hiddenCritic, hiddenCritic, nil
	}

	var extInput, policyInput *G.Node
	if net.kind == criticNetwork {
		net.extActions = G.NewMatrix(
			net.g,
			tensor.Float64,
			G.WithShape(cfg.BatchSize, cfg.ActionSpace.Dims()),
			G.WithName("external_actions"),
		)
		var err error
		extInput, err = G.Concat(1, hiddenCritic, net.extActions)
		if err != nil {
			return nil, nil, fmt.Errorf("qInputs: could not concatenate "+
				"external action: %v", err)
		}
	} else {
		var err error
		policyInput, err = G.Concat(1, hiddenCritic, net.cActor.action)
		if err != nil {
			return nil, nil, fmt.Errorf("qInputs: could not concatenate "+
				"policy action: %v", err)
		}
	}
	return extInput, policyInput, nil
}

// buildValueStream builds the value sub-network: an encoder stack, an
// optional recurrent cell, and one scalar head per reward stream,
// averaged into a single value estimate.
func buildValueStream(g *G.ExprGraph, hidden *G.Node, width int,
	cfg Config, memory *G.Node) (map[string]*G.Node, *G.Node, G.Nodes,
	*G.Node, error) {
	init := cfg.initFn()
	enc, err := network.NewEncoderMLP(g, width, cfg.HiddenSize,
		cfg.NumLayers, network.Swish(), init, "critic_value_encoder")
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("buildValueStream: could "+
			"not construct value encoder: %v", err)
	}
	h, err := enc.Fwd(hidden)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("buildValueStream: %v", err)
	}

	vars := make(G.Nodes, 0, len(enc.Learnables())+2*len(cfg.StreamNames))
	vars = append(vars, enc.Learnables()...)
	headWidth := enc.Outputs()

	var memoryOut *G.Node
	if memory != nil {
		cell, err := cfg.recurrentMaker()(g, headWidth, memory.Shape()[1],
			"critic_value_cell")
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("buildValueStream: "+
				"could not construct recurrent cell: %v", err)
		}
		h, memoryOut, err = cell.Fwd(h, memory, cfg.SequenceLength)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("buildValueStream: %v",
				err)
		}
		vars = append(vars, cell.Learnables()...)
		headWidth = memory.Shape()[1]
	}

	heads := make(map[string]*G.Node, len(cfg.StreamNames))
	for _, name := range cfg.StreamNames {
		head, err := network.NewDense(g, headWidth, 1, true, init,
			"critic_value_"+name)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("buildValueStream: "+
				"could not construct value head %v: %v", name, err)
		}
		if heads[name], err = head.Fwd(h); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("buildValueStream: %v",
				err)
		}
		vars = append(vars, head.Learnables()...)
	}

	value, err := meanNodes(streamNodes(heads, cfg.StreamNames))
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("buildValueStream: %v", err)
	}
	return heads, value, vars, memoryOut, nil
}

// buildQStream builds one Q sub-network and evaluates it at up to two
// inputs with shared parameters: the external-action input and the
// policy-action input. Either input may be nil. The memory output is
// taken from the first evaluation.
func buildQStream(g *G.ExprGraph, extInput, policyInput *G.Node,
	cfg Config, memory *G.Node, label string) (map[string]*G.Node,
	map[string]*G.Node, G.Nodes, *G.Node, error) {
	init := cfg.initFn()
	numOutputs := 1
	if !cfg.ActionSpace.Continuous() {
		numOutputs = cfg.ActionSpace.TotalSize()
	}

	first := extInput
	if first == nil {
		first = policyInput
	}
	encWidth := first.Shape()[1]

	enc, err := network.NewEncoderMLP(g, encWidth, cfg.HiddenSize,
		cfg.NumLayers, network.Swish(), init,
		"critic_"+label+"_encoder")
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("buildQStream: could not "+
			"construct %v encoder: %v", label, err)
	}

	vars := make(G.Nodes, 0, len(enc.Learnables())+2*len(cfg.StreamNames))
	vars = append(vars, enc.Learnables()...)
	headWidth := enc.Outputs()

	var cell network.RecurrentCell
	if memory != nil {
		cell, err = cfg.recurrentMaker()(g, headWidth, memory.Shape()[1],
			"critic_"+label+"_cell")
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("buildQStream: could "+
				"not construct recurrent cell: %v", err)
		}
		vars = append(vars, cell.Learnables()...)
		headWidth = memory.Shape()[1]
	}

	headMLPs := make(map[string]*network.MLP, len(cfg.StreamNames))
	for _, name := range cfg.StreamNames {
		head, err := network.NewDense(g, headWidth, numOutputs, true, init,
			"critic_"+label+"_"+name)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("buildQStream: could "+
				"not construct %v head %v: %v", label, name, err)
		}
		headMLPs[name] = head
		vars = append(vars, head.Learnables()...)
	}

	// eval runs the shared encoder, cell, and heads at one input
	eval := func(input *G.Node) (map[string]*G.Node, *G.Node, error) {
		h, err := enc.Fwd(input)
		if err != nil {
			return nil, nil, err
		}
		var memOut *G.Node
		if cell != nil {
			h, memOut, err = cell.Fwd(h, memory, cfg.SequenceLength)
			if err != nil {
				return nil, nil, err
			}
		}
		outs := make(map[string]*G.Node, len(cfg.StreamNames))
		for _, name := range cfg.StreamNames {
			if outs[name], err = headMLPs[name].Fwd(h); err != nil {
				return nil, nil, err
			}
		}
		return outs, memOut, nil
	}

	var heads, pHeads map[string]*G.Node
	var memoryOut *G.Node
	if extInput != nil {
		heads, memoryOut, err = eval(extInput)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("buildQStream: %v", err)
		}
	}
	if policyInput != nil {
		if policyInput == extInput {
			pHeads = heads
		} else {
			var pMemOut *G.Node
			pHeads, pMemOut, err = eval(policyInput)
			if err != nil {
				return nil, nil, nil, nil, fmt.Errorf("buildQStream: %v",
					err)
			}
			if memoryOut == nil {
				memoryOut = pMemOut
			}
		}
	}

	return heads, pHeads, vars, memoryOut, nil
}

// streamNodes returns the per-stream nodes in reward stream order
func streamNodes(heads map[string]*G.Node, names []string) []*G.Node {
	nodes := make([]*G.Node, len(names))
	for i, name := range names {
		nodes[i] = heads[name]
	}
	return nodes
}

// meanNodes returns the elementwise mean of the given nodes
func meanNodes(nodes []*G.Node) (*G.Node, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("meanNodes: no nodes given")
	}

	sum := nodes[0]
	var err error
	for _, n := range nodes[1:] {
		if sum, err = G.Add(sum, n); err != nil {
			return nil, fmt.Errorf("meanNodes: %v", err)
		}
	}
	if len(nodes) == 1 {
		return sum, nil
	}
	return G.Mul(G.NewConstant(1.0/float64(len(nodes))), sum)
}

// Graph returns the computational graph of the Network
func (net *Network) Graph() *G.ExprGraph {
	return net.g
}
