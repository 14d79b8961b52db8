package sac

import (
	"fmt"

	"github.com/samuelfneumann/gosac/initwfn"
	"github.com/samuelfneumann/gosac/network"
	G "gorgonia.org/gorgonia"
)

// Config implements the configuration of a SAC model. A Config fully
// determines the architecture of the actor, critic, and target
// networks as well as the optimization hyperparameters, and is
// JSON-serializable.
type Config struct {
	// ObsDims is the dimensionality of (vector) observations
	ObsDims int

	// ActionSpace describes the actions the policy selects
	ActionSpace ActionSpace

	// StreamNames and Gammas describe the reward streams the critic
	// estimates values for. Gammas[i] is the discount factor of
	// stream StreamNames[i]. Value and Q estimates are averaged
	// across streams when used in losses.
	StreamNames []string
	Gammas      []float64

	// Architecture of the shared observation encoders
	HiddenSize int
	NumLayers  int

	// ShareTrunk determines whether the actor reuses the critic
	// network's observation encoding instead of building its own.
	// The shared trunk is a critic parameter: the critic resync at
	// the end of each update overwrites any change the policy
	// optimizer made to it.
	ShareTrunk bool

	// Normalize determines whether observations are normalized by
	// running statistics before being fed to the networks
	Normalize bool

	// Encoder constructs the observation streams of each network. Nil
	// selects an MLP encoder of HiddenSize by NumLayers.
	Encoder network.ObservationEncoderMaker `json:"-"`

	// RecurrentCell constructs the recurrent cells of each network
	// when UseRecurrent is true. Nil selects a simple recurrent cell.
	RecurrentCell network.RecurrentCellMaker `json:"-"`

	// Recurrence. When UseRecurrent is true, each network threads a
	// memory vector of MemorySize units through a recurrent cell. The
	// memory is split equally between the value, q1, q2, and policy
	// heads, so MemorySize must be divisible by 4.
	UseRecurrent   bool
	MemorySize     int
	SequenceLength int

	// Optimization. The learning rate of every optimizer decays
	// polynomially from LearningRate to FinalLearningRate over
	// MaxSteps updates.
	BatchSize         int
	LearningRate      float64
	FinalLearningRate float64
	MaxSteps          int

	// Tau is the Polyak averaging rate of target network updates
	Tau float64

	// InitEntCoef is the initial value of the learned entropy
	// coefficient
	InitEntCoef float64

	// InitWFn initializes network weights
	InitWFn *initwfn.InitWFn

	// Seed seeds action sampling
	Seed uint64
}

// Validate returns an error describing the first invalid setting of
// the Config, or nil if the Config is valid.
func (c Config) Validate() error {
	if c.ObsDims <= 0 {
		return fmt.Errorf("config: observation dimensionality must be "+
			"positive \n\twant(>0) \n\thave(%v)", c.ObsDims)
	}
	if err := c.ActionSpace.Validate(); err != nil {
		return fmt.Errorf("config: %v", err)
	}

	if len(c.StreamNames) == 0 {
		return fmt.Errorf("config: at least one reward stream is required")
	}
	if len(c.StreamNames) != len(c.Gammas) {
		return fmt.Errorf("config: one discount factor is required per "+
			"reward stream \n\twant(%v) \n\thave(%v)", len(c.StreamNames),
			len(c.Gammas))
	}
	for i, gamma := range c.Gammas {
		if gamma < 0 || gamma > 1 {
			return fmt.Errorf("config: discount factor of stream %v out of "+
				"range \n\twant(∈ [0, 1]) \n\thave(%v)", c.StreamNames[i],
				gamma)
		}
	}

	if c.HiddenSize <= 0 {
		return fmt.Errorf("config: hidden layer size must be positive "+
			"\n\twant(>0) \n\thave(%v)", c.HiddenSize)
	}
	if c.NumLayers < 1 {
		return fmt.Errorf("config: at least one hidden layer is required "+
			"\n\twant(≥1) \n\thave(%v)", c.NumLayers)
	}

	if c.UseRecurrent {
		if c.MemorySize <= 0 || c.MemorySize%4 != 0 {
			return fmt.Errorf("config: memory size must be positive and "+
				"divisible by 4 \n\thave(%v)", c.MemorySize)
		}
		if c.SequenceLength <= 0 {
			return fmt.Errorf("config: sequence length must be positive "+
				"\n\thave(%v)", c.SequenceLength)
		}
	}

	if c.BatchSize <= 0 {
		return fmt.Errorf("config: batch size must be positive "+
			"\n\thave(%v)", c.BatchSize)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("config: learning rate must be positive "+
			"\n\thave(%v)", c.LearningRate)
	}
	if c.MaxSteps <= 0 {
		return fmt.Errorf("config: maximum training steps must be positive "+
			"\n\thave(%v)", c.MaxSteps)
	}

	if c.Tau <= 0 || c.Tau > 1 {
		return fmt.Errorf("config: target update rate out of range "+
			"\n\twant(∈ (0, 1]) \n\thave(%v)", c.Tau)
	}
	if c.InitEntCoef <= 0 {
		return fmt.Errorf("config: initial entropy coefficient must be "+
			"positive \n\thave(%v)", c.InitEntCoef)
	}

	if c.InitWFn == nil {
		return fmt.Errorf("config: no weight initializer given")
	}
	return nil
}

// initFn returns the Gorgonia weight initializer of the Config
func (c Config) initFn() G.InitWFn {
	return c.InitWFn.InitWFn()
}

// encoderMaker returns the observation encoder constructor of the
// Config, defaulting to an MLP encoder of HiddenSize by NumLayers.
func (c Config) encoderMaker() network.ObservationEncoderMaker {
	if c.Encoder != nil {
		return c.Encoder
	}
	return network.MLPEncoder(c.HiddenSize, c.NumLayers, network.Swish(),
		c.initFn())
}

// recurrentMaker returns the recurrent cell constructor of the Config
func (c Config) recurrentMaker() network.RecurrentCellMaker {
	if c.RecurrentCell != nil {
		return c.RecurrentCell
	}
	return network.NewElmanCell(c.initFn())
}
