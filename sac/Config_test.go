package sac

import (
	"testing"

	"github.com/samuelfneumann/gosac/initwfn"
)

// validConfig returns a small, fully valid feedforward configuration
func validConfig(t *testing.T, space ActionSpace) Config {
	t.Helper()
	init, err := initwfn.NewGlorotN(1.0)
	if err != nil {
		t.Fatal(err)
	}
	return Config{
		ObsDims:           3,
		ActionSpace:       space,
		StreamNames:       []string{"extrinsic"},
		Gammas:            []float64{0.99},
		HiddenSize:        8,
		NumLayers:         1,
		BatchSize:         4,
		LearningRate:      3e-4,
		FinalLearningRate: 1e-10,
		MaxSteps:          1000,
		Tau:               0.005,
		InitEntCoef:       1.0,
		InitWFn:           init,
		Seed:              42,
	}
}

func TestConfigValidate(t *testing.T) {
	base := validConfig(t, NewContinuous(2))
	if err := base.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero obs dims", func(c *Config) { c.ObsDims = 0 }},
		{"invalid action space", func(c *Config) {
			c.ActionSpace = NewDiscrete(nil)
		}},
		{"no reward streams", func(c *Config) {
			c.StreamNames = nil
			c.Gammas = nil
		}},
		{"stream/gamma mismatch", func(c *Config) {
			c.Gammas = []float64{0.99, 0.9}
		}},
		{"gamma out of range", func(c *Config) {
			c.Gammas = []float64{1.5}
		}},
		{"zero hidden size", func(c *Config) { c.HiddenSize = 0 }},
		{"zero layers", func(c *Config) { c.NumLayers = 0 }},
		{"indivisible memory size", func(c *Config) {
			c.UseRecurrent = true
			c.MemorySize = 6
			c.SequenceLength = 1
		}},
		{"zero sequence length", func(c *Config) {
			c.UseRecurrent = true
			c.MemorySize = 8
			c.SequenceLength = 0
		}},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }},
		{"zero learning rate", func(c *Config) { c.LearningRate = 0 }},
		{"zero max steps", func(c *Config) { c.MaxSteps = 0 }},
		{"tau out of range", func(c *Config) { c.Tau = 1.5 }},
		{"zero tau", func(c *Config) { c.Tau = 0 }},
		{"zero entropy coefficient", func(c *Config) {
			c.InitEntCoef = 0
		}},
		{"missing initializer", func(c *Config) { c.InitWFn = nil }},
	}

	for _, test := range tests {
		config := base
		test.mutate(&config)
		if err := config.Validate(); err == nil {
			t.Errorf("%v: expected an error", test.name)
		}
	}
}

func TestConfigValidateRecurrent(t *testing.T) {
	config := validConfig(t, NewDiscrete([]int{2, 3}))
	config.UseRecurrent = true
	config.MemorySize = 16
	config.SequenceLength = 4
	if err := config.Validate(); err != nil {
		t.Errorf("valid recurrent config rejected: %v", err)
	}
}
