package solver

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func TestSolverJSONRoundTrip(t *testing.T) {
	adam, err := NewAdam(3e-4, 1e-8, 0.9, 0.999, 32)
	if err != nil {
		t.Fatal(err)
	}
	defaultAdam, err := NewDefaultAdam(1e-3, 16)
	if err != nil {
		t.Fatal(err)
	}
	vanilla, err := NewVanilla(0.01, 8, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	unclipped, err := NewVanilla(0.01, 8, 0.0)
	if err != nil {
		t.Fatal(err)
	}
	decayed, err := NewDecayedAdam(3e-4, 1e-10, 1000)
	if err != nil {
		t.Fatal(err)
	}

	for _, solver := range []*Solver{adam, defaultAdam, vanilla, unclipped,
		decayed} {
		data, err := json.Marshal(solver)
		if err != nil {
			t.Fatalf("could not marshal %v solver: %v", solver.Type, err)
		}

		got := new(Solver)
		if err := json.Unmarshal(data, got); err != nil {
			t.Fatalf("could not unmarshal %v solver: %v", solver.Type, err)
		}
		if got.Type != solver.Type {
			t.Errorf("invalid solver type after round trip \n\twant(%v) "+
				"\n\thave(%v)", solver.Type, got.Type)
		}
		if !reflect.DeepEqual(got.Config, solver.Config) {
			t.Errorf("invalid %v configuration after round trip "+
				"\n\twant(%v) \n\thave(%v)", solver.Type, solver.Config,
				got.Config)
		}
		if got.Solver == nil {
			t.Errorf("no %v solver created after round trip", solver.Type)
		}
	}
}

func TestNewSolverRejectsMismatchedTypes(t *testing.T) {
	if _, err := newSolver(Vanilla, AdamConfig{}); err == nil {
		t.Error("expected an error for an Adam config with a Vanilla type")
	}
	if _, err := newSolver(Adam, DecayedAdamConfig{}); err == nil {
		t.Error("expected an error for a decayed Adam config with an " +
			"Adam type")
	}
}

func TestVanillaDescends(t *testing.T) {
	g := G.NewGraph()
	weights := G.NewVector(
		g,
		tensor.Float64,
		G.WithShape(3),
		G.WithName("weights"),
		G.WithValue(tensor.New(
			tensor.WithBacking([]float64{1.0, -2.0, 3.0}),
			tensor.WithShape(3),
		)),
	)
	squared, err := G.Square(weights)
	if err != nil {
		t.Fatal(err)
	}
	loss, err := G.Mean(squared)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := G.Grad(loss, weights); err != nil {
		t.Fatal(err)
	}

	vm := G.NewTapeMachine(g, G.BindDualValues(weights))
	defer vm.Close()

	vanilla, err := NewVanilla(0.1, 1, 0.0)
	if err != nil {
		t.Fatal(err)
	}

	first := math.NaN()
	last := math.NaN()
	for i := 0; i < 10; i++ {
		if err := vm.RunAll(); err != nil {
			t.Fatal(err)
		}
		last = loss.Value().Data().(float64)
		if i == 0 {
			first = last
		}

		err := vanilla.Step(G.NodesToValueGrads(G.Nodes{weights}))
		if err != nil {
			t.Fatal(err)
		}
		vm.Reset()
	}
	if !(last < first) {
		t.Errorf("loss did not decrease over 10 steps \n\thave(%v -> %v)",
			first, last)
	}
}
