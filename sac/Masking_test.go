package sac

import (
	"math"
	"testing"

	"golang.org/x/exp/rand"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func TestMaskLogitsRenormalizes(t *testing.T) {
	space := NewDiscrete([]int{2, 3})
	batch := 2

	g := G.NewGraph()
	logits := G.NewMatrix(g, tensor.Float64,
		G.WithShape(batch, space.TotalSize()), G.WithName("logits"))
	masks := G.NewMatrix(g, tensor.Float64,
		G.WithShape(batch, space.TotalSize()), G.WithName("masks"))

	dist, err := maskLogits(logits, masks, space)
	if err != nil {
		t.Fatal(err)
	}

	var probsVal, logProbsVal G.Value
	G.Read(dist.probs, &probsVal)
	G.Read(dist.logProbs, &logProbsVal)

	vm := G.NewTapeMachine(g)
	defer vm.Close()

	err = G.Let(logits, tensor.New(
		tensor.WithBacking([]float64{
			1.0, 1.0, 0.5, 0.5, 0.5,
			2.0, -1.0, 0.0, 0.0, 3.0,
		}),
		tensor.WithShape(batch, space.TotalSize()),
	))
	if err != nil {
		t.Fatal(err)
	}

	// Row 0 masks out action 1 of branch 0 and action 0 of branch 1;
	// row 1 allows everything.
	err = G.Let(masks, tensor.New(
		tensor.WithBacking([]float64{
			1.0, 0.0, 0.0, 1.0, 1.0,
			1.0, 1.0, 1.0, 1.0, 1.0,
		}),
		tensor.WithShape(batch, space.TotalSize()),
	))
	if err != nil {
		t.Fatal(err)
	}

	if err := vm.RunAll(); err != nil {
		t.Fatal(err)
	}

	probs := probsVal.Data().([]float64)
	width := space.TotalSize()
	offsets := space.Offsets()

	// Probabilities of each branch sum to one
	for row := 0; row < batch; row++ {
		for b := 0; b < space.NumBranches(); b++ {
			sum := 0.0
			for a := offsets[b]; a < offsets[b+1]; a++ {
				sum += probs[row*width+a]
			}
			if math.Abs(sum-1.0) > 1e-9 {
				t.Errorf("branch %v of row %v does not sum to one: %v",
					b, row, sum)
			}
		}
	}

	// Masked-out actions carry exactly zero probability
	for _, index := range []int{1, 2} {
		if probs[index] != 0.0 {
			t.Errorf("masked-out action %v has probability %v", index,
				probs[index])
		}
	}

	// Fully available branches reduce to a shifted softmax, preserving
	// the ordering of the logits.
	row1 := probs[width+offsets[1] : width+offsets[2]]
	if !(row1[2] > row1[0] && row1[0] == row1[1]) {
		t.Errorf("renormalization broke the logit ordering: %v", row1)
	}

	// Log probabilities match log(p + epsilon)
	logProbs := logProbsVal.Data().([]float64)
	for i := range probs {
		want := math.Log(probs[i] + epsilon)
		if math.Abs(logProbs[i]-want) > 1e-9 {
			t.Errorf("invalid log probability at index %v \n\twant(%v) "+
				"\n\thave(%v)", i, want, logProbs[i])
		}
	}
}

func TestSampleBranchesRespectsSupport(t *testing.T) {
	space := NewDiscrete([]int{2, 3})
	batch := 3
	source := rand.NewSource(17)

	// Row-major masked probabilities with zero-probability actions
	probs := []float64{
		1.0, 0.0, 0.0, 0.5, 0.5,
		0.5, 0.5, 1.0, 0.0, 0.0,
		0.0, 1.0, 0.0, 1.0, 0.0,
	}

	for trial := 0; trial < 100; trial++ {
		actions := sampleBranches(probs, space, batch, source)
		if len(actions) != batch*space.NumBranches() {
			t.Fatalf("invalid number of sampled actions \n\twant(%v) "+
				"\n\thave(%v)", batch*space.NumBranches(), len(actions))
		}

		if actions[0] != 0 {
			t.Fatalf("sampled zero-probability action in branch 0 of row 0")
		}
		if a := actions[1]; a != 1 && a != 2 {
			t.Fatalf("sampled zero-probability action in branch 1 of row 0")
		}
		if actions[3] != 0 {
			t.Fatalf("sampled zero-probability action in branch 1 of row 1")
		}
		if actions[4] != 1 || actions[5] != 1 {
			t.Fatalf("sampled zero-probability action in row 2")
		}
	}
}
