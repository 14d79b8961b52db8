package sac

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// copyVars overwrites each parameter in dest with the value of the
// positionally matching parameter in src. The parameter lists must
// come from Networks built from the same Config, so matching positions
// hold identically shaped tensors.
func copyVars(dest, src G.Nodes) error {
	if len(dest) != len(src) {
		return fmt.Errorf("copyVars: mismatched parameter groups "+
			"\n\twant(%v) \n\thave(%v)", len(src), len(dest))
	}

	for i := range dest {
		if !dest[i].Shape().Eq(src[i].Shape()) {
			return fmt.Errorf("copyVars: parameter %v has incompatible "+
				"shape \n\twant(%v) \n\thave(%v)", i, src[i].Shape(),
				dest[i].Shape())
		}

		weights := src[i].Value().(*tensor.Dense).Clone().(*tensor.Dense)
		if err := G.Let(dest[i], weights); err != nil {
			return fmt.Errorf("copyVars: could not set parameter %v: %v",
				i, err)
		}
	}
	return nil
}

// polyakVars blends each parameter in dest toward the positionally
// matching parameter in src:
//
//	dest <- (1-tau)*dest + tau*src
//
// tau = 0 leaves dest unchanged and tau = 1 makes dest equal src.
func polyakVars(dest, src G.Nodes, tau float64) error {
	if len(dest) != len(src) {
		return fmt.Errorf("polyakVars: mismatched parameter groups "+
			"\n\twant(%v) \n\thave(%v)", len(src), len(dest))
	}

	for i := range dest {
		if !dest[i].Shape().Eq(src[i].Shape()) {
			return fmt.Errorf("polyakVars: parameter %v has incompatible "+
				"shape \n\twant(%v) \n\thave(%v)", i, src[i].Shape(),
				dest[i].Shape())
		}

		weights := dest[i].Value().(*tensor.Dense).Clone().(*tensor.Dense)
		weights, err := weights.MulScalar(1-tau, true)
		if err != nil {
			return fmt.Errorf("polyakVars: could not scale parameter "+
				"%v: %v", i, err)
		}

		sourceWeights := src[i].Value().(*tensor.Dense).Clone().(*tensor.Dense)
		sourceWeights, err = sourceWeights.MulScalar(tau, true)
		if err != nil {
			return fmt.Errorf("polyakVars: could not scale source "+
				"parameter %v: %v", i, err)
		}

		weights, err = weights.Add(sourceWeights)
		if err != nil {
			return fmt.Errorf("polyakVars: could not blend parameter "+
				"%v: %v", i, err)
		}

		if err := G.Let(dest[i], weights); err != nil {
			return fmt.Errorf("polyakVars: could not set parameter "+
				"%v: %v", i, err)
		}
	}
	return nil
}
