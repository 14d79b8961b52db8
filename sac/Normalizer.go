package sac

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/gosac/utils/floatutils"
)

// Normalizer tracks running statistics of observations and normalizes
// observations to approximately zero mean and unit variance, clipping
// the result to [-5, 5]. Statistics are updated from the batch mean of
// each update, and variance is maintained as a running sum of squared
// deviations divided by the number of updates when normalizing.
type Normalizer struct {
	dims     int
	steps    float64
	mean     []float64
	variance []float64
}

// NewNormalizer returns a Normalizer over observations of the given
// dimensionality.
func NewNormalizer(dims int) *Normalizer {
	variance := make([]float64, dims)
	for i := range variance {
		variance[i] = 1.0
	}
	return &Normalizer{
		dims:     dims,
		steps:    1.0,
		mean:     make([]float64, dims),
		variance: variance,
	}
}

// Update folds the batch mean of obs (batch x dims values, row-major)
// into the running statistics.
func (n *Normalizer) Update(obs []float64) error {
	if len(obs) == 0 || len(obs)%n.dims != 0 {
		return fmt.Errorf("update: invalid number of observation features "+
			"\n\twant(multiple of %v) \n\thave(%v)", n.dims, len(obs))
	}

	batch := len(obs) / n.dims
	batchMean := make([]float64, n.dims)
	for row := 0; row < batch; row++ {
		for i := 0; i < n.dims; i++ {
			batchMean[i] += obs[row*n.dims+i]
		}
	}
	for i := range batchMean {
		batchMean[i] /= float64(batch)
	}

	n.steps++
	for i := 0; i < n.dims; i++ {
		oldMean := n.mean[i]
		n.mean[i] = oldMean + (batchMean[i]-oldMean)/n.steps
		n.variance[i] += (batchMean[i] - n.mean[i]) * (batchMean[i] - oldMean)
	}
	return nil
}

// Normalize returns the normalized and clipped observations. The input
// is not modified.
func (n *Normalizer) Normalize(obs []float64) []float64 {
	normalized := make([]float64, len(obs))
	for j, x := range obs {
		i := j % n.dims
		std := n.variance[i] / n.steps
		if std <= 0 {
			std = 1e-8
		}
		normalized[j] = floatutils.Clip((x-n.mean[i])/math.Sqrt(std),
			-5.0, 5.0)
	}
	return normalized
}

// CopyFrom overwrites the receiver's statistics with those of source.
// Target networks keep their normalization statistics identical to the
// online network's by copying, never by blending.
func (n *Normalizer) CopyFrom(source *Normalizer) error {
	if n.dims != source.dims {
		return fmt.Errorf("copyfrom: incompatible dimensionality "+
			"\n\twant(%v) \n\thave(%v)", n.dims, source.dims)
	}
	n.steps = source.steps
	copy(n.mean, source.mean)
	copy(n.variance, source.variance)
	return nil
}

// Steps returns the number of statistic updates performed so far
func (n *Normalizer) Steps() float64 { return n.steps }
