// Package model_selection provides the cross-validation scorer used to compare
// wavelength subsets and latent model complexities.
package model_selection

import (
	"math"
	"math/rand/v2"

	"github.com/YuminosukeSato/specsel/pkg/errors"
)

// DefaultNSplits is the fold count used when none is configured.
const DefaultNSplits = 5

// CVFold represents a single fold in cross-validation
type CVFold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFold implements k-fold cross-validation splitter.
// Without Shuffle the folds are contiguous blocks of samples; with Shuffle the
// sample order is permuted by a PCG source seeded with RandomSeed, so the
// assignment is deterministic for a given seed.
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed uint64
}

// NewKFold creates a new k-fold splitter
func NewKFold(nSplits int, shuffle bool, randomSeed uint64) *KFold {
	return &KFold{
		NSplits:    nSplits,
		Shuffle:    shuffle,
		RandomSeed: randomSeed,
	}
}

// GetNSplits returns the number of splits
func (kf *KFold) GetNSplits() int {
	return kf.NSplits
}

// Split generates train/test indices for each fold. The first n mod k folds
// hold one extra sample.
func (kf *KFold) Split(nSamples int) ([]CVFold, error) {
	if kf.NSplits < 2 {
		return nil, errors.NewInvalidParameterError("k_folds", "must be at least 2", kf.NSplits)
	}
	if nSamples < kf.NSplits {
		return nil, errors.NewInsufficientSamplesError("KFold.Split", kf.NSplits, nSamples,
			"every fold needs at least one held-out sample")
	}

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := rand.New(rand.NewPCG(kf.RandomSeed, kf.RandomSeed))
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	folds := make([]CVFold, kf.NSplits)
	foldSize := nSamples / kf.NSplits
	remainder := nSamples % kf.NSplits

	currentIdx := 0
	for i := 0; i < kf.NSplits; i++ {
		testSize := foldSize
		if i < remainder {
			testSize++
		}
		end := currentIdx + testSize

		testIndices := make([]int, testSize)
		copy(testIndices, indices[currentIdx:end])

		trainIndices := make([]int, 0, nSamples-testSize)
		trainIndices = append(trainIndices, indices[:currentIdx]...)
		trainIndices = append(trainIndices, indices[end:]...)

		folds[i] = CVFold{
			TrainIndices: trainIndices,
			TestIndices:  testIndices,
		}
		currentIdx = end
	}
	return folds, nil
}

// TrainTestSplit permutes 0..n-1 with rng and returns round(n·trainSize)
// training indices and the remaining test indices. Both sides keep at least
// one sample.
func TrainTestSplit(n int, trainSize float64, rng *rand.Rand) (train, test []int, err error) {
	if !(trainSize > 0 && trainSize < 1) {
		return nil, nil, errors.NewInvalidParameterError("train_size", "must be in (0, 1)", trainSize)
	}
	if n < 2 {
		return nil, nil, errors.NewInsufficientSamplesError("TrainTestSplit", 2, n, "need samples on both sides")
	}
	nTrain := int(math.Round(float64(n) * trainSize))
	if nTrain < 1 {
		nTrain = 1
	}
	if nTrain > n-1 {
		nTrain = n - 1
	}
	perm := rng.Perm(n)
	return perm[:nTrain], perm[nTrain:], nil
}
