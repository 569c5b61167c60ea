// Package stability は、同じ選択器を異なるデータ分割で繰り返し実行したときに
// 選ばれる波長集合がどれだけ一致するかを評価するスコアを提供する。
package stability

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/specsel/pkg/errors"
)

// DefaultCorrelationThreshold is the Zucknick correlation cut-off.
const DefaultCorrelationThreshold = 0.8

// Report keys of the pairwise scores.
const (
	DengName     = "deng_score"
	ZucknickName = "zucknick_score"
)

// PairwiseScore is a symmetric similarity between two wavelength selections.
type PairwiseScore interface {
	// Name returns the key under which the score is reported.
	Name() string
	// Pairwise returns the similarity of two selections given as column indices.
	Pairwise(a, b []int) float64
}

// Mean averages score over every unordered pair of distinct selections.
func Mean(score PairwiseScore, selections [][]int) (float64, error) {
	if len(selections) < 2 {
		return 0, errors.NewInsufficientSamplesError("stability.Mean", 2, len(selections),
			"stability needs at least two selections")
	}
	sum := 0.0
	pairs := 0
	for i := 0; i < len(selections); i++ {
		for j := i + 1; j < len(selections); j++ {
			sum += score.Pairwise(selections[i], selections[j])
			pairs++
		}
	}
	return sum / float64(pairs), nil
}

func intersection(a, b []int) int {
	in := make(map[int]struct{}, len(a))
	for _, j := range a {
		in[j] = struct{}{}
	}
	n := 0
	for _, j := range b {
		if _, ok := in[j]; ok {
			n++
		}
	}
	return n
}

// DengScore はランダム性を持つ選択法の安定度スコア（Deng et al., 2015）。
//
//	score = (|A∩B| − e) / (n − e),  e = |A|·|B| / p,  n = (|A| + |B|) / 2
//
// |A| = |B| のとき元の定義 e = n²/p に一致する。偶然の一致で期待される重なり e を
// 差し引くため、無作為な選択では 0 付近、同一の選択では 1 になる。
type DengScore struct {
	nWavelengths int
}

// NewDengScore creates a Deng score for selections out of p wavelengths.
func NewDengScore(p int) (*DengScore, error) {
	if p < 1 {
		return nil, errors.NewInvalidParameterError("n_wavelengths", "must be at least 1", p)
	}
	return &DengScore{nWavelengths: p}, nil
}

// Name implements PairwiseScore.
func (d *DengScore) Name() string { return DengName }

// Pairwise implements PairwiseScore. When every wavelength is selected the
// expected overlap equals the selection size and the score is defined as 1.
func (d *DengScore) Pairwise(a, b []int) float64 {
	n := float64(len(a)+len(b)) / 2
	e := float64(len(a)) * float64(len(b)) / float64(d.nWavelengths)
	if math.Abs(n-e) < 1e-12 {
		return 1
	}
	return (float64(intersection(a, b)) - e) / (n - e)
}

// ZucknickScore は相関で補正した安定度スコア（Zucknick et al., 2008）。
//
//	score = (|A∩B| + C(A,B) + C(B,A)) / |A∪B|
//
// C(A,B) は A の波長と B\A の波長の間の |相関| のうち閾値以上のものの和を |B| で
// 割ったもの。隣接波長のように強く相関する波長を選んだ場合も安定とみなす。
type ZucknickScore struct {
	columns   [][]float64
	threshold float64
}

// NewZucknickScore creates a Zucknick score on the spectra X. threshold must
// lie in [0, 1].
func NewZucknickScore(X mat.Matrix, threshold float64) (*ZucknickScore, error) {
	if !(threshold >= 0 && threshold <= 1) {
		return nil, errors.NewInvalidParameterError("correlation_threshold", "must be in [0, 1]", threshold)
	}
	_, p := X.Dims()
	cols := make([][]float64, p)
	for j := range cols {
		cols[j] = mat.Col(nil, j, X)
	}
	return &ZucknickScore{columns: cols, threshold: threshold}, nil
}

// Name implements PairwiseScore.
func (z *ZucknickScore) Name() string { return ZucknickName }

// Pairwise implements PairwiseScore.
func (z *ZucknickScore) Pairwise(a, b []int) float64 {
	inter := intersection(a, b)
	union := len(a) + len(b) - inter
	if union == 0 {
		return 1
	}
	return (float64(inter) + z.thresholdedCorrelation(a, b) + z.thresholdedCorrelation(b, a)) / float64(union)
}

func (z *ZucknickScore) thresholdedCorrelation(a, b []int) float64 {
	if len(b) == 0 {
		return 0
	}
	inA := make(map[int]struct{}, len(a))
	for _, j := range a {
		inA[j] = struct{}{}
	}
	sum := 0.0
	for _, j := range b {
		if _, ok := inA[j]; ok {
			continue
		}
		for _, i := range a {
			// 分散ゼロの列との相関は NaN になるので寄与させない
			c := math.Abs(stat.Correlation(z.columns[i], z.columns[j], nil))
			if c >= z.threshold {
				sum += c
			}
		}
	}
	return sum / float64(len(b))
}
