// Package cross_decomposition implements the latent-variable regression used by
// the wavelength selectors: single-target partial least squares fitted with the
// NIPALS algorithm.
package cross_decomposition

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/specsel/pkg/errors"
	"github.com/YuminosukeSato/specsel/preprocessing"
)

// nipalsTol below which a weight or score vector is treated as zero.
const nipalsTol = 1e-12

// LatentModel は 1 回の PLS フィットの結果。
// 係数は元の単位に戻されており、X を直接掛ければ予測になる。
type LatentModel struct {
	// NComponents は実際に抽出された成分数（要求より少ないことがある）
	NComponents int

	// Coef は NComponents 成分での回帰係数（長さ p）
	Coef []float64
	// Intercept は切片
	Intercept float64

	// Weights は正規化された重みベクトル w_k を列に持つ p×K 行列
	Weights *mat.Dense
	// Loadings は X のローディング p_k を列に持つ p×K 行列
	Loadings *mat.Dense
	// YLoadings は y のローディング q_k
	YLoadings []float64
	// Scores は潜在スコア t_k を列に持つ n×K 行列
	Scores *mat.Dense

	// XVarianceExplained と YVarianceExplained は成分ごとの説明分散比
	XVarianceExplained []float64
	YVarianceExplained []float64

	xMean, xScale []float64
	yMean         float64
	zeroVariance  int
}

// Fit は X (n×p) と y (n) に nComponents 成分の PLS1 モデルを当てはめる。
//
// X は列ごとに autoscale、y は中心化される。成分 k は、それまでの成分で
// デフレーションした X と y の共分散を最大化する方向として逐次的に求める。
// 分散ゼロの波長は係数0になる。
//
// エラー:
//   - nComponents < 1: InvalidParameterError
//   - p < 1、全波長が分散ゼロ、または y が定数: RankDeficiencyError
//   - n < nComponents + 1: InsufficientSamplesError
//
// nComponents > p の場合は p に切り詰め、ComponentCapWarning を出す。
func Fit(X mat.Matrix, y mat.Vector, nComponents int) (*LatentModel, error) {
	n, p := X.Dims()
	if nComponents < 1 {
		return nil, errors.NewInvalidParameterError("n_components", "must be at least 1", nComponents)
	}
	if p < 1 {
		return nil, errors.NewRankDeficiencyError("PLS.Fit", "no active wavelengths")
	}
	if y.Len() != n {
		return nil, errors.NewDimensionError("PLS.Fit", n, y.Len(), 0)
	}
	if nComponents > p {
		errors.Warn(errors.NewComponentCapWarning("PLS.Fit", nComponents, p, "more components than active wavelengths"))
		nComponents = p
	}
	if n < nComponents+1 {
		return nil, errors.NewInsufficientSamplesError("PLS.Fit", nComponents+1, n,
			"need more samples than latent components")
	}

	scaler := preprocessing.NewStandardScalerDefault()
	Xk, err := scaler.FitTransform(X)
	if err != nil {
		return nil, err
	}
	if scaler.NZeroVariance() == p {
		return nil, errors.NewRankDeficiencyError("PLS.Fit", "all wavelengths have zero variance")
	}

	yMean := 0.0
	for i := 0; i < n; i++ {
		yMean += y.AtVec(i)
	}
	yMean /= float64(n)
	yk := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		yk.SetVec(i, y.AtVec(i)-yMean)
	}

	xTotal := mat.Norm(Xk, 2)
	xTotal *= xTotal
	yTotal := mat.Dot(yk, yk)
	if yTotal < nipalsTol {
		return nil, errors.NewRankDeficiencyError("PLS.Fit", "target has zero variance")
	}

	W := mat.NewDense(p, nComponents, nil)
	P := mat.NewDense(p, nComponents, nil)
	T := mat.NewDense(n, nComponents, nil)
	q := make([]float64, 0, nComponents)
	varX := make([]float64, 0, nComponents)
	varY := make([]float64, 0, nComponents)

	w := mat.NewVecDense(p, nil)
	t := mat.NewVecDense(n, nil)
	load := mat.NewVecDense(p, nil)

	k := 0
	for ; k < nComponents; k++ {
		// w = Xᵀy / ||Xᵀy||
		w.MulVec(Xk.T(), yk)
		norm := mat.Norm(w, 2)
		if norm < nipalsTol {
			break
		}
		w.ScaleVec(1/norm, w)

		t.MulVec(Xk, w)
		tt := mat.Dot(t, t)
		if tt < nipalsTol {
			break
		}

		load.MulVec(Xk.T(), t)
		load.ScaleVec(1/tt, load)
		qk := mat.Dot(yk, t) / tt

		// デフレーション
		Xk.RankOne(Xk, -1, t, load)
		yk.AddScaledVec(yk, -qk, t)

		W.SetCol(k, w.RawVector().Data)
		P.SetCol(k, load.RawVector().Data)
		T.SetCol(k, t.RawVector().Data)
		q = append(q, qk)
		pp := mat.Dot(load, load)
		varX = append(varX, tt*pp/xTotal)
		varY = append(varY, tt*qk*qk/yTotal)
	}
	if k == 0 {
		return nil, errors.NewRankDeficiencyError("PLS.Fit", "no covariance between X and y")
	}

	m := &LatentModel{
		NComponents:        k,
		Weights:            sliceCols(W, k),
		Loadings:           sliceCols(P, k),
		YLoadings:          q,
		Scores:             sliceCols(T, k),
		XVarianceExplained: varX,
		YVarianceExplained: varY,
		xMean:              scaler.Mean,
		xScale:             scaler.Scale,
		yMean:              yMean,
		zeroVariance:       scaler.NZeroVariance(),
	}
	m.Coef, m.Intercept, err = m.CoefficientsFor(k)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func sliceCols(m *mat.Dense, k int) *mat.Dense {
	r, _ := m.Dims()
	return mat.DenseCopyOf(m.Slice(0, r, 0, k))
}

// CoefficientsFor returns the coefficients and intercept, in original units,
// of the model truncated to its first k components. Because components are
// extracted sequentially, one fit yields every model of lower complexity.
func (m *LatentModel) CoefficientsFor(k int) ([]float64, float64, error) {
	if k < 1 || k > m.NComponents {
		return nil, 0, errors.NewInvalidParameterError("n_components", "outside the fitted component range", k)
	}
	p, _ := m.Weights.Dims()
	Wk := m.Weights.Slice(0, p, 0, k)
	Pk := m.Loadings.Slice(0, p, 0, k)

	// B = W (PᵀW)⁻¹ q
	var R mat.Dense
	R.Mul(Pk.T(), Wk)
	var z mat.VecDense
	if err := z.SolveVec(&R, mat.NewVecDense(k, append([]float64(nil), m.YLoadings[:k]...))); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return nil, 0, errors.NewModelError("PLS.Fit", "singular loading matrix", errors.ErrSingularMatrix)
		}
	}
	var B mat.VecDense
	B.MulVec(Wk, &z)

	coef := make([]float64, p)
	intercept := m.yMean
	for j := 0; j < p; j++ {
		coef[j] = B.AtVec(j) / m.xScale[j]
		intercept -= m.xMean[j] * coef[j]
	}
	return coef, intercept, nil
}

// Predict returns X·Coef + Intercept.
func (m *LatentModel) Predict(X mat.Matrix) *mat.VecDense {
	return predictWith(X, m.Coef, m.Intercept)
}

func predictWith(X mat.Matrix, coef []float64, intercept float64) *mat.VecDense {
	n, _ := X.Dims()
	out := mat.NewVecDense(n, nil)
	out.MulVec(X, mat.NewVecDense(len(coef), coef))
	for i := 0; i < n; i++ {
		out.SetVec(i, out.AtVec(i)+intercept)
	}
	return out
}

// PredictWith returns the predictions of the model truncated to k components.
func (m *LatentModel) PredictWith(X mat.Matrix, k int) (*mat.VecDense, error) {
	coef, intercept, err := m.CoefficientsFor(k)
	if err != nil {
		return nil, err
	}
	return predictWith(X, coef, intercept), nil
}

// NZeroVariance returns the number of wavelengths that had zero variance and
// therefore received a zero coefficient.
func (m *LatentModel) NZeroVariance() int { return m.zeroVariance }

// VIPScores computes variable importance in projection for every wavelength:
//
//	vip(j) = sqrt( p · Σ_k w²_kj · varY_k / Σ_k varY_k )
//
// where w_k are the unit-norm weight vectors and varY_k the fraction of y
// variance explained by component k.
func (m *LatentModel) VIPScores() []float64 {
	p, k := m.Weights.Dims()
	total := floats.Sum(m.YVarianceExplained)
	scores := make([]float64, p)
	if total <= 0 {
		return scores
	}
	for j := 0; j < p; j++ {
		var s float64
		for c := 0; c < k; c++ {
			w := m.Weights.At(j, c)
			s += w * w * m.YVarianceExplained[c]
		}
		scores[j] = math.Sqrt(float64(p) * s / total)
	}
	return scores
}
