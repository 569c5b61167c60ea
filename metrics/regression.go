package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/specsel/pkg/errors"
)

// Func は回帰指標の共通シグネチャ
type Func func(yTrue, yPred mat.Vector) (float64, error)

// Standard metric names accepted by Lookup.
const (
	NameMSE               = "mse"
	NameRMSE              = "rmse"
	NameMAE               = "mae"
	NameR2                = "r2"
	NameMAPE              = "mape"
	NameExplainedVariance = "explained_variance"
)

var registry = map[string]Func{
	NameMSE:               MSE,
	NameRMSE:              RMSE,
	NameMAE:               MAE,
	NameR2:                R2Score,
	NameMAPE:              MAPE,
	NameExplainedVariance: ExplainedVarianceScore,
}

// Lookup は名前から指標関数を取得する
func Lookup(name string) (Func, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, errors.NewInvalidParameterError("metric", "unknown regression metric", name)
	}
	return fn, nil
}

// Names returns the registered metric names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// residuals は入力を検証し、yTrue と yPred を slice として返す
func residuals(op string, yTrue, yPred mat.Vector) (truth, pred []float64, err error) {
	n := yTrue.Len()
	if n == 0 {
		return nil, nil, errors.Wrap(errors.ErrEmptyData, op)
	}
	if yPred.Len() != n {
		return nil, nil, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	truth = make([]float64, n)
	pred = make([]float64, n)
	for i := 0; i < n; i++ {
		truth[i] = yTrue.AtVec(i)
		pred[i] = yPred.AtVec(i)
	}
	return truth, pred, nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred mat.Vector) (float64, error) {
	truth, pred, err := residuals("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	// MSE = (1/n) * Σ(yTrue - yPred)²
	d := floats.Distance(truth, pred, 2)
	return d * d / float64(len(truth)), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred mat.Vector) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred mat.Vector) (float64, error) {
	truth, pred, err := residuals("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return floats.Distance(truth, pred, 1) / float64(len(truth)), nil
}

// R2Score は決定係数（R²）を計算する
func R2Score(yTrue, yPred mat.Vector) (float64, error) {
	truth, pred, err := residuals("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	yMean := stat.Mean(truth, nil)
	var tss, rss float64
	for i := range truth {
		tss += (truth[i] - yMean) * (truth[i] - yMean)
		rss += (truth[i] - pred[i]) * (truth[i] - pred[i])
	}

	// 全変動が0の場合（すべてのyTrueが同じ値）
	if tss == 0 {
		return 0, errors.Newf("R2Score: total sum of squares is zero (no variance in yTrue)")
	}
	return 1 - rss/tss, nil
}

// MAPE は平均絶対パーセンテージ誤差を計算する。yTrue が0の要素は除外する。
func MAPE(yTrue, yPred mat.Vector) (float64, error) {
	truth, pred, err := residuals("MAPE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	validCount := 0
	for i := range truth {
		if truth[i] != 0 {
			sum += math.Abs(truth[i]-pred[i]) / math.Abs(truth[i])
			validCount++
		}
	}
	if validCount == 0 {
		return 0, errors.Newf("MAPE: all yTrue values are zero")
	}
	return (sum / float64(validCount)) * 100, nil
}

// ExplainedVarianceScore は説明分散スコア 1 - Var(yTrue - yPred) / Var(yTrue) を計算する
func ExplainedVarianceScore(yTrue, yPred mat.Vector) (float64, error) {
	truth, pred, err := residuals("ExplainedVarianceScore", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	diff := make([]float64, len(truth))
	floats.SubTo(diff, truth, pred)
	_, varYTrue := stat.PopMeanVariance(truth, nil)
	_, varDiff := stat.PopMeanVariance(diff, nil)
	if varYTrue == 0 {
		return 0, errors.Newf("ExplainedVarianceScore: no variance in yTrue")
	}
	return 1 - varDiff/varYTrue, nil
}

// ToVector は n×1 の行列（Predict の出力など）を VecDense に変換する
func ToVector(m mat.Matrix) (*mat.VecDense, error) {
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "ToVector")
	}
	if c != 1 {
		return nil, errors.NewInvalidParameterError("y", "must be a column vector (n×1 matrix)", c)
	}
	if v, ok := m.(*mat.VecDense); ok {
		return v, nil
	}
	out := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		out.SetVec(i, m.At(i, 0))
	}
	return out, nil
}
