package linear

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/specsel/core/model"
	"github.com/YuminosukeSato/specsel/metrics"
	"github.com/YuminosukeSato/specsel/pkg/errors"
	"github.com/YuminosukeSato/specsel/pkg/log"
	"github.com/YuminosukeSato/specsel/preprocessing"
)

// LinearRegression は最小二乗法による線形回帰モデル。
// 選択された波長に対する評価用回帰器としてベンチマークで使われる。
//
// 係数は中心化した X と y に対する QR 分解（n < p の場合は LQ 分解による
// 最小ノルム解）で求める。正規方程式は使わない。
type LinearRegression struct {
	state        *model.StateManager
	logger       log.Logger
	fitIntercept bool

	Weights   *mat.VecDense // 重み（係数）
	Intercept float64       // 切片
}

// NewLinearRegression は新しい線形回帰モデルを作成する
func NewLinearRegression(opts ...Option) *LinearRegression {
	lr := &LinearRegression{
		state:        model.NewStateManager(),
		fitIntercept: true,
	}
	for _, opt := range opts {
		opt(lr)
	}
	lr.logger = log.GetLoggerWithName("linear").With(
		log.ModelNameKey, "LinearRegression",
		log.EstimatorIDKey, uuid.NewString(),
	)
	return lr
}

// Fit はモデルを訓練データで学習させる
func (lr *LinearRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LinearRegression.Fit")
	lr.state.Reset()

	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("LinearRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	yVec, err := metrics.ToVector(y)
	if err != nil {
		return err
	}
	if yVec.Len() != r {
		return errors.NewDimensionError("LinearRegression.Fit", r, yVec.Len(), 0)
	}

	start := time.Now()
	scaler := preprocessing.NewStandardScaler(lr.fitIntercept, false)
	Xc, err := scaler.FitTransform(X)
	if err != nil {
		return err
	}

	var yMean float64
	yc := mat.NewVecDense(r, nil)
	if lr.fitIntercept {
		for i := 0; i < r; i++ {
			yMean += yVec.AtVec(i)
		}
		yMean /= float64(r)
	}
	for i := 0; i < r; i++ {
		yc.SetVec(i, yVec.AtVec(i)-yMean)
	}

	var w mat.Dense
	if err := w.Solve(Xc, yc); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return errors.NewModelError("LinearRegression.Fit", "singular matrix", errors.ErrSingularMatrix)
		}
		// 悪条件でも解は得られている
		lr.logger.Debug("ill-conditioned least squares", "condition", float64(cond))
	}

	lr.Weights = mat.NewVecDense(c, nil)
	lr.Intercept = yMean
	for j := 0; j < c; j++ {
		lr.Weights.SetVec(j, w.At(j, 0))
		lr.Intercept -= scaler.Mean[j] * w.At(j, 0)
	}

	lr.state.SetFitted(c, r)
	lr.logger.Debug("Training completed",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, r,
		log.FeaturesKey, c,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.RequireFitted("LinearRegression", "Predict"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := lr.state.CheckFeatures("LinearRegression.Predict", c); err != nil {
		return nil, err
	}

	// 予測: y = X * weights + intercept
	predictions := mat.NewVecDense(r, nil)
	predictions.MulVec(X, lr.Weights)
	for i := 0; i < r; i++ {
		predictions.SetVec(i, predictions.AtVec(i)+lr.Intercept)
	}
	return predictions, nil
}

// GetWeights は学習された重み（係数）を返す
func (lr *LinearRegression) GetWeights() []float64 {
	if lr.Weights == nil {
		return nil
	}
	return append([]float64(nil), lr.Weights.RawVector().Data...)
}

// Score はモデルの決定係数（R²）を計算する
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	yPred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := metrics.ToVector(y)
	if err != nil {
		return 0, err
	}
	pred, err := metrics.ToVector(yPred)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(yTrue, pred)
}

// GetParams returns the model's hyperparameters.
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{"fit_intercept": lr.fitIntercept}
}

// String はモデルの文字列表現を返す
func (lr *LinearRegression) String() string {
	return fmt.Sprintf("LinearRegression(fit_intercept=%t)", lr.fitIntercept)
}
