package cross_decomposition

import (
	"fmt"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/specsel/core/model"
	"github.com/YuminosukeSato/specsel/metrics"
	"github.com/YuminosukeSato/specsel/pkg/errors"
	"github.com/YuminosukeSato/specsel/pkg/log"
)

// DefaultNComponents is the number of latent components used when none is configured.
const DefaultNComponents = 2

// PLSRegression は単一目的変数の PLS 回帰推定器。
// ベンチマークの評価用回帰器として model.Regressor を満たす。
//
// 使用例:
//
//	pls := cross_decomposition.NewPLSRegression(cross_decomposition.WithNComponents(3))
//	if err := pls.Fit(X, y); err != nil { ... }
//	yPred, err := pls.Predict(XTest)
type PLSRegression struct {
	state       *model.StateManager
	logger      log.Logger
	nComponents int

	latent *LatentModel
}

// Option configures a PLSRegression.
type Option func(*PLSRegression)

// WithNComponents sets the number of latent components.
func WithNComponents(n int) Option {
	return func(p *PLSRegression) {
		p.nComponents = n
	}
}

// NewPLSRegression creates a PLS regressor with two components by default.
func NewPLSRegression(opts ...Option) *PLSRegression {
	p := &PLSRegression{
		state:       model.NewStateManager(),
		nComponents: DefaultNComponents,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = log.GetLoggerWithName("cross_decomposition").With(
		log.ModelNameKey, "PLSRegression",
		log.EstimatorIDKey, uuid.NewString(),
	)
	return p
}

// Fit fits the model on X (n×p) and y (n×1).
func (p *PLSRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "PLSRegression.Fit")
	p.state.Reset()

	yVec, err := metrics.ToVector(y)
	if err != nil {
		return err
	}
	latent, err := Fit(X, yVec, p.nComponents)
	if err != nil {
		return err
	}
	p.latent = latent

	n, nFeatures := X.Dims()
	p.state.SetFitted(nFeatures, n)
	p.logger.Debug("Training completed",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, nFeatures,
		log.ComponentsKey, latent.NComponents,
	)
	return nil
}

// Predict returns predictions as an n×1 column.
func (p *PLSRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := p.state.RequireFitted("PLSRegression", "Predict"); err != nil {
		return nil, err
	}
	_, c := X.Dims()
	if err := p.state.CheckFeatures("PLSRegression.Predict", c); err != nil {
		return nil, err
	}
	return p.latent.Predict(X), nil
}

// Score returns the coefficient of determination R² on (X, y).
func (p *PLSRegression) Score(X, y mat.Matrix) (float64, error) {
	yPred, err := p.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := metrics.ToVector(y)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(yTrue, yPred.(*mat.VecDense))
}

// Coef returns a copy of the regression coefficients in original units.
func (p *PLSRegression) Coef() ([]float64, error) {
	if err := p.state.RequireFitted("PLSRegression", "Coef"); err != nil {
		return nil, err
	}
	return append([]float64(nil), p.latent.Coef...), nil
}

// LatentModel returns the underlying fit.
func (p *PLSRegression) LatentModel() (*LatentModel, error) {
	if err := p.state.RequireFitted("PLSRegression", "LatentModel"); err != nil {
		return nil, err
	}
	return p.latent, nil
}

// GetParams returns the model's hyperparameters.
func (p *PLSRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{"n_components": p.nComponents}
}

// SetParams sets n_components.
func (p *PLSRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "n_components":
			n, ok := model.ParamInt(value)
			if !ok || n < 1 {
				return errors.NewInvalidParameterError(key, "must be a positive integer", value)
			}
			p.nComponents = n
		default:
			return errors.NewInvalidParameterError(key, "unknown parameter", value)
		}
	}
	return nil
}

func (p *PLSRegression) String() string {
	return fmt.Sprintf("PLSRegression(n_components=%d)", p.nComponents)
}
