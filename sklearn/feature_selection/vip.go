package feature_selection

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/specsel/pkg/errors"
	"github.com/YuminosukeSato/specsel/pkg/log"
	"github.com/YuminosukeSato/specsel/sklearn/cross_decomposition"
)

var vipKeys = []string{"n_features", "n_components", "max_components", "k_folds", "threshold"}

// VIP は Variable Importance in Projection による波長選択器。
//
// 全波長で PLS モデルを 1 回当てはめ、重みと成分ごとの y 説明分散から
//
//	vip(j) = sqrt( p · Σ_k w²_kj · varY_k / Σ_k varY_k )
//
// を計算し、スコアの高い順に n_features 個を残す（同点は列番号の小さい方）。
// WithThreshold を指定するとスコアが閾値以上の波長をすべて残す。
// 閾値を超える波長がなければ最高スコアの 1 波長を残す。
type VIP struct {
	selectorBase
}

// NewVIP creates a VIP selector with two latent components that keeps half
// of the wavelengths.
func NewVIP(opts ...Option) *VIP {
	return &VIP{
		selectorBase: newSelectorBase("VIP", params{
			nComponents: cross_decomposition.DefaultNComponents,
		}, opts),
	}
}

// Fit computes VIP scores on X (n×p) and y and stores the selection.
func (v *VIP) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "VIP.Fit")

	ds, start, err := v.begin(X, y)
	if err != nil {
		return err
	}
	_, p := ds.Dims()

	nFeatures := 0
	if !v.params.useThreshold {
		if nFeatures, err = resolveNFeatures(v.params.nFeatures, p); err != nil {
			return err
		}
	}
	nComponents, err := v.resolveComponents(ds)
	if err != nil {
		return err
	}

	latent, err := cross_decomposition.Fit(ds.X, ds.Y, nComponents)
	if err != nil {
		return err
	}
	scores := latent.VIPScores()

	var retained []int
	if v.params.useThreshold {
		for j, s := range scores {
			if s >= v.params.threshold {
				retained = append(retained, j)
			}
		}
		if len(retained) == 0 {
			retained = []int{floats.MaxIdx(scores)}
		}
	} else {
		retained = topK(scores, nFeatures)
	}

	v.logger.Debug("VIP scores computed",
		log.ComponentsKey, latent.NComponents,
		log.SelectedKey, len(retained),
	)
	return v.finish(ds, pointResult(p, retained, scores), start, vipKeys)
}

// GetParams returns the selector's configuration.
func (v *VIP) GetParams() map[string]interface{} {
	return v.params.getAll(vipKeys)
}

// SetParams updates the selector's configuration.
func (v *VIP) SetParams(values map[string]interface{}) error {
	return v.params.set(values, vipKeys)
}
