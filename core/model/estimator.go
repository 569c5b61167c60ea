package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Regressor は波長選択後の評価に使う回帰モデルのインターフェース
type Regressor interface {
	Fitter
	Predictor
}

// Selector は波長選択アルゴリズムの共通インターフェース。
//
// Fit が成功するまでアクセサは NotFittedError を返す。
// Transform は Fit 時と列数が異なる場合 DimensionError を返す。
type Selector interface {
	Fitter
	ParameterGetter
	ParameterSetter

	// GetSupport は長さ p の選択マスクを返す
	GetSupport() ([]bool, error)

	// GetSupportIndices は選択された波長の列番号を昇順で返す
	GetSupportIndices() ([]int, error)

	// Transform は X を選択された列だけに絞り込む
	Transform(X mat.Matrix) (mat.Matrix, error)

	// GetScores は波長ごとの診断スコアを返す
	GetScores() ([]float64, error)

	// Result は直近の Fit の SelectionResult を返す
	Result() (*SelectionResult, error)
}
