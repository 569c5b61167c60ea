// Package errors はプロジェクト全体のエラーハンドリングと警告システムを提供します。
// scikit-learnの警告・例外システムにインスパイアされており、構造化されたエラー情報を提供します。
//
// 波長選択アルゴリズムが返すエラーは次の5種類に分類されます。
//
//   - InvalidParameterError: 設定値が有効範囲外
//   - InsufficientSamplesError: サンプル数が fold 数・成分数・サブサンプル比率を支えられない
//   - RankDeficiencyError: 有効な波長集合やサンプル集合が退化している
//   - NotFittedError: Fit 前にアクセサを呼び出した
//   - DimensionError: Transform の列数が Fit 時と異なる
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	グローバル警告ハンドリング
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		// デフォルトのハンドラは標準エラー出力にログを出す
		log.Printf("specsel-Warning: %v\n", w)
	}
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetWarningHandler はライブラリ全体の警告ハンドラを設定します。
//
// 例:
//
//	errors.SetWarningHandler(func(w error) {
//	    // 警告を無視する
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc はzerolog警告関数を設定します（循環importを避けるため）。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
// zerologが利用可能な場合は構造化ログとして出力し、そうでなければ従来のハンドラを使用します。
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}

	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	警告型
//
// ===========================================================================

// DegenerateDataWarning は退化したデータに対してフォールバック値を使った場合の警告です。
// 例えば、分散ゼロの波長や、標準偏差ゼロの係数列など。
type DegenerateDataWarning struct {
	Op       string
	Count    int     // 該当した波長の数
	Fallback float64 // 代わりに使われた値
	Reason   string
}

func (w *DegenerateDataWarning) Error() string {
	return fmt.Sprintf("%s: %d wavelength(s) %s; score set to %g", w.Op, w.Count, w.Reason, w.Fallback)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *DegenerateDataWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("operation", w.Op).
		Int("count", w.Count).
		Float64("fallback", w.Fallback).
		Str("reason", w.Reason).
		Str("type", "DegenerateDataWarning")
}

// NewDegenerateDataWarning は新しいDegenerateDataWarningを作成します。
func NewDegenerateDataWarning(op string, count int, fallback float64, reason string) *DegenerateDataWarning {
	return &DegenerateDataWarning{Op: op, Count: count, Fallback: fallback, Reason: reason}
}

// ComponentCapWarning は潜在成分数が上限に切り詰められた場合の警告です。
type ComponentCapWarning struct {
	Op        string
	Requested int
	Used      int
	Reason    string
}

func (w *ComponentCapWarning) Error() string {
	return fmt.Sprintf("%s: n_components reduced from %d to %d (%s)", w.Op, w.Requested, w.Used, w.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *ComponentCapWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("operation", w.Op).
		Int("requested", w.Requested).
		Int("used", w.Used).
		Str("reason", w.Reason).
		Str("type", "ComponentCapWarning")
}

// NewComponentCapWarning は新しいComponentCapWarningを作成します。
func NewComponentCapWarning(op string, requested, used int, reason string) *ComponentCapWarning {
	return &ComponentCapWarning{Op: op, Requested: requested, Used: used, Reason: reason}
}

// ===========================================================================
//
//	構造化されたエラー型
//
// ===========================================================================

// NotFittedError はモデルが未学習の状態で `GetSupport` や `Transform` を呼び出した場合のエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("specsel: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError は新しいNotFittedErrorを作成し、スタックトレースを付与します。
func NewNotFittedError(modelName, method string) error {
	err := &NotFittedError{ModelName: modelName, Method: method}
	return errors.WithStack(err)
}

// DimensionError は入力データの次元が期待値と異なる場合のエラーです。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/wavelengths
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("specsel: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, e.axisName(), e.Expected, e.Got)
}

func (e *DimensionError) axisName() string {
	if e.Axis == 0 {
		return "rows"
	}
	return "wavelengths"
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", e.axisName()).
		Str("type", "DimensionError")
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// InvalidParameterError は設定値が有効な定義域の外にある場合のエラーです。
type InvalidParameterError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("specsel: invalid parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *InvalidParameterError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "InvalidParameterError")
}

// NewInvalidParameterError は新しいInvalidParameterErrorを作成し、スタックトレースを付与します。
func NewInvalidParameterError(param, reason string, value interface{}) error {
	err := &InvalidParameterError{ParamName: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// InsufficientSamplesError はサンプル数が要求された fold 数、成分数、
// サブサンプル比率を支えられない場合のエラーです。
type InsufficientSamplesError struct {
	Op       string
	Required int
	Got      int
	Reason   string
}

func (e *InsufficientSamplesError) Error() string {
	return fmt.Sprintf("specsel: %s: insufficient samples: %s (required %d, got %d)", e.Op, e.Reason, e.Required, e.Got)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *InsufficientSamplesError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("required", e.Required).
		Int("got", e.Got).
		Str("reason", e.Reason).
		Str("type", "InsufficientSamplesError")
}

// NewInsufficientSamplesError は新しいInsufficientSamplesErrorを作成し、スタックトレースを付与します。
func NewInsufficientSamplesError(op string, required, got int, reason string) error {
	err := &InsufficientSamplesError{Op: op, Required: required, Got: got, Reason: reason}
	return errors.WithStack(err)
}

// RankDeficiencyError は有効な波長集合またはサンプル集合が退化しており、
// モデルを学習できない場合のエラーです。
type RankDeficiencyError struct {
	Op     string
	Reason string
}

func (e *RankDeficiencyError) Error() string {
	return fmt.Sprintf("specsel: %s: rank deficient: %s", e.Op, e.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *RankDeficiencyError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("reason", e.Reason).
		Str("type", "RankDeficiencyError")
}

// NewRankDeficiencyError は新しいRankDeficiencyErrorを作成し、スタックトレースを付与します。
func NewRankDeficiencyError(op, reason string) error {
	err := &RankDeficiencyError{Op: op, Reason: reason}
	return errors.WithStack(err)
}

// ModelError は機械学習モデルに関する一般的なエラーです。
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("specsel: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("specsel: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError は新しいModelErrorを作成し、スタックトレースを付与します。
func NewModelError(op, kind string, err error) error {
	modelErr := &ModelError{Op: op, Kind: kind, Err: err}
	return errors.WithStack(modelErr)
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")

	// ErrSingularMatrix は特異行列の場合のエラーです。
	ErrSingularMatrix = New("singular matrix")
)
