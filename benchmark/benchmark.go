// Package benchmark は複数の波長選択法を、同じ乱数分割の上で繰り返し評価する。
//
// 各実行では学習/テスト分割を作り、すべての手法を学習側で当てはめ、
// 選ばれた波長だけで評価用回帰器を学習し直してテスト側で回帰指標を計算する。
// 実行時間と選択結果を記録し、最後に指標の平均・標準偏差と選択の安定度をまとめる。
package benchmark

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/specsel/core/model"
	"github.com/YuminosukeSato/specsel/core/parallel"
	"github.com/YuminosukeSato/specsel/metrics"
	"github.com/YuminosukeSato/specsel/pkg/errors"
	"github.com/YuminosukeSato/specsel/pkg/log"
	"github.com/YuminosukeSato/specsel/sklearn/model_selection"
	"github.com/YuminosukeSato/specsel/stability"
)

// Method is a named selector factory. New is called once per run with the
// run's seed, so stochastic selectors differ between runs but not between
// repeated benchmarks.
type Method struct {
	Name string
	New  func(seed int64) model.Selector
}

// RunRecord is the outcome of one method on one split.
type RunRecord struct {
	Run      int                `json:"run"`
	Method   string             `json:"method"`
	Seed     int64              `json:"seed"`
	Support  []int              `json:"support"`
	Metrics  map[string]float64 `json:"metrics"`
	FitTime  time.Duration      `json:"fit_time_ns"`
	Selected int                `json:"selected"`
}

// Summary is the mean and sample standard deviation of one metric over runs.
type Summary struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// Report collects every run and the aggregated statistics.
type Report struct {
	Methods      []string    `json:"methods"`
	Metrics      []string    `json:"metrics"`
	NRuns        int         `json:"n_runs"`
	NWavelengths int         `json:"n_wavelengths"`
	Records      []RunRecord `json:"records"`

	// Summaries[method][metric]; the metric "fit_time_s" holds the fit time.
	Summaries map[string]map[string]Summary `json:"summaries"`
	// Stability[method][score]; empty with fewer than two runs.
	Stability map[string]map[string]float64 `json:"stability"`
}

// FitTimeMetric is the summary key of the selector fit time in seconds.
const FitTimeMetric = "fit_time_s"

// Run benchmarks methods on X (n×p) and y. Split seeds are drawn sequentially
// before the (run, method) pairs are fitted concurrently, so the report does
// not depend on n_jobs.
func Run(ctx context.Context, X, y mat.Matrix, methods []Method, opts ...Option) (report *Report, err error) {
	defer errors.Recover(&err, "benchmark.Run")

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := log.GetLoggerWithName("benchmark").With(log.EstimatorIDKey, uuid.NewString())

	ds, err := model.NewSpectralDataset(X, y)
	if err != nil {
		return nil, err
	}
	n, p := ds.Dims()
	if len(methods) == 0 {
		return nil, errors.NewInvalidParameterError("methods", "at least one method is required", 0)
	}
	if cfg.nRuns < 1 {
		return nil, errors.NewInvalidParameterError("n_runs", "must be at least 1", cfg.nRuns)
	}
	if cfg.newRegressor == nil {
		return nil, errors.NewInvalidParameterError("regressor", "factory must not be nil", nil)
	}
	metricFns := make([]metrics.Func, len(cfg.metrics))
	for i, name := range cfg.metrics {
		if metricFns[i], err = metrics.Lookup(name); err != nil {
			return nil, err
		}
	}

	methods = append([]Method(nil), methods...)
	sort.SliceStable(methods, func(a, b int) bool { return methods[a].Name < methods[b].Name })
	for i := 1; i < len(methods); i++ {
		if methods[i].Name == methods[i-1].Name {
			return nil, errors.NewInvalidParameterError("methods", "duplicate method name", methods[i].Name)
		}
	}

	seed := uint64(cfg.randomState)
	if cfg.randomState < 0 {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, seed))
	type split struct {
		seed        int64
		train, test []int
	}
	splits := make([]split, cfg.nRuns)
	for r := range splits {
		splits[r].seed = rng.Int64N(1_000_000)
		if splits[r].train, splits[r].test, err = model_selection.TrainTestSplit(n, cfg.trainSize, rng); err != nil {
			return nil, err
		}
	}

	logger.Info("Benchmark started",
		log.SamplesKey, n,
		log.FeaturesKey, p,
		log.RunKey, cfg.nRuns,
		log.RandomSeedKey, seed,
	)
	start := time.Now()

	records := make([]RunRecord, cfg.nRuns*len(methods))
	err = parallel.ForEach(ctx, len(records), cfg.nJobs, func(ctx context.Context, job int) error {
		r, m := job/len(methods), job%len(methods)
		rec, err := evaluate(ds, splits[r].train, splits[r].test, splits[r].seed, methods[m], cfg, metricFns)
		if err != nil {
			return errors.Wrapf(err, "benchmark run %d, method %s", r, methods[m].Name)
		}
		rec.Run = r
		records[job] = *rec
		logger.Debug("Benchmark run finished",
			log.RunKey, r,
			log.MethodKey, methods[m].Name,
			log.SelectedKey, rec.Selected,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	report = &Report{
		NRuns:        cfg.nRuns,
		NWavelengths: p,
		Metrics:      append([]string(nil), cfg.metrics...),
		Records:      records,
		Summaries:    make(map[string]map[string]Summary, len(methods)),
		Stability:    make(map[string]map[string]float64, len(methods)),
	}
	for _, m := range methods {
		report.Methods = append(report.Methods, m.Name)
	}
	report.summarize()
	if err := report.scoreStability(ds.X, cfg.correlationThreshold); err != nil {
		return nil, err
	}

	logger.Info("Benchmark completed",
		log.DurationMsKey, time.Since(start).Milliseconds(),
		log.MethodKey, len(methods),
	)
	return report, nil
}

// evaluate fits one method on the training split and scores the evaluation
// regressor on the test split.
func evaluate(ds *model.SpectralDataset, train, test []int, seed int64, method Method,
	cfg config, metricFns []metrics.Func) (*RunRecord, error) {
	trainDS := ds.Subset(train, nil)
	testDS := ds.Subset(test, nil)

	sel := method.New(seed)
	t0 := time.Now()
	if err := sel.Fit(trainDS.X, trainDS.Y); err != nil {
		return nil, err
	}
	fitTime := time.Since(t0)

	support, err := sel.GetSupportIndices()
	if err != nil {
		return nil, err
	}
	Xtr, err := sel.Transform(trainDS.X)
	if err != nil {
		return nil, err
	}
	Xte, err := sel.Transform(testDS.X)
	if err != nil {
		return nil, err
	}

	reg := cfg.newRegressor()
	if err := reg.Fit(Xtr, trainDS.Y); err != nil {
		return nil, err
	}
	pred, err := reg.Predict(Xte)
	if err != nil {
		return nil, err
	}
	predVec, err := metrics.ToVector(pred)
	if err != nil {
		return nil, err
	}

	rec := &RunRecord{
		Method:   method.Name,
		Seed:     seed,
		Support:  support,
		Metrics:  make(map[string]float64, len(metricFns)),
		FitTime:  fitTime,
		Selected: len(support),
	}
	for i, fn := range metricFns {
		v, err := fn(testDS.Y, predVec)
		if err != nil {
			return nil, err
		}
		rec.Metrics[cfg.metrics[i]] = v
	}
	return rec, nil
}

func (r *Report) summarize() {
	for _, method := range r.Methods {
		r.Summaries[method] = make(map[string]Summary, len(r.Metrics)+1)
		for _, metric := range r.Metrics {
			r.Summaries[method][metric] = meanStd(r.MetricSamples(method, metric))
		}
		var times []float64
		for _, rec := range r.records(method) {
			times = append(times, rec.FitTime.Seconds())
		}
		r.Summaries[method][FitTimeMetric] = meanStd(times)
	}
}

func (r *Report) scoreStability(X mat.Matrix, threshold float64) error {
	if r.NRuns < 2 {
		return nil
	}
	deng, err := stability.NewDengScore(r.NWavelengths)
	if err != nil {
		return err
	}
	zucknick, err := stability.NewZucknickScore(X, threshold)
	if err != nil {
		return err
	}
	for _, method := range r.Methods {
		selections := r.Selections(method)
		r.Stability[method] = make(map[string]float64, 2)
		for _, score := range []stability.PairwiseScore{deng, zucknick} {
			v, err := stability.Mean(score, selections)
			if err != nil {
				return err
			}
			r.Stability[method][score.Name()] = v
		}
	}
	return nil
}

func meanStd(x []float64) Summary {
	if len(x) == 0 {
		return Summary{Mean: math.NaN(), Std: math.NaN()}
	}
	if len(x) == 1 {
		return Summary{Mean: x[0]}
	}
	mean, std := stat.MeanStdDev(x, nil)
	return Summary{Mean: mean, Std: std}
}

func (r *Report) records(method string) []RunRecord {
	var out []RunRecord
	for _, rec := range r.Records {
		if rec.Method == method {
			out = append(out, rec)
		}
	}
	return out
}

// MetricSamples returns the per-run values of metric for method, in run order.
func (r *Report) MetricSamples(method, metric string) []float64 {
	var out []float64
	for _, rec := range r.records(method) {
		if v, ok := rec.Metrics[metric]; ok {
			out = append(out, v)
		}
	}
	return out
}

// Selections returns the per-run selected wavelengths of method.
func (r *Report) Selections(method string) [][]int {
	var out [][]int
	for _, rec := range r.records(method) {
		out = append(out, rec.Support)
	}
	return out
}

// SelectionProbability returns, for every wavelength, the fraction of runs in
// which method selected it.
func (r *Report) SelectionProbability(method string) []float64 {
	prob := make([]float64, r.NWavelengths)
	recs := r.records(method)
	if len(recs) == 0 {
		return prob
	}
	for _, rec := range recs {
		for _, j := range rec.Support {
			prob[j]++
		}
	}
	for j := range prob {
		prob[j] /= float64(len(recs))
	}
	return prob
}
