package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/specsel/pkg/errors"
)

func TestTestLoggerCapturesLevelsAndFields(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", OperationKey, OperationFit)
	testLogger.Warn("warning message")
	testLogger.Error("error message", fmt.Errorf("boom"), "code", "E1")

	require.NotEmpty(t, buffer.String())
	for _, msg := range []string{"debug message", "info message", "warning message", "error message"} {
		assert.True(t, testLogger.ContainsMessage(msg), msg)
	}
	assert.True(t, testLogger.ContainsField("key1", "value1"))
	assert.True(t, testLogger.ContainsField("number", 42.0))
	assert.True(t, testLogger.ContainsField(ErrAttrKey, "boom"))
	assert.True(t, testLogger.ContainsField("code", "E1"))
}

func TestTestLoggerWith(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)

	contextLogger := testLogger.With(
		ModelNameKey, "CARS",
		ComponentKey, "feature_selection",
	)
	contextLogger.Info("Training started", SamplesKey, 100)

	assert.True(t, testLogger.ContainsField(ModelNameKey, "CARS"))
	assert.True(t, testLogger.ContainsField(ComponentKey, "feature_selection"))
	assert.True(t, testLogger.ContainsField(SamplesKey, 100.0))
}

func TestTestLoggerLevelFiltering(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelWarn)
	ctx := context.Background()

	assert.False(t, testLogger.Enabled(ctx, LevelDebug))
	assert.False(t, testLogger.Enabled(ctx, LevelInfo))
	assert.True(t, testLogger.Enabled(ctx, LevelWarn))

	testLogger.Info("hidden")
	testLogger.Warn("shown")
	entries, err := testLogger.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "shown", entries[0]["message"])
	assert.Equal(t, "WARN", entries[0]["level"])
}

func TestZerologProvider(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProvider(&buf, LevelInfo, false)

	logger := p.GetLoggerWithName("cross_decomposition").With(ModelNameKey, "PLSRegression")
	logger.Debug("dropped")
	logger.Info("Training completed", ComponentsKey, 3, RMSECVKey, 0.25)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "info", rec["level"])
	assert.Equal(t, "Training completed", rec["message"])
	assert.Equal(t, "cross_decomposition", rec[ComponentKey])
	assert.Equal(t, "PLSRegression", rec[ModelNameKey])
	assert.Equal(t, 3.0, rec[ComponentsKey])

	assert.False(t, logger.Enabled(context.Background(), LevelDebug))
	p.SetLevel(LevelDebug)
	assert.True(t, p.GetLogger().Enabled(context.Background(), LevelDebug))
}

func TestZerologProviderStructuredError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologProvider(&buf, LevelDebug, false).GetLogger()

	err := errors.NewInvalidParameterError("k_folds", "must be at least 2", 1)
	logger.Error("fit failed", err, "detail", &errors.RankDeficiencyError{Op: "PLS.Fit", Reason: "zero variance"})

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	assert.Contains(t, rec["error"], "k_folds")
	detail, ok := rec["detail"].(map[string]interface{})
	require.True(t, ok, "zerolog object marshaler should produce a nested object")
	assert.Equal(t, "RankDeficiencyError", detail["type"])
}

func TestSlogProvider(t *testing.T) {
	var buf bytes.Buffer
	p := NewSlogProvider(&buf, LevelInfo)
	logger := p.GetLoggerWithName("benchmark")

	logger.Error("run failed", errors.New("no wavelengths"), RunKey, 2)

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	assert.Equal(t, "ERROR", rec["severity"])
	assert.Equal(t, "run failed", rec["message"])
	assert.Equal(t, "benchmark", rec[ComponentKey])
	assert.Equal(t, 2.0, rec[RunKey])
	assert.Contains(t, rec[ErrAttrKey], "no wavelengths")
}

func TestSlogProviderStacktrace(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogProvider(&buf, LevelInfo).GetLogger()

	logger.Error("fit failed", errors.NewInsufficientSamplesError("CARS.Fit", 5, 3, "fewer samples than folds"))

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	assert.Equal(t, "*errors.InsufficientSamplesError", rec[ErrorTypeKey])
	st, ok := rec[StacktraceAttrKey].(string)
	require.True(t, ok)
	assert.Contains(t, st, "TestSlogProviderStacktrace")

	buf.Reset()
	logger.Info("no error attached", SamplesKey, 10)
	rec = nil
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	assert.NotContains(t, rec, StacktraceAttrKey)
}

func TestSetupLoggerAndParseLevel(t *testing.T) {
	prev := SetLoggerProvider(NewZerologProvider(&bytes.Buffer{}, LevelWarn, false))
	defer SetLoggerProvider(prev)

	require.NoError(t, SetupLogger(FormatConsole, "debug"))
	require.NoError(t, SetupLogger(FormatSlog, "warn"))
	assert.Error(t, SetupLogger("xml", "info"))
	assert.Error(t, SetupLogger(FormatJSON, "verbose"))

	lvl, err := ParseLevel("error")
	require.NoError(t, err)
	assert.Equal(t, LevelError, lvl)
	assert.Equal(t, "ERROR", lvl.String())
	assert.Equal(t, "UNKNOWN", Level(3).String())
}

func TestWarningsRouteToProvider(t *testing.T) {
	logger, restore := UseTestProvider(LevelDebug)
	defer restore()

	errors.Warn(errors.NewComponentCapWarning("PLS.Fit", 10, 3, "only 3 wavelengths"))

	assert.True(t, logger.ContainsMessage("n_components reduced from 10 to 3"))
	assert.True(t, logger.ContainsField(ErrorTypeKey, "*errors.ComponentCapWarning"))
}

func TestConcurrentLogging(t *testing.T) {
	logger, _ := NewTestLogger(LevelInfo)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			l := logger.With(IntervalKey, g)
			for i := 0; i < 25; i++ {
				l.Info("interval scored", IterationKey, i)
			}
		}(g)
	}
	wg.Wait()

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 200)
}

func BenchmarkZerologLogging(b *testing.B) {
	var buf bytes.Buffer
	logger := NewZerologProvider(&buf, LevelInfo, false).GetLogger().With(ModelNameKey, "VIP")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info("benchmark", IterationKey, i)
	}
}
