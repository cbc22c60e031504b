package toolwrap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tollgate/tollgate-go/pkg/mcperr"
)

// fakeRecorder captures metering reports.
type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

type recordedCall struct {
	tool     string
	duration time.Duration
	success  bool
	errMsg   string
}

func (f *fakeRecorder) TrackToolCall(tool string, duration time.Duration, success bool, errMsg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{tool, duration, success, errMsg})
}

func (f *fakeRecorder) Flush(ctx context.Context) error { return nil }
func (f *fakeRecorder) Shutdown(ctx context.Context)    {}

func (f *fakeRecorder) recorded() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func TestWrap_Success(t *testing.T) {
	recorder := &fakeRecorder{}
	handler := Wrap(func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
		return map[string]interface{}{"echo": input["query"]}, nil
	}, Options{Name: "search", Recorder: recorder})

	result, err := handler(context.Background(), map[string]interface{}{"query": "hello"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"echo": "hello"}, result)

	calls := recorder.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, "search", calls[0].tool)
	assert.True(t, calls[0].success)
	assert.Empty(t, calls[0].errMsg)
}

func TestWrap_Timeout(t *testing.T) {
	recorder := &fakeRecorder{}
	handler := Wrap(func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
		time.Sleep(200 * time.Millisecond)
		return "late", nil
	}, Options{Name: "slow", Timeout: 50 * time.Millisecond, Recorder: recorder})

	start := time.Now()
	_, err := handler(context.Background(), nil)
	elapsed := time.Since(start)

	var terr *mcperr.Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, mcperr.CodeTimeoutError, terr.Code)
	assert.Equal(t, "slow", terr.Data["operation"])
	assert.Equal(t, int64(50), terr.Data["timeoutMs"])

	// The caller gets the timeout promptly, not after the handler's 200ms.
	assert.Less(t, elapsed, 150*time.Millisecond)

	calls := recorder.recorded()
	require.Len(t, calls, 1)
	assert.False(t, calls[0].success)
}

func TestWrap_TimeoutDiscardsLateCompletion(t *testing.T) {
	done := make(chan struct{})
	handler := Wrap(func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
		defer close(done)
		time.Sleep(100 * time.Millisecond)
		return "late", nil
	}, Options{Name: "slow", Timeout: 20 * time.Millisecond})

	_, err := handler(context.Background(), nil)
	require.Error(t, err)

	// The abandoned handler still runs to completion; its outcome is
	// discarded rather than delivered.
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("abandoned handler never completed")
	}
}

func TestWrap_NormalizesPlainErrors(t *testing.T) {
	handler := Wrap(func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
		return nil, errors.New("boom")
	}, Options{Name: "search"})

	_, err := handler(context.Background(), nil)

	var terr *mcperr.Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, mcperr.CodeToolExecutionError, terr.Code)
	assert.Equal(t, "search", terr.Data["tool"])
	assert.Equal(t, "boom", terr.Data["reason"])
}

func TestWrap_PassesThroughTaxonomyErrors(t *testing.T) {
	original := mcperr.NewRateLimitError(time.Second)
	handler := Wrap(func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
		return nil, original
	}, Options{Name: "search"})

	_, err := handler(context.Background(), nil)

	var terr *mcperr.Error
	require.ErrorAs(t, err, &terr)
	assert.Same(t, original, terr)
}

func TestWrap_MeteringDisabled(t *testing.T) {
	recorder := &fakeRecorder{}
	disabled := false
	handler := Wrap(func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
		return "ok", nil
	}, Options{Name: "search", Metering: &disabled, Recorder: recorder})

	_, err := handler(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, recorder.recorded())
}

func TestWrap_RedactsTopLevelSensitiveKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	handler := Wrap(func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
		return "ok", nil
	}, Options{Name: "search", Logger: &logger})

	input := map[string]interface{}{
		"token":  "abc",
		"query":  "hello",
		"nested": map[string]interface{}{"password": "x"},
	}
	_, err := handler(context.Background(), input)
	require.NoError(t, err)

	logged := buf.String()
	assert.Contains(t, logged, `"token":"[REDACTED]"`)
	assert.Contains(t, logged, `"query":"hello"`)

	// Redaction is shallow: nested sensitive keys are logged as-is.
	assert.Contains(t, logged, `"password":"x"`)
}

func TestWrap_DoesNotMutateCallerInput(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	handler := Wrap(func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
		return input["token"], nil
	}, Options{Name: "search", Logger: &logger})

	result, err := handler(context.Background(), map[string]interface{}{"token": "abc"})
	require.NoError(t, err)

	// The handler still sees the real value; only the log view is redacted.
	assert.Equal(t, "abc", result)
}

func TestWrap_CorrelationIDsDiffer(t *testing.T) {
	var mu sync.Mutex
	var logs []string

	writer := writerFunc(func(p []byte) (int, error) {
		mu.Lock()
		logs = append(logs, string(p))
		mu.Unlock()
		return len(p), nil
	})
	logger := zerolog.New(writer)

	handler := Wrap(func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
		return "ok", nil
	}, Options{Name: "search", Logger: &logger})

	_, err := handler(context.Background(), nil)
	require.NoError(t, err)
	_, err = handler(context.Background(), nil)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(logs), 4)

	first := correlationID(t, logs[0])
	second := correlationID(t, logs[2])
	assert.NotEqual(t, first, second)
}

type writerFunc func(p []byte) (int, error)

func (w writerFunc) Write(p []byte) (int, error) { return w(p) }

func correlationID(t *testing.T, line string) string {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	id, ok := entry["correlation_id"].(string)
	require.True(t, ok, "log line missing correlation_id: %s", line)
	return id
}
