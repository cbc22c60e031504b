package mcperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Codes(t *testing.T) {
	balance := 3
	tests := []struct {
		name string
		err  *Error
		code int
	}{
		{"validation", NewValidationError("query", "is required", nil), -32008},
		{"tool not found", NewToolNotFound("search"), -32001},
		{"tool execution", NewToolExecutionError("search", errors.New("boom")), -32002},
		{"resource not found", NewResourceNotFound("doc://42"), -32003},
		{"authentication", NewAuthenticationError(""), -32004},
		{"authorization", NewAuthorizationError(""), -32005},
		{"rate limit", NewRateLimitError(time.Second), -32006},
		{"timeout", NewTimeoutError("search", 50*time.Millisecond), -32007},
		{"dependency", NewDependencyError("postgres", "connection refused"), -32009},
		{"configuration", NewConfigurationError("billing gate not initialized"), -32010},
		{"payment required", NewPaymentRequired("", "", ""), -32011},
		{"insufficient credits", NewInsufficientCredits(5, &balance, ""), -32012},
		{"subscription required", NewSubscriptionRequired("pro", "", ""), -32013},
		{"parse error", New(CodeParseError, "parse error"), -32700},
		{"invalid request", New(CodeInvalidRequest, "invalid request"), -32600},
		{"method not found", New(CodeMethodNotFound, "method not found"), -32601},
		{"invalid params", New(CodeInvalidParams, "invalid params"), -32602},
		{"internal error", New(CodeInternalError, "internal error"), -32603},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.code, tt.err.Object().Code)
		})
	}
}

func TestError_Object_OmitsEmptyData(t *testing.T) {
	withData := NewToolNotFound("search")
	withoutData := NewAuthenticationError("")

	body, err := json.Marshal(withData.Object())
	require.NoError(t, err)
	assert.Contains(t, string(body), `"data"`)

	body, err = json.Marshal(withoutData.Object())
	require.NoError(t, err)
	assert.NotContains(t, string(body), `"data"`)
}

func TestError_Response_Envelope(t *testing.T) {
	terr := NewTimeoutError("search", 50*time.Millisecond)

	body, err := json.Marshal(terr.Response("1755-abc"))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &decoded))

	assert.Equal(t, "2.0", decoded["jsonrpc"])
	assert.Equal(t, "1755-abc", decoded["id"])

	errObj, ok := decoded["error"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(-32007), errObj["code"])
	assert.Equal(t, "operation 'search' timed out after 50ms", errObj["message"])
}

func TestError_Response_NullID(t *testing.T) {
	body, err := json.Marshal(New(CodeInternalError, "internal error").Response(nil))
	require.NoError(t, err)
	assert.Contains(t, string(body), `"id":null`)
}

func TestNewInsufficientCredits_Data(t *testing.T) {
	balance := 3
	terr := NewInsufficientCredits(5, &balance, "https://example.com/buy")

	assert.Equal(t, "insufficient credits: 5 required, 3 available", terr.Message)
	assert.Equal(t, 5, terr.Data["required"])
	assert.Equal(t, 3, terr.Data["available"])
	assert.Equal(t, "https://example.com/buy", terr.Data["actionUrl"])
}

func TestNewInsufficientCredits_UnknownBalance(t *testing.T) {
	terr := NewInsufficientCredits(5, nil, "https://example.com/buy")

	assert.Equal(t, "insufficient credits: 5 required", terr.Message)
	assert.Equal(t, 5, terr.Data["required"])
	assert.NotContains(t, terr.Data, "available")
}

func TestError_WithReason(t *testing.T) {
	original := NewInsufficientCredits(5, nil, "https://example.com/buy")
	denied := original.WithReason("billing service unreachable")

	assert.Equal(t, "billing service unreachable", denied.Data["reason"])
	assert.Equal(t, original.Code, denied.Code)
	assert.Equal(t, 5, denied.Data["required"])

	// The receiver keeps its original data.
	assert.NotContains(t, original.Data, "reason")

	// Empty reasons are a no-op.
	assert.Same(t, original, original.WithReason(""))
}

func TestNewSubscriptionRequired_Data(t *testing.T) {
	terr := NewSubscriptionRequired("pro", "free", "https://example.com/upgrade")

	assert.Equal(t, "pro", terr.Data["requiredTier"])
	assert.Equal(t, "free", terr.Data["currentTier"])
	assert.Equal(t, "https://example.com/upgrade", terr.Data["upgradeUrl"])
}

func TestNormalize_PassesThroughTaxonomyErrors(t *testing.T) {
	original := NewResourceNotFound("doc://42")

	normalized := Normalize(original, "search")

	assert.Same(t, original, normalized)
}

func TestNormalize_PassesThroughWrappedTaxonomyErrors(t *testing.T) {
	original := NewResourceNotFound("doc://42")
	wrapped := fmt.Errorf("lookup: %w", original)

	normalized := Normalize(wrapped, "search")

	assert.Same(t, original, normalized)
}

func TestNormalize_WrapsUnknownErrors(t *testing.T) {
	cause := errors.New("boom")

	normalized := Normalize(cause, "search")

	assert.Equal(t, CodeToolExecutionError, normalized.Code)
	assert.Equal(t, "search", normalized.Data["tool"])
	assert.Equal(t, "boom", normalized.Data["reason"])
	assert.ErrorIs(t, normalized, cause)
}
