package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tollgate/tollgate-go/pkg/mcperr"
	"github.com/tollgate/tollgate-go/pkg/schema"
	"github.com/tollgate/tollgate-go/pkg/toolset"
)

func testSet(t *testing.T) *toolset.Set {
	t.Helper()
	set := toolset.New(toolset.Config{})
	require.NoError(t, set.Register(toolset.Definition{
		Name:        "search",
		Description: "Search the index",
		Params: []schema.Param{
			{Name: "query", Type: "string", Description: "Search query", Required: true},
		},
		Handler: func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			return map[string]interface{}{"echo": input["query"]}, nil
		},
	}))
	return set
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func TestDispatchHandler_Success(t *testing.T) {
	set := testSet(t)
	handler := dispatchHandler(set, "search")

	result, err := handler(context.Background(), callRequest("search", map[string]interface{}{"query": "hello"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &decoded))
	assert.Equal(t, "hello", decoded["echo"])
}

func TestDispatchHandler_TaxonomyErrorPayload(t *testing.T) {
	set := testSet(t)
	handler := dispatchHandler(set, "search")

	result, err := handler(context.Background(), callRequest("search", map[string]interface{}{}))
	require.NoError(t, err)
	require.True(t, result.IsError)

	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)

	var obj mcperr.ErrorObject
	require.NoError(t, json.Unmarshal([]byte(text.Text), &obj))
	assert.Equal(t, mcperr.CodeValidationError, obj.Code)
}

func TestNew_AttachesRegisteredTools(t *testing.T) {
	set := testSet(t)

	srv := New(set, Options{Name: "demo", Version: "1.0.0"})
	assert.NotNil(t, srv)
}
