package tollgate

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tollgate/tollgate-go/pkg/schema"
	"github.com/tollgate/tollgate-go/pkg/toolset"
)

func newTestSDK(t *testing.T) *SDK {
	t.Helper()
	logger := zerolog.Nop()
	sdk, err := New(Options{
		ServerName: "test-server",
		Logger:     &logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { sdk.Shutdown(context.Background()) })
	return sdk
}

func TestNew_WithoutAPIKeyUsesSafeModes(t *testing.T) {
	sdk := newTestSDK(t)

	assert.True(t, sdk.Billing.Bypass())
	assert.NotNil(t, sdk.Recorder)
	assert.NotNil(t, sdk.Tools)
	assert.NotNil(t, sdk.Health)
}

func TestSDK_EndToEndDispatch(t *testing.T) {
	sdk := newTestSDK(t)

	require.NoError(t, sdk.Tools.Register(toolset.Definition{
		Name:        "greet",
		Description: "Greet a user",
		Params: []schema.Param{
			{Name: "name", Type: "string", Description: "Who to greet", Required: true},
		},
		Handler: func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			return "hello " + input["name"].(string), nil
		},
	}))

	result, err := sdk.Tools.Dispatch(context.Background(), "greet", map[string]interface{}{"name": "ada"})
	require.NoError(t, err)
	assert.Equal(t, "hello ada", result)
}

func TestNew_IsolatedInstances(t *testing.T) {
	first := newTestSDK(t)
	second := newTestSDK(t)

	require.NoError(t, first.Tools.Register(toolset.Definition{
		Name:        "only-here",
		Description: "Registered on one instance",
		Handler: func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			return nil, nil
		},
	}))

	assert.NotNil(t, first.Tools.Get("only-here"))
	assert.Nil(t, second.Tools.Get("only-here"))
}
