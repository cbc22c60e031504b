// Package toolset holds the registered tools of a server and dispatches
// invocations to them through the full SDK pipeline: schema validation with
// defaults, optional paywall gating, and the invocation wrapper.
package toolset

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tollgate/tollgate-go/pkg/billing"
	"github.com/tollgate/tollgate-go/pkg/mcperr"
	"github.com/tollgate/tollgate-go/pkg/metering"
	"github.com/tollgate/tollgate-go/pkg/schema"
	"github.com/tollgate/tollgate-go/pkg/toolwrap"
)

// Definition describes one tool: its protocol metadata, parameters, handler
// and cross-cutting options.
type Definition struct {
	Name        string
	Description string
	Params      []schema.Param
	Handler     toolwrap.Handler

	// Timeout bounds each invocation. Zero means toolwrap.DefaultTimeout.
	Timeout time.Duration

	// Requirement attaches a paywall to the tool. Nil means free.
	Requirement *billing.Requirement
}

// Config configures a Set.
type Config struct {
	// Recorder receives outcome events for every dispatched call. Nil
	// disables metering.
	Recorder metering.Recorder

	// Gate enforces paywalls for definitions carrying a Requirement. A nil
	// gate with a paid definition is a registration error rather than a
	// silent allow.
	Gate *billing.Gate

	// Logger is the base logger for wrapped handlers. Defaults to the
	// global logger.
	Logger *zerolog.Logger
}

type registeredTool struct {
	def     Definition
	schema  *schema.Compiled
	wrapped toolwrap.Handler
}

// Set is a concurrency-safe tool registry.
type Set struct {
	cfg    Config
	logger zerolog.Logger

	mu    sync.RWMutex
	tools map[string]*registeredTool
}

// New creates an empty tool set.
func New(cfg Config) *Set {
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Set{
		cfg:    cfg,
		logger: logger.With().Str("component", "toolset").Logger(),
		tools:  make(map[string]*registeredTool),
	}
}

// Register validates the definition, compiles its schema and installs the
// fully wrapped handler.
func (s *Set) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Description == "" {
		return fmt.Errorf("tool description cannot be empty for %s", def.Name)
	}
	if def.Handler == nil {
		return fmt.Errorf("tool handler cannot be nil for %s", def.Name)
	}
	if def.Requirement != nil && s.cfg.Gate == nil {
		return fmt.Errorf("tool %s declares a billing requirement but no gate is configured", def.Name)
	}

	params := def.Params
	if def.Requirement != nil && !declaresUserID(params) {
		// Paid tools receive the billing identity through the input; admit
		// the conventional key so validation does not reject it.
		params = append(append([]schema.Param{}, params...), schema.Param{
			Name:        "userId",
			Type:        "string",
			Description: "Billing user identifier",
		})
	}

	compiled, err := schema.Compile(params)
	if err != nil {
		return fmt.Errorf("invalid parameters for tool %s: %w", def.Name, err)
	}

	handler := def.Handler
	if def.Requirement != nil {
		handler = s.cfg.Gate.Protect(def.Name, *def.Requirement, handler)
	}
	wrapped := toolwrap.Wrap(handler, toolwrap.Options{
		Name:     def.Name,
		Timeout:  def.Timeout,
		Recorder: s.cfg.Recorder,
		Logger:   &s.logger,
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tools[def.Name]; exists {
		return fmt.Errorf("tool already registered: %s", def.Name)
	}
	s.tools[def.Name] = &registeredTool{def: def, schema: compiled, wrapped: wrapped}

	s.logger.Info().Str("tool", def.Name).Bool("paid", def.Requirement != nil).Msg("Tool registered")
	return nil
}

// Unregister removes a tool.
func (s *Set) Unregister(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tools, name)
	s.logger.Info().Str("tool", name).Msg("Tool unregistered")
}

// Get returns a registered definition, or nil.
func (s *Set) Get(name string) *Definition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tools[name]; ok {
		def := t.def
		return &def
	}
	return nil
}

// List returns the registered tool names.
func (s *Set) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.tools))
	for name := range s.tools {
		names = append(names, name)
	}
	return names
}

// Schema returns the generated schema document for a tool, or nil.
func (s *Set) Schema(name string) map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tools[name]; ok {
		return t.schema.Raw()
	}
	return nil
}

func declaresUserID(params []schema.Param) bool {
	for _, p := range params {
		if p.Name == "userId" || p.Name == "user_id" {
			return true
		}
	}
	return false
}

// Dispatch validates input and runs the named tool through the full
// pipeline. Every error returned is a taxonomy member.
func (s *Set) Dispatch(ctx context.Context, name string, input map[string]interface{}) (interface{}, error) {
	s.mu.RLock()
	tool := s.tools[name]
	s.mu.RUnlock()

	if tool == nil {
		return nil, mcperr.NewToolNotFound(name)
	}

	merged, verr := tool.schema.ValidateAndApplyDefaults(input)
	if verr != nil {
		return nil, verr
	}

	return tool.wrapped(ctx, merged)
}
