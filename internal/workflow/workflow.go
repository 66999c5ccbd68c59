// Package workflow implements the Workflow Engine (spec §4.9): a step
// state-machine driver over a persisted Flow Context. Process increments the
// context's Version on each advance; comparing versions (ErrVersionConflict)
// is left to the caller that persists the context. No flow is hard-coded here — internal/workflow/flows registers
// the concrete flows.
//
// Grounded on the original source's
// auth-core/src/services/workflow/engine.rs; the handler-registry/
// validate-then-handle/ui-hints shape is carried over directly, translated
// from async_trait objects to a plain Go interface + map dispatch.
package workflow

import (
	"context"
	"time"

	"github.com/ssocore/platform/internal/apperr"
)

// FlowState is the spec §4.9 state enum. Custom(name) is represented as
// any string not among the fixed constants.
type FlowState string

const (
	StateStart             FlowState = "start"
	StateIdentify          FlowState = "identify"
	StateAuthenticate      FlowState = "authenticate"
	StateMfaRequired       FlowState = "mfa_required"
	StateConsentRequired   FlowState = "consent_required"
	StateProfileRequired   FlowState = "profile_required"
	StateVerifyIdentifier  FlowState = "verify_identifier"
	StateSetCredentials    FlowState = "set_credentials"
	StateSuccess           FlowState = "success"
	StateFailed            FlowState = "failed"
)

// Context is the spec §3 Flow Context entity.
type Context struct {
	FlowID       string
	TenantID     string
	FlowType     string
	CurrentState FlowState
	UserID       *string
	Data         map[string]any
	Version      uint64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Action is a named payload applied to a flow context.
type Action struct {
	Name    string
	Payload map[string]any
}

// Result is the spec §4.9 FlowResult.
type Result struct {
	NextState FlowState
	UIHints   map[string]any
	Error     error
}

// StepHandler implements one state's behavior, spec §4.9.
type StepHandler interface {
	Validate(ctx context.Context, fc *Context) error
	Handle(ctx context.Context, fc *Context, action Action) (FlowState, error)
}

// UIHinter derives UI hints from a successor state by a fixed lookup
// table, spec §4.9. Flows supply their own table via RegisterUIHints.
type UIHinter func(state FlowState) map[string]any

// Engine dispatches actions to registered step handlers.
type Engine struct {
	handlers map[FlowState]StepHandler
	hints    UIHinter
}

func NewEngine() *Engine {
	return &Engine{handlers: make(map[FlowState]StepHandler)}
}

// RegisterHandler attaches a step handler to a state. Each state has at
// most one handler, spec §4.9; registering again replaces it.
func (e *Engine) RegisterHandler(state FlowState, handler StepHandler) {
	e.handlers[state] = handler
}

// RegisterUIHints installs the fixed state→hints lookup table.
func (e *Engine) RegisterUIHints(hinter UIHinter) {
	e.hints = hinter
}

// ErrVersionConflict signals that the caller's observed version did not
// match what the store holds — the optimistic-concurrency contract spec
// §4.9 requires the persistence layer to enforce.
var ErrVersionConflict = apperr.New(apperr.KindConflict, "flow context version conflict")

// Process runs validate, then handle, then advances the context in place,
// spec §4.9's process(ctx, action) contract. Persistence (and therefore
// the version-conflict check) is the caller's responsibility; Process only
// requires the caller to pass in the context it most recently observed.
func (e *Engine) Process(ctx context.Context, fc *Context, action Action) (Result, error) {
	handler, ok := e.handlers[fc.CurrentState]
	if !ok {
		return Result{}, apperr.New(apperr.KindInternalError, "no handler registered for current flow state")
	}

	if err := handler.Validate(ctx, fc); err != nil {
		return Result{Error: err}, err
	}

	nextState, err := handler.Handle(ctx, fc, action)
	if err != nil {
		return Result{Error: err}, err
	}

	fc.CurrentState = nextState
	fc.UpdatedAt = time.Now()
	fc.Version++

	var hints map[string]any
	if e.hints != nil {
		hints = e.hints(nextState)
	}

	return Result{NextState: nextState, UIHints: hints}, nil
}
