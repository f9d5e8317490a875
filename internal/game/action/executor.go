package action

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/config"
	"github.com/cory-johannsen/skirmish/internal/game/catalog"
	"github.com/cory-johannsen/skirmish/internal/game/ledger"
	"github.com/cory-johannsen/skirmish/internal/rng"
)

// GenericFailureBody is the single response shown when an execution fails
// in a way the player cannot act on.
const GenericFailureBody = "Something went wrong. Please try again."

// maxBranchDepth bounds nested conditional and random_outcome branches so
// a pathological definition cannot recurse without limit.
const maxBranchDepth = 8

// Collaborator runs the points, movement, and store operations that live
// outside the engine. Each call returns a player-facing message (possibly
// empty) and whether the operation succeeded. Implementations must be safe
// for concurrent use.
type Collaborator interface {
	CheckPoints(ctx context.Context, tenantID, playerID string, amount int) (string, bool)
	ModifyPoints(ctx context.Context, tenantID, playerID string, delta int) (string, bool)
	MovePlayer(ctx context.Context, tenantID, playerID, direction string) (string, bool)
	StoreDisplay(ctx context.Context, tenantID, playerID string) (string, bool)
	BuyItem(ctx context.Context, tenantID, playerID, itemID string) (string, bool)
}

// execContext carries one invocation's identity and the usage/cooldown
// state captured before this execution's own bookkeeping, so conditions
// such as cooldown_elapsed never observe the touch the trigger itself
// just made.
type execContext struct {
	trig           Trigger
	priorUsage     map[string]int
	priorCooldowns map[string]time.Time
}

// handlerFunc runs one step and returns its response, if any. A nil
// response with a nil error means the step completed silently.
type handlerFunc func(e *Executor, ctx context.Context, ec *execContext, step Step, depth int) (*Response, error)

// handlers is the dispatch table for the closed set of kinds. Kinds
// missing from the table are logged and skipped, never fatal. Populated
// in init because the branch handlers re-enter run, which reads the
// table; a composite literal would make the initializer depend on itself.
var handlers map[Kind]handlerFunc

func init() {
	handlers = map[Kind]handlerFunc{
		KindDisplayText:    (*Executor).handleDisplayText,
		KindUpdateCurrency: (*Executor).handleUpdateCurrency,
		KindGiveCurrency:   (*Executor).handleGiveCurrency,
		KindGiveItem:       (*Executor).handleGiveItem,
		KindFollowUpButton: (*Executor).handleFollowUpButton,
		KindConditional:    (*Executor).handleConditional,
		KindRandomOutcome:  (*Executor).handleRandomOutcome,
		KindStoreDisplay:   (*Executor).handleStoreDisplay,
		KindBuyItem:        (*Executor).handleBuyItem,
		KindCheckPoints:    (*Executor).handleCheckPoints,
		KindModifyPoints:   (*Executor).handleModifyPoints,
		KindMovePlayer:     (*Executor).handleMovePlayer,
	}
}

// Executor interprets trigger action lists against the tenant ledger.
// All state it touches goes through the ledger accessor, so concurrent
// executions for the same tenant serialize on the tenant lock.
type Executor struct {
	catalog  *catalog.Registry
	accessor *ledger.Accessor
	collab   Collaborator
	src      rng.Source
	sender   Sender
	delay    time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewExecutor creates an Executor. collab and sender may be nil: steps
// needing the collaborator then refuse, and deferred responses are
// dropped with a log line.
//
// Precondition: reg, accessor, src, and logger must be non-nil.
func NewExecutor(reg *catalog.Registry, accessor *ledger.Accessor, src rng.Source, cfg config.GameConfig, collab Collaborator, sender Sender, logger *zap.Logger) *Executor {
	return &Executor{
		catalog:  reg,
		accessor: accessor,
		collab:   collab,
		src:      src,
		sender:   sender,
		delay:    cfg.FollowUpDelay,
		logger:   logger,
		now:      time.Now,
	}
}

// Execute runs the trigger's steps in ascending order and returns the
// primary response. Additional display responses are delivered through
// the sender after FollowUpDelay each, best effort.
//
// A display_text step immediately followed (in sorted order) by a
// follow_up_button step absorbs the button into its own response; the
// button step itself is skipped. The lookahead is exactly one step and is
// not applied inside conditional or random branches.
//
// Each execution increments the trigger's usage counter and restarts its
// cooldown; conditions inside the same execution evaluate against the
// counters as they were before the execution began.
//
// Postcondition: never panics; a panic inside a handler is converted to a
// single generic failure response. Side effects committed before the
// failure are not rolled back.
func (e *Executor) Execute(ctx context.Context, trig Trigger) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("action execution panicked",
				zap.String("tenant", trig.TenantID),
				zap.String("trigger", trig.TriggerID),
				zap.Any("panic", r))
			resp = Response{Body: GenericFailureBody}
		}
	}()

	ec := &execContext{trig: trig}
	if err := e.accessor.Update(ctx, trig.TenantID, func(st *ledger.TenantState) error {
		ec.priorUsage = copyCounts(st.UsageCounters[trig.PlayerID])
		ec.priorCooldowns = copyStamps(st.Cooldowns[trig.PlayerID])
		st.IncrementUsage(trig.PlayerID, trig.TriggerID)
		st.TouchCooldown(trig.PlayerID, trig.TriggerID, e.now())
		return nil
	}); err != nil {
		e.logger.Warn("usage bookkeeping failed",
			zap.String("tenant", trig.TenantID),
			zap.String("trigger", trig.TriggerID),
			zap.Error(err))
	}

	steps := trig.SortedSteps()
	var responses []Response
	for i := 0; i < len(steps); i++ {
		step := steps[i]

		var button *ButtonRef
		if step.Kind == KindDisplayText && i+1 < len(steps) && steps[i+1].Kind == KindFollowUpButton {
			next := steps[i+1]
			button = &ButtonRef{Label: next.Config.ButtonLabel, TriggerID: next.Config.TargetTriggerID}
			i++
		}

		r, err := e.run(ctx, ec, step, 0)
		if err != nil {
			e.logger.Error("action step failed",
				zap.String("tenant", trig.TenantID),
				zap.String("trigger", trig.TriggerID),
				zap.String("kind", string(step.Kind)),
				zap.Int("order", step.Order),
				zap.Error(err))
			return Response{Body: GenericFailureBody}
		}
		if r == nil {
			continue
		}
		if button != nil {
			r.Button = button
		}
		if r.HasContent() {
			responses = append(responses, *r)
		}
	}

	if len(responses) == 0 {
		return Response{}
	}
	if len(responses) > 1 {
		e.deliverDeferred(trig, responses[1:])
	}
	return responses[0]
}

func (e *Executor) run(ctx context.Context, ec *execContext, step Step, depth int) (*Response, error) {
	h, ok := handlers[step.Kind]
	if !ok {
		e.logger.Warn("unknown action kind skipped",
			zap.String("trigger", ec.trig.TriggerID),
			zap.String("kind", string(step.Kind)))
		return nil, nil
	}
	return h(e, ctx, ec, step, depth)
}

// runBranch executes only the first step of a conditional or random
// branch. Branches are never scanned for display/button bundling.
func (e *Executor) runBranch(ctx context.Context, ec *execContext, branch []Step, depth int) (*Response, error) {
	if len(branch) == 0 {
		return nil, nil
	}
	if depth >= maxBranchDepth {
		e.logger.Warn("branch depth limit reached",
			zap.String("trigger", ec.trig.TriggerID),
			zap.Int("depth", depth))
		return nil, nil
	}
	return e.run(ctx, ec, branch[0], depth+1)
}

// deliverDeferred ships the non-primary responses in order, one per
// FollowUpDelay tick. Failures are logged and never retried, and the
// caller does not wait.
func (e *Executor) deliverDeferred(trig Trigger, rest []Response) {
	if e.sender == nil {
		e.logger.Debug("no sender configured, dropping deferred responses",
			zap.String("tenant", trig.TenantID),
			zap.Int("count", len(rest)))
		return
	}
	responses := make([]Response, len(rest))
	copy(responses, rest)
	go func() {
		for _, r := range responses {
			time.Sleep(e.delay)
			if err := e.sender.Send(context.Background(), trig.TenantID, trig.PlayerID, r); err != nil {
				e.logger.Warn("deferred response delivery failed",
					zap.String("tenant", trig.TenantID),
					zap.String("player", trig.PlayerID),
					zap.Error(err))
			}
		}
	}()
}

func copyCounts(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyStamps(in map[string]time.Time) map[string]time.Time {
	out := make(map[string]time.Time, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
