// Package onboarding runs the interactive "add operator" conversation.
// Pending state lives in a cache.Store keyed by admin identity and expires
// after a TTL.
package onboarding

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/repair-orders/constants"
	"github.com/joseph-ayodele/repair-orders/internal/access"
	"github.com/joseph-ayodele/repair-orders/internal/cache"
	"github.com/joseph-ayodele/repair-orders/internal/common"
	"github.com/joseph-ayodele/repair-orders/internal/entity"
	"github.com/joseph-ayodele/repair-orders/internal/services/operator"
)

type Step string

const (
	StepWaitingID       Step = "waiting_id"
	StepWaitingNickname Step = "waiting_nickname"
)

const DefaultStateTTL = 30 * time.Minute

// State is the pending conversation of one admin.
type State struct {
	Step          Step   `json:"step"`
	PendingTgID   int64  `json:"pending_tg_id,omitempty"`
	PendingHandle string `json:"pending_handle,omitempty"`
}

// Registrar is the part of operator.Service the flow needs.
type Registrar interface {
	Register(ctx context.Context, req operator.RegisterRequest) (*entity.Operator, error)
	ResolveHandle(ctx context.Context, handle string) (int64, bool, error)
}

// CommandConfigurer sets up the personalized command surface of a freshly
// registered operator.
type CommandConfigurer interface {
	ConfigureOperator(ctx context.Context, op entity.Operator) error
}

// Reply is what the flow says back. Handled is false when the message was
// not part of any conversation and should be routed elsewhere.
type Reply struct {
	Text     string           `json:"text,omitempty"`
	Handled  bool             `json:"handled"`
	Step     Step             `json:"step,omitempty"`
	Operator *entity.Operator `json:"operator,omitempty"`
}

type Flow struct {
	store      cache.Store
	registrar  Registrar
	access     *access.AllowList
	configurer CommandConfigurer
	ttl        time.Duration
	logger     *slog.Logger
}

type Option func(*Flow)

func WithConfigurer(c CommandConfigurer) Option { return func(f *Flow) { f.configurer = c } }
func WithTTL(ttl time.Duration) Option {
	return func(f *Flow) {
		if ttl > 0 {
			f.ttl = ttl
		}
	}
}

func NewFlow(store cache.Store, registrar Registrar, acl *access.AllowList, logger *slog.Logger, opts ...Option) *Flow {
	if logger == nil {
		logger = slog.Default()
	}
	if acl == nil {
		acl = access.NewAllowList(nil, logger)
	}
	f := &Flow{store: store, registrar: registrar, access: acl, ttl: DefaultStateTTL, logger: logger}
	for _, o := range opts {
		o(f)
	}
	return f
}

func stateKey(adminID int64) string { return "onboarding:" + strconv.FormatInt(adminID, 10) }

// Start opens a conversation for adminID, replacing any pending one.
func (f *Flow) Start(ctx context.Context, adminID int64) (Reply, error) {
	if !f.access.Allowed(adminID) {
		return Reply{}, common.UnauthorizedError(constants.MsgAccessDenied)
	}
	if err := f.save(ctx, adminID, State{Step: StepWaitingID}); err != nil {
		return Reply{}, err
	}
	f.logger.Info("onboarding.start", "admin_id", adminID)
	return Reply{Text: constants.PromptOperatorID, Handled: true, Step: StepWaitingID}, nil
}

// Handle feeds one message from adminID into its pending conversation.
// Messages from non-admins never touch state.
func (f *Flow) Handle(ctx context.Context, adminID int64, text string) (Reply, error) {
	if !f.access.Allowed(adminID) {
		return Reply{}, nil
	}
	text = strings.TrimSpace(text)

	st, ok, err := f.load(ctx, adminID)
	if err != nil {
		return Reply{}, err
	}
	if isCancel(text) {
		if !ok {
			return Reply{Text: constants.MsgNoOnboarding, Handled: true}, nil
		}
		return f.Cancel(ctx, adminID)
	}
	if !ok {
		return Reply{}, nil
	}

	switch st.Step {
	case StepWaitingID:
		return f.handleID(ctx, adminID, text)
	case StepWaitingNickname:
		return f.handleNickname(ctx, adminID, st, text)
	default:
		f.logger.Warn("onboarding.state.unknown_step", "admin_id", adminID, "step", st.Step)
		_ = f.store.Delete(ctx, stateKey(adminID))
		return Reply{}, nil
	}
}

// Cancel clears pending state without persisting anything.
func (f *Flow) Cancel(ctx context.Context, adminID int64) (Reply, error) {
	if err := f.store.Delete(ctx, stateKey(adminID)); err != nil {
		return Reply{}, common.WrapError(err, "clear onboarding state")
	}
	f.logger.Info("onboarding.cancel", "admin_id", adminID)
	return Reply{Text: constants.MsgOnboardingCancelled, Handled: true}, nil
}

// Pending returns the conversation state of adminID, if any.
func (f *Flow) Pending(ctx context.Context, adminID int64) (State, bool, error) {
	return f.load(ctx, adminID)
}

func (f *Flow) handleID(ctx context.Context, adminID int64, text string) (Reply, error) {
	stay := func(msg string) (Reply, error) {
		return Reply{Text: msg, Handled: true, Step: StepWaitingID}, nil
	}

	var next State
	switch {
	case isNumericID(text):
		id, err := strconv.ParseInt(text, 10, 64)
		if err != nil || id <= 0 {
			return stay(constants.PromptInvalidID)
		}
		next = State{Step: StepWaitingNickname, PendingTgID: id}
	case strings.HasPrefix(text, "@") && len(text) > 1:
		id, found, err := f.registrar.ResolveHandle(ctx, text)
		if err != nil {
			return Reply{}, common.WrapError(err, "resolve handle")
		}
		if !found {
			return stay(fmt.Sprintf(constants.PromptHandleUnknown, text))
		}
		next = State{Step: StepWaitingNickname, PendingTgID: id, PendingHandle: strings.TrimPrefix(text, "@")}
	default:
		return stay(constants.PromptInvalidID)
	}

	if err := f.save(ctx, adminID, next); err != nil {
		return Reply{}, err
	}
	f.logger.Info("onboarding.id_accepted", "admin_id", adminID, "pending_tg_id", next.PendingTgID)
	return Reply{Text: constants.PromptNickname, Handled: true, Step: StepWaitingNickname}, nil
}

func (f *Flow) handleNickname(ctx context.Context, adminID int64, st State, text string) (Reply, error) {
	if !operator.ValidNickname(text) {
		return Reply{Text: constants.PromptNicknameTooShort, Handled: true, Step: StepWaitingNickname}, nil
	}

	op, err := f.registrar.Register(common.WithActorID(ctx, adminID), operator.RegisterRequest{
		TgID:     st.PendingTgID,
		Handle:   st.PendingHandle,
		Nickname: text,
	})
	if err != nil {
		return Reply{}, err
	}
	if err := f.store.Delete(ctx, stateKey(adminID)); err != nil {
		f.logger.Warn("onboarding.state.clear_failed", "admin_id", adminID, "error", err)
	}

	if f.configurer != nil {
		if err := f.configurer.ConfigureOperator(ctx, *op); err != nil {
			f.logger.Warn("onboarding.configure_failed", "tg_id", op.TgID, "error", err)
		}
	}
	f.logger.Info("onboarding.done", "admin_id", adminID, "tg_id", op.TgID)
	return Reply{
		Text:     fmt.Sprintf(constants.MsgOperatorRegistered, op.DisplayName(), op.TgID),
		Handled:  true,
		Operator: op,
	}, nil
}

func (f *Flow) load(ctx context.Context, adminID int64) (State, bool, error) {
	b, ok, err := f.store.Get(ctx, stateKey(adminID))
	if err != nil {
		return State{}, false, common.WrapError(err, "load onboarding state")
	}
	if !ok {
		return State{}, false, nil
	}
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		f.logger.Warn("onboarding.state.corrupt", "admin_id", adminID, "error", err)
		return State{}, false, nil
	}
	return st, true, nil
}

func (f *Flow) save(ctx context.Context, adminID int64, st State) error {
	b, err := json.Marshal(st)
	if err != nil {
		return common.WrapError(err, "encode onboarding state")
	}
	if err := f.store.Set(ctx, stateKey(adminID), b, f.ttl); err != nil {
		return common.WrapError(err, "save onboarding state")
	}
	return nil
}

func isCancel(text string) bool {
	t := strings.ToLower(text)
	for _, w := range constants.CancelWords {
		if t == w {
			return true
		}
	}
	return false
}

func isNumericID(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
