package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// ActorRef identifies who/what triggered a transition.
type ActorRef struct {
	ID   string
	Type string
}

// UserActor returns the actor reference for a user acting on their own account.
func UserActor(u *User) ActorRef {
	if u == nil {
		return ActorRef{Type: "system"}
	}
	return ActorRef{ID: u.ID.String(), Type: "user"}
}

// TransitionMetadata captures extra context for a transition.
type TransitionMetadata struct {
	Reason   string
	Metadata map[string]any
}

// TransitionContext is passed into hooks for additional processing.
type TransitionContext struct {
	Actor ActorRef
	User  *User
	From  UserStatus
	To    UserStatus
	Meta  TransitionMetadata
}

// TransitionHook is executed before or after a transition.
type TransitionHook func(ctx context.Context, tc TransitionContext) error

// TransitionOption customizes a single transition.
type TransitionOption func(*transitionOptions)

// StatusStore persists status changes. Users satisfies it.
type StatusStore interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status UserStatus, opts ...StatusUpdateOption) (*User, error)
}

// UserStateMachine defines lifecycle operations for users.
type UserStateMachine interface {
	Transition(ctx context.Context, actor ActorRef, user *User, target UserStatus, opts ...TransitionOption) (*User, error)
	CanTransition(from, to UserStatus) bool
}

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*userStateMachine)

// WithStateMachineClock injects a custom clock.
func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *userStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineActivitySink sets the ActivitySink used to publish lifecycle events.
func WithStateMachineActivitySink(sink ActivitySink) StateMachineOption {
	return func(sm *userStateMachine) {
		sm.activitySink = normalizeActivitySink(sink)
	}
}

// WithStateMachineLogger overrides the logger used for sink failures.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *userStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// WithTransitionReason sets the human-readable reason for the transition.
func WithTransitionReason(reason string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.metadata.Reason = reason
	}
}

// WithTransitionMetadata merges metadata into the transition context.
func WithTransitionMetadata(metadata map[string]any) TransitionOption {
	return func(opts *transitionOptions) {
		if len(metadata) == 0 {
			return
		}
		if opts.metadata.Metadata == nil {
			opts.metadata.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			opts.metadata.Metadata[k] = v
		}
	}
}

// WithForceTransition bypasses the transition graph.
func WithForceTransition() TransitionOption {
	return func(opts *transitionOptions) {
		opts.force = true
	}
}

// WithBeforeTransitionHook adds a hook executed before the status update.
// A failing hook aborts the transition.
func WithBeforeTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.beforeHooks = append(opts.beforeHooks, h)
		}
	}
}

// WithAfterTransitionHook adds a hook executed after the status update succeeds.
func WithAfterTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.afterHooks = append(opts.afterHooks, h)
		}
	}
}

// NewUserStateMachine returns the default implementation persisting through store.
func NewUserStateMachine(store StatusStore, opts ...StateMachineOption) UserStateMachine {
	sm := &userStateMachine{
		store: store,
		transitions: map[UserStatus]map[UserStatus]struct{}{
			UserStatusPending: {
				UserStatusActive:   {},
				UserStatusDisabled: {},
			},
			UserStatusActive: {
				UserStatusSuspended: {},
				UserStatusDisabled:  {},
				UserStatusArchived:  {},
			},
			UserStatusSuspended: {
				UserStatusActive:   {},
				UserStatusDisabled: {},
			},
			UserStatusDisabled: {
				UserStatusArchived: {},
			},
		},
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       DiscardLogger(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

type userStateMachine struct {
	store        StatusStore
	transitions  map[UserStatus]map[UserStatus]struct{}
	now          func() time.Time
	activitySink ActivitySink
	logger       Logger
}

type transitionOptions struct {
	metadata    TransitionMetadata
	force       bool
	beforeHooks []TransitionHook
	afterHooks  []TransitionHook
}

func (sm *userStateMachine) Transition(ctx context.Context, actor ActorRef, user *User, target UserStatus, opts ...TransitionOption) (*User, error) {
	if user == nil {
		return nil, errInvalidTransition("", target, "user is nil")
	}

	user.EnsureStatus()
	from := user.Status
	if target == "" {
		return nil, errInvalidTransition(from, target, "target status is empty")
	}

	if from == target {
		return user, nil
	}

	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	if from == UserStatusArchived && !options.force {
		return nil, goerrors.New("user state is terminal", goerrors.CategoryConflict).
			WithTextCode(TextCodeTerminalState).
			WithCode(goerrors.CodeConflict).
			WithMetadata(map[string]any{"from": from, "to": target})
	}

	if !options.force && !sm.CanTransition(from, target) {
		return nil, errInvalidTransition(from, target, "")
	}

	tc := TransitionContext{
		Actor: actor,
		User:  user,
		From:  from,
		To:    target,
		Meta:  options.metadata,
	}

	for _, hook := range options.beforeHooks {
		if err := hook(ctx, tc); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "before transition hook failed")
		}
	}

	now := sm.now()
	updated, err := sm.store.UpdateStatus(ctx, user.ID, target, sm.statusOptions(user, from, target, now)...)
	if err != nil {
		return nil, err
	}

	if updated != nil {
		user.Status = updated.Status
		user.SuspendedAt = updated.SuspendedAt
		user.ActivatedAt = updated.ActivatedAt
		user.EmailValidated = updated.EmailValidated
	} else {
		user.Status = target
	}

	for _, hook := range options.afterHooks {
		if err := hook(ctx, tc); err != nil {
			sm.logger.Warn("after transition hook failed for user %s: %v", user.ID, err)
		}
	}

	recordActivity(ctx, sm.activitySink, sm.logger, ActivityEvent{
		EventType:  ActivityEventUserStatusChanged,
		Actor:      actor,
		UserID:     user.ID.String(),
		FromStatus: from,
		ToStatus:   target,
		Metadata:   transitionMetadata(options.metadata),
		OccurredAt: now,
	})

	return user, nil
}

func (sm *userStateMachine) CanTransition(from, to UserStatus) bool {
	if allowed, ok := sm.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

func (sm *userStateMachine) statusOptions(user *User, from, to UserStatus, now time.Time) []StatusUpdateOption {
	var opts []StatusUpdateOption

	switch {
	case to == UserStatusSuspended:
		opts = append(opts, WithSuspendedAt(&now))
	case from == UserStatusSuspended:
		opts = append(opts, WithSuspendedAt(nil))
	}

	if to == UserStatusActive && user.ActivatedAt == nil {
		opts = append(opts, WithActivatedAt(now))
	}

	return opts
}

func errInvalidTransition(from, to UserStatus, reason string) *goerrors.Error {
	meta := map[string]any{"from": from, "to": to}
	if reason != "" {
		meta["reason"] = reason
	}
	return goerrors.New("invalid user state transition", goerrors.CategoryValidation).
		WithTextCode(TextCodeInvalidTransition).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(meta)
}

func transitionMetadata(meta TransitionMetadata) map[string]any {
	if meta.Reason == "" && len(meta.Metadata) == 0 {
		return nil
	}

	result := map[string]any{}
	if meta.Reason != "" {
		result["reason"] = meta.Reason
	}
	for k, v := range meta.Metadata {
		result[k] = v
	}
	return result
}
