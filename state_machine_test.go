package accounts_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	accounts "github.com/goliatone/go-accounts"
)

func TestUserStateMachineActivationStampsUser(t *testing.T) {
	store := &MockStatusStore{}
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	user := &accounts.User{ID: uuid.New(), Status: accounts.UserStatusPending}

	applied := &accounts.User{ID: user.ID, Status: accounts.UserStatusActive}
	store.On("UpdateStatus", mock.Anything, user.ID, accounts.UserStatusActive, mock.Anything).
		Run(func(args mock.Arguments) {
			for _, opt := range args.Get(3).([]accounts.StatusUpdateOption) {
				opt(applied)
			}
		}).
		Return(applied, nil).Once()

	sm := accounts.NewUserStateMachine(store, accounts.WithStateMachineClock(func() time.Time { return now }))

	result, err := sm.Transition(context.Background(), accounts.UserActor(user), user, accounts.UserStatusActive)
	require.NoError(t, err)
	assert.True(t, result.IsActive())
	assert.True(t, result.EmailValidated)
	require.NotNil(t, result.ActivatedAt)
	assert.Equal(t, now, result.ActivatedAt.UTC())
	store.AssertExpectations(t)
}

func TestUserStateMachineTransitionToSuspendedSetsTimestamp(t *testing.T) {
	store := &MockStatusStore{}
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	user := &accounts.User{ID: uuid.New(), Status: accounts.UserStatusActive}

	store.On("UpdateStatus", mock.Anything, user.ID, accounts.UserStatusSuspended, mock.Anything).
		Return(&accounts.User{ID: user.ID, Status: accounts.UserStatusSuspended, SuspendedAt: &now}, nil).Once()

	sm := accounts.NewUserStateMachine(store, accounts.WithStateMachineClock(func() time.Time { return now }))

	result, err := sm.Transition(context.Background(), accounts.ActorRef{ID: "admin"}, user, accounts.UserStatusSuspended)
	require.NoError(t, err)
	assert.True(t, result.IsSuspended())
	require.NotNil(t, result.SuspendedAt)
	assert.Equal(t, now, result.SuspendedAt.UTC())
	store.AssertExpectations(t)
}

func TestUserStateMachineRejectsInvalidTransition(t *testing.T) {
	store := &MockStatusStore{}
	user := &accounts.User{ID: uuid.New(), Status: accounts.UserStatusPending}

	sm := accounts.NewUserStateMachine(store)

	_, err := sm.Transition(context.Background(), accounts.ActorRef{}, user, accounts.UserStatusSuspended)
	require.Error(t, err)
	assert.True(t, accounts.HasTextCode(err, accounts.TextCodeInvalidTransition))
	store.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUserStateMachineSameStatusIsNoop(t *testing.T) {
	store := &MockStatusStore{}
	user := &accounts.User{ID: uuid.New(), Status: accounts.UserStatusActive}

	result, err := accounts.NewUserStateMachine(store).
		Transition(context.Background(), accounts.ActorRef{}, user, accounts.UserStatusActive)
	require.NoError(t, err)
	assert.Same(t, user, result)
	store.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUserStateMachineArchivedIsTerminal(t *testing.T) {
	store := &MockStatusStore{}
	user := &accounts.User{ID: uuid.New(), Status: accounts.UserStatusArchived}

	_, err := accounts.NewUserStateMachine(store).
		Transition(context.Background(), accounts.ActorRef{}, user, accounts.UserStatusActive)
	require.Error(t, err)
	assert.True(t, accounts.HasTextCode(err, accounts.TextCodeTerminalState))
}

func TestUserStateMachineForceTransitionBypassesValidation(t *testing.T) {
	store := &MockStatusStore{}
	user := &accounts.User{ID: uuid.New(), Status: accounts.UserStatusPending}

	store.On("UpdateStatus", mock.Anything, user.ID, accounts.UserStatusSuspended, mock.Anything).
		Return(&accounts.User{ID: user.ID, Status: accounts.UserStatusSuspended}, nil).Once()

	result, err := accounts.NewUserStateMachine(store).Transition(
		context.Background(),
		accounts.ActorRef{},
		user,
		accounts.UserStatusSuspended,
		accounts.WithForceTransition(),
	)
	require.NoError(t, err)
	assert.True(t, result.IsSuspended())
	store.AssertExpectations(t)
}

func TestUserStateMachineRunsHooksWithMetadata(t *testing.T) {
	store := &MockStatusStore{}
	user := &accounts.User{ID: uuid.New(), Status: accounts.UserStatusActive}

	store.On("UpdateStatus", mock.Anything, user.ID, accounts.UserStatusSuspended, mock.Anything).
		Return(&accounts.User{ID: user.ID, Status: accounts.UserStatusSuspended}, nil).Once()

	var reasonSeen string
	var afterCalled bool

	_, err := accounts.NewUserStateMachine(store).Transition(
		context.Background(),
		accounts.ActorRef{ID: "admin"},
		user,
		accounts.UserStatusSuspended,
		accounts.WithTransitionReason("policy"),
		accounts.WithTransitionMetadata(map[string]any{"ticket": "123"}),
		accounts.WithBeforeTransitionHook(func(ctx context.Context, tc accounts.TransitionContext) error {
			reasonSeen = tc.Meta.Reason
			return nil
		}),
		accounts.WithAfterTransitionHook(func(ctx context.Context, tc accounts.TransitionContext) error {
			afterCalled = true
			return errors.New("ignored")
		}),
	)
	require.NoError(t, err)
	assert.Equal(t, "policy", reasonSeen)
	assert.True(t, afterCalled)
	store.AssertExpectations(t)
}

func TestUserStateMachineBeforeHookAborts(t *testing.T) {
	store := &MockStatusStore{}
	user := &accounts.User{ID: uuid.New(), Status: accounts.UserStatusActive}

	_, err := accounts.NewUserStateMachine(store).Transition(
		context.Background(),
		accounts.ActorRef{},
		user,
		accounts.UserStatusDisabled,
		accounts.WithBeforeTransitionHook(func(context.Context, accounts.TransitionContext) error {
			return errors.New("nope")
		}),
	)
	require.Error(t, err)
	assert.Equal(t, accounts.UserStatusActive, user.Status)
	store.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUserStateMachineEmitsActivityEvent(t *testing.T) {
	store := &MockStatusStore{}
	sink := &MockActivitySink{}
	user := &accounts.User{ID: uuid.New(), Status: accounts.UserStatusActive}

	store.On("UpdateStatus", mock.Anything, user.ID, accounts.UserStatusSuspended, mock.Anything).
		Return(&accounts.User{ID: user.ID, Status: accounts.UserStatusSuspended}, nil).Once()

	sink.On("Record", mock.Anything, mock.MatchedBy(func(evt accounts.ActivityEvent) bool {
		return evt.EventType == accounts.ActivityEventUserStatusChanged &&
			evt.UserID == user.ID.String() &&
			evt.FromStatus == accounts.UserStatusActive &&
			evt.ToStatus == accounts.UserStatusSuspended
	})).Return(nil).Once()

	sm := accounts.NewUserStateMachine(store, accounts.WithStateMachineActivitySink(sink))

	_, err := sm.Transition(context.Background(), accounts.ActorRef{ID: "admin"}, user, accounts.UserStatusSuspended)
	require.NoError(t, err)

	store.AssertExpectations(t)
	sink.AssertExpectations(t)
}

func TestUserStateMachinePersistsThroughRepository(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := env.user(t, adaID)

	_, err := env.deps.States.Transition(ctx, accounts.UserActor(ada), ada, accounts.UserStatusActive)
	require.NoError(t, err)

	stored := env.user(t, adaID)
	assert.True(t, stored.IsActive())
	assert.True(t, stored.EmailValidated)
	assert.True(t, stored.Activated())

	feed, err := env.repo.Activities().ListForUser(ctx, adaID, accounts.PageRequest{})
	require.NoError(t, err)
	require.Len(t, feed.Data, 1)
	assert.Equal(t, string(accounts.ActivityEventUserStatusChanged), feed.Data[0].EventType)
}
