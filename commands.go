package accounts

import (
	"context"
	"time"

	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
)

const commandTimeout = time.Second * 10

// NotificationSender delivers notices, Notifier implements it.
type NotificationSender interface {
	Send(ctx context.Context, r Recipient, notice Notice) error
}

// Dependencies groups what the command handlers need.
type Dependencies struct {
	Repo     RepositoryManager
	Links    Links
	Notifier NotificationSender
	States   UserStateMachine
	Activity ActivitySink
	Hasher   PasswordHasher
	Config   Config
	Logger   Logger
}

func (d Dependencies) logger() Logger {
	return resolveLogger(d.Logger)
}

func (d Dependencies) activity() ActivitySink {
	return normalizeActivitySink(d.Activity)
}

var (
	_ command.Commander[SendActivationMessage]     = (*SendActivationHandler)(nil)
	_ command.Commander[ActivateAccountMessage]    = (*ActivateAccountHandler)(nil)
	_ command.Commander[RequestEmailChangeMessage] = (*RequestEmailChangeHandler)(nil)
	_ command.Commander[ConfirmEmailChangeMessage] = (*ConfirmEmailChangeHandler)(nil)
	_ command.Commander[FollowUserMessage]         = (*FollowUserHandler)(nil)
	_ command.Commander[UnfollowUserMessage]       = (*UnfollowUserHandler)(nil)
	_ command.Commander[UpdateProfileMessage]      = (*UpdateProfileHandler)(nil)
	_ command.Commander[RegisterUserMessage]       = (*RegisterUserHandler)(nil)
)

// Handlers bundles every command handler built from the same dependencies.
type Handlers struct {
	SendActivation     *SendActivationHandler
	ActivateAccount    *ActivateAccountHandler
	RequestEmailChange *RequestEmailChangeHandler
	ConfirmEmailChange *ConfirmEmailChangeHandler
	FollowUser         *FollowUserHandler
	UnfollowUser       *UnfollowUserHandler
	UpdateProfile      *UpdateProfileHandler
	RegisterUser       *RegisterUserHandler
}

// NewHandlers builds all command handlers.
func NewHandlers(deps Dependencies) Handlers {
	return Handlers{
		SendActivation:     NewSendActivationHandler(deps),
		ActivateAccount:    NewActivateAccountHandler(deps),
		RequestEmailChange: NewRequestEmailChangeHandler(deps),
		ConfirmEmailChange: NewConfirmEmailChangeHandler(deps),
		FollowUser:         NewFollowUserHandler(deps),
		UnfollowUser:       NewUnfollowUserHandler(deps),
		UpdateProfile:      NewUpdateProfileHandler(deps),
		RegisterUser:       NewRegisterUserHandler(deps),
	}
}

// richError returns err as is when it already is a rich error, otherwise it
// wraps it as internal.
func richError(err error, msg string) error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}

func cancelled(ctx context.Context, msg string) error {
	return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, msg)
}
