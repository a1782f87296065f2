package accounts

import (
	"context"
	"time"

	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const ActivationMailSentMessage = "Activation email sent, please check your inbox!"

type SendActivationMessage struct {
	command.BaseMessage
	UserID     uuid.UUID
	OnResponse func(r *MessageResponse)
}

func (e SendActivationMessage) Type() string { return "user.activation.send" }

// MessageResponse is the body of endpoints that only acknowledge.
type MessageResponse struct {
	Message string `json:"message"`
}

// SendActivationHandler mails a signed activation link to a pending user.
type SendActivationHandler struct {
	deps Dependencies
}

func NewSendActivationHandler(deps Dependencies) *SendActivationHandler {
	return &SendActivationHandler{deps: deps}
}

func (h *SendActivationHandler) Execute(ctx context.Context, event SendActivationMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx, "context cancelled during activation mail")
	default:
		return h.execute(ctx, event)
	}
}

func (h *SendActivationHandler) execute(ctx context.Context, event SendActivationMessage) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	user, err := h.deps.Repo.Users().FindByID(ctx, event.UserID)
	if err != nil {
		return richError(err, "failed to load user")
	}

	if !user.IsPending() {
		return errAccountNotPending(user)
	}

	link, err := h.deps.Links.ActivationURL(user)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign activation link")
	}

	notice := ActivationMail{URL: link, TTL: activationTTL(h.deps.Config)}
	if err := h.deps.Notifier.Send(ctx, To(user), notice); err != nil {
		return richError(err, "failed to send activation mail")
	}

	recordActivity(ctx, h.deps.activity(), h.deps.logger(), ActivityEvent{
		EventType: ActivityEventActivationRequested,
		Actor:     UserActor(user),
		UserID:    user.ID.String(),
	})

	if event.OnResponse != nil {
		event.OnResponse(&MessageResponse{Message: ActivationMailSentMessage})
	}
	return nil
}

func activationTTL(cfg Config) time.Duration {
	if cfg == nil || cfg.GetActivationTTL() <= 0 {
		return DefaultActivationTTL
	}
	return cfg.GetActivationTTL()
}

func emailChangeTTL(cfg Config) time.Duration {
	if cfg == nil || cfg.GetEmailChangeTTL() <= 0 {
		return DefaultEmailChangeTTL
	}
	return cfg.GetEmailChangeTTL()
}
