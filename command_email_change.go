package accounts

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/goliatone/go-accounts/signedlink"
	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const EmailChangeMailSentMessage = "Confirmation email sent to the new address, please check your inbox!"

type RequestEmailChangeMessage struct {
	UserID     uuid.UUID
	Email      string
	OnResponse func(r *MessageResponse)
}

func (e RequestEmailChangeMessage) Type() string { return "user.email.request" }

func (e RequestEmailChangeMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, is.EmailFormat, validation.Length(0, 255)),
	)
}

// RequestEmailChangeHandler mails a signed confirmation link to the new
// address. The current email stays in place until the link is confirmed.
type RequestEmailChangeHandler struct {
	deps Dependencies
}

func NewRequestEmailChangeHandler(deps Dependencies) *RequestEmailChangeHandler {
	return &RequestEmailChangeHandler{deps: deps}
}

func (h *RequestEmailChangeHandler) Execute(ctx context.Context, event RequestEmailChangeMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx, "context cancelled during email change request")
	default:
		return h.execute(ctx, event)
	}
}

func (h *RequestEmailChangeHandler) execute(ctx context.Context, event RequestEmailChangeMessage) error {
	event.Email = strings.TrimSpace(event.Email)
	if err := event.Validate(); err != nil {
		return errInvalidPayload(err)
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	users := h.deps.Repo.Users()

	taken, err := users.EmailTaken(ctx, event.Email, uuid.Nil)
	if err != nil {
		return richError(err, "failed to check email uniqueness")
	}
	if taken {
		return errEmailTaken(event.Email)
	}

	user, err := users.FindByID(ctx, event.UserID)
	if err != nil {
		return richError(err, "failed to load user")
	}

	link, err := h.deps.Links.EmailChangeURL(user, event.Email)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign email change link")
	}

	notice := EmailChangeMail{Email: event.Email, URL: link, TTL: emailChangeTTL(h.deps.Config)}
	if err := h.deps.Notifier.Send(ctx, Recipient{User: user, Address: event.Email}, notice); err != nil {
		return richError(err, "failed to send email change confirmation")
	}

	if event.OnResponse != nil {
		event.OnResponse(&MessageResponse{Message: EmailChangeMailSentMessage})
	}
	return nil
}

// ConfirmEmailChangeMessage carries the query string of a presented email
// change link.
type ConfirmEmailChangeMessage struct {
	command.BaseMessage
	RawQuery string
}

func (e ConfirmEmailChangeMessage) Type() string { return "user.email.confirm" }

// ConfirmEmailChangeHandler applies the address named by a valid email change
// link. Uniqueness is checked again since the address may have been claimed
// after the link was issued.
type ConfirmEmailChangeHandler struct {
	deps Dependencies
}

func NewConfirmEmailChangeHandler(deps Dependencies) *ConfirmEmailChangeHandler {
	return &ConfirmEmailChangeHandler{deps: deps}
}

func (h *ConfirmEmailChangeHandler) Execute(ctx context.Context, event ConfirmEmailChangeMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx, "context cancelled during email change confirmation")
	default:
		return h.execute(ctx, event)
	}
}

func (h *ConfirmEmailChangeHandler) execute(ctx context.Context, event ConfirmEmailChangeMessage) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	link, err := h.deps.Links.Check(LinkEmailChange, event.RawQuery)
	if err != nil {
		return err
	}

	userID, err := uuid.Parse(link.Get("user_id"))
	if err != nil {
		return errInvalidLink(signedlink.ErrMalformed)
	}
	email := strings.TrimSpace(link.Get("email"))
	if email == "" {
		return errInvalidLink(signedlink.ErrMalformed)
	}

	users := h.deps.Repo.Users()

	err = h.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := users.FindByIDTx(ctx, tx, userID)
		if err != nil {
			return err
		}

		taken, err := users.EmailTakenTx(ctx, tx, email, user.ID)
		if err != nil {
			return err
		}
		if taken {
			return errEmailTaken(email)
		}

		_, err = users.UpdateEmailTx(ctx, tx, user.ID, email)
		return err
	})
	if err != nil {
		return richError(err, "email change transaction failed")
	}

	recordActivity(ctx, h.deps.activity(), h.deps.logger(), ActivityEvent{
		EventType: ActivityEventEmailChanged,
		Actor:     ActorRef{ID: userID.String(), Type: "user"},
		UserID:    userID.String(),
	})

	return nil
}
