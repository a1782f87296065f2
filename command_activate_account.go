package accounts

import (
	"context"

	"github.com/goliatone/go-accounts/signedlink"
	"github.com/goliatone/go-command"
)

// ActivateAccountMessage carries the query string of a presented activation link.
type ActivateAccountMessage struct {
	command.BaseMessage
	RawQuery string
}

func (e ActivateAccountMessage) Type() string { return "user.activate" }

// ActivateAccountHandler validates an activation link and activates the
// account it names. Activating an already active account is a no-op, any
// status other than pending or active is rejected.
type ActivateAccountHandler struct {
	deps Dependencies
}

func NewActivateAccountHandler(deps Dependencies) *ActivateAccountHandler {
	return &ActivateAccountHandler{deps: deps}
}

func (h *ActivateAccountHandler) Execute(ctx context.Context, event ActivateAccountMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx, "context cancelled during account activation")
	default:
		return h.execute(ctx, event)
	}
}

func (h *ActivateAccountHandler) execute(ctx context.Context, event ActivateAccountMessage) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	link, err := h.deps.Links.Check(LinkActivation, event.RawQuery)
	if err != nil {
		return err
	}

	email := link.Get("email")
	if email == "" {
		return errInvalidLink(signedlink.ErrMalformed)
	}

	user, err := h.deps.Repo.Users().FindByEmail(ctx, email)
	if err != nil {
		return richError(err, "failed to load user")
	}

	if user.IsActive() {
		h.deps.logger().Debug("user %s already active", user.ID)
		return nil
	}

	// a suspended or disabled account must not be lifted by an old link
	if !user.IsPending() {
		return errAccountNotPending(user)
	}

	user, err = h.deps.States.Transition(ctx, UserActor(user), user, UserStatusActive,
		WithTransitionReason("email activation"),
	)
	if err != nil {
		return richError(err, "failed to activate user")
	}

	recordActivity(ctx, h.deps.activity(), h.deps.logger(), ActivityEvent{
		EventType: ActivityEventUserActivated,
		Actor:     UserActor(user),
		UserID:    user.ID.String(),
	})

	siteURL := ""
	if h.deps.Config != nil {
		siteURL = h.deps.Config.GetSiteURL()
	}

	// the account is active at this point, a failed welcome must not undo it
	if err := h.deps.Notifier.Send(ctx, To(user), Welcome{SiteURL: siteURL}); err != nil {
		h.deps.logger().Warn("welcome notification for %s failed: %v", user.ID, err)
	}

	return nil
}
