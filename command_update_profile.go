package accounts

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var genders = []any{"", "male", "female", "other"}

type UpdateProfileMessage struct {
	Actor      *User
	UserID     uuid.UUID
	Profile    ProfileUpdate
	OnResponse func(u *User)
}

func (e UpdateProfileMessage) Type() string { return "user.profile.update" }

func (e UpdateProfileMessage) Validate() error {
	p := e.Profile
	return validation.ValidateStruct(&p,
		validation.Field(&p.Avatar, is.URL, validation.Length(0, 2048)),
		validation.Field(&p.Realname, validation.Length(0, 255)),
		validation.Field(&p.Bio, validation.Length(0, 1000)),
		validation.Field(&p.Gender, validation.In(genders...)),
	)
}

// UpdateProfileHandler changes the editable profile attributes. Users may
// edit themselves, admins may edit anyone.
type UpdateProfileHandler struct {
	deps Dependencies
}

func NewUpdateProfileHandler(deps Dependencies) *UpdateProfileHandler {
	return &UpdateProfileHandler{deps: deps}
}

func (h *UpdateProfileHandler) Execute(ctx context.Context, event UpdateProfileMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx, "context cancelled during profile update")
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateProfileHandler) execute(ctx context.Context, event UpdateProfileMessage) error {
	if !CanUpdateUser(event.Actor, event.UserID) {
		return errForbidden("you are not allowed to update this user")
	}

	if err := event.Validate(); err != nil {
		return errInvalidPayload(err)
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	var updated *User
	users := h.deps.Repo.Users()
	err := h.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		updated, err = users.UpdateProfileTx(ctx, tx, event.UserID, event.Profile)
		return err
	})
	if err != nil {
		return richError(err, "profile update transaction failed")
	}

	if !event.Profile.Empty() {
		recordActivity(ctx, h.deps.activity(), h.deps.logger(), ActivityEvent{
			EventType: ActivityEventProfileUpdated,
			Actor:     UserActor(event.Actor),
			UserID:    updated.ID.String(),
		})
	}

	if event.OnResponse != nil {
		event.OnResponse(updated)
	}
	return nil
}

// CanUpdateUser reports whether actor may edit the profile of target.
func CanUpdateUser(actor *User, target uuid.UUID) bool {
	if actor == nil {
		return false
	}
	return actor.ID == target || actor.Role.CanManageUsers()
}
