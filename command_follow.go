package accounts

import (
	"context"

	"github.com/goliatone/go-command"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type FollowUserMessage struct {
	command.BaseMessage
	FollowerID  uuid.UUID
	FollowingID uuid.UUID
}

func (e FollowUserMessage) Type() string { return "user.follow" }

// FollowUserHandler creates a follow edge. Following twice is a no-op and
// only the first follow notifies the followed user.
type FollowUserHandler struct {
	deps Dependencies
}

func NewFollowUserHandler(deps Dependencies) *FollowUserHandler {
	return &FollowUserHandler{deps: deps}
}

func (h *FollowUserHandler) Execute(ctx context.Context, event FollowUserMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx, "context cancelled during follow")
	default:
		return h.execute(ctx, event)
	}
}

func (h *FollowUserHandler) execute(ctx context.Context, event FollowUserMessage) error {
	if event.FollowerID == event.FollowingID {
		return errSelfFollow()
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	var (
		follower  *User
		following *User
		created   bool
	)

	users := h.deps.Repo.Users()
	err := h.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if follower, err = users.FindByIDTx(ctx, tx, event.FollowerID); err != nil {
			return err
		}
		if following, err = users.FindByIDTx(ctx, tx, event.FollowingID); err != nil {
			return err
		}
		created, err = users.FollowTx(ctx, tx, follower.ID, following.ID)
		return err
	})
	if err != nil {
		return richError(err, "follow transaction failed")
	}

	if !created {
		return nil
	}

	recordActivity(ctx, h.deps.activity(), h.deps.logger(), ActivityEvent{
		EventType:   ActivityEventUserFollowed,
		Actor:       UserActor(follower),
		UserID:      follower.ID.String(),
		SubjectType: "user",
		SubjectID:   following.ID.String(),
	})

	if err := h.deps.Notifier.Send(ctx, To(following), NewFollower{Follower: follower}); err != nil {
		h.deps.logger().Warn("new follower notification for %s failed: %v", following.ID, err)
	}

	return nil
}

type UnfollowUserMessage struct {
	command.BaseMessage
	FollowerID  uuid.UUID
	FollowingID uuid.UUID
}

func (e UnfollowUserMessage) Type() string { return "user.unfollow" }

// UnfollowUserHandler removes a follow edge if present.
type UnfollowUserHandler struct {
	deps Dependencies
}

func NewUnfollowUserHandler(deps Dependencies) *UnfollowUserHandler {
	return &UnfollowUserHandler{deps: deps}
}

func (h *UnfollowUserHandler) Execute(ctx context.Context, event UnfollowUserMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx, "context cancelled during unfollow")
	default:
		return h.execute(ctx, event)
	}
}

func (h *UnfollowUserHandler) execute(ctx context.Context, event UnfollowUserMessage) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	var removed bool
	users := h.deps.Repo.Users()
	err := h.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := users.FindByIDTx(ctx, tx, event.FollowingID); err != nil {
			return err
		}
		var err error
		removed, err = users.UnfollowTx(ctx, tx, event.FollowerID, event.FollowingID)
		return err
	})
	if err != nil {
		return richError(err, "unfollow transaction failed")
	}

	if removed {
		recordActivity(ctx, h.deps.activity(), h.deps.logger(), ActivityEvent{
			EventType:   ActivityEventUserUnfollowed,
			Actor:       ActorRef{ID: event.FollowerID.String(), Type: "user"},
			UserID:      event.FollowerID.String(),
			SubjectType: "user",
			SubjectID:   event.FollowingID.String(),
		})
	}

	return nil
}
