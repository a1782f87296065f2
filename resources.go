package accounts

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserResource is the public representation of a user.
type UserResource struct {
	ID              uuid.UUID      `json:"id"`
	Username        string         `json:"username"`
	Realname        string         `json:"realname,omitempty"`
	Avatar          string         `json:"avatar,omitempty"`
	Bio             string         `json:"bio,omitempty"`
	Gender          string         `json:"gender,omitempty"`
	Role            UserRole       `json:"user_role"`
	Extends         map[string]any `json:"extends,omitempty"`
	FollowersCount  *int           `json:"followers_count,omitempty"`
	FollowingsCount *int           `json:"followings_count,omitempty"`
	CreatedAt       *time.Time     `json:"created_at,omitempty"`
}

// PrivateUserResource adds the fields only the owner may see.
type PrivateUserResource struct {
	UserResource
	Email               string         `json:"email"`
	Phone               string         `json:"phone_number,omitempty"`
	Status              UserStatus     `json:"status"`
	EmailValidated      bool           `json:"is_email_verified"`
	Settings            map[string]any `json:"settings,omitempty"`
	Cache               map[string]any `json:"cache,omitempty"`
	ActivatedAt         *time.Time     `json:"activated_at,omitempty"`
	UnreadNotifications int            `json:"unread_notifications_count"`
}

// NewUserResource builds the public view of u.
func NewUserResource(u *User) UserResource {
	return UserResource{
		ID:        u.ID,
		Username:  u.Username,
		Realname:  u.Realname,
		Avatar:    u.Avatar,
		Bio:       u.Bio,
		Gender:    u.Gender,
		Role:      u.Role,
		Extends:   u.Extends,
		CreatedAt: u.CreatedAt,
	}
}

// NewPrivateUserResource builds the owner view of u.
func NewPrivateUserResource(u *User) PrivateUserResource {
	return PrivateUserResource{
		UserResource:   NewUserResource(u),
		Email:          u.Email,
		Phone:          u.Phone,
		Status:         u.Status,
		EmailValidated: u.EmailValidated,
		Settings:       u.Settings,
		Cache:          u.Cache,
		ActivatedAt:    u.ActivatedAt,
	}
}

// WithCounts loads the follow counters into r.
func (r UserResource) WithCounts(ctx context.Context, users Users) (UserResource, error) {
	followers, err := users.CountFollowers(ctx, r.ID)
	if err != nil {
		return r, err
	}
	followings, err := users.CountFollowings(ctx, r.ID)
	if err != nil {
		return r, err
	}
	r.FollowersCount = &followers
	r.FollowingsCount = &followings
	return r, nil
}

// ActivityResource is the feed representation of an activity.
type ActivityResource struct {
	ID          uuid.UUID      `json:"id"`
	Type        string         `json:"type"`
	SubjectType string         `json:"subject_type,omitempty"`
	SubjectID   string         `json:"subject_id,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
	CreatedAt   *time.Time     `json:"created_at,omitempty"`
}

func NewActivityResource(a *Activity) ActivityResource {
	return ActivityResource{
		ID:          a.ID,
		Type:        a.EventType,
		SubjectType: a.SubjectType,
		SubjectID:   a.SubjectID,
		Properties:  a.Properties,
		CreatedAt:   a.CreatedAt,
	}
}

// NotificationResource is the inbox representation of a notification.
type NotificationResource struct {
	ID        uuid.UUID      `json:"id"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
	Read      bool           `json:"read"`
	ReadAt    *time.Time     `json:"read_at,omitempty"`
	CreatedAt *time.Time     `json:"created_at,omitempty"`
}

func NewNotificationResource(n *Notification) NotificationResource {
	return NotificationResource{
		ID:        n.ID,
		Type:      n.Type,
		Data:      n.Data,
		Read:      !n.Unread(),
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}
