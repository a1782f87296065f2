package accounts

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole string

const (
	// RoleGuest can view
	RoleGuest UserRole = "guest"
	// RoleMember can view and edit its own resources
	RoleMember UserRole = "member"
	// RoleAdmin can manage other users
	RoleAdmin UserRole = "admin"
	// RoleOwner can do everything an admin can
	RoleOwner UserRole = "owner"
)

// UserStatus is the lifecycle status of an account
type UserStatus string

const (
	UserStatusPending   UserStatus = "pending"
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusDisabled  UserStatus = "disabled"
	UserStatusArchived  UserStatus = "archived"
)

// User is the user model
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role           UserRole       `bun:"user_role,notnull" json:"user_role,omitempty"`
	Username       string         `bun:"username,notnull,unique" json:"username,omitempty"`
	Realname       string         `bun:"realname" json:"realname,omitempty"`
	Email          string         `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone          string         `bun:"phone_number" json:"phone_number,omitempty"`
	Avatar         string         `bun:"avatar" json:"avatar,omitempty"`
	Bio            string         `bun:"bio" json:"bio,omitempty"`
	Gender         string         `bun:"gender" json:"gender,omitempty"`
	Extends        map[string]any `bun:"extends" json:"extends,omitempty"`
	Settings       map[string]any `bun:"settings" json:"settings,omitempty"`
	Cache          map[string]any `bun:"cache" json:"cache,omitempty"`
	PasswordHash   string         `bun:"password_hash" json:"-"`
	Status         UserStatus     `bun:"status,notnull" json:"status,omitempty"`
	EmailValidated bool           `bun:"is_email_verified" json:"is_email_verified"`
	ActivatedAt    *time.Time     `bun:"activated_at,nullzero" json:"activated_at,omitempty"`
	SuspendedAt    *time.Time     `bun:"suspended_at,nullzero" json:"suspended_at,omitempty"`
	CreatedAt      *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time     `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// EnsureStatus defaults an empty status to pending.
func (u *User) EnsureStatus() {
	if u != nil && u.Status == "" {
		u.Status = UserStatusPending
	}
}

func (u *User) IsPending() bool   { return u != nil && u.Status == UserStatusPending }
func (u *User) IsActive() bool    { return u != nil && u.Status == UserStatusActive }
func (u *User) IsSuspended() bool { return u != nil && u.Status == UserStatusSuspended }

// Activated reports whether the account has confirmed its email at least once.
func (u *User) Activated() bool {
	return u != nil && u.ActivatedAt != nil
}

// Identity adapts the user to the Identity interface.
func (u *User) Identity() Identity {
	return userIdentity{u}
}

type userIdentity struct{ u *User }

func (i userIdentity) ID() string       { return i.u.ID.String() }
func (i userIdentity) Username() string { return i.u.Username }
func (i userIdentity) Email() string    { return i.u.Email }
func (i userIdentity) Role() string     { return string(i.u.Role) }

// Follow is an edge in the follow graph: FollowerID follows FollowingID.
type Follow struct {
	bun.BaseModel `bun:"table:follows,alias:fol"`
	FollowerID    uuid.UUID  `bun:"follower_id,pk,type:uuid" json:"follower_id"`
	FollowingID   uuid.UUID  `bun:"following_id,pk,type:uuid" json:"following_id"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Activity is an entry in a user's public activity feed.
type Activity struct {
	bun.BaseModel `bun:"table:activities,alias:act"`
	ID            uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id"`
	UserID        uuid.UUID      `bun:"user_id,notnull,type:uuid" json:"user_id"`
	EventType     string         `bun:"event_type,notnull" json:"event_type"`
	SubjectType   string         `bun:"subject_type" json:"subject_type,omitempty"`
	SubjectID     string         `bun:"subject_id" json:"subject_id,omitempty"`
	Properties    map[string]any `bun:"properties" json:"properties,omitempty"`
	CreatedAt     *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Notification is a database channel notification addressed to a user.
type Notification struct {
	bun.BaseModel `bun:"table:notifications,alias:ntf"`
	ID            uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id"`
	NotifiableID  uuid.UUID      `bun:"notifiable_id,notnull,type:uuid" json:"notifiable_id"`
	Type          string         `bun:"type,notnull" json:"type"`
	Data          map[string]any `bun:"data" json:"data,omitempty"`
	ReadAt        *time.Time     `bun:"read_at,nullzero" json:"read_at,omitempty"`
	CreatedAt     *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Unread reports whether the notification has not been read yet.
func (n *Notification) Unread() bool {
	return n != nil && n.ReadAt == nil
}
