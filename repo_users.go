package accounts

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the user repository
type Users interface {
	repository.Repository[*User]

	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	EmailTaken(ctx context.Context, email string, except uuid.UUID) (bool, error)
	EmailTakenTx(ctx context.Context, tx bun.IDB, email string, except uuid.UUID) (bool, error)
	Search(ctx context.Context, filter UserFilter, page PageRequest) (Page[*User], error)

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)

	UpdateStatus(ctx context.Context, id uuid.UUID, status UserStatus, opts ...StatusUpdateOption) (*User, error)
	UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status UserStatus, opts ...StatusUpdateOption) (*User, error)
	UpdateEmailTx(ctx context.Context, tx bun.IDB, id uuid.UUID, email string) (*User, error)
	UpdateProfileTx(ctx context.Context, tx bun.IDB, id uuid.UUID, profile ProfileUpdate) (*User, error)

	FollowTx(ctx context.Context, tx bun.IDB, followerID, followingID uuid.UUID) (bool, error)
	UnfollowTx(ctx context.Context, tx bun.IDB, followerID, followingID uuid.UUID) (bool, error)
	IsFollowing(ctx context.Context, followerID, followingID uuid.UUID) (bool, error)
	Followers(ctx context.Context, id uuid.UUID, page PageRequest) (Page[*User], error)
	Followings(ctx context.Context, id uuid.UUID, page PageRequest) (Page[*User], error)
	CountFollowers(ctx context.Context, id uuid.UUID) (int, error)
	CountFollowings(ctx context.Context, id uuid.UUID) (int, error)
}

// ProfileUpdate lists the profile attributes a user may change. Nil fields
// are left untouched.
type ProfileUpdate struct {
	Avatar   *string
	Realname *string
	Bio      *string
	Gender   *string
	Extends  map[string]any
	Settings map[string]any
	Cache    map[string]any
}

// Empty reports whether the update changes nothing.
func (p ProfileUpdate) Empty() bool {
	return p.Avatar == nil && p.Realname == nil && p.Bio == nil && p.Gender == nil &&
		p.Extends == nil && p.Settings == nil && p.Cache == nil
}

// StatusUpdateOption allows callers to mutate the user record before persisting status changes.
type StatusUpdateOption func(*User)

// WithSuspendedAt sets the SuspendedAt timestamp during a status transition.
func WithSuspendedAt(at *time.Time) StatusUpdateOption {
	return func(u *User) {
		u.SuspendedAt = at
	}
}

// WithActivatedAt stamps the first activation.
func WithActivatedAt(at time.Time) StatusUpdateOption {
	return func(u *User) {
		u.ActivatedAt = &at
		u.EmailValidated = true
	}
}

type users struct {
	repository.Repository[*User]
	db  *bun.DB
	now func() time.Time
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

// UsersOption configures the users repository
type UsersOption func(*users)

// WithUsersClock injects the clock used for timestamps.
func WithUsersClock(now func() time.Time) UsersOption {
	return func(u *users) {
		if now != nil {
			u.now = now
		}
	}
}

// NewUsersRepository returns the bun backed Users repository.
func NewUsersRepository(db *bun.DB, opts ...UsersOption) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
	})

	repoUsers := &users{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoUsers)
		}
	}

	return repoUsers
}

func (a *users) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.FindByIDTx(ctx, a.db, id)
}

func (a *users) FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, errUserNotFound(map[string]any{"id": id.String()})
		}
		return nil, err
	}
	return record, nil
}

func (a *users) FindByEmail(ctx context.Context, email string) (*User, error) {
	return a.FindByEmailTx(ctx, a.db, email)
}

func (a *users) FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("LOWER(?TableAlias.email) = ?", normalizeEmail(email)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, errUserNotFound(map[string]any{"email": email})
		}
		return nil, err
	}
	return record, nil
}

func (a *users) EmailTaken(ctx context.Context, email string, except uuid.UUID) (bool, error) {
	return a.EmailTakenTx(ctx, a.db, email, except)
}

// EmailTakenTx checks uniqueness including soft deleted rows, since the
// unique index covers them too.
func (a *users) EmailTakenTx(ctx context.Context, tx bun.IDB, email string, except uuid.UUID) (bool, error) {
	q := tx.NewSelect().
		Model((*User)(nil)).
		WhereAllWithDeleted().
		Where("LOWER(?TableAlias.email) = ?", normalizeEmail(email))
	if except != uuid.Nil {
		q = q.Where("?TableAlias.id != ?", except)
	}
	return q.Exists(ctx)
}

func (a *users) Search(ctx context.Context, filter UserFilter, page PageRequest) (Page[*User], error) {
	var records []*User
	q := a.db.NewSelect().Model(&records)
	q = filter.apply(q)
	q = page.apply(q.Order("usr.created_at DESC", "usr.username ASC"))

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return Page[*User]{}, err
	}
	return NewPage(records, total, page), nil
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	a.prepareUserDefaults(user)
	return a.Repository.CreateTx(ctx, tx, user)
}

func (a *users) UpdateStatus(ctx context.Context, id uuid.UUID, status UserStatus, opts ...StatusUpdateOption) (*User, error) {
	return a.UpdateStatusTx(ctx, a.db, id, status, opts...)
}

func (a *users) UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status UserStatus, opts ...StatusUpdateOption) (*User, error) {
	current, err := a.FindByIDTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	now := a.now()
	current.Status = status
	current.UpdatedAt = &now
	for _, opt := range opts {
		if opt != nil {
			opt(current)
		}
	}

	_, err = tx.NewUpdate().
		Model(current).
		Column("status", "activated_at", "suspended_at", "is_email_verified", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	return current, nil
}

func (a *users) UpdateEmailTx(ctx context.Context, tx bun.IDB, id uuid.UUID, email string) (*User, error) {
	current, err := a.FindByIDTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	now := a.now()
	current.Email = strings.TrimSpace(email)
	current.EmailValidated = true
	current.UpdatedAt = &now

	_, err = tx.NewUpdate().
		Model(current).
		Column("email", "is_email_verified", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	return current, nil
}

func (a *users) UpdateProfileTx(ctx context.Context, tx bun.IDB, id uuid.UUID, profile ProfileUpdate) (*User, error) {
	current, err := a.FindByIDTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if profile.Empty() {
		return current, nil
	}

	columns := []string{"updated_at"}
	if profile.Avatar != nil {
		current.Avatar = *profile.Avatar
		columns = append(columns, "avatar")
	}
	if profile.Realname != nil {
		current.Realname = *profile.Realname
		columns = append(columns, "realname")
	}
	if profile.Bio != nil {
		current.Bio = *profile.Bio
		columns = append(columns, "bio")
	}
	if profile.Gender != nil {
		current.Gender = *profile.Gender
		columns = append(columns, "gender")
	}
	if profile.Extends != nil {
		current.Extends = profile.Extends
		columns = append(columns, "extends")
	}
	if profile.Settings != nil {
		current.Settings = profile.Settings
		columns = append(columns, "settings")
	}
	if profile.Cache != nil {
		current.Cache = profile.Cache
		columns = append(columns, "cache")
	}

	now := a.now()
	current.UpdatedAt = &now

	_, err = tx.NewUpdate().
		Model(current).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	return current, nil
}

// FollowTx creates the edge if missing and reports whether it was created.
func (a *users) FollowTx(ctx context.Context, tx bun.IDB, followerID, followingID uuid.UUID) (bool, error) {
	now := a.now()
	res, err := tx.NewInsert().
		Model(&Follow{
			FollowerID:  followerID,
			FollowingID: followingID,
			CreatedAt:   &now,
		}).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	return rowsAffected(res) > 0, nil
}

// UnfollowTx removes the edge and reports whether one existed.
func (a *users) UnfollowTx(ctx context.Context, tx bun.IDB, followerID, followingID uuid.UUID) (bool, error) {
	res, err := tx.NewDelete().
		Model((*Follow)(nil)).
		Where("follower_id = ?", followerID).
		Where("following_id = ?", followingID).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	return rowsAffected(res) > 0, nil
}

func (a *users) IsFollowing(ctx context.Context, followerID, followingID uuid.UUID) (bool, error) {
	return a.db.NewSelect().
		Model((*Follow)(nil)).
		Where("follower_id = ?", followerID).
		Where("following_id = ?", followingID).
		Exists(ctx)
}

func (a *users) Followers(ctx context.Context, id uuid.UUID, page PageRequest) (Page[*User], error) {
	return a.listEdges(ctx, "follower_id", "following_id", id, page)
}

func (a *users) Followings(ctx context.Context, id uuid.UUID, page PageRequest) (Page[*User], error) {
	return a.listEdges(ctx, "following_id", "follower_id", id, page)
}

// listEdges returns the users found in column `pick` of edges where `match` equals id.
func (a *users) listEdges(ctx context.Context, pick, match string, id uuid.UUID, page PageRequest) (Page[*User], error) {
	var records []*User
	q := a.db.NewSelect().
		Model(&records).
		Join("JOIN follows AS fol ON fol.? = usr.id", bun.Ident(pick)).
		Where("fol.? = ?", bun.Ident(match), id).
		Order("fol.created_at DESC")
	q = page.apply(q)

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return Page[*User]{}, err
	}
	return NewPage(records, total, page), nil
}

func (a *users) CountFollowers(ctx context.Context, id uuid.UUID) (int, error) {
	return a.countEdges(ctx, "following_id", id)
}

func (a *users) CountFollowings(ctx context.Context, id uuid.UUID) (int, error) {
	return a.countEdges(ctx, "follower_id", id)
}

func (a *users) countEdges(ctx context.Context, column string, id uuid.UUID) (int, error) {
	return a.db.NewSelect().
		Model((*Follow)(nil)).
		Where("? = ?", bun.Ident(column), id).
		Count(ctx)
}

func (a *users) prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.Role == "" {
		record.Role = RoleGuest
	}

	record.EnsureStatus()
	record.Email = strings.TrimSpace(record.Email)

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	now := a.now()
	if record.CreatedAt == nil {
		record.CreatedAt = &now
	}
	if record.UpdatedAt == nil {
		record.UpdatedAt = &now
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func rowsAffected(res sql.Result) int64 {
	if res == nil {
		return 0
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}
