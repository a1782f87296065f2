package accounts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Notifications stores database channel notifications
type Notifications interface {
	Create(ctx context.Context, n *Notification) (*Notification, error)
	CreateTx(ctx context.Context, tx bun.IDB, n *Notification) (*Notification, error)
	ListForUser(ctx context.Context, userID uuid.UUID, filter NotificationFilter, page PageRequest) (Page[*Notification], error)
	MarkRead(ctx context.Context, userID uuid.UUID, ids ...uuid.UUID) (int, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

type notifications struct {
	db  *bun.DB
	now func() time.Time
}

// NewNotificationsRepository returns the bun backed Notifications store.
func NewNotificationsRepository(db *bun.DB) Notifications {
	return &notifications{db: db, now: time.Now}
}

func (r *notifications) Create(ctx context.Context, n *Notification) (*Notification, error) {
	return r.CreateTx(ctx, r.db, n)
}

func (r *notifications) CreateTx(ctx context.Context, tx bun.IDB, n *Notification) (*Notification, error) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt == nil {
		now := r.now().UTC()
		n.CreatedAt = &now
	}

	if _, err := tx.NewInsert().Model(n).Exec(ctx); err != nil {
		return nil, err
	}
	return n, nil
}

func (r *notifications) ListForUser(ctx context.Context, userID uuid.UUID, filter NotificationFilter, page PageRequest) (Page[*Notification], error) {
	var records []*Notification
	q := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.notifiable_id = ?", userID)
	q = filter.apply(q)
	q = page.apply(q.Order("ntf.created_at DESC"))

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return Page[*Notification]{}, err
	}
	return NewPage(records, total, page), nil
}

// MarkRead flags the given notifications, or all unread ones when ids is
// empty, as read.
func (r *notifications) MarkRead(ctx context.Context, userID uuid.UUID, ids ...uuid.UUID) (int, error) {
	q := r.db.NewUpdate().
		Model((*Notification)(nil)).
		Set("read_at = ?", r.now().UTC()).
		Where("notifiable_id = ?", userID).
		Where("read_at IS NULL")
	if len(ids) > 0 {
		q = q.Where("id IN (?)", bun.In(ids))
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return int(rowsAffected(res)), nil
}

func (r *notifications) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return r.db.NewSelect().
		Model((*Notification)(nil)).
		Where("notifiable_id = ?", userID).
		Where("read_at IS NULL").
		Count(ctx)
}
