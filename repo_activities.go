package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Activities stores the public activity feed
type Activities interface {
	Create(ctx context.Context, activity *Activity) (*Activity, error)
	ListForUser(ctx context.Context, userID uuid.UUID, page PageRequest) (Page[*Activity], error)
}

type activities struct {
	db *bun.DB
}

// NewActivitiesRepository returns the bun backed Activities store.
func NewActivitiesRepository(db *bun.DB) Activities {
	return &activities{db: db}
}

func (a *activities) Create(ctx context.Context, activity *Activity) (*Activity, error) {
	if activity.ID == uuid.Nil {
		activity.ID = uuid.New()
	}
	if activity.CreatedAt == nil {
		now := time.Now().UTC()
		activity.CreatedAt = &now
	}

	if _, err := a.db.NewInsert().Model(activity).Exec(ctx); err != nil {
		return nil, err
	}
	return activity, nil
}

func (a *activities) ListForUser(ctx context.Context, userID uuid.UUID, page PageRequest) (Page[*Activity], error) {
	var records []*Activity
	q := a.db.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", userID).
		Order("act.created_at DESC")
	q = page.apply(q)

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return Page[*Activity]{}, err
	}
	return NewPage(records, total, page), nil
}

// ActivityRecorder is an ActivitySink that persists events as feed entries.
type ActivityRecorder struct {
	store Activities
}

// NewActivityRecorder wraps store as an ActivitySink.
func NewActivityRecorder(store Activities) *ActivityRecorder {
	return &ActivityRecorder{store: store}
}

// Record implements ActivitySink.
func (r *ActivityRecorder) Record(ctx context.Context, event ActivityEvent) error {
	userID, err := uuid.Parse(event.UserID)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "activity event without a valid user id").
			WithMetadata(map[string]any{"event_type": string(event.EventType)})
	}

	props := map[string]any{}
	for k, v := range event.Metadata {
		props[k] = v
	}
	if event.FromStatus != "" {
		props["from_status"] = string(event.FromStatus)
	}
	if event.ToStatus != "" {
		props["to_status"] = string(event.ToStatus)
	}
	if event.Actor.ID != "" {
		props["actor_id"] = event.Actor.ID
	}
	if len(props) == 0 {
		props = nil
	}

	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	occurred = occurred.UTC()
	_, err = r.store.Create(ctx, &Activity{
		UserID:      userID,
		EventType:   string(event.EventType),
		SubjectType: event.SubjectType,
		SubjectID:   event.SubjectID,
		Properties:  props,
		CreatedAt:   &occurred,
	})
	return err
}
