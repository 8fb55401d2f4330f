package console

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"naimuAdmin/internal/console/events"
	consolehttp "naimuAdmin/internal/console/http"
	"naimuAdmin/internal/console/listview"
)

// Store is the SQL collaborator as seen by the publishing mutator.
type Store interface {
	listview.Mutator
	Transition(ctx context.Context, entity, id, target string) (from, to string, err error)
}

// publishingMutator commits mutations through the store and publishes an
// event for each one. Publishing is best-effort.
type publishingMutator struct {
	store     Store
	publisher events.Publisher
	logger    Logger
	now       func() time.Time
}

func newPublishingMutator(store Store, publisher events.Publisher, logger Logger) *publishingMutator {
	return &publishingMutator{store: store, publisher: publisher, logger: logger, now: time.Now}
}

func (m *publishingMutator) Mutate(ctx context.Context, entity, id string, patch listview.Patch) error {
	target, ok := patch["status"].(string)
	if !ok || len(patch) != 1 {
		return m.store.Mutate(ctx, entity, id, patch)
	}
	from, to, err := m.store.Transition(ctx, entity, id, target)
	if err != nil {
		return err
	}
	if from == to {
		return nil
	}
	m.publish(ctx, events.SubjectStatusChanged, events.StatusChanged{
		Entity: entity,
		ID:     id,
		From:   from,
		To:     to,
		Actor:  actor(ctx),
		At:     m.now().UTC(),
	})
	return nil
}

func (m *publishingMutator) Delete(ctx context.Context, entity, id string) error {
	if err := m.store.Delete(ctx, entity, id); err != nil {
		return err
	}
	m.publish(ctx, events.SubjectRowDeleted, events.RowDeleted{
		Entity: entity,
		ID:     id,
		Actor:  actor(ctx),
		At:     m.now().UTC(),
	})
	return nil
}

func (m *publishingMutator) publish(ctx context.Context, subject string, event any) {
	if err := m.publisher.Publish(ctx, subject, event); err != nil {
		m.logger.Errorf("console: publish %s: %v", subject, err)
	}
}

func actor(ctx context.Context) string {
	id, ok := consolehttp.IdentityFrom(ctx)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s:%s", id.Role, strconv.FormatInt(id.UserID, 10))
}
