package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeRepo struct {
	created   []*Notification
	createErr error
	unread    int
}

func (f *fakeRepo) Create(ctx context.Context, n *Notification) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, n)
	f.unread++
	return nil
}

func (f *fakeRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Notification, error) {
	return f.created, nil
}

func (f *fakeRepo) CountUnreadByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	return f.unread, nil
}

func (f *fakeRepo) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error { return nil }

func (f *fakeRepo) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error { return nil }

func (f *fakeRepo) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	return 0, nil
}

type fakePublisher struct {
	pushed      []*Notification
	unreadCount int
	err         error
}

func (f *fakePublisher) NotifyNew(ctx context.Context, userID uuid.UUID, n *Notification, unreadCount int) error {
	if f.err != nil {
		return f.err
	}
	f.pushed = append(f.pushed, n)
	f.unreadCount = unreadCount
	return nil
}

func TestNotifyStoresAndPushes(t *testing.T) {
	repo := &fakeRepo{}
	publisher := &fakePublisher{}
	svc := NewService(repo, publisher)
	userID := uuid.New()

	svc.Notify(context.Background(), userID, "You redeemed Coffee Mug")

	if len(repo.created) != 1 {
		t.Fatalf("expected 1 stored notification, got %d", len(repo.created))
	}
	if repo.created[0].Message != "You redeemed Coffee Mug" {
		t.Fatalf("unexpected message %q", repo.created[0].Message)
	}
	if repo.created[0].IsRead {
		t.Fatal("new notifications start unread")
	}
	if len(publisher.pushed) != 1 {
		t.Fatal("expected realtime push")
	}
	if publisher.unreadCount != 1 {
		t.Fatalf("expected unread count 1, got %d", publisher.unreadCount)
	}
}

func TestNotifySwallowsStoreFailure(t *testing.T) {
	repo := &fakeRepo{createErr: errors.New("db down")}
	publisher := &fakePublisher{}
	svc := NewService(repo, publisher)

	// Must not panic or push a notification that was never stored
	svc.Notify(context.Background(), uuid.New(), "hello")

	if len(publisher.pushed) != 0 {
		t.Fatal("expected no realtime push when the store fails")
	}
}

func TestNotifySwallowsPublisherFailure(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, &fakePublisher{err: errors.New("socket gone")})

	svc.Notify(context.Background(), uuid.New(), "hello")

	if len(repo.created) != 1 {
		t.Fatal("store must succeed even when the push fails")
	}
}

func TestNotifyWorksWithoutPublisher(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, nil)

	svc.Notify(context.Background(), uuid.New(), "hello")

	if len(repo.created) != 1 {
		t.Fatal("expected notification to be stored")
	}
}
