package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/SBCM-Alliance/G-Cart/internal/domain/session"
	"github.com/SBCM-Alliance/G-Cart/internal/domain/team"
)

func newRedisTestStore(t *testing.T) *RedisStore {
	t.Helper()
	addr := os.Getenv("GCART_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("GCART_TEST_REDIS_ADDR not set")
	}
	s, err := NewRedisStore(context.Background(), addr, "", 0,
		WithKeyPrefix("gcart:test:"+uuid.NewString()+":"), WithRedisTTL(time.Minute))
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRedisStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newRedisTestStore(t)

	if err := store.Create(ctx, session.New("s1", testOwner, time.Now())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Create(ctx, session.New("s1", testOwner, time.Now())); !errors.Is(err, ErrExists) {
		t.Errorf("expected ErrExists, got %v", err)
	}

	_, err := store.Update(ctx, "s1", func(s *session.Session) error {
		if err := s.SelectProject(testProject, time.Now()); err != nil {
			return err
		}
		_, _, err := s.Offer("Tanaka Road", testDirectory, time.Now())
		return err
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Team.TotalCapacity() != 60_000_000 {
		t.Errorf("expected total 60M after round-trip, got %s", got.Team.TotalCapacity())
	}
	if !got.Biddable() {
		t.Error("expected restored team to be biddable")
	}

	_, err = store.Update(ctx, "s1", func(s *session.Session) error {
		s.Back(time.Now())
		_, err := team.ConfirmBid(s.Team, testProject, s.Owner, time.Now())
		return err
	})
	if !errors.Is(err, team.ErrNotBiddable) {
		t.Errorf("expected ErrNotBiddable, got %v", err)
	}
	if got, _ := store.Get(ctx, "s1"); got.Phase != session.PhaseTeamBuilding {
		t.Errorf("failed update changed phase to %s", got.Phase)
	}

	if n := store.Count(ctx); n != 1 {
		t.Errorf("expected count 1, got %d", n)
	}
	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.Get(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
