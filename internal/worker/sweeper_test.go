package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bookingdomain "github.com/cuongbtq/tolkbooking/internal/booking/domain"
	"github.com/cuongbtq/tolkbooking/internal/booking/store"
	"github.com/cuongbtq/tolkbooking/internal/worker/domain"
)

func TestSweeper_Sweep(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	mem := store.NewMemory()
	mem.PutJob(&bookingdomain.Job{ID: 1, Status: bookingdomain.StatusPending, WillExpireAt: now.Add(-time.Minute)})
	mem.PutJob(&bookingdomain.Job{ID: 2, Status: bookingdomain.StatusPending, WillExpireAt: now.Add(time.Hour)})
	mem.PutJob(&bookingdomain.Job{ID: 3, Status: bookingdomain.StatusAssigned, WillExpireAt: now.Add(-time.Hour)})

	pub := &fakePublisher{}
	s := NewSweeper(&SweeperConfig{
		Finder:   mem,
		Enqueuer: NewProducer(pub, discardLogger()),
		Clock:    func() time.Time { return now },
		Logger:   discardLogger(),
	})

	assert.Equal(t, 1, s.Sweep(context.Background()))
	require.Len(t, pub.msgs, 1)

	var cmd domain.Command
	require.NoError(t, json.Unmarshal(pub.msgs[0].body, &cmd))
	assert.Equal(t, domain.CommandExpire, cmd.Command)
	assert.Equal(t, int64(1), cmd.JobID)
}

type failingFinder struct{}

func (failingFinder) FilterJobs(ctx context.Context, criteria store.JobCriteria) ([]*bookingdomain.Job, error) {
	return nil, errors.New("db down")
}

func TestSweeper_SweepErrors(t *testing.T) {
	now := time.Now()

	t.Run("finder failure", func(t *testing.T) {
		pub := &fakePublisher{}
		s := NewSweeper(&SweeperConfig{
			Finder:   failingFinder{},
			Enqueuer: NewProducer(pub, discardLogger()),
			Logger:   discardLogger(),
		})
		assert.Zero(t, s.Sweep(context.Background()))
		assert.Empty(t, pub.msgs)
	})

	t.Run("publish failure skips job", func(t *testing.T) {
		mem := store.NewMemory()
		mem.PutJob(&bookingdomain.Job{ID: 1, Status: bookingdomain.StatusPending, WillExpireAt: now.Add(-time.Minute)})
		s := NewSweeper(&SweeperConfig{
			Finder:   mem,
			Enqueuer: NewProducer(&fakePublisher{err: errors.New("closed")}, discardLogger()),
			Clock:    func() time.Time { return now },
			Logger:   discardLogger(),
		})
		assert.Zero(t, s.Sweep(context.Background()))
	})
}

func TestSweeper_StartStopsOnCancel(t *testing.T) {
	pub := &fakePublisher{}
	s := NewSweeper(&SweeperConfig{
		Finder:   store.NewMemory(),
		Enqueuer: NewProducer(pub, discardLogger()),
		Interval: 10 * time.Millisecond,
		Logger:   discardLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
