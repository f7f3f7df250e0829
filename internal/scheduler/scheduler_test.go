package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdd_InvalidExpression(t *testing.T) {
	s := New(time.Minute, nil)

	err := s.Add("poll", "not a cron expression", func(ctx context.Context) error {
		return nil
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "poll")
}

func TestAdd_InvalidExpressionDoesNotAffectOtherJobs(t *testing.T) {
	s := New(time.Minute, nil)
	fired := make(chan struct{}, 1)

	require.NoError(t, s.Add("refresh", "@every 10ms", func(ctx context.Context) error {
		select {
		case fired <- struct{}{}:
		default:
		}
		return nil
	}))
	require.Error(t, s.Add("poll", "61 * * * *", func(ctx context.Context) error {
		return nil
	}))

	s.Start()
	defer func() { _ = s.Stop(context.Background()) }()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("valid job never fired")
	}
}

func TestRun_ContextCarriesTimeout(t *testing.T) {
	s := New(30*time.Second, nil)
	deadlines := make(chan bool, 1)

	require.NoError(t, s.Add("poll", "@every 10ms", func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		select {
		case deadlines <- ok:
		default:
		}
		return errors.New("stop here")
	}))

	s.Start()
	defer func() { _ = s.Stop(context.Background()) }()

	select {
	case ok := <-deadlines:
		assert.True(t, ok, "job context should carry a deadline")
	case <-time.After(2 * time.Second):
		t.Fatal("job never fired")
	}
}

func TestStop_WaitsForRunningJobs(t *testing.T) {
	s := New(time.Minute, nil)
	started := make(chan struct{})
	release := make(chan struct{})

	require.NoError(t, s.Add("poll", "@every 10ms", func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
			<-release
		default:
		}
		return nil
	}))

	s.Start()
	<-started

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(release)
	}()

	require.NoError(t, s.Stop(context.Background()))
}
