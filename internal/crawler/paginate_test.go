package crawler

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginateStopsAtExhaustion(t *testing.T) {
	src := &pagedStub{name: "a", max: 10, page: func(call int, cursor string) (Page, error) {
		if call < 3 {
			return Page{Jobs: jobsFor("a", call*10, call*10+2), Next: strconv.Itoa(call)}, nil
		}
		return Page{Jobs: jobsFor("a", 99, 100)}, nil
	}}

	jobs, err := Paginate(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 3, src.calls)
	assert.Equal(t, []string{"", "1", "2"}, src.cursors)
	assert.Len(t, jobs, 5)
}

func TestPaginateAlwaysHasMoreHitsCeiling(t *testing.T) {
	src := &pagedStub{name: "a", max: 7, page: func(call int, cursor string) (Page, error) {
		return Page{Jobs: jobsFor("a", call, call+1), Next: "page-" + strconv.Itoa(call)}, nil
	}}

	done := make(chan struct{})
	var jobs []Job
	var err error
	go func() {
		jobs, err = Paginate(context.Background(), src)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Paginate did not terminate")
	}
	require.NoError(t, err)
	assert.Equal(t, 7, src.calls)
	assert.Len(t, jobs, 7)
}

func TestPaginateStopsOnRepeatedCursor(t *testing.T) {
	src := &pagedStub{name: "a", max: 50, page: func(call int, cursor string) (Page, error) {
		return Page{Jobs: jobsFor("a", 0, 1), Next: "same"}, nil
	}}

	jobs, err := Paginate(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
	assert.Len(t, jobs, 1)
}

func TestPaginateEmptyPageIsNotAnError(t *testing.T) {
	src := &pagedStub{name: "a", max: 5, page: func(call int, cursor string) (Page, error) {
		return Page{}, nil
	}}

	jobs, err := Paginate(context.Background(), src)
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.Equal(t, 1, src.calls)
}

func TestPaginateFailureDiscardsSource(t *testing.T) {
	boom := errors.New("connection reset")
	src := &pagedStub{name: "a", max: 5, page: func(call int, cursor string) (Page, error) {
		if call == 2 {
			return Page{}, boom
		}
		return Page{Jobs: jobsFor("a", call, call+1), Next: strconv.Itoa(call)}, nil
	}}

	jobs, err := Paginate(context.Background(), src)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, jobs)
}

func TestPaginateDedupesAcrossPages(t *testing.T) {
	src := &pagedStub{name: "a", max: 5, page: func(call int, cursor string) (Page, error) {
		if call == 1 {
			return Page{Jobs: jobsFor("a", 0, 3), Next: "2"}, nil
		}
		return Page{Jobs: jobsFor("a", 2, 4)}, nil
	}}

	jobs, err := Paginate(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-0", "a-1", "a-2", "a-3"}, identities(jobs))
}

func TestPaginateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &pagedStub{name: "a", max: 5, page: func(call int, cursor string) (Page, error) {
		return Page{}, nil
	}}

	_, err := Paginate(ctx, src)
	assert.Error(t, err)
	assert.Equal(t, 0, src.calls)
}

func TestRetryPolicyPopulatedAfterEmptyAttempts(t *testing.T) {
	var sleeps []time.Duration
	p := RetryPolicy{MaxAttempts: 10, Delay: 5 * time.Second, Sleep: func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}}

	calls := 0
	n, err := p.Do(context.Background(), func(ctx context.Context) (bool, error) {
		calls++
		return calls == 4, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, 4, calls)
	assert.Len(t, sleeps, 3)
	assert.Equal(t, 5*time.Second, sleeps[0])
}

func TestRetryPolicyGivesUpAfterMaxAttempts(t *testing.T) {
	sleeps := 0
	p := RetryPolicy{MaxAttempts: 10, Sleep: func(ctx context.Context, d time.Duration) error {
		sleeps++
		return nil
	}}

	calls := 0
	n, err := p.Do(context.Background(), func(ctx context.Context) (bool, error) {
		calls++
		return false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, 10, calls)
	assert.Equal(t, 9, sleeps)
}

func TestRetryPolicyStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	_, err := RetryPolicy{MaxAttempts: 10}.Do(context.Background(), func(ctx context.Context) (bool, error) {
		calls++
		return false, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicyHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := RetryPolicy{MaxAttempts: 10, Delay: time.Hour}.Do(ctx, func(ctx context.Context) (bool, error) {
		calls++
		cancel()
		return false, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
