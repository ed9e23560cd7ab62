package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/oddfellowcoffee/storefront-backend/pkg/logger"
)

type stubLock struct {
	acquired   bool
	acquireErr error
	releases   int
}

func (s *stubLock) Acquire(ctx context.Context) (bool, error) {
	return s.acquired, s.acquireErr
}

func (s *stubLock) Release(ctx context.Context) error {
	s.releases++
	return nil
}

type stubJob struct {
	name string
	runs int
	err  error
}

func (s *stubJob) Name() string { return s.name }

func (s *stubJob) Run(ctx context.Context) error {
	s.runs++
	return s.err
}

type stubStore struct {
	setNXResult bool
	setNXErr    error
	value       string
	getErr      error
	deleted     []string
}

func (s *stubStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	return s.setNXResult, s.setNXErr
}

func (s *stubStore) Get(ctx context.Context, key string) (string, error) {
	return s.value, s.getErr
}

func (s *stubStore) Del(ctx context.Context, keys ...string) error {
	s.deleted = append(s.deleted, keys...)
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func TestServiceRunsJobsWhenLockAcquired(t *testing.T) {
	job := &stubJob{name: "digest"}
	lock := &stubLock{acquired: true}
	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(job),
		Lock:     lock,
		Interval: time.Minute,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	svc.runCycle(context.Background())

	if job.runs != 1 {
		t.Fatalf("expected 1 run, got %d", job.runs)
	}
	if lock.releases != 1 {
		t.Fatalf("expected lock released once, got %d", lock.releases)
	}
}

func TestServiceSkipsCycleOnLockContention(t *testing.T) {
	job := &stubJob{name: "digest"}
	lock := &stubLock{acquired: false}
	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(job),
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	svc.runCycle(context.Background())

	if job.runs != 0 {
		t.Fatalf("expected no runs, got %d", job.runs)
	}
	if lock.releases != 0 {
		t.Fatalf("lock should not be released when never acquired")
	}
}

func TestServiceContinuesAfterJobFailure(t *testing.T) {
	failing := &stubJob{name: "first", err: errors.New("boom")}
	healthy := &stubJob{name: "second"}
	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(failing, healthy),
		Lock:     &stubLock{acquired: true},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	svc.runCycle(context.Background())

	if healthy.runs != 1 {
		t.Fatalf("expected later job to run despite earlier failure")
	}
}

func TestRedisLockReleasesOnlyWhenOwned(t *testing.T) {
	store := &stubStore{setNXResult: true}
	lock, err := NewRedisLock(store, "ofc:lock:cron", time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}

	ok, err := lock.Acquire(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected acquire to succeed, ok=%v err=%v", ok, err)
	}

	store.value = "someone-else"
	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if len(store.deleted) != 0 {
		t.Fatalf("lock owned by another worker must not be deleted")
	}

	store.value = lock.owner
	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if len(store.deleted) != 1 {
		t.Fatalf("expected owned lock to be deleted once, got %d", len(store.deleted))
	}
}

func TestRegistrySkipsNilJobs(t *testing.T) {
	registry := NewRegistry(nil, &stubJob{name: "only"})
	registry.Register(nil)

	if got := len(registry.Jobs()); got != 1 {
		t.Fatalf("expected 1 job, got %d", got)
	}
}
