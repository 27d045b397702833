package skills

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/jingkaihe/skillkit/pkg/logger"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultReloadTimeout bounds a single reload.
	DefaultReloadTimeout = 10 * time.Second
	// DefaultReloadAttempts is how many times the source is read before giving up.
	DefaultReloadAttempts = 3
	defaultRetryDelay     = 200 * time.Millisecond
)

// Store holds the active registry snapshot. Readers call Current once per
// request and keep the returned pointer; Reload swaps in a new snapshot
// atomically and keeps the previous one when anything goes wrong.
type Store struct {
	source     Source
	current    atomic.Pointer[Registry]
	mu         sync.Mutex
	timeout    time.Duration
	attempts   uint
	retryDelay time.Duration
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithReloadTimeout sets the deadline of each reload
func WithReloadTimeout(timeout time.Duration) StoreOption {
	return func(s *Store) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithReloadAttempts sets how many times the source is read per reload
func WithReloadAttempts(attempts uint) StoreOption {
	return func(s *Store) {
		if attempts > 0 {
			s.attempts = attempts
		}
	}
}

// WithRetryDelay sets the initial delay between source reads
func WithRetryDelay(delay time.Duration) StoreOption {
	return func(s *Store) {
		s.retryDelay = delay
	}
}

// NewStore creates a store serving an empty registry until the first reload.
func NewStore(source Source, opts ...StoreOption) *Store {
	s := &Store{
		source:     source,
		timeout:    DefaultReloadTimeout,
		attempts:   DefaultReloadAttempts,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.current.Store(Empty())
	return s
}

// Current returns the active snapshot. It never returns nil.
func (s *Store) Current() *Registry {
	return s.current.Load()
}

type sourceResult struct {
	records []Record
	err     error
}

// Reload reads the source and swaps in a new snapshot. Concurrent reloads are
// serialized. On *ReloadTimeoutError or *ReloadSourceError the previous
// snapshot remains active.
func (s *Store) Reload(ctx context.Context) (*Registry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	prev := s.current.Load()
	log := logger.G(ctx).WithField("previous_version", prev.Version())

	done := make(chan sourceResult, 1)
	go func() {
		records, err := retry.DoWithData(
			func() ([]Record, error) {
				return s.source.Records(ctx)
			},
			retry.Attempts(s.attempts),
			retry.Delay(s.retryDelay),
			retry.DelayType(retry.BackOffDelay),
			retry.Context(ctx),
			retry.LastErrorOnly(true),
			retry.OnRetry(func(n uint, err error) {
				log.WithError(err).WithField("attempt", n+1).Warn("retrying skill source read")
			}),
		)
		done <- sourceResult{records: records, err: err}
	}()

	var result sourceResult
	select {
	case result = <-done:
		if result.err != nil && ctx.Err() != nil {
			return prev, s.aborted(ctx, log)
		}
	case <-ctx.Done():
		return prev, s.aborted(ctx, log)
	}

	if result.err != nil {
		err := &ReloadSourceError{Err: result.err}
		log.WithError(err).Error("skill reload failed")
		return prev, err
	}

	next, err := Load(ctx, result.records, WithVersion(prev.Version()+1))
	if err != nil {
		return prev, &ReloadSourceError{Err: err}
	}
	if next.Len() == 0 && len(result.records) > 0 {
		err := &ReloadSourceError{Err: errors.Wrap(next.Err(), "no valid descriptors")}
		log.WithError(err).Error("skill reload rejected")
		return prev, err
	}

	s.current.Store(next)
	log.WithField("version", next.Version()).WithField("skills", next.Len()).Info("skill registry reloaded")
	return next, nil
}

func (s *Store) aborted(ctx context.Context, log *logrus.Entry) error {
	var err error
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = &ReloadTimeoutError{Timeout: s.timeout}
	} else {
		err = &ReloadSourceError{Err: errors.Wrap(ctx.Err(), "reload cancelled")}
	}
	log.WithError(err).Error("skill reload aborted")
	return err
}
