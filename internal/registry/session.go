package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/irisdrone/pipewatch/internal/detection"
	"github.com/irisdrone/pipewatch/internal/logging"
)

var (
	// ErrRefreshInProgress is returned when a refresh is requested while
	// another is still acquiring. The new request is dropped.
	ErrRefreshInProgress = errors.New("refresh already in progress")
	// ErrRefreshDiscarded is returned when the session was closed or the
	// caller's context ended before the snapshot could be applied.
	ErrRefreshDiscarded = errors.New("refresh discarded")
	ErrSessionClosed    = errors.New("session closed")
)

// DefaultRefreshInterval is the auto-refresh period used by Run callers that
// have no configured interval.
const DefaultRefreshInterval = 20 * time.Second

// StatusWriter persists an operator status change before it is applied
// locally.
type StatusWriter interface {
	WriteStatus(ctx context.Context, id string, status Status) error
}

// StatusWriterFunc adapts a function to StatusWriter.
type StatusWriterFunc func(ctx context.Context, id string, status Status) error

func (f StatusWriterFunc) WriteStatus(ctx context.Context, id string, status Status) error {
	return f(ctx, id, status)
}

// UpdateKind says what produced an Update.
type UpdateKind string

const (
	UpdateReconciled UpdateKind = "reconciled"
	UpdateStatus     UpdateKind = "status"
)

// Update is delivered to listeners after every change to the registry.
type Update struct {
	Kind        UpdateKind         `json:"kind"`
	Defects     []Defect           `json:"defects"`
	Snapshot    detection.Snapshot `json:"snapshot"`
	Fingerprint string             `json:"fingerprint,omitempty"`
	At          time.Time          `json:"at"`
}

// Listener receives registry updates. Listeners run one update at a time, in
// the order the changes were applied, and must not call UpdateStatus or
// AdoptStatuses.
type Listener func(Update)

// Session owns one registry and serializes every change to it.
type Session struct {
	rec       *Reconciler
	acquirer  detection.Acquirer
	writer    StatusWriter
	now       func() time.Time
	log       *slog.Logger
	listeners []Listener

	refreshing atomic.Bool
	closed     chan struct{}
	closeOnce  sync.Once

	// applyMu is held from a change until its listeners return.
	applyMu sync.Mutex

	mu              sync.Mutex
	reg             []Defect
	lastErr         error
	lastFingerprint string
	lastRefresh     time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithInitial sets the registry a session starts from. Its ids are reserved
// with the reconciler's allocator.
func WithInitial(reg []Defect) Option {
	return func(s *Session) {
		s.reg = Clone(reg)
		Sort(s.reg)
		if len(s.reg) > MaxRegistrySize {
			s.reg = s.reg[:MaxRegistrySize]
		}
	}
}

// WithStatusWriter sets where status changes are persisted.
func WithStatusWriter(w StatusWriter) Option {
	return func(s *Session) { s.writer = w }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithLogger replaces the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithListener registers a listener for registry updates.
func WithListener(l Listener) Option {
	return func(s *Session) { s.listeners = append(s.listeners, l) }
}

// NewSession returns a session that refreshes from acquirer.
func NewSession(rec *Reconciler, acquirer detection.Acquirer, opts ...Option) *Session {
	s := &Session{
		rec:      rec,
		acquirer: acquirer,
		now:      time.Now,
		closed:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logging.New("registry")
	}
	rec.Observe(s.reg)
	return s
}

// Defects returns a copy of the registry in display order.
func (s *Session) Defects() []Defect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Clone(s.reg)
}

// Get returns one entry by id.
func (s *Session) Get(id string) (Defect, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return Clone(s.reg[i : i+1])[0], true
	}
	return Defect{}, false
}

// LastError returns the error of the most recent failed refresh, or nil once
// a refresh succeeds.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// LastRefresh returns when the registry was last reconciled.
func (s *Session) LastRefresh() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRefresh
}

// Refreshing reports whether an acquisition is in flight.
func (s *Session) Refreshing() bool {
	return s.refreshing.Load()
}

// Refresh acquires a snapshot and reconciles it into the registry. Only one
// refresh runs at a time; concurrent calls get ErrRefreshInProgress. When
// acquisition fails the registry is left untouched and the error is
// recorded for LastError.
func (s *Session) Refresh(ctx context.Context) error {
	_, err := s.RefreshUpdate(ctx)
	return err
}

// RefreshUpdate is Refresh returning the update the refresh produced.
func (s *Session) RefreshUpdate(ctx context.Context) (Update, error) {
	if s.isClosed() {
		return Update{}, ErrSessionClosed
	}
	if !s.refreshing.CompareAndSwap(false, true) {
		return Update{}, ErrRefreshInProgress
	}
	defer s.refreshing.Store(false)

	snap, err := s.acquirer.Acquire(ctx)
	if s.isClosed() || ctx.Err() != nil {
		if cause := errors.Join(ctx.Err(), err); cause != nil {
			return Update{}, fmt.Errorf("%w: %w", ErrRefreshDiscarded, cause)
		}
		return Update{}, ErrRefreshDiscarded
	}
	if err != nil {
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		return Update{}, err
	}

	fingerprint, ferr := detection.Fingerprint(snap)
	if ferr != nil {
		s.log.Warn("⚠️ Failed to fingerprint snapshot", "error", ferr)
	}

	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	now := s.now()
	s.mu.Lock()
	s.reg = s.rec.Reconcile(s.reg, snap, now)
	s.lastErr = nil
	s.lastRefresh = now
	unchanged := fingerprint != "" && fingerprint == s.lastFingerprint
	s.lastFingerprint = fingerprint
	update := Update{
		Kind:        UpdateReconciled,
		Defects:     Clone(s.reg),
		Snapshot:    snap,
		Fingerprint: fingerprint,
		At:          now,
	}
	s.mu.Unlock()

	if unchanged {
		s.log.Debug("🔁 Snapshot unchanged since last refresh", "fingerprint", fingerprint)
	} else {
		s.log.Info("🔄 Registry reconciled",
			"detections", snap.TotalCount,
			"entries", len(update.Defects))
	}
	s.notify(update)
	return update, nil
}

// UpdateStatus persists an operator status change and then applies it to the
// local entry. It is the only way an entry becomes resolved.
func (s *Session) UpdateStatus(ctx context.Context, id string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if _, ok := s.Get(id); !ok {
		return fmt.Errorf("%w: %s", ErrDefectNotFound, id)
	}

	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	if s.writer != nil {
		if err := s.writer.WriteStatus(ctx, id, status); err != nil {
			return fmt.Errorf("persist status of %s: %w", id, err)
		}
	}

	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDefectNotFound, id)
	}
	s.reg[i].Status = status
	update := Update{Kind: UpdateStatus, Defects: Clone(s.reg), At: s.now()}
	s.mu.Unlock()

	s.log.Info("✅ Defect status updated", "id", id, "status", status)
	s.notify(update)
	return nil
}

// AdoptStatuses copies statuses already persisted elsewhere onto the local
// entries with the same location and defect type. Nothing is written back.
// It returns how many entries changed.
func (s *Session) AdoptStatuses(remote []Defect) int {
	byKey := make(map[key]Status, len(remote))
	for _, d := range remote {
		if d.Status.Valid() {
			byKey[keyOf(d)] = d.Status
		}
	}

	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	s.mu.Lock()
	changed := 0
	for i := range s.reg {
		st, ok := byKey[keyOf(s.reg[i])]
		if ok && st != s.reg[i].Status {
			s.reg[i].Status = st
			changed++
		}
	}
	if changed == 0 {
		s.mu.Unlock()
		return 0
	}
	update := Update{Kind: UpdateStatus, Defects: Clone(s.reg), At: s.now()}
	s.mu.Unlock()

	s.log.Debug("🔁 Adopted remote statuses", "changed", changed)
	s.notify(update)
	return changed
}

// Run refreshes immediately and then every interval until ctx ends or the
// session is closed. Failed acquisitions and overlapping refreshes are logged
// and retried on the next tick; any other error stops Run and is returned.
func (s *Session) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.Refresh(ctx); err != nil {
			switch {
			case errors.Is(err, ErrRefreshInProgress):
				s.log.Debug("⏭️ Refresh skipped, previous still running")
			case errors.Is(err, detection.ErrSnapshotUnavailable):
				s.log.Warn("⚠️ Snapshot unavailable, keeping registry", "error", err)
			case errors.Is(err, ErrRefreshDiscarded), errors.Is(err, ErrSessionClosed):
				// ctx or Close ends the loop below
			default:
				return err
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.closed:
			return nil
		case <-ticker.C:
		}
	}
}

// Close stops Run and discards any refresh still acquiring.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

func (s *Session) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func (s *Session) indexOf(id string) int {
	for i, d := range s.reg {
		if d.ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) notify(u Update) {
	for _, l := range s.listeners {
		l(u)
	}
}
