package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/irisdrone/pipewatch/internal/detection"
	"github.com/irisdrone/pipewatch/internal/logging"
	"github.com/irisdrone/pipewatch/internal/metrics"
	"github.com/irisdrone/pipewatch/internal/registry"
	"github.com/irisdrone/pipewatch/internal/risk"
	"github.com/irisdrone/pipewatch/models"
)

const persistTimeout = 10 * time.Second

// DefectRepository stores the registry. *database.DefectStore implements it.
type DefectRepository interface {
	Load(ctx context.Context) ([]registry.Defect, error)
	Replace(ctx context.Context, reg []registry.Defect) error
	WriteStatus(ctx context.Context, id string, status registry.Status) error
}

// SnapshotRepository keeps the snapshot history. *database.ReadingStore
// implements it.
type SnapshotRepository interface {
	SaveSnapshot(ctx context.Context, rec models.SnapshotRecord) error
}

// MonitorConfig wires a Monitor.
type MonitorConfig struct {
	Acquirer  detection.Acquirer
	Defects   DefectRepository
	Snapshots SnapshotRepository
	Publisher *EventPublisher
	Rand      detection.RandSource
	Clock     func() time.Time
}

// Monitor is the server-side registry session. Every reconciliation is
// persisted, recorded in metrics and published on the bus.
type Monitor struct {
	session   *registry.Session
	defects   DefectRepository
	snapshots SnapshotRepository
	publisher *EventPublisher
	log       *slog.Logger

	mu          sync.RWMutex
	latest      detection.Snapshot
	fingerprint string
}

// NewMonitor loads the stored registry, seeding it with the historical
// entries when storage is empty.
func NewMonitor(ctx context.Context, cfg MonitorConfig) (*Monitor, error) {
	if cfg.Acquirer == nil || cfg.Defects == nil {
		return nil, errors.New("monitor requires an acquirer and a defect repository")
	}
	if cfg.Rand == nil {
		cfg.Rand = detection.NewSeededRand(0)
	}

	m := &Monitor{
		defects:   cfg.Defects,
		snapshots: cfg.Snapshots,
		publisher: cfg.Publisher,
		log:       logging.New("monitor"),
		latest:    detection.Empty(),
	}

	initial, err := cfg.Defects.Load(ctx)
	if err != nil {
		return nil, err
	}
	if len(initial) == 0 {
		initial = registry.Seed()
		if err := cfg.Defects.Replace(ctx, initial); err != nil {
			return nil, fmt.Errorf("failed to seed defect registry: %w", err)
		}
		m.log.Info("🌱 Seeded defect registry", "entries", len(initial))
	}

	opts := []registry.Option{
		registry.WithInitial(initial),
		registry.WithStatusWriter(cfg.Defects),
		registry.WithLogger(logging.New("registry")),
		registry.WithListener(metrics.ObserveUpdate),
		registry.WithListener(m.onUpdate),
	}
	if cfg.Clock != nil {
		opts = append(opts, registry.WithClock(cfg.Clock))
	}
	rec := registry.NewReconciler(registry.NewIDAllocator(), cfg.Rand)
	m.session = registry.NewSession(rec, cfg.Acquirer, opts...)
	return m, nil
}

func (m *Monitor) onUpdate(u registry.Update) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if u.Kind == registry.UpdateReconciled {
		m.mu.Lock()
		m.latest = u.Snapshot.Normalize()
		m.fingerprint = u.Fingerprint
		m.mu.Unlock()

		if err := m.defects.Replace(ctx, u.Defects); err != nil {
			m.log.Error("❌ Failed to persist registry", "error", err)
		}
		if m.snapshots != nil && u.Snapshot.HasDetections() {
			if err := m.snapshots.SaveSnapshot(ctx, models.NewSnapshotRecord(u.Snapshot, u.Fingerprint, u.At)); err != nil {
				m.log.Warn("⚠️ Failed to store snapshot", "error", err)
			}
		}
	}

	if m.publisher != nil {
		if err := m.publisher.PublishUpdate(u); err != nil {
			m.log.Warn("⚠️ Failed to publish registry update", "kind", u.Kind, "error", err)
		}
	}
}

// Poll refreshes the registry and returns the snapshot it was reconciled
// from. When another refresh is running the previous snapshot is returned.
func (m *Monitor) Poll(ctx context.Context) (detection.Snapshot, error) {
	start := time.Now()
	err := m.session.Refresh(ctx)
	metrics.ObserveRefresh(err, time.Since(start))
	if err != nil && !errors.Is(err, registry.ErrRefreshInProgress) {
		return detection.Snapshot{}, err
	}
	return m.Latest(), nil
}

// Simulate runs one refresh and reports how many entries its snapshot
// corroborated. It returns registry.ErrRefreshInProgress instead of waiting
// when another refresh is running.
func (m *Monitor) Simulate(ctx context.Context) (detection.Snapshot, int, error) {
	start := time.Now()
	u, err := m.session.RefreshUpdate(ctx)
	metrics.ObserveRefresh(err, time.Since(start))
	if err != nil {
		return detection.Snapshot{}, 0, err
	}
	created := 0
	for _, d := range u.Defects {
		if d.LastDetectedAt != nil && d.LastDetectedAt.Equal(u.At) {
			created++
		}
	}
	return u.Snapshot.Normalize(), created, nil
}

// Latest returns the most recently reconciled snapshot.
func (m *Monitor) Latest() detection.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

// Fingerprint returns the fingerprint of Latest.
func (m *Monitor) Fingerprint() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fingerprint
}

// Defects returns up to limit registry entries in display order.
func (m *Monitor) Defects(limit int) []registry.Defect {
	ds := m.session.Defects()
	if limit > 0 && len(ds) > limit {
		ds = ds[:limit]
	}
	return ds
}

// Get returns one entry by id.
func (m *Monitor) Get(id string) (registry.Defect, bool) {
	return m.session.Get(id)
}

// StatusChange identifies an entry by id, or by location and type when the
// id was allocated by another session.
type StatusChange struct {
	ID         string
	Location   string
	DefectType risk.DefectType
	Status     registry.Status
}

// UpdateStatus applies an operator status change and returns the entry.
func (m *Monitor) UpdateStatus(ctx context.Context, ch StatusChange) (registry.Defect, error) {
	id, ok := m.resolve(ch)
	if !ok {
		return registry.Defect{}, fmt.Errorf("%w: %s", registry.ErrDefectNotFound, ch.ID)
	}
	if err := m.session.UpdateStatus(ctx, id, ch.Status); err != nil {
		return registry.Defect{}, err
	}
	d, _ := m.session.Get(id)
	return d, nil
}

func (m *Monitor) resolve(ch StatusChange) (string, bool) {
	if _, ok := m.session.Get(ch.ID); ok {
		return ch.ID, true
	}
	if ch.Location == "" || ch.DefectType == "" {
		return "", false
	}
	for _, d := range m.session.Defects() {
		if d.Location == ch.Location && d.DefectType == ch.DefectType {
			return d.ID, true
		}
	}
	return "", false
}

// LastError returns the error of the last failed refresh.
func (m *Monitor) LastError() error {
	return m.session.LastError()
}

// Run refreshes every interval until ctx ends or Close is called.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) error {
	m.log.Info("📡 Defect monitor started", "interval", interval)
	err := m.session.Run(ctx, interval)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close stops Run.
func (m *Monitor) Close() {
	m.session.Close()
}
