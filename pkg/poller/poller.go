// Package poller watches backend tables for created or changed records and publishes them as events.
package poller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/query"
	"github.com/Ramsey-B/fern/pkg/records"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var (
	// ErrPollerAlreadyRunning is returned when trying to start an already running poller
	ErrPollerAlreadyRunning = errors.New("poller already running")

	// ErrLockNotAcquired is returned by a Locker when another instance holds the lock
	ErrLockNotAcquired = errors.New("poll lock not acquired")
)

const (
	// DefaultInterval is the default interval between poll cycles
	DefaultInterval = 30 * time.Second

	// DefaultLockTTL is the default TTL of the per-table poll lock
	DefaultLockTTL = 60 * time.Second

	// DefaultBatchLimit is the most records read from one table per cycle
	DefaultBatchLimit = 500

	// UpdatedOnField is the backend column the watermark tracks
	UpdatedOnField = "sys_updated_on"

	lockKeyPrefix = "poller:"
)

// Source lists records of a table
type Source interface {
	CompileQuery(ctx context.Context, table string, groups []query.Group) (string, error)
	List(ctx context.Context, table, encodedQuery string, opts records.FindOptions) ([]models.Record, error)
}

// Publisher publishes record events
type Publisher interface {
	Publish(ctx context.Context, events []kafka.RecordEvent) error
}

// WatermarkStore remembers the encoded Watermark of each table
type WatermarkStore interface {
	Get(ctx context.Context, table string) (string, error)
	Set(ctx context.Context, table, watermark string) error
}

// Locker keeps two instances from polling the same table at once.
// TryLock returns ErrLockNotAcquired when the lock is held elsewhere.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context), err error)
}

// Watermark is the last published record of a table in (sys_updated_on, sys_id) order.
// The sys_id breaks ties between records updated in the same second, which a batch
// limit can split across cycles.
type Watermark struct {
	UpdatedOn string
	SysID     string
}

const watermarkSeparator = "|"

// ParseWatermark decodes a stored watermark. A bare timestamp has no tie-breaker.
func ParseWatermark(stored string) Watermark {
	updatedOn, sysID, _ := strings.Cut(stored, watermarkSeparator)
	return Watermark{UpdatedOn: updatedOn, SysID: sysID}
}

func (w Watermark) String() string {
	if w.SysID == "" {
		return w.UpdatedOn
	}
	return w.UpdatedOn + watermarkSeparator + w.SysID
}

// Before reports whether w sorts before other. Backend timestamps are
// "YYYY-MM-DD HH:MM:SS", so string order is time order.
func (w Watermark) Before(other Watermark) bool {
	if w.UpdatedOn != other.UpdatedOn {
		return w.UpdatedOn < other.UpdatedOn
	}
	return w.SysID < other.SysID
}

// TableConfig is one polled table
type TableConfig struct {
	Name string
	// Query narrows the polled records; the watermark clause is added to every group
	Query []query.Group
	// Fields limits the returned columns; sys_id and sys_updated_on are always added
	Fields []string
}

// Config holds configuration for the poller
type Config struct {
	Interval   time.Duration
	LockTTL    time.Duration
	BatchLimit int
	Tables     []TableConfig
}

// Poller periodically reads changed records and publishes them
type Poller struct {
	source     Source
	publisher  Publisher
	watermarks WatermarkStore
	locker     Locker
	config     Config
	logger     ectologger.Logger
	now        func() time.Time

	stopCh   chan struct{}
	stoppedC chan struct{}
	running  bool
	mu       sync.RWMutex
}

// NewPoller creates a poller. A nil watermark store or locker is replaced by an
// in-memory one, which only coordinates within this process.
func NewPoller(source Source, publisher Publisher, watermarks WatermarkStore, locker Locker, config Config, logger ectologger.Logger) *Poller {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultLockTTL
	}
	if config.BatchLimit <= 0 {
		config.BatchLimit = DefaultBatchLimit
	}
	if watermarks == nil {
		watermarks = NewMemoryWatermarks()
	}
	if locker == nil {
		locker = NewMemoryLocker()
	}

	return &Poller{
		source:     source,
		publisher:  publisher,
		watermarks: watermarks,
		locker:     locker,
		config:     config,
		logger:     logger,
		now:        time.Now,
	}
}

// Start starts the poll loop
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrPollerAlreadyRunning
	}
	p.running = true
	stopCh := make(chan struct{})
	stoppedC := make(chan struct{})
	p.stopCh, p.stoppedC = stopCh, stoppedC
	p.mu.Unlock()

	p.logger.WithContext(ctx).Infof("Starting poller: interval=%s tables=%d batch_limit=%d",
		p.config.Interval, len(p.config.Tables), p.config.BatchLimit)

	go p.pollLoop(ctx, stopCh, stoppedC)

	return nil
}

// Stop stops the poller and waits for the running cycle to finish
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	stopCh, stoppedC := p.stopCh, p.stoppedC
	p.mu.Unlock()

	p.logger.WithContext(ctx).Info("Stopping poller...")

	close(stopCh)

	select {
	case <-stoppedC:
		p.logger.WithContext(ctx).Info("Poller stopped gracefully")
	case <-ctx.Done():
		p.logger.WithContext(ctx).Warn("Poller shutdown timed out")
		return ctx.Err()
	}

	return nil
}

// IsRunning returns whether the poller is running
func (p *Poller) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

func (p *Poller) pollLoop(ctx context.Context, stopCh <-chan struct{}, stoppedC chan<- struct{}) {
	defer close(stoppedC)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.RunCycle(ctx)

	for {
		select {
		case <-stopCh:
			p.logger.WithContext(ctx).Debug("Poller loop stopping")
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.RunCycle(ctx)
		}
	}
}

// RunCycle polls every configured table once
func (p *Poller) RunCycle(ctx context.Context) {
	ctx, span := tracing.StartSpan(ctx, "Poller.RunCycle")
	defer span.End()

	start := time.Now()
	published := 0
	skipped := 0
	for _, tbl := range p.config.Tables {
		count, err := p.PollTable(ctx, tbl)
		if errors.Is(err, ErrLockNotAcquired) {
			skipped++
			continue
		}
		if err != nil {
			p.logger.WithContext(ctx).WithError(err).Warnf("Failed to poll table %s", tbl.Name)
			continue
		}
		published += count
	}

	p.logger.WithContext(ctx).Debugf("Poll cycle completed: published=%d skipped=%d duration=%s",
		published, skipped, time.Since(start))
}

// PollTable publishes the records of one table that sort after its watermark and moves
// the watermark to the last of them. It returns the number of events published. The
// watermark only moves after a successful publish, so delivery is at least once.
func (p *Poller) PollTable(ctx context.Context, tbl TableConfig) (count int, err error) {
	ctx, span := tracing.StartSpan(ctx, "Poller.PollTable", attribute.String("table", tbl.Name))
	defer func() { tracing.EndSpan(span, err) }()

	release, err := p.locker.TryLock(ctx, lockKeyPrefix+tbl.Name, p.config.LockTTL)
	if err != nil {
		return 0, err
	}
	defer release(ctx)

	defer func() {
		metrics.RecordPoll(tbl.Name, count, err)
	}()

	stored, err := p.watermarks.Get(ctx, tbl.Name)
	if err != nil {
		return 0, fmt.Errorf("failed to read watermark: %w", err)
	}
	watermark := ParseWatermark(stored)

	encoded, err := p.pollQuery(ctx, tbl, watermark)
	if err != nil {
		return 0, err
	}

	rows, err := p.source.List(ctx, tbl.Name, encoded, records.FindOptions{
		Fields: pollFields(tbl.Fields),
		Limit:  p.config.BatchLimit,
	})
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	observedAt := p.now().UTC()
	newest := watermark
	events := make([]kafka.RecordEvent, 0, len(rows))
	for _, row := range rows {
		updatedOn := row.GetString(UpdatedOnField)
		if seen := (Watermark{UpdatedOn: updatedOn, SysID: row.SysID()}); newest.Before(seen) {
			newest = seen
		}
		events = append(events, kafka.RecordEvent{
			EventID:    uuid.New().String(),
			Table:      tbl.Name,
			SysID:      row.SysID(),
			UpdatedOn:  updatedOn,
			Record:     row,
			ObservedAt: observedAt,
		})
	}

	if err = p.publisher.Publish(ctx, events); err != nil {
		return 0, fmt.Errorf("failed to publish %d events: %w", len(events), err)
	}

	if newest != watermark {
		if err = p.watermarks.Set(ctx, tbl.Name, newest.String()); err != nil {
			return 0, fmt.Errorf("failed to advance watermark: %w", err)
		}
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"table":     tbl.Name,
		"published": len(events),
		"watermark": newest.String(),
	}).Info("Published changed records")

	return len(events), nil
}

// pollQuery selects records after the watermark in (sys_updated_on, sys_id) order:
// updated later, or updated in the same second with a greater sys_id. Both branches
// carry the table's base query.
func (p *Poller) pollQuery(ctx context.Context, tbl TableConfig, watermark Watermark) (string, error) {
	groups := tbl.Query
	if watermark.UpdatedOn != "" {
		groups = query.AndAll(tbl.Query, query.Is(UpdatedOnField, query.OpGreater, watermark.UpdatedOn))
		if watermark.SysID != "" {
			groups = append(groups, query.AndAll(tbl.Query,
				query.Equals(UpdatedOnField, watermark.UpdatedOn),
				query.Is(models.SysIDField, query.OpGreater, watermark.SysID),
			)...)
		}
	}

	encoded := ""
	if len(groups) > 0 {
		var err error
		encoded, err = p.source.CompileQuery(ctx, tbl.Name, groups)
		if err != nil {
			return "", err
		}
	}

	return query.OrderBy(query.OrderBy(encoded, UpdatedOnField, false), models.SysIDField, false), nil
}

func pollFields(fields []string) []string {
	if len(fields) == 0 {
		return nil
	}

	result := append([]string{}, fields...)
	for _, required := range []string{models.SysIDField, UpdatedOnField} {
		found := false
		for _, f := range fields {
			if f == required {
				found = true
				break
			}
		}
		if !found {
			result = append(result, required)
		}
	}
	return result
}
