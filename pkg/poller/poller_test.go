package poller

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/query"
	"github.com/Ramsey-B/fern/pkg/records"
)

var _ Source = (*records.Service)(nil)

type fakeSource struct {
	mu      sync.Mutex
	rows    map[string][]models.Record
	queries []string
	options []records.FindOptions
	listErr error
}

func (f *fakeSource) CompileQuery(_ context.Context, _ string, groups []query.Group) (string, error) {
	return query.Compile(groups)
}

// List evaluates the = and > clauses of the encoded query, sorts by
// (sys_updated_on, sys_id) and applies the limit
func (f *fakeSource) List(_ context.Context, table, encoded string, opts records.FindOptions) ([]models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queries = append(f.queries, encoded)
	f.options = append(f.options, opts)
	if f.listErr != nil {
		return nil, f.listErr
	}

	result := []models.Record{}
	for _, row := range f.rows[table] {
		if matchesEncoded(row, encoded) {
			result = append(result, row)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return watermarkOf(result[i]).Before(watermarkOf(result[j]))
	})
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, nil
}

func watermarkOf(row models.Record) Watermark {
	return Watermark{UpdatedOn: row.GetString(UpdatedOnField), SysID: row.SysID()}
}

func matchesEncoded(row models.Record, encoded string) bool {
	for _, group := range strings.Split(encoded, "^NQ") {
		if matchesGroup(row, group) {
			return true
		}
	}
	return false
}

func matchesGroup(row models.Record, group string) bool {
	for _, clause := range strings.Split(group, "^") {
		if clause == "" || strings.HasPrefix(clause, "ORDERBY") {
			continue
		}
		if field, value, ok := strings.Cut(clause, ">"); ok {
			if row.GetString(field) <= value {
				return false
			}
			continue
		}
		if field, value, ok := strings.Cut(clause, "="); ok && row.GetString(field) != value {
			return false
		}
	}
	return true
}

type fakePublisher struct {
	mu     sync.Mutex
	events []kafka.RecordEvent
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, events []kafka.RecordEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, events...)
	return nil
}

func (f *fakePublisher) published() []kafka.RecordEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]kafka.RecordEvent{}, f.events...)
}

func incident(sysID, updatedOn string) models.Record {
	return models.Record{
		"sys_id":         models.String(sysID),
		"sys_updated_on": models.String(updatedOn),
		"state":          models.String("new"),
	}
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestPollTable_PublishesAndAdvancesWatermark(t *testing.T) {
	source := &fakeSource{rows: map[string][]models.Record{
		"incident": {
			incident("a", "2025-01-15 10:00:00"),
			incident("b", "2025-01-15 10:05:00"),
		},
	}}
	publisher := &fakePublisher{}
	watermarks := NewMemoryWatermarks()
	p := NewPoller(source, publisher, watermarks, nil, Config{}, testLogger())
	observed := time.Date(2025, 1, 15, 11, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return observed }

	ctx := context.Background()
	tbl := TableConfig{Name: "incident"}

	count, err := p.PollTable(ctx, tbl)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, "ORDERBYsys_updated_on^ORDERBYsys_id", source.queries[0])
	assert.Equal(t, DefaultBatchLimit, source.options[0].Limit)

	events := publisher.published()
	require.Len(t, events, 2)
	assert.Equal(t, "incident", events[0].Table)
	assert.Equal(t, "a", events[0].SysID)
	assert.Equal(t, "2025-01-15 10:00:00", events[0].UpdatedOn)
	assert.Equal(t, observed, events[0].ObservedAt)
	assert.NotEmpty(t, events[0].EventID)
	assert.NotEqual(t, events[0].EventID, events[1].EventID)

	wm, err := watermarks.Get(ctx, "incident")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-15 10:05:00|b", wm)

	// nothing new
	count, err = p.PollTable(ctx, tbl)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t,
		"sys_updated_on>2025-01-15 10:05:00^NQsys_updated_on=2025-01-15 10:05:00^sys_id>b^ORDERBYsys_updated_on^ORDERBYsys_id",
		source.queries[1])
	assert.Len(t, publisher.published(), 2)

	source.rows["incident"] = append(source.rows["incident"], incident("c", "2025-01-15 10:10:00"))
	count, err = p.PollTable(ctx, tbl)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, "c", publisher.published()[2].SysID)
}

func TestPollTable_BaseQueryGetsWatermarkInEveryGroup(t *testing.T) {
	source := &fakeSource{rows: map[string][]models.Record{}}
	watermarks := NewMemoryWatermarks()
	require.NoError(t, watermarks.Set(context.Background(), "incident", "2025-01-15 10:00:00|abc"))
	p := NewPoller(source, &fakePublisher{}, watermarks, nil, Config{}, testLogger())

	_, err := p.PollTable(context.Background(), TableConfig{
		Name: "incident",
		Query: []query.Group{
			{{Field: "priority", Expr: "= 1"}},
			{{Field: "priority", Expr: "= 2"}},
		},
		Fields: []string{"number", "sys_id"},
	})
	require.NoError(t, err)

	assert.Equal(t,
		"priority=1^sys_updated_on>2025-01-15 10:00:00"+
			"^NQpriority=2^sys_updated_on>2025-01-15 10:00:00"+
			"^NQpriority=1^sys_updated_on=2025-01-15 10:00:00^sys_id>abc"+
			"^NQpriority=2^sys_updated_on=2025-01-15 10:00:00^sys_id>abc"+
			"^ORDERBYsys_updated_on^ORDERBYsys_id",
		source.queries[0])
	assert.Equal(t, []string{"number", "sys_id", "sys_updated_on"}, source.options[0].Fields)
}

func TestPollTable_BatchLimitSplitsSameSecondUpdates(t *testing.T) {
	source := &fakeSource{rows: map[string][]models.Record{
		"incident": {
			incident("c", "2024-01-01 10:00:00"),
			incident("a", "2024-01-01 10:00:00"),
			incident("b", "2024-01-01 10:00:00"),
			incident("d", "2024-01-01 10:00:01"),
		},
	}}
	publisher := &fakePublisher{}
	watermarks := NewMemoryWatermarks()
	p := NewPoller(source, publisher, watermarks, nil, Config{
		BatchLimit: 2,
		Tables:     []TableConfig{{Name: "incident"}},
	}, testLogger())

	ctx := context.Background()
	for range 4 {
		p.RunCycle(ctx)
	}

	sysIDs := []string{}
	for _, evt := range publisher.published() {
		sysIDs = append(sysIDs, evt.SysID)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, sysIDs)

	wm, err := watermarks.Get(ctx, "incident")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01 10:00:01|d", wm)
}

func TestPollTable_BareTimestampWatermark(t *testing.T) {
	source := &fakeSource{rows: map[string][]models.Record{
		"incident": {
			incident("a", "2025-01-15 10:00:00"),
			incident("b", "2025-01-15 10:00:01"),
		},
	}}
	publisher := &fakePublisher{}
	watermarks := NewMemoryWatermarks()
	require.NoError(t, watermarks.Set(context.Background(), "incident", "2025-01-15 10:00:00"))
	p := NewPoller(source, publisher, watermarks, nil, Config{}, testLogger())

	count, err := p.PollTable(context.Background(), TableConfig{Name: "incident"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, "sys_updated_on>2025-01-15 10:00:00^ORDERBYsys_updated_on^ORDERBYsys_id", source.queries[0])
	assert.Equal(t, "b", publisher.published()[0].SysID)
}

func TestWatermark(t *testing.T) {
	assert.Equal(t, Watermark{UpdatedOn: "2025-01-15 10:00:00", SysID: "abc"}, ParseWatermark("2025-01-15 10:00:00|abc"))
	assert.Equal(t, Watermark{UpdatedOn: "2025-01-15 10:00:00"}, ParseWatermark("2025-01-15 10:00:00"))
	assert.Equal(t, Watermark{}, ParseWatermark(""))
	assert.Equal(t, "2025-01-15 10:00:00|abc", Watermark{UpdatedOn: "2025-01-15 10:00:00", SysID: "abc"}.String())

	earlier := Watermark{UpdatedOn: "2025-01-15 10:00:00", SysID: "b"}
	assert.True(t, earlier.Before(Watermark{UpdatedOn: "2025-01-15 10:00:00", SysID: "c"}))
	assert.True(t, earlier.Before(Watermark{UpdatedOn: "2025-01-15 10:00:01", SysID: "a"}))
	assert.False(t, earlier.Before(earlier))
	assert.True(t, Watermark{}.Before(earlier))
}

func TestPollTable_PublishFailureKeepsWatermark(t *testing.T) {
	source := &fakeSource{rows: map[string][]models.Record{
		"incident": {incident("a", "2025-01-15 10:00:00")},
	}}
	publisher := &fakePublisher{err: errors.New("broker down")}
	watermarks := NewMemoryWatermarks()
	p := NewPoller(source, publisher, watermarks, nil, Config{}, testLogger())

	_, err := p.PollTable(context.Background(), TableConfig{Name: "incident"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")

	wm, err := watermarks.Get(context.Background(), "incident")
	require.NoError(t, err)
	assert.Empty(t, wm)
}

func TestPollTable_ListError(t *testing.T) {
	source := &fakeSource{listErr: errors.New("backend down")}
	p := NewPoller(source, &fakePublisher{}, nil, nil, Config{}, testLogger())

	_, err := p.PollTable(context.Background(), TableConfig{Name: "incident"})
	assert.EqualError(t, err, "backend down")
}

func TestPollTable_InvalidBaseQuery(t *testing.T) {
	source := &fakeSource{}
	p := NewPoller(source, &fakePublisher{}, nil, nil, Config{}, testLogger())

	_, err := p.PollTable(context.Background(), TableConfig{
		Name:  "incident",
		Query: []query.Group{{{Field: "state", Expr: "~ 1"}}},
	})
	require.Error(t, err)
	assert.Empty(t, source.queries)
}

func TestPollTable_LockHeldElsewhere(t *testing.T) {
	locker := NewMemoryLocker()
	_, err := locker.TryLock(context.Background(), lockKeyPrefix+"incident", time.Minute)
	require.NoError(t, err)

	source := &fakeSource{}
	p := NewPoller(source, &fakePublisher{}, nil, locker, Config{}, testLogger())

	_, err = p.PollTable(context.Background(), TableConfig{Name: "incident"})
	assert.ErrorIs(t, err, ErrLockNotAcquired)
	assert.Empty(t, source.queries)
}

func TestMemoryLocker(t *testing.T) {
	locker := NewMemoryLocker()
	now := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	locker.clock = func() time.Time { return now }
	ctx := context.Background()

	release, err := locker.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)

	_, err = locker.TryLock(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	release(ctx)
	release2, err := locker.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)

	// expired locks can be retaken, and the stale release does not drop the new holder
	now = now.Add(2 * time.Minute)
	_, err = locker.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	release2(ctx)
	_, err = locker.TryLock(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, ErrLockNotAcquired)
}

func TestStartStop(t *testing.T) {
	source := &fakeSource{rows: map[string][]models.Record{
		"incident": {incident("a", "2025-01-15 10:00:00")},
	}}
	publisher := &fakePublisher{}
	p := NewPoller(source, publisher, nil, nil, Config{
		Interval: time.Hour,
		Tables:   []TableConfig{{Name: "incident"}},
	}, testLogger())

	ctx := context.Background()
	require.NoError(t, p.Start(ctx))
	assert.True(t, p.IsRunning())
	assert.ErrorIs(t, p.Start(ctx), ErrPollerAlreadyRunning)

	// the first cycle runs immediately
	require.Eventually(t, func() bool { return len(publisher.published()) == 1 }, time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, p.Stop(stopCtx))
	assert.False(t, p.IsRunning())
	assert.NoError(t, p.Stop(stopCtx))
}

func TestStartStop_Restart(t *testing.T) {
	p := NewPoller(&fakeSource{}, &fakePublisher{}, nil, nil, Config{Interval: time.Hour}, testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for range 2 {
		require.NoError(t, p.Start(ctx))
		require.NoError(t, p.Stop(ctx))
		assert.False(t, p.IsRunning())
	}
}
