// Package history keeps a DuckDB journal of simulation events.
package history

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fas-floormap/backend/internal/models"
	"github.com/marcboeker/go-duckdb"
)

// ErrClosed is returned by operations on a closed journal.
var ErrClosed = errors.New("journal is closed")

// Options configures a Journal.
type Options struct {
	Path          string // empty for an in-memory database
	Threads       int
	MemoryLimit   string
	BatchSize     int
	BufferSize    int
	FlushInterval time.Duration
}

// DefaultOptions returns an in-memory journal configuration.
func DefaultOptions() Options {
	return Options{
		Threads:       2,
		MemoryLimit:   "256MB",
		BatchSize:     1000,
		BufferSize:    4096,
		FlushInterval: time.Second,
	}
}

// Filter narrows a Query. Zero fields match everything.
type Filter struct {
	SessionID string
	Kind      models.EventKind
	Station   models.StationID
	Since     time.Time
	Limit     int
}

// Stats reports journal throughput.
type Stats struct {
	Written int64 `json:"written"`
	Dropped int64 `json:"dropped"`
	Pending int   `json:"pending"`
}

// Journal records simulation events asynchronously. Record never blocks:
// when the buffer is full the event is counted as dropped.
type Journal struct {
	db   *sql.DB
	path string
	opts Options

	events  chan models.SimEvent
	flushes chan chan error
	done    chan struct{}

	mu     sync.RWMutex
	closed bool

	written atomic.Int64
	dropped atomic.Int64
}

// Open creates the journal database and starts its writer.
func Open(opts Options) (*Journal, error) {
	def := DefaultOptions()
	if opts.Threads <= 0 {
		opts.Threads = def.Threads
	}
	if opts.MemoryLimit == "" {
		opts.MemoryLimit = def.MemoryLimit
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = def.BufferSize
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = def.FlushInterval
	}

	where := opts.Path
	if where == "" {
		where = "memory"
	}
	fmt.Printf("[History] Opening event journal (%s)\n", where)

	connector, err := duckdb.NewConnector(opts.Path, func(execer driver.ExecerContext) error {
		pragmas := []string{
			fmt.Sprintf("PRAGMA memory_limit='%s'", opts.MemoryLimit),
			fmt.Sprintf("PRAGMA threads=%d", opts.Threads),
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				fmt.Printf("[History] Pragma warning: %v\n", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sim_events (
			ts         BIGINT NOT NULL,
			tick       BIGINT NOT NULL,
			session_id VARCHAR NOT NULL,
			kind       VARCHAR NOT NULL,
			cart       INTEGER NOT NULL,
			from_state VARCHAR,
			to_state   VARCHAR,
			station    VARCHAR,
			delta      INTEGER NOT NULL,
			stock      INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	j := &Journal{
		db:      db,
		path:    opts.Path,
		opts:    opts,
		events:  make(chan models.SimEvent, opts.BufferSize),
		flushes: make(chan chan error),
		done:    make(chan struct{}),
	}
	go j.run()
	return j, nil
}

// Record queues an event for writing.
func (j *Journal) Record(ev models.SimEvent) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		j.dropped.Add(1)
		return
	}
	select {
	case j.events <- ev:
	default:
		j.dropped.Add(1)
	}
}

// Flush writes every event queued so far.
func (j *Journal) Flush(ctx context.Context) error {
	reply := make(chan error, 1)
	select {
	case j.flushes <- reply:
	case <-j.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns write and drop counters.
func (j *Journal) Stats() Stats {
	return Stats{
		Written: j.written.Load(),
		Dropped: j.dropped.Load(),
		Pending: len(j.events),
	}
}

// Close flushes pending events and closes the database.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	close(j.events)
	j.mu.Unlock()

	<-j.done
	fmt.Printf("[History] Closed journal: %d written, %d dropped\n", j.written.Load(), j.dropped.Load())
	return j.db.Close()
}

func (j *Journal) run() {
	defer close(j.done)

	ticker := time.NewTicker(j.opts.FlushInterval)
	defer ticker.Stop()

	batch := make([]models.SimEvent, 0, j.opts.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := j.writeBatch(batch)
		if err != nil {
			fmt.Printf("[History] ERROR writing %d events: %v\n", len(batch), err)
			j.dropped.Add(int64(len(batch)))
		} else {
			j.written.Add(int64(len(batch)))
		}
		batch = batch[:0]
		return err
	}

	for {
		select {
		case ev, ok := <-j.events:
			if !ok {
				flush()
				return
			}
			batch = append(batch, ev)
			if len(batch) >= j.opts.BatchSize {
				flush()
			}
		case reply := <-j.flushes:
			// drain what was queued before the request
			for n := len(j.events); n > 0; n-- {
				ev, ok := <-j.events
				if !ok {
					break
				}
				batch = append(batch, ev)
			}
			reply <- flush()
		case <-ticker.C:
			flush()
		}
	}
}

// writeBatch appends events with the DuckDB Appender on a single connection.
func (j *Journal) writeBatch(batch []models.SimEvent) error {
	conn, err := j.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", "sim_events")
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		for i, ev := range batch {
			err := appender.AppendRow(
				ev.Timestamp.UnixMilli(),
				ev.Tick,
				ev.SessionID,
				string(ev.Kind),
				int32(ev.Cart),
				string(ev.From),
				string(ev.To),
				string(ev.Station),
				int32(ev.Delta),
				int32(ev.Stock),
			)
			if err != nil {
				return fmt.Errorf("failed to append row %d: %w", i, err)
			}
		}
		return appender.Flush()
	})
	if err != nil {
		return fmt.Errorf("appender error: %w", err)
	}
	return nil
}

// Query returns matching events, newest first.
func (j *Journal) Query(ctx context.Context, f Filter) ([]models.SimEvent, error) {
	where, args := buildWhere(f)
	limit := f.Limit
	if limit <= 0 || limit > 10000 {
		limit = 1000
	}

	query := `SELECT ts, tick, session_id, kind, cart, from_state, to_state, station, delta, stock
		FROM sim_events` + where + ` ORDER BY ts DESC, tick DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	out := make([]models.SimEvent, 0)
	for rows.Next() {
		var (
			ev                 models.SimEvent
			ts                 int64
			kind               string
			from, to, station  sql.NullString
			cart, delta, stock int32
		)
		if err := rows.Scan(&ts, &ev.Tick, &ev.SessionID, &kind, &cart, &from, &to, &station, &delta, &stock); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Timestamp = time.UnixMilli(ts).UTC()
		ev.Kind = models.EventKind(kind)
		ev.Cart = int(cart)
		ev.From = models.CartState(from.String)
		ev.To = models.CartState(to.String)
		ev.Station = models.StationID(station.String)
		ev.Delta = int(delta)
		ev.Stock = int(stock)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Counts returns the number of stored events per kind, optionally for one session.
func (j *Journal) Counts(ctx context.Context, sessionID string) (map[models.EventKind]int, error) {
	where, args := buildWhere(Filter{SessionID: sessionID})
	rows, err := j.db.QueryContext(ctx, "SELECT kind, COUNT(*) FROM sim_events"+where+" GROUP BY kind", args...)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.EventKind]int)
	for rows.Next() {
		var (
			kind string
			n    int64
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[models.EventKind(kind)] = int(n)
	}
	return counts, rows.Err()
}

func buildWhere(f Filter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if f.SessionID != "" {
		conds = append(conds, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.Station != "" {
		conds = append(conds, "station = ?")
		args = append(args, string(f.Station))
	}
	if !f.Since.IsZero() {
		conds = append(conds, "ts >= ?")
		args = append(args, f.Since.UnixMilli())
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
