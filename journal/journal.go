// Package journal implements the event journal: a buffered, periodically
// flushed, append-only record of safety-relevant transitions backed by
// SQLite through database/sql and github.com/mattn/go-sqlite3. A single
// mutex-guarded handle is shared by every caller.
package journal

import (
	"context"
	"database/sql"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"turretcore/model"
	"turretcore/turreterr"
)

// BufferCap is the maximum number of buffered records before an insert
// forces a flush.
const BufferCap = 255

// FlushInterval is the maximum time a record may sit unflushed.
const FlushInterval = 30 * time.Second

const schema = `CREATE TABLE IF NOT EXISTS Events (
	TIME INTEGER NOT NULL,
	EVENT INTEGER NOT NULL,
	CLASS TEXT NOT NULL,
	DESCRIPTION TEXT NOT NULL
)`

// Journal is the process-wide Event Journal handle.
type Journal struct {
	log zerolog.Logger
	db  *sql.DB

	mu        sync.Mutex
	buffer    []model.EventRecord
	lastFlush time.Time

	done chan struct{}
	wg   sync.WaitGroup
}

// Open opens (creating if necessary) the SQLite file at path and starts
// the periodic flush worker.
func Open(path string, log zerolog.Logger) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, turreterr.NewPersistence("open journal database", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, turreterr.NewPersistence("create Events table", err)
	}
	j := &Journal{
		log:       log.With().Str("component", "journal").Logger(),
		db:        db,
		lastFlush: time.Now(),
		done:      make(chan struct{}),
	}
	j.wg.Add(1)
	go j.flushLoop()
	return j, nil
}

func (j *Journal) flushLoop() {
	defer j.wg.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.mu.Lock()
			due := len(j.buffer) > 0 && time.Since(j.lastFlush) >= FlushInterval
			j.mu.Unlock()
			if due {
				if err := j.Flush(); err != nil {
					j.log.Error().Err(err).Msg("timed flush failed")
				}
			}
		}
	}
}

// InsertNow appends a record stamped with the current time.
func (j *Journal) InsertNow(kind model.EventKind, source, class, description string) error {
	return j.Insert(model.EventRecord{
		Time:        time.Now(),
		Kind:        kind,
		Source:      source,
		Class:       class,
		Description: description,
	})
}

// Insert appends the given record to the buffer, forcing a flush if the
// buffer has reached BufferCap.
func (j *Journal) Insert(r model.EventRecord) error {
	j.mu.Lock()
	j.buffer = append(j.buffer, r)
	full := len(j.buffer) >= BufferCap
	j.mu.Unlock()
	if full {
		return j.Flush()
	}
	return nil
}

// Flush writes every buffered record to SQLite inside a single
// transaction. On failure the buffer is retained so a later flush can
// retry.
func (j *Journal) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.flushLocked()
}

func (j *Journal) flushLocked() error {
	if len(j.buffer) == 0 {
		j.lastFlush = time.Now()
		return nil
	}
	tx, err := j.db.BeginTx(context.Background(), nil)
	if err != nil {
		return turreterr.NewPersistence("begin flush transaction", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO Events(TIME, EVENT, CLASS, DESCRIPTION) VALUES (?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return turreterr.NewPersistence("prepare flush statement", err)
	}
	for _, r := range j.buffer {
		if _, err := stmt.Exec(r.Time.Unix(), int(r.Kind), r.Class, r.Description); err != nil {
			stmt.Close()
			tx.Rollback()
			return turreterr.NewPersistence("exec flush insert", err)
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		return turreterr.NewPersistence("commit flush transaction", err)
	}
	j.buffer = j.buffer[:0]
	j.lastFlush = time.Now()
	return nil
}

// ReadAll returns every record, ordered TIME DESC, flushing first for
// read-your-writes.
func (j *Journal) ReadAll() ([]model.EventRecord, error) {
	return j.query("SELECT TIME, EVENT, CLASS, DESCRIPTION FROM Events ORDER BY TIME DESC")
}

// ReadRange returns records with start <= time <= end, inclusive.
func (j *Journal) ReadRange(start, end time.Time) ([]model.EventRecord, error) {
	return j.query("SELECT TIME, EVENT, CLASS, DESCRIPTION FROM Events WHERE TIME >= ? AND TIME <= ? ORDER BY TIME DESC", start.Unix(), end.Unix())
}

// ReadAfter returns records with time > t.
func (j *Journal) ReadAfter(t time.Time) ([]model.EventRecord, error) {
	return j.query("SELECT TIME, EVENT, CLASS, DESCRIPTION FROM Events WHERE TIME > ? ORDER BY TIME DESC", t.Unix())
}

// ReadBefore returns records with time < t.
func (j *Journal) ReadBefore(t time.Time) ([]model.EventRecord, error) {
	return j.query("SELECT TIME, EVENT, CLASS, DESCRIPTION FROM Events WHERE TIME < ? ORDER BY TIME DESC", t.Unix())
}

func (j *Journal) query(q string, args ...any) ([]model.EventRecord, error) {
	if err := j.Flush(); err != nil {
		return nil, err
	}
	rows, err := j.db.Query(q, args...)
	if err != nil {
		return nil, turreterr.NewPersistence("query Events", err)
	}
	defer rows.Close()

	var out []model.EventRecord
	for rows.Next() {
		var (
			ts    int64
			kind  int
			class string
			desc  string
		)
		if err := rows.Scan(&ts, &kind, &class, &desc); err != nil {
			return nil, turreterr.NewPersistence("scan Events row", err)
		}
		out = append(out, model.EventRecord{
			Time:        time.Unix(ts, 0),
			Kind:        model.EventKind(kind),
			Class:       class,
			Description: desc,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, turreterr.NewPersistence("iterate Events rows", err)
	}
	return out, nil
}

// Close flushes any remaining buffered records, stops the flush worker
// and closes the database handle.
func (j *Journal) Close() error {
	close(j.done)
	j.wg.Wait()
	if err := j.Flush(); err != nil {
		j.log.Error().Err(err).Msg("final flush failed")
	}
	return j.db.Close()
}
