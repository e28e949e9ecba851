// Package queue implements the SequencingQueue shard (spec.md §4.1) and the
// shard router that fans logs out across them (§4.2). A shard is a
// single-writer actor over an embedded SQL store; callers serialize access
// with the mutex embedded here, matching the concurrency model in §5.
package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/datatrails/go-datatrails-sequencer/mmr"
)

// ErrQueueFull is returned by Enqueue when the shard is at MAX_PENDING.
var ErrQueueFull = errors.New("queue: shard is at capacity")

// Entry is one row pulled from the queue: the content hash plus up to four
// opaque extras carried alongside it to the ranger.
type Entry struct {
	ContentHash []byte
	Extra       [4][]byte
}

// LogGroup is the per-log batch returned from a pull.
type LogGroup struct {
	LogID   []byte
	SeqLo   uint64
	SeqHi   uint64
	Entries []Entry
}

// PullResult is the shard's response to a pull, matching spec.md §6's wire
// shape one level up from CBOR encoding.
type PullResult struct {
	Version     int
	LeaseExpiry int64
	LogGroups   []LogGroup
}

// Resolution is the result of resolveContent: where a content hash landed
// once sequenced.
type Resolution struct {
	LeafIndex   uint64
	MassifIndex uint32
}

// Stats is the shard's point-in-time health snapshot (§4.1 stats()).
type Stats struct {
	Pending            int64
	DeadLetters        int64
	OldestPendingAgeMs *int64
	ActivePollers      int
	PollerLimitReached bool
}

// Config is the subset of config.Queue a shard needs; duplicated here
// (rather than importing config directly) to keep the queue package
// testable without the config package's environment-variable plumbing.
type Config struct {
	MaxPending    int
	MaxPollers    int
	MaxAttempts   int
	PollerTimeout time.Duration
}

// Shard is one SequencingQueue shard: a single embedded SQL store plus the
// in-memory poller bookkeeping described in §4.1's pull algorithm.
type Shard struct {
	db  *sql.DB
	cfg Config
	now func() int64

	mu      sync.Mutex
	nextSeq uint64
	pollers map[string]int64
}

// NewShard opens (and migrates, per §4.1's schema migration rules) the
// shard's schema against db, and primes nextSeq from MAX(seq)+1.
func NewShard(ctx context.Context, db *sql.DB, cfg Config) (*Shard, error) {
	s := &Shard{db: db, cfg: cfg, now: nowMillis, pollers: map[string]int64{}}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("queue: ensureSchema: %w", err)
	}
	var maxSeq sql.NullInt64
	if err := db.QueryRowContext(ctx, "SELECT MAX(seq) FROM entries").Scan(&maxSeq); err != nil {
		return nil, fmt.Errorf("queue: reading max seq: %w", err)
	}
	s.nextSeq = uint64(maxSeq.Int64) + 1
	return s, nil
}

func nowMillis() int64 { return time.Now().UnixMilli() }

// ensureSchema creates the base tables if missing, then adds any columns
// introduced since, per spec.md §4.1: "create the base table if missing;
// inspect existing columns; ALTER TABLE ADD COLUMN any missing ones with
// DEFAULT NULL; then create indexes that depend on those columns."
func (s *Shard) ensureSchema(ctx context.Context) error {
	const createEntries = `
CREATE TABLE IF NOT EXISTS entries (
	seq          INTEGER PRIMARY KEY,
	logId        BLOB NOT NULL,
	contentHash  BLOB NOT NULL,
	extra0       BLOB,
	extra1       BLOB,
	extra2       BLOB,
	extra3       BLOB,
	visibleAfter INTEGER,
	attempts     INTEGER NOT NULL DEFAULT 0,
	enqueuedAt   INTEGER NOT NULL
)`
	const createDeadLetters = `
CREATE TABLE IF NOT EXISTS dead_letters (
	seq         INTEGER PRIMARY KEY,
	logId       BLOB NOT NULL,
	contentHash BLOB NOT NULL,
	reason      TEXT NOT NULL,
	deadAt      INTEGER NOT NULL
)`
	if _, err := s.db.ExecContext(ctx, createEntries); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, createDeadLetters); err != nil {
		return err
	}

	cols, err := s.tableColumns(ctx, "entries")
	if err != nil {
		return err
	}
	for _, add := range []struct{ name, ddl string }{
		{"leafIndex", "ALTER TABLE entries ADD COLUMN leafIndex INTEGER DEFAULT NULL"},
		{"massifIndex", "ALTER TABLE entries ADD COLUMN massifIndex INTEGER DEFAULT NULL"},
		{"ackedAt", "ALTER TABLE entries ADD COLUMN ackedAt INTEGER DEFAULT NULL"},
	} {
		if !cols[add.name] {
			if _, err := s.db.ExecContext(ctx, add.ddl); err != nil {
				return fmt.Errorf("adding column %s: %w", add.name, err)
			}
		}
	}

	for _, idx := range []string{
		"CREATE INDEX IF NOT EXISTS idx_entries_log_visible ON entries(logId, visibleAfter)",
		"CREATE INDEX IF NOT EXISTS idx_entries_visible ON entries(visibleAfter)",
		"CREATE INDEX IF NOT EXISTS idx_entries_attempts ON entries(attempts)",
		"CREATE INDEX IF NOT EXISTS idx_entries_content ON entries(contentHash)",
		"CREATE INDEX IF NOT EXISTS idx_entries_log_leaf ON entries(logId, leafIndex)",
	} {
		if _, err := s.db.ExecContext(ctx, idx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Shard) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cols := map[string]bool{}
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notnull    int
			dflt       sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// Enqueue admits a new entry (§4.1 enqueue).
func (s *Shard) Enqueue(ctx context.Context, logID, contentHash []byte, extras [4][]byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries WHERE leafIndex IS NULL").Scan(&pending); err != nil {
		return 0, fmt.Errorf("queue: counting pending: %w", err)
	}
	if pending >= int64(s.cfg.MaxPending) {
		return 0, ErrQueueFull
	}

	seq := s.nextSeq
	_, err := s.db.ExecContext(ctx, `
INSERT INTO entries (seq, logId, contentHash, extra0, extra1, extra2, extra3, visibleAfter, attempts, enqueuedAt)
VALUES (?, ?, ?, ?, ?, ?, ?, NULL, 0, ?)`,
		seq, logID, contentHash, nullable(extras[0]), nullable(extras[1]), nullable(extras[2]), nullable(extras[3]), s.now())
	if err != nil {
		return 0, fmt.Errorf("queue: inserting entry: %w", err)
	}
	s.nextSeq++
	return seq, nil
}

func nullable(b []byte) any {
	if b == nil {
		return nil
	}
	return b
}

// Pull implements §4.1 pull: poller bookkeeping, poison sweep, fair
// per-poller candidate assignment, then per-log lease extension.
func (s *Shard) Pull(ctx context.Context, pollerID string, batchSize int, visibilityMs int64) (PullResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	leaseExpiry := now + visibilityMs

	if err := s.evictStalePollers(now); err != nil {
		return PullResult{}, err
	}
	if _, known := s.pollers[pollerID]; !known && len(s.pollers) >= s.cfg.MaxPollers {
		return PullResult{Version: 1, LeaseExpiry: leaseExpiry}, nil
	}
	s.pollers[pollerID] = now

	if err := s.poisonSweep(ctx, now); err != nil {
		return PullResult{}, err
	}

	candidates, err := s.candidateLogs(ctx, now)
	if err != nil {
		return PullResult{}, err
	}

	active := s.activePollerIDs()
	assigned := assignLogs(candidates, active, pollerID)

	result := PullResult{Version: 1, LeaseExpiry: leaseExpiry}
	total := 0
	for _, logID := range assigned {
		if total >= batchSize {
			break
		}
		group, n, err := s.pullLog(ctx, logID, now, leaseExpiry, batchSize-total)
		if err != nil {
			return PullResult{}, err
		}
		if n == 0 {
			continue
		}
		result.LogGroups = append(result.LogGroups, group)
		total += n
	}
	return result, nil
}

func (s *Shard) evictStalePollers(now int64) error {
	cutoff := now - s.cfg.PollerTimeout.Milliseconds()
	for id, lastSeen := range s.pollers {
		if lastSeen < cutoff {
			delete(s.pollers, id)
		}
	}
	return nil
}

func (s *Shard) activePollerIDs() []string {
	ids := make([]string, 0, len(s.pollers))
	for id := range s.pollers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// assignLogs implements §4.1 step 5: assignee := P[djb2(logId) mod |P|],
// returning only the logs assigned to pollerID.
func assignLogs(candidates [][]byte, pollers []string, pollerID string) [][]byte {
	if len(pollers) == 0 {
		return nil
	}
	var mine [][]byte
	for _, logID := range candidates {
		idx := DJB2(logID) % uint32(len(pollers))
		if pollers[idx] == pollerID {
			mine = append(mine, logID)
		}
	}
	return mine
}

func (s *Shard) candidateLogs(ctx context.Context, now int64) ([][]byte, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT DISTINCT logId FROM entries
WHERE leafIndex IS NULL AND (visibleAfter IS NULL OR visibleAfter <= ?)`, now)
	if err != nil {
		return nil, fmt.Errorf("queue: candidate logs: %w", err)
	}
	defer rows.Close()
	var ids [][]byte
	for rows.Next() {
		var id []byte
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// poisonSweep moves rows at MAX_ATTEMPTS to dead_letters (§4.1 step 3).
func (s *Shard) poisonSweep(ctx context.Context, now int64) error {
	rows, err := s.db.QueryContext(ctx, `
SELECT seq, logId, contentHash FROM entries WHERE leafIndex IS NULL AND attempts >= ?`, s.cfg.MaxAttempts)
	if err != nil {
		return fmt.Errorf("queue: poison sweep select: %w", err)
	}
	type poisoned struct {
		seq         uint64
		logID, hash []byte
	}
	var dead []poisoned
	for rows.Next() {
		var p poisoned
		if err := rows.Scan(&p.seq, &p.logID, &p.hash); err != nil {
			rows.Close()
			return err
		}
		dead = append(dead, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	for _, p := range dead {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO dead_letters (seq, logId, contentHash, reason, deadAt) VALUES (?, ?, ?, ?, ?)",
			p.seq, p.logID, p.hash, "exceeded max attempts", now); err != nil {
			tx.Rollback()
			return fmt.Errorf("queue: dead-lettering seq %d: %w", p.seq, err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM entries WHERE seq = ?", p.seq); err != nil {
			tx.Rollback()
			return fmt.Errorf("queue: removing poisoned seq %d: %w", p.seq, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		logger.Sugar.Infof("queue: dead-lettered seq=%d logId=%x after %d attempts", p.seq, p.logID, s.cfg.MaxAttempts)
	}
	return nil
}

func (s *Shard) pullLog(ctx context.Context, logID []byte, now, leaseExpiry int64, want int) (LogGroup, int, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT seq, contentHash, extra0, extra1, extra2, extra3 FROM entries
WHERE logId = ? AND leafIndex IS NULL AND (visibleAfter IS NULL OR visibleAfter <= ?)
ORDER BY seq ASC LIMIT ?`, logID, now, want)
	if err != nil {
		return LogGroup{}, 0, fmt.Errorf("queue: pulling log: %w", err)
	}
	type row struct {
		seq                         uint64
		hash, e0, e1, e2, e3        []byte
	}
	var picked []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.seq, &r.hash, &r.e0, &r.e1, &r.e2, &r.e3); err != nil {
			rows.Close()
			return LogGroup{}, 0, err
		}
		picked = append(picked, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return LogGroup{}, 0, err
	}
	if len(picked) == 0 {
		return LogGroup{}, 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return LogGroup{}, 0, err
	}
	group := LogGroup{LogID: logID, SeqLo: picked[0].seq, SeqHi: picked[len(picked)-1].seq}
	for _, r := range picked {
		if _, err := tx.ExecContext(ctx,
			"UPDATE entries SET visibleAfter = ?, attempts = attempts + 1 WHERE seq = ?", leaseExpiry, r.seq); err != nil {
			tx.Rollback()
			return LogGroup{}, 0, fmt.Errorf("queue: extending lease for seq %d: %w", r.seq, err)
		}
		group.Entries = append(group.Entries, Entry{ContentHash: r.hash, Extra: [4][]byte{r.e0, r.e1, r.e2, r.e3}})
	}
	if err := tx.Commit(); err != nil {
		return LogGroup{}, 0, err
	}
	return group, len(picked), nil
}

// AckFirst implements §4.1 ackFirst: the return-path unification that
// folds sequencing results back into the queue row at ack time.
func (s *Shard) AckFirst(ctx context.Context, logID []byte, seqLo uint64, limit int, firstLeafIndex uint64, massifHeight uint8) (int, error) {
	if limit == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// spec.md's literal "leavesPerMassif := 1 << massifHeight" in §4.1 would
	// disagree with the massif layout's own leaf count (mmr.LeavesPerMassif,
	// (1<<massifHeight)/2) for the same massifHeight value threaded through
	// from registration and the receipt URL; using the layout's definition
	// keeps massifIndex consistent with what the massif reader computes.
	leavesPerMassif := mmr.LeavesPerMassif(massifHeight)
	now := s.now()

	rows, err := s.db.QueryContext(ctx, `
SELECT seq FROM entries WHERE logId = ? AND seq >= ? AND leafIndex IS NULL ORDER BY seq ASC LIMIT ?`,
		logID, seqLo, limit)
	if err != nil {
		return 0, fmt.Errorf("queue: ack select: %w", err)
	}
	var seqs []uint64
	for rows.Next() {
		var seq uint64
		if err := rows.Scan(&seq); err != nil {
			rows.Close()
			return 0, err
		}
		seqs = append(seqs, seq)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(seqs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	var maxLeafIndex uint64
	for i, seq := range seqs {
		leafIndex := firstLeafIndex + uint64(i)
		massifIndex := leafIndex / leavesPerMassif
		if leafIndex > maxLeafIndex || i == 0 {
			maxLeafIndex = leafIndex
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE entries SET leafIndex = ?, massifIndex = ?, visibleAfter = NULL, ackedAt = ? WHERE seq = ?`,
			leafIndex, massifIndex, now, seq); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("queue: acking seq %d: %w", seq, err)
		}
	}

	retentionFloor := int64(maxLeafIndex) - int64(2*leavesPerMassif)
	if retentionFloor >= 0 {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM entries WHERE logId = ? AND leafIndex IS NOT NULL AND leafIndex < ?",
			logID, retentionFloor); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("queue: ack cleanup: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(seqs), nil
}

// ResolveContent implements §4.1 resolveContent.
func (s *Shard) ResolveContent(ctx context.Context, contentHash []byte) (*Resolution, error) {
	var leafIndex uint64
	var massifIndex uint32
	err := s.db.QueryRowContext(ctx,
		"SELECT leafIndex, massifIndex FROM entries WHERE contentHash = ? AND leafIndex IS NOT NULL LIMIT 1",
		contentHash).Scan(&leafIndex, &massifIndex)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue: resolving content: %w", err)
	}
	return &Resolution{LeafIndex: leafIndex, MassifIndex: massifIndex}, nil
}

// Stats implements §4.1 stats().
func (s *Shard) Stats(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	now := s.now()
	if err := s.evictStalePollers(now); err != nil {
		s.mu.Unlock()
		return Stats{}, err
	}
	active := len(s.pollers)
	s.mu.Unlock()

	var st Stats
	st.ActivePollers = active
	st.PollerLimitReached = active >= s.cfg.MaxPollers

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries WHERE leafIndex IS NULL").Scan(&st.Pending); err != nil {
		return Stats{}, fmt.Errorf("queue: stats pending: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM dead_letters").Scan(&st.DeadLetters); err != nil {
		return Stats{}, fmt.Errorf("queue: stats dead letters: %w", err)
	}
	var oldest sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MIN(enqueuedAt) FROM entries WHERE leafIndex IS NULL").Scan(&oldest); err != nil {
		return Stats{}, fmt.Errorf("queue: stats oldest: %w", err)
	}
	if oldest.Valid {
		age := now - oldest.Int64
		st.OldestPendingAgeMs = &age
	}
	return st, nil
}
