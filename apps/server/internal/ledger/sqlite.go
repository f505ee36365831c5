package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"holdem-kit/apps/server/internal/codec"

	_ "modernc.org/sqlite"
)

const defaultLocalDBName = "holdem_local.db"

// SQLiteService 是单机部署用的本地账本，表结构与 postgres 版同形，
// 时间戳统一用毫秒整数列存储。
type SQLiteService struct {
	db         *sql.DB
	keepRecent int
	keepSaved  int
}

func NewSQLiteServiceFromEnv() (*SQLiteService, error) {
	dbPath, err := ledgerLocalDatabasePathFromEnv()
	if err != nil {
		return nil, err
	}
	return NewSQLiteService(dbPath)
}

func NewSQLiteService(dbPath string) (*SQLiteService, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if dbPath != ":memory:" {
		parent := filepath.Dir(dbPath)
		if parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, pragma := range []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA foreign_keys = ON;`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureLedgerSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteService{
		db:         db,
		keepRecent: envIntOrDefault("LEDGER_RECENT_KEEP", defaultRecentKeep),
		keepSaved:  envIntOrDefault("LEDGER_SAVED_KEEP", defaultSavedKeep),
	}, nil
}

func (s *SQLiteService) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteService) AppendLiveEvent(handID string, env *codec.ServerEnvelope, encoded []byte) {
	if strings.TrimSpace(handID) == "" || env == nil {
		return
	}
	if encoded == nil {
		raw, err := codec.EncodeServer(env)
		if err != nil {
			log.Printf("[Ledger] marshal live event failed: hand=%s err=%v", handID, err)
			return
		}
		encoded = raw
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO hand_events (source, hand_id, seq, event_type, envelope, server_ts_ms, created_at_ms)
VALUES ('live', ?, ?, ?, ?, ?, ?)
ON CONFLICT (source, hand_id, seq) DO NOTHING
`, handID, int64(env.ServerSeq), envelopeEventType(env), string(encoded),
		nullableInt64(env.ServerTsMs), time.Now().UTC().UnixMilli())
	if err != nil {
		log.Printf("[Ledger] append live event failed: hand=%s seq=%d err=%v", handID, env.ServerSeq, err)
	}
}

func (s *SQLiteService) UpsertLiveHistory(userID uint64, handID string, playedAt time.Time, summary map[string]any) {
	s.archiveLiveHand(userID, handID, playedAt, summary, nil)
}

func (s *SQLiteService) UpsertLiveHistoryWithEvents(
	userID uint64,
	handID string,
	playedAt time.Time,
	summary map[string]any,
	events []EventItem,
) {
	var tape []byte
	if len(events) > 0 {
		raw, err := json.Marshal(events)
		if err != nil {
			log.Printf("[Ledger] marshal hand tape failed: user=%d hand=%s err=%v", userID, handID, err)
		} else {
			tape = raw
		}
	}
	s.archiveLiveHand(userID, handID, playedAt, summary, tape)
}

func (s *SQLiteService) archiveLiveHand(
	userID uint64,
	handID string,
	playedAt time.Time,
	summary map[string]any,
	tape []byte,
) {
	if userID == 0 || strings.TrimSpace(handID) == "" {
		return
	}
	if playedAt.IsZero() {
		playedAt = time.Now().UTC()
	}
	summaryRaw, err := marshalSummary(summary)
	if err != nil {
		log.Printf("[Ledger] marshal hand summary failed: user=%d hand=%s err=%v", userID, handID, err)
		return
	}
	nowMs := time.Now().UTC().UnixMilli()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("[Ledger] begin archive tx failed: user=%d hand=%s err=%v", userID, handID, err)
		return
	}
	defer tx.Rollback()

	// 重开同一手只补 tape，不清掉已有的
	if _, err := tx.ExecContext(ctx, `
INSERT INTO hand_history (user_id, source, hand_id, played_at_ms, summary, tape, created_at_ms, updated_at_ms)
VALUES (?, 'live', ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, source, hand_id) DO UPDATE
SET
    played_at_ms = excluded.played_at_ms,
    summary = excluded.summary,
    tape = COALESCE(excluded.tape, hand_history.tape),
    updated_at_ms = excluded.updated_at_ms
`, userID, handID, playedAt.UTC().UnixMilli(), string(summaryRaw), nullableText(tape), nowMs, nowMs); err != nil {
		log.Printf("[Ledger] archive live hand failed: user=%d hand=%s err=%v", userID, handID, err)
		return
	}

	if err := s.trimUnsaved(ctx, tx, userID, SourceLive); err != nil {
		log.Printf("[Ledger] trim live archive failed: user=%d err=%v", userID, err)
		return
	}
	if err := tx.Commit(); err != nil {
		log.Printf("[Ledger] commit archive failed: user=%d hand=%s err=%v", userID, handID, err)
	}
}

func (s *SQLiteService) UpsertReplayHand(
	ctx context.Context,
	userID uint64,
	handID string,
	events []EventItem,
	summary map[string]any,
) error {
	if userID == 0 || strings.TrimSpace(handID) == "" {
		return ErrNotFound
	}
	if len(events) == 0 {
		return fmt.Errorf("events is required")
	}
	if summary == nil {
		summary = map[string]any{}
	}
	if _, ok := summary["event_count"]; !ok {
		summary["event_count"] = len(events)
	}
	summaryRaw, err := marshalSummary(summary)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	nowMs := time.Now().UTC().UnixMilli()
	for _, e := range events {
		if e.EventType == "" {
			e.EventType = "unknown"
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO hand_events (source, hand_id, seq, event_type, envelope, server_ts_ms, created_at_ms)
VALUES ('replay', ?, ?, ?, ?, ?, ?)
ON CONFLICT (source, hand_id, seq) DO UPDATE
SET
    event_type = excluded.event_type,
    envelope = excluded.envelope,
    server_ts_ms = excluded.server_ts_ms
`, handID, int64(e.Seq), e.EventType, string(e.Envelope), nullableInt64Ptr(e.ServerTsMs), nowMs); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO hand_history (user_id, source, hand_id, played_at_ms, summary, created_at_ms, updated_at_ms)
VALUES (?, 'replay', ?, ?, ?, ?, ?)
ON CONFLICT (user_id, source, hand_id) DO UPDATE
SET
    played_at_ms = excluded.played_at_ms,
    summary = excluded.summary,
    updated_at_ms = excluded.updated_at_ms
`, userID, handID, nowMs, string(summaryRaw), nowMs, nowMs); err != nil {
		return err
	}

	if err := s.trimUnsaved(ctx, tx, userID, SourceReplay); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteService) ListRecent(ctx context.Context, userID uint64, source Source, limit int) ([]HistoryItem, error) {
	if userID == 0 {
		return []HistoryItem{}, nil
	}
	if !validSource(source) {
		return nil, fmt.Errorf("invalid source %q", source)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT hand_id, played_at_ms, summary, is_saved, saved_at_ms, updated_at_ms
FROM hand_history
WHERE user_id = ?
  AND source = ?
ORDER BY played_at_ms DESC, id DESC
LIMIT ?
`, userID, string(source), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]HistoryItem, 0, limit)
	for rows.Next() {
		var item HistoryItem
		var playedAtMs, updatedAtMs int64
		var summaryRaw []byte
		var isSaved int64
		var savedAtMs sql.NullInt64
		if err := rows.Scan(&item.HandID, &playedAtMs, &summaryRaw, &isSaved, &savedAtMs, &updatedAtMs); err != nil {
			return nil, err
		}
		item.Source = source
		item.PlayedAt = time.UnixMilli(playedAtMs).UTC()
		item.IsSaved = isSaved == 1
		if savedAtMs.Valid {
			t := time.UnixMilli(savedAtMs.Int64).UTC()
			item.SavedAt = &t
		}
		item.UpdatedAt = time.UnixMilli(updatedAtMs).UTC()
		item.Summary = unmarshalSummary(summaryRaw)
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *SQLiteService) GetHandEvents(ctx context.Context, userID uint64, source Source, handID string) ([]EventItem, error) {
	if userID == 0 || strings.TrimSpace(handID) == "" {
		return nil, ErrNotFound
	}
	if !validSource(source) {
		return nil, fmt.Errorf("invalid source %q", source)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var tape []byte
	err := s.db.QueryRowContext(ctx, `
SELECT COALESCE(tape, '')
FROM hand_history
WHERE user_id = ?
  AND source = ?
  AND hand_id = ?
`, userID, string(source), handID).Scan(&tape)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if events := decodeTape(tape); len(events) > 0 {
		return events, nil
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT seq, event_type, envelope, server_ts_ms
FROM hand_events
WHERE source = ?
  AND hand_id = ?
ORDER BY seq ASC
`, string(source), handID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]EventItem, 0, 128)
	for rows.Next() {
		var e EventItem
		var seq int64
		var envelope string
		var serverTs sql.NullInt64
		if err := rows.Scan(&seq, &e.EventType, &envelope, &serverTs); err != nil {
			return nil, err
		}
		e.Seq = uint64(seq)
		e.Envelope = json.RawMessage(envelope)
		if serverTs.Valid {
			v := serverTs.Int64
			e.ServerTsMs = &v
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNotFound
	}
	return events, nil
}

func (s *SQLiteService) SetSaved(ctx context.Context, userID uint64, source Source, handID string, saved bool) error {
	if userID == 0 || strings.TrimSpace(handID) == "" {
		return ErrNotFound
	}
	if !validSource(source) {
		return fmt.Errorf("invalid source %q", source)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current int64
	err = tx.QueryRowContext(ctx, `
SELECT is_saved
FROM hand_history
WHERE user_id = ?
  AND source = ?
  AND hand_id = ?
`, userID, string(source), handID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if (current == 1) == saved {
		return tx.Commit()
	}

	nowMs := time.Now().UTC().UnixMilli()
	if saved {
		var savedCount int
		if err := tx.QueryRowContext(ctx, `
SELECT COUNT(1)
FROM hand_history
WHERE user_id = ?
  AND source = ?
  AND is_saved = 1
`, userID, string(source)).Scan(&savedCount); err != nil {
			return err
		}
		if savedCount >= s.keepSaved {
			return ErrSavedLimitReach
		}
	}

	savedFlag := int64(0)
	var savedAt any
	if saved {
		savedFlag = 1
		savedAt = nowMs
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE hand_history
SET is_saved = ?,
    saved_at_ms = ?,
    updated_at_ms = ?
WHERE user_id = ?
  AND source = ?
  AND hand_id = ?
`, savedFlag, savedAt, nowMs, userID, string(source), handID); err != nil {
		return err
	}

	// 取消收藏后这手重新参与淘汰
	if !saved {
		if err := s.trimUnsaved(ctx, tx, userID, source); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// trimUnsaved 按 played_at_ms 倒序保留 keepRecent 条未收藏归档，其余删除。
// SQLite 的 OFFSET 需要显式 LIMIT -1。
func (s *SQLiteService) trimUnsaved(ctx context.Context, tx *sql.Tx, userID uint64, source Source) error {
	if s.keepRecent <= 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx, `
DELETE FROM hand_history
WHERE user_id = ?
  AND source = ?
  AND is_saved = 0
  AND id IN (
      SELECT id
      FROM hand_history
      WHERE user_id = ?
        AND source = ?
        AND is_saved = 0
      ORDER BY played_at_ms DESC, id DESC
      LIMIT -1 OFFSET ?
  )
`, userID, string(source), userID, string(source), s.keepRecent)
	return err
}

func ensureLedgerSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`
CREATE TABLE IF NOT EXISTS hand_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source TEXT NOT NULL,
    hand_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    event_type TEXT NOT NULL,
    envelope TEXT NOT NULL DEFAULT '{}',
    server_ts_ms INTEGER,
    created_at_ms INTEGER NOT NULL,
    UNIQUE (source, hand_id, seq)
)`,
		`CREATE INDEX IF NOT EXISTS idx_hand_events_hand_seq ON hand_events(source, hand_id, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_hand_events_created_at ON hand_events(created_at_ms)`,
		`
CREATE TABLE IF NOT EXISTS hand_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    source TEXT NOT NULL,
    hand_id TEXT NOT NULL,
    played_at_ms INTEGER NOT NULL,
    summary TEXT NOT NULL DEFAULT '{}',
    tape TEXT,
    is_saved INTEGER NOT NULL DEFAULT 0,
    saved_at_ms INTEGER,
    created_at_ms INTEGER NOT NULL,
    updated_at_ms INTEGER NOT NULL,
    UNIQUE (user_id, source, hand_id)
)`,
		`CREATE INDEX IF NOT EXISTS idx_hand_history_recent ON hand_history(user_id, source, played_at_ms DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_hand_history_saved ON hand_history(user_id, source, is_saved, saved_at_ms DESC)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func ledgerLocalDatabasePathFromEnv() (string, error) {
	candidates := []string{
		strings.TrimSpace(os.Getenv("LEDGER_LOCAL_DATABASE_PATH")),
		strings.TrimSpace(os.Getenv("AUTH_LOCAL_DATABASE_PATH")),
		strings.TrimSpace(os.Getenv("LOCAL_DATABASE_PATH")),
	}
	for _, candidate := range candidates {
		if candidate != "" {
			return filepath.Clean(candidate), nil
		}
	}

	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userConfigDir, "HoldemKit", defaultLocalDBName), nil
}

func nullableInt64Ptr(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
