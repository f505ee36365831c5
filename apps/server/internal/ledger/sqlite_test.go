package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"
)

func newTestSQLiteService(t *testing.T) *SQLiteService {
	t.Helper()
	s, err := NewSQLiteService(":memory:")
	if err != nil {
		t.Fatalf("open sqlite ledger: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testEvents(n int) []EventItem {
	events := make([]EventItem, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, EventItem{
			Seq:       uint64(i + 1),
			EventType: "game_event",
			Envelope:  json.RawMessage(`{"type":"game_event","server_seq":` + strconv.Itoa(i+1) + `}`),
		})
	}
	return events
}

func TestSQLiteUpsertReplayHandRoundTrip(t *testing.T) {
	s := newTestSQLiteService(t)
	ctx := context.Background()

	events := []EventItem{
		{Seq: 1, EventType: "hand_start", Envelope: json.RawMessage(`{"type":"hand_start"}`)},
		{Seq: 2, EventType: "game_event", Envelope: json.RawMessage(`{"type":"game_event"}`)},
		{Seq: 3, EventType: "settlement", Envelope: json.RawMessage(`{"type":"settlement"}`)},
	}
	if err := s.UpsertReplayHand(ctx, 7, "hand-001", events, map[string]any{"hero_chair": 2}); err != nil {
		t.Fatalf("upsert replay hand failed: %v", err)
	}

	items, err := s.ListRecent(ctx, 7, SourceReplay, 10)
	if err != nil {
		t.Fatalf("list recent failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 history item, got %d", len(items))
	}
	if items[0].HandID != "hand-001" || items[0].Source != SourceReplay {
		t.Fatalf("unexpected item: %+v", items[0])
	}
	if items[0].Summary["event_count"] != float64(3) {
		t.Fatalf("expected event_count 3 in summary, got %v", items[0].Summary["event_count"])
	}

	got, err := s.GetHandEvents(ctx, 7, SourceReplay, "hand-001")
	if err != nil {
		t.Fatalf("get hand events failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if got[0].Seq != 1 || got[2].EventType != "settlement" {
		t.Fatalf("events out of order or corrupted: %+v", got)
	}
	var decoded map[string]any
	if err := json.Unmarshal(got[2].Envelope, &decoded); err != nil {
		t.Fatalf("stored envelope is not valid JSON: %v", err)
	}
	if decoded["type"] != "settlement" {
		t.Fatalf("expected settlement envelope, got %v", decoded)
	}
}

func TestSQLiteArchivedTapeWinsOverEventStream(t *testing.T) {
	s := newTestSQLiteService(t)
	ctx := context.Background()

	tape := []EventItem{
		{Seq: 1, EventType: "table_snapshot", Envelope: json.RawMessage(`{"type":"table_snapshot"}`)},
		{Seq: 2, EventType: "hand_start", Envelope: json.RawMessage(`{"type":"hand_start"}`)},
	}
	s.UpsertLiveHistoryWithEvents(9, "hand-live-1", time.Now().UTC(), map[string]any{"result": "win"}, tape)

	got, err := s.GetHandEvents(ctx, 9, SourceLive, "hand-live-1")
	if err != nil {
		t.Fatalf("get hand events failed: %v", err)
	}
	// 归档 tape 是用户视角，开头带引导快照
	if len(got) != 2 || got[0].EventType != "table_snapshot" {
		t.Fatalf("expected tape events starting with snapshot, got %+v", got)
	}

	if _, err := s.GetHandEvents(ctx, 9, SourceLive, "no-such-hand"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteSetSavedLifecycle(t *testing.T) {
	s := newTestSQLiteService(t)
	ctx := context.Background()

	if err := s.UpsertReplayHand(ctx, 5, "hand-a", testEvents(2), nil); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	if err := s.SetSaved(ctx, 5, SourceReplay, "hand-a", true); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	items, err := s.ListRecent(ctx, 5, SourceReplay, 10)
	if err != nil {
		t.Fatalf("list recent failed: %v", err)
	}
	if len(items) != 1 || !items[0].IsSaved || items[0].SavedAt == nil {
		t.Fatalf("expected saved item with timestamp, got %+v", items)
	}

	if err := s.SetSaved(ctx, 5, SourceReplay, "hand-a", false); err != nil {
		t.Fatalf("unsave failed: %v", err)
	}
	items, err = s.ListRecent(ctx, 5, SourceReplay, 10)
	if err != nil {
		t.Fatalf("list recent failed: %v", err)
	}
	if len(items) != 1 || items[0].IsSaved || items[0].SavedAt != nil {
		t.Fatalf("expected unsaved item, got %+v", items)
	}

	if err := s.SetSaved(ctx, 5, SourceReplay, "missing", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing hand, got %v", err)
	}
}

func TestSQLiteSavedLimitAndTrim(t *testing.T) {
	s := newTestSQLiteService(t)
	s.keepRecent = 3
	s.keepSaved = 1
	ctx := context.Background()

	for _, handID := range []string{"h1", "h2", "h3", "h4", "h5"} {
		if err := s.UpsertReplayHand(ctx, 11, handID, testEvents(1), nil); err != nil {
			t.Fatalf("upsert %s failed: %v", handID, err)
		}
	}

	items, err := s.ListRecent(ctx, 11, SourceReplay, 10)
	if err != nil {
		t.Fatalf("list recent failed: %v", err)
	}
	// 未收藏的归档按时间淘汰到 keepRecent 条
	if len(items) != 3 {
		t.Fatalf("expected 3 items after trim, got %d", len(items))
	}

	if err := s.SetSaved(ctx, 11, SourceReplay, items[0].HandID, true); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := s.SetSaved(ctx, 11, SourceReplay, items[1].HandID, true); !errors.Is(err, ErrSavedLimitReach) {
		t.Fatalf("expected ErrSavedLimitReach, got %v", err)
	}
}
