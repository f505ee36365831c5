package lobby

import (
	"fmt"
	"log"
	"sync"
	"time"

	"holdem-kit/apps/server/internal/ledger"
	"holdem-kit/apps/server/internal/table"

	"github.com/google/uuid"
)

const (
	idleTableTTL     = 10 * time.Minute
	janitorInterval  = time.Minute
	defaultTableCap  = 6
	defaultMinBuyIn  = 5000
	defaultMaxBuyIn  = 20000
	defaultSmallBind = 50
	defaultBigBlind  = 100
)

// Lobby manages all tables and player assignments
type Lobby struct {
	mu     sync.RWMutex
	tables map[string]*table.Table
	ledger ledger.Service

	defaultConfig table.TableConfig

	done chan struct{}
}

// New creates a new lobby
func New(ledgerService ledger.Service) *Lobby {
	l := &Lobby{
		tables: make(map[string]*table.Table),
		ledger: ledgerService,
		defaultConfig: table.TableConfig{
			MaxPlayers: defaultTableCap,
			SmallBlind: defaultSmallBind,
			BigBlind:   defaultBigBlind,
			Ante:       0,
			MinBuyIn:   defaultMinBuyIn,
			MaxBuyIn:   defaultMaxBuyIn,
		},
		done: make(chan struct{}),
	}
	go l.runJanitor()
	return l
}

// QuickStart finds or creates a table for the player
func (l *Lobby) QuickStart(userID uint64, broadcastFn func(userID uint64, data []byte)) (*table.Table, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Find a table with available seats
	for _, t := range l.tables {
		if t.IsClosed() {
			continue
		}
		snap := t.Snapshot()
		if len(snap.Players) < int(l.defaultConfig.MaxPlayers) {
			log.Printf("[Lobby] QuickStart: user %d joining existing table %s", userID, t.ID)
			return t, nil
		}
	}

	tableID := fmt.Sprintf("table_%s", uuid.NewString())
	t := table.New(tableID, l.defaultConfig, broadcastFn, l.ledger)
	if t == nil {
		return nil, fmt.Errorf("failed to create table")
	}
	l.tables[tableID] = t

	log.Printf("[Lobby] QuickStart: user %d created new table %s", userID, tableID)
	return t, nil
}

// GetTable returns a table by ID
func (l *Lobby) GetTable(tableID string) *table.Table {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tables[tableID]
}

// ListTables returns all table IDs
func (l *Lobby) ListTables() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]string, 0, len(l.tables))
	for id := range l.tables {
		ids = append(ids, id)
	}
	return ids
}

// Stop shuts the lobby down, closing all tables.
func (l *Lobby) Stop() {
	close(l.done)
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, t := range l.tables {
		t.Stop()
		delete(l.tables, id)
	}
}

// runJanitor 周期性回收长时间无人的空桌。
func (l *Lobby) runJanitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweepIdleTables()
		case <-l.done:
			return
		}
	}
}

func (l *Lobby) sweepIdleTables() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, t := range l.tables {
		if !t.IsIdleFor(idleTableTTL) {
			continue
		}
		t.Stop()
		delete(l.tables, id)
		log.Printf("[Lobby] Closed idle table %s", id)
	}
}
