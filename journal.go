package main

import (
	"log/slog"
	"sync"
	"time"
)

const (
	journalBuffer     = 1024
	journalBatchSize  = 50
	journalFlushEvery = 5 * time.Second
)

// JournalEntry is a single payout lifecycle event
type JournalEntry struct {
	Payment   PendingPayment
	RoomID    string
	Status    PayoutStatus
	Hash      string
	Timestamp time.Time
}

// Journal records payout events with batched background writes. It is
// write-only from the rooms' point of view.
type Journal struct {
	db     *DB
	log    *slog.Logger
	events chan JournalEntry
	stop   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewJournal creates and starts the journal background writer
func NewJournal(db *DB, logger *slog.Logger) *Journal {
	j := &Journal{
		db:     db,
		log:    logger,
		events: make(chan JournalEntry, journalBuffer),
		stop:   make(chan struct{}),
	}
	j.wg.Add(1)
	go j.writer()
	return j
}

// Track enqueues an entry for async persistence (non-blocking)
func (j *Journal) Track(e JournalEntry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	select {
	case j.events <- e:
	default:
		j.log.Warn("journal: buffer full, entry dropped", "payment", e.Payment.ID, "status", e.Status)
	}
}

// ForRoom returns a recorder that tags entries with the room id
func (j *Journal) ForRoom(roomID string) PayoutRecorder {
	return roomJournal{j: j, roomID: roomID}
}

// RecordOutcome journals the result of a background submission
func (j *Journal) RecordOutcome(o PayoutOutcome) {
	j.Track(JournalEntry{Payment: o.Payment, Status: o.Status, Hash: o.Hash})
}

// Stop flushes pending entries and shuts down the writer
func (j *Journal) Stop() {
	j.once.Do(func() {
		close(j.stop)
		j.wg.Wait()
	})
}

type roomJournal struct {
	j      *Journal
	roomID string
}

func (r roomJournal) RecordPayout(p PendingPayment, status PayoutStatus) {
	r.j.Track(JournalEntry{Payment: p, RoomID: r.roomID, Status: status})
}

// writer is the background goroutine that batches and writes entries to DB
func (j *Journal) writer() {
	defer j.wg.Done()

	batch := make([]JournalEntry, 0, 64)
	ticker := time.NewTicker(journalFlushEvery)
	defer ticker.Stop()

	for {
		select {
		case e := <-j.events:
			batch = append(batch, e)
			if len(batch) >= journalBatchSize {
				j.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				j.flush(batch)
				batch = batch[:0]
			}
		case <-j.stop:
			for {
				select {
				case e := <-j.events:
					batch = append(batch, e)
				default:
					j.flush(batch)
					return
				}
			}
		}
	}
}

// flush writes a batch of entries in one transaction
func (j *Journal) flush(entries []JournalEntry) {
	if j.db == nil || len(entries) == 0 {
		return
	}
	tx, err := j.db.conn.Begin()
	if err != nil {
		j.log.Error("journal: begin tx", "err", err)
		return
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO payouts
		(payment_id, room_id, address, amount, fee, category, status, hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		j.log.Error("journal: prepare", "err", err)
		return
	}
	defer stmt.Close()

	for _, e := range entries {
		p := e.Payment
		if _, err := stmt.Exec(p.ID, e.RoomID, p.Address, p.Amount, p.Fee, string(p.Category),
			string(e.Status), e.Hash, e.Timestamp.Format(time.RFC3339Nano)); err != nil {
			j.log.Error("journal: insert", "payment", p.ID, "err", err)
		}
	}
	if err := tx.Commit(); err != nil {
		j.log.Error("journal: commit", "err", err)
	}
}
