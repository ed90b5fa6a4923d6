package main

import (
	"context"
	"log/slog"
)

//go:generate go tool mockgen -source=settlement.go -destination=mock_wallet_test.go -package=main

// PaymentCategory labels why a payout exists
type PaymentCategory string

const (
	CategoryPrize   PaymentCategory = "prize"
	CategoryRefund  PaymentCategory = "refund"
	CategoryGameFee PaymentCategory = "game-fee"
)

// PendingPayment is one queued payout. Amount and Fee are in lunas.
type PendingPayment struct {
	ID       string
	Address  string
	Amount   int64
	Fee      int64
	Category PaymentCategory
}

// Cost is what the payment takes out of the hot wallet
func (p PendingPayment) Cost() int64 {
	return p.Amount + p.Fee
}

// Wallet is the part of the wallet client the settlement queue drives.
// PayoutTo must not block on the ledger; confirmation happens in the
// background.
type Wallet interface {
	ConsensusEstablished() bool
	PayoutTo(ctx context.Context, p PendingPayment) error
}

// PayoutRecorder receives queue lifecycle events
type PayoutRecorder interface {
	RecordPayout(p PendingPayment, status PayoutStatus)
}

// PayoutStatus is a payout lifecycle stage
type PayoutStatus string

const (
	PayoutQueued    PayoutStatus = "queued"
	PayoutSubmitted PayoutStatus = "submitted"
	PayoutAccepted  PayoutStatus = "accepted"
	PayoutConfirmed PayoutStatus = "confirmed"
	PayoutAbandoned PayoutStatus = "abandoned"
	PayoutFailed    PayoutStatus = "failed"
)

// SettlementQueue holds payouts until the wallet can afford them. It is
// owned by one room goroutine and is not safe for concurrent use.
type SettlementQueue struct {
	cfg      Config
	wallet   Wallet
	recorder PayoutRecorder
	log      *slog.Logger

	pending map[string]PendingPayment
	order   []string
	balance int64
}

// NewSettlementQueue creates a queue. wallet may be nil for free rooms;
// recorder may be nil.
func NewSettlementQueue(cfg Config, wallet Wallet, recorder PayoutRecorder, logger *slog.Logger) *SettlementQueue {
	return &SettlementQueue{
		cfg:      cfg,
		wallet:   wallet,
		recorder: recorder,
		log:      logger,
		pending:  make(map[string]PendingPayment),
	}
}

// Enqueue adds a payout. Free rooms and non-positive amounts are ignored.
func (q *SettlementQueue) Enqueue(p PendingPayment) bool {
	if !q.cfg.Monetized() || p.Amount <= 0 || p.Address == "" {
		return false
	}
	if p.ID == "" {
		p.ID = GenerateUUID()
	}
	if _, dup := q.pending[p.ID]; dup {
		return false
	}
	q.pending[p.ID] = p
	q.order = append(q.order, p.ID)
	q.record(p, PayoutQueued)
	return true
}

// EnqueuePrize queues the per-kill prize for the shooter
func (q *SettlementQueue) EnqueuePrize(address string) bool {
	return q.Enqueue(PendingPayment{
		Address:  address,
		Amount:   q.cfg.Prize,
		Fee:      q.cfg.TransactionFee,
		Category: CategoryPrize,
	})
}

// EnqueueRefund queues the refund for a tank leaving with health left
func (q *SettlementQueue) EnqueueRefund(address string, health int) bool {
	return q.Enqueue(PendingPayment{
		Address:  address,
		Amount:   RefundAmount(q.cfg, health),
		Fee:      q.cfg.TransactionFee,
		Category: CategoryRefund,
	})
}

// EnqueueGameFee queues the house share of a paid entry
func (q *SettlementQueue) EnqueueGameFee() bool {
	if q.cfg.RoomType != RoomPaid {
		return false
	}
	return q.Enqueue(PendingPayment{
		Address:  q.cfg.ColdAddress,
		Amount:   q.cfg.ColdGameFee,
		Fee:      q.cfg.TransactionFee,
		Category: CategoryGameFee,
	})
}

// RefundAmount is what a leaving tank gets back. Paid rooms return one prize
// per remaining health point; earn rooms return the prize scaled by the
// share of health left.
func RefundAmount(cfg Config, health int) int64 {
	if health <= 0 {
		return 0
	}
	switch cfg.RoomType {
	case RoomPaid:
		return int64(health) * cfg.Prize
	case RoomEarn:
		return int64(health) * cfg.Prize / TankMaxHealth
	}
	return 0
}

// SetBalance replaces the cached wallet balance after a wallet notification
func (q *SettlementQueue) SetBalance(balance int64) {
	q.balance = balance
}

func (q *SettlementQueue) Balance() int64 {
	return q.balance
}

func (q *SettlementQueue) Len() int {
	return len(q.pending)
}

// Pending returns queued payouts in enqueue order
func (q *SettlementQueue) Pending() []PendingPayment {
	out := make([]PendingPayment, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, q.pending[id])
	}
	return out
}

// Drain submits every affordable payout while consensus is established.
// Each submission lowers the cached balance by the payout cost; payouts that
// do not fit stay queued. It returns the number of payouts submitted.
func (q *SettlementQueue) Drain(ctx context.Context) int {
	if q.wallet == nil || len(q.pending) == 0 || !q.wallet.ConsensusEstablished() {
		return 0
	}

	n := 0
	kept := q.order[:0]
	for _, id := range q.order {
		p := q.pending[id]
		if p.Cost() > q.balance {
			kept = append(kept, id)
			continue
		}
		delete(q.pending, id)
		if err := q.wallet.PayoutTo(ctx, p); err != nil {
			q.log.Error("settlement: payout rejected", "id", p.ID, "category", p.Category, "err", err)
			q.record(p, PayoutFailed)
			continue
		}
		q.balance -= p.Cost()
		q.record(p, PayoutSubmitted)
		n++
	}
	for i := len(kept); i < len(q.order); i++ {
		q.order[i] = ""
	}
	q.order = kept
	return n
}

func (q *SettlementQueue) record(p PendingPayment, status PayoutStatus) {
	if q.recorder != nil {
		q.recorder.RecordPayout(p, status)
	}
}
