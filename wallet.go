package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// Polling rounds before a submission or verification is abandoned
	DefaultAttemptBudget = 300
	DefaultRetryDelay    = time.Second
	recentTxLimit        = 1000
	extraDataPrefix      = "HexTank.io"
)

var (
	ErrWalletNotLoaded   = errors.New("wallet not loaded")
	ErrInvalidRecipient  = errors.New("invalid recipient")
	ErrInsufficientEntry = errors.New("insufficient entry payment")
)

// PayoutOutcome is reported once per payout when the background submission
// settles.
type PayoutOutcome struct {
	Payment PendingPayment
	Hash    string
	Status  PayoutStatus
}

// WalletClient submits payouts from the hot wallet and tracks its balance.
// It implements Wallet and LedgerListener.
type WalletClient struct {
	cfg    Config
	ledger Ledger
	log    *slog.Logger

	AttemptBudget int
	RetryDelay    time.Duration

	address   string
	connected atomic.Bool
	consensus atomic.Bool

	mu          sync.Mutex
	ctx         context.Context
	balance     int64
	recent      map[string]TxState
	recentOrder []string
	onBalance   []func(int64)
	onOutcome   []func(PayoutOutcome)
	wg          sync.WaitGroup
}

func NewWalletClient(cfg Config, ledger Ledger, logger *slog.Logger) *WalletClient {
	return &WalletClient{
		cfg:           cfg,
		ledger:        ledger,
		log:           logger,
		AttemptBudget: DefaultAttemptBudget,
		RetryDelay:    DefaultRetryDelay,
		ctx:           context.Background(),
		recent:        make(map[string]TxState),
	}
}

// LoadWallet binds the client to the configured hot address
func (w *WalletClient) LoadWallet() error {
	if w.cfg.HotAddress == "" {
		return fmt.Errorf("wallet: %w: no hot address", ErrWalletNotLoaded)
	}
	if w.cfg.HotSeed == "" && !w.cfg.Test {
		w.log.Warn("wallet: no hot seed configured")
	}
	w.address = w.cfg.HotAddress
	return nil
}

// Connect subscribes to ledger notifications. Background work started by
// the client is bound to ctx.
func (w *WalletClient) Connect(ctx context.Context) error {
	if w.address == "" {
		return fmt.Errorf("wallet: connect: %w", ErrWalletNotLoaded)
	}
	w.mu.Lock()
	w.ctx = ctx
	w.mu.Unlock()

	w.ledger.Subscribe(w)
	w.connected.Store(true)
	w.log.Info("wallet: connected", "address", w.address, "network", w.cfg.NetworkType)
	return nil
}

// Established reports whether Connect has completed
func (w *WalletClient) Established() bool {
	return w.connected.Load()
}

func (w *WalletClient) Address() string {
	return w.address
}

func (w *WalletClient) ConsensusEstablished() bool {
	return w.consensus.Load()
}

// TemporaryBalance is the last balance read from the ledger
func (w *WalletClient) TemporaryBalance() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balance
}

// OnBalance registers a listener called whenever the balance changes
func (w *WalletClient) OnBalance(fn func(int64)) {
	w.mu.Lock()
	w.onBalance = append(w.onBalance, fn)
	w.mu.Unlock()
}

// OnOutcome registers a listener for settled payouts
func (w *WalletClient) OnOutcome(fn func(PayoutOutcome)) {
	w.mu.Lock()
	w.onOutcome = append(w.onOutcome, fn)
	w.mu.Unlock()
}

func (w *WalletClient) OnConsensus(state ConsensusState) {
	established := state == ConsensusEstablished
	if w.consensus.Swap(established) != established {
		w.log.Info("wallet: consensus changed", "state", state)
	}
	if established {
		w.refreshBalance()
	}
}

func (w *WalletClient) OnHead(height uint32) {
	if w.consensus.Load() {
		w.refreshBalance()
	}
}

func (w *WalletClient) OnTransaction(hash string, state TxState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.recent[hash]; !ok {
		w.recentOrder = append(w.recentOrder, hash)
		if len(w.recentOrder) > recentTxLimit {
			delete(w.recent, w.recentOrder[0])
			w.recentOrder = w.recentOrder[1:]
		}
	}
	w.recent[hash] = state
}

func (w *WalletClient) recentState(hash string) (TxState, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.recent[hash]
	return s, ok
}

func (w *WalletClient) refreshBalance() {
	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()

	bal, err := w.ledger.Balance(ctx, w.address)
	if err != nil {
		w.log.Warn("wallet: balance refresh failed", "err", err)
		return
	}

	w.mu.Lock()
	if bal == w.balance {
		w.mu.Unlock()
		return
	}
	w.balance = bal
	listeners := append([]func(int64){}, w.onBalance...)
	w.mu.Unlock()

	for _, fn := range listeners {
		fn(bal)
	}
}

// PayoutTo validates the payout and submits it in the background. Errors
// returned here are final; ledger failures are reported through OnOutcome.
func (w *WalletClient) PayoutTo(ctx context.Context, p PendingPayment) error {
	if w.address == "" {
		return ErrWalletNotLoaded
	}
	if p.Address == "" || p.Address == w.address {
		return fmt.Errorf("wallet: %w %q", ErrInvalidRecipient, p.Address)
	}
	if p.Amount <= 0 {
		return fmt.Errorf("wallet: payout %s has no value", p.ID)
	}

	w.mu.Lock()
	bg := w.ctx
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.submit(bg, p)
	}()
	return nil
}

// submit sends the transaction and resends it until the ledger accepts it
// or the attempt budget runs out.
func (w *WalletClient) submit(ctx context.Context, p PendingPayment) {
	height, err := w.ledger.HeadHeight(ctx)
	if err != nil {
		w.log.Error("wallet: head height", "id", p.ID, "err", err)
		w.report(PayoutOutcome{Payment: p, Status: PayoutFailed})
		return
	}
	tx := Transaction{
		Sender:        w.address,
		Recipient:     p.Address,
		Value:         p.Amount,
		Fee:           p.Fee,
		ValidityStart: height,
		Network:       w.cfg.NetworkType,
		ExtraData:     []byte(fmt.Sprintf("%s %s %s", extraDataPrefix, p.Category, p.ID)),
	}
	hash := tx.Hash()

	for attempt := 1; attempt <= w.AttemptBudget; attempt++ {
		state, err := w.ledger.SendTransaction(ctx, tx)
		if err == nil && state.Accepted() {
			w.log.Info("wallet: payout accepted", "id", p.ID, "hash", hash, "state", state, "attempt", attempt)
			status := PayoutAccepted
			if state == TxConfirmed {
				status = PayoutConfirmed
			}
			w.report(PayoutOutcome{Payment: p, Hash: hash, Status: status})
			return
		}
		if err != nil {
			w.log.Warn("wallet: send failed", "id", p.ID, "attempt", attempt, "err", err)
		}
		if attempt == w.AttemptBudget || !sleepCtx(ctx, w.RetryDelay) {
			break
		}
	}
	w.log.Warn("wallet: payout abandoned", "id", p.ID, "hash", hash, "attempts", w.AttemptBudget)
	w.report(PayoutOutcome{Payment: p, Hash: hash, Status: PayoutAbandoned})
}

func (w *WalletClient) report(o PayoutOutcome) {
	w.mu.Lock()
	listeners := append([]func(PayoutOutcome){}, w.onOutcome...)
	w.mu.Unlock()
	for _, fn := range listeners {
		fn(o)
	}
}

// VerifyTransactionIntegrity checks a paid-room entry proof: a valid
// signature paying at least the entry fee to the hot wallet.
func (w *WalletClient) VerifyTransactionIntegrity(proof PaymentProof) bool {
	tx, err := proof.Decode()
	if err != nil {
		return false
	}
	if !w.ledger.VerifyTransaction(tx) {
		return false
	}
	return tx.Recipient == w.address &&
		tx.Value >= w.cfg.EntryFee &&
		tx.Fee >= w.cfg.TransactionFee
}

// VerifyTransactionState waits for the entry payment to be accepted. It
// returns false when the transaction is invalidated, expires, or the
// attempt budget runs out.
func (w *WalletClient) VerifyTransactionState(ctx context.Context, proof PaymentProof) bool {
	tx, err := proof.Decode()
	if err != nil {
		return false
	}
	hash := tx.Hash()

	for attempt := 0; attempt < w.AttemptBudget; attempt++ {
		state, ok := w.recentState(hash)
		if !ok {
			state, err = w.ledger.TransactionState(ctx, hash)
			if err != nil {
				w.log.Warn("wallet: transaction state", "hash", hash, "err", err)
			}
		}
		if state.Accepted() {
			return true
		}
		if state.Final() {
			return false
		}
		if !sleepCtx(ctx, w.RetryDelay) {
			return false
		}
	}
	return false
}

// VerifySignedMessage checks an earn-room entry
func (w *WalletClient) VerifySignedMessage(msg SignedMessage) bool {
	return w.ledger.VerifySignedMessage(msg)
}

// Wait blocks until all background submissions have finished
func (w *WalletClient) Wait() {
	w.wg.Wait()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
