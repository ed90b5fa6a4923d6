package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

const testNetwork = "test"

func newTestWallet(t *testing.T, cfg Config) (*WalletClient, *MemoryLedger) {
	t.Helper()
	cfg.NetworkType = testNetwork
	ledger := NewMemoryLedger(testNetwork)
	w := NewWalletClient(cfg, ledger, testLogger())
	w.RetryDelay = time.Millisecond
	if err := w.LoadWallet(); err != nil {
		t.Fatalf("load wallet: %v", err)
	}
	if err := w.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return w, ledger
}

type outcomeLog struct {
	mu  sync.Mutex
	out []PayoutOutcome
}

func (l *outcomeLog) add(o PayoutOutcome) {
	l.mu.Lock()
	l.out = append(l.out, o)
	l.mu.Unlock()
}

func (l *outcomeLog) all() []PayoutOutcome {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]PayoutOutcome(nil), l.out...)
}

func TestWalletLoadAndConnect(t *testing.T) {
	w := NewWalletClient(Config{Test: true}, NewMemoryLedger(testNetwork), testLogger())
	if err := w.LoadWallet(); !errors.Is(err, ErrWalletNotLoaded) {
		t.Errorf("expected ErrWalletNotLoaded, got %v", err)
	}
	if err := w.Connect(context.Background()); !errors.Is(err, ErrWalletNotLoaded) {
		t.Errorf("connect without wallet: %v", err)
	}
	if w.Established() {
		t.Error("should not be established")
	}

	w2, _ := newTestWallet(t, paidConfig())
	if !w2.Established() || w2.Address() != "NQ00 HOT" {
		t.Errorf("established=%v address=%q", w2.Established(), w2.Address())
	}
}

func TestWalletBalanceFollowsConsensus(t *testing.T) {
	w, ledger := newTestWallet(t, paidConfig())

	var seen []int64
	w.OnBalance(func(b int64) { seen = append(seen, b) })

	ledger.Credit("NQ00 HOT", 5000)
	if w.TemporaryBalance() != 0 {
		t.Error("balance should not refresh before consensus")
	}

	ledger.SetConsensus(ConsensusEstablished)
	if !w.ConsensusEstablished() {
		t.Fatal("consensus not established")
	}
	if w.TemporaryBalance() != 5000 {
		t.Errorf("balance = %d, want 5000", w.TemporaryBalance())
	}

	// Same balance, new head: no notification
	ledger.Credit("NQ00 HOT", 0)
	ledger.Credit("NQ00 HOT", 250)
	if len(seen) != 2 || seen[0] != 5000 || seen[1] != 5250 {
		t.Errorf("balance notifications = %v", seen)
	}

	ledger.SetConsensus(ConsensusSyncing)
	if w.ConsensusEstablished() {
		t.Error("consensus should be lost")
	}
}

func TestWalletPayoutAccepted(t *testing.T) {
	w, ledger := newTestWallet(t, paidConfig())
	ledger.Credit("NQ00 HOT", 10000)
	ledger.SetConsensus(ConsensusEstablished)

	var log outcomeLog
	w.OnOutcome(log.add)

	p := PendingPayment{ID: "p1", Address: "NQ11 WINNER", Amount: 1000, Fee: 138, Category: CategoryPrize}
	if err := w.PayoutTo(context.Background(), p); err != nil {
		t.Fatalf("payout: %v", err)
	}
	w.Wait()

	out := log.all()
	if len(out) != 1 || out[0].Status != PayoutAccepted || out[0].Payment.ID != "p1" {
		t.Fatalf("outcomes = %+v", out)
	}

	sent := ledger.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d transactions", len(sent))
	}
	tx := sent[0]
	if tx.Sender != "NQ00 HOT" || tx.Recipient != "NQ11 WINNER" || tx.Value != 1000 || tx.Fee != 138 {
		t.Errorf("unexpected tx %+v", tx)
	}
	if string(tx.ExtraData) != "HexTank.io prize p1" {
		t.Errorf("extra data = %q", tx.ExtraData)
	}
	if out[0].Hash != tx.Hash() {
		t.Errorf("hash mismatch")
	}
}

func TestWalletPayoutRetriesThenAbandons(t *testing.T) {
	w, ledger := newTestWallet(t, paidConfig())
	w.AttemptBudget = 3
	ledger.SendResult = func(Transaction, int) TxState { return TxNew }

	var log outcomeLog
	w.OnOutcome(log.add)

	if err := w.PayoutTo(context.Background(), PendingPayment{ID: "p1", Address: "B", Amount: 10}); err != nil {
		t.Fatal(err)
	}
	w.Wait()

	if n := len(ledger.Sent()); n != 3 {
		t.Errorf("sent %d times, want 3", n)
	}
	out := log.all()
	if len(out) != 1 || out[0].Status != PayoutAbandoned {
		t.Errorf("outcomes = %+v", out)
	}
}

func TestWalletPayoutAcceptedOnResend(t *testing.T) {
	w, ledger := newTestWallet(t, paidConfig())
	ledger.SendResult = func(_ Transaction, attempt int) TxState {
		if attempt < 3 {
			return TxNew
		}
		return TxPending
	}

	var log outcomeLog
	w.OnOutcome(log.add)
	w.PayoutTo(context.Background(), PendingPayment{ID: "p1", Address: "B", Amount: 10})
	w.Wait()

	if n := len(ledger.Sent()); n != 3 {
		t.Errorf("sent %d times, want 3", n)
	}
	if out := log.all(); len(out) != 1 || out[0].Status != PayoutAccepted {
		t.Errorf("outcomes = %+v", out)
	}
}

func TestWalletPayoutConfirmedOnlyWhenLedgerConfirms(t *testing.T) {
	tests := []struct {
		state TxState
		want  PayoutStatus
	}{
		{TxPending, PayoutAccepted},
		{TxMined, PayoutAccepted},
		{TxConfirmed, PayoutConfirmed},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			w, ledger := newTestWallet(t, paidConfig())
			ledger.SendResult = func(Transaction, int) TxState { return tt.state }

			var log outcomeLog
			w.OnOutcome(log.add)
			w.PayoutTo(context.Background(), PendingPayment{ID: "p1", Address: "B", Amount: 10})
			w.Wait()

			if out := log.all(); len(out) != 1 || out[0].Status != tt.want {
				t.Errorf("outcomes = %+v, want %s", out, tt.want)
			}
		})
	}
}

func TestWalletAbandonsWithoutFinalDelay(t *testing.T) {
	w, ledger := newTestWallet(t, paidConfig())
	w.AttemptBudget = 2
	w.RetryDelay = 200 * time.Millisecond
	ledger.SendResult = func(Transaction, int) TxState { return TxNew }

	var log outcomeLog
	w.OnOutcome(log.add)

	start := time.Now()
	w.PayoutTo(context.Background(), PendingPayment{ID: "p1", Address: "B", Amount: 10})
	w.Wait()

	// Two sends need a single delay between them
	if elapsed := time.Since(start); elapsed >= 400*time.Millisecond {
		t.Errorf("abandoning took %v", elapsed)
	}
	if out := log.all(); len(out) != 1 || out[0].Status != PayoutAbandoned {
		t.Errorf("outcomes = %+v", out)
	}
}

func TestWalletPayoutStopsOnCancel(t *testing.T) {
	cfg := paidConfig()
	cfg.NetworkType = testNetwork
	ledger := NewMemoryLedger(testNetwork)
	ledger.SendResult = func(Transaction, int) TxState { return TxNew }

	w := NewWalletClient(cfg, ledger, testLogger())
	w.RetryDelay = time.Hour
	w.LoadWallet()
	ctx, cancel := context.WithCancel(context.Background())
	w.Connect(ctx)

	var log outcomeLog
	w.OnOutcome(log.add)
	w.PayoutTo(context.Background(), PendingPayment{ID: "p1", Address: "B", Amount: 10})
	cancel()
	w.Wait()

	if out := log.all(); len(out) != 1 || out[0].Status != PayoutAbandoned {
		t.Errorf("outcomes = %+v", out)
	}
}

func TestWalletPayoutRejectsInvalid(t *testing.T) {
	w, _ := newTestWallet(t, paidConfig())

	if err := w.PayoutTo(context.Background(), PendingPayment{ID: "p", Address: "NQ00 HOT", Amount: 1}); !errors.Is(err, ErrInvalidRecipient) {
		t.Errorf("self payout: %v", err)
	}
	if err := w.PayoutTo(context.Background(), PendingPayment{ID: "p", Address: "", Amount: 1}); !errors.Is(err, ErrInvalidRecipient) {
		t.Errorf("empty recipient: %v", err)
	}
	if err := w.PayoutTo(context.Background(), PendingPayment{ID: "p", Address: "B", Amount: 0}); err == nil {
		t.Error("zero value payout should fail")
	}

	unloaded := NewWalletClient(paidConfig(), NewMemoryLedger(testNetwork), testLogger())
	if err := unloaded.PayoutTo(context.Background(), PendingPayment{Address: "B", Amount: 1}); !errors.Is(err, ErrWalletNotLoaded) {
		t.Errorf("unloaded wallet: %v", err)
	}
}

func entryProof(t *testing.T, tx Transaction) PaymentProof {
	t.Helper()
	proof, err := EncodeProof(tx)
	if err != nil {
		t.Fatalf("encode proof: %v", err)
	}
	return proof
}

func TestWalletVerifyTransactionIntegrity(t *testing.T) {
	w, _ := newTestWallet(t, paidConfig())
	valid := Transaction{
		Sender: "NQ22 PLAYER", Recipient: "NQ00 HOT",
		Value: 10000, Fee: 138, Network: testNetwork, Proof: []byte("sig"),
	}

	if !w.VerifyTransactionIntegrity(entryProof(t, valid)) {
		t.Error("valid entry rejected")
	}

	tests := []struct {
		name   string
		mutate func(*Transaction)
	}{
		{"unsigned", func(tx *Transaction) { tx.Proof = nil }},
		{"wrong recipient", func(tx *Transaction) { tx.Recipient = "NQ99 OTHER" }},
		{"short value", func(tx *Transaction) { tx.Value = 9999 }},
		{"low fee", func(tx *Transaction) { tx.Fee = 1 }},
		{"wrong network", func(tx *Transaction) { tx.Network = "main" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := valid
			tt.mutate(&tx)
			if w.VerifyTransactionIntegrity(entryProof(t, tx)) {
				t.Error("invalid entry accepted")
			}
		})
	}

	if w.VerifyTransactionIntegrity(PaymentProof{Transaction: []byte{0xc1}}) {
		t.Error("garbage proof accepted")
	}
}

func TestWalletVerifyTransactionState(t *testing.T) {
	w, ledger := newTestWallet(t, paidConfig())
	w.AttemptBudget = 3

	tx := Transaction{Sender: "NQ22 PLAYER", Recipient: "NQ00 HOT", Value: 10000, Fee: 138, Network: testNetwork, Proof: []byte("sig")}
	proof := entryProof(t, tx)
	ctx := context.Background()

	if w.VerifyTransactionState(ctx, proof) {
		t.Error("unknown transaction accepted")
	}

	ledger.Record(tx.Hash(), TxInvalidated)
	if w.VerifyTransactionState(ctx, proof) {
		t.Error("invalidated transaction accepted")
	}

	ledger.Record(tx.Hash(), TxMined)
	if !w.VerifyTransactionState(ctx, proof) {
		t.Error("mined transaction rejected")
	}

	// Pushed notifications win over polling
	other := tx
	other.Value = 20000
	w.OnTransaction(other.Hash(), TxPending)
	if !w.VerifyTransactionState(ctx, entryProof(t, other)) {
		t.Error("transaction seen via notification rejected")
	}
}

func TestWalletRecentTableIsBounded(t *testing.T) {
	w, _ := newTestWallet(t, paidConfig())
	for i := 0; i <= recentTxLimit; i++ {
		w.OnTransaction(fmt.Sprintf("h%d", i), TxPending)
	}
	if len(w.recent) != recentTxLimit {
		t.Errorf("recent table holds %d entries", len(w.recent))
	}
	if _, ok := w.recentState("h0"); ok {
		t.Error("oldest entry should be evicted")
	}
	if s, ok := w.recentState(fmt.Sprintf("h%d", recentTxLimit)); !ok || s != TxPending {
		t.Error("newest entry missing")
	}

	// Updating an existing hash does not grow the table
	w.OnTransaction("h5", TxMined)
	if len(w.recentOrder) != recentTxLimit {
		t.Errorf("order length %d", len(w.recentOrder))
	}
}

func TestWalletVerifySignedMessage(t *testing.T) {
	w, _ := newTestWallet(t, earnConfig())
	if !w.VerifySignedMessage(SignedMessage{Address: "A", Message: "join", PublicKey: []byte{1}, Signature: []byte{2}}) {
		t.Error("signed message rejected")
	}
	if w.VerifySignedMessage(SignedMessage{Address: "A"}) {
		t.Error("unsigned message accepted")
	}
}

func TestMemoryLedgerMine(t *testing.T) {
	ledger := NewMemoryLedger(testNetwork)
	ledger.Credit("A", 1000)

	tx := Transaction{Sender: "A", Recipient: "B", Value: 300, Fee: 10, Network: testNetwork}
	state, err := ledger.SendTransaction(context.Background(), tx)
	if err != nil || state != TxPending {
		t.Fatalf("send: %v %v", state, err)
	}
	ledger.Mine()

	if b, _ := ledger.Balance(context.Background(), "A"); b != 690 {
		t.Errorf("sender balance = %d", b)
	}
	if b, _ := ledger.Balance(context.Background(), "B"); b != 300 {
		t.Errorf("recipient balance = %d", b)
	}
	if s, _ := ledger.TransactionState(context.Background(), tx.Hash()); s != TxMined {
		t.Errorf("state = %v", s)
	}

	// Overspend is invalidated
	big := Transaction{Sender: "B", Recipient: "A", Value: 1000, Network: testNetwork}
	if s, _ := ledger.SendTransaction(context.Background(), big); s != TxInvalidated {
		t.Errorf("overspend state = %v", s)
	}
	if _, err := ledger.SendTransaction(context.Background(), Transaction{Network: "main"}); !errors.Is(err, ErrUnknownNetwork) {
		t.Errorf("wrong network: %v", err)
	}
}

func TestTransactionHashIgnoresProof(t *testing.T) {
	a := Transaction{Sender: "A", Recipient: "B", Value: 1, Network: testNetwork}
	b := a
	b.Proof = []byte("sig")
	if a.Hash() != b.Hash() {
		t.Error("hash should not cover the signature")
	}
	b.Value = 2
	if a.Hash() == b.Hash() {
		t.Error("hash should change with value")
	}
	if len(a.Hash()) != 64 {
		t.Errorf("hash length %d", len(a.Hash()))
	}
}
