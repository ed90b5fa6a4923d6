package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/crypto/blake2b"
)

// TxState is the ledger's view of a transaction
type TxState string

const (
	TxUnknown     TxState = "UNKNOWN"
	TxNew         TxState = "NEW"
	TxPending     TxState = "PENDING"
	TxMined       TxState = "MINED"
	TxConfirmed   TxState = "CONFIRMED"
	TxInvalidated TxState = "INVALIDATED"
	TxExpired     TxState = "EXPIRED"
)

// Accepted reports whether the ledger has taken the transaction in
func (s TxState) Accepted() bool {
	return s == TxPending || s == TxMined || s == TxConfirmed
}

// Final reports whether the transaction can no longer be accepted
func (s TxState) Final() bool {
	return s == TxInvalidated || s == TxExpired
}

// ConsensusState tracks ledger sync
type ConsensusState string

const (
	ConsensusConnecting  ConsensusState = "connecting"
	ConsensusSyncing     ConsensusState = "syncing"
	ConsensusEstablished ConsensusState = "established"
)

var ErrUnknownNetwork = errors.New("unknown network")

// Transaction is a value transfer. Proof is the sender's signature and is
// excluded from the hash.
type Transaction struct {
	Sender        string `msgpack:"s"`
	Recipient     string `msgpack:"r"`
	Value         int64  `msgpack:"v"`
	Fee           int64  `msgpack:"f"`
	ValidityStart uint32 `msgpack:"h"`
	Network       string `msgpack:"n"`
	ExtraData     []byte `msgpack:"x,omitempty"`
	Proof         []byte `msgpack:"-"`
}

// Hash returns the hex blake2b-256 digest of the unsigned transaction
func (tx Transaction) Hash() string {
	b, err := msgpack.Marshal(tx)
	if err != nil {
		return ""
	}
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// PaymentProof is a signed entry payment as submitted by a client
type PaymentProof struct {
	Transaction []byte `json:"tx"`
	Signature   []byte `json:"sig"`
}

// Decode unpacks the proof into the transaction it signs
func (p PaymentProof) Decode() (Transaction, error) {
	var tx Transaction
	if err := msgpack.Unmarshal(p.Transaction, &tx); err != nil {
		return Transaction{}, fmt.Errorf("decode proof: %w", err)
	}
	tx.Proof = p.Signature
	return tx, nil
}

// EncodeProof packs a signed transaction the way clients submit it
func EncodeProof(tx Transaction) (PaymentProof, error) {
	b, err := msgpack.Marshal(tx)
	if err != nil {
		return PaymentProof{}, err
	}
	return PaymentProof{Transaction: b, Signature: tx.Proof}, nil
}

// SignedMessage proves control of an address, used by earn-room entries
type SignedMessage struct {
	Address   string `json:"addr"`
	Message   string `json:"msg"`
	PublicKey []byte `json:"pk"`
	Signature []byte `json:"sig"`
}

// LedgerListener receives ledger notifications. Calls may arrive on any
// goroutine.
type LedgerListener interface {
	OnConsensus(state ConsensusState)
	OnHead(height uint32)
	OnTransaction(hash string, state TxState)
}

// Ledger is the node the wallet client talks to
type Ledger interface {
	Subscribe(l LedgerListener)
	HeadHeight(ctx context.Context) (uint32, error)
	Balance(ctx context.Context, address string) (int64, error)
	SendTransaction(ctx context.Context, tx Transaction) (TxState, error)
	TransactionState(ctx context.Context, hash string) (TxState, error)
	VerifyTransaction(tx Transaction) bool
	VerifySignedMessage(msg SignedMessage) bool
}

// MemoryLedger is an in-process Ledger. Signatures are accepted when they
// are non-empty; balances move when a block is mined.
type MemoryLedger struct {
	mu        sync.Mutex
	network   string
	height    uint32
	balances  map[string]int64
	txs       map[string]TxState
	mempool   []Transaction
	sent      []Transaction
	listeners []LedgerListener

	// SendResult, when set, overrides the state returned for a submission
	SendResult func(tx Transaction, attempt int) TxState
	attempts   map[string]int
}

func NewMemoryLedger(network string) *MemoryLedger {
	return &MemoryLedger{
		network:  network,
		height:   1,
		balances: make(map[string]int64),
		txs:      make(map[string]TxState),
		attempts: make(map[string]int),
	}
}

func (l *MemoryLedger) Subscribe(listener LedgerListener) {
	l.mu.Lock()
	l.listeners = append(l.listeners, listener)
	l.mu.Unlock()
}

func (l *MemoryLedger) snapshotListeners() []LedgerListener {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]LedgerListener(nil), l.listeners...)
}

// SetConsensus broadcasts a consensus change
func (l *MemoryLedger) SetConsensus(state ConsensusState) {
	for _, ln := range l.snapshotListeners() {
		ln.OnConsensus(state)
	}
}

// Credit adds funds to an address and announces a new head
func (l *MemoryLedger) Credit(address string, amount int64) {
	l.mu.Lock()
	l.balances[address] += amount
	l.height++
	h := l.height
	l.mu.Unlock()

	for _, ln := range l.snapshotListeners() {
		ln.OnHead(h)
	}
}

// Mine applies the mempool, marks its transactions mined and announces the
// new head.
func (l *MemoryLedger) Mine() {
	l.mu.Lock()
	l.height++
	h := l.height
	mined := l.mempool
	l.mempool = nil
	for _, tx := range mined {
		l.balances[tx.Sender] -= tx.Value + tx.Fee
		l.balances[tx.Recipient] += tx.Value
		l.txs[tx.Hash()] = TxMined
	}
	l.mu.Unlock()

	listeners := l.snapshotListeners()
	for _, tx := range mined {
		for _, ln := range listeners {
			ln.OnTransaction(tx.Hash(), TxMined)
		}
	}
	for _, ln := range listeners {
		ln.OnHead(h)
	}
}

func (l *MemoryLedger) HeadHeight(ctx context.Context) (uint32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.height, nil
}

func (l *MemoryLedger) Balance(ctx context.Context, address string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[address], nil
}

func (l *MemoryLedger) SendTransaction(ctx context.Context, tx Transaction) (TxState, error) {
	if tx.Network != l.network {
		return TxInvalidated, fmt.Errorf("ledger: %w %q", ErrUnknownNetwork, tx.Network)
	}
	hash := tx.Hash()

	l.mu.Lock()
	l.attempts[hash]++
	attempt := l.attempts[hash]
	l.sent = append(l.sent, tx)

	state := TxPending
	switch {
	case l.SendResult != nil:
		state = l.SendResult(tx, attempt)
	case l.txs[hash].Accepted():
		state = l.txs[hash]
	case l.balances[tx.Sender] < tx.Value+tx.Fee:
		state = TxInvalidated
	}
	if state == TxPending && !l.txs[hash].Accepted() {
		l.mempool = append(l.mempool, tx)
	}
	l.txs[hash] = state
	l.mu.Unlock()

	for _, ln := range l.snapshotListeners() {
		ln.OnTransaction(hash, state)
	}
	return state, nil
}

func (l *MemoryLedger) TransactionState(ctx context.Context, hash string) (TxState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.txs[hash]; ok {
		return s, nil
	}
	return TxUnknown, nil
}

// Record stores a transaction state directly, as if observed on chain
func (l *MemoryLedger) Record(hash string, state TxState) {
	l.mu.Lock()
	l.txs[hash] = state
	l.mu.Unlock()
}

func (l *MemoryLedger) VerifyTransaction(tx Transaction) bool {
	return len(tx.Proof) > 0 && tx.Network == l.network
}

func (l *MemoryLedger) VerifySignedMessage(msg SignedMessage) bool {
	return msg.Address != "" && len(msg.PublicKey) > 0 && len(msg.Signature) > 0
}

// Sent returns every submission received, including resends
func (l *MemoryLedger) Sent() []Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Transaction(nil), l.sent...)
}
