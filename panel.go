package main

import (
	"net/http"
	"strconv"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	defaultPayoutRows = 50
	maxPayoutRows     = 500
	qrSize            = 256
)

// Panel serves the operator endpoints
type Panel struct {
	hub *Hub
	db  *DB // nil when no journal is configured
}

func NewPanel(hub *Hub, db *DB) *Panel {
	return &Panel{hub: hub, db: db}
}

type panelStatus struct {
	RoomType    RoomType     `json:"roomType"`
	Connections int          `json:"connections"`
	Address     string       `json:"address,omitempty"`
	Balance     int64        `json:"balance"`
	Consensus   bool         `json:"consensus"`
	Rooms       []RoomStatus `json:"rooms"`
}

// Status reports rooms, connections and the wallet
func (p *Panel) Status(w http.ResponseWriter, r *http.Request) {
	st := panelStatus{
		RoomType:    p.hub.cfg.RoomType,
		Connections: p.hub.ClientCount(),
		Rooms:       p.hub.rooms.Statuses(r.Context()),
	}
	if wc := p.hub.wallet; wc != nil {
		st.Address = wc.Address()
		st.Balance = wc.TemporaryBalance()
		st.Consensus = wc.ConsensusEstablished()
	}
	if st.Rooms == nil {
		st.Rooms = []RoomStatus{}
	}
	respondJSON(w, http.StatusOK, st)
}

// Payouts lists the newest journal rows
func (p *Panel) Payouts(w http.ResponseWriter, r *http.Request) {
	if p.db == nil {
		respondJSON(w, http.StatusOK, []PayoutRow{})
		return
	}
	limit := defaultPayoutRows
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxPayoutRows)
	}
	rows, err := p.db.RecentPayouts(limit)
	if err != nil {
		p.hub.log.Error("panel: payouts", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []PayoutRow{}
	}
	respondJSON(w, http.StatusOK, rows)
}

// DepositQR renders the hot wallet address for topping up
func (p *Panel) DepositQR(w http.ResponseWriter, r *http.Request) {
	if p.hub.wallet == nil || p.hub.wallet.Address() == "" {
		http.Error(w, "no wallet", http.StatusNotFound)
		return
	}
	png, err := qrcode.Encode(p.hub.wallet.Address(), qrcode.Medium, qrSize)
	if err != nil {
		p.hub.log.Error("panel: qr", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}
