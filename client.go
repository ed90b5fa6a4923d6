package main

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 8192
	sendBufSize       = 256
	maxMessagesPerSec = 120
	joinTimeout       = 5 * time.Second
)

// Client represents a WebSocket connection
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
	msgCount   int
	msgResetAt time.Time

	// Room membership, written by the read pump and by paid-join checks
	mu       sync.Mutex
	room     *Room
	identity string
	joining  bool
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		remoteAddr: remoteAddr,
	}
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Warn("ws: read error", "remote", c.remoteAddr, "err", err)
			}
			break
		}

		// Rate limiting
		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			c.hub.log.Warn("ws: rate limit exceeded, disconnecting", "remote", c.remoteAddr)
			break
		}

		if msgType == websocket.TextMessage {
			c.handleMessage(message)
		}
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// Check for binary marker (0xFF prefix from SendBinary)
			var err error
			if len(message) > 0 && message[0] == 0xFF {
				err = c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, message)
			}
			if err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendJSON sends a JSON message to the client
func (c *Client) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.hub.log.Error("ws: marshal", "err", err)
		return
	}
	c.SendRaw(data)
}

// SendRaw sends pre-marshaled bytes as a text message to the client
func (c *Client) SendRaw(data []byte) {
	defer func() { recover() }()
	select {
	case c.send <- data:
	default:
		// Client too slow, drop message
	}
}

// SendBinary sends pre-marshaled bytes as a binary WebSocket message
// Prefixes with 0xFF marker byte so WritePump can distinguish from text
func (c *Client) SendBinary(data []byte) {
	defer func() { recover() }()
	msg := make([]byte, len(data)+1)
	msg[0] = 0xFF // binary marker
	copy(msg[1:], data)
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) sendError(msg string) {
	c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: msg}})
}

// handleMessage routes incoming messages (single-pass decode via InEnvelope)
func (c *Client) handleMessage(raw []byte) {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return
	}

	switch env.T {
	case MsgJoin:
		c.handleJoin(env.D)
	case MsgCommand:
		c.handleCommand(env.D)
	case MsgLeave:
		c.leaveRoom(context.Background())
		c.SendJSON(Envelope{T: MsgLeft})
	}
}

func (c *Client) handleJoin(data json.RawMessage) {
	var msg JoinMsg
	if err := json.Unmarshal(data, &msg); err != nil || msg.Ticket == "" {
		c.sendError("missing ticket")
		return
	}
	claims, err := c.hub.auth.ParseTicket(msg.Ticket)
	if err != nil {
		c.sendError("invalid ticket")
		return
	}

	c.mu.Lock()
	busy := c.room != nil || c.joining
	if !busy {
		c.joining = true
	}
	c.mu.Unlock()
	if busy {
		c.sendError("already in a room")
		return
	}

	switch c.hub.cfg.RoomType {
	case RoomPaid:
		// Confirmation can take minutes; keep the read pump responsive
		go c.completePaidJoin(claims)
		return
	case RoomEarn:
		if claims.Message == nil || c.hub.wallet == nil || !c.hub.wallet.VerifySignedMessage(*claims.Message) {
			c.finishJoin(nil, "", errors.New("address not verified"))
			return
		}
		if claims.Address == "" {
			claims.Address = claims.Message.Address
		}
	default:
		claims.Address = ""
	}
	c.join(claims)
}

func (c *Client) completePaidJoin(claims *JoinClaims) {
	w := c.hub.wallet
	if claims.Proof == nil || w == nil {
		c.finishJoin(nil, "", ErrInsufficientEntry)
		return
	}
	if !w.VerifyTransactionIntegrity(*claims.Proof) {
		c.finishJoin(nil, "", ErrInsufficientEntry)
		return
	}
	if !c.hub.ClaimProof(*claims.Proof) {
		c.finishJoin(nil, "", errors.New("entry payment already used"))
		return
	}
	if !w.VerifyTransactionState(context.Background(), *claims.Proof) {
		c.hub.ReleaseProof(*claims.Proof)
		c.finishJoin(nil, "", errors.New("entry payment not confirmed"))
		return
	}
	if claims.Address == "" {
		if tx, err := claims.Proof.Decode(); err == nil {
			claims.Address = tx.Sender
		}
	}
	c.join(claims)
}

func (c *Client) join(claims *JoinClaims) {
	room, err := c.hub.rooms.JoinOrCreate()
	if err != nil {
		c.finishJoin(nil, "", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), joinTimeout)
	defer cancel()
	err = room.Join(ctx, claims.Subject, claims.Name, claims.Address, c)
	c.finishJoin(room, claims.Subject, err)
}

func (c *Client) finishJoin(room *Room, identity string, err error) {
	c.mu.Lock()
	c.joining = false
	if err == nil {
		c.room = room
		c.identity = identity
	}
	c.mu.Unlock()

	if err != nil {
		c.hub.log.Info("ws: join rejected", "remote", c.remoteAddr, "err", err)
		c.sendError(err.Error())
	}
}

func (c *Client) handleCommand(data json.RawMessage) {
	c.mu.Lock()
	room, id := c.room, c.identity
	c.mu.Unlock()
	if room == nil {
		return
	}
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	room.Command(context.Background(), id, payload)
}

func (c *Client) leaveRoom(ctx context.Context) {
	c.mu.Lock()
	room, id := c.room, c.identity
	c.room, c.identity = nil, ""
	c.mu.Unlock()
	if room != nil {
		room.Leave(ctx, id)
	}
}
