package main

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	ticketExpiry     = 10 * time.Minute
	defaultName      = "guest"
	maxNameLen       = 16
	loginRateWindow  = 60 * time.Second
	maxLoginAttempts = 10
)

var ErrInvalidTicket = errors.New("invalid join ticket")

// JoinClaims is the payload of a join ticket. Subject is the tank identity.
type JoinClaims struct {
	Name    string         `json:"name,omitempty"`
	Address string         `json:"addr,omitempty"`
	Proof   *PaymentProof  `json:"proof,omitempty"`
	Message *SignedMessage `json:"msg,omitempty"`
	jwt.RegisteredClaims
}

// Auth verifies join tickets and guards the panel
type Auth struct {
	secret    []byte
	panelUser string
	panelHash []byte

	// Rate limiting for panel logins (IP -> attempts)
	rateMu  sync.Mutex
	rateMap map[string]*rateEntry
}

type rateEntry struct {
	Count   int
	ResetAt time.Time
}

// NewAuth creates an Auth. Without a configured secret a random one is
// generated, which invalidates tickets on restart.
func NewAuth(cfg Config) *Auth {
	secret := []byte(cfg.TicketSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			panic("failed to generate ticket secret: " + err.Error())
		}
	}
	return &Auth{
		secret:    secret,
		panelUser: cfg.PanelUser,
		panelHash: []byte(cfg.PanelPasswordHash),
		rateMap:   make(map[string]*rateEntry),
	}
}

// IssueTicket signs a join ticket
func (a *Auth) IssueTicket(c JoinClaims) (string, error) {
	now := time.Now()
	if c.IssuedAt == nil {
		c.IssuedAt = jwt.NewNumericDate(now)
	}
	if c.ExpiresAt == nil {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(ticketExpiry))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString(a.secret)
}

// ParseTicket validates a ticket and normalises the display name
func (a *Auth) ParseTicket(tokenStr string) (*JoinClaims, error) {
	var claims JoinClaims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidTicket)
	}
	claims.Name = sanitizeName(claims.Name)
	return &claims, nil
}

func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return defaultName
	}
	if r := []rune(name); len(r) > maxNameLen {
		name = string(r[:maxNameLen])
	}
	return name
}

// CheckPanel verifies panel credentials against the configured bcrypt hash
func (a *Auth) CheckPanel(user, password, ip string) bool {
	if len(a.panelHash) == 0 {
		return false
	}
	if !a.checkRate(ip) {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(user), []byte(a.panelUser)) != 1 {
		return false
	}
	return bcrypt.CompareHashAndPassword(a.panelHash, []byte(password)) == nil
}

// PanelMiddleware guards handlers with basic auth
func (a *Auth) PanelMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || !a.CheckPanel(user, pass, extractIP(r)) {
			w.Header().Set("WWW-Authenticate", `Basic realm="hextank"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkRate returns true if the IP is allowed another attempt
func (a *Auth) checkRate(ip string) bool {
	a.rateMu.Lock()
	defer a.rateMu.Unlock()

	now := time.Now()
	entry, ok := a.rateMap[ip]
	if !ok || now.After(entry.ResetAt) {
		a.rateMap[ip] = &rateEntry{Count: 1, ResetAt: now.Add(loginRateWindow)}
		return true
	}
	entry.Count++
	return entry.Count <= maxLoginAttempts
}
