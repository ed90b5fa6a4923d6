package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// RoomType governs whether settlement is active and how refunds are computed
type RoomType string

const (
	RoomFree RoomType = "FREE"
	RoomEarn RoomType = "EARN"
	RoomPaid RoomType = "PAID"
)

const (
	defaultMaxClients = 25
	defaultServerAddr = ":2567"
	// Share of an entry fee that may flow back out as prizes
	maxPrizeRatio = 0.9
	// Transactions touching one paid entry: game fee, up to five prizes, refund
	paidEntryTransactions = 7
)

var (
	ErrInvalidRoomType = errors.New("invalid room type")
	ErrMissingSetting  = errors.New("missing setting")
)

// Config is built once at startup and handed to every room
type Config struct {
	RoomType    RoomType
	MaxClients  int
	Test        bool
	ServerAddr  string
	NetworkType string

	HotSeed     string
	HotAddress  string
	ColdAddress string

	// Lunas
	EntryFee       int64
	TransactionFee int64
	Prize          int64
	ColdGameFee    int64

	PanelUser         string
	PanelPasswordHash string
	TicketSecret      string
	JournalPath       string
}

// Monetized reports whether the room settles payouts at all
func (c Config) Monetized() bool {
	return c.RoomType == RoomEarn || c.RoomType == RoomPaid
}

// LoadConfig reads an optional .env file followed by the process environment
func LoadConfig(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load env file: %w", err)
	}

	cfg := Config{
		RoomType:          RoomType(strings.ToUpper(envOr("ROOM_TYPE", string(RoomFree)))),
		ServerAddr:        envOr("SERVER_ADDR", defaultServerAddr),
		NetworkType:       os.Getenv("NIMIQ_NETWORK_TYPE"),
		HotSeed:           os.Getenv("NIMIQ_HOT_SEED"),
		HotAddress:        os.Getenv("NIMIQ_HOT_ADDRESS"),
		ColdAddress:       os.Getenv("NIMIQ_COLD_ADDRESS"),
		PanelUser:         envOr("PANEL_USER", "hex"),
		PanelPasswordHash: os.Getenv("PANEL_PASSWORD_HASH"),
		TicketSecret:      os.Getenv("JOIN_TICKET_SECRET"),
		JournalPath:       os.Getenv("JOURNAL_PATH"),
	}

	var err error
	if cfg.MaxClients, err = envInt("MAX_CLIENTS", defaultMaxClients); err != nil {
		return Config{}, err
	}
	if cfg.Test, err = envBool("TEST"); err != nil {
		return Config{}, err
	}
	if cfg.EntryFee, err = envLunas("NIMIQ_LUNA_ENTRY_FEE"); err != nil {
		return Config{}, err
	}
	if cfg.TransactionFee, err = envLunas("NIMIQ_LUNA_TRANSACTION_FEE"); err != nil {
		return Config{}, err
	}
	if cfg.Prize, err = envLunas("NIMIQ_LUNA_PRIZE"); err != nil {
		return Config{}, err
	}
	if cfg.ColdGameFee, err = envLunas("NIMIQ_LUNA_COLD_GAME_FEE"); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings each room type depends on
func (c Config) Validate() error {
	switch c.RoomType {
	case RoomFree, RoomEarn, RoomPaid:
	default:
		return fmt.Errorf("config: %w %q", ErrInvalidRoomType, c.RoomType)
	}
	if c.MaxClients <= 0 {
		return fmt.Errorf("config: MAX_CLIENTS must be positive, got %d", c.MaxClients)
	}
	if !c.Monetized() {
		return nil
	}

	if c.HotAddress == "" {
		return fmt.Errorf("config: %w NIMIQ_HOT_ADDRESS", ErrMissingSetting)
	}
	if c.TransactionFee <= 0 {
		return fmt.Errorf("config: %w NIMIQ_LUNA_TRANSACTION_FEE", ErrMissingSetting)
	}
	if c.Prize <= 0 {
		return fmt.Errorf("config: %w NIMIQ_LUNA_PRIZE", ErrMissingSetting)
	}
	if c.RoomType != RoomPaid {
		return nil
	}

	if c.ColdAddress == "" {
		return fmt.Errorf("config: %w NIMIQ_COLD_ADDRESS", ErrMissingSetting)
	}
	if c.EntryFee <= 0 {
		return fmt.Errorf("config: %w NIMIQ_LUNA_ENTRY_FEE", ErrMissingSetting)
	}
	if c.ColdGameFee <= 0 {
		return fmt.Errorf("config: %w NIMIQ_LUNA_COLD_GAME_FEE", ErrMissingSetting)
	}
	totalPrize := float64(TankMaxHealth*c.Prize + paidEntryTransactions*c.TransactionFee)
	totalEntry := float64(c.EntryFee + paidEntryTransactions*c.TransactionFee)
	if totalPrize/totalEntry > maxPrizeRatio {
		return fmt.Errorf("config: prizes pay out %.2f of the entry fee, limit is %.2f",
			totalPrize/totalEntry, maxPrizeRatio)
	}
	return nil
}

// NewLogger returns the process logger; test rooms log nothing
func NewLogger(cfg Config) *slog.Logger {
	if cfg.Test {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func envBool(key string) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}

// Empty fee settings are valid for free rooms and read as zero
func envLunas(key string) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("config: %s must not be negative", key)
	}
	return n, nil
}
