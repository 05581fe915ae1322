package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the bot process reads from the environment.
type Config struct {
	// Addr is the listen address for the admin/webhook HTTP surface.
	Addr string
	// DatabaseURL is the PostgreSQL connection string. Required.
	DatabaseURL string
	// GatewayURL is the chat gateway endpoint outbound messages are posted to.
	GatewayURL string
	// AllowedChats is the access allow-list. Empty means open access.
	AllowedChats []int64
	// RemindAt is the local time of day for the daily reminder sweep.
	RemindAt RemindTime
	// Location is the timezone the sweep schedule is evaluated in.
	Location *time.Location
	// RemindDays are the days-before-expiry thresholds for the sweep.
	RemindDays []int
}

// RemindTime is a wall-clock time of day.
type RemindTime struct {
	Hour   int
	Minute int
}

func (t RemindTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// DefaultRemindDays is the threshold set used when REMIND_DAYS is unset.
var DefaultRemindDays = []int{25, 20, 15, 10, 5, 0}

// FromEnv builds a Config from environment variables so main stays lean.
// Invalid optional values fall back to defaults; a missing DATABASE_URL is
// left empty for main to treat as fatal.
func FromEnv() Config {
	cfg := Config{
		Addr:        envOr("SIGREG_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		GatewayURL:  os.Getenv("GATEWAY_URL"),
		RemindAt:    RemindTime{Hour: 9},
		RemindDays:  DefaultRemindDays,
	}

	cfg.AllowedChats = parseChatList(os.Getenv("ALLOWED_CHATS"))

	if at, err := ParseRemindTime(os.Getenv("REMIND_AT")); err == nil {
		cfg.RemindAt = at
	}

	cfg.Location = time.Local
	if tz := os.Getenv("TZ"); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			cfg.Location = loc
		}
	}

	if days := parseDayList(os.Getenv("REMIND_DAYS")); len(days) > 0 {
		cfg.RemindDays = days
	}

	return cfg
}

// ParseRemindTime parses "HH:MM".
func ParseRemindTime(s string) (RemindTime, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return RemindTime{}, fmt.Errorf("remind time must be HH:MM, got %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return RemindTime{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return RemindTime{}, fmt.Errorf("invalid minute in %q", s)
	}
	return RemindTime{Hour: h, Minute: m}, nil
}

func parseChatList(s string) []int64 {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func parseDayList(s string) []int {
	var days []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		days = append(days, d)
	}
	return days
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
