package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Addr            string
	LogLevel        string
	LogDev          bool
	OriginPatterns  []string
	PingInterval    time.Duration
	WriteTimeout    time.Duration
	ReadLimit       int64
	OutboxSize      int
	DatabaseURL     string // empty disables the journal
	JournalBuffer   int
	ShutdownTimeout time.Duration

	AssignmentMemory int // client ids whose assignment survives a disconnect
}

func Default() Config {
	return Config{
		Addr:            ":4000",
		LogLevel:        "info",
		OriginPatterns:  []string{"*"},
		PingInterval:    25 * time.Second,
		WriteTimeout:    5 * time.Second,
		ReadLimit:       32 << 10,
		OutboxSize:      16,
		JournalBuffer:   256,
		ShutdownTimeout: 10 * time.Second,

		AssignmentMemory: 10000,
	}
}

// Load reads the given .env files (missing files are fine) and then the
// process environment.
func Load(files ...string) (Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from any key lookup, which keeps tests off
// the real environment.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	c := Default()
	p := parser{lookup: lookup}

	if port, ok := lookup("PORT"); ok && port != "" {
		c.Addr = ":" + port
	}
	p.str("ADDR", &c.Addr)
	p.str("LOG_LEVEL", &c.LogLevel)
	p.boolean("LOG_DEV", &c.LogDev)
	p.list("WS_ORIGIN_PATTERNS", &c.OriginPatterns)
	p.duration("WS_PING_INTERVAL", &c.PingInterval)
	p.duration("WS_WRITE_TIMEOUT", &c.WriteTimeout)
	p.int64("WS_READ_LIMIT", &c.ReadLimit)
	p.integer("OUTBOX_SIZE", &c.OutboxSize)
	p.str("DATABASE_URL", &c.DatabaseURL)
	p.integer("JOURNAL_BUFFER", &c.JournalBuffer)
	p.duration("SHUTDOWN_TIMEOUT", &c.ShutdownTimeout)
	p.integer("ASSIGNMENT_MEMORY", &c.AssignmentMemory)

	if len(p.errs) > 0 {
		return Config{}, errors.Join(p.errs...)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: empty listen address", ErrInvalidConfig)
	case c.OutboxSize < 1:
		return fmt.Errorf("%w: OUTBOX_SIZE must be positive", ErrInvalidConfig)
	case c.JournalBuffer < 1:
		return fmt.Errorf("%w: JOURNAL_BUFFER must be positive", ErrInvalidConfig)
	case c.PingInterval <= 0 || c.WriteTimeout <= 0:
		return fmt.Errorf("%w: websocket intervals must be positive", ErrInvalidConfig)
	case c.ReadLimit < 1:
		return fmt.Errorf("%w: WS_READ_LIMIT must be positive", ErrInvalidConfig)
	case c.AssignmentMemory < 0:
		return fmt.Errorf("%w: ASSIGNMENT_MEMORY must not be negative", ErrInvalidConfig)
	}
	return nil
}

type parser struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (p *parser) get(key string) (string, bool) {
	v, ok := p.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (p *parser) fail(key, v string, err error) {
	p.errs = append(p.errs, fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, key, v, err))
}

func (p *parser) str(key string, dst *string) {
	if v, ok := p.get(key); ok {
		*dst = v
	}
}

func (p *parser) list(key string, dst *[]string) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	*dst = out
}

func (p *parser) boolean(key string, dst *bool) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return
	}
	*dst = b
}

func (p *parser) integer(key string, dst *int) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return
	}
	*dst = n
}

func (p *parser) int64(key string, dst *int64) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.fail(key, v, err)
		return
	}
	*dst = n
}

func (p *parser) duration(key string, dst *time.Duration) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return
	}
	*dst = d
}
