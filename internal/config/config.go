package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is shared by the relay server and the headless peer. Every field
// can be set through a WB_* environment variable or a .env file.
type Config struct {
	// Relay server
	Addr         string        // WB_ADDR
	ClientBuffer int           // WB_CLIENT_BUFFER, frames queued per relay client
	ReadTimeout  time.Duration // WB_READ_TIMEOUT, idle limit per relay client
	MDNS         bool          // WB_MDNS, advertise the relay on the LAN
	MDNSService  string        // WB_MDNS_SERVICE

	// Peer
	RelayURL             string        // WB_RELAY_URL
	Room                 string        // WB_ROOM
	Username             string        // WB_USERNAME
	FlushInterval        time.Duration // WB_FLUSH_INTERVAL, 0 flushes on explicit ticks only
	MaxReconnectAttempts int           // WB_MAX_RECONNECT
	ReconnectDelay       time.Duration // WB_RECONNECT_DELAY
	WriteTimeout         time.Duration // WB_WRITE_TIMEOUT
	RequestStateOnJoin   bool          // WB_REQUEST_STATE

	// Logging
	LogLevel string // WB_LOG_LEVEL
	LogFile  string // WB_LOG_FILE, empty logs to stderr
}

func Default() Config {
	return Config{
		Addr:                 ":8080",
		ClientBuffer:         64,
		ReadTimeout:          60 * time.Second,
		MDNSService:          "_whiteboard._tcp",
		RelayURL:             "ws://localhost:8080/ws",
		Username:             "anonymous",
		FlushInterval:        50 * time.Millisecond,
		MaxReconnectAttempts: 5,
		ReconnectDelay:       time.Second,
		WriteTimeout:         3 * time.Second,
		RequestStateOnJoin:   true,
		LogLevel:             "info",
	}
}

// Load starts from Default, merges envFile when it exists and then applies
// the WB_* variables of the process environment. Variables already set in
// the environment win over the file.
func Load(envFile string) (Config, error) {
	cfg := Default()
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("WB_ADDR", &cfg.Addr)
	integer("WB_CLIENT_BUFFER", &cfg.ClientBuffer)
	duration("WB_READ_TIMEOUT", &cfg.ReadTimeout)
	boolean("WB_MDNS", &cfg.MDNS)
	str("WB_MDNS_SERVICE", &cfg.MDNSService)
	str("WB_RELAY_URL", &cfg.RelayURL)
	str("WB_ROOM", &cfg.Room)
	str("WB_USERNAME", &cfg.Username)
	duration("WB_FLUSH_INTERVAL", &cfg.FlushInterval)
	integer("WB_MAX_RECONNECT", &cfg.MaxReconnectAttempts)
	duration("WB_RECONNECT_DELAY", &cfg.ReconnectDelay)
	duration("WB_WRITE_TIMEOUT", &cfg.WriteTimeout)
	boolean("WB_REQUEST_STATE", &cfg.RequestStateOnJoin)
	str("WB_LOG_LEVEL", &cfg.LogLevel)
	str("WB_LOG_FILE", &cfg.LogFile)

	if err := errors.Join(errs...); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

var ErrInvalid = errors.New("invalid config")

func (c Config) Validate() error {
	switch {
	case c.ClientBuffer <= 0:
		return fmt.Errorf("%w: client buffer must be positive", ErrInvalid)
	case c.MaxReconnectAttempts <= 0:
		return fmt.Errorf("%w: max reconnect attempts must be positive", ErrInvalid)
	case c.FlushInterval < 0 || c.ReconnectDelay < 0 || c.WriteTimeout < 0:
		return fmt.Errorf("%w: negative duration", ErrInvalid)
	}
	return nil
}
