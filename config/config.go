// Package config loads signaling server configuration from flags, env vars,
// and an optional file, with a file watcher that re-resolves the config on
// change (see Watch). Backed by viper + pflag, the same stack the teacher's
// config layer would sit on.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// PushBackend selects the Push Hub's fan-out transport.
type PushBackend string

const (
	PushBackendLocal PushBackend = "local"
	PushBackendAMQP  PushBackend = "amqp"
)

// Config is the fully resolved server configuration.
type Config struct {
	ListenAddr string
	PublicURL  string

	SessionTTL       time.Duration
	HeartbeatInterval time.Duration

	MailboxTTL      time.Duration
	RendezvousTTL   time.Duration
	JoinedFlagTTL   time.Duration

	StoreURL        string
	StoreRequireTLS bool
	StoreKeyPrefix  string

	PushBackend PushBackend
	AMQPURL     string

	MaxMessageListLen int
}

const (
	defaultListenAddr = "127.0.0.1:8080"
	defaultPublicURL  = "http://127.0.0.1:8080"
)

// Load reads configuration from flags (args), environment variables
// (SIGNALING_* prefix), and optionally a config file, returning the
// resolved Config plus the viper instance so callers can attach a
// live-reload watcher (see Watch).
func Load(args []string) (*Config, *viper.Viper, error) {
	fs := pflag.NewFlagSet("signaling", pflag.ContinueOnError)
	fs.String("listen-addr", defaultListenAddr, "address to listen on")
	fs.String("public-url", defaultPublicURL, "externally reachable base URL")
	fs.String("config", "", "optional config file path")

	if err := fs.Parse(args); err != nil {
		return nil, nil, fmt.Errorf("config: parse flags: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("signaling")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, nil, fmt.Errorf("config: bind flags: %w", err)
	}

	v.SetDefault("listen-addr", defaultListenAddr)
	v.SetDefault("public-url", defaultPublicURL)
	v.SetDefault("session-ttl-secs", 300)
	v.SetDefault("heartbeat-secs", 30)
	v.SetDefault("mailbox-ttl-secs", 30)
	v.SetDefault("rendezvous-ttl-secs", 30)
	v.SetDefault("joined-flag-ttl-secs", 60)
	v.SetDefault("store-url", "memory://")
	v.SetDefault("store-require-tls", true)
	v.SetDefault("store-key-prefix", "sig")
	v.SetDefault("push-backend", string(PushBackendLocal))
	v.SetDefault("amqp-url", "")
	v.SetDefault("max-message-list-len", 256)

	if cfgFile, _ := fs.GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	cfg, err := resolve(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

func resolve(v *viper.Viper) (*Config, error) {
	backend := PushBackend(v.GetString("push-backend"))
	if backend != PushBackendLocal && backend != PushBackendAMQP {
		return nil, fmt.Errorf("config: invalid push-backend %q", backend)
	}
	if backend == PushBackendAMQP && v.GetString("amqp-url") == "" {
		return nil, fmt.Errorf("config: push-backend=amqp requires amqp-url")
	}

	storeURL := v.GetString("store-url")
	requireTLS := v.GetBool("store-require-tls")
	if requireTLS && storeURL != "memory://" && !strings.HasPrefix(storeURL, "rediss://") {
		return nil, fmt.Errorf("config: store TLS required but store-url %q is not rediss://; set store-require-tls=false only for local development", storeURL)
	}

	return &Config{
		ListenAddr:        v.GetString("listen-addr"),
		PublicURL:         v.GetString("public-url"),
		SessionTTL:        time.Duration(v.GetInt64("session-ttl-secs")) * time.Second,
		HeartbeatInterval: time.Duration(v.GetInt64("heartbeat-secs")) * time.Second,
		MailboxTTL:        time.Duration(v.GetInt64("mailbox-ttl-secs")) * time.Second,
		RendezvousTTL:     time.Duration(v.GetInt64("rendezvous-ttl-secs")) * time.Second,
		JoinedFlagTTL:     time.Duration(v.GetInt64("joined-flag-ttl-secs")) * time.Second,
		StoreURL:          v.GetString("store-url"),
		StoreRequireTLS:   v.GetBool("store-require-tls"),
		StoreKeyPrefix:    v.GetString("store-key-prefix"),
		PushBackend:       backend,
		AMQPURL:           v.GetString("amqp-url"),
		MaxMessageListLen: v.GetInt("max-message-list-len"),
	}, nil
}

// Watch re-resolves the full Config whenever the bound config file changes
// and hands it to onChange; a file that no longer resolves is ignored.
// Watch applies nothing itself: what happens with the new values is up to
// onChange.
func Watch(v *viper.Viper, onChange func(*Config)) {
	v.OnConfigChange(func(_ fsnotify.Event) {
		if cfg, err := resolve(v); err == nil {
			onChange(cfg)
		}
	})
	v.WatchConfig()
}
