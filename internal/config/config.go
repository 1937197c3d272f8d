// Package config resolves kvsrv's configuration surface from command
// line flags and environment variables, following the same
// cobra/viper/godotenv wiring the retrieved dKV example uses for its
// "serve" subcommand: flags are registered on a cobra.Command, bound to
// viper, and viper falls back to KVSRV_-prefixed environment variables
// (and a .env file, if present) for anything not passed on the command
// line.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the fully resolved configuration surface for one server run.
type Config struct {
	Bind         string
	Port         int
	DataDir      string
	Storage      string
	MetricsAddr  string
	Stats        bool
	PipelineCap  int
	MaxLine      int
	MaxConns     int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	SocketBuffer int
}

// RegisterFlags adds kvsrv's configuration flags to cmd and binds them
// to viper, so every flag can also be set via its KVSRV_ environment
// variable.
func RegisterFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("bind", "0.0.0.0", "listen address")
	flags.Int("port", 6380, "listen port")
	flags.String("data-dir", "./data", "storage directory (badger backend only)")
	flags.String("storage", "memory", "storage backend: memory or badger")
	flags.String("metrics-addr", "", "Prometheus /metrics listen address (disabled if empty)")
	flags.Bool("stats", true, "enable memory-pool / buffer-pool statistics counters")
	flags.Int("pipeline-cap", 100, "per-connection pipeline queue bound")
	flags.Int("max-line", 1048576, "hard cap on a single request line, in bytes")
	flags.Int("max-conns", 10000, "listener-level concurrent-connection cap")
	flags.Duration("read-timeout", 0, "per-connection read deadline (0 disables)")
	flags.Duration("write-timeout", 0, "per-connection write deadline (0 disables)")
	flags.Int("socket-buffer", 262144, "send/receive socket buffer size, in bytes")

	_ = viper.BindPFlags(flags)
}

// InitEnv wires viper to the KVSRV_ environment namespace and loads a
// .env file from the working directory, if one exists. Call once,
// before Load.
func InitEnv() {
	_ = godotenv.Load(".env")
	viper.SetEnvPrefix("kvsrv")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// Load reads the bound flags and environment into a Config, validating
// the storage backend selection.
func Load() (*Config, error) {
	cfg := &Config{
		Bind:         viper.GetString("bind"),
		Port:         viper.GetInt("port"),
		DataDir:      viper.GetString("data-dir"),
		Storage:      viper.GetString("storage"),
		MetricsAddr:  viper.GetString("metrics-addr"),
		Stats:        viper.GetBool("stats"),
		PipelineCap:  viper.GetInt("pipeline-cap"),
		MaxLine:      viper.GetInt("max-line"),
		MaxConns:     viper.GetInt("max-conns"),
		ReadTimeout:  viper.GetDuration("read-timeout"),
		WriteTimeout: viper.GetDuration("write-timeout"),
		SocketBuffer: viper.GetInt("socket-buffer"),
	}

	switch cfg.Storage {
	case "memory", "badger":
	default:
		return nil, fmt.Errorf("config: invalid storage backend %q (want memory or badger)", cfg.Storage)
	}

	return cfg, nil
}

// Addr returns the bind address and port joined for net.Listen.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}
