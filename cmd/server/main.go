package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kvsrv/kvsrv/internal/bufpool"
	"github.com/kvsrv/kvsrv/internal/config"
	"github.com/kvsrv/kvsrv/internal/connection"
	"github.com/kvsrv/kvsrv/internal/executor"
	"github.com/kvsrv/kvsrv/internal/logging"
	"github.com/kvsrv/kvsrv/internal/metrics"
	"github.com/kvsrv/kvsrv/internal/storage"
	"github.com/kvsrv/kvsrv/internal/storage/badgerstore"
	"github.com/kvsrv/kvsrv/internal/storage/memstore"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "kvsrv",
	Short: "kvsrv is a persistent key-value server",
	Long: `kvsrv serves a line-oriented key-value protocol over TCP,
backed by either an in-process map or an on-disk LSM-tree store.
Configuration can be set via command line flags or environment
variables of the form KVSRV_<flag>.`,
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the kvsrv server",
	RunE:  runServer,
}

func init() {
	config.RegisterFlags(serverCmd)
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(cliCmd)
}

func main() {
	config.InitEnv()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New("info")
	slog.SetDefault(logger)

	if cfg.Stats {
		metrics.Enable()
	}
	metrics.InitInfo(version, runtime.Version(), runtime.GOOS, runtime.GOARCH)

	store, err := openStorage(cfg)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("closing storage", "error", err)
		}
	}()

	exec := executor.New(store)
	bufs := bufpool.New()

	listener, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Addr(), err)
	}
	logger.Info("listening", "addr", cfg.Addr(), "storage", cfg.Storage)

	var exporter *metrics.Exporter
	if cfg.MetricsAddr != "" {
		exporter = metrics.NewExporter(cfg.MetricsAddr)
		go func() {
			if err := exporter.Start(); err != nil && !errors.Is(err, net.ErrClosed) {
				logger.Error("metrics exporter stopped", "error", err)
			}
		}()
		logger.Info("metrics listening", "addr", cfg.MetricsAddr)
	}

	connOpts := connection.Options{
		Tune:         connection.DefaultTuneOptions(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PipelineCap:  cfg.PipelineCap,
		MaxLineLen:   cfg.MaxLine,
	}
	connOpts.Tune.SocketBufferSize = cfg.SocketBuffer

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup
	sem := make(chan struct{}, cfg.MaxConns)

	go func() {
		<-sigCh
		logger.Info("shutting down")
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}
			logger.Error("accept", "error", err)
			continue
		}

		select {
		case sem <- struct{}{}:
		default:
			logger.Warn("connection limit reached, rejecting", "max_conns", cfg.MaxConns)
			_ = conn.Close()
			continue
		}

		wg.Add(1)
		go func(c net.Conn) {
			defer wg.Done()
			defer func() { <-sem }()
			defer c.Close()

			worker := connection.NewWorker(c, exec, bufs, connOpts)
			if err := worker.Serve(); err != nil && !errors.Is(err, net.ErrClosed) {
				logger.Debug("connection closed", "remote", c.RemoteAddr(), "error", err)
			}
		}(conn)
	}

	wg.Wait()
	if exporter != nil {
		_ = exporter.Stop()
	}
	return nil
}

func openStorage(cfg *config.Config) (storage.Facade, error) {
	switch cfg.Storage {
	case "badger":
		return badgerstore.Open(cfg.DataDir)
	default:
		return memstore.New(), nil
	}
}
