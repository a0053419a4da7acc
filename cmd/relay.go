package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/PolarWolf314/keysync/internal/cloud"
	"github.com/PolarWolf314/keysync/internal/configs"
	kerrors "github.com/PolarWolf314/keysync/internal/errors"
	"github.com/PolarWolf314/keysync/internal/relay"
	"github.com/PolarWolf314/keysync/internal/ui"

	"github.com/spf13/cobra"
)

const (
	relayBackendMemory = "memory"
	relayBackendRedis  = "redis"
)

var (
	relayAddr      string
	relayBackend   string
	relayRedisAddr string
)

// RelayCmd is the top-level relay command.
var RelayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the HTTP sync relay",
	Long: `Provides the HTTP relay devices use with [remote] driver = "http".

The relay keeps one zone of key records per account, either in memory or
in Redis, and exposes Prometheus metrics on /metrics.`,
	PersistentPreRun: initLogger,
}

func init() {
	addCommonFlags(RelayCmd)

	relayServeCmd.Flags().StringVar(&relayAddr, "addr", ":8080", "address to listen on")
	relayServeCmd.Flags().StringVar(&relayBackend, "backend", "", "zone storage: memory or redis (default redis if [remote] driver is redis, else memory)")
	relayServeCmd.Flags().StringVar(&relayRedisAddr, "redis-addr", "", "redis address (default [remote] addr)")

	RelayCmd.AddCommand(relayServeCmd)
}

func resetRelayServeState() {
	relayAddr = ":8080"
	relayBackend = ""
	relayRedisAddr = ""
}

var relayServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the relay until interrupted",
	Long: `Serves the relay HTTP API:

  GET  /healthz
  GET  /metrics
  GET  /v1/accounts/{account}/status
  PUT  /v1/accounts/{account}/status
  POST /v1/accounts/{account}/changes
  GET  /v1/accounts/{account}/snapshot

The memory backend loses every zone on exit and is meant for testing.`,
	Args: cobra.NoArgs,
	RunE: runRelayServe,
}

func runRelayServe(cmd *cobra.Command, args []string) error {
	Logger.Infof("Starting relay serve command")

	cfg, err := loadConfig()
	if err != nil {
		fmt.Println(formatKeyError(err))
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, name, err := openRelayBackend(ctx, cfg)
	if err != nil {
		fmt.Println(formatAccountError(err))
		if errors.Is(err, kerrors.ErrUnknownDriver) {
			return nil
		}
		return err
	}
	defer backend.Close()

	fmt.Println(ui.CheckMark() + " Relay listening on " + ui.Highlight.Sprint(relayAddr) + " with " + name + " backend")

	server := relay.NewServer(backend, relay.WithLogger(Logger.Named("relay")))
	if err := server.ListenAndServe(ctx, relayAddr); err != nil {
		return Logger.ErrorfAndReturn("relay stopped: %v", err)
	}

	fmt.Println(ui.InfoMark() + " Relay stopped")
	return nil
}

func openRelayBackend(ctx context.Context, cfg *configs.Config) (cloud.Backend, string, error) {
	name := relayBackend
	if name == "" {
		name = relayBackendMemory
		if cfg.Remote.Driver == configs.RemoteRedis {
			name = relayBackendRedis
		}
	}

	switch name {
	case relayBackendMemory:
		return cloud.NewMemoryBackend(), name, nil
	case relayBackendRedis:
		addr := relayRedisAddr
		if addr == "" && cfg.Remote.Driver == configs.RemoteRedis {
			addr = cfg.Remote.Addr
		}
		Logger.Debugf("Connecting relay to redis at %q", addr)
		client, err := cloud.NewRedisClient(ctx, cloud.RedisOptions{
			Addr:     addr,
			Password: cfg.Remote.Password,
			DB:       cfg.Remote.DB,
			Timeout:  cfg.Remote.Timeout.Duration,
		})
		if err != nil {
			return nil, name, err
		}
		return cloud.NewRedisBackend(client, cloud.DefaultRedisPrefix), name, nil
	default:
		return nil, name, fmt.Errorf("%w: relay backend %q", kerrors.ErrUnknownDriver, name)
	}
}
