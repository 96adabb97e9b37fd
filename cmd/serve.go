package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"llamabridge/config"
	"llamabridge/ipc"
)

const startupPingTimeout = 5 * time.Second

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local HTTP bridge",
	Long: `Serve the bridge to local clients over HTTP.

Endpoints:
  GET  /api/models   {"models": [...]}
  POST /api/chat     NDJSON: {"message": ...} per fragment, then {"done": true}
  GET  /api/health   {"status": "ok" | "busy" | "unreachable"}

Examples:
  llamabridge serve
  llamabridge serve --listen 127.0.0.1:9000
  llamabridge serve --listen unix:///tmp/llamabridge.sock`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "", "Address to listen on, host:port or unix://path (default from settings)")
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := serveListen
	if addr == "" {
		addr = cfg.Listen
	}

	lockPath := config.LockFilePath(cfg.DataDir())
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire %s: %w", lockPath, err)
	}
	if !locked {
		return fmt.Errorf("another llamabridge serve already owns %s", cfg.DataDir())
	}
	defer lock.Unlock()

	facade, err := newFacade(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stderr := cmd.ErrOrStderr()
	pingCtx, cancel := context.WithTimeout(ctx, startupPingTimeout)
	if err := facade.Ping(pingCtx); err != nil {
		// The daemon may come up later; requests report their own failures.
		fmt.Fprintln(stderr, dimStyle(stderr).Render("Warning: "+err.Error()))
	}
	cancel()

	ln, err := ipc.Listen(addr)
	if err != nil {
		return err
	}
	fmt.Fprintf(stderr, "llamabridge listening on %s (ollama %s)\n", ln.Addr(), cfg.OllamaURL())
	if config.DebugLog != nil {
		config.DebugLog.Info("serving", "addr", ln.Addr().String(), "ollama", cfg.OllamaURL())
	}

	return ipc.NewServer(facade).Serve(ctx, ln)
}
