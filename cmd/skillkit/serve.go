package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jingkaihe/skillkit/pkg/logger"
	"github.com/jingkaihe/skillkit/pkg/presenter"
	"github.com/jingkaihe/skillkit/pkg/server"
	"github.com/jingkaihe/skillkit/pkg/skills"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the activation HTTP API",
	Long: `Start a local HTTP server exposing skill activation as a JSON API:

  POST /api/activate     compose the guidance for a request
  POST /api/diagnose     explain every skill's score for a request
  GET  /api/skills       list the registry
  GET  /api/skills/{id}  show one skill
  POST /api/reload       reload the registry from its sources
  GET  /healthz          liveness and registry version

The server will be available at http://localhost:8080 by default.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		applyWatchFlag(cmd)
		return runServeCommand(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().String("host", "localhost", "Host to bind the server to")
	serveCmd.Flags().Int("port", 8080, "Port to bind the server to")
	serveCmd.Flags().Bool("watch", false, "Reload the registry when skill files change")

	viper.BindPFlag("serve.host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("serve.port", serveCmd.Flags().Lookup("port"))
}

// validateServeConfig validates the serve configuration
func validateServeConfig(ctx context.Context, config ServeConfig) error {
	if err := (&server.ServerConfig{Host: config.Host, Port: config.Port}).Validate(); err != nil {
		return err
	}

	if config.Port < 1024 {
		logger.G(ctx).WithField("port", config.Port).Warn("using privileged port (< 1024) may require elevated permissions")
	}

	return nil
}

// applyWatchFlag lets --watch override reload.watch for this invocation
func applyWatchFlag(cmd *cobra.Command) {
	if cmd.Flags().Changed("watch") {
		watch, _ := cmd.Flags().GetBool("watch")
		viper.Set("reload.watch", watch)
	}
}

// startWatcher reloads the store on file changes when enabled and the
// source exposes paths to watch.
func startWatcher(ctx context.Context, rt *runtime) {
	if !rt.config.Reload.Watch {
		return
	}

	watchable, ok := rt.source.(skills.Watchable)
	if !ok {
		logger.G(ctx).Warn("skill source cannot be watched, reload on change disabled")
		return
	}

	go func() {
		if err := skills.Watch(ctx, rt.store, watchable, rt.config.Reload.Debounce); err != nil {
			logger.G(ctx).WithError(err).Error("skill watcher stopped")
		}
	}()
}

func runServeCommand(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, err := newRuntime(ctx, viper.GetViper())
	if err != nil {
		return err
	}

	if err := validateServeConfig(ctx, rt.config.Serve); err != nil {
		return errors.Wrap(err, "invalid server configuration")
	}

	srv, err := server.NewServer(&server.ServerConfig{
		Host: rt.config.Serve.Host,
		Port: rt.config.Serve.Port,
	}, rt.engine, rt.store)
	if err != nil {
		return errors.Wrap(err, "failed to create server")
	}

	startWatcher(ctx, rt)

	logger.G(ctx).WithFields(map[string]any{
		"host":   rt.config.Serve.Host,
		"port":   rt.config.Serve.Port,
		"skills": rt.store.Current().Len(),
	}).Info("starting skill server")

	presenter.Success(fmt.Sprintf("Serving %d skills on http://%s:%d", rt.store.Current().Len(), rt.config.Serve.Host, rt.config.Serve.Port))
	presenter.Info("Press Ctrl+C to stop the server")

	if err := srv.Start(ctx); err != nil {
		return errors.Wrap(err, "server failed")
	}

	presenter.Info("Server stopped")
	return nil
}
