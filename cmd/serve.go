package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"db-ferry/internal/config"
	"db-ferry/internal/server"
	"db-ferry/internal/source"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the sync operations over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(config.ModeServe); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		stack, err := openSyncStack(ctx)
		if err != nil {
			return err
		}
		defer stack.Close()

		// The source is only probed here, so it is optional.
		var src *source.Client
		if cfg.Source.URL != "" {
			if src, err = newSource(); err != nil {
				return err
			}
		}

		srv := &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           server.New(stack.service, probes(src, stack.target, stack.mirror), logger),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("listening", "addr", cfg.ListenAddr, "direction", cfg.Sync.Direction, "tables", cfg.Sync.Tables)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	RootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (overrides config listen_addr)")
	viper.BindPFlag("listen_addr", serveCmd.Flags().Lookup("addr"))
}
