package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/raysh454/sift/internal/app"
	"github.com/raysh454/sift/internal/logging"
	"github.com/raysh454/sift/internal/server"
)

func serveCmd(opts *options) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and progress websocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.Application) error {
				if listen != "" {
					a.Config.Server.ListenAddr = listen
				}
				srv, err := server.FromApplication(a)
				if err != nil {
					return err
				}
				httpSrv := srv.HTTPServer()

				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()

				errCh := make(chan error, 1)
				go func() {
					a.Logger.Info("listening", logging.Field{Key: "addr", Value: httpSrv.Addr})
					errCh <- httpSrv.ListenAndServe()
				}()

				select {
				case err := <-errCh:
					if !errors.Is(err, http.ErrServerClosed) {
						return err
					}
					return nil
				case <-ctx.Done():
				}

				a.Logger.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				return httpSrv.Shutdown(shutdownCtx)
			})
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (overrides server.listen_addr)")
	return cmd
}
