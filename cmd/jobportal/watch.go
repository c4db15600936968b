package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/jrsteele09/go-jobportal-client/apiclient"
	"github.com/jrsteele09/go-jobportal-client/notifications"
	"github.com/jrsteele09/go-jobportal-client/realtime"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// watchCmd runs the client like a foregrounded app: the session is resumed,
// push registration is scheduled and notifications are followed live.
// SIGUSR1 simulates the app returning to the foreground.
func watchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow notifications live until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				displayAppname(a.cfg.GetAppName())
				if err := a.resume(ctx); err != nil {
					return err
				}

				if addr := a.cfg.GetMetricsAddr(); addr != "" {
					server := &http.Server{Addr: addr, Handler: a.metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
					go listenAndServe(server)
					defer func() {
						if err := shutdown(server); err != nil {
							log.Warn().Err(err).Msg("metrics server shutdown")
						}
					}()
				}

				ctx, cancel := context.WithCancel(ctx)
				defer cancel()

				notifier := realtime.FromAPI(ctx, a.client, realtime.WithMetrics(a.metrics))
				defer notifier.Close()
				if !notifier.Enabled() {
					fmt.Fprintln(a.out, "Live updates are not configured, polling only")
				}

				center := notifications.NewCenter(a.client, notifier,
					notifications.WithPollInterval(a.cfg.GetUnreadPollInterval()),
					notifications.WithFallbackLimit(a.cfg.GetUnreadFallbackLimit()),
				)
				defer center.Close()

				var last atomic.Int64
				last.Store(-1)
				center.Subscribe(func(s notifications.Snapshot) {
					if prev := last.Swap(int64(s.Unread)); prev != int64(s.Unread) {
						fmt.Fprintf(a.out, "%d unread notifications\n", s.Unread)
					}
				})
				stopLive, err := notifier.SubscribeToUser(a.session.User().ID, func(n apiclient.Notification) {
					fmt.Fprintf(a.out, "* %s: %s\n", n.Title, n.Message)
				})
				if err != nil {
					log.Warn().Err(err).Msg("live notifications unavailable")
				} else {
					defer stopLive()
				}
				detach := center.Attach(ctx, a.session)
				defer detach()

				foreground := make(chan os.Signal, 1)
				signal.Notify(foreground, syscall.SIGUSR1)
				defer signal.Stop(foreground)
				go func() {
					for {
						select {
						case <-ctx.Done():
							return
						case <-foreground:
							a.session.OnForeground(ctx)
						}
					}
				}()

				waitForStopSignal(ctx)
				return nil
			})
		},
	}
}

func listenAndServe(server *http.Server) {
	log.Info().Str("addr", server.Addr).Msg("metrics listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("metrics server stopped")
	}
}

func waitForStopSignal(ctx context.Context) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)
	select {
	case <-stop:
	case <-ctx.Done():
	}
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "server.Shutdown")
	}
	return nil
}
