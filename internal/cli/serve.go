// serve.go implements "transferd serve": the HTTP API plus the session
// sweeper, running until interrupted.
package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/redpay/transferd/internal/orchestrator"
	"github.com/redpay/transferd/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the transfer API server and session sweeper",
	RunE:  runServe,
}

var listenFlag string

func init() {
	serveCmd.Flags().StringVar(&listenFlag, "listen", "", "Listen address (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := loadApp()
	if err != nil {
		return err
	}
	defer app.Close()

	addr := app.Config.Server.ListenAddr
	if listenFlag != "" {
		addr = listenFlag
	}

	srv, err := server.NewServer(addr, app.Orch, app.Config.ReceiverIBAN)
	if err != nil {
		return err
	}

	sweeper := orchestrator.NewSweeper(app.Orch, app.Config.Sessions.SweepInterval())
	sweeper.Start()
	defer sweeper.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("transferd listening on %s (data dir %s)\n", srv.Addr(), app.DataDir)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	fmt.Println("transferd stopped")
	return nil
}
