package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/itsbennie/bennie/internal/api"
	"github.com/itsbennie/bennie/internal/schedule"
	"github.com/itsbennie/bennie/internal/worker"
)

// evaluationSlot is when the weekly evaluations are queued: Sunday evening.
var evaluationSlot = schedule.Slot{Day: 6, Time: "18:00"}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server, job worker, and send scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also serve MCP tools over stdio")
}

func runServer(withMCP bool) error {
	fmt.Fprintf(os.Stderr, "bennie version %s\n", version)

	a, err := loadApp(true)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg

	if a.signer == nil {
		return errors.New("auth.token_secret is required to serve onboarding and unsubscribe links")
	}
	if cfg.Auth.AdminToken == "" {
		slog.Warn("admin token not set; admin API is disabled")
	}
	if cfg.SendGrid.WebhookSecret == "" {
		slog.Warn("webhook secret not set; inbound replies are accepted unauthenticated")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Job worker.
	w := worker.NewWorker(a.store, a.pipeline, a.evaluator,
		parseDuration(cfg.Worker.PollInterval, 2*time.Second, "worker.poll_interval"), a.logger)
	go w.Run(ctx)

	// Scheduler: queue due practice emails every minute and the weekly
	// evaluations once a week.
	ticker := &schedule.Ticker{
		Interval: parseDuration(cfg.Schedule.TickInterval, time.Minute, "schedule.tick_interval"),
		Logger:   a.logger.With("component", "scheduler"),
		Fire: func(ctx context.Context, minute time.Time) {
			fireMinute(a, minute)
		},
	}
	go ticker.Run(ctx)

	handler := api.NewHandler(api.Deps{
		Store:         a.store,
		Profiles:      a.profiles,
		Tokens:        a.signer,
		Planner:       a.pipeline,
		Reporter:      a.evaluator,
		DefaultSlots:  a.slots,
		AdminToken:    cfg.Auth.AdminToken,
		WebhookSecret: cfg.SendGrid.WebhookSecret,
		MaxAttempts:   cfg.Worker.MaxAttempts,
		BatchSize:     cfg.Schedule.BatchSize,
		Logger:        a.logger.With("component", "api"),
	})

	if withMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Store:   a.store,
			Planner: a.pipeline,
			Table:   a.table,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("bennie listening", "addr", addr, "public_url", cfg.Server.PublicURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// fireMinute queues the practice emails due at minute, and the weekly
// evaluations when minute falls in evaluationSlot.
func fireMinute(a *app, minute time.Time) {
	slot := schedule.At(minute)
	n, err := worker.EnqueueDue(a.store, minute, a.cfg.Worker.MaxAttempts)
	if err != nil {
		a.logger.Error("queueing due practice emails failed", "day", slot.Day, "time", slot.Time, "error", err)
	} else if n > 0 {
		a.logger.Info("queued practice emails", "day", slot.Day, "time", slot.Time, "count", n)
	}

	if slot == evaluationSlot {
		n, err := worker.EnqueueEvaluations(a.store, minute, a.cfg.Schedule.BatchSize, a.cfg.Worker.MaxAttempts)
		if err != nil {
			a.logger.Error("queueing weekly evaluations failed", "error", err)
			return
		}
		a.logger.Info("queued weekly evaluations", "count", n)
	}
}
