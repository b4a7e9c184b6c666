package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/itsbennie/bennie/internal/config"
	"github.com/itsbennie/bennie/internal/evaluation"
	"github.com/itsbennie/bennie/internal/language"
	"github.com/itsbennie/bennie/internal/lesson"
	"github.com/itsbennie/bennie/internal/leveling"
	"github.com/itsbennie/bennie/internal/profile"
	"github.com/itsbennie/bennie/internal/schedule"
	"github.com/itsbennie/bennie/internal/storage"
	"github.com/itsbennie/bennie/internal/worker"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running server's health and job queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return showStatus(cmd.Context(), client)
	},
}

func showStatus(ctx context.Context, client *apiClient) error {
	if ctx == nil {
		ctx = context.Background()
	}
	resp, err := client.get(ctx, "/health")
	if err != nil {
		printStatus("Server", "stopped")
		return nil
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		return nil
	}
	printStatus("Server", "running at %s", client.baseURL)

	if client.token == "" {
		printWarning("admin token not configured; job counts unavailable")
		return nil
	}
	resp, err = client.get(ctx, "/api/admin/jobs")
	if err != nil {
		return err
	}
	var counts map[string]int
	if err := decodeJSON(resp, &counts); err != nil {
		return err
	}
	for _, status := range []string{"pending", "running", "completed", "failed"} {
		printStatus("Jobs "+status, "%d", counts[status])
	}
	return nil
}

// --- send-due ---

var sendDueCmd = &cobra.Command{
	Use:   "send-due",
	Short: "Queue practice emails for users whose send slot is now",
	Long: `Queue practice emails for every active user with a send slot at the
current minute (or --at). Queuing is idempotent per slot, so running this
from cron alongside the server's own scheduler never double-sends.

With --run the queued jobs are delivered by this process instead of
waiting for the server's worker.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		atFlag, _ := cmd.Flags().GetString("at")
		run, _ := cmd.Flags().GetBool("run")

		at := time.Now()
		if atFlag != "" {
			t, err := time.ParseInLocation("2006-01-02T15:04", atFlag, time.Local)
			if err != nil {
				return fmt.Errorf("invalid --at %q (want YYYY-MM-DDTHH:MM): %w", atFlag, err)
			}
			at = t
		}

		a, err := loadApp(run)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := worker.EnqueueDue(a.store, at, a.cfg.Worker.MaxAttempts)
		if err != nil {
			return err
		}
		slot := schedule.At(at)
		printSuccess("Queued %d practice email(s) for %s %s", n, schedule.Describe([]schedule.Slot{slot}), slot.Time)

		if run {
			ctx, stop := signalContext()
			defer stop()
			processed, err := drainQueue(ctx, a)
			if err != nil {
				return err
			}
			printSuccess("Processed %d job(s)", processed)
		}
		return nil
	},
}

func init() {
	sendDueCmd.Flags().String("at", "", "slot time as YYYY-MM-DDTHH:MM (default: now)")
	sendDueCmd.Flags().Bool("run", false, "deliver queued jobs in this process")
}

// drainQueue runs the worker until no job is runnable. Jobs waiting out a
// retry backoff are left for the server.
func drainQueue(ctx context.Context, a *app) (int, error) {
	w := worker.NewWorker(a.store, a.pipeline, a.evaluator, time.Second, a.logger)
	processed := 0
	for ctx.Err() == nil {
		done, err := w.RunOnce(ctx)
		if err != nil {
			return processed, err
		}
		if !done {
			break
		}
		processed++
	}
	return processed, ctx.Err()
}

// --- send-batch ---

var sendBatchCmd = &cobra.Command{
	Use:   "send-batch [offset]",
	Short: "Send a practice email now to a page of active users",
	Long: `Send a practice email immediately to active users, one page of
schedule.batch_size users starting at offset, with schedule.concurrency
sends in flight. With --all, every page from offset onward is sent.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		offset := 0
		if len(args) == 1 {
			v, err := strconv.Atoi(args[0])
			if err != nil || v < 0 {
				return fmt.Errorf("offset must be a non-negative integer, got %q", args[0])
			}
			offset = v
		}
		all, _ := cmd.Flags().GetBool("all")

		a, err := loadApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signalContext()
		defer stop()

		b := batchSender{
			users:       a.store,
			lessons:     a.pipeline,
			pageSize:    a.cfg.Schedule.BatchSize,
			concurrency: a.cfg.Schedule.Concurrency,
		}
		res, err := b.run(ctx, offset, all)
		if err != nil {
			return err
		}
		printSuccess("Sent %d, skipped %d, failed %d", res.sent, res.skipped, len(res.failures))
		for email, ferr := range res.failures {
			printError("%s: %v", email, ferr)
		}
		if res.more {
			printStep("Next page: bennie send-batch %d", res.next)
		}
		return nil
	},
}

func init() {
	sendBatchCmd.Flags().Bool("all", false, "continue through every page")
}

type userPager interface {
	ListUsers(activeOnly bool, offset, limit int) ([]storage.User, error)
}

type deliverer interface {
	Deliver(ctx context.Context, userID string) (lesson.Delivery, error)
}

type batchSender struct {
	users       userPager
	lessons     deliverer
	pageSize    int
	concurrency int
}

type batchResult struct {
	sent     int
	skipped  int
	failures map[string]error
	next     int
	more     bool
}

func (b batchSender) run(ctx context.Context, offset int, all bool) (batchResult, error) {
	if b.pageSize <= 0 {
		b.pageSize = 100
	}
	if b.concurrency <= 0 {
		b.concurrency = 1
	}
	res := batchResult{failures: make(map[string]error), next: offset}

	var mu sync.Mutex
	for {
		users, err := b.users.ListUsers(true, res.next, b.pageSize)
		if err != nil {
			return res, fmt.Errorf("listing users at offset %d: %w", res.next, err)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(b.concurrency)
		for _, u := range users {
			g.Go(func() error {
				_, err := b.lessons.Deliver(gctx, u.ID)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					res.sent++
				case errors.Is(err, lesson.ErrInactive):
					res.skipped++
				default:
					res.failures[u.Email] = err
				}
				// One user's failure must not stop the batch.
				return nil
			})
		}
		g.Wait()

		res.next += len(users)
		res.more = len(users) == b.pageSize
		if !all || !res.more || ctx.Err() != nil {
			return res, ctx.Err()
		}
	}
}

// --- evaluate ---

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [email]",
	Short: "Send the weekly progress evaluation to one user or all verified users",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		if (len(args) == 1) == all {
			return fmt.Errorf("give exactly one of an email address or --all")
		}

		a, err := loadApp(!dryRun)
		if err != nil {
			return err
		}
		defer a.Close()

		if all {
			n, err := worker.EnqueueEvaluations(a.store, time.Now(), a.cfg.Schedule.BatchSize, a.cfg.Worker.MaxAttempts)
			if err != nil {
				return err
			}
			printSuccess("Queued %d evaluation(s)", n)
			return nil
		}

		u, err := a.store.GetUserByEmail(args[0])
		if err != nil {
			return fmt.Errorf("user %s: %w", args[0], err)
		}
		if dryRun {
			return printReport(os.Stdout, a, u.ID)
		}

		ctx, stop := signalContext()
		defer stop()
		rep, err := a.evaluator.Run(ctx, u.ID)
		if err != nil {
			return err
		}
		printSuccess("Evaluation sent to %s (estimated level %d)", u.Email, rep.Estimate.Level)
		return nil
	},
}

func init() {
	evaluateCmd.Flags().Bool("all", false, "queue evaluations for every active, verified user")
	evaluateCmd.Flags().Bool("dry-run", false, "print the evaluation prompt instead of sending")
}

func printReport(w io.Writer, a *app, userID string) error {
	p, rep, err := a.evaluator.Report(userID)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, colorize(colorBold, profile.Summary(p)))
	fmt.Fprintf(w, "Replies analyzed: %d (of the last %d)\n", len(rep.Replies), evaluation.Window)
	fmt.Fprintf(w, "Average reply length: %.1f words\n", rep.AverageLength)
	fmt.Fprintf(w, "Estimated level: %d (%s)\n\n", rep.Estimate.Level, rep.Estimate.Description)
	fmt.Fprintln(w, rep.Prompt())
	return nil
}

// --- preview ---

var previewCmd = &cobra.Command{
	Use:   "preview <email>",
	Short: "Show the topic and prompt for a user's next practice email",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(false)
		if err != nil {
			return err
		}
		defer a.Close()
		return previewUser(cmd.Context(), os.Stdout, a, args[0])
	},
}

func previewUser(ctx context.Context, w io.Writer, a *app, email string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	u, err := a.store.GetUserByEmail(email)
	if err != nil {
		return fmt.Errorf("user %s: %w", email, err)
	}
	plan, err := a.pipeline.Plan(ctx, u.ID)
	if err != nil {
		return err
	}

	kind := "repeat"
	if plan.Decision.Novel {
		kind = "new"
	}
	recent := "none"
	if len(plan.Decision.Recent) > 0 {
		recent = strings.Join(plan.Decision.Recent, ", ")
	}
	fmt.Fprintln(w, colorize(colorBold, profile.Summary(plan.Profile)))
	fmt.Fprintf(w, "Recent topics: %s\n", recent)
	fmt.Fprintf(w, "Next topic:    %s (%s)\n\n", plan.Decision.Topic, kind)
	fmt.Fprintln(w, plan.Prompt)
	return nil
}

// --- users ---

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage learners",
}

type newUser struct {
	email     string
	name      string
	language  string
	level     int
	interests string
	goal      string
	welcome   bool
}

var usersAddCmd = &cobra.Command{
	Use:   "add <email>",
	Short: "Add a learner with the default send schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nu := newUser{email: args[0]}
		nu.name, _ = cmd.Flags().GetString("name")
		nu.language, _ = cmd.Flags().GetString("language")
		nu.level, _ = cmd.Flags().GetInt("level")
		nu.interests, _ = cmd.Flags().GetString("interests")
		nu.goal, _ = cmd.Flags().GetString("goal")
		nu.welcome, _ = cmd.Flags().GetBool("welcome")

		a, err := loadApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		u, err := addUser(a, nu)
		if err != nil {
			return err
		}
		printSuccess("Added %s (%s)", u.Email, u.ID)
		if nu.welcome {
			printStep("Welcome email queued; the server's worker will send it")
		}
		return nil
	},
}

func addUser(a *app, nu newUser) (storage.User, error) {
	lang, err := language.Parse(nu.language)
	if err != nil {
		return storage.User{}, err
	}
	if _, err := leveling.BandFor(nu.level); err != nil {
		return storage.User{}, err
	}
	u, err := a.store.CreateUser(storage.User{
		Email:            strings.ToLower(strings.TrimSpace(nu.email)),
		Name:             nu.name,
		TargetLanguage:   string(lang),
		ProficiencyLevel: nu.level,
		Interests:        nu.interests,
		LearningGoal:     nu.goal,
		Active:           true,
	})
	if err != nil {
		return storage.User{}, err
	}
	if _, err := a.store.ReplaceSchedules(u.ID, schedule.Records(u.ID, a.slots)); err != nil {
		return u, fmt.Errorf("saving schedule: %w", err)
	}
	if nu.welcome {
		if _, err := worker.Enqueue(a.store, worker.TypeWelcome, u.ID, a.cfg.Worker.MaxAttempts); err != nil {
			return u, err
		}
	}
	return u, nil
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List learners",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		a, err := loadApp(false)
		if err != nil {
			return err
		}
		defer a.Close()
		return listUsers(os.Stdout, a, !all, offset, limit)
	},
}

func listUsers(w io.Writer, a *app, activeOnly bool, offset, limit int) error {
	users, err := a.store.ListUsers(activeOnly, offset, limit)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		fmt.Fprintln(w, "No users found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "EMAIL\tNAME\tLANGUAGE\tLEVEL\tSTATUS")
	for _, u := range users {
		status := "active"
		switch {
		case !u.Active:
			status = "unsubscribed"
		case !u.Verified:
			status = "pending onboarding"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", u.Email, u.DisplayName(), u.TargetLanguage, u.ProficiencyLevel, status)
	}
	return tw.Flush()
}

var usersSetLevelCmd = &cobra.Command{
	Use:   "set-level <email> <level>",
	Short: "Set a learner's proficiency level (1-100)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("level must be an integer, got %q", args[1])
		}
		a, err := loadApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := setLevel(a, args[0], level)
		if err != nil {
			return err
		}
		printSuccess("%s", profile.Summary(p))
		return nil
	},
}

func setLevel(a *app, email string, level int) (profile.Profile, error) {
	u, err := a.store.GetUserByEmail(email)
	if err != nil {
		return profile.Profile{}, fmt.Errorf("user %s: %w", email, err)
	}
	return a.profiles.Apply(u.ID, profile.Update{Level: &level})
}

func init() {
	usersAddCmd.Flags().String("name", "", "learner's name")
	usersAddCmd.Flags().String("language", "spanish", "target language")
	usersAddCmd.Flags().Int("level", 1, "proficiency level (1-100)")
	usersAddCmd.Flags().String("interests", "", "comma-separated interests")
	usersAddCmd.Flags().String("goal", "", "learning goal")
	usersAddCmd.Flags().Bool("welcome", true, "queue the welcome email")

	usersListCmd.Flags().Bool("all", false, "include unsubscribed users")
	usersListCmd.Flags().Int("limit", 50, "maximum number of users")
	usersListCmd.Flags().Int("offset", 0, "number of users to skip")

	usersCmd.AddCommand(usersAddCmd)
	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersSetLevelCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s  %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorCyan, "("+k.EnvVar+")"))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Secrets are not settable here; use BENNIE_* environment variables or the secrets file.\n\nValid keys: " + strings.Join(config.ValidKeys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := config.SetKey(key, value); err != nil {
			return err
		}
		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
