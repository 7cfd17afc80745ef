// Package wire provides dependency injection for muster. It builds the full
// component graph from a validated Config.
package wire

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/example/muster/internal/adapters/directory"
	"github.com/example/muster/internal/adapters/jsonl"
	"github.com/example/muster/internal/adapters/sqlite"
	"github.com/example/muster/internal/app"
	"github.com/example/muster/internal/clock"
	"github.com/example/muster/internal/config"
	"github.com/example/muster/internal/core/policy"
	"github.com/example/muster/internal/core/render"
	"github.com/example/muster/internal/db"
	"github.com/example/muster/internal/ports/primary"
)

// Options adjusts how the graph is built.
type Options struct {
	// Out receives transport instructions.
	Out io.Writer
	// Queued selects a background FIFO dispatcher, which the caller must
	// run via App.Dispatcher. Otherwise effects execute inline.
	Queued bool
	// Clock defaults to the real clock.
	Clock clock.Clock
}

// App holds the wired components.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	DB        *sql.DB
	Policy    *policy.Policy
	Directory *directory.FileDirectory
	Transport *jsonl.Transport

	// Dispatcher is non-nil only for Queued builds.
	Dispatcher *app.QueueDispatcher
	Registry   *app.SuppressionRegistry
	Publisher  *app.RosterPublisher

	Attendance primary.AttendanceService
	Operations primary.OperationService
	Scheduler  primary.LifecycleScheduler

	closeOnce sync.Once
	closeErr  error
}

// Build opens the database, loads the roles and member files, and wires
// every service.
func Build(cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}

	pol, err := config.LoadRoles(cfg.RolesPath)
	if err != nil {
		return nil, err
	}
	dir, err := directory.Load(cfg.DirectoryPath)
	if err != nil {
		return nil, err
	}

	dbPath := cfg.DBPath
	if dbPath == "" {
		if dbPath, err = db.DefaultPath(); err != nil {
			return nil, err
		}
	}
	database, err := db.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return assemble(cfg, logger, database, pol, dir, opts), nil
}

func assemble(cfg *config.Config, logger *slog.Logger, database *sql.DB, pol *policy.Policy, dir *directory.FileDirectory, opts Options) *App {
	opRepo := sqlite.NewOperationRepository(database)
	signupRepo := sqlite.NewSignupRepository(database)

	transport := jsonl.NewTransport(opts.Out)
	executor := app.NewEffectExecutor(transport, logger)

	var (
		dispatcher app.Dispatcher
		queue      *app.QueueDispatcher
	)
	if opts.Queued {
		queue = app.NewQueueDispatcher(executor, logger, 0)
		dispatcher = queue
	} else {
		dispatcher = app.NewInlineDispatcher(executor, logger)
	}

	registry := app.NewSuppressionRegistry(cfg.SuppressionTTL, opts.Clock, logger)
	publisher := app.NewRosterPublisher(opRepo, signupRepo, pol, dispatcher, opts.Clock, logger, app.RosterPublisherConfig{
		RenderOptions: render.Options{Location: cfg.Location(), TimeFormat: cfg.TimeFormat},
		Debounce:      cfg.RenderDebounce,
	})

	attendance := app.NewAttendanceService(opRepo, signupRepo, dir, pol, registry, publisher, dispatcher, opts.Clock,
		app.AttendanceConfig{StaffRoleID: cfg.StaffRoleID, BlockStaffSignups: cfg.BlockStaffSignups}, logger)
	operations := app.NewOperationService(opRepo, signupRepo, dir, transport, pol, publisher, dispatcher, opts.Clock, cfg.StaffRoleID, logger)
	scheduler := app.NewLifecycleScheduler(opRepo, signupRepo, publisher, dispatcher, registry, opts.Clock, app.SchedulerConfig{
		ReminderLead:     cfg.ReminderLead,
		ExpiryGrace:      cfg.ExpiryGrace,
		ReminderInterval: cfg.ReminderInterval,
		ExpiryInterval:   cfg.ExpiryInterval,
	}, logger)

	return &App{
		Config:     cfg,
		Logger:     logger,
		DB:         database,
		Policy:     pol,
		Directory:  dir,
		Transport:  transport,
		Dispatcher: queue,
		Registry:   registry,
		Publisher:  publisher,
		Attendance: attendance,
		Operations: operations,
		Scheduler:  scheduler,
	}
}

// Gateway returns an inbound event gateway bound to the app's services.
func (a *App) Gateway() *jsonl.Gateway {
	return jsonl.NewGateway(a.Attendance, a.Operations, a.Policy, a.Transport, jsonl.GatewayConfig{
		EventChannelID: a.Config.EventChannelID,
		CommandPrefix:  a.Config.CommandPrefix,
		Location:       a.Config.Location(),
	}, a.Logger)
}

// Close flushes pending roster renders and closes the database. With a
// queued dispatcher, call it before the dispatcher stops so the final
// renders are delivered.
func (a *App) Close(ctx context.Context) error {
	a.closeOnce.Do(func() {
		a.Publisher.Flush(ctx)
		a.closeErr = a.DB.Close()
	})
	return a.closeErr
}
