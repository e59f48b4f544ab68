package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/review-harvester/internal/adapters/sources"
	"github.com/target/review-harvester/internal/bootstrap"
	"github.com/target/review-harvester/internal/data"
	"github.com/target/review-harvester/internal/domain/model"
	"github.com/target/review-harvester/internal/service"
)

const (
	defaultMigrationTimeout = 5 * time.Minute
	defaultQueryTimeout     = 30 * time.Second
)

type migrateOptions struct {
	Timeout time.Duration
}

type runOnceOptions struct {
	DateFilter model.DateFilter
	Company    string
	Timeout    time.Duration
	JSON       bool
}

type listJobsOptions struct {
	Limit int
	JSON  bool
}

type showJobOptions struct {
	ID   string
	JSON bool
}

type listOptions struct {
	JSON bool
}

func parseMigrateFlags(args []string) (migrateOptions, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := migrateOptions{Timeout: defaultMigrationTimeout}
	fs.DurationVar(&opts.Timeout, "timeout", defaultMigrationTimeout, "Maximum duration to wait for migrations to complete")

	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}
	if opts.Timeout <= 0 {
		return migrateOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

func parseRunOnceFlags(args []string) (runOnceOptions, error) {
	fs := flag.NewFlagSet("run-once", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var filter string
	opts := runOnceOptions{}
	fs.StringVar(&filter, "date-filter", string(model.DateFilterWeek), "Date window: all, week, twoWeeks")
	fs.StringVar(&opts.Company, "company", "", "Harvest a single company by exact name")
	fs.DurationVar(&opts.Timeout, "timeout", 0, "Request a stop after this long (0 = no limit)")
	fs.BoolVar(&opts.JSON, "json", false, "Print the finished job as JSON")

	if err := fs.Parse(args); err != nil {
		return runOnceOptions{}, err
	}
	opts.DateFilter = model.DateFilter(strings.TrimSpace(filter))
	if !opts.DateFilter.Valid() {
		return runOnceOptions{}, fmt.Errorf("--date-filter must be one of: all, week, twoWeeks (got %q)", filter)
	}
	if opts.Timeout < 0 {
		return runOnceOptions{}, errors.New("--timeout must not be negative")
	}
	opts.Company = strings.TrimSpace(opts.Company)
	return opts, nil
}

func parseListJobsFlags(args []string) (listJobsOptions, error) {
	fs := flag.NewFlagSet("jobs", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := listJobsOptions{}
	fs.IntVar(&opts.Limit, "limit", 20, "Number of jobs to show")
	fs.BoolVar(&opts.JSON, "json", false, "Print JSON")

	if err := fs.Parse(args); err != nil {
		return listJobsOptions{}, err
	}
	if opts.Limit <= 0 {
		return listJobsOptions{}, errors.New("--limit must be greater than zero")
	}
	return opts, nil
}

func parseShowJobFlags(args []string) (showJobOptions, error) {
	fs := flag.NewFlagSet("job", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := showJobOptions{}
	fs.StringVar(&opts.ID, "id", "", "Job id")
	fs.BoolVar(&opts.JSON, "json", false, "Print JSON")

	if err := fs.Parse(args); err != nil {
		return showJobOptions{}, err
	}
	if opts.ID == "" && fs.NArg() > 0 {
		opts.ID = fs.Arg(0)
	}
	if opts.ID = strings.TrimSpace(opts.ID); opts.ID == "" {
		return showJobOptions{}, errors.New("job id is required (--id or first argument)")
	}
	return opts, nil
}

func parseListFlags(name string, args []string) (listOptions, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := listOptions{}
	fs.BoolVar(&opts.JSON, "json", false, "Print JSON")
	if err := fs.Parse(args); err != nil {
		return listOptions{}, err
	}
	return opts, nil
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	db, err := connectDB(cmdCtx)
	if err != nil {
		return err
	}
	defer closeDB(cmdCtx, db)

	cmdCtx.Logger.Info("running database migrations")
	if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
		return fmt.Errorf("run migrations: %w", migrateErr)
	}
	cmdCtx.Logger.Info("migrations completed successfully")
	return nil
}

func runOnce(cmdCtx *commandContext, args []string) error {
	opts, err := parseRunOnceFlags(args)
	if err != nil {
		return err
	}

	// Ctrl-C requests a cooperative stop; RunSync still waits for the job to finish.
	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	db, redisClient, err := connectInfra(cmdCtx)
	if err != nil {
		return err
	}
	defer closeDB(cmdCtx, db)
	if redisClient != nil {
		defer func() {
			if closeErr := redisClient.Close(); closeErr != nil {
				cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
			}
		}()
	}

	services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config:      &cmdCtx.Config,
		DB:          db,
		RedisClient: redisClient,
		Logger:      cmdCtx.Logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := services.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("close services failed", "error", closeErr)
		}
	}()

	job, err := services.Harvest.RunSync(ctx, service.StartRequest{
		DateFilter: opts.DateFilter,
		Company:    opts.Company,
	})
	if err != nil {
		return err
	}
	if opts.JSON {
		return writeJSON(cmdCtx.Out, job)
	}
	return printJob(cmdCtx.Out, job)
}

func runListJobs(cmdCtx *commandContext, args []string) error {
	opts, err := parseListJobsFlags(args)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultQueryTimeout)
	defer cancel()

	db, err := connectDB(cmdCtx)
	if err != nil {
		return err
	}
	defer closeDB(cmdCtx, db)

	jobs, err := data.NewJobRepo(db, data.RepoConfig{Logger: cmdCtx.Logger}).List(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if opts.JSON {
		return writeJSON(cmdCtx.Out, jobs)
	}
	return printJobs(cmdCtx.Out, jobs)
}

func runShowJob(cmdCtx *commandContext, args []string) error {
	opts, err := parseShowJobFlags(args)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultQueryTimeout)
	defer cancel()

	db, err := connectDB(cmdCtx)
	if err != nil {
		return err
	}
	defer closeDB(cmdCtx, db)

	job, err := data.NewJobRepo(db, data.RepoConfig{Logger: cmdCtx.Logger}).GetByID(ctx, opts.ID)
	if err != nil {
		return fmt.Errorf("get job %s: %w", opts.ID, err)
	}
	if opts.JSON {
		return writeJSON(cmdCtx.Out, job)
	}
	return printJob(cmdCtx.Out, job)
}

func runListCompanies(cmdCtx *commandContext, args []string) error {
	opts, err := parseListFlags("companies", args)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultQueryTimeout)
	defer cancel()

	db, err := connectDB(cmdCtx)
	if err != nil {
		return err
	}
	defer closeDB(cmdCtx, db)

	companies, err := data.NewCompanyRepo(db).List(ctx)
	if err != nil {
		return err
	}
	if opts.JSON {
		return writeJSON(cmdCtx.Out, companies)
	}
	return printCompanies(cmdCtx.Out, companies)
}

func runListPortals(cmdCtx *commandContext, args []string) error {
	opts, err := parseListFlags("portals", args)
	if err != nil {
		return err
	}
	path := cmdCtx.Config.Harvest.PortalsFile
	if path == "" {
		return errors.New("HARVEST_PORTALS_FILE is not set")
	}
	defs, err := sources.LoadFile(path)
	if err != nil {
		return err
	}
	if defs, err = sources.Order(defs, cmdCtx.Config.Harvest.PortalOrder); err != nil {
		return err
	}
	// Building catches selector and expression errors the parser cannot see.
	if _, err = sources.Build(defs, cmdCtx.Logger); err != nil {
		return err
	}
	if opts.JSON {
		return writeJSON(cmdCtx.Out, defs)
	}
	return printPortals(cmdCtx.Out, defs)
}

func connectDB(cmdCtx *commandContext) (*sql.DB, error) {
	db, err := bootstrap.ConnectDB(cmdCtx.Ctx, bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	return db, nil
}

// connectInfra connects Postgres and, when enabled, Redis.
//
//nolint:ireturn // returning redis.UniversalClient keeps sentinel/cluster support flexible.
func connectInfra(cmdCtx *commandContext) (*sql.DB, redis.UniversalClient, error) {
	db, err := connectDB(cmdCtx)
	if err != nil {
		return nil, nil, err
	}
	redisClient, err := bootstrap.ConnectRedis(cmdCtx.Ctx, bootstrap.DatabaseConfig{
		RedisConfig: cmdCtx.Config.Redis,
		Logger:      cmdCtx.Logger,
	})
	if err != nil {
		// The progress mirror is optional for a foreground run.
		cmdCtx.Logger.Warn("redis unavailable; progress will not be mirrored", "error", err)
		redisClient = nil
	}
	return db, redisClient, nil
}

func closeDB(cmdCtx *commandContext, db *sql.DB) {
	if closeErr := db.Close(); closeErr != nil {
		cmdCtx.Logger.Warn("db close failed", "error", closeErr)
	}
}
