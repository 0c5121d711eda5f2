package container

import (
	"context"
	"errors"
	"fmt"

	"govariant/adapters/annotation"
	"govariant/adapters/classifier"
	"govariant/adapters/postgres"
	"govariant/adapters/rng"
	"govariant/adapters/store"
	"govariant/app"
	"govariant/domain/core"
	"govariant/domain/features"
	"govariant/internal"
	"govariant/internal/config"
	apperrors "govariant/internal/errors"
	"govariant/internal/extraction"
	"govariant/internal/migration"
	"govariant/internal/predictor"
	"govariant/ports"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	DB *sqlx.DB

	// Adapters
	Store       *store.FileStore
	Registry    ports.ModelRegistry
	RNG         ports.RNGPort
	Annotations *annotation.Table

	// Pipeline components
	Extractor       *extraction.Extractor
	Predictor       *predictor.Predictor
	TrainingService *app.TrainingService
}

// New creates a new dependency injection container. The registry stays
// unset until InitWithDatabase is called.
func New(cfg *config.Config, logger *internal.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = internal.NewLogger(internal.ParseLogLevel(cfg.Log.Level))
	}

	c := &Container{
		Config: cfg,
		Logger: logger,
		RNG:    rng.New(),
	}

	if err := c.initAdapters(); err != nil {
		return nil, err
	}
	if err := c.initPipeline(); err != nil {
		return nil, err
	}
	return c, nil
}

// initAdapters opens the model store and loads site annotations
func (c *Container) initAdapters() error {
	fs, err := store.NewFileStore(c.Config.Storage.ModelDir, c.Logger)
	if err != nil {
		return err
	}
	c.Store = fs

	if path := c.Config.Data.AnnotationsFile; path != "" {
		table, err := annotation.LoadFile(path)
		if err != nil {
			return apperrors.Wrapf(err, "failed to load annotations from %s", path)
		}
		c.Annotations = table
		c.Logger.Info("Loaded %d site annotations from %s", table.Len(), path)
	} else {
		c.Annotations = annotation.Empty()
		c.Logger.Warn("ANNOTATIONS_FILE not set; records without site annotations will be excluded")
	}
	return nil
}

// initPipeline wires extraction, prediction and training
func (c *Container) initPipeline() error {
	c.Extractor = extraction.NewExtractor(features.Current(), c.Annotations)

	p, err := predictor.New(c.Extractor, predictor.Options{
		CacheSize: c.Config.Predictor.CacheSize,
		Workers:   c.Config.Pipeline.Workers,
	}, c.Logger)
	if err != nil {
		return err
	}
	c.Predictor = p
	c.buildTrainingService()
	return nil
}

func (c *Container) buildTrainingService() {
	c.TrainingService = app.NewTrainingService(c.Extractor, c.Store, c.Registry, c.RNG, TrainingOptions(c.Config), c.Logger)
}

// TrainingOptions maps configuration onto classifier hyperparameters.
func TrainingOptions(cfg *config.Config) app.TrainingOptions {
	opts := classifier.DefaultTrainerOptions()
	opts.Logistic.L2 = cfg.Logistic.L2
	opts.Logistic.MaxIterations = cfg.Logistic.MaxIterations
	opts.Forest.Trees = cfg.Forest.Trees
	opts.Forest.MaxDepth = cfg.Forest.MaxDepth
	opts.Forest.MinSamplesLeaf = cfg.Forest.MinSamplesLeaf
	opts.Forest.MaxFeatures = cfg.Forest.MaxFeatures
	return app.TrainingOptions{Trainers: opts, Workers: cfg.Pipeline.Workers}
}

// OpenDatabase connects to the configured registry database and runs
// migrations. It returns nil when no database is configured.
func OpenDatabase(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	if !cfg.RegistryEnabled() {
		return nil, nil
	}
	db, err := sqlx.ConnectContext(ctx, cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return nil, apperrors.DatabaseError("failed to connect to database", err)
	}
	if cfg.Database.Driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}

	migrator := migration.NewRunner()
	if err := migrator.Run(ctx, db); err != nil {
		db.Close()
		return nil, apperrors.Wrap(err, "database migration failed")
	}
	return db, nil
}

// InitWithDatabase attaches the run registry
func (c *Container) InitWithDatabase(db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}
	if err := db.Ping(); err != nil {
		return apperrors.DatabaseError("database connection test failed", err)
	}

	c.DB = db
	c.Registry = postgres.NewModelRegistry(db)
	c.buildTrainingService()
	c.Logger.Info("Run registry enabled (%s)", c.Config.Database.Driver)
	return nil
}

// ResolveHandle picks the model to serve: the configured handle, else the
// registry's latest for the current schema, else the newest stored model.
func (c *Container) ResolveHandle(ctx context.Context) (core.ModelHandle, error) {
	if h := c.Config.Storage.ModelHandle; h != "" {
		return core.ParseModelHandle(h)
	}
	if c.Registry != nil {
		handle, err := c.Registry.LatestHandle(ctx, c.Extractor.Schema().Version)
		if err == nil {
			return handle, nil
		}
		if !errors.Is(err, core.ErrModelNotFound) {
			return "", err
		}
	}
	return c.Store.Latest(ctx)
}

// LoadInitialModel loads the resolved model into the predictor. A missing
// model is not an error; the predictor then answers with ErrNoModelLoaded.
func (c *Container) LoadInitialModel(ctx context.Context) error {
	handle, err := c.ResolveHandle(ctx)
	if err != nil {
		if errors.Is(err, core.ErrModelNotFound) {
			c.Logger.Warn("No published model found; predictions are unavailable until a reload")
			return nil
		}
		return err
	}
	return c.Predictor.LoadFromStore(ctx, c.Store, handle)
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	defer c.Logger.Sync()
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
