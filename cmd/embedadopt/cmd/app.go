package cmd

import (
	"context"
	"fmt"

	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/adopter"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/config"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/content"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/database"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/logger"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/markup"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/store/sqlstore"
)

// app bundles what every store-backed command needs.
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	db    *database.Manager
	store *sqlstore.Store
}

// loadConfig reads the config file, applies flag overrides and validates.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	overrides := GetCLIOverrides()
	cfg.ApplyOverrides(overrides.LogLevel, overrides.LogFormat, overrides.Driver)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openApp loads configuration, builds the logger and connects the store.
// The caller must call close.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db := database.NewManager(&cfg.Database)
	if err := db.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	st, err := sqlstore.New(db.DB, db.Dialect, cfg.Database.TablePrefix)
	if err != nil {
		db.Close()
		return nil, err
	}
	st.SetLogger(log)

	return &app{cfg: cfg, log: log, db: db, store: st}, nil
}

func (a *app) close() {
	_ = a.log.Sync()
	a.db.Close()
}

// engine builds an adoption engine over the store.
func (a *app) engine() (*adopter.Engine, error) {
	processor := markup.NewEmbedCollector(a.cfg.Adoption.Markup)
	e, err := adopter.NewEngine(a.store, a.store, processor, adopter.OptionsFromConfig(a.cfg.Adoption))
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	e.SetLogger(a.log)
	return e, nil
}

// hosts resolves host records from explicit uuids or, when bundle is set,
// every host of that bundle.
func (a *app) hosts(ctx context.Context, uuids []string, bundle string) ([]*content.Record, error) {
	kind := a.cfg.Adoption.HostKind

	if bundle != "" {
		listed, err := a.store.ListUUIDs(ctx, kind, bundle)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s.%s: %w", kind, bundle, err)
		}
		uuids = append(uuids, listed...)
	}
	if len(uuids) == 0 {
		return nil, fmt.Errorf("no hosts given: pass host uuids or --bundle")
	}

	hosts := make([]*content.Record, 0, len(uuids))
	seen := make(map[string]bool)
	for _, id := range uuids {
		if seen[id] {
			continue
		}
		seen[id] = true

		host, err := a.store.LoadByUUID(ctx, kind, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s %s: %w", kind, id, err)
		}
		hosts = append(hosts, host)
	}
	return hosts, nil
}
