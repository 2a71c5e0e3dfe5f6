// Package app wires configuration into the running components shared by the
// server and the CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/david/grant-assistant/internal/compliance"
	"github.com/david/grant-assistant/internal/composer"
	"github.com/david/grant-assistant/internal/config"
	"github.com/david/grant-assistant/internal/db"
	"github.com/david/grant-assistant/internal/deadlines"
	"github.com/david/grant-assistant/internal/logger"
	"github.com/david/grant-assistant/internal/matcher"
	"github.com/david/grant-assistant/internal/source"
)

type App struct {
	Config    *config.Config
	Log       logger.Logger
	Source    source.OpportunitySource
	Rules     *compliance.RuleBook
	Matcher   *matcher.Matcher
	Composer  *composer.Composer
	Validator *compliance.Validator
	Deadlines *deadlines.Scheduler

	closers []func()
}

// Build opens the opportunity source, rulebook and deadline store described
// by cfg. Postgres is used when a database URL is configured, otherwise the
// YAML catalog; either is fronted by redis when an address is set.
func Build(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	src, err := a.openSource(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Source = src

	rules, err := compliance.LoadRuleBook(cfg.Rules.Path)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Rules = rules

	sched, err := deadlines.Open(cfg.Deadlines.StorePath, log.WithFields(map[string]interface{}{"component": "deadlines"}))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Deadlines = sched

	a.Matcher = matcher.New(src, log.WithFields(map[string]interface{}{"component": "matcher"}))
	a.Composer = composer.New(src, rules, log.WithFields(map[string]interface{}{"component": "composer"}),
		composer.WithMaxIterations(cfg.Composer.MaxIterations))
	a.Validator = compliance.NewValidator(rules)
	return a, nil
}

func (a *App) openSource(ctx context.Context) (source.OpportunitySource, error) {
	var src source.OpportunitySource

	if a.Config.Database.URL != "" {
		pool, err := db.Connect(ctx, a.Config.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, pool.Close)

		if a.Config.Database.RunMigrations {
			if err := db.ApplyMigrations(ctx, pool, a.Log); err != nil {
				return nil, fmt.Errorf("migration failed: %w", err)
			}
		}
		src = source.NewPostgresSource(db.NewStore(pool))
		a.Log.Info("opportunity source: postgres", nil)
	} else {
		static, err := source.LoadCatalog(a.Config.Catalog.Path, time.Now())
		if err != nil {
			return nil, err
		}
		src = static
		a.Log.Info("opportunity source: catalog", map[string]interface{}{
			"path":  a.Config.Catalog.Path,
			"count": len(static.All()),
		})
	}

	if a.Config.Redis.Address == "" {
		return src, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.Config.Redis.Address,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	})
	a.closers = append(a.closers, func() { _ = client.Close() })
	if err := client.Ping(ctx).Err(); err != nil {
		a.Log.WithError(err).Warn("redis unreachable, cache will fall through", map[string]interface{}{"address": a.Config.Redis.Address})
	}
	return source.NewCachedSource(src, client, a.Config.Redis.CacheTTL, a.Log), nil
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
