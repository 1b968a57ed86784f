package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cassidypignatello/bali-renovation-os/internal/classify"
	"github.com/cassidypignatello/bali-renovation-os/internal/jobs"
	"github.com/cassidypignatello/bali-renovation-os/internal/match"
	"github.com/cassidypignatello/bali-renovation-os/internal/resilience"
	"github.com/cassidypignatello/bali-renovation-os/internal/store"
	"github.com/cassidypignatello/bali-renovation-os/pkg/anthropic"
	"github.com/cassidypignatello/bali-renovation-os/pkg/apify"
	"github.com/cassidypignatello/bali-renovation-os/pkg/midtrans"
	"github.com/cassidypignatello/bali-renovation-os/pkg/notion"
)

// appEnv holds the initialized store, clients and services shared by the
// serve/refresh/sync commands.
type appEnv struct {
	Store    store.Store
	Tables   *match.Tables
	Refresh  *jobs.RefreshService
	Maintain *jobs.MaintenanceService
	Notion   notion.Client
	Midtrans midtrans.Client
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "renovation.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv sets up the store, API clients and services. Callers should
// defer env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	tables, err := loadTables()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	retryPolicy := resilience.PolicyFromConfig(
		cfg.Resilience.RetryAttempts,
		cfg.Resilience.RetryBaseMs,
		cfg.Resilience.RetryMaxMs,
		cfg.Resilience.RetryMultiplier,
		cfg.Resilience.RetryJitter,
	)
	breakerCfg := resilience.BreakerFromConfig(
		cfg.Resilience.BreakerThreshold,
		cfg.Resilience.BreakerCooldownS,
	)

	var refreshOpts []jobs.RefreshOption
	refreshOpts = append(refreshOpts,
		jobs.WithRetryPolicy(retryPolicy),
		jobs.WithBreaker(resilience.NewBreaker(breakerCfg)),
	)

	if cfg.Anthropic.Key != "" {
		ai := anthropic.NewClient(cfg.Anthropic.Key)
		refreshOpts = append(refreshOpts, jobs.WithClassifier(classify.New(ai, cfg.Anthropic.HaikuModel,
			classify.WithRetryPolicy(retryPolicy),
			classify.WithBreaker(resilience.NewBreaker(breakerCfg)),
		)))
		zap.L().Info("ai specialization refinement enabled", zap.String("model", cfg.Anthropic.HaikuModel))
	} else {
		zap.L().Debug("RENOVATION_ANTHROPIC_KEY not set, ai refinement disabled")
	}

	env := &appEnv{
		Store:    st,
		Tables:   tables,
		Refresh:  jobs.NewRefreshService(st, newScraper(), refreshOpts...),
		Maintain: jobs.NewMaintenanceService(st),
	}

	if cfg.Notion.Token != "" {
		env.Notion = notion.NewClient(cfg.Notion.Token)
	}
	if cfg.Midtrans.ServerKey != "" {
		env.Midtrans = midtrans.NewClient(cfg.Midtrans.ServerKey,
			midtrans.WithAPIBaseURL(cfg.Midtrans.BaseURL),
			midtrans.WithSnapBaseURL(cfg.Midtrans.SnapBaseURL),
		)
	}

	return env, nil
}

func newScraper() *apify.GmapsScraper {
	var clientOpts []apify.Option
	if cfg.Apify.BaseURL != "" {
		clientOpts = append(clientOpts, apify.WithBaseURL(cfg.Apify.BaseURL))
	}
	client := apify.NewClient(cfg.Apify.Token, clientOpts...)

	return apify.NewGmapsScraper(client,
		apify.WithMaxResults(cfg.Apify.MaxResultsPerSearch),
		apify.WithMaxSearches(cfg.Apify.MaxSearchesPerRun),
		apify.WithMinRating(cfg.Apify.MinRating),
		apify.WithPolling(
			time.Duration(cfg.Apify.PollIntervalSecs)*time.Second,
			time.Duration(cfg.Apify.RunTimeoutSecs)*time.Second,
		),
	)
}

func loadTables() (*match.Tables, error) {
	if cfg.Match.TablesPath == "" {
		return match.DefaultTables(), nil
	}
	tables, err := match.LoadTables(cfg.Match.TablesPath)
	if err != nil {
		return nil, eris.Wrap(err, "load ranking tables")
	}
	return tables, nil
}
