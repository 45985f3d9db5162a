// internal/cli/app.go
package cli

import (
	"context"
	"fmt"
	"io"
	"sync"

	"loangenius/internal/common/aws"
	"loangenius/internal/common/config"
	"loangenius/internal/common/database"
	"loangenius/internal/common/health"
	"loangenius/internal/common/logger"
	"loangenius/internal/common/observability"
	"loangenius/internal/common/partner"
	"loangenius/internal/loan/contact"
	"loangenius/internal/loan/lookup"
	"loangenius/internal/loan/session"
	"loangenius/internal/loan/store"
	"loangenius/internal/loan/submission"
)

// App is what every command needs. Build wires it from configuration; tests
// assemble it directly.
type App struct {
	Config  *config.Config
	Logger  logger.Logger
	Prompt  Prompter
	Out     io.Writer
	Partner *partner.Client
	KV      store.KV
	Obs     *observability.Observability

	// OpenContacts opens the contact message repository on first use.
	OpenContacts func(ctx context.Context) (*contact.Repository, error)

	once     sync.Once
	sessions *session.Manager
	closers  []func() error
}

// Build creates the partner client and the client-state store selected by
// session.backend.
func Build(cfg *config.Config, log logger.Logger, prompt Prompter, out io.Writer) (*App, error) {
	app := &App{
		Config:  cfg,
		Logger:  log,
		Prompt:  prompt,
		Out:     out,
		Partner: partner.NewClientFromConfig(cfg.Partner, log),
	}

	switch cfg.Session.Backend {
	case "redis":
		rdb, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, rdb.Close)
		app.KV = store.NewRedis(rdb, cfg.Session.Namespace, 0)
	default:
		app.KV = store.NewMemory()
	}

	app.OpenContacts = func(ctx context.Context) (*contact.Repository, error) {
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, pg.Close)
		if err := pg.Ping(ctx); err != nil {
			return nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		var opts []contact.Option
		if n := cfg.Notify; n.ContactEnabled() {
			mailer, err := aws.NewSESClient(ctx, n.Region)
			if err != nil {
				return nil, err
			}
			opts = append(opts, contact.WithNotification(mailer, n.ContactFrom, n.ContactTo))
		}
		return contact.NewRepository(pg.DB, log, opts...), nil
	}
	return app, nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("close failed", map[string]interface{}{"error": err.Error()})
		}
	}
	a.closers = nil
}

// Sessions returns the shared session manager.
func (a *App) Sessions() *session.Manager {
	a.once.Do(func() {
		a.sessions = session.NewManager(a.Partner, a.KV, session.Options{
			ResendCooldown: config.GetDuration(a.Config.Session.ResendCooldown),
			MaxAttempts:    a.Config.Session.MaxOTPAttempts,
			Logger:         a.Logger,
		})
	})
	return a.sessions
}

func (a *App) Orchestrator() *submission.Orchestrator {
	return submission.NewOrchestrator(a.Partner, submission.Options{
		MaxAttempts:    a.Config.Submission.MaxAttempts,
		BaseDelay:      config.GetDuration(a.Config.Submission.BaseDelay),
		MaxDelay:       config.GetDuration(a.Config.Submission.MaxDelay),
		AttemptTimeout: a.Config.Submission.AttemptTimeoutDuration(),
		Store:          a.KV,
		Observability:  a.Obs,
		Logger:         a.Logger,
	})
}

func (a *App) Companies() *lookup.CompanySearch {
	return lookup.NewCompanySearch(a.Partner, lookup.CompanyOptions{
		MinQueryLength: a.Config.Lookup.MinQueryLength,
		CacheSize:      a.Config.Lookup.CacheSize,
		CacheTTL:       config.GetDuration(a.Config.Lookup.CacheTTL),
	}, a.Logger)
}

// Pincodes skips the debounce: a terminal prompt already delivers the whole
// code at once.
func (a *App) Pincodes() *lookup.PincodeResolver {
	return lookup.NewPincodeResolver(a.Partner, 0, a.Logger)
}

func (a *App) Health() *health.Checker {
	return health.NewChecker([]health.Target{
		{Name: "UAT API", BaseURL: a.Config.Partner.UATBaseURL},
		{Name: "External API", BaseURL: a.Config.Partner.ExternalBaseURL},
	}, a.Config.Health.Path, config.GetDuration(a.Config.Health.Timeout), a.Logger)
}

func (a *App) printf(format string, args ...interface{}) {
	fmt.Fprintf(a.Out, format, args...)
}
