package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"crmagent/internal/config"
	"crmagent/internal/core"
	"crmagent/internal/crm"
	"crmagent/internal/examples"
	"crmagent/internal/modules/host"
	"crmagent/internal/runner"
	"crmagent/internal/storage"
	"crmagent/internal/storage/sqlite"
)

// toolKeyEnv: переменная, которую внешний CLI читает без флага --api-key.
const toolKeyEnv = "AFFINITY_API_KEY"

// Options содержит зависимости, которые подменяются в тестах.
type Options struct {
	Logger   *slog.Logger
	Executor runner.Executor
	Checker  *host.Checker
}

// App агрегирует зависимости: раннер, клиент CRM, историю и проверку окружения.
type App struct {
	Config config.Config
	Runner *runner.Runner
	Client *crm.Client
	// Store равен nil, если история выключена.
	Store   storage.Store
	Checker *host.Checker

	credentials string
	log         *slog.Logger
}

// NewApp проверяет конфиг и строит приложение. При включенной истории
// открывает sqlite и удаляет записи старше retention_days.
func NewApp(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	lg := opts.Logger
	if lg == nil {
		lg = slog.Default()
	}

	a := &App{Config: cfg, Checker: opts.Checker, log: lg}
	if a.Checker == nil {
		a.Checker = host.NewChecker()
	}
	key, src := cfg.APIKey()
	a.credentials = src
	if src == "env" && cfg.Tool.APIKeyEnv == toolKeyEnv {
		// CLI сам читает свою переменную; в argv ключ не попадает.
		key = ""
	}

	ropts := runner.Options{
		Binary:   cfg.Tool.Binary,
		APIKey:   key,
		AuthMode: cfg.Tool.AuthMode,
		Executor: opts.Executor,
		Logger:   lg,
	}
	if len(cfg.Security.ExecAllowlist) > 0 {
		policy, err := core.NewCommandAllowlist(cfg.Security.ExecAllowlist)
		if err != nil {
			return nil, fmt.Errorf("build exec allowlist: %w", err)
		}
		ropts.Policy = policy
	}

	if cfg.History.Enabled {
		st, err := sqlite.Open(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		a.Store = st
		ropts.Recorder = st
		if err := a.prune(ctx); err != nil {
			lg.Warn("prune history", "err", err)
		}
	}

	a.Runner = runner.New(ropts)
	a.Client = crm.NewClient(a.Runner)
	return a, nil
}

func (a *App) prune(ctx context.Context) error {
	days := a.Config.History.RetentionDays
	if days <= 0 {
		return nil
	}
	before := time.Now().UTC().AddDate(0, 0, -days)
	n, err := a.Store.Prune(ctx, before)
	if err != nil {
		return err
	}
	if n > 0 {
		a.log.Debug("history pruned", "rows", n, "before", before.Format(time.RFC3339))
	}
	return nil
}

// Examples возвращает набор сценариев, печатающих в out.
func (a *App) Examples(out io.Writer) (*core.Suite, *examples.Env, error) {
	env := examples.NewEnv(a.Client, out)
	env.ExportDir = a.Config.Examples.ExportDir
	if a.Config.Examples.EnrichLimit > 0 {
		env.EnrichLimit = a.Config.Examples.EnrichLimit
	}
	s := core.NewSuite()
	if err := examples.Register(s, env); err != nil {
		return nil, nil, err
	}
	return s, env, nil
}

// Doctor проверяет узел, наличие CLI и источник ключа.
func (a *App) Doctor(ctx context.Context) (host.Report, error) {
	return a.Checker.Check(ctx, a.Runner.Binary(), a.credentials)
}

// Close высвобождает ресурсы приложения.
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
