// Package cli реализует командную строку crmagent поверх внешнего CRM CLI.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"crmagent/internal/app"
	"crmagent/internal/config"
	"crmagent/internal/core"
	"crmagent/internal/examples"
	"crmagent/internal/modules/host"
	"crmagent/internal/payload"
	"crmagent/internal/runner"
	"crmagent/pkg/logger"
)

var errBadRequest = errors.New("bad request")

// Options задают окружение команды. Executor и Checker подменяются в тестах.
type Options struct {
	Version   string
	LogWriter io.Writer
	Executor  runner.Executor
	Checker   *host.Checker
}

type state struct {
	opts Options

	configPath string
	apiKey     string
	binary     string
	format     string
	authMode   string
	history    bool

	app *app.App
	enc runner.Encoding
}

// Run выполняет команду с аргументами args и закрывает приложение после нее.
func Run(ctx context.Context, opts Options, args []string, stdout, stderr io.Writer) error {
	s := &state{opts: opts}
	root := s.root()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if s.app != nil {
		if cerr := s.app.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close app: %w", cerr)
		}
	}
	return err
}

func (s *state) root() *cobra.Command {
	root := &cobra.Command{
		Use:               "crmagent",
		Short:             "Обертка над CRM CLI: запросы, upsert, экспорт и сценарии",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: s.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&s.configPath, "config", "", "путь к YAML-конфигу")
	pf.StringVar(&s.apiKey, "api-key", "", "ключ API (иначе из окружения)")
	pf.StringVar(&s.binary, "binary", "", "имя или путь внешнего CLI")
	pf.StringVar(&s.format, "format", "", "формат вывода внешнего CLI: json, table, csv")
	pf.StringVar(&s.authMode, "auth-mode", "", "режим авторизации: basic или bearer")
	pf.BoolVar(&s.history, "history", false, "записывать вызовы в историю")

	root.AddCommand(newVersionCmd(s.opts.Version))
	root.AddCommand(s.newWhoAmICmd())
	root.AddCommand(s.newRateLimitCmd())
	root.AddCommand(s.newPersonCmd())
	root.AddCommand(s.newOrganizationCmd())
	root.AddCommand(s.newListCmd())
	root.AddCommand(s.newExamplesCmd())
	root.AddCommand(s.newHistoryCmd())
	root.AddCommand(s.newDoctorCmd())
	return root
}

// setup читает конфиг и dotenv, применяет флаги и строит приложение.
func (s *state) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(s.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.LoadDotenv(cfg.Tool.Dotenv); err != nil {
		return err
	}
	if s.apiKey != "" {
		cfg.Tool.APIKey = s.apiKey
	}
	if s.binary != "" {
		cfg.Tool.Binary = s.binary
	}
	if s.format != "" {
		cfg.Tool.Format = strings.ToLower(s.format)
	}
	if s.authMode != "" {
		cfg.Tool.AuthMode = s.authMode
	}
	if cmd.Flags().Changed("history") {
		cfg.History.Enabled = s.history
	}

	lg := logger.Discard()
	if s.opts.LogWriter != nil {
		lg = logger.New(s.opts.LogWriter, cfg.Agent.LogLevel)
	}
	a, err := app.NewApp(cmd.Context(), cfg, app.Options{Logger: lg, Executor: s.opts.Executor, Checker: s.opts.Checker})
	if err != nil {
		return err
	}
	enc, err := runner.ParseEncoding(cfg.Tool.Format)
	if err != nil {
		_ = a.Close()
		return err
	}
	s.app = a
	s.enc = enc
	return nil
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Показать версию",
		// Версии не нужен ни конфиг, ни внешний CLI.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", version)
		},
	}
}

// formatRunner выполняет вызовы клиента с форматом, выбранным пользователем.
type formatRunner struct {
	r   *runner.Runner
	enc runner.Encoding
}

func (f formatRunner) JSON(ctx context.Context, args ...string) (payload.Value, error) {
	return f.r.Run(ctx, f.enc, args...)
}

// respond печатает результат внешнего CLI: конверт core.Response для json,
// текст как есть для table и csv. Ошибка в режиме json тоже печатается конвертом.
func (s *state) respond(cmd *cobra.Command, v payload.Value, err error) error {
	out := cmd.OutOrStdout()
	if err != nil {
		if s.enc == runner.EncodingJSON {
			_ = writeJSON(out, core.Fail(errorCode(err), err))
		}
		return err
	}
	if s.enc != runner.EncodingJSON {
		text := v.Text()
		fmt.Fprint(out, text)
		if text != "" && !strings.HasSuffix(text, "\n") {
			fmt.Fprintln(out)
		}
		return nil
	}
	return writeJSON(out, core.OK(v))
}

// respondData печатает собственные данные crmagent; они всегда в json.
func respondData(cmd *cobra.Command, data interface{}, err error) error {
	out := cmd.OutOrStdout()
	if err != nil {
		_ = writeJSON(out, core.Fail(errorCode(err), err))
		return err
	}
	return writeJSON(out, core.OK(data))
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func errorCode(err error) string {
	var cmdErr *runner.ExternalCommandError
	var decErr *runner.DecodeError
	switch {
	case errors.As(err, &cmdErr):
		return core.CodeExternalCommandFailed
	case errors.As(err, &decErr):
		return core.CodeDecodeFailed
	case errors.Is(err, core.ErrCommandNotAllowed):
		return core.CodeCommandNotAllowed
	case errors.Is(err, errBadRequest), errors.Is(err, examples.ErrInvalidListID):
		return core.CodeBadRequest
	default:
		return core.CodeInternal
	}
}

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), errBadRequest)
}
