// Package runner запускает внешний CRM CLI дочерним процессом и декодирует его вывод.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"crmagent/internal/core"
	"crmagent/internal/payload"
	"crmagent/internal/storage"
)

const (
	DefaultBinary = "affinity"

	flagAPIKey   = "--api-key"
	flagAuthMode = "--auth-mode"
	flagFormat   = "--format"
)

// Encoding задает формат вывода, запрашиваемый у внешнего CLI.
type Encoding string

const (
	EncodingJSON  Encoding = "json"
	EncodingTable Encoding = "table"
	EncodingCSV   Encoding = "csv"
)

var errUnknownEncoding = errors.New("unknown encoding")

// ParseEncoding проверяет значение формата.
func ParseEncoding(s string) (Encoding, error) {
	switch enc := Encoding(strings.ToLower(strings.TrimSpace(s))); enc {
	case EncodingJSON, EncodingTable, EncodingCSV:
		return enc, nil
	default:
		return "", fmt.Errorf("%q (want json, table or csv): %w", s, errUnknownEncoding)
	}
}

// Invocation хранит аргументы одного вызова без имени бинаря и флага формата.
type Invocation struct {
	args     []string
	encoding Encoding
}

// NewInvocation копирует args, поэтому вызов не меняется после создания.
func NewInvocation(enc Encoding, args ...string) Invocation {
	cp := make([]string, len(args))
	copy(cp, args)
	return Invocation{args: cp, encoding: enc}
}

// Options задают раннер. Пустые поля получают значения по умолчанию.
type Options struct {
	Binary   string
	APIKey   string
	AuthMode string
	Executor Executor
	Logger   *slog.Logger
	// Policy, если задан, ограничивает пары subcommand/action.
	Policy core.Authorizer
	// Recorder, если задан, получает запись о каждом вызове.
	Recorder storage.Recorder
}

// Runner собирает argv, запускает внешний CLI и декодирует stdout.
// Вызовы синхронны: каждый ждет завершения процесса.
type Runner struct {
	binary   string
	apiKey   string
	authMode string
	exec     Executor
	log      *slog.Logger
	policy   core.Authorizer
	recorder storage.Recorder
	now      func() time.Time
}

// New создает раннер.
func New(opts Options) *Runner {
	if opts.Binary == "" {
		opts.Binary = DefaultBinary
	}
	if opts.Executor == nil {
		opts.Executor = ExecExecutor{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Runner{
		binary:   opts.Binary,
		apiKey:   opts.APIKey,
		authMode: opts.AuthMode,
		exec:     opts.Executor,
		log:      opts.Logger,
		policy:   opts.Policy,
		recorder: opts.Recorder,
		now:      time.Now,
	}
}

// Binary возвращает имя или путь внешнего CLI.
func (r *Runner) Binary() string { return r.binary }

// HasAPIKey сообщает, передается ли ключ явно.
func (r *Runner) HasAPIKey() bool { return r.apiKey != "" }

// Command собирает полный argv: бинарь, ключ, режим авторизации, args и ровно один --format.
func (r *Runner) Command(inv Invocation) []string {
	argv := make([]string, 0, len(inv.args)+7)
	argv = append(argv, r.binary)
	if r.apiKey != "" {
		argv = append(argv, flagAPIKey, r.apiKey)
	}
	if r.authMode != "" {
		argv = append(argv, flagAuthMode, r.authMode)
	}
	argv = append(argv, inv.args...)
	argv = append(argv, flagFormat, string(inv.encoding))
	return argv
}

// JSON выполняет вызов с форматом json.
func (r *Runner) JSON(ctx context.Context, args ...string) (payload.Value, error) {
	return r.Run(ctx, EncodingJSON, args...)
}

// Run выполняет один вызов внешнего CLI.
//
// Ненулевой код выхода всегда дает *ExternalCommandError, независимо от stdout.
// Для json с непустым stdout результат разбирается; ошибка разбора дает *DecodeError.
// Пустой stdout или другой формат возвращаются как строка без изменений.
func (r *Runner) Run(ctx context.Context, enc Encoding, args ...string) (payload.Value, error) {
	inv := NewInvocation(enc, args...)
	action := core.ActionFromArgs(inv.args)
	if r.policy != nil {
		if err := r.policy.Authorize(action); err != nil {
			return payload.Value{}, err
		}
	}

	argv := r.Command(inv)
	rec := storage.InvocationRecord{
		Subcommand: action.Module,
		Action:     action.Command,
		Command:    CommandString(argv),
		Encoding:   string(enc),
		TS:         r.now().UTC(),
	}

	r.log.Debug("spawn external command", "cmd", rec.Command)
	start := r.now()
	res, err := r.exec.Execute(ctx, argv[0], argv[1:])
	rec.Duration = r.now().Sub(start)
	rec.ExitCode = res.ExitCode
	rec.Stderr = res.Stderr
	if err != nil {
		rec.Status = storage.StatusSpawnError
		rec.ExitCode = -1
		r.record(ctx, rec)
		r.log.Error("external command could not run", "cmd", rec.Command, "err", err)
		return payload.Value{}, err
	}

	if res.ExitCode != 0 {
		rec.Status = storage.StatusFailed
		r.record(ctx, rec)
		r.log.Error("external command failed",
			"cmd", rec.Command,
			"exit_code", res.ExitCode,
			"stderr", strings.TrimSpace(res.Stderr),
		)
		return payload.Value{}, &ExternalCommandError{Command: Redact(argv), Stderr: res.Stderr, ExitCode: res.ExitCode}
	}

	if enc != EncodingJSON || strings.TrimSpace(res.Stdout) == "" {
		rec.Status = storage.StatusOK
		r.record(ctx, rec)
		return payload.String(res.Stdout), nil
	}

	value, err := payload.Parse([]byte(res.Stdout))
	if err != nil {
		rec.Status = storage.StatusDecodeError
		r.record(ctx, rec)
		r.log.Error("external command returned invalid json", "cmd", rec.Command, "err", err)
		return payload.Value{}, &DecodeError{Command: Redact(argv), Output: res.Stdout, Err: err}
	}
	rec.Status = storage.StatusOK
	r.record(ctx, rec)
	return value, nil
}

func (r *Runner) record(ctx context.Context, rec storage.InvocationRecord) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.Write(ctx, rec); err != nil {
		r.log.Warn("record invocation", "cmd", rec.Command, "err", err)
	}
}
