package storage

import (
	"context"
	"time"
)

// Статусы вызова внешнего CLI.
const (
	StatusOK          = "ok"
	StatusFailed      = "failed"
	StatusDecodeError = "decode_error"
	StatusSpawnError  = "spawn_error"
)

// InvocationRecord фиксирует один запуск внешнего CLI.
// Command хранится с уже скрытым ключом API.
type InvocationRecord struct {
	Subcommand string
	Action     string
	Command    string
	Encoding   string
	ExitCode   int
	Status     string
	Stderr     string
	Duration   time.Duration
	TS         time.Time
}

// InvocationQuery задает фильтры выборки истории.
type InvocationQuery struct {
	From       time.Time
	To         time.Time
	Subcommand string
	Limit      int
}

// Recorder позволяет использовать Store как приемник записей раннера.
type Recorder interface {
	Write(ctx context.Context, rec InvocationRecord) error
}

// Store описывает операции хранилища истории.
type Store interface {
	Recorder
	SaveInvocation(ctx context.Context, rec InvocationRecord) error
	QueryInvocations(ctx context.Context, q InvocationQuery) ([]InvocationRecord, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
	Close() error
}
