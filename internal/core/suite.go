package core

import (
	"context"
	"errors"
	"fmt"
)

var (
	errJobExists  = errors.New("job already registered")
	errUnknownJob = errors.New("unknown job")
)

// Job описывает именованную задачу набора.
type Job func(ctx context.Context) error

// Outcome хранит результат одной задачи.
type Outcome struct {
	Name string
	Err  error
}

// Suite хранит задачи в порядке регистрации и выполняет их последовательно.
// Ошибка или panic одной задачи не останавливает следующие.
type Suite struct {
	names []string
	jobs  map[string]Job
}

// NewSuite создает пустой набор.
func NewSuite() *Suite {
	return &Suite{jobs: make(map[string]Job)}
}

// Register добавляет задачу; имя должно быть уникальным.
func (s *Suite) Register(name string, job Job) error {
	if job == nil {
		return fmt.Errorf("job is nil: %w", errInvalidArguments)
	}
	if name == "" {
		return fmt.Errorf("job name is empty: %w", errInvalidArguments)
	}
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%s: %w", name, errJobExists)
	}
	s.jobs[name] = job
	s.names = append(s.names, name)
	return nil
}

// Names возвращает имена задач в порядке регистрации.
func (s *Suite) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Run выполняет выбранные задачи (все, если names пуст) и вызывает report после каждой.
// Неизвестное имя возвращает ошибку до запуска чего-либо.
func (s *Suite) Run(ctx context.Context, names []string, report func(Outcome)) ([]Outcome, error) {
	selected := names
	if len(selected) == 0 {
		selected = s.names
	}
	for _, name := range selected {
		if _, ok := s.jobs[name]; !ok {
			return nil, fmt.Errorf("%s: %w", name, errUnknownJob)
		}
	}

	outcomes := make([]Outcome, 0, len(selected))
	for _, name := range selected {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		out := Outcome{Name: name, Err: runIsolated(ctx, s.jobs[name])}
		outcomes = append(outcomes, out)
		if report != nil {
			report(out)
		}
	}
	return outcomes, nil
}

func runIsolated(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return job(ctx)
}
