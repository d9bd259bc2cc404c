package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
)

// Result хранит итог выполнения дочернего процесса.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Executor запускает процесс и ждет его завершения.
// Ненулевой код выхода не считается ошибкой Executor: он возвращается в Result.
// Ошибка означает, что процесс не удалось запустить или дождаться.
type Executor interface {
	Execute(ctx context.Context, name string, args []string) (Result, error)
}

// ExecExecutor реализует Executor поверх os/exec. Окружение наследуется.
type ExecExecutor struct{}

func (ExecExecutor) Execute(ctx context.Context, name string, args []string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			res.ExitCode = code
			return res, nil
		}
		// Процесс убит сигналом не нами: это тоже ненулевой выход.
		if ctx.Err() == nil {
			res.ExitCode = signalExitCode(exitErr)
			return res, nil
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, fmt.Errorf("run %s: %w", name, ctxErr)
	}
	return res, fmt.Errorf("run %s: %w", name, err)
}

// signalExitCode возвращает 128+номер сигнала, как это делает shell, либо -1.
func signalExitCode(exitErr *exec.ExitError) int {
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return -1
}
