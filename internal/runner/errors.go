package runner

import (
	"fmt"
	"strings"
)

const redacted = "***"

// ExternalCommandError означает, что внешний CLI завершился с ненулевым кодом.
type ExternalCommandError struct {
	// Command хранит argv уже после Redact.
	Command  []string
	Stderr   string
	ExitCode int
}

func (e *ExternalCommandError) Error() string {
	msg := fmt.Sprintf("command %q exited with code %d", CommandString(e.Command), e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// DecodeError означает, что stdout заявлен как JSON, но не разбирается.
type DecodeError struct {
	Command []string
	Output  string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode output of %q: %v", CommandString(e.Command), e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Redact возвращает копию argv, где значение --api-key заменено на ***.
func Redact(argv []string) []string {
	out := make([]string, len(argv))
	copy(out, argv)
	for i := 0; i < len(out); i++ {
		switch {
		case out[i] == flagAPIKey && i+1 < len(out):
			out[i+1] = redacted
			i++
		case strings.HasPrefix(out[i], flagAPIKey+"="):
			out[i] = flagAPIKey + "=" + redacted
		}
	}
	return out
}

// CommandString возвращает argv одной строкой, без секретов.
func CommandString(argv []string) string {
	return strings.Join(Redact(argv), " ")
}
