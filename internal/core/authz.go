package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCommandNotAllowed возвращается для пары subcommand/action вне allowlist.
var ErrCommandNotAllowed = errors.New("command not allowed")

// Action описывает целевую операцию внешнего CLI: "person search" -> {person, search}.
type Action struct {
	Module  string
	Command string
}

func (a Action) String() string {
	return strings.TrimSpace(a.Module + " " + a.Command)
}

// ActionFromArgs берет первые два аргумента как subcommand и action.
func ActionFromArgs(args []string) Action {
	var a Action
	if len(args) > 0 {
		a.Module = args[0]
	}
	if len(args) > 1 {
		a.Command = args[1]
	}
	return a
}

// Authorizer отвечает за решение, можно ли запускать действие.
type Authorizer interface {
	Authorize(action Action) error
}

// CommandAllowlist реализует deny-by-default по парам "subcommand action".
type CommandAllowlist struct {
	allowed map[string]map[string]struct{}
}

// NewCommandAllowlist создает allowlist из строк вида "person search".
// Action "*" разрешает все действия subcommand.
func NewCommandAllowlist(entries []string) (*CommandAllowlist, error) {
	allowed := make(map[string]map[string]struct{}, len(entries))
	for _, entry := range entries {
		fields := strings.Fields(entry)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return nil, fmt.Errorf("allowlist entry %q: want \"<subcommand> <action>\": %w", entry, errInvalidArguments)
		}
		byModule, ok := allowed[fields[0]]
		if !ok {
			byModule = make(map[string]struct{})
			allowed[fields[0]] = byModule
		}
		byModule[fields[1]] = struct{}{}
	}
	return &CommandAllowlist{allowed: allowed}, nil
}

// Authorize возвращает ошибку, если действие не в allowlist.
func (a *CommandAllowlist) Authorize(action Action) error {
	if action.Module == "" || action.Command == "" {
		return fmt.Errorf("empty action %q: %w", action.String(), ErrCommandNotAllowed)
	}
	byModule, ok := a.allowed[action.Module]
	if !ok {
		return fmt.Errorf("subcommand %s: %w", action.Module, ErrCommandNotAllowed)
	}
	if _, ok := byModule["*"]; ok {
		return nil
	}
	if _, ok := byModule[action.Command]; !ok {
		return fmt.Errorf("%s: %w", action.String(), ErrCommandNotAllowed)
	}
	return nil
}
