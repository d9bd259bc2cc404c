package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"crmagent/internal/examples"
	"crmagent/internal/storage"
)

func (s *state) newExamplesCmd() *cobra.Command {
	ex := &cobra.Command{Use: "examples", Short: "Сценарии работы с CRM"}

	list := &cobra.Command{
		Use:   "list",
		Short: "Показать сценарии",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			suite, _, err := s.app.Examples(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			for _, name := range suite.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}

	run := &cobra.Command{
		Use:   "run [name...]",
		Short: "Выполнить сценарии (все, если имена не заданы)",
		RunE: func(cmd *cobra.Command, args []string) error {
			suite, _, err := s.app.Examples(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			// Ошибки отдельных сценариев уже напечатаны и код выхода не меняют.
			_, err = examples.RunSuite(cmd.Context(), suite, args, cmd.OutOrStdout())
			return err
		},
	}

	ex.AddCommand(list, run)
	return ex
}

type historyEntry struct {
	TS         string `json:"ts"`
	Subcommand string `json:"subcommand"`
	Action     string `json:"action"`
	Command    string `json:"command"`
	Encoding   string `json:"encoding"`
	ExitCode   int    `json:"exit_code"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	Stderr     string `json:"stderr,omitempty"`
}

func (s *state) newHistoryCmd() *cobra.Command {
	var (
		since      time.Duration
		subcommand string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Показать историю вызовов внешнего CLI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if s.app.Store == nil {
				return respondData(cmd, nil, badRequest("history is disabled: set history.enabled or pass --history"))
			}
			q := storage.InvocationQuery{Subcommand: subcommand, Limit: limit}
			if since > 0 {
				q.From = time.Now().UTC().Add(-since)
			}
			recs, err := s.app.Store.QueryInvocations(cmd.Context(), q)
			if err != nil {
				return respondData(cmd, nil, err)
			}
			entries := make([]historyEntry, 0, len(recs))
			for _, rec := range recs {
				entries = append(entries, historyEntry{
					TS:         rec.TS.Format(time.RFC3339),
					Subcommand: rec.Subcommand,
					Action:     rec.Action,
					Command:    rec.Command,
					Encoding:   rec.Encoding,
					ExitCode:   rec.ExitCode,
					Status:     rec.Status,
					DurationMS: rec.Duration.Milliseconds(),
					Stderr:     rec.Stderr,
				})
			}
			return respondData(cmd, entries, nil)
		},
	}
	cmd.Flags().DurationVar(&since, "since", 0, "только записи за последний интервал, например 24h")
	cmd.Flags().StringVar(&subcommand, "subcommand", "", "фильтр по subcommand")
	cmd.Flags().IntVar(&limit, "limit", 50, "максимум записей (до 200)")
	return cmd
}

var errUnhealthy = errors.New("environment check failed")

func (s *state) newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Проверить узел, наличие CLI и ключ API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := s.app.Doctor(cmd.Context())
			if err != nil {
				return respondData(cmd, nil, err)
			}
			if err := respondData(cmd, rep, nil); err != nil {
				return err
			}
			if !rep.Healthy() {
				return errUnhealthy
			}
			return nil
		},
	}
}
