package cli

import (
	"github.com/spf13/cobra"

	"crmagent/internal/crm"
	"crmagent/internal/payload"
	"crmagent/internal/runner"
)

// client возвращает клиента, который вызывает внешний CLI в выбранном формате.
func (s *state) client() *crm.Client {
	if s.enc == runner.EncodingJSON {
		return s.app.Client
	}
	return crm.NewClient(formatRunner{r: s.app.Runner, enc: s.enc})
}

func (s *state) newWhoAmICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Показать текущую учетную запись",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := s.client().WhoAmI(cmd.Context())
			return s.respond(cmd, v, err)
		},
	}
}

func (s *state) newRateLimitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rate-limit",
		Short: "Показать лимиты API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := s.client().RateLimit(cmd.Context())
			return s.respond(cmd, v, err)
		},
	}
}

func (s *state) newPersonCmd() *cobra.Command {
	person := &cobra.Command{Use: "person", Short: "Люди"}

	var opts crm.SearchOptions
	search := &cobra.Command{
		Use:   "search <query>",
		Short: "Найти людей",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := s.client().SearchPersons(cmd.Context(), args[0], opts)
			return s.respond(cmd, v, err)
		},
	}
	search.Flags().IntVar(&opts.PageSize, "page-size", crm.DefaultPageSize, "размер страницы")
	search.Flags().BoolVar(&opts.All, "all", false, "пройти все страницы")

	var level string
	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Получить человека",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := crm.ParseEnrichment(level)
			if err != nil {
				return s.respond(cmd, payload.Value{}, badRequest("--level: %v", err))
			}
			v, err := s.client().GetPerson(cmd.Context(), args[0], lvl)
			return s.respond(cmd, v, err)
		},
	}
	get.Flags().StringVar(&level, "level", "raw", "детализация: raw, detailed, full")

	var createData string
	create := &cobra.Command{
		Use:   "create",
		Short: "Создать человека",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseData(createData)
			if err != nil {
				return s.respond(cmd, payload.Value{}, err)
			}
			v, err := s.client().CreatePerson(cmd.Context(), data)
			return s.respond(cmd, v, err)
		},
	}
	create.Flags().StringVar(&createData, "data", "", "JSON-объект полей")
	_ = create.MarkFlagRequired("data")

	var assertData string
	assert := &cobra.Command{
		Use:   "assert <email>",
		Short: "Создать или обновить человека по email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseData(assertData)
			if err != nil {
				return s.respond(cmd, payload.Value{}, err)
			}
			v, err := s.client().AssertPerson(cmd.Context(), args[0], data)
			return s.respond(cmd, v, err)
		},
	}
	assert.Flags().StringVar(&assertData, "data", "{}", "JSON-объект полей")

	person.AddCommand(search, get, create, assert)
	return person
}

func (s *state) newOrganizationCmd() *cobra.Command {
	org := &cobra.Command{Use: "organization", Aliases: []string{"org"}, Short: "Организации"}

	var term, domain string
	search := &cobra.Command{
		Use:   "search",
		Short: "Найти организации",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := s.client().SearchOrganizations(cmd.Context(), term, domain)
			return s.respond(cmd, v, err)
		},
	}
	search.Flags().StringVar(&term, "term", "", "строка поиска")
	search.Flags().StringVar(&domain, "domain", "", "домен")

	var level string
	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Получить организацию",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := crm.ParseEnrichment(level)
			if err != nil {
				return s.respond(cmd, payload.Value{}, badRequest("--level: %v", err))
			}
			v, err := s.client().GetOrganization(cmd.Context(), args[0], lvl)
			return s.respond(cmd, v, err)
		},
	}
	get.Flags().StringVar(&level, "level", "raw", "детализация: raw, detailed, full")

	org.AddCommand(search, get)
	return org
}

func (s *state) newListCmd() *cobra.Command {
	list := &cobra.Command{Use: "list", Short: "Списки"}

	all := &cobra.Command{
		Use:   "all",
		Short: "Показать все списки",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := s.client().Lists(cmd.Context())
			return s.respond(cmd, v, err)
		},
	}

	var every bool
	entries := &cobra.Command{
		Use:   "entries <list-id>",
		Short: "Показать записи списка",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if s.enc != runner.EncodingJSON {
				v, err := s.client().ListEntriesRaw(cmd.Context(), args[0], every)
				return s.respond(cmd, v, err)
			}
			items, err := s.app.Client.ListEntries(cmd.Context(), args[0], every)
			return s.respond(cmd, payload.Array(items...), err)
		},
	}
	entries.Flags().BoolVar(&every, "all", false, "пройти все страницы")

	export := &cobra.Command{
		Use:   "export <list-id>",
		Short: "Выгрузить все записи списка в list_<id>_export.json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, env, err := s.app.Examples(cmd.ErrOrStderr())
			if err != nil {
				return respondData(cmd, nil, err)
			}
			path, n, err := env.ExportList(cmd.Context(), args[0])
			if err != nil {
				return respondData(cmd, nil, err)
			}
			return respondData(cmd, map[string]interface{}{"path": path, "entries": n}, nil)
		},
	}

	list.AddCommand(all, entries, export)
	return list
}

// parseData разбирает --data; числа сохраняются без потери точности.
func parseData(raw string) (map[string]interface{}, error) {
	v, err := payload.Parse([]byte(raw))
	if err != nil {
		return nil, badRequest("--data is not valid JSON: %v", err)
	}
	obj, ok := v.Interface().(map[string]interface{})
	if !ok {
		return nil, badRequest("--data must be a JSON object, got %s", v.Kind())
	}
	return obj, nil
}
