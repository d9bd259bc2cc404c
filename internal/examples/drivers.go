// Package examples содержит сценарии, которые показывают работу с внешним CRM CLI:
// проверка авторизации, пакетный upsert, поиск дублей, экспорт списка и обогащение.
package examples

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"crmagent/internal/core"
	"crmagent/internal/crm"
	"crmagent/internal/payload"
)

// Contact описывает входную запись для пакетного upsert.
type Contact struct {
	Email     string
	FirstName string
	LastName  string
}

func (c Contact) data() map[string]interface{} {
	return map[string]interface{}{"first_name": c.FirstName, "last_name": c.LastName}
}

// DefaultContacts используются сценарием upsert.
var DefaultContacts = []Contact{
	{Email: "alice@example.com", FirstName: "Alice", LastName: "Smith"},
	{Email: "bob@example.com", FirstName: "Bob", LastName: "Jones"},
}

// DefaultDuplicateNames используются для поиска дублей.
var DefaultDuplicateNames = []string{"john", "smith", "jones"}

const defaultEnrichLimit = 5

var errNoID = errors.New("record has no id")

// ErrInvalidListID возвращается, если идентификатор списка непригоден для имени файла экспорта.
var ErrInvalidListID = errors.New("invalid list id")

// Env содержит зависимости сценариев.
type Env struct {
	Client *crm.Client
	Out    io.Writer
	// ExportDir задает каталог для list_<id>_export.json; пустой означает текущий.
	ExportDir      string
	EnrichLimit    int
	Contacts       []Contact
	DuplicateNames []string

	ok   lipgloss.Style
	fail lipgloss.Style
	head lipgloss.Style
}

// NewEnv создает окружение со значениями по умолчанию.
func NewEnv(client *crm.Client, out io.Writer) *Env {
	r := lipgloss.NewRenderer(out)
	return &Env{
		Client:         client,
		Out:            out,
		EnrichLimit:    defaultEnrichLimit,
		Contacts:       DefaultContacts,
		DuplicateNames: DefaultDuplicateNames,
		ok:             r.NewStyle().Foreground(lipgloss.Color("2")),
		fail:           r.NewStyle().Foreground(lipgloss.Color("1")),
		head:           r.NewStyle().Bold(true),
	}
}

// Register добавляет сценарии в набор в фиксированном порядке.
func Register(s *core.Suite, e *Env) error {
	drivers := []struct {
		name string
		job  core.Job
	}{
		{"basic", e.Basic},
		{"upsert", e.Upsert},
		{"duplicates", e.Duplicates},
		{"export", e.Export},
		{"enrich", e.Enrich},
	}
	for _, d := range drivers {
		if err := s.Register(d.name, d.job); err != nil {
			return fmt.Errorf("register driver %s: %w", d.name, err)
		}
	}
	return nil
}

// RunSuite выполняет сценарии, печатая ошибки каждого, и продолжает со следующего.
func RunSuite(ctx context.Context, s *core.Suite, names []string, out io.Writer) ([]core.Outcome, error) {
	outcomes, err := s.Run(ctx, names, func(o core.Outcome) {
		if o.Err != nil {
			fmt.Fprintf(out, "Error in %s: %v\n\n", o.Name, o.Err)
		}
	})
	if err != nil {
		return outcomes, err
	}
	fmt.Fprintln(out, "=== All examples complete! ===")
	return outcomes, nil
}

func (e *Env) header(title string) {
	fmt.Fprintf(e.Out, "%s\n\n", e.head.Render("=== "+title+" ==="))
}

func (e *Env) success(format string, args ...interface{}) {
	fmt.Fprintf(e.Out, "%s %s\n", e.ok.Render("✓"), fmt.Sprintf(format, args...))
}

func (e *Env) failure(format string, args ...interface{}) {
	fmt.Fprintf(e.Out, "%s %s\n", e.fail.Render("✗"), fmt.Sprintf(format, args...))
}

func recordID(v payload.Value) (string, error) {
	id, ok := v.Get("id")
	if !ok || id.Text() == "" {
		return "", errNoID
	}
	return id.Text(), nil
}

// Basic проверяет авторизацию и получает подробности первого найденного человека.
func (e *Env) Basic(ctx context.Context) error {
	e.header("Example 1: Basic Operations")

	user, err := e.Client.WhoAmI(ctx)
	if err != nil {
		return fmt.Errorf("whoami: %w", err)
	}
	fmt.Fprintf(e.Out, "Authenticated as: %s\n\n", user.StringOr("email", "Unknown"))

	found, err := e.Client.SearchPersons(ctx, "engineer", crm.SearchOptions{PageSize: 5})
	if err != nil {
		return fmt.Errorf("search persons: %w", err)
	}
	results := Records(found)
	fmt.Fprintf(e.Out, "Found %d persons matching 'engineer'\n", len(results))
	if len(results) == 0 {
		return nil
	}

	id, err := recordID(results[0])
	if err != nil {
		return fmt.Errorf("first search result: %w", err)
	}
	detailed, err := e.Client.GetPerson(ctx, id, crm.EnrichmentDetailed)
	if err != nil {
		return fmt.Errorf("get person %s: %w", id, err)
	}
	fmt.Fprintf(e.Out, "First result: %s\n\n", detailed.StringOr("name", "No name"))
	return nil
}

// UpsertContacts выполняет assert для каждого контакта; ошибки изолированы по контакту.
func (e *Env) UpsertContacts(ctx context.Context, contacts []Contact) []ItemResult {
	return Each(contacts,
		func(c Contact) string { return c.Email },
		func(c Contact) (payload.Value, error) {
			return e.Client.AssertPerson(ctx, c.Email, c.data())
		},
		func(c Contact, res ItemResult) {
			if res.OK() {
				e.success("Upserted: %s", res.Value.StringOr("name", c.Email))
				return
			}
			e.failure("Failed to upsert %s: %v", c.Email, res.Err)
		},
	)
}

// Upsert выполняет сценарий пакетного upsert.
func (e *Env) Upsert(ctx context.Context) error {
	e.header("Example 2: Upsert Contacts")
	fmt.Fprintf(e.Out, "Upserting %d contacts...\n", len(e.Contacts))
	e.UpsertContacts(ctx, e.Contacts)
	fmt.Fprintln(e.Out)
	return nil
}

// Duplicates ищет домены, где по одному имени найдено больше одного человека.
func (e *Env) Duplicates(ctx context.Context) error {
	e.header("Example 3: Find Potential Duplicates")
	e.FindDuplicates(ctx, e.DuplicateNames)
	fmt.Fprintln(e.Out)
	return nil
}

// FindDuplicates ищет каждое имя отдельно; ошибка поиска по одному имени
// не прерывает остальные.
func (e *Env) FindDuplicates(ctx context.Context, names []string) []ItemResult {
	return Each(names,
		func(name string) string { return name },
		func(name string) (payload.Value, error) {
			return e.Client.SearchPersons(ctx, name, crm.SearchOptions{PageSize: 100, All: true})
		},
		func(name string, res ItemResult) {
			if !res.OK() {
				e.failure("Failed to search '%s': %v", name, res.Err)
				return
			}
			groups := GroupByDomain(Records(res.Value))
			for _, domain := range DuplicateDomains(groups) {
				fmt.Fprintf(e.Out, "Found %d contacts at %s matching '%s'\n", len(groups[domain]), domain, name)
			}
		},
	)
}

// ExportList пишет все записи списка в ExportDir/list_<id>_export.json.
func (e *Env) ExportList(ctx context.Context, listID string) (string, int, error) {
	if listID == "" || strings.ContainsAny(listID, `/\`) || listID == ".." {
		return "", 0, fmt.Errorf("%q: %w", listID, ErrInvalidListID)
	}
	entries, err := e.Client.ListEntries(ctx, listID, true)
	if err != nil {
		return "", 0, fmt.Errorf("list entries %s: %w", listID, err)
	}
	buf, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", 0, fmt.Errorf("marshal entries: %w", err)
	}
	path := filepath.Join(e.ExportDir, fmt.Sprintf("list_%s_export.json", listID))
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return "", 0, fmt.Errorf("write export file: %w", err)
	}
	return path, len(entries), nil
}

// Export выгружает первый доступный список.
func (e *Env) Export(ctx context.Context) error {
	e.header("Example 4: Export List Data")

	found, err := e.Client.Lists(ctx)
	if err != nil {
		return fmt.Errorf("list all lists: %w", err)
	}
	lists := Records(found)
	fmt.Fprintf(e.Out, "Found %d lists\n\n", len(lists))
	if len(lists) == 0 {
		return nil
	}

	id, err := recordID(lists[0])
	if err != nil {
		return fmt.Errorf("first list: %w", err)
	}
	fmt.Fprintf(e.Out, "Exporting list: %s\n", lists[0].StringOr("name", "Unknown"))
	path, n, err := e.ExportList(ctx, id)
	if err != nil {
		return err
	}
	e.success("Exported %d entries to %s\n", n, filepath.Base(path))
	return nil
}

// EnrichOrganizations получает полные данные организаций; ошибки изолированы по организации.
func (e *Env) EnrichOrganizations(ctx context.Context, orgs []payload.Value) []ItemResult {
	return Each(orgs,
		func(org payload.Value) string { return org.StringOr("name", "Unknown") },
		func(org payload.Value) (payload.Value, error) {
			id, err := recordID(org)
			if err != nil {
				return payload.Value{}, err
			}
			return e.Client.GetOrganization(ctx, id, crm.EnrichmentFull)
		},
		func(org payload.Value, res ItemResult) {
			if res.OK() {
				e.success("Enriched: %s", res.Label)
				return
			}
			e.failure("Failed: %s", res.Label)
		},
	)
}

// Enrich обогащает первые EnrichLimit организаций по запросу "tech".
func (e *Env) Enrich(ctx context.Context) error {
	e.header("Example 5: Enrichment Workflow")

	found, err := e.Client.SearchOrganizations(ctx, "tech", "")
	if err != nil {
		return fmt.Errorf("search organizations: %w", err)
	}
	orgs := Records(found)
	fmt.Fprintf(e.Out, "Processing %d organizations...\n", len(orgs))

	limit := e.EnrichLimit
	if limit <= 0 {
		limit = defaultEnrichLimit
	}
	if len(orgs) > limit {
		orgs = orgs[:limit]
	}
	sum := Summarize(e.EnrichOrganizations(ctx, orgs))
	fmt.Fprintf(e.Out, "\nSuccessfully enriched: %d\n", sum.Succeeded)
	fmt.Fprintf(e.Out, "Errors: %d\n\n", sum.Failed)
	return nil
}
