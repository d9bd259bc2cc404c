// Package crm превращает типизированные вызовы ("найти людей", "upsert по email")
// в аргументы внешнего CLI и разбирает форму ответа там, где это нужно.
package crm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"crmagent/internal/payload"
	"crmagent/internal/runner"
)

// DefaultPageSize задает размер страницы поиска людей по умолчанию.
const DefaultPageSize = 10

// Runner выполняет вызов внешнего CLI с форматом json.
type Runner interface {
	JSON(ctx context.Context, args ...string) (payload.Value, error)
}

// Enrichment задает уровень детализации get-запросов.
type Enrichment string

const (
	EnrichmentRaw      Enrichment = "raw"
	EnrichmentDetailed Enrichment = "detailed"
	EnrichmentFull     Enrichment = "full"
)

var errUnknownEnrichment = errors.New("unknown enrichment level")

// ParseEnrichment проверяет уровень детализации; пустая строка означает raw.
func ParseEnrichment(s string) (Enrichment, error) {
	switch e := Enrichment(strings.ToLower(strings.TrimSpace(s))); e {
	case "":
		return EnrichmentRaw, nil
	case EnrichmentRaw, EnrichmentDetailed, EnrichmentFull:
		return e, nil
	default:
		return "", fmt.Errorf("%q (want raw, detailed or full): %w", s, errUnknownEnrichment)
	}
}

// flag возвращает флаг уровня; raw и неизвестные уровни флага не дают.
func (e Enrichment) flag() []string {
	switch e {
	case EnrichmentDetailed:
		return []string{"--detailed"}
	case EnrichmentFull:
		return []string{"--full"}
	default:
		return nil
	}
}

// SearchOptions задают поиск людей.
type SearchOptions struct {
	PageSize int
	// All просит внешний CLI пройти все страницы.
	All bool
}

// Client является тонкой оберткой над внешним CLI. Без ретраев, кэша и конкурентности.
type Client struct {
	run Runner
}

// NewClient создает клиента поверх раннера.
func NewClient(r Runner) *Client {
	return &Client{run: r}
}

// WhoAmI возвращает данные текущей авторизованной учетной записи.
func (c *Client) WhoAmI(ctx context.Context) (payload.Value, error) {
	return c.run.JSON(ctx, "auth", "whoami")
}

// RateLimit возвращает текущие лимиты API.
func (c *Client) RateLimit(ctx context.Context) (payload.Value, error) {
	return c.run.JSON(ctx, "auth", "rate-limit")
}

// SearchPersons ищет людей по строке запроса.
func (c *Client) SearchPersons(ctx context.Context, query string, opts SearchOptions) (payload.Value, error) {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	args := []string{"person", "search", "--term", query, "--page-size", strconv.Itoa(pageSize)}
	if opts.All {
		args = append(args, "--all")
	}
	return c.run.JSON(ctx, args...)
}

// GetPerson возвращает человека по идентификатору.
func (c *Client) GetPerson(ctx context.Context, id string, level Enrichment) (payload.Value, error) {
	args := append([]string{"person", "get", id}, level.flag()...)
	return c.run.JSON(ctx, args...)
}

// CreatePerson создает человека. Наличие email проверяет внешний CLI.
func (c *Client) CreatePerson(ctx context.Context, data map[string]interface{}) (payload.Value, error) {
	encoded, err := encodeData(data)
	if err != nil {
		return payload.Value{}, err
	}
	return c.run.JSON(ctx, "person", "create", "--data", encoded)
}

// AssertPerson создает или обновляет человека с сопоставлением по email.
// Если в data нет поля email, оно берется из аргумента; data не изменяется.
func (c *Client) AssertPerson(ctx context.Context, email string, data map[string]interface{}) (payload.Value, error) {
	body := make(map[string]interface{}, len(data)+1)
	for k, v := range data {
		body[k] = v
	}
	if _, ok := body["email"]; !ok {
		body["email"] = email
	}
	encoded, err := encodeData(body)
	if err != nil {
		return payload.Value{}, err
	}
	return c.run.JSON(ctx, "person", "assert", "--matching", "email", "--data", encoded)
}

// SearchOrganizations ищет организации; пустые query и domain не передаются.
func (c *Client) SearchOrganizations(ctx context.Context, query, domain string) (payload.Value, error) {
	args := []string{"organization", "search"}
	if query != "" {
		args = append(args, "--term", query)
	}
	if domain != "" {
		args = append(args, "--domain", domain)
	}
	return c.run.JSON(ctx, args...)
}

// GetOrganization возвращает организацию по идентификатору.
func (c *Client) GetOrganization(ctx context.Context, id string, level Enrichment) (payload.Value, error) {
	args := append([]string{"organization", "get", id}, level.flag()...)
	return c.run.JSON(ctx, args...)
}

// Lists возвращает все списки, доступные учетной записи.
func (c *Client) Lists(ctx context.Context) (payload.Value, error) {
	return c.run.JSON(ctx, "list", "list-all")
}

// ListEntries возвращает записи списка.
//
// Внешний CLI отвечает по-разному: с --all приходит конверт {"data": [...]},
// без него приходит голый массив. Поведение сохранено как есть:
// с all берется только массив из конверта, без all только голый массив,
// любая другая форма дает пустой результат.
func (c *Client) ListEntries(ctx context.Context, listID string, all bool) ([]payload.Value, error) {
	v, err := c.ListEntriesRaw(ctx, listID, all)
	if err != nil {
		return nil, err
	}
	return unwrapEntries(v, all), nil
}

// ListEntriesRaw возвращает ответ list entries без разбора конверта.
func (c *Client) ListEntriesRaw(ctx context.Context, listID string, all bool) (payload.Value, error) {
	args := []string{"list", "entries", listID}
	if all {
		args = append(args, "--all")
	}
	return c.run.JSON(ctx, args...)
}

func unwrapEntries(v payload.Value, all bool) []payload.Value {
	if all {
		if _, ok := v.Object(); ok {
			data, _ := v.Get("data")
			if items, ok := data.Array(); ok {
				return items
			}
			return []payload.Value{}
		}
	}
	if !all {
		if items, ok := v.Array(); ok {
			return items
		}
	}
	return []payload.Value{}
}

func encodeData(data map[string]interface{}) (string, error) {
	if data == nil {
		data = map[string]interface{}{}
	}
	buf, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode --data payload: %w", err)
	}
	return string(buf), nil
}

var _ Runner = (*runner.Runner)(nil)
