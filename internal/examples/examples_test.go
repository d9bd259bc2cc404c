package examples

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmagent/internal/core"
	"crmagent/internal/crm"
	"crmagent/internal/payload"
	"crmagent/internal/runner"
)

type reply struct {
	out string
	err error
}

// scriptedRunner отвечает по префиксу аргументов; более длинный префикс выигрывает.
type scriptedRunner struct {
	replies map[string]reply
	calls   [][]string
}

func (s *scriptedRunner) JSON(ctx context.Context, args ...string) (payload.Value, error) {
	s.calls = append(s.calls, args)
	line := strings.Join(args, " ")
	best := ""
	for prefix := range s.replies {
		if strings.HasPrefix(line, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	r, ok := s.replies[best]
	if !ok {
		return payload.Value{}, errors.New("unexpected call: " + line)
	}
	if r.err != nil {
		return payload.Value{}, r.err
	}
	return payload.Parse([]byte(r.out))
}

func (s *scriptedRunner) called(prefix string) int {
	n := 0
	for _, c := range s.calls {
		if strings.HasPrefix(strings.Join(c, " "), prefix) {
			n++
		}
	}
	return n
}

func newTestEnv(replies map[string]reply) (*Env, *scriptedRunner, *bytes.Buffer) {
	r := &scriptedRunner{replies: replies}
	var out bytes.Buffer
	return NewEnv(crm.NewClient(r), &out), r, &out
}

func failure(code int) error {
	return &runner.ExternalCommandError{Command: []string{"affinity", "person", "assert"}, Stderr: "Error: boom", ExitCode: code}
}

func TestGroupByDomain(t *testing.T) {
	v, err := payload.Parse([]byte(`[
		{"email_addresses": ["a@x.com"]},
		{"email_addresses": ["b@x.com"]},
		{"email_addresses": ["c@y.com"]}
	]`))
	require.NoError(t, err)

	groups := GroupByDomain(Records(v))
	require.Len(t, groups, 2)
	assert.Len(t, groups["x.com"], 2)
	assert.Len(t, groups["y.com"], 1)
	assert.Equal(t, []string{"x.com"}, DuplicateDomains(groups))
}

func TestGroupByDomainSkipsOddShapes(t *testing.T) {
	v, err := payload.Parse([]byte(`[
		{"email_addresses": ["no-at-sign", 42, "a@b@c.com"]},
		{"email_addresses": "a@x.com"},
		{"name": "no emails"},
		"not an object",
		{"email_addresses": ["p@z.com", "q@z.com"]}
	]`))
	require.NoError(t, err)

	groups := GroupByDomain(Records(v))
	assert.Len(t, groups["b"], 1)
	assert.Len(t, groups["z.com"], 2, "one person with two addresses counts twice")
	_, ok := groups["x.com"]
	assert.False(t, ok)
	assert.Equal(t, []string{"z.com"}, DuplicateDomains(groups))
}

func TestUpsertBatchIsolation(t *testing.T) {
	env, r, out := newTestEnv(map[string]reply{
		"person assert": {out: `{"name": "Someone"}`},
	})
	contacts := []Contact{
		{Email: "one@example.com", FirstName: "One"},
		{Email: "two@example.com", FirstName: "Two"},
		{Email: "three@example.com", FirstName: "Three"},
	}
	calls := 0
	failing := &failingSecond{inner: r, calls: &calls}
	env.Client = crm.NewClient(failing)

	results := env.UpsertContacts(context.Background(), contacts)
	require.Len(t, results, 3)
	assert.True(t, results[0].OK())
	assert.False(t, results[1].OK())
	assert.True(t, results[2].OK())
	var cmdErr *runner.ExternalCommandError
	assert.ErrorAs(t, results[1].Err, &cmdErr)
	assert.Equal(t, 3, calls)

	sum := Summarize(results)
	assert.Equal(t, Summary{Succeeded: 2, Failed: 1}, sum)

	text := out.String()
	assert.Contains(t, text, "✓ Upserted: Someone")
	assert.Contains(t, text, "✗ Failed to upsert two@example.com")
	assert.Equal(t, 2, strings.Count(text, "✓"))
}

type failingSecond struct {
	inner crm.Runner
	calls *int
}

func (f *failingSecond) JSON(ctx context.Context, args ...string) (payload.Value, error) {
	*f.calls++
	if *f.calls == 2 {
		return payload.Value{}, failure(1)
	}
	return f.inner.JSON(ctx, args...)
}

func TestUpsertFallsBackToEmail(t *testing.T) {
	env, r, out := newTestEnv(map[string]reply{"person assert": {out: `{}`}})
	env.UpsertContacts(context.Background(), []Contact{{Email: "anon@example.com"}})
	assert.Contains(t, out.String(), "Upserted: anon@example.com")
	var sent map[string]interface{}
	args := r.calls[0]
	require.NoError(t, json.Unmarshal([]byte(args[len(args)-1]), &sent))
	assert.Equal(t, "anon@example.com", sent["email"])
}

func TestBasicDriver(t *testing.T) {
	env, r, out := newTestEnv(map[string]reply{
		"auth whoami":   {out: `{"email": "me@example.com"}`},
		"person search": {out: `[{"id": 101, "name": "Eve"}, {"id": 102}]`},
		"person get":    {out: `{"id": 101, "name": "Eve Engineer"}`},
	})
	require.NoError(t, env.Basic(context.Background()))
	text := out.String()
	assert.Contains(t, text, "Authenticated as: me@example.com")
	assert.Contains(t, text, "Found 2 persons matching 'engineer'")
	assert.Contains(t, text, "First result: Eve Engineer")
	assert.Equal(t, []string{"person", "get", "101", "--detailed"}, r.calls[2])
	assert.Equal(t, []string{"person", "search", "--term", "engineer", "--page-size", "5"}, r.calls[1])
}

func TestBasicDriverNoResults(t *testing.T) {
	env, r, out := newTestEnv(map[string]reply{
		"auth whoami":   {out: `{}`},
		"person search": {out: `[]`},
	})
	require.NoError(t, env.Basic(context.Background()))
	assert.Contains(t, out.String(), "Authenticated as: Unknown")
	assert.Equal(t, 0, r.called("person get"))
}

func TestDuplicatesDriver(t *testing.T) {
	env, r, out := newTestEnv(map[string]reply{
		"person search --term john": {out: `[{"email_addresses": ["j1@acme.com"]}, {"email_addresses": ["j2@acme.com"]}]`},
		"person search":             {out: `[{"email_addresses": ["s@solo.com"]}]`},
	})
	require.NoError(t, env.Duplicates(context.Background()))
	assert.Contains(t, out.String(), "Found 2 contacts at acme.com matching 'john'")
	assert.NotContains(t, out.String(), "solo.com")
	assert.Equal(t, 3, r.called("person search"))
	assert.Equal(t, []string{"person", "search", "--term", "john", "--page-size", "100", "--all"}, r.calls[0])
}

func TestDuplicatesSearchFailureIsolated(t *testing.T) {
	env, r, out := newTestEnv(map[string]reply{
		"person search --term john":  {err: failure(2)},
		"person search --term jones": {out: `[{"email_addresses": ["a@dup.com"]}, {"email_addresses": ["b@dup.com"]}]`},
		"person search":              {out: `[]`},
	})
	results := env.FindDuplicates(context.Background(), []string{"john", "smith", "jones"})
	require.Len(t, results, 3)
	assert.False(t, results[0].OK())
	assert.True(t, results[1].OK())
	assert.True(t, results[2].OK())
	assert.Equal(t, 3, r.called("person search"))
	assert.Equal(t, Summary{Succeeded: 2, Failed: 1}, Summarize(results))

	text := out.String()
	assert.Contains(t, text, "✗ Failed to search 'john'")
	assert.Contains(t, text, "Found 2 contacts at dup.com matching 'jones'")
}

func TestExportDriverWritesFile(t *testing.T) {
	env, _, out := newTestEnv(map[string]reply{
		"list list-all": {out: `[{"id": 55, "name": "Pipeline"}, {"id": 56}]`},
		"list entries":  {out: `{"pagination": {"mode": "all"}, "data": [{"id": 1, "entity": {"name": "Acme"}}]}`},
	})
	env.ExportDir = t.TempDir()
	require.NoError(t, env.Export(context.Background()))

	path := filepath.Join(env.ExportDir, "list_55_export.json")
	buf, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(buf), "[\n  {\n    \"entity\""), "expected 2-space indentation, got %s", buf)
	assert.JSONEq(t, `[{"id": 1, "entity": {"name": "Acme"}}]`, string(buf))
	assert.Contains(t, out.String(), "Exporting list: Pipeline")
	assert.Contains(t, out.String(), "✓ Exported 1 entries to list_55_export.json")
}

func TestExportListEmptyEntries(t *testing.T) {
	env, _, _ := newTestEnv(map[string]reply{"list entries": {out: `[{"id": 1}]`}})
	env.ExportDir = t.TempDir()
	path, n, err := env.ExportList(context.Background(), "9")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	buf, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(buf))
}

func TestExportListRejectsPathLikeID(t *testing.T) {
	env, r, _ := newTestEnv(nil)
	_, _, err := env.ExportList(context.Background(), "../etc")
	require.ErrorIs(t, err, ErrInvalidListID)
	_, _, err = env.ExportList(context.Background(), "..")
	require.ErrorIs(t, err, ErrInvalidListID)
	assert.Empty(t, r.calls)
}

func TestEnrichDriverLimitsAndIsolates(t *testing.T) {
	orgs := make([]string, 0, 7)
	for i := 1; i <= 7; i++ {
		orgs = append(orgs, fmt.Sprintf(`{"id": %d, "name": "Org%d"}`, i, i))
	}
	env, r, out := newTestEnv(map[string]reply{
		"organization search": {out: "[" + strings.Join(orgs, ",") + "]"},
		"organization get":    {out: `{"id": 1, "fields": []}`},
		"organization get 3 ": {err: failure(4)},
	})
	require.NoError(t, env.Enrich(context.Background()))
	text := out.String()
	assert.Contains(t, text, "Processing 7 organizations...")
	assert.Equal(t, 5, r.called("organization get"))
	assert.Contains(t, text, "✗ Failed: Org3")
	assert.Contains(t, text, "✓ Enriched: Org5")
	assert.NotContains(t, text, "Org6")
	assert.Contains(t, text, "Successfully enriched: 4")
	assert.Contains(t, text, "Errors: 1")
}

func TestEnrichMissingIDIsItemFailure(t *testing.T) {
	env, _, _ := newTestEnv(map[string]reply{"organization get": {out: `{}`}})
	v, err := payload.Parse([]byte(`[{"name": "NoID"}, {"id": "8", "name": "HasID"}]`))
	require.NoError(t, err)
	results := env.EnrichOrganizations(context.Background(), Records(v))
	require.Len(t, results, 2)
	assert.ErrorIs(t, results[0].Err, errNoID)
	assert.True(t, results[1].OK())
}

func TestRunSuiteIsolatesDrivers(t *testing.T) {
	env, _, out := newTestEnv(map[string]reply{
		"auth whoami":         {err: failure(1)},
		"person assert":       {out: `{"name": "ok"}`},
		"person search":       {out: `[]`},
		"list list-all":       {out: `[]`},
		"organization search": {out: `[]`},
	})
	s := core.NewSuite()
	require.NoError(t, Register(s, env))
	assert.Equal(t, []string{"basic", "upsert", "duplicates", "export", "enrich"}, s.Names())

	outcomes, err := RunSuite(context.Background(), s, nil, env.Out)
	require.NoError(t, err)
	require.Len(t, outcomes, 5)
	assert.Error(t, outcomes[0].Err)
	for _, o := range outcomes[1:] {
		assert.NoError(t, o.Err, o.Name)
	}
	text := out.String()
	assert.Contains(t, text, "Error in basic: whoami:")
	assert.Contains(t, text, "=== Example 5: Enrichment Workflow ===")
	assert.True(t, strings.HasSuffix(text, "=== All examples complete! ===\n"))
}

func TestRunSuiteUnknownDriver(t *testing.T) {
	env, _, out := newTestEnv(nil)
	s := core.NewSuite()
	require.NoError(t, Register(s, env))
	_, err := RunSuite(context.Background(), s, []string{"nope"}, out)
	require.Error(t, err)
	assert.NotContains(t, out.String(), "All examples complete")
}
