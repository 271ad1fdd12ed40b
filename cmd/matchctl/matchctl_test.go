package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voterprime/catmatch/internal/domain"
)

const testCategories = `categories:
  - id: 1
    name: Climate Change
    type: issue
    description: Environmental protection and global warming
    keywords: [climate, environment, global warming, emissions]
  - id: 2
    name: Tax Policy
    type: policy
    description: Income, corporate and property taxation
    keywords: [tax, taxes, taxation]
  - id: 3
    name: Integrity
    type: candidate_attribute
    description: Honesty and ethical conduct in office
    keywords: [honest, ethics, integrity]
`

func writeCategories(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "categories.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommands(t *testing.T) {
	cmd := newRootCmd()
	names := make(map[string]bool)
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"match", "refine", "validate", "health"} {
		assert.True(t, names[want], "missing command %q", want)
	}
}

func TestValidate(t *testing.T) {
	path := writeCategories(t, testCategories)

	out, err := execute(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "3 valid categories")
	assert.Contains(t, out, "candidate_attribute")
}

func TestValidateReportsSkippedEntries(t *testing.T) {
	path := writeCategories(t, testCategories+`  - id: 4
    name: Bad
    type: topic
`)

	out, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Contains(t, out, "skipped entry 3 (Bad)")
}

func TestMatchJSON(t *testing.T) {
	path := writeCategories(t, testCategories)

	out, err := execute(t, "match", "--categories", path, "--json", "climate environment emissions")
	require.NoError(t, err)

	var matches []domain.CategoryMatch
	require.NoError(t, json.Unmarshal([]byte(out), &matches))
	require.NotEmpty(t, matches)
	assert.Equal(t, 1, matches[0].CategoryID)
}

func TestMatchTypeFilter(t *testing.T) {
	path := writeCategories(t, testCategories)

	out, err := execute(t, "match", "--categories", path, "--json", "--types", "policy", "climate taxes")
	require.NoError(t, err)

	var matches []domain.CategoryMatch
	require.NoError(t, json.Unmarshal([]byte(out), &matches))
	for _, m := range matches {
		assert.Equal(t, domain.CategoryTypePolicy, m.CategoryType)
	}
}

func TestMatchValidation(t *testing.T) {
	path := writeCategories(t, testCategories)

	_, err := execute(t, "match", "--categories", path, "--top-k", "50", "climate")
	assert.Error(t, err)

	_, err = execute(t, "match", "--categories", path, "--types", "topic", "climate")
	assert.Error(t, err)

	_, err = execute(t, "match", "--categories", path, "--provider", "nope", "climate")
	assert.Error(t, err)
}

func TestRefineExcludesRejected(t *testing.T) {
	path := writeCategories(t, testCategories)

	_, err := execute(t, "refine", "--categories", path, "climate")
	require.Error(t, err)

	out, err := execute(t, "refine", "--categories", path, "--json", "--reject", "1", "climate environment")
	require.NoError(t, err)

	var matches []domain.CategoryMatch
	require.NoError(t, json.Unmarshal([]byte(out), &matches))
	for _, m := range matches {
		assert.NotEqual(t, 1, m.CategoryID)
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","database":"ok","categories":{"loaded":true,"generation":2,"count":14,"model":"mock"},"build":{"version":"1.2.3"}}`))
	}))
	defer srv.Close()

	out, err := execute(t, "health", "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Server Status: ok")
	assert.Contains(t, out, "Categories: 14 (generation 2, model mock)")
	assert.Contains(t, out, "Version: 1.2.3")
}

func TestHealthUnhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"degraded","database":"error"}`))
	}))
	defer srv.Close()

	_, err := execute(t, "health", "--server", srv.URL)
	assert.Error(t, err)
}
