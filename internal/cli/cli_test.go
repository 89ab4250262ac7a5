package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderdesk/internal/desk"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "orderdesk", cmd.Use)
	assert.True(t, cmd.SilenceUsage)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"submit"}, {"recover"}, {"tinting"}, {"serve"}, {"listen"},
		{"queue", "list"}, {"queue", "show"}, {"queue", "remove"}, {"queue", "clear"},
		{"export", "order"}, {"export", "queue"}, {"export", "csv"}, {"export", "rollback"}, {"export", "history"},
	}

	for _, path := range commands {
		t.Run(strings.Join(path, " "), func(t *testing.T) {
			sub, _, err := cmd.Find(path)
			require.NoError(t, err)
			assert.Equal(t, path[len(path)-1], sub.Name())
		})
	}
}

func TestFlags(t *testing.T) {
	cmd := NewRootCommand()

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	csvCmd, _, err := cmd.Find([]string{"export", "csv"})
	require.NoError(t, err)
	out := csvCmd.Flags().Lookup("out")
	require.NotNil(t, out)
	assert.Equal(t, "o", out.Shorthand)

	rollback, _, err := cmd.Find([]string{"export", "rollback"})
	require.NoError(t, err)
	assert.Equal(t, "false", rollback.Flags().Lookup("yes").DefValue)
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "yaml", "queue", "list"})
	cmd.SetOut(&bytes.Buffer{})

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "yaml"`)
}

func TestSubmitInput(t *testing.T) {
	cmd := NewSubmitCommand(&RootOptions{})

	text, name, err := submitInput(cmd, &SubmitOptions{Text: "PO 1", Filename: "x.txt"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "PO 1", text)
	assert.Equal(t, "x.txt", name)

	_, _, err = submitInput(cmd, &SubmitOptions{}, nil)
	assert.ErrorIs(t, err, desk.ErrEmptyInput)

	cmd.SetIn(strings.NewReader("from stdin"))
	text, _, err = submitInput(cmd, &SubmitOptions{}, []string{"-"})
	require.NoError(t, err)
	assert.Equal(t, "from stdin", text)

	path := filepath.Join(t.TempDir(), "po-77.txt")
	require.NoError(t, os.WriteFile(path, []byte("PURCHASE ORDER 77"), 0o644))
	text, name, err = submitInput(cmd, &SubmitOptions{}, []string{path})
	require.NoError(t, err)
	assert.Equal(t, "PURCHASE ORDER 77", text)
	assert.Equal(t, "po-77.txt", name)

	_, _, err = submitInput(cmd, &SubmitOptions{}, []string{filepath.Join(t.TempDir(), "missing.txt")})
	assert.Error(t, err)
}

func testEnv(t *testing.T) {
	t.Helper()
	reply := `{"order_date":"05/01/2024","customer_name":"Acme Paints","order_number":"PO-1001","rows":[{"product_description":"Signal Red Enamel 5L","quantity":2,"tinting":"yes"}]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": reply}}}}},
		})
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	t.Setenv("DB_PATH", filepath.Join(dir, "orderdesk.db"))
	t.Setenv("SESSION_DIR", filepath.Join(dir, "session"))
	t.Setenv("SESSION_FALLBACK", "file")
	t.Setenv("OUTPUT_DIR", filepath.Join(dir, "out"))
	t.Setenv("TEMPLATE_SOURCE", "local")
	t.Setenv("LOCAL_TEMPLATE_DIR", filepath.Join(dir, "templates"))
	t.Setenv("SYNC_URL", "")
	t.Setenv("MODEL_API_URL", srv.URL)
	t.Setenv("MODEL_API_KEY", "secret")
	t.Setenv("LOG_LEVEL", "error")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSubmitThenList(t *testing.T) {
	testEnv(t)

	out, err := execute(t, "submit", "--text", "PURCHASE ORDER PO-1001", "--filename", "po.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "queued ")
	assert.Contains(t, out, "Acme Paints")

	out, err = execute(t, "submit", "--text", "PURCHASE ORDER PO-1001 resend")
	require.NoError(t, err)
	assert.Contains(t, out, "possible duplicate of")

	out, err = execute(t, "--format", "json", "queue", "list")
	require.NoError(t, err)
	var listed struct {
		Items    []json.RawMessage `json:"items"`
		Exported bool              `json:"exported"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	assert.Len(t, listed.Items, 1)
	assert.False(t, listed.Exported)

	out, err = execute(t, "export", "csv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "Acme Paints")

	_, err = execute(t, "export", "queue")
	assert.ErrorIs(t, err, desk.ErrSyncTargetUnavailable)

	_, err = execute(t, "export", "rollback")
	assert.ErrorIs(t, err, desk.ErrRollbackNotConfirmed)
}
