package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/florianilch/sonarbind/internal/app"
	"github.com/florianilch/sonarbind/internal/binding"
)

// appOptionsForTest installs the in-memory keyring. Entries survive across runs within a test.
func appOptionsForTest(t *testing.T) app.Options {
	t.Helper()
	keyring.MockInit()
	return app.Options{}
}

type cliHarness struct {
	t    *testing.T
	root string
	opts app.Options
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Setenv("SONARBIND_CREDENTIALS__USER", "tester")
	t.Setenv("SONARBIND_LOG_LEVEL", "error")
	return &cliHarness{t: t, root: t.TempDir(), opts: appOptionsForTest(t)}
}

// run executes the CLI with stdin and returns stdout.
func (h *cliHarness) run(stdin string, args ...string) (string, error) {
	h.t.Helper()

	cmd := newRootCommand(h.opts)
	var out, errOut bytes.Buffer
	cmd.Reader = strings.NewReader(stdin)
	cmd.Writer = &out
	cmd.ErrWriter = &errOut

	full := append([]string{"sonarbind", "--storage--root", h.root, "--log-file", filepath.Join(h.root, "sonarbind.log")}, args...)
	err := cmd.Run(context.Background(), full)
	return out.String(), err
}

func (h *cliHarness) mustRun(stdin string, args ...string) string {
	h.t.Helper()
	out, err := h.run(stdin, args...)
	require.NoError(h.t, err, "sonarbind %s", strings.Join(args, " "))
	return out
}

func TestConnections_Lifecycle(t *testing.T) {
	for _, store := range []string{"keyring", "file"} {
		t.Run(store, func(t *testing.T) {
			h := newCLIHarness(t)
			t.Setenv("SONARBIND_CREDENTIALS__STORE", store)

			assert.Contains(t, h.mustRun("", "connections", "list"), "no connections configured")

			out := h.mustRun("", "connections", "add", "--server-uri", "https://Sonar.Example.com", "--token", "t0k3n", "--smart-notifications")
			assert.Equal(t, "https://sonar.example.com/\n", out)

			out = h.mustRun("hunter2\n", "connections", "add", "--organization", "acme", "--username", "alice")
			assert.Equal(t, "https://sonarcloud.io/organizations/acme\n", out)

			out = h.mustRun("", "connections", "list")
			assert.Contains(t, out, "https://sonar.example.com/")
			assert.Contains(t, out, "acme")
			assert.Contains(t, out, "SonarCloud")

			out = h.mustRun("", "connections", "show", "https://sonar.example.com/")
			assert.Contains(t, out, "Smart notifications: enabled")
			assert.Contains(t, out, "Credentials:         token")
			assert.NotContains(t, out, "t0k3n")

			h.mustRun("", "connections", "set-notifications", "https://sonar.example.com/")
			out = h.mustRun("", "connections", "show", "https://sonar.example.com/")
			assert.Contains(t, out, "Smart notifications: disabled")

			h.mustRun("", "connections", "delete", "https://sonar.example.com/")
			_, err := h.run("", "connections", "show", "https://sonar.example.com/")
			assert.Error(t, err)
		})
	}
}

func TestConnections_AddUsernameKeyring(t *testing.T) {
	h := newCLIHarness(t)

	h.mustRun("hunter2\n", "connections", "add", "--organization", "acme", "--username", "alice")

	out := h.mustRun("", "connections", "show", "acme")
	assert.Contains(t, out, `Credentials:         username "alice"`)
	assert.NotContains(t, out, "hunter2")
}

func TestConnections_AddRejectsBadInput(t *testing.T) {
	h := newCLIHarness(t)

	_, err := h.run("", "connections", "add", "--token", "x")
	assert.Error(t, err, "neither server nor organization")

	_, err = h.run("", "connections", "add", "--server-uri", "https://a/", "--organization", "acme", "--token", "x")
	assert.Error(t, err, "both server and organization")

	_, err = h.run("", "connections", "add", "--server-uri", "https://a/")
	assert.ErrorIs(t, err, errEmptySecret)

	_, err = h.run("", "connections", "add", "--server-uri", "ftp://a/", "--token", "x")
	assert.Error(t, err)

	h.mustRun("", "connections", "add", "--organization", "acme", "--token", "x")
	_, err = h.run("", "connections", "add", "--organization", "acme", "--token", "y")
	assert.Error(t, err, "duplicate id")
}

func TestBindings_Lifecycle(t *testing.T) {
	h := newCLIHarness(t)
	workspace := t.TempDir()
	key, err := binding.KeyForWorkspace(workspace)
	require.NoError(t, err)

	h.mustRun("", "connections", "add", "--organization", "acme", "--token", "t0k3n")

	_, err = h.run("", "bindings", "bind", "--connection", "missing", "--project", "p", workspace)
	assert.Error(t, err, "unknown connection")

	out := h.mustRun("", "bindings", "bind", "--connection", "acme", "--project", "acme_web", workspace)
	assert.Equal(t, key+"\n", out)

	out = h.mustRun("", "bindings", "show", workspace)
	assert.Contains(t, out, "Project:    acme_web")
	assert.Contains(t, out, "Connection: https://sonarcloud.io/organizations/acme")

	out = h.mustRun("", "bindings", "list")
	assert.Contains(t, out, key)
	assert.Contains(t, out, "acme_web")

	h.mustRun("", "bindings", "unbind", workspace)
	_, err = h.run("", "bindings", "show", workspace)
	assert.Error(t, err)
	assert.NotContains(t, h.mustRun("", "bindings", "list"), key)
}

func TestBindings_ListSkipsOrphans(t *testing.T) {
	h := newCLIHarness(t)
	workspace := t.TempDir()

	h.mustRun("", "connections", "add", "--organization", "acme", "--token", "t0k3n")
	h.mustRun("", "bindings", "bind", "--connection", "acme", "--project", "acme_web", workspace)
	h.mustRun("", "connections", "delete", "acme")

	key, err := binding.KeyForWorkspace(workspace)
	require.NoError(t, err)
	assert.NotContains(t, h.mustRun("", "bindings", "list"), key)
}
