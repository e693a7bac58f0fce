package engines

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/apperr"
)

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	catalog, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, []string{"claude", "codex", "mock"}, catalog.Names())

	engine, err := catalog.Resolve("mock")
	require.NoError(t, err)
	assert.Equal(t, "echo", engine.Command[0])
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engines.yaml")
	content := `engines:
  codex:
    command: ["codex", "run", "--for", "{ROLE}"]
    workdir: /srv/agents
  broken:
    command: []
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	catalog, err := Load(path)
	require.NoError(t, err)

	codex, err := catalog.Resolve("codex")
	require.NoError(t, err)
	assert.Equal(t, []string{"codex", "run", "--for", "{ROLE}"}, codex.Command)
	assert.Equal(t, "/srv/agents", codex.Workdir)

	// defaults still present for names the file does not mention
	_, err = catalog.Resolve("claude")
	require.NoError(t, err)

	// named but empty command is a config error, not a silent fallback
	_, err = catalog.Resolve("broken")
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engines.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engines: [not, a, map"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestResolveUnknownFallsBackToMock(t *testing.T) {
	catalog := Default()

	engine, err := catalog.Resolve("no-such-engine")
	require.NoError(t, err)
	assert.Equal(t, "echo", engine.Command[0])
}

func TestForRoleSubstitution(t *testing.T) {
	engine := Engine{
		Command: []string{"codex", "exec", "--role", "{ROLE}", "--tag", "run-{ROLE}"},
		Workdir: "/srv/default",
	}

	argv, workdir := engine.ForRole("planner", RoleProfile{})
	assert.Equal(t, []string{"codex", "exec", "--role", "planner", "--tag", "run-planner"}, argv)
	assert.Equal(t, "/srv/default", workdir)

	argv, workdir = engine.ForRole("coder", RoleProfile{
		Prompt:  "implement the plan",
		Workdir: "/srv/coder",
	})
	assert.Equal(t, "[role=coder] implement the plan", argv[len(argv)-1])
	assert.Equal(t, "/srv/coder", workdir)

	// template stays untouched
	assert.Equal(t, "{ROLE}", engine.Command[3])
}

func TestLoadRoleProfiles(t *testing.T) {
	dir := t.TempDir()

	profiles, err := LoadRoleProfiles(filepath.Join(dir, "absent.json"))
	require.NoError(t, err)
	assert.Empty(t, profiles)

	path := filepath.Join(dir, "roles.json")
	content := `{"planner": {"prompt": "plan it", "workdir": "/srv/plan"}, "tester": {"prompt": "test it"}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	profiles, err = LoadRoleProfiles(path)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "plan it", profiles["planner"].Prompt)
	assert.Equal(t, "/srv/plan", profiles["planner"].Workdir)
	assert.Empty(t, profiles["tester"].Workdir)

	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))
	_, err = LoadRoleProfiles(path)
	require.Error(t, err)
}
