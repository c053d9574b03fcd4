package supervisor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bnema/gatewayd/internal/domain"
)

func TestTokenizeCommandRespectsQuotes(t *testing.T) {
	tokens := tokenizeCommand(`node server.js --name "my app" --flag='a b'`)
	require.Equal(t, []string{"node", "server.js", "--name", "my app", "--flag=a b"}, tokens)
}

func TestTokenizeCommandCollapsesWhitespace(t *testing.T) {
	tokens := tokenizeCommand("  node   index.js  ")
	require.Equal(t, []string{"node", "index.js"}, tokens)
}

func TestResolveStartCommandSubstitutesSafeNpmScript(t *testing.T) {
	dir := t.TempDir()
	writePackageJSON(t, dir, `{"scripts":{"start":"node index.js --port 3000"}}`)

	tokens := resolveStartCommand("npm start", dir)
	require.Equal(t, []string{"node", "index.js", "--port", "3000"}, tokens)
}

func TestResolveStartCommandKeepsLauncherWhenScriptHasShellMetachars(t *testing.T) {
	dir := t.TempDir()
	writePackageJSON(t, dir, `{"scripts":{"start":"node a.js && node b.js"}}`)

	tokens := resolveStartCommand("npm start", dir)
	require.Equal(t, []string{"npm", "start"}, tokens)
}

func TestResolveStartCommandKeepsLauncherWhenNoPackageJSON(t *testing.T) {
	dir := t.TempDir()
	tokens := resolveStartCommand("npm start", dir)
	require.Equal(t, []string{"npm", "start"}, tokens)
}

func TestResolveStartCommandIgnoresNonLauncherCommands(t *testing.T) {
	dir := t.TempDir()
	writePackageJSON(t, dir, `{"scripts":{"start":"node index.js"}}`)

	tokens := resolveStartCommand("python app.py", dir)
	require.Equal(t, []string{"python", "app.py"}, tokens)
}

func TestSpawnCandidatesFallsBackToInterpreterForNpmLauncher(t *testing.T) {
	dir := t.TempDir()
	writePackageJSON(t, dir, `{"scripts":{"start":"node index.js --port 3000"}}`)

	c := &child{app: domain.App{Cwd: dir}}
	candidates := c.spawnCandidates([]string{"npm", "start"})

	require.Contains(t, candidates, []string{"node", "index.js", "--port", "3000"})
}

func TestSpawnCandidatesOmitsInterpreterFallbackForNonNpmLauncher(t *testing.T) {
	dir := t.TempDir()
	writePackageJSON(t, dir, `{"scripts":{"start":"node index.js"}}`)

	c := &child{app: domain.App{Cwd: dir}}
	candidates := c.spawnCandidates([]string{"python", "app.py"})

	require.Len(t, candidates, 2)
}

func writePackageJSON(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(content), 0o644))
}
