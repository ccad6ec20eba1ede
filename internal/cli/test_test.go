package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scenariosDir = filepath.Join("testdata", "scenarios")

// copyScenarios copies the test scenarios (without golden files) into a
// temporary directory.
func copyScenarios(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"grow.yaml", "drive.yaml"} {
		data, err := os.ReadFile(filepath.Join(scenariosDir, name))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0644))
	}
	return dir
}

func TestTest_AllPass(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), modelsDir, scenariosDir)
	require.NoError(t, err, out)

	assert.Contains(t, out, "✓ drive\n")
	assert.Contains(t, out, "✓ grow\n")
	assert.Contains(t, out, "Test Summary: 2 passed, 0 failed, 2 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTest_JSONReportsGoldenState(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "json"}), modelsDir, scenariosDir)
	require.NoError(t, err)

	var result TestResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, result.Passed)

	golden := map[string]string{}
	for _, s := range result.Scenarios {
		golden[s.Name] = s.Golden
	}
	assert.Equal(t, map[string]string{"grow": "match", "drive": "missing"}, golden)
}

func TestTest_Filter(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), modelsDir, scenariosDir, "--filter", "gr*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")

	out, err = execute(t, NewTestCommand(&RootOptions{Format: "text"}), modelsDir, scenariosDir, "--filter", "zzz")
	require.NoError(t, err)
	assert.Equal(t, "No scenarios found.\n", out)
}

func TestTest_UpdateWritesGoldenFiles(t *testing.T) {
	dir := copyScenarios(t)

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), modelsDir, dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ grow (golden updated)")

	got, err := os.ReadFile(filepath.Join(dir, "golden", "grow.golden"))
	require.NoError(t, err)
	want, err := os.ReadFile(filepath.Join(scenariosDir, "golden", "grow.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))

	_, err = os.Stat(filepath.Join(dir, "golden", "drive.golden"))
	assert.NoError(t, err)

	// The regenerated files now match.
	_, err = execute(t, NewTestCommand(&RootOptions{Format: "text"}), modelsDir, dir)
	assert.NoError(t, err)
}

func TestTest_GoldenMismatchFails(t *testing.T) {
	dir := copyScenarios(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "grow.golden"), []byte(`{"stale":true}`), 0644))

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), modelsDir, dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ grow")
	assert.Contains(t, out, "trace does not match golden file")
	assert.Contains(t, out, "1 passed, 1 failed, 2 total")
}

func TestTest_FailingScenarios(t *testing.T) {
	dir := t.TempDir()
	scenarios := map[string]string{
		"wrong.yaml": `name: wrong
description: "expects the wrong final value"
model: leaky
process: grow
ticks: 1
assertions:
  - type: final_state
    path: "X:y"
    equals: 5.0
`,
		"broken.yaml": "name: [unterminated\n",
		"noproc.yaml": `name: noproc
description: "names a process the model lacks"
model: leaky
process: nope
ticks: 1
assertions:
  - type: skipped
    count: 0
`,
	}
	for name, content := range scenarios {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "json"}), modelsDir, dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result TestResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
	assert.Equal(t, 3, result.Failed)

	byName := map[string]ScenarioResult{}
	for _, s := range result.Scenarios {
		byName[s.Name] = s
	}
	assert.Contains(t, byName["broken.yaml"].Errors[0], "failed to load scenario")
	assert.Contains(t, byName["noproc"].Errors[0], "execution failed")
	assert.Contains(t, byName["wrong"].Errors[0], "X:y")
}

func TestTest_MissingDirectories(t *testing.T) {
	_, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), filepath.Join(t.TempDir(), "none"), scenariosDir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "models directory not found")

	_, err = execute(t, NewTestCommand(&RootOptions{Format: "text"}), modelsDir, filepath.Join(t.TempDir(), "none"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios directory not found")
}
