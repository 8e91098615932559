package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/naptrack/internal/event"
	"github.com/roach88/naptrack/internal/testutil"
)

// newTestOptions builds root options backed by a temp database and a
// scripted remote with one child.
func newTestOptions(t *testing.T) (*RootOptions, *testutil.FakeGateway) {
	t.Helper()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "naptrack.yaml")
	cfg := fmt.Sprintf("database: %s\n", filepath.Join(dir, "naptrack.db"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	gw := testutil.NewFakeGateway(event.Child{UID: "mia", Name: "Mia"})
	return &RootOptions{Format: "text", Config: cfgPath, Gateway: gw}, gw
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestResyncThenStatus(t *testing.T) {
	opts, _ := newTestOptions(t)

	out, err := execute(t, NewResyncCommand(opts))
	require.NoError(t, err)
	assert.Contains(t, out, "Resync complete: 1 children")

	out, err = execute(t, NewStatusCommand(opts))
	require.NoError(t, err)
	assert.Contains(t, out, "Mia (mia)")
	assert.Contains(t, out, "sleep:   none")
}

func TestStatus_NoChildren(t *testing.T) {
	opts, _ := newTestOptions(t)

	out, err := execute(t, NewStatusCommand(opts))
	require.NoError(t, err)
	assert.Contains(t, out, "No children known")
}

func TestSleepLifecycleAcrossInvocations(t *testing.T) {
	opts, _ := newTestOptions(t)

	_, err := execute(t, NewResyncCommand(opts))
	require.NoError(t, err)

	out, err := execute(t, NewSleepCommand(opts), "start", "mia")
	require.NoError(t, err)
	assert.Contains(t, out, "sleep start: in_progress")

	// State persists in the local store between invocations.
	out, err = execute(t, NewStatusCommand(opts))
	require.NoError(t, err)
	assert.Contains(t, out, "active since")

	out, err = execute(t, NewSleepCommand(opts), "complete", "mia")
	require.NoError(t, err)
	assert.Contains(t, out, "sleep complete: completed")

	out, err = execute(t, NewStatusCommand(opts))
	require.NoError(t, err)
	assert.Contains(t, out, "sleep:   none")
	assert.Contains(t, out, "last sleep: Sleep (")
	assert.Contains(t, out, "Stored events: sleep 1")
}

func TestInvalidTransitionFailsWithExitCode(t *testing.T) {
	opts, _ := newTestOptions(t)

	_, err := execute(t, NewResyncCommand(opts))
	require.NoError(t, err)

	out, err := execute(t, NewSleepCommand(opts), "pause", "mia")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [INVALID_TRANSITION]")
	assert.Contains(t, out, "cannot pause while none")
}

func TestLogBottleJSONOutput(t *testing.T) {
	opts, _ := newTestOptions(t)
	opts.Format = "json"

	_, err := execute(t, NewResyncCommand(opts))
	require.NoError(t, err)

	out, err := execute(t, NewLogCommand(opts), "bottle", "mia", "--amount", "120", "--units", "ml")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestLogDiaperRejectsBadMode(t *testing.T) {
	opts, _ := newTestOptions(t)

	_, err := execute(t, NewLogCommand(opts), "diaper", "mia", "--mode", "soggy")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestLogGrowthRequiresAMeasurement(t *testing.T) {
	opts, _ := newTestOptions(t)

	_, err := execute(t, NewLogCommand(opts), "growth", "mia")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCalendarShowsLoggedEvents(t *testing.T) {
	opts, _ := newTestOptions(t)

	_, err := execute(t, NewResyncCommand(opts))
	require.NoError(t, err)
	_, err = execute(t, NewLogCommand(opts), "bottle", "mia", "--amount", "120", "--units", "ml", "--type", "formula")
	require.NoError(t, err)

	out, err := execute(t, NewCalendarCommand(opts), "mia", "--days", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Bottle (120 ml formula)")
}

func TestCalendarFailsWithoutRemote(t *testing.T) {
	opts, _ := newTestOptions(t)
	opts.Gateway = nil

	out, err := execute(t, NewCalendarCommand(opts), "mia", "--days", "1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [REMOTE_UNAVAILABLE]")
}

func TestCalendarRejectsHalfWindow(t *testing.T) {
	opts, _ := newTestOptions(t)

	_, err := execute(t, NewCalendarCommand(opts), "mia", "--from", "2026-08-20T00:00:00Z")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRootCommand_RejectsInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--format", "xml", "status"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestFeedStartValidatesSide(t *testing.T) {
	opts, _ := newTestOptions(t)

	_, err := execute(t, NewFeedCommand(opts), "start", "mia", "--side", "middle")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
