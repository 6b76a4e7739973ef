package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/candralab/stanza/config"
)

func testDispatcher(timeoutSeconds int) *Dispatcher {
	cfg := &config.ToolsConfig{Timeout: timeoutSeconds}
	cfg.SetDefaults()
	cfg.Timeout = timeoutSeconds
	return NewDispatcher(cfg)
}

func TestDispatcherExecute(t *testing.T) {
	dir := t.TempDir()
	// Positional args arrive as --a <v> --b <v>
	path := writeTool(t, dir, "add.sh", `#!/bin/sh
# @describe Adds two numbers
# @option --a! First number
# @option --b! Second number
echo $(( $2 + $4 ))
`)

	desc, err := ParseDescriptorFile(path)
	require.NoError(t, err)

	result := testDispatcher(10).Execute(context.Background(), desc,
		map[string]string{"a": "2", "b": "3"})

	assert.True(t, result.Success)
	assert.Equal(t, "5", strings.TrimSpace(result.Output))
	assert.Equal(t, "add", result.ToolName)
	assert.Greater(t, result.ExecutionTime, time.Duration(0))
}

func TestDispatcherMissingRequiredParameter(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "executed")

	// The script drops a marker file so a spawn is detectable
	path := writeTool(t, dir, "add.sh", "#!/bin/sh\n"+
		"# @describe Adds two numbers\n"+
		"# @option --a! First number\n"+
		"# @option --b! Second number\n"+
		"touch "+marker+"\n")

	desc, err := ParseDescriptorFile(path)
	require.NoError(t, err)

	result := testDispatcher(10).Execute(context.Background(), desc,
		map[string]string{"a": "2"})

	assert.False(t, result.Success)
	assert.Equal(t, ErrValidation, result.ErrorKind)
	assert.Contains(t, result.Error, "b")
	assert.NoFileExists(t, marker, "child process must not be spawned")
}

func TestDispatcherNonZeroExit(t *testing.T) {
	path := writeTool(t, t.TempDir(), "fail.sh", `#!/bin/sh
# @describe Always fails
echo "diagnostic" >&2
exit 3
`)
	desc, err := ParseDescriptorFile(path)
	require.NoError(t, err)

	result := testDispatcher(10).Execute(context.Background(), desc, nil)

	assert.False(t, result.Success)
	assert.Equal(t, ErrExecution, result.ErrorKind)
	assert.Equal(t, 3, result.ExitCode)
	assert.Contains(t, result.Error, "diagnostic")
}

func TestDispatcherTimeout(t *testing.T) {
	path := writeTool(t, t.TempDir(), "slow.sh", `#!/bin/sh
# @describe Sleeps forever
sleep 30
`)
	desc, err := ParseDescriptorFile(path)
	require.NoError(t, err)

	start := time.Now()
	result := testDispatcher(1).Execute(context.Background(), desc, nil)

	assert.False(t, result.Success)
	assert.Equal(t, ErrTimeout, result.ErrorKind)
	assert.Contains(t, result.Error, "timed out")
	assert.Less(t, time.Since(start), 15*time.Second)
}

func TestDispatcherCancellation(t *testing.T) {
	path := writeTool(t, t.TempDir(), "slow.sh", `#!/bin/sh
# @describe Sleeps forever
sleep 30
`)
	desc, err := ParseDescriptorFile(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	result := testDispatcher(60).Execute(ctx, desc, nil)

	assert.False(t, result.Success)
	assert.Less(t, time.Since(start), 15*time.Second)
}

func TestDispatcherPerToolTimeoutOverride(t *testing.T) {
	cfg := &config.ToolsConfig{
		Timeout: 60,
		Overrides: map[string]config.ToolOverride{
			"slow": {Timeout: 1},
		},
	}
	cfg.SetDefaults()
	cfg.Timeout = 60

	path := writeTool(t, t.TempDir(), "slow.sh", "#!/bin/sh\nsleep 30\n")
	desc, err := ParseDescriptorFile(path)
	require.NoError(t, err)

	result := NewDispatcher(cfg).Execute(context.Background(), desc, nil)
	assert.Equal(t, ErrTimeout, result.ErrorKind)
}

func TestBuildArgvOrdering(t *testing.T) {
	desc := &Descriptor{
		Path: "/tools/x.sh",
		Parameters: []Parameter{
			{Name: "b", Required: true},
			{Name: "a", Required: true},
		},
	}
	argv := buildArgv(desc, map[string]string{"a": "1", "b": "2", "zz": "3", "cc": "4"})

	// Declared order first, then extras sorted
	assert.Equal(t, []string{"/tools/x.sh", "--b", "2", "--a", "1", "--cc", "4", "--zz", "3"}, argv)
}

func TestDispatcherArgumentsNotShellInterpreted(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "injected")

	path := writeTool(t, dir, "echoer.sh", `#!/bin/sh
# @describe Echoes its second argument
# @option --text! Text to echo
echo "$2"
`)
	desc, err := ParseDescriptorFile(path)
	require.NoError(t, err)

	payload := "harmless; touch " + marker
	result := testDispatcher(10).Execute(context.Background(), desc,
		map[string]string{"text": payload})

	require.True(t, result.Success)
	assert.Equal(t, payload, strings.TrimSpace(result.Output))
	assert.NoFileExists(t, marker, "argument must be passed verbatim, not shell-evaluated")
	_ = os.Remove(marker)
}
