package tools

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTool(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0755))
	return path
}

const addScript = `#!/bin/sh
# @describe Adds two numbers
# @option --a! First number
# @option --b! Second number
echo $(( $2 + $4 ))
`

func TestParseDescriptorFile(t *testing.T) {
	path := writeTool(t, t.TempDir(), "add.sh", addScript)

	desc, err := ParseDescriptorFile(path)
	require.NoError(t, err)

	assert.Equal(t, "add", desc.Name)
	assert.Equal(t, "Adds two numbers", desc.Description)
	assert.Equal(t, KindShell, desc.Kind)
	assert.Equal(t, path, desc.Path)

	require.Len(t, desc.Parameters, 2)
	assert.Equal(t, Parameter{Name: "a", Description: "First number", Required: true}, desc.Parameters[0])
	assert.Equal(t, Parameter{Name: "b", Description: "Second number", Required: true}, desc.Parameters[1])
}

func TestParseDescriptorOptionalParameter(t *testing.T) {
	content := `# @describe Greets someone
# @option --name! Who to greet
# @option --greeting Optional greeting word
`
	path := writeTool(t, t.TempDir(), "greet.py", content)

	desc, err := ParseDescriptorFile(path)
	require.NoError(t, err)

	assert.Equal(t, KindPython, desc.Kind)
	require.Len(t, desc.Parameters, 2)
	assert.True(t, desc.Parameters[0].Required)
	assert.False(t, desc.Parameters[1].Required)
	assert.Equal(t, []string{"name"}, desc.RequiredParameters())
}

func TestParseDescriptorJavaScriptComments(t *testing.T) {
	content := `// @describe Does a thing
// @option --input! The input value
console.log("ok");
`
	path := writeTool(t, t.TempDir(), "thing.js", content)

	desc, err := ParseDescriptorFile(path)
	require.NoError(t, err)
	assert.Equal(t, "thing", desc.Name)
	assert.Equal(t, KindJavaScript, desc.Kind)
	assert.Equal(t, "node", desc.Interpreter())
	require.Len(t, desc.Parameters, 1)
	assert.Equal(t, "input", desc.Parameters[0].Name)
}

func TestParseDescriptorDefaults(t *testing.T) {
	// No markers at all: name from filename, no description, no params
	path := writeTool(t, t.TempDir(), "bare.sh", "#!/bin/sh\necho hi\n")

	desc, err := ParseDescriptorFile(path)
	require.NoError(t, err)
	assert.Equal(t, "bare", desc.Name)
	assert.Empty(t, desc.Description)
	assert.Empty(t, desc.Parameters)
}

func TestParseDescriptorDeterministic(t *testing.T) {
	path := writeTool(t, t.TempDir(), "add.sh", addScript)

	first, err := ParseDescriptorFile(path)
	require.NoError(t, err)
	second, err := ParseDescriptorFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestParseDescriptorRejectsUnknownExtension(t *testing.T) {
	path := writeTool(t, t.TempDir(), "tool.rb", "# @describe Ruby tool\n")

	_, err := ParseDescriptorFile(path)
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, ErrParse, toolErr.Kind)
}

func TestParseDescriptorRedeclaredOption(t *testing.T) {
	content := `# @describe Redeclare
# @option --x First version
# @option --y Middle
# @option --x! Second version
`
	path := writeTool(t, t.TempDir(), "re.sh", content)

	desc, err := ParseDescriptorFile(path)
	require.NoError(t, err)

	// Updated in place, order preserved
	require.Len(t, desc.Parameters, 2)
	assert.Equal(t, "x", desc.Parameters[0].Name)
	assert.Equal(t, "Second version", desc.Parameters[0].Description)
	assert.True(t, desc.Parameters[0].Required)
	assert.Equal(t, "y", desc.Parameters[1].Name)
}
