package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/candralab/stanza/config"
	"github.com/candralab/stanza/llms"
	"github.com/candralab/stanza/retrieval"
	"github.com/candralab/stanza/session"
	"github.com/candralab/stanza/tools"
)

// fakeProvider replays scripted responses. When the script runs out the
// last response repeats, which models a provider that keeps requesting the
// same tool. A non-nil streamErr makes every stream fail mid-generation.
type fakeProvider struct {
	mu        sync.Mutex
	responses []string
	prompts   []string
	streamErr error
}

func (f *fakeProvider) Generate(ctx context.Context, prompt string) (string, int, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	idx := len(f.prompts) - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx], 0, nil
}

func (f *fakeProvider) GenerateStreaming(ctx context.Context, prompt string) (<-chan llms.StreamChunk, error) {
	text, _, err := f.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	ch := make(chan llms.StreamChunk)
	go func() {
		defer close(ch)
		if f.streamErr != nil {
			ch <- llms.StreamChunk{Text: "partial "}
			ch <- llms.StreamChunk{Err: f.streamErr}
			return
		}
		// Two chunks so streaming order is observable
		mid := len(text) / 2
		ch <- llms.StreamChunk{Text: text[:mid]}
		ch <- llms.StreamChunk{Text: text[mid:]}
	}()
	return ch, nil
}

func (f *fakeProvider) GetModelName() string    { return "fake" }
func (f *fakeProvider) GetMaxTokens() int       { return 1000 }
func (f *fakeProvider) GetTemperature() float64 { return 0 }
func (f *fakeProvider) Close() error            { return nil }

// fakeEmbedder returns a fixed vector for any text.
type fakeEmbedder struct {
	vector []float32
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vector, nil
}
func (f *fakeEmbedder) GetDimension() int    { return len(f.vector) }
func (f *fakeEmbedder) GetModelName() string { return "fake-embed" }
func (f *fakeEmbedder) Close() error         { return nil }

func testToolRegistry(t *testing.T) (*tools.Registry, *tools.Dispatcher) {
	t.Helper()
	dir := t.TempDir()
	script := `#!/bin/sh
# @describe Adds two numbers
# @option --a! First number
# @option --b! Second number
echo $(( $2 + $4 ))
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "add.sh"), []byte(script), 0755))

	reg := tools.NewRegistry()
	require.NoError(t, reg.LoadAll(dir))

	toolsCfg := &config.ToolsConfig{}
	toolsCfg.SetDefaults()
	return reg, tools.NewDispatcher(toolsCfg)
}

func testOrchestrator(t *testing.T, provider *fakeProvider, cfg config.AgentConfig, services Services) *Orchestrator {
	t.Helper()
	if services.Provider == nil {
		services.Provider = provider
	}
	if services.Store == nil {
		services.Store = session.NewFileStore(t.TempDir(), nil)
	}
	sessionCfg := config.SessionConfig{}
	sessionCfg.SetDefaults()

	orch, err := NewOrchestrator(cfg, sessionCfg, services)
	require.NoError(t, err)
	return orch
}

func TestRunPlainAnswer(t *testing.T) {
	provider := &fakeProvider{responses: []string{"Hello there!"}}
	store := session.NewFileStore(t.TempDir(), nil)

	orch := testOrchestrator(t, provider, config.AgentConfig{MaxToolIterations: 5},
		Services{Store: store})

	result, err := orch.Run(context.Background(), "chat", "hi")
	require.NoError(t, err)

	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, "Hello there!", result.FinalText)
	assert.Empty(t, result.ToolCalls)

	sess, err := store.Load("chat")
	require.NoError(t, err)
	history := sess.History()
	require.Len(t, history, 2)
	assert.Equal(t, session.RoleUser, history[0].Role)
	assert.Equal(t, session.RoleAssistant, history[1].Role)
}

func TestRunToolLoop(t *testing.T) {
	provider := &fakeProvider{responses: []string{
		`TOOL_CALL: {"tool": "add", "args": {"a": "2", "b": "3"}}`,
		"The result is 5.",
	}}
	reg, dispatcher := testToolRegistry(t)
	store := session.NewFileStore(t.TempDir(), nil)

	orch := testOrchestrator(t, provider,
		config.AgentConfig{MaxToolIterations: 5, EnableTools: true},
		Services{Store: store, Tools: reg, Dispatcher: dispatcher})

	result, err := orch.Run(context.Background(), "calc", "what is 2+3?")
	require.NoError(t, err)

	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, "The result is 5.", result.FinalText)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "add", result.ToolCalls[0].Tool)
	assert.True(t, result.ToolCalls[0].Result.Success)
	assert.Equal(t, "5", strings.TrimSpace(result.ToolCalls[0].Result.Output))

	// The tool round-trip is visible in the persisted transcript
	sess, err := store.Load("calc")
	require.NoError(t, err)
	var toolMsgs int
	for _, msg := range sess.History() {
		if msg.Role == session.RoleTool {
			toolMsgs++
			assert.Equal(t, "add", msg.ToolName)
		}
	}
	assert.Equal(t, 1, toolMsgs)

	// The second prompt carried the tool result back to the model
	require.Len(t, provider.prompts, 2)
	assert.Contains(t, provider.prompts[1], "tool (add): 5")
}

func TestRunUnknownToolIsRecoverable(t *testing.T) {
	provider := &fakeProvider{responses: []string{
		`TOOL_CALL: {"tool": "no_such_tool", "args": {}}`,
		"I could not use that tool.",
	}}
	reg, dispatcher := testToolRegistry(t)

	orch := testOrchestrator(t, provider,
		config.AgentConfig{MaxToolIterations: 5, EnableTools: true},
		Services{Tools: reg, Dispatcher: dispatcher})

	result, err := orch.Run(context.Background(), "chat", "do something")
	require.NoError(t, err)

	assert.Equal(t, StateDone, result.State)
	require.Len(t, result.ToolCalls, 1)
	assert.False(t, result.ToolCalls[0].Result.Success)
	assert.Equal(t, tools.ErrValidation, result.ToolCalls[0].Result.ErrorKind)

	// The error went back to the model as a tool-role message
	require.Len(t, provider.prompts, 2)
	assert.Contains(t, provider.prompts[1], "unknown tool: no_such_tool")
}

func TestRunIterationBound(t *testing.T) {
	// The script never ends: the model requests the same tool forever
	provider := &fakeProvider{responses: []string{
		`TOOL_CALL: {"tool": "add", "args": {"a": "1", "b": "1"}}`,
	}}
	reg, dispatcher := testToolRegistry(t)

	const maxIterations = 3
	orch := testOrchestrator(t, provider,
		config.AgentConfig{MaxToolIterations: maxIterations, EnableTools: true},
		Services{Tools: reg, Dispatcher: dispatcher})

	result, err := orch.Run(context.Background(), "loop", "go")
	require.NoError(t, err)

	assert.Equal(t, StateAborted, result.State)
	assert.Len(t, result.ToolCalls, maxIterations)
	assert.Contains(t, result.FinalText, "limit")
}

func TestRunRetrievalContextIsEphemeral(t *testing.T) {
	engine := retrieval.NewMemoryEngine(0)
	require.NoError(t, engine.Add(context.Background(), retrieval.Document{
		ID: "doc1", Text: "The warehouse code is 7741.", Embedding: []float32{1, 0},
	}))

	provider := &fakeProvider{responses: []string{"The code is 7741."}}
	store := session.NewFileStore(t.TempDir(), nil)

	orch := testOrchestrator(t, provider,
		config.AgentConfig{MaxToolIterations: 5, EnableRetrieval: true},
		Services{
			Store:     store,
			Embedder:  &fakeEmbedder{vector: []float32{1, 0}},
			Retriever: engine,
			TopK:      3,
		})

	result, err := orch.Run(context.Background(), "wh", "what is the warehouse code?")
	require.NoError(t, err)
	assert.Equal(t, StateDone, result.State)

	// The model saw the retrieved context
	require.Len(t, provider.prompts, 1)
	assert.Contains(t, provider.prompts[0], "The warehouse code is 7741.")

	// But the persisted history does not contain it
	sess, err := store.Load("wh")
	require.NoError(t, err)
	for _, msg := range sess.History() {
		assert.NotContains(t, msg.Content, "warehouse code is 7741")
	}
}

func TestRunSystemPromptRendered(t *testing.T) {
	provider := &fakeProvider{responses: []string{"ok"}}

	orch := testOrchestrator(t, provider,
		config.AgentConfig{MaxToolIterations: 5, SystemPrompt: "You are a terse assistant."},
		Services{})

	_, err := orch.Run(context.Background(), "chat", "hi")
	require.NoError(t, err)

	require.Len(t, provider.prompts, 1)
	assert.Contains(t, provider.prompts[0], "system: You are a terse assistant.")
	assert.Contains(t, provider.prompts[0], "user: hi")
	assert.True(t, strings.HasSuffix(provider.prompts[0], "assistant: "))
}

func TestRunStreamingForwardsFinalText(t *testing.T) {
	provider := &fakeProvider{responses: []string{
		`TOOL_CALL: {"tool": "add", "args": {"a": "2", "b": "3"}}`,
		"The result is 5.",
	}}
	reg, dispatcher := testToolRegistry(t)

	orch := testOrchestrator(t, provider,
		config.AgentConfig{MaxToolIterations: 5, EnableTools: true},
		Services{Tools: reg, Dispatcher: dispatcher})

	var streamed strings.Builder
	result, err := orch.RunStreaming(context.Background(), "calc", "2+3?",
		func(token string) { streamed.WriteString(token) })
	require.NoError(t, err)

	assert.Equal(t, StateDone, result.State)
	// Only the final answer is streamed, never the tool directive
	assert.Equal(t, "The result is 5.", streamed.String())
}

func TestRunStreamingProviderFailureFailsTurn(t *testing.T) {
	provider := &fakeProvider{
		responses: []string{"unreachable"},
		streamErr: errors.New("upstream unavailable"),
	}
	store := session.NewFileStore(t.TempDir(), nil)

	orch := testOrchestrator(t, provider, config.AgentConfig{MaxToolIterations: 5},
		Services{Store: store})

	var streamed strings.Builder
	_, err := orch.RunStreaming(context.Background(), "chat", "hi",
		func(token string) { streamed.WriteString(token) })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream unavailable")

	// The failed generation is neither streamed nor recorded as an answer
	assert.Empty(t, streamed.String())
	sess, loadErr := store.Load("chat")
	require.NoError(t, loadErr)
	for _, msg := range sess.History() {
		assert.NotEqual(t, session.RoleAssistant, msg.Role)
	}
}

func TestRunCancellation(t *testing.T) {
	provider := &fakeProvider{responses: []string{"never seen"}}

	orch := testOrchestrator(t, provider, config.AgentConfig{MaxToolIterations: 5}, Services{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := orch.Run(ctx, "chat", "hi")
	require.NoError(t, err)
	assert.Equal(t, StateAborted, result.State)
	assert.Contains(t, result.FinalText, "aborted")
}

func TestNewOrchestratorValidation(t *testing.T) {
	provider := &fakeProvider{responses: []string{"x"}}
	store := session.NewFileStore(t.TempDir(), nil)

	tests := []struct {
		name     string
		cfg      config.AgentConfig
		services Services
	}{
		{"missing provider", config.AgentConfig{}, Services{Store: store}},
		{"missing store", config.AgentConfig{}, Services{Provider: provider}},
		{"tools enabled without registry", config.AgentConfig{EnableTools: true},
			Services{Provider: provider, Store: store}},
		{"retrieval enabled without engine", config.AgentConfig{EnableRetrieval: true},
			Services{Provider: provider, Store: store}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOrchestrator(tt.cfg, config.SessionConfig{}, tt.services)
			assert.Error(t, err)
		})
	}
}
