package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/candralab/stanza/config"
	"github.com/candralab/stanza/embedders"
	"github.com/candralab/stanza/llms"
	"github.com/candralab/stanza/retrieval"
	"github.com/candralab/stanza/session"
	"github.com/candralab/stanza/tools"
)

// ============================================================================
// AGENT ORCHESTRATOR
// ============================================================================

// State is the terminal state of one orchestrated request.
type State string

const (
	// StateDone marks normal completion
	StateDone State = "DONE"

	// StateAborted marks termination by iteration bound or cancellation
	StateAborted State = "ABORTED"
)

// ToolCallRecord is one tool round-trip in a request's transcript.
type ToolCallRecord struct {
	Tool   string            `json:"tool"`
	Args   map[string]string `json:"args,omitempty"`
	Result tools.ToolResult  `json:"result"`
}

// RunResult is the outcome of one user request.
type RunResult struct {
	FinalText string           `json:"final_text"`
	State     State            `json:"state"`
	ToolCalls []ToolCallRecord `json:"tool_calls,omitempty"`
	Elapsed   time.Duration    `json:"elapsed"`
}

// Services collects the collaborators an orchestrator composes. Provider and
// Store are required; the rest are optional and gate the corresponding
// features.
type Services struct {
	Provider   llms.Provider
	Store      *session.FileStore
	Tools      *tools.Registry
	Dispatcher *tools.Dispatcher
	Embedder   embedders.Embedder
	Retriever  retrieval.Engine
	CountFunc  session.CountFunc

	// TopK bounds retrieval results per query, defaulting to 5
	TopK int
}

// Orchestrator runs the bounded tool-calling loop for one agent. A single
// orchestrator processes requests for a session sequentially; independent
// sessions may use independent orchestrators concurrently, sharing only the
// read-mostly tool registry and retrieval engine.
type Orchestrator struct {
	cfg        config.AgentConfig
	sessionCfg config.SessionConfig
	services   Services
}

// NewOrchestrator validates the collaborators and builds an orchestrator.
func NewOrchestrator(cfg config.AgentConfig, sessionCfg config.SessionConfig, services Services) (*Orchestrator, error) {
	if services.Provider == nil {
		return nil, fmt.Errorf("orchestrator requires a generation provider")
	}
	if services.Store == nil {
		return nil, fmt.Errorf("orchestrator requires a session store")
	}
	if cfg.EnableTools && (services.Tools == nil || services.Dispatcher == nil) {
		return nil, fmt.Errorf("tool use enabled but registry or dispatcher missing")
	}
	if cfg.EnableRetrieval && (services.Retriever == nil || services.Embedder == nil) {
		return nil, fmt.Errorf("retrieval enabled but engine or embedder missing")
	}
	return &Orchestrator{
		cfg:        cfg,
		sessionCfg: sessionCfg,
		services:   services,
	}, nil
}

// Run processes one user message against the named session and returns the
// final response once the tool-calling loop settles.
func (o *Orchestrator) Run(ctx context.Context, sessionName, userMessage string) (*RunResult, error) {
	return o.run(ctx, sessionName, userMessage, nil)
}

// RunStreaming behaves like Run but delivers the final response text through
// onToken as well, in order. Intermediate tool-calling turns are not
// streamed.
func (o *Orchestrator) RunStreaming(ctx context.Context, sessionName, userMessage string, onToken func(string)) (*RunResult, error) {
	return o.run(ctx, sessionName, userMessage, onToken)
}

func (o *Orchestrator) run(ctx context.Context, sessionName, userMessage string, onToken func(string)) (*RunResult, error) {
	start := time.Now()

	sess, err := o.services.Store.Load(sessionName)
	if err != nil {
		return nil, err
	}
	if o.services.CountFunc != nil {
		sess.SetCountFunc(o.services.CountFunc)
	}

	sess.Append(session.NewMessage(session.RoleUser, userMessage))

	compressed, err := sess.CompressIfNeeded(ctx, session.CompressOptions{
		Threshold:  o.sessionCfg.CompressThreshold,
		KeepRecent: o.sessionCfg.KeepRecent,
	}, o.summarizer())
	if err != nil {
		// Compression failure is not fatal, the uncompressed history
		// still produces a valid (if long) prompt
		slog.Warn("session compression failed", "session", sessionName, "error", err)
	} else if compressed {
		slog.Debug("session compressed", "session", sessionName, "tokens", sess.TokenCount())
	}

	// Working sequence: ephemeral context first, then persisted history.
	// Retrieval context is never written back to the session.
	var working []session.Message
	if o.cfg.SystemPrompt != "" {
		working = append(working, session.Message{Role: session.RoleSystem, Content: o.cfg.SystemPrompt})
	}
	if o.cfg.EnableRetrieval {
		if ctxMsg, ok := o.retrieveContext(ctx, userMessage); ok {
			working = append(working, ctxMsg)
		}
	}
	working = append(working, sess.History()...)

	var schema []byte
	if o.cfg.EnableTools {
		schema, err = o.services.Tools.CallingSchema()
		if err != nil {
			return nil, fmt.Errorf("failed to build tool schema: %w", err)
		}
	}

	result := &RunResult{State: StateDone}
	for {
		if ctx.Err() != nil {
			result.State = StateAborted
			result.FinalText = "Request aborted: " + ctx.Err().Error()
			break
		}

		text, _, err := o.generate(ctx, buildPrompt(working, schema), onToken)
		if err != nil {
			if ctx.Err() != nil {
				result.State = StateAborted
				result.FinalText = "Request aborted: " + ctx.Err().Error()
				break
			}
			return nil, fmt.Errorf("generation failed: %w", err)
		}

		directive, requested := ExtractDirective(text)
		if !requested || !o.cfg.EnableTools {
			result.FinalText = text
			sess.Append(session.NewMessage(session.RoleAssistant, text))
			break
		}

		if len(result.ToolCalls) >= o.cfg.MaxToolIterations {
			result.State = StateAborted
			result.FinalText = fmt.Sprintf(
				"Tool iteration limit reached (%d); the request was aborted before completion.",
				o.cfg.MaxToolIterations)
			sess.Append(session.NewMessage(session.RoleAssistant, result.FinalText))
			break
		}

		// The assistant's tool request becomes part of the history so a
		// reader of the transcript can follow what happened
		sess.Append(session.NewMessage(session.RoleAssistant, text))
		working = append(working, session.NewMessage(session.RoleAssistant, text))

		toolMsg, record := o.executeDirective(ctx, directive)
		result.ToolCalls = append(result.ToolCalls, record)
		sess.Append(toolMsg)
		working = append(working, toolMsg)
	}

	result.Elapsed = time.Since(start)
	if err := o.services.Store.Save(sess); err != nil {
		return result, err
	}
	return result, nil
}

// executeDirective resolves and runs one tool call, wrapping the outcome as
// a tool-role message. Unknown tools and failed executions are recoverable:
// they are reported back into the conversation, not raised.
func (o *Orchestrator) executeDirective(ctx context.Context, directive *Directive) (session.Message, ToolCallRecord) {
	desc, ok := o.services.Tools.Get(directive.Tool)
	if !ok {
		result := tools.ToolResult{
			Success:   false,
			ToolName:  directive.Tool,
			Error:     fmt.Sprintf("unknown tool: %s", directive.Tool),
			ErrorKind: tools.ErrValidation,
		}
		slog.Warn("model requested unknown tool", "tool", directive.Tool)
		return session.NewToolMessage(directive.Tool, "Error: "+result.Error),
			ToolCallRecord{Tool: directive.Tool, Args: directive.Args, Result: result}
	}

	result := o.services.Dispatcher.Execute(ctx, desc, directive.Args)
	record := ToolCallRecord{Tool: directive.Tool, Args: directive.Args, Result: result}

	content := result.Output
	if !result.Success {
		content = "Error: " + result.Error
	}
	slog.Debug("tool executed", "tool", directive.Tool, "success", result.Success,
		"elapsed", result.ExecutionTime)
	return session.NewToolMessage(directive.Tool, content), record
}

// retrieveContext embeds the user message and renders the top matching
// documents as an ephemeral system message.
func (o *Orchestrator) retrieveContext(ctx context.Context, userMessage string) (session.Message, bool) {
	embedding, err := o.services.Embedder.Embed(ctx, userMessage)
	if err != nil {
		slog.Warn("retrieval embedding failed", "error", err)
		return session.Message{}, false
	}

	topK := o.services.TopK
	if topK <= 0 {
		topK = 5
	}
	results, err := o.services.Retriever.Search(ctx, embedding, topK)
	if err != nil {
		slog.Warn("retrieval search failed", "error", err)
		return session.Message{}, false
	}
	if len(results) == 0 {
		return session.Message{}, false
	}

	var sb strings.Builder
	sb.WriteString("Relevant context:\n")
	for _, r := range results {
		sb.WriteString("- ")
		sb.WriteString(r.Document.Text)
		sb.WriteString("\n")
	}
	return session.Message{Role: session.RoleSystem, Content: sb.String()}, true
}

// generate invokes the provider once. With a token callback the streaming
// variant is used and chunks are buffered, then forwarded only when the
// completed text carries no tool directive.
func (o *Orchestrator) generate(ctx context.Context, prompt string, onToken func(string)) (string, int, error) {
	if onToken == nil {
		return o.services.Provider.Generate(ctx, prompt)
	}

	ch, err := o.services.Provider.GenerateStreaming(ctx, prompt)
	if err != nil {
		return "", 0, err
	}

	var chunks []string
	var sb strings.Builder
	for chunk := range ch {
		if chunk.Err != nil {
			return "", 0, chunk.Err
		}
		chunks = append(chunks, chunk.Text)
		sb.WriteString(chunk.Text)
	}
	text := sb.String()

	if _, requested := ExtractDirective(text); !requested {
		for _, chunk := range chunks {
			onToken(chunk)
		}
	}
	return text, 0, ctx.Err()
}

// summarizer adapts the provider into the session compression callback.
func (o *Orchestrator) summarizer() session.Summarizer {
	return func(ctx context.Context, transcript string) (string, error) {
		summary, _, err := o.services.Provider.Generate(ctx, summaryPrompt(transcript))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(summary), nil
	}
}
