package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/candralab/stanza/utils"
)

// ============================================================================
// SESSION STATE
// ============================================================================

// CountFunc returns the token count of a piece of text.
type CountFunc func(text string) int

// Summarizer condenses a conversation transcript into a short summary.
type Summarizer func(ctx context.Context, transcript string) (string, error)

// Session holds the message history for one named conversation. The token
// count is computed lazily and cached until the history changes.
type Session struct {
	mu sync.RWMutex

	Name      string    `yaml:"name"`
	Messages  []Message `yaml:"messages"`
	CreatedAt time.Time `yaml:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at"`

	// Compressions counts how many times older history was summarized away
	Compressions int `yaml:"compressions,omitempty"`

	countFn     CountFunc
	tokenCount  int
	countCached bool
}

// NewSession creates an empty session. A nil countFn falls back to rough
// estimation.
func NewSession(name string, countFn CountFunc) *Session {
	if countFn == nil {
		countFn = utils.EstimateTokens
	}
	now := time.Now()
	return &Session{
		Name:      name,
		Messages:  make([]Message, 0),
		CreatedAt: now,
		UpdatedAt: now,
		countFn:   countFn,
	}
}

// SetCountFunc installs the token counter, used after loading a session from
// disk. Invalidates any cached count.
func (s *Session) SetCountFunc(countFn CountFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if countFn == nil {
		countFn = utils.EstimateTokens
	}
	s.countFn = countFn
	s.countCached = false
}

// Append adds a message to the history and invalidates the cached token
// count.
func (s *Session) Append(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Messages = append(s.Messages, msg)
	s.UpdatedAt = time.Now()
	s.countCached = false
}

// History returns a copy of the message history.
func (s *Session) History() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := make([]Message, len(s.Messages))
	copy(messages, s.Messages)
	return messages
}

// Len returns the number of messages in the session.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Messages)
}

// TokenCount sums the token count of every message's content. The total is
// computed on first use and cached until the history changes.
func (s *Session) TokenCount() int {
	s.mu.RLock()
	if s.countCached {
		defer s.mu.RUnlock()
		return s.tokenCount
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countCached {
		return s.tokenCount
	}
	total := 0
	for _, msg := range s.Messages {
		total += s.countFn(msg.Content)
	}
	s.tokenCount = total
	s.countCached = true
	return s.tokenCount
}

// Transcript renders the full history in "{role}: {content}" form, one blank
// line between turns.
func (s *Session) Transcript() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transcript(s.Messages)
}

func transcript(messages []Message) string {
	var sb strings.Builder
	for _, msg := range messages {
		sb.WriteString(msg.Role)
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// ============================================================================
// COMPRESSION
// ============================================================================

// CompressOptions bounds the compression pass.
type CompressOptions struct {
	// Threshold is the token count above which compression runs
	Threshold int

	// KeepRecent is how many trailing messages survive verbatim
	KeepRecent int
}

// CompressIfNeeded summarizes older history when the session exceeds the
// token threshold. The most recent KeepRecent messages are preserved
// verbatim; everything before them is replaced by a single system message
// holding the summary. Returns true when a compression happened. The session
// is left untouched if the summarizer fails.
func (s *Session) CompressIfNeeded(ctx context.Context, opts CompressOptions, summarize Summarizer) (bool, error) {
	if summarize == nil {
		return false, NewSessionError(s.Name, "CompressIfNeeded", "summarizer is required", nil)
	}
	if s.TokenCount() < opts.Threshold {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Nothing to fold away when the whole history fits in the keep window
	if opts.KeepRecent >= len(s.Messages) {
		return false, nil
	}

	keep := opts.KeepRecent
	if keep < 0 {
		keep = 0
	}
	cut := len(s.Messages) - keep
	older := s.Messages[:cut]

	summary, err := summarize(ctx, transcript(older))
	if err != nil {
		return false, NewSessionError(s.Name, "CompressIfNeeded", "summarization failed", err)
	}

	compressed := make([]Message, 0, keep+1)
	compressed = append(compressed, NewMessage(RoleSystem, "Summary of earlier conversation: "+summary))
	compressed = append(compressed, s.Messages[cut:]...)

	s.Messages = compressed
	s.Compressions++
	s.UpdatedAt = time.Now()
	s.countCached = false
	return true, nil
}
