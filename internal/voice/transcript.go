package voice

import (
	"strings"
	"sync"
)

const (
	// transcriptCap bounds memory per live voice session. Older turns fall
	// off; the analysis only ever needs the recent conversation anyway.
	transcriptCap = 60

	// primingTurns is how much recent context a reconnecting session replays
	// to the provider so the agent continues instead of starting over.
	primingTurns = 12
)

// Turn is one spoken exchange fragment from the realtime stream
type Turn struct {
	Role string // "user" or "agent"
	Text string
}

// TranscriptBuffer accumulates spoken turns for one live voice session.
// Safe for concurrent use; the relay goroutines append while the handler
// reads on disconnect.
type TranscriptBuffer struct {
	mu    sync.Mutex
	turns []Turn
}

// NewTranscriptBuffer creates an empty buffer
func NewTranscriptBuffer() *TranscriptBuffer {
	return &TranscriptBuffer{}
}

// Append records one turn, dropping the oldest once the cap is reached
func (b *TranscriptBuffer) Append(role, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.turns = append(b.turns, Turn{Role: role, Text: text})
	if len(b.turns) > transcriptCap {
		b.turns = b.turns[len(b.turns)-transcriptCap:]
	}
}

// Len returns the number of buffered turns
func (b *TranscriptBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.turns)
}

// Recent returns up to primingTurns of the newest turns, oldest first
func (b *TranscriptBuffer) Recent() []Turn {
	b.mu.Lock()
	defer b.mu.Unlock()

	start := len(b.turns) - primingTurns
	if start < 0 {
		start = 0
	}
	out := make([]Turn, len(b.turns)-start)
	copy(out, b.turns[start:])
	return out
}

// All returns a copy of every buffered turn, oldest first
func (b *TranscriptBuffer) All() []Turn {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Turn, len(b.turns))
	copy(out, b.turns)
	return out
}

// Render flattens the buffer into the speaker-labeled transcript format the
// results composer parses.
func (b *TranscriptBuffer) Render() string {
	turns := b.All()

	var sb strings.Builder
	for _, t := range turns {
		if t.Role == "agent" {
			sb.WriteString("Sarah (Coach): ")
		} else {
			sb.WriteString("You: ")
		}
		sb.WriteString(t.Text)
		sb.WriteString("\n\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
