package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/talendro/talendro-api/pkg/logger"
	"github.com/talendro/talendro-api/pkg/metrics"
)

// greetNudgeDelay is how long the bridge waits for the agent's opening line
// before prodding it. Some provider sessions connect silent and stay silent
// until the user speaks first, which feels broken in a voice interview.
const greetNudgeDelay = 900 * time.Millisecond

// PrimingContext is replayed to the provider when a started interview
// reconnects, so the agent picks up mid-conversation.
type PrimingContext struct {
	FirstName      string
	ResumeText     string
	JobDescription string
	RecentTurns    []Turn
}

// providerEvent is the subset of provider frames the bridge inspects for
// transcript fragments. Everything else passes through untouched.
type providerEvent struct {
	Type                   string `json:"type"`
	UserTranscriptionEvent *struct {
		UserTranscript string `json:"user_transcript"`
	} `json:"user_transcription_event"`
	AgentResponseEvent *struct {
		AgentResponse string `json:"agent_response"`
	} `json:"agent_response_event"`
}

type outboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Bridge relays one browser websocket to one provider websocket, observing
// transcript fragments on the way through.
type Bridge struct {
	sessionID string
	buffer    *TranscriptBuffer

	mu         sync.Mutex
	agentSpoke bool
}

// NewBridge creates a bridge for one voice session
func NewBridge(sessionID string, buffer *TranscriptBuffer) *Bridge {
	return &Bridge{
		sessionID: sessionID,
		buffer:    buffer,
	}
}

// Run relays frames until either side closes or ctx is cancelled. priming is
// nil on a fresh connection and set on reconnect.
func (b *Bridge) Run(ctx context.Context, client, upstream *websocket.Conn, priming *PrimingContext) error {
	metrics.VoiceBridgeConnections.WithLabelValues("open").Inc()
	defer metrics.VoiceBridgeConnections.WithLabelValues("closed").Inc()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if priming != nil {
		if err := b.prime(ctx, upstream, priming); err != nil {
			return fmt.Errorf("failed to prime reconnect: %w", err)
		}
	}

	go b.greetNudge(ctx, upstream)

	var wg sync.WaitGroup
	wg.Add(2)

	// Browser -> provider.
	go func() {
		defer wg.Done()
		defer cancel()
		b.relay(ctx, client, upstream, false)
	}()

	// Provider -> browser, with transcript capture.
	go func() {
		defer wg.Done()
		defer cancel()
		b.relay(ctx, upstream, client, true)
	}()

	wg.Wait()
	logger.Info("Voice bridge closed",
		zap.String("session_id", b.sessionID),
		zap.Int("buffered_turns", b.buffer.Len()))

	return nil
}

func (b *Bridge) relay(ctx context.Context, src, dst *websocket.Conn, fromProvider bool) {
	for {
		msgType, data, err := src.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				logger.Debug("Voice relay read failed",
					zap.String("session_id", b.sessionID), zap.Error(err))
			}
			return
		}

		if fromProvider && msgType == websocket.MessageText {
			b.observe(data)
		}

		if err := dst.Write(ctx, msgType, data); err != nil {
			if ctx.Err() == nil {
				logger.Debug("Voice relay write failed",
					zap.String("session_id", b.sessionID), zap.Error(err))
			}
			return
		}
	}
}

// observe extracts transcript fragments from provider frames
func (b *Bridge) observe(data []byte) {
	var ev providerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return
	}

	switch ev.Type {
	case "user_transcript":
		if ev.UserTranscriptionEvent != nil {
			b.buffer.Append("user", ev.UserTranscriptionEvent.UserTranscript)
		}
	case "agent_response":
		if ev.AgentResponseEvent != nil {
			b.buffer.Append("agent", ev.AgentResponseEvent.AgentResponse)
			b.mu.Lock()
			b.agentSpoke = true
			b.mu.Unlock()
		}
	}
}

// greetNudge asks the agent to open the conversation if it has said nothing
// shortly after connect
func (b *Bridge) greetNudge(ctx context.Context, upstream *websocket.Conn) {
	timer := time.NewTimer(greetNudgeDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	b.mu.Lock()
	spoke := b.agentSpoke
	b.mu.Unlock()
	if spoke {
		return
	}

	nudge := outboundMessage{
		Type: "user_message",
		Text: "Please greet the candidate and begin the interview.",
	}
	data, err := json.Marshal(nudge)
	if err != nil {
		return
	}

	if err := upstream.Write(ctx, websocket.MessageText, data); err != nil {
		logger.Debug("Greet nudge failed", zap.String("session_id", b.sessionID), zap.Error(err))
		return
	}
	logger.Debug("Sent greet nudge", zap.String("session_id", b.sessionID))
}

// prime replays document context and the recent conversation so the agent
// continues instead of restarting
func (b *Bridge) prime(ctx context.Context, upstream *websocket.Conn, pc *PrimingContext) error {
	var sb strings.Builder
	sb.WriteString("The candidate reconnected mid-interview. Continue the interview where it left off; do not restart or re-greet.\n\n")
	if pc.FirstName != "" {
		sb.WriteString("Candidate: " + pc.FirstName + "\n")
	}
	if pc.JobDescription != "" {
		sb.WriteString("Role under discussion:\n" + pc.JobDescription + "\n\n")
	}
	if pc.ResumeText != "" {
		sb.WriteString("Candidate resume:\n" + pc.ResumeText + "\n\n")
	}
	if len(pc.RecentTurns) > 0 {
		sb.WriteString("Most recent exchanges:\n")
		for _, t := range pc.RecentTurns {
			if t.Role == "agent" {
				sb.WriteString("Interviewer: ")
			} else {
				sb.WriteString("Candidate: ")
			}
			sb.WriteString(t.Text)
			sb.WriteString("\n")
		}
	}

	msg := outboundMessage{Type: "contextual_update", Text: sb.String()}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return upstream.Write(ctx, websocket.MessageText, data)
}
