package voice_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talendro/talendro-api/internal/voice"
)

func TestTranscriptBuffer_AppendSkipsBlankTurns(t *testing.T) {
	buffer := voice.NewTranscriptBuffer()

	buffer.Append("user", "   ")
	buffer.Append("agent", "")
	buffer.Append("user", "  hello  ")

	require.Equal(t, 1, buffer.Len())
	assert.Equal(t, voice.Turn{Role: "user", Text: "hello"}, buffer.All()[0])
}

func TestTranscriptBuffer_CapDropsOldestTurns(t *testing.T) {
	buffer := voice.NewTranscriptBuffer()

	for i := 0; i < 75; i++ {
		buffer.Append("user", fmt.Sprintf("turn %d", i))
	}

	all := buffer.All()
	require.Len(t, all, 60)
	assert.Equal(t, "turn 15", all[0].Text)
	assert.Equal(t, "turn 74", all[len(all)-1].Text)
}

func TestTranscriptBuffer_RecentReturnsNewestTwelve(t *testing.T) {
	buffer := voice.NewTranscriptBuffer()

	for i := 0; i < 30; i++ {
		buffer.Append("agent", fmt.Sprintf("q%d", i))
	}

	recent := buffer.Recent()
	require.Len(t, recent, 12)
	assert.Equal(t, "q18", recent[0].Text)
	assert.Equal(t, "q29", recent[len(recent)-1].Text)
}

func TestTranscriptBuffer_RecentShorterThanPrimingWindow(t *testing.T) {
	buffer := voice.NewTranscriptBuffer()

	buffer.Append("agent", "q1")
	buffer.Append("user", "a1")

	recent := buffer.Recent()
	require.Len(t, recent, 2)
	assert.Equal(t, "q1", recent[0].Text)
}

func TestTranscriptBuffer_RenderUsesSpeakerLabels(t *testing.T) {
	buffer := voice.NewTranscriptBuffer()

	buffer.Append("agent", "Tell me about yourself.")
	buffer.Append("user", "I build APIs.")

	rendered := buffer.Render()
	assert.Equal(t, "Sarah (Coach): Tell me about yourself.\n\nYou: I build APIs.", rendered)
}

func TestTranscriptBuffer_RenderEmpty(t *testing.T) {
	buffer := voice.NewTranscriptBuffer()
	assert.Empty(t, buffer.Render())
}

func TestTranscriptBuffer_ConcurrentAppends(t *testing.T) {
	buffer := voice.NewTranscriptBuffer()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				buffer.Append("user", fmt.Sprintf("g%d-%d", g, i))
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 60, buffer.Len())
}
