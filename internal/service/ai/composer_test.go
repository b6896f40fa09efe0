package ai_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-mentor/backend/internal/model/chat"
	"github.com/zhouzirui/z-mentor/backend/internal/model/persona"
	"github.com/zhouzirui/z-mentor/backend/internal/model/profile"
	"github.com/zhouzirui/z-mentor/backend/internal/service/ai"
)

func commander() persona.Profile {
	return persona.Seed()[0]
}

func TestComposeOrder(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	history := []chat.Message{
		{Role: chat.RoleUser, Content: "hi"},
		{Role: chat.RoleAssistant, Content: "Report in."},
	}

	msgs := ai.NewComposer(0).Compose(ai.ComposeInput{
		Persona: commander(),
		Profile: profile.Neutral(),
		Query:   "plan my week",
		History: history,
		Context: "- I want to run a marathon",
		Now:     now,
	})

	require.Len(t, msgs, 5)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "The Commander")
	assert.Contains(t, msgs[0].Content, "<system>create_task:")
	assert.Contains(t, msgs[0].Content, "discipline")

	assert.Equal(t, schema.System, msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "- I want to run a marathon")
	assert.Contains(t, msgs[1].Content, "2026-05-01T09:30:00Z")
	assert.Contains(t, msgs[1].Content, `"traits"`)

	assert.Equal(t, schema.User, msgs[2].Role)
	assert.Equal(t, schema.Assistant, msgs[3].Role)
	assert.Equal(t, schema.User, msgs[4].Role)
	assert.Equal(t, "plan my week", msgs[4].Content)
}

func TestComposeDoesNotRepeatQuery(t *testing.T) {
	history := []chat.Message{{Role: chat.RoleUser, Content: "plan my week"}}

	msgs := ai.NewComposer(0).Compose(ai.ComposeInput{
		Persona: commander(),
		Query:   "plan my week",
		History: history,
	})

	require.Len(t, msgs, 3)
	assert.Equal(t, "plan my week", msgs[2].Content)
}

func TestComposeTruncatesHistory(t *testing.T) {
	var history []chat.Message
	for i := 0; i < 15; i++ {
		history = append(history, chat.Message{Role: chat.RoleUser, Content: fmt.Sprintf("turn %d", i)})
	}

	msgs := ai.NewComposer(ai.DefaultHistoryLimit).Compose(ai.ComposeInput{
		Persona: commander(),
		Query:   "turn 14",
		History: history,
	})

	require.Len(t, msgs, 2+ai.DefaultHistoryLimit)
	assert.Equal(t, "turn 5", msgs[2].Content)
	assert.Equal(t, "turn 14", msgs[len(msgs)-1].Content)
}

func TestComposeOmitsEmptyContext(t *testing.T) {
	msgs := ai.NewComposer(0).Compose(ai.ComposeInput{Persona: commander(), Query: "hello"})

	require.Len(t, msgs, 3)
	assert.False(t, strings.Contains(msgs[1].Content, "Relevant things"))
}

func TestBuildPersonaPromptCustomInstructions(t *testing.T) {
	p := persona.Profile{Name: "Stoic", CustomInstructions: "Quote Seneca once per reply."}

	prompt := ai.BuildPersonaPrompt(p)
	assert.Contains(t, prompt, "You are Stoic")
	assert.Contains(t, prompt, "Quote Seneca once per reply.")
	assert.NotContains(t, prompt, "Avoid:")
}
