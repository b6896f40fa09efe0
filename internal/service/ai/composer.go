package ai

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/z-mentor/backend/internal/model/chat"
	"github.com/zhouzirui/z-mentor/backend/internal/model/persona"
	"github.com/zhouzirui/z-mentor/backend/internal/model/profile"
)

// DefaultHistoryLimit is how many recent turns are replayed to the model.
const DefaultHistoryLimit = 10

// intentInstructions teaches the model the embedded action language. The marker syntax
// must stay in sync with the extractor.
const intentInstructions = `You can change the user's planner by embedding system intents anywhere in your reply.
Each intent is written as <system>action_name: {json payload}</system> and is removed before the user sees the reply.
Available actions:
- create_task {"title", "description", "priority": high|medium|low, "dueDate", "category", "goalId"}
- update_task {"id", "title", "status": pending|in_progress|completed, "priority", "completed"}
- delete_task {"id"}
- create_goal {"title", "description", "targetDate", "category", "milestones": []}
- update_goal {"id", "status": active|completed|paused|abandoned, "progress": 0-100}
- create_habit {"name", "description", "frequency": daily|weekly|monthly}
- complete_habit {"id", "date": "YYYY-MM-DD"}
- create_reflection {"content", "mood", "tags": []}
- track_metric {"name", "value": number, "unit"}
- navigate {"screen"}
- display_message {"message", "type": info|success|warning|error}
Only emit an intent when the user clearly asked for it or agreed to it.
Example reply:
Great, I've added it to your list. <system>create_task: {"title": "Draft the quarterly report", "priority": "high", "dueDate": "2025-01-31"}</system> Let me know when the first section is done.`

// ComposeInput carries everything a prompt is built from.
type ComposeInput struct {
	Persona persona.Profile
	Profile profile.UserProfile
	Query   string
	History []chat.Message
	// Context is the bullet list returned by the retriever; may be empty.
	Context string
	Now     time.Time
}

// Composer builds the ordered message list sent to the completion endpoint.
type Composer struct {
	HistoryLimit int
}

func NewComposer(historyLimit int) *Composer {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Composer{HistoryLimit: historyLimit}
}

// Compose returns the persona system message, the context system message, the recent
// turns and, unless the history already ends with it, the query as a final user message.
func (c *Composer) Compose(in ComposeInput) []*schema.Message {
	history := c.historyMessages(in.History)

	messages := make([]*schema.Message, 0, len(history)+3)
	messages = append(messages,
		schema.SystemMessage(BuildPersonaPrompt(in.Persona)),
		schema.SystemMessage(buildContextPrompt(in.Profile, in.Context, in.Now)),
	)
	messages = append(messages, history...)

	query := strings.TrimSpace(in.Query)
	if query == "" {
		return messages
	}
	if n := len(in.History); n > 0 {
		last := in.History[n-1]
		if last.Role == chat.RoleUser && strings.TrimSpace(last.Content) == query {
			return messages
		}
	}
	return append(messages, schema.UserMessage(query))
}

// BuildPersonaPrompt renders the persona system prompt, intent instructions included.
func BuildPersonaPrompt(p persona.Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a personal mentor inside a productivity app.", p.Name)
	if p.Description != "" {
		fmt.Fprintf(&b, " %s", p.Description)
	}
	b.WriteString("\n")

	writeList(&b, "Communication style", p.CommunicationStyle)
	writeList(&b, "Core values", p.Values)
	if p.Approach != "" {
		fmt.Fprintf(&b, "Approach: %s\n", p.Approach)
	}
	if len(p.AvoidTopics) > 0 {
		fmt.Fprintf(&b, "Avoid: %s\n", strings.Join(p.AvoidTopics, ", "))
	}
	if p.CustomInstructions != "" {
		fmt.Fprintf(&b, "Additional instructions: %s\n", p.CustomInstructions)
	}
	b.WriteString("Stay in character and keep answers practical.\n\n")
	b.WriteString(intentInstructions)
	return b.String()
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, strings.Join(items, ", "))
}

func buildContextPrompt(p profile.UserProfile, retrieved string, now time.Time) string {
	if now.IsZero() {
		now = time.Now()
	}

	var b strings.Builder
	b.WriteString("User profile:\n")
	if raw, err := json.Marshal(p); err == nil {
		b.Write(raw)
	} else {
		b.WriteString("{}")
	}
	b.WriteString("\n")

	if retrieved = strings.TrimSpace(retrieved); retrieved != "" {
		b.WriteString("\nRelevant things the user said before:\n")
		b.WriteString(retrieved)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nCurrent time: %s", now.UTC().Format(time.RFC3339))
	return b.String()
}

func (c *Composer) historyMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	limit := c.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	startIdx := 0
	if len(messages) > limit {
		startIdx = len(messages) - limit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		case chat.RoleSystem:
			history = append(history, schema.SystemMessage(msg.Content))
		}
	}
	return history
}
