package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/zhouzirui/z-mentor/backend/internal/analysis/keywords"
	"github.com/zhouzirui/z-mentor/backend/internal/model/chat"
)

// Retrieval scopes.
const (
	ScopeGlobal       = "global"
	ScopeConversation = "conversation"
)

// Query narrows a retrieval.
type Query struct {
	Text           string
	Limit          int
	ConversationID string
	// ExcludeIDs skips items by source message id, typically the message being answered.
	ExcludeIDs []string
}

// Retriever ranks memory items by keyword overlap with a query.
type Retriever struct {
	memory *Service
	scope  string
}

// NewRetriever searches every conversation unless scope is ScopeConversation.
func NewRetriever(memory *Service, scope string) *Retriever {
	if scope != ScopeConversation {
		scope = ScopeGlobal
	}
	return &Retriever{memory: memory, scope: scope}
}

// RetrieveRelevant returns up to limit matching items as "- content" lines, or "" when none match.
func (r *Retriever) RetrieveRelevant(ctx context.Context, query string, limit int, conversationID string) (string, error) {
	return r.Retrieve(ctx, Query{Text: query, Limit: limit, ConversationID: conversationID})
}

func (r *Retriever) Retrieve(ctx context.Context, q Query) (string, error) {
	if q.Limit <= 0 {
		return "", nil
	}
	terms := keywords.Set(keywords.Extract(q.Text))
	if len(terms) == 0 {
		return "", nil
	}

	var (
		items []chat.MemoryItem
		err   error
	)
	if r.scope == ScopeConversation && q.ConversationID != "" {
		items, err = r.memory.Items(ctx, q.ConversationID)
	} else {
		items, err = r.memory.AllItems(ctx)
	}
	if err != nil {
		return "", err
	}

	excluded := make(map[string]struct{}, len(q.ExcludeIDs))
	for _, id := range q.ExcludeIDs {
		excluded[id] = struct{}{}
	}

	type scored struct {
		item  chat.MemoryItem
		score int
	}
	var matches []scored
	for _, item := range items {
		if item.Role == chat.RoleSystem {
			continue
		}
		if _, skip := excluded[item.ID]; skip {
			continue
		}
		if score := keywords.Overlap(item.Keywords, terms); score > 0 {
			matches = append(matches, scored{item: item, score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})
	if len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}

	lines := make([]string, 0, len(matches))
	for _, m := range matches {
		lines = append(lines, "- "+m.item.Content)
	}
	return strings.Join(lines, "\n"), nil
}
