// Package chat orchestrates one conversational turn: memory, retrieval, prompt
// composition, completion, intent handling and profile upkeep.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	intentAnalysis "github.com/zhouzirui/z-mentor/backend/internal/analysis/intent"
	"github.com/zhouzirui/z-mentor/backend/internal/model/chat"
	intentModel "github.com/zhouzirui/z-mentor/backend/internal/model/intent"
	"github.com/zhouzirui/z-mentor/backend/internal/model/persona"
	userProfile "github.com/zhouzirui/z-mentor/backend/internal/model/profile"
	"github.com/zhouzirui/z-mentor/backend/internal/observability"
	"github.com/zhouzirui/z-mentor/backend/internal/service/ai"
	"github.com/zhouzirui/z-mentor/backend/internal/service/memory"
	"github.com/zhouzirui/z-mentor/backend/internal/service/planner"
	"github.com/zhouzirui/z-mentor/backend/internal/service/profile"
	"github.com/zhouzirui/z-mentor/backend/internal/storage/kv"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrPersonaNotFound      = errors.New("persona not found")
	ErrEmptyMessage         = errors.New("message content is required")
)

// DefaultFallbackMessage is returned to the user when the completion backend fails.
const DefaultFallbackMessage = "I'm having trouble reaching my thoughts right now. Please try again in a moment."

const defaultRetrievalLimit = 5

// Config 控制对话编排。
type Config struct {
	HistoryLimit    int
	RetrievalLimit  int
	FallbackMessage string
}

// Dependencies are the collaborators of Service. Profiles and Planner are optional.
type Dependencies struct {
	Store       kv.Store
	Locks       *kv.KeyLocker
	Personas    persona.Store
	Memory      *memory.Service
	Retriever   *memory.Retriever
	Composer    *ai.Composer
	Completer   ai.Completer
	Interpreter *intentAnalysis.Interpreter
	Planner     *planner.Service
	Profiles    *profile.Service
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// ActionResult pairs an interpreted action with what applying it did.
type ActionResult struct {
	Action  intentModel.Action `json:"action"`
	Outcome *planner.Outcome   `json:"outcome,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// Rejection reports an intent that could not be turned into an action.
type Rejection struct {
	Action string `json:"action"`
	Error  string `json:"error"`
}

// Reply is the result of one Send.
type Reply struct {
	ConversationID string         `json:"conversationId"`
	Message        chat.Message   `json:"message"`
	Actions        []ActionResult `json:"actions"`
	Rejected       []Rejection    `json:"rejected,omitempty"`
	// Degraded is set when the completion failed and Message is the fallback text.
	Degraded bool `json:"degraded"`
}

// Service encapsulates conversation state management and the turn pipeline.
type Service struct {
	deps     Dependencies
	cfg      Config
	composer *ai.Composer
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(deps Dependencies, cfg Config) *Service {
	if deps.Locks == nil {
		deps.Locks = kv.NewKeyLocker()
	}
	if deps.Interpreter == nil {
		deps.Interpreter = intentAnalysis.NewInterpreter(deps.Logger)
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = ai.DefaultHistoryLimit
	}
	if cfg.RetrievalLimit <= 0 {
		cfg.RetrievalLimit = defaultRetrievalLimit
	}
	if strings.TrimSpace(cfg.FallbackMessage) == "" {
		cfg.FallbackMessage = DefaultFallbackMessage
	}
	composer := deps.Composer
	if composer == nil {
		composer = ai.NewComposer(cfg.HistoryLimit)
	}
	return &Service{
		deps:     deps,
		cfg:      cfg,
		composer: composer,
		logger:   observability.Named(deps.Logger, "chat"),
		now:      time.Now,
	}
}

func conversationKey(id string) string {
	return "conversation:" + id + ":meta"
}

// CreateConversation provisions a conversation bound to a persona. An empty id selects
// the default persona.
func (s *Service) CreateConversation(ctx context.Context, personaID string) (chat.Conversation, error) {
	personaID = strings.TrimSpace(personaID)
	if personaID == "" {
		personaID = persona.DefaultID
	}
	if _, ok := s.deps.Personas.Lookup(ctx, personaID); !ok {
		return chat.Conversation{}, fmt.Errorf("%w: %s", ErrPersonaNotFound, personaID)
	}
	return s.saveConversation(ctx, uuid.NewString(), personaID)
}

func (s *Service) saveConversation(ctx context.Context, id, personaID string) (chat.Conversation, error) {
	conv := chat.Conversation{
		ID:        id,
		PersonaID: personaID,
		CreatedAt: s.now().UTC(),
	}
	if err := kv.SetJSON(ctx, s.deps.Store, conversationKey(id), conv); err != nil {
		return chat.Conversation{}, fmt.Errorf("save conversation: %w", err)
	}
	return conv, nil
}

// GetConversation retrieves a conversation by identifier.
func (s *Service) GetConversation(ctx context.Context, id string) (chat.Conversation, error) {
	var conv chat.Conversation
	found, err := kv.GetJSON(ctx, s.deps.Store, conversationKey(id), &conv)
	if err != nil {
		return chat.Conversation{}, fmt.Errorf("load conversation: %w", err)
	}
	if !found {
		return chat.Conversation{}, ErrConversationNotFound
	}
	return conv, nil
}

// ensureConversation returns the conversation, creating it with the default persona on first use.
func (s *Service) ensureConversation(ctx context.Context, id string) (chat.Conversation, error) {
	unlock := s.deps.Locks.Lock(conversationKey(id))
	defer unlock()

	conv, err := s.GetConversation(ctx, id)
	if errors.Is(err, ErrConversationNotFound) {
		s.logger.Debug("creating conversation on first use", zap.String("conversation_id", id))
		return s.saveConversation(ctx, id, persona.DefaultID)
	}
	return conv, err
}

// ResetConversation clears the conversation and returns a fresh one bound to the same persona.
func (s *Service) ResetConversation(ctx context.Context, id string) (chat.Conversation, error) {
	conv, err := s.GetConversation(ctx, id)
	if err != nil {
		return chat.Conversation{}, err
	}
	if err := s.deps.Memory.Clear(ctx, id); err != nil {
		return chat.Conversation{}, err
	}
	if err := s.deps.Store.Delete(ctx, conversationKey(id)); err != nil {
		return chat.Conversation{}, fmt.Errorf("delete conversation: %w", err)
	}
	return s.saveConversation(ctx, uuid.NewString(), conv.PersonaID)
}

// Transcript returns the last limit messages. A negative limit returns the whole log.
func (s *Service) Transcript(ctx context.Context, id string, limit int) ([]chat.Message, error) {
	if limit < 0 {
		return s.deps.Memory.All(ctx, id)
	}
	return s.deps.Memory.Recent(ctx, id, limit)
}

// Clear drops a conversation's messages and memory but keeps the conversation itself.
func (s *Service) Clear(ctx context.Context, id string) error {
	return s.deps.Memory.Clear(ctx, id)
}

// Send runs one turn. A failed completion yields a degraded Reply rather than an error.
func (s *Service) Send(ctx context.Context, conversationID, text string) (Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, ErrEmptyMessage
	}

	conv, err := s.ensureConversation(ctx, conversationID)
	if err != nil {
		return Reply{}, err
	}
	mentor := s.deps.Personas.Get(ctx, conv.PersonaID)

	userMsg, err := s.deps.Memory.Append(ctx, conversationID, chat.Message{Role: chat.RoleUser, Content: text})
	if err != nil {
		return Reply{}, fmt.Errorf("store user message: %w", err)
	}

	var (
		history   []chat.Message
		retrieved string
		prof      = userProfile.Neutral()
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		history, err = s.deps.Memory.Recent(gctx, conversationID, s.cfg.HistoryLimit)
		return err
	})
	g.Go(func() error {
		if s.deps.Retriever == nil {
			return nil
		}
		found, err := s.deps.Retriever.Retrieve(gctx, memory.Query{
			Text:           text,
			Limit:          s.cfg.RetrievalLimit,
			ConversationID: conversationID,
			ExcludeIDs:     []string{userMsg.ID},
		})
		if err != nil {
			s.logger.Warn("context retrieval failed", zap.String("conversation_id", conversationID), zap.Error(err))
			return nil
		}
		retrieved = found
		return nil
	})
	g.Go(func() error {
		if s.deps.Profiles == nil {
			return nil
		}
		p, err := s.deps.Profiles.Get(gctx)
		if err != nil {
			s.logger.Warn("profile unavailable", zap.Error(err))
			return nil
		}
		prof = p
		return nil
	})
	if err := g.Wait(); err != nil {
		return Reply{}, fmt.Errorf("gather context: %w", err)
	}

	prompt := s.composer.Compose(ai.ComposeInput{
		Persona: mentor,
		Profile: prof,
		Query:   text,
		History: history,
		Context: retrieved,
		Now:     s.now(),
	})

	raw, err := s.deps.Completer.Complete(ctx, ai.CompletionRequest{
		Messages:    prompt,
		Temperature: mentor.SamplingTemperature(),
	})
	if err != nil {
		s.logger.Error("completion failed, replying with fallback",
			zap.String("conversation_id", conversationID),
			zap.String("persona_id", mentor.ID),
			zap.Error(err),
		)
		return Reply{
			ConversationID: conversationID,
			Message: chat.Message{
				ConversationID: conversationID,
				Role:           chat.RoleAssistant,
				Content:        s.cfg.FallbackMessage,
				Timestamp:      s.now().UTC(),
			},
			Actions:  []ActionResult{},
			Degraded: true,
		}, nil
	}

	reply := Reply{ConversationID: conversationID, Actions: []ActionResult{}}
	extracted := intentAnalysis.Extract(raw)
	for _, failure := range extracted.Failures {
		s.deps.Metrics.IncIntent("parse_failed")
		s.logger.Warn("malformed system intent left in reply", zap.Int("offset", failure.Offset), zap.Error(failure.Err))
	}
	for _, in := range extracted.Intents {
		s.handleIntent(ctx, in, &reply)
	}

	assistant, err := s.deps.Memory.Append(ctx, conversationID, chat.Message{
		Role:     chat.RoleAssistant,
		Content:  extracted.VisibleText,
		Metadata: map[string]string{"persona": mentor.ID},
	})
	if err != nil {
		return Reply{}, fmt.Errorf("store assistant message: %w", err)
	}
	reply.Message = assistant

	if s.deps.Profiles != nil {
		turn := append(append([]chat.Message(nil), history...), assistant)
		if _, err := s.deps.Profiles.RecordInteraction(ctx, turn); err != nil {
			s.logger.Warn("failed to record interaction", zap.Error(err))
		}
	}

	s.logger.Info("turn completed",
		zap.String("conversation_id", conversationID),
		zap.String("persona_id", mentor.ID),
		zap.Int("actions", len(reply.Actions)),
		zap.Int("rejected", len(reply.Rejected)),
	)
	return reply, nil
}

func (s *Service) handleIntent(ctx context.Context, in intentModel.SystemIntent, reply *Reply) {
	action, err := s.deps.Interpreter.Interpret(in)
	switch {
	case err != nil:
		s.deps.Metrics.IncIntent("rejected")
		reply.Rejected = append(reply.Rejected, Rejection{Action: in.Action, Error: err.Error()})
		return
	case action == nil:
		s.deps.Metrics.IncIntent("unknown")
		return
	}
	s.deps.Metrics.IncIntent("parsed")

	result := ActionResult{Action: *action}
	if s.deps.Planner != nil {
		outcome, err := s.deps.Planner.Apply(ctx, *action)
		if err != nil {
			result.Error = err.Error()
		} else {
			result.Outcome = &outcome
		}
	}
	reply.Actions = append(reply.Actions, result)
}
