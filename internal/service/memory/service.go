// Package memory keeps per-conversation message logs and the keyword index used for
// context retrieval.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-mentor/backend/internal/analysis/keywords"
	"github.com/zhouzirui/z-mentor/backend/internal/model/chat"
	"github.com/zhouzirui/z-mentor/backend/internal/observability"
	"github.com/zhouzirui/z-mentor/backend/internal/storage/kv"
)

// DefaultMinLength is the rune count a message must exceed to be indexed.
const DefaultMinLength = 10

const itemsPrefix = "memory:"

// ErrInvalidRole is returned when appending a message with an unknown role.
var ErrInvalidRole = errors.New("invalid message role")

// MessagesKey is the storage key of a conversation log.
func MessagesKey(conversationID string) string {
	return "conversation:" + conversationID + ":messages"
}

// ItemsKey is the storage key of a conversation's memory index.
func ItemsKey(conversationID string) string {
	return itemsPrefix + conversationID + ":items"
}

// Config tunes indexing.
type Config struct {
	MinLength int
}

// Service appends and reads conversation logs. Each conversation's log and index are
// written under one per-key lock.
type Service struct {
	store     kv.Store
	locks     *kv.KeyLocker
	metrics   *observability.Metrics
	logger    *zap.Logger
	minLength int
	now       func() time.Time
}

func NewService(store kv.Store, locks *kv.KeyLocker, cfg Config, metrics *observability.Metrics, logger *zap.Logger) *Service {
	if locks == nil {
		locks = kv.NewKeyLocker()
	}
	minLength := cfg.MinLength
	if minLength <= 0 {
		minLength = DefaultMinLength
	}
	return &Service{
		store:     store,
		locks:     locks,
		metrics:   metrics,
		logger:    observability.Named(logger, "memory"),
		minLength: minLength,
		now:       time.Now,
	}
}

// Append stores msg at the end of the conversation log, creating the log on first use.
// Non-system messages longer than the minimum length are also indexed.
func (s *Service) Append(ctx context.Context, conversationID string, msg chat.Message) (chat.Message, error) {
	if strings.TrimSpace(conversationID) == "" {
		return chat.Message{}, errors.New("conversation id is required")
	}
	if !msg.Role.Valid() {
		return chat.Message{}, fmt.Errorf("%w: %q", ErrInvalidRole, msg.Role)
	}

	msg.ConversationID = conversationID
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now().UTC()
	}

	unlock := s.locks.Lock(MessagesKey(conversationID))
	defer unlock()

	prev, err := s.load(ctx, conversationID)
	if err != nil {
		return chat.Message{}, err
	}
	log := append(prev[:len(prev):len(prev)], msg)
	if err := kv.SetJSON(ctx, s.store, MessagesKey(conversationID), log); err != nil {
		return chat.Message{}, fmt.Errorf("append message: %w", err)
	}

	if msg.Role == chat.RoleSystem || utf8.RuneCountInString(msg.Content) <= s.minLength {
		return msg, nil
	}

	items, err := s.Items(ctx, conversationID)
	if err != nil {
		s.rollback(ctx, conversationID, prev)
		return chat.Message{}, err
	}
	items = append(items, chat.MemoryItem{
		ID:             msg.ID,
		ConversationID: conversationID,
		Content:        msg.Content,
		Timestamp:      msg.Timestamp,
		Role:           msg.Role,
		Keywords:       keywords.Extract(msg.Content),
	})
	if err := kv.SetJSON(ctx, s.store, ItemsKey(conversationID), items); err != nil {
		s.rollback(ctx, conversationID, prev)
		return chat.Message{}, fmt.Errorf("index message: %w", err)
	}
	s.metrics.IncMemoryItem()

	return msg, nil
}

// rollback restores the log as it was before a failed Append so a retry does not
// leave an unindexed duplicate. Caller holds the conversation lock.
func (s *Service) rollback(ctx context.Context, conversationID string, prev []chat.Message) {
	var err error
	if len(prev) == 0 {
		err = s.store.Delete(ctx, MessagesKey(conversationID))
	} else {
		err = kv.SetJSON(ctx, s.store, MessagesKey(conversationID), prev)
	}
	if err != nil {
		s.logger.Error("failed to roll back message log",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
	}
}

// Recent returns the last min(limit, len) messages in chronological order.
// limit <= 0 returns an empty slice.
func (s *Service) Recent(ctx context.Context, conversationID string, limit int) ([]chat.Message, error) {
	if limit <= 0 {
		return []chat.Message{}, nil
	}
	log, err := s.All(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if len(log) > limit {
		log = log[len(log)-limit:]
	}
	return log, nil
}

// All returns the whole conversation log in chronological order.
func (s *Service) All(ctx context.Context, conversationID string) ([]chat.Message, error) {
	log, err := s.load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = []chat.Message{}
	}
	return log, nil
}

// Clear drops the log, then the index. A failed index delete leaves the log deleted.
func (s *Service) Clear(ctx context.Context, conversationID string) error {
	unlock := s.locks.Lock(MessagesKey(conversationID))
	defer unlock()

	if err := s.store.Delete(ctx, MessagesKey(conversationID)); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	if err := s.store.Delete(ctx, ItemsKey(conversationID)); err != nil {
		s.logger.Error("failed to clear memory index",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		return fmt.Errorf("clear memory index: %w", err)
	}

	s.logger.Debug("conversation cleared", zap.String("conversation_id", conversationID))
	return nil
}

// Items returns the memory index of one conversation in insertion order.
func (s *Service) Items(ctx context.Context, conversationID string) ([]chat.MemoryItem, error) {
	var items []chat.MemoryItem
	if _, err := kv.GetJSON(ctx, s.store, ItemsKey(conversationID), &items); err != nil {
		return nil, fmt.Errorf("load memory index: %w", err)
	}
	return items, nil
}

// AllItems returns every indexed item, conversations in key order.
func (s *Service) AllItems(ctx context.Context) ([]chat.MemoryItem, error) {
	keys, err := s.store.Keys(ctx, itemsPrefix)
	if err != nil {
		return nil, fmt.Errorf("list memory indexes: %w", err)
	}

	var all []chat.MemoryItem
	for _, key := range keys {
		if !strings.HasSuffix(key, ":items") {
			continue
		}
		var items []chat.MemoryItem
		if _, err := kv.GetJSON(ctx, s.store, key, &items); err != nil {
			return nil, fmt.Errorf("load memory index: %w", err)
		}
		all = append(all, items...)
	}
	return all, nil
}

func (s *Service) load(ctx context.Context, conversationID string) ([]chat.Message, error) {
	var log []chat.Message
	if _, err := kv.GetJSON(ctx, s.store, MessagesKey(conversationID), &log); err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", conversationID, err)
	}
	return log, nil
}
