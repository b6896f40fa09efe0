// Package profile maintains the user profile that is injected into every prompt and
// periodically refreshes it from recent conversation.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-mentor/backend/internal/model/chat"
	model "github.com/zhouzirui/z-mentor/backend/internal/model/profile"
	"github.com/zhouzirui/z-mentor/backend/internal/observability"
	"github.com/zhouzirui/z-mentor/backend/internal/service/ai"
	"github.com/zhouzirui/z-mentor/backend/internal/storage/kv"
)

// Key stores the single user profile.
const Key = "user:profile"

// DefaultAnalysisInterval is how many interactions pass between two analyses.
const DefaultAnalysisInterval = 5

const analysisTemperature = 0.2

// errNoJSONObject marks model output without any {...} object.
var errNoJSONObject = errors.New("missing json object")

const analysisSystemPrompt = `You analyse conversations between a user and their personal mentor.
Respond with a single JSON object and nothing else, using this shape:
{"traits": {"openness": 0-1, "conscientiousness": 0-1, "extraversion": 0-1, "agreeableness": 0-1, "neuroticism": 0-1},
 "goals": ["..."], "values": ["..."],
 "communicationPreferences": {"tone": "...", "length": "..."},
 "workPatterns": {"peakHours": "...", "style": "..."},
 "insights": ["one short new observation"]}
Omit anything the conversation gives no evidence for.`

// Config 控制画像分析的行为。
type Config struct {
	AnalysisInterval int
	HistoryLimit     int
}

// Service 读取并更新用户画像。completer 为空时只累计交互次数。
type Service struct {
	store     kv.Store
	locks     *kv.KeyLocker
	completer ai.Completer
	interval  int
	history   int
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(store kv.Store, locks *kv.KeyLocker, completer ai.Completer, cfg Config, metrics *observability.Metrics, logger *zap.Logger) *Service {
	if locks == nil {
		locks = kv.NewKeyLocker()
	}
	interval := cfg.AnalysisInterval
	if interval <= 0 {
		interval = DefaultAnalysisInterval
	}
	history := cfg.HistoryLimit
	if history <= 0 {
		history = 20
	}
	return &Service{
		store:     store,
		locks:     locks,
		completer: completer,
		interval:  interval,
		history:   history,
		metrics:   metrics,
		logger:    observability.Named(logger, "profile"),
		now:       time.Now,
	}
}

// Get returns the stored profile, or the neutral one when none exists yet.
func (s *Service) Get(ctx context.Context) (model.UserProfile, error) {
	p := model.Neutral()
	found, err := kv.GetJSON(ctx, s.store, Key, &p)
	if err != nil {
		return model.Neutral(), fmt.Errorf("load profile: %w", err)
	}
	if !found {
		return model.Neutral(), nil
	}
	normalize(&p)
	return p, nil
}

// RecordInteraction counts one exchange and, every AnalysisInterval exchanges, asks the
// completer to re-analyse the user from history. Analysis failures leave the profile unchanged.
func (s *Service) RecordInteraction(ctx context.Context, history []chat.Message) (model.UserProfile, error) {
	p, err := s.update(ctx, func(p *model.UserProfile) {
		p.InteractionCount++
	})
	if err != nil {
		return p, err
	}
	if s.completer == nil || p.InteractionCount%s.interval != 0 {
		return p, nil
	}

	update, err := s.analyze(ctx, history)
	if err != nil {
		s.logger.Warn("profile analysis skipped", zap.Int("interactions", p.InteractionCount), zap.Error(err))
		return p, nil
	}

	return s.update(ctx, func(p *model.UserProfile) {
		merge(p, update)
		p.LastAnalyzedAt = s.now().UTC()
	})
}

func (s *Service) update(ctx context.Context, mutate func(*model.UserProfile)) (model.UserProfile, error) {
	unlock := s.locks.Lock(Key)
	defer unlock()

	p, err := s.Get(ctx)
	if err != nil {
		return p, err
	}
	mutate(&p)
	p.UpdatedAt = s.now().UTC()
	if err := kv.SetJSON(ctx, s.store, Key, p); err != nil {
		return p, fmt.Errorf("save profile: %w", err)
	}
	return p, nil
}

func (s *Service) analyze(ctx context.Context, history []chat.Message) (*analysisPayload, error) {
	text, err := s.completer.Complete(ctx, ai.CompletionRequest{
		Messages: []*schema.Message{
			schema.SystemMessage(analysisSystemPrompt),
			schema.UserMessage(formatHistory(history, s.history)),
		},
		Temperature: analysisTemperature,
	})
	if err != nil {
		s.metrics.IncProfileAnalysis("upstream_error")
		return nil, err
	}

	payload, err := parseAnalysisOutput(text)
	if err != nil {
		s.metrics.IncProfileAnalysis("parse_failed")
		return nil, fmt.Errorf("parse analysis: %w", err)
	}
	s.metrics.IncProfileAnalysis("ok")
	return payload, nil
}

type analysisPayload struct {
	Traits                   map[string]float64 `json:"traits"`
	Goals                    []string           `json:"goals"`
	Values                   []string           `json:"values"`
	CommunicationPreferences map[string]any     `json:"communicationPreferences"`
	WorkPatterns             map[string]any     `json:"workPatterns"`
	Insights                 []string           `json:"insights"`
}

// parseAnalysisOutput 解析大模型返回的 JSON，容忍前后的说明文字。
func parseAnalysisOutput(content string) (*analysisPayload, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, errNoJSONObject
	}

	payload := &analysisPayload{}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// merge overwrites traits (clamped to 0..1), unions goals and values, merges the
// preference maps and appends insights.
func merge(p *model.UserProfile, u *analysisPayload) {
	normalize(p)
	for name, v := range u.Traits {
		p.Traits[strings.ToLower(strings.TrimSpace(name))] = clamp01(v)
	}
	p.Goals = union(p.Goals, u.Goals)
	p.Values = union(p.Values, u.Values)
	mergeStrings(p.CommunicationPreferences, u.CommunicationPreferences)
	mergeStrings(p.WorkPatterns, u.WorkPatterns)
	for _, insight := range u.Insights {
		if insight = strings.TrimSpace(insight); insight != "" {
			p.Insights = append(p.Insights, insight)
		}
	}
}

func normalize(p *model.UserProfile) {
	if p.Traits == nil {
		p.Traits = map[string]float64{}
	}
	if p.Goals == nil {
		p.Goals = []string{}
	}
	if p.Values == nil {
		p.Values = []string{}
	}
	if p.CommunicationPreferences == nil {
		p.CommunicationPreferences = map[string]string{}
	}
	if p.WorkPatterns == nil {
		p.WorkPatterns = map[string]string{}
	}
	if p.Insights == nil {
		p.Insights = []string{}
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func union(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, v := range existing {
		seen[strings.ToLower(v)] = struct{}{}
	}
	for _, v := range incoming {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[strings.ToLower(v)]; ok {
			continue
		}
		seen[strings.ToLower(v)] = struct{}{}
		existing = append(existing, v)
	}
	return existing
}

func mergeStrings(dst map[string]string, src map[string]any) {
	for k, v := range src {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprint(v)
		}
		if s = strings.TrimSpace(s); s != "" {
			dst[k] = s
		}
	}
}

func formatHistory(messages []chat.Message, limit int) string {
	if len(messages) == 0 {
		return "No conversation yet."
	}
	start := len(messages) - limit
	if start < 0 {
		start = 0
	}

	var builder strings.Builder
	for _, msg := range messages[start:] {
		content := strings.TrimSpace(msg.Content)
		if content == "" || msg.Role == chat.RoleSystem {
			continue
		}
		role := "User"
		if msg.Role == chat.RoleAssistant {
			role = "Mentor"
		}
		if builder.Len() > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(role)
		builder.WriteString(": ")
		builder.WriteString(content)
	}
	if builder.Len() == 0 {
		return "No conversation yet."
	}
	return builder.String()
}
