// Package planner applies interpreted actions to the user's tasks, goals, habits,
// journal and metrics.
package planner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	intentModel "github.com/zhouzirui/z-mentor/backend/internal/model/intent"
	"github.com/zhouzirui/z-mentor/backend/internal/model/planner"
	"github.com/zhouzirui/z-mentor/backend/internal/observability"
	"github.com/zhouzirui/z-mentor/backend/internal/storage/kv"
)

// Collection keys.
const (
	TasksKey       = "tasks"
	GoalsKey       = "goals"
	HabitsKey      = "habits"
	JournalKey     = "journal:entries"
	JournalTagsKey = "journal:tags"
	MetricsKey     = "metrics"
)

// ErrNotFound is returned when an action targets an id that does not exist.
var ErrNotFound = errors.New("planner item not found")

// Outcome describes what applying one action did.
type Outcome struct {
	Type intentModel.ActionType `json:"type"`
	// ClientSide actions are returned to the client untouched.
	ClientSide bool   `json:"clientSide"`
	EntityID   string `json:"entityId,omitempty"`
	Entity     any    `json:"entity,omitempty"`
}

// Service owns the planner collections.
type Service struct {
	store   kv.Store
	locks   *kv.KeyLocker
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(store kv.Store, locks *kv.KeyLocker, metrics *observability.Metrics, logger *zap.Logger) *Service {
	if locks == nil {
		locks = kv.NewKeyLocker()
	}
	return &Service{
		store:   store,
		locks:   locks,
		metrics: metrics,
		logger:  observability.Named(logger, "planner"),
		now:     time.Now,
	}
}

// Apply executes action. Navigation and display actions are client-side and touch no state.
func (s *Service) Apply(ctx context.Context, action intentModel.Action) (Outcome, error) {
	out, err := s.apply(ctx, action)
	outcome := "applied"
	switch {
	case errors.Is(err, ErrNotFound):
		outcome = "not_found"
	case err != nil:
		outcome = "error"
	case out.ClientSide:
		outcome = "client_side"
	}
	s.metrics.IncAction(string(action.Type), outcome)
	if err != nil {
		s.logger.Warn("action failed", zap.String("type", string(action.Type)), zap.Error(err))
		return Outcome{Type: action.Type}, err
	}
	out.Type = action.Type
	return out, nil
}

func (s *Service) apply(ctx context.Context, action intentModel.Action) (Outcome, error) {
	switch p := action.Payload.(type) {
	case intentModel.CreateTaskPayload:
		return s.createTask(ctx, p)
	case intentModel.UpdateTaskPayload:
		return s.updateTask(ctx, p)
	case intentModel.DeleteTaskPayload:
		return s.deleteTask(ctx, p)
	case intentModel.CreateGoalPayload:
		return s.createGoal(ctx, p)
	case intentModel.UpdateGoalPayload:
		return s.updateGoal(ctx, p)
	case intentModel.CreateHabitPayload:
		return s.createHabit(ctx, p)
	case intentModel.CompleteHabitPayload:
		return s.completeHabit(ctx, p)
	case intentModel.CreateReflectionPayload:
		return s.createReflection(ctx, p)
	case intentModel.TrackMetricPayload:
		return s.trackMetric(ctx, p)
	case intentModel.NavigatePayload, intentModel.DisplayMessagePayload:
		return Outcome{ClientSide: true, Entity: p}, nil
	default:
		return Outcome{}, fmt.Errorf("unsupported action %s", action.Type)
	}
}

// updateCollection runs fn over the decoded collection under the collection's lock and
// stores the result.
func updateCollection[T any](ctx context.Context, s *Service, key string, fn func([]T) ([]T, error)) error {
	unlock := s.locks.Lock(key)
	defer unlock()

	items, err := loadCollection[T](ctx, s, key)
	if err != nil {
		return err
	}
	items, err = fn(items)
	if err != nil {
		return err
	}
	if err := kv.SetJSON(ctx, s.store, key, items); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func loadCollection[T any](ctx context.Context, s *Service, key string) ([]T, error) {
	items := []T{}
	if _, err := kv.GetJSON(ctx, s.store, key, &items); err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return items, nil
}

func (s *Service) createTask(ctx context.Context, p intentModel.CreateTaskPayload) (Outcome, error) {
	now := s.now().UTC()
	task := planner.Task{
		ID:          uuid.NewString(),
		Title:       p.Title,
		Description: p.Description,
		Priority:    p.Priority,
		Status:      planner.TaskPending,
		DueDate:     p.DueDate,
		Category:    p.Category,
		GoalID:      p.GoalID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if task.Priority == "" {
		task.Priority = planner.PriorityMedium
	}
	err := updateCollection(ctx, s, TasksKey, func(tasks []planner.Task) ([]planner.Task, error) {
		return append(tasks, task), nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{EntityID: task.ID, Entity: task}, nil
}

func (s *Service) updateTask(ctx context.Context, p intentModel.UpdateTaskPayload) (Outcome, error) {
	var updated planner.Task
	err := updateCollection(ctx, s, TasksKey, func(tasks []planner.Task) ([]planner.Task, error) {
		for i := range tasks {
			if tasks[i].ID != p.ID {
				continue
			}
			t := &tasks[i]
			setIfNotEmpty(&t.Title, p.Title)
			setIfNotEmpty(&t.Description, p.Description)
			setIfNotEmpty(&t.Priority, p.Priority)
			setIfNotEmpty(&t.Status, p.Status)
			setIfNotEmpty(&t.DueDate, p.DueDate)
			t.UpdatedAt = s.now().UTC()
			updated = *t
			return tasks, nil
		}
		return nil, fmt.Errorf("task %s: %w", p.ID, ErrNotFound)
	})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{EntityID: updated.ID, Entity: updated}, nil
}

func (s *Service) deleteTask(ctx context.Context, p intentModel.DeleteTaskPayload) (Outcome, error) {
	err := updateCollection(ctx, s, TasksKey, func(tasks []planner.Task) ([]planner.Task, error) {
		for i := range tasks {
			if tasks[i].ID == p.ID {
				return append(tasks[:i], tasks[i+1:]...), nil
			}
		}
		return nil, fmt.Errorf("task %s: %w", p.ID, ErrNotFound)
	})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{EntityID: p.ID}, nil
}

func (s *Service) createGoal(ctx context.Context, p intentModel.CreateGoalPayload) (Outcome, error) {
	now := s.now().UTC()
	goal := planner.Goal{
		ID:          uuid.NewString(),
		Title:       p.Title,
		Description: p.Description,
		Status:      planner.GoalActive,
		TargetDate:  p.TargetDate,
		Category:    p.Category,
		Milestones:  p.Milestones,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := updateCollection(ctx, s, GoalsKey, func(goals []planner.Goal) ([]planner.Goal, error) {
		return append(goals, goal), nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{EntityID: goal.ID, Entity: goal}, nil
}

func (s *Service) updateGoal(ctx context.Context, p intentModel.UpdateGoalPayload) (Outcome, error) {
	var updated planner.Goal
	err := updateCollection(ctx, s, GoalsKey, func(goals []planner.Goal) ([]planner.Goal, error) {
		for i := range goals {
			if goals[i].ID != p.ID {
				continue
			}
			g := &goals[i]
			setIfNotEmpty(&g.Title, p.Title)
			setIfNotEmpty(&g.Description, p.Description)
			setIfNotEmpty(&g.Status, p.Status)
			if p.Progress != nil {
				g.Progress = *p.Progress
				if g.Progress >= 100 && p.Status == "" {
					g.Status = planner.GoalCompleted
				}
			}
			g.UpdatedAt = s.now().UTC()
			updated = *g
			return goals, nil
		}
		return nil, fmt.Errorf("goal %s: %w", p.ID, ErrNotFound)
	})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{EntityID: updated.ID, Entity: updated}, nil
}

func (s *Service) createHabit(ctx context.Context, p intentModel.CreateHabitPayload) (Outcome, error) {
	now := s.now().UTC()
	habit := planner.Habit{
		ID:          uuid.NewString(),
		Name:        p.Name,
		Description: p.Description,
		Frequency:   p.Frequency,
		Category:    p.Category,
		Completions: []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if habit.Frequency == "" {
		habit.Frequency = planner.FrequencyDaily
	}
	err := updateCollection(ctx, s, HabitsKey, func(habits []planner.Habit) ([]planner.Habit, error) {
		return append(habits, habit), nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{EntityID: habit.ID, Entity: habit}, nil
}

// completeHabit records one completion per calendar day and recomputes the streak.
func (s *Service) completeHabit(ctx context.Context, p intentModel.CompleteHabitPayload) (Outcome, error) {
	date := p.Date
	if date.IsZero() {
		date = s.now()
	}
	day := date.UTC().Format(time.DateOnly)

	var updated planner.Habit
	err := updateCollection(ctx, s, HabitsKey, func(habits []planner.Habit) ([]planner.Habit, error) {
		for i := range habits {
			if habits[i].ID != p.ID {
				continue
			}
			h := &habits[i]
			idx := sort.SearchStrings(h.Completions, day)
			if idx == len(h.Completions) || h.Completions[idx] != day {
				h.Completions = append(h.Completions, "")
				copy(h.Completions[idx+1:], h.Completions[idx:])
				h.Completions[idx] = day
				h.UpdatedAt = s.now().UTC()
			}
			h.Streak = Streak(h.Completions, h.Frequency)
			updated = *h
			return habits, nil
		}
		return nil, fmt.Errorf("habit %s: %w", p.ID, ErrNotFound)
	})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{EntityID: updated.ID, Entity: updated}, nil
}

// Streak counts consecutive completions ending at the latest one. Two completions are
// consecutive when they are at most one period apart.
func Streak(completions []string, frequency string) int {
	if len(completions) == 0 {
		return 0
	}
	maxGap := 1
	switch frequency {
	case planner.FrequencyWeekly:
		maxGap = 7
	case planner.FrequencyMonthly:
		maxGap = 31
	}

	streak := 1
	for i := len(completions) - 1; i > 0; i-- {
		cur, err1 := time.Parse(time.DateOnly, completions[i])
		prev, err2 := time.Parse(time.DateOnly, completions[i-1])
		if err1 != nil || err2 != nil {
			break
		}
		if int(cur.Sub(prev).Hours()/24) > maxGap {
			break
		}
		streak++
	}
	return streak
}

func (s *Service) createReflection(ctx context.Context, p intentModel.CreateReflectionPayload) (Outcome, error) {
	entry := planner.Reflection{
		ID:        uuid.NewString(),
		Content:   p.Content,
		Mood:      p.Mood,
		Tags:      normalizeTags(p.Tags),
		CreatedAt: s.now().UTC(),
	}

	err := updateCollection(ctx, s, JournalKey, func(entries []planner.Reflection) ([]planner.Reflection, error) {
		return append(entries, entry), nil
	})
	if err != nil {
		return Outcome{}, err
	}

	if len(entry.Tags) > 0 {
		if err := s.indexTags(ctx, entry); err != nil {
			return Outcome{}, err
		}
	}
	return Outcome{EntityID: entry.ID, Entity: entry}, nil
}

func (s *Service) indexTags(ctx context.Context, entry planner.Reflection) error {
	unlock := s.locks.Lock(JournalTagsKey)
	defer unlock()

	index := map[string][]string{}
	if _, err := kv.GetJSON(ctx, s.store, JournalTagsKey, &index); err != nil {
		return fmt.Errorf("load %s: %w", JournalTagsKey, err)
	}
	for _, tag := range entry.Tags {
		index[tag] = append(index[tag], entry.ID)
	}
	if err := kv.SetJSON(ctx, s.store, JournalTagsKey, index); err != nil {
		return fmt.Errorf("save %s: %w", JournalTagsKey, err)
	}
	return nil
}

func (s *Service) trackMetric(ctx context.Context, p intentModel.TrackMetricPayload) (Outcome, error) {
	entry := planner.MetricEntry{
		ID:         uuid.NewString(),
		Name:       p.Name,
		Value:      p.Value,
		Unit:       p.Unit,
		RecordedAt: s.now().UTC(),
	}
	err := updateCollection(ctx, s, MetricsKey, func(entries []planner.MetricEntry) ([]planner.MetricEntry, error) {
		return append(entries, entry), nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{EntityID: entry.ID, Entity: entry}, nil
}

func (s *Service) ListTasks(ctx context.Context) ([]planner.Task, error) {
	return loadCollection[planner.Task](ctx, s, TasksKey)
}

func (s *Service) ListGoals(ctx context.Context) ([]planner.Goal, error) {
	return loadCollection[planner.Goal](ctx, s, GoalsKey)
}

func (s *Service) ListHabits(ctx context.Context) ([]planner.Habit, error) {
	return loadCollection[planner.Habit](ctx, s, HabitsKey)
}

// ListReflections returns journal entries, optionally only those carrying tag.
func (s *Service) ListReflections(ctx context.Context, tag string) ([]planner.Reflection, error) {
	entries, err := loadCollection[planner.Reflection](ctx, s, JournalKey)
	if err != nil || tag == "" {
		return entries, err
	}

	index := map[string][]string{}
	if _, err := kv.GetJSON(ctx, s.store, JournalTagsKey, &index); err != nil {
		return nil, fmt.Errorf("load %s: %w", JournalTagsKey, err)
	}
	wanted := make(map[string]struct{})
	for _, id := range index[strings.ToLower(strings.TrimSpace(tag))] {
		wanted[id] = struct{}{}
	}

	out := []planner.Reflection{}
	for _, e := range entries {
		if _, ok := wanted[e.ID]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// ListMetrics returns recorded metric entries, optionally filtered by name.
func (s *Service) ListMetrics(ctx context.Context, name string) ([]planner.MetricEntry, error) {
	entries, err := loadCollection[planner.MetricEntry](ctx, s, MetricsKey)
	if err != nil || name == "" {
		return entries, err
	}
	out := []planner.MetricEntry{}
	for _, e := range entries {
		if strings.EqualFold(e.Name, name) {
			out = append(out, e)
		}
	}
	return out, nil
}

func setIfNotEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	var out []string
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
