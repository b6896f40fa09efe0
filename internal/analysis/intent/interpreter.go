package intent

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	intentModel "github.com/zhouzirui/z-mentor/backend/internal/model/intent"
	"github.com/zhouzirui/z-mentor/backend/internal/model/planner"
)

type handlerFunc func(i *Interpreter, action string, data map[string]any) (intentModel.Payload, error)

var handlers = map[string]handlerFunc{
	"create_task":       (*Interpreter).createTask,
	"update_task":       (*Interpreter).updateTask,
	"delete_task":       (*Interpreter).deleteTask,
	"create_goal":       (*Interpreter).createGoal,
	"update_goal":       (*Interpreter).updateGoal,
	"create_habit":      (*Interpreter).createHabit,
	"complete_habit":    (*Interpreter).completeHabit,
	"navigate":          (*Interpreter).navigate,
	"create_reflection": (*Interpreter).createReflection,
	"display_message":   (*Interpreter).displayMessage,
	"track_metric":      (*Interpreter).trackMetric,
}

// Interpreter maps system intents onto typed application actions. It holds no state
// beyond its logger and clock.
type Interpreter struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewInterpreter(logger *zap.Logger) *Interpreter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interpreter{logger: logger, now: time.Now}
}

// NormalizeActionName folds `Create-Task`, `CREATE_TASK` and `create task` onto `create_task`.
func NormalizeActionName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer("-", "_", " ", "_").Replace(name)
}

// Known reports whether name maps onto a recognized action.
func Known(name string) bool {
	_, ok := handlers[NormalizeActionName(name)]
	return ok
}

// Interpret validates one intent. An unrecognized action yields (nil, nil) and a warning;
// a missing required field yields a *ValidationError.
func (i *Interpreter) Interpret(in intentModel.SystemIntent) (*intentModel.Action, error) {
	name := NormalizeActionName(in.Action)
	handle, ok := handlers[name]
	if !ok {
		i.logger.Warn("ignoring unrecognized system intent", zap.String("action", in.Action))
		return nil, nil
	}

	data := in.Data
	if data == nil {
		data = map[string]any{}
	}

	payload, err := handle(i, name, data)
	if err != nil {
		i.logger.Warn("rejected system intent", zap.String("action", name), zap.Error(err))
		return nil, err
	}
	action := intentModel.NewAction(payload)
	return &action, nil
}

// InterpretAll interprets every intent, collecting actions and per-intent errors.
func (i *Interpreter) InterpretAll(intents []intentModel.SystemIntent) ([]intentModel.Action, []error) {
	var (
		actions []intentModel.Action
		errs    []error
	)
	for _, in := range intents {
		action, err := i.Interpret(in)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if action != nil {
			actions = append(actions, *action)
		}
	}
	return actions, errs
}

func (i *Interpreter) createTask(action string, data map[string]any) (intentModel.Payload, error) {
	title, err := requireString(action, data, "title")
	if err != nil {
		return nil, err
	}
	return intentModel.CreateTaskPayload{
		Title:       title,
		Description: stringField(data, "description"),
		Priority:    oneOf(stringField(data, "priority"), planner.PriorityMedium, planner.PriorityHigh, planner.PriorityMedium, planner.PriorityLow),
		DueDate:     stringField(data, "dueDate", "due_date"),
		Category:    stringField(data, "category"),
		GoalID:      stringField(data, "goalId", "goal_id"),
	}, nil
}

func (i *Interpreter) updateTask(action string, data map[string]any) (intentModel.Payload, error) {
	id, err := requireString(action, data, "id")
	if err != nil {
		return nil, err
	}
	p := intentModel.UpdateTaskPayload{
		ID:          id,
		Title:       stringField(data, "title"),
		Description: stringField(data, "description"),
		DueDate:     stringField(data, "dueDate", "due_date"),
		Completed:   boolField(data, "completed"),
	}
	if _, ok := data["priority"]; ok {
		p.Priority = oneOf(stringField(data, "priority"), planner.PriorityMedium, planner.PriorityHigh, planner.PriorityMedium, planner.PriorityLow)
	}
	if _, ok := data["status"]; ok {
		p.Status = oneOf(stringField(data, "status"), planner.TaskPending, planner.TaskPending, planner.TaskInProgress, planner.TaskCompleted)
	}
	if p.Status == "" && p.Completed != nil {
		if *p.Completed {
			p.Status = planner.TaskCompleted
		} else {
			p.Status = planner.TaskPending
		}
	}
	return p, nil
}

func (i *Interpreter) deleteTask(action string, data map[string]any) (intentModel.Payload, error) {
	id, err := requireString(action, data, "id")
	if err != nil {
		return nil, err
	}
	return intentModel.DeleteTaskPayload{ID: id}, nil
}

func (i *Interpreter) createGoal(action string, data map[string]any) (intentModel.Payload, error) {
	title, err := requireString(action, data, "title")
	if err != nil {
		return nil, err
	}
	return intentModel.CreateGoalPayload{
		Title:       title,
		Description: stringField(data, "description"),
		TargetDate:  stringField(data, "targetDate", "target_date", "deadline"),
		Category:    stringField(data, "category"),
		Milestones:  stringList(data, "milestones"),
	}, nil
}

func (i *Interpreter) updateGoal(action string, data map[string]any) (intentModel.Payload, error) {
	id, err := requireString(action, data, "id")
	if err != nil {
		return nil, err
	}
	p := intentModel.UpdateGoalPayload{
		ID:          id,
		Title:       stringField(data, "title"),
		Description: stringField(data, "description"),
	}
	if _, ok := data["status"]; ok {
		p.Status = oneOf(stringField(data, "status"), planner.GoalActive, planner.GoalActive, planner.GoalCompleted, planner.GoalPaused, planner.GoalAbandoned)
	}
	if progress, ok := numberField(data, "progress"); ok {
		progress = math.Max(0, math.Min(100, progress))
		p.Progress = &progress
	}
	return p, nil
}

func (i *Interpreter) createHabit(action string, data map[string]any) (intentModel.Payload, error) {
	name, err := requireString(action, data, "name", "title")
	if err != nil {
		return nil, err
	}
	return intentModel.CreateHabitPayload{
		Name:        name,
		Description: stringField(data, "description"),
		Frequency:   oneOf(stringField(data, "frequency"), planner.FrequencyDaily, planner.FrequencyDaily, planner.FrequencyWeekly, planner.FrequencyMonthly),
		Category:    stringField(data, "category"),
	}, nil
}

func (i *Interpreter) completeHabit(action string, data map[string]any) (intentModel.Payload, error) {
	id, err := requireString(action, data, "id", "habitId", "habit_id")
	if err != nil {
		return nil, err
	}
	date := i.now().UTC()
	if raw := stringField(data, "date"); raw != "" {
		if parsed, ok := parseDate(raw); ok {
			date = parsed
		}
	}
	return intentModel.CompleteHabitPayload{ID: id, Date: date}, nil
}

func (i *Interpreter) navigate(action string, data map[string]any) (intentModel.Payload, error) {
	screen, err := requireString(action, data, "screen", "route")
	if err != nil {
		return nil, err
	}
	params, _ := data["params"].(map[string]any)
	return intentModel.NavigatePayload{Screen: screen, Params: params}, nil
}

func (i *Interpreter) createReflection(action string, data map[string]any) (intentModel.Payload, error) {
	content, err := requireString(action, data, "content", "text")
	if err != nil {
		return nil, err
	}
	return intentModel.CreateReflectionPayload{
		Content: content,
		Mood:    stringField(data, "mood"),
		Tags:    stringList(data, "tags"),
	}, nil
}

func (i *Interpreter) displayMessage(action string, data map[string]any) (intentModel.Payload, error) {
	message, err := requireString(action, data, "message", "text")
	if err != nil {
		return nil, err
	}
	return intentModel.DisplayMessagePayload{
		Message: message,
		Kind:    oneOf(stringField(data, "type", "kind"), "info", "info", "success", "warning", "error"),
	}, nil
}

func (i *Interpreter) trackMetric(action string, data map[string]any) (intentModel.Payload, error) {
	name, err := requireString(action, data, "name")
	if err != nil {
		return nil, err
	}
	raw, ok := data["value"]
	if !ok || raw == nil {
		return nil, &intentModel.ValidationError{Action: action, Field: "value"}
	}
	value, ok := numberField(data, "value")
	if !ok {
		return nil, &intentModel.ValidationError{Action: action, Field: "value", Reason: "must be numeric"}
	}
	return intentModel.TrackMetricPayload{
		Name:  name,
		Value: value,
		Unit:  stringField(data, "unit"),
	}, nil
}

// requireString returns the first non-empty value among keys; the error names keys[0].
func requireString(action string, data map[string]any, keys ...string) (string, error) {
	if v := stringField(data, keys...); v != "" {
		return v, nil
	}
	return "", &intentModel.ValidationError{Action: action, Field: keys[0]}
}

func stringField(data map[string]any, keys ...string) string {
	for _, key := range keys {
		raw, ok := data[key]
		if !ok || raw == nil {
			continue
		}
		var s string
		switch v := raw.(type) {
		case string:
			s = v
		case float64:
			s = strconv.FormatFloat(v, 'f', -1, 64)
		case json.Number:
			s = v.String()
		case bool:
			s = strconv.FormatBool(v)
		default:
			s = fmt.Sprint(v)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

func numberField(data map[string]any, key string) (float64, bool) {
	switch v := data[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func boolField(data map[string]any, key string) *bool {
	switch v := data[key].(type) {
	case bool:
		return &v
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil
		}
		return &b
	default:
		return nil
	}
}

func stringList(data map[string]any, key string) []string {
	var out []string
	switch v := data[key].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		for _, part := range strings.Split(v, ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// oneOf lower-cases value and returns it when allowed, otherwise fallback.
func oneOf(value, fallback string, allowed ...string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, a := range allowed {
		if value == a {
			return value
		}
	}
	return fallback
}

func parseDate(raw string) (time.Time, bool) {
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
