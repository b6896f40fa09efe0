package intent

import (
	"encoding/json"
	"fmt"
	"time"
)

// SystemIntent is one action request embedded by the model in its own output.
type SystemIntent struct {
	Action string         `json:"action"`
	Data   map[string]any `json:"data"`
}

// ActionType enumerates the closed set of application actions.
type ActionType string

const (
	CreateTask       ActionType = "CREATE_TASK"
	UpdateTask       ActionType = "UPDATE_TASK"
	DeleteTask       ActionType = "DELETE_TASK"
	CreateGoal       ActionType = "CREATE_GOAL"
	UpdateGoal       ActionType = "UPDATE_GOAL"
	CreateHabit      ActionType = "CREATE_HABIT"
	CompleteHabit    ActionType = "COMPLETE_HABIT"
	Navigate         ActionType = "NAVIGATE"
	CreateReflection ActionType = "CREATE_REFLECTION"
	DisplayMessage   ActionType = "DISPLAY_MESSAGE"
	TrackMetric      ActionType = "TRACK_METRIC"
)

// Payload is implemented by one struct per ActionType.
type Payload interface {
	ActionType() ActionType
}

// Action is the validated, typed result of interpreting a SystemIntent.
type Action struct {
	Type    ActionType `json:"type"`
	Payload Payload    `json:"payload"`
}

// NewAction wraps p with its own type tag.
func NewAction(p Payload) Action {
	return Action{Type: p.ActionType(), Payload: p}
}

type CreateTaskPayload struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority"`
	DueDate     string `json:"dueDate,omitempty"`
	Category    string `json:"category,omitempty"`
	GoalID      string `json:"goalId,omitempty"`
}

// UpdateTaskPayload leaves a field untouched when it is empty (or nil).
type UpdateTaskPayload struct {
	ID          string `json:"id"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Status      string `json:"status,omitempty"`
	DueDate     string `json:"dueDate,omitempty"`
	Completed   *bool  `json:"completed,omitempty"`
}

type DeleteTaskPayload struct {
	ID string `json:"id"`
}

type CreateGoalPayload struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	TargetDate  string   `json:"targetDate,omitempty"`
	Category    string   `json:"category,omitempty"`
	Milestones  []string `json:"milestones,omitempty"`
}

type UpdateGoalPayload struct {
	ID          string   `json:"id"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status,omitempty"`
	Progress    *float64 `json:"progress,omitempty"`
}

type CreateHabitPayload struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Frequency   string `json:"frequency"`
	Category    string `json:"category,omitempty"`
}

type CompleteHabitPayload struct {
	ID   string    `json:"id"`
	Date time.Time `json:"date"`
}

type NavigatePayload struct {
	Screen string         `json:"screen"`
	Params map[string]any `json:"params,omitempty"`
}

type CreateReflectionPayload struct {
	Content string   `json:"content"`
	Mood    string   `json:"mood,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

type DisplayMessagePayload struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

type TrackMetricPayload struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

func (CreateTaskPayload) ActionType() ActionType       { return CreateTask }
func (UpdateTaskPayload) ActionType() ActionType       { return UpdateTask }
func (DeleteTaskPayload) ActionType() ActionType       { return DeleteTask }
func (CreateGoalPayload) ActionType() ActionType       { return CreateGoal }
func (UpdateGoalPayload) ActionType() ActionType       { return UpdateGoal }
func (CreateHabitPayload) ActionType() ActionType      { return CreateHabit }
func (CompleteHabitPayload) ActionType() ActionType    { return CompleteHabit }
func (NavigatePayload) ActionType() ActionType         { return Navigate }
func (CreateReflectionPayload) ActionType() ActionType { return CreateReflection }
func (DisplayMessagePayload) ActionType() ActionType   { return DisplayMessage }
func (TrackMetricPayload) ActionType() ActionType      { return TrackMetric }

var payloadDecoders = map[ActionType]func([]byte) (Payload, error){
	CreateTask:       decodePayload[CreateTaskPayload],
	UpdateTask:       decodePayload[UpdateTaskPayload],
	DeleteTask:       decodePayload[DeleteTaskPayload],
	CreateGoal:       decodePayload[CreateGoalPayload],
	UpdateGoal:       decodePayload[UpdateGoalPayload],
	CreateHabit:      decodePayload[CreateHabitPayload],
	CompleteHabit:    decodePayload[CompleteHabitPayload],
	Navigate:         decodePayload[NavigatePayload],
	CreateReflection: decodePayload[CreateReflectionPayload],
	DisplayMessage:   decodePayload[DisplayMessagePayload],
	TrackMetric:      decodePayload[TrackMetricPayload],
}

func decodePayload[T Payload](data []byte) (Payload, error) {
	var p T
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return p, nil
}

// UnmarshalJSON restores the concrete payload struct selected by the type tag.
func (a *Action) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type    ActionType      `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decode, ok := payloadDecoders[raw.Type]
	if !ok {
		return fmt.Errorf("unknown action type %q", raw.Type)
	}
	payload, err := decode(raw.Payload)
	if err != nil {
		return fmt.Errorf("decode %s payload: %w", raw.Type, err)
	}
	a.Type = raw.Type
	a.Payload = payload
	return nil
}

// ValidationError reports a required field missing from an intent payload.
type ValidationError struct {
	Action string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "is required"
	}
	return fmt.Sprintf("%s: field %q %s", e.Action, e.Field, reason)
}

// ParseError reports one tagged occurrence in model output that could not be decoded.
type ParseError struct {
	Fragment string
	Offset   int
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("intent at offset %d: %v", e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
