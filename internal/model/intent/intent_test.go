package intent

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionJSONKeepsConcretePayload(t *testing.T) {
	in := NewAction(TrackMetricPayload{Name: "sleep", Value: 7.5, Unit: "h"})

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out Action
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestActionJSONRejectsUnknownType(t *testing.T) {
	var out Action
	err := json.Unmarshal([]byte(`{"type":"TELEPORT","payload":{}}`), &out)
	assert.ErrorContains(t, err, "TELEPORT")
}

func TestErrorsNameTheirContext(t *testing.T) {
	v := &ValidationError{Action: "create_task", Field: "title"}
	assert.Contains(t, v.Error(), "title")

	cause := errors.New("unexpected end of JSON input")
	p := &ParseError{Fragment: "<system>x: {</system>", Offset: 3, Err: cause}
	assert.ErrorIs(t, p, cause)
	assert.Contains(t, p.Error(), "offset 3")
}
