package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	payload := map[string]interface{}{"trigger": "SUBMIT"}
	evt := NewEvent(TypeStatusChanged, "pending_review", payload)

	require.NotEmpty(t, evt.ID)
	assert.Equal(t, evt.ID, evt.CorrelationID)
	assert.Equal(t, TypeStatusChanged, evt.Type)
	assert.Equal(t, "pending_review", evt.Status)
	assert.False(t, evt.Timestamp.IsZero())

	payload["trigger"] = "mutated"
	assert.Equal(t, "SUBMIT", evt.GetPayloadString("trigger"), "payload is copied on creation")
}

func TestNewEvent_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		evt := NewEvent(TypeRecordUpdated, "draft", nil)
		assert.False(t, seen[evt.ID], "duplicate event id %s", evt.ID)
		seen[evt.ID] = true
	}
}

func TestNewEventWithCorrelation(t *testing.T) {
	parent := NewEvent(TypeValidationCompleted, "requires_review", nil)
	child := NewEventWithCorrelation(TypeStatusChanged, "requires_review", nil, parent.CorrelationID)

	assert.NotEqual(t, parent.ID, child.ID)
	assert.Equal(t, parent.CorrelationID, child.CorrelationID)
}

func TestEvent_WithPayloadIsImmutable(t *testing.T) {
	original := NewEvent(TypeFindingBypassed, "requires_review", map[string]interface{}{"field": "email"})
	updated := original.WithPayload("count", 2)

	assert.Equal(t, int64(0), original.GetPayloadInt("count"))
	assert.Equal(t, int64(2), updated.GetPayloadInt("count"))
	assert.Equal(t, "email", updated.GetPayloadString("field"))
	assert.Equal(t, original.ID, updated.ID)
}

func TestEvent_PayloadAccessors(t *testing.T) {
	evt := NewEvent(TypeValidationCompleted, "validated", map[string]interface{}{
		"valid":    true,
		"findings": 3,
		"ratio":    float64(7),
		"wrong":    "x",
	})

	assert.True(t, evt.GetPayloadBool("valid"))
	assert.Equal(t, int64(3), evt.GetPayloadInt("findings"))
	assert.Equal(t, int64(7), evt.GetPayloadInt("ratio"))
	assert.Equal(t, int64(0), evt.GetPayloadInt("wrong"))
	assert.False(t, evt.GetPayloadBool("missing"))
	assert.Equal(t, "", evt.GetPayloadString("valid"))
}

func TestType_IsValid(t *testing.T) {
	assert.True(t, TypeDocumentGenerated.IsValid())
	assert.False(t, Type("instance.created").IsValid())
	assert.Equal(t, "record.cleared", TypeRecordCleared.String())
}
