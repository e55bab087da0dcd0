package analyzer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrame(t *testing.T) {
	t.Run("decodes a complete frame", func(t *testing.T) {
		frame := `{
			"id": "a-1",
			"message": "Building collapse on 5th street, 4 people trapped",
			"urgency_score": 42,
			"urgency_reasons": ["trapped people", "structural damage"],
			"location": ["5th street", "Springfield"],
			"location_confidence": "high",
			"needs": ["rescue", "medical"],
			"people_affected": 4,
			"matched_resources": [
				{"name": "Rescue Team 3", "type": "rescue", "eta": "12 min", "status": "available"}
			],
			"resource_log": "Rescue Team 3 is closest",
			"is_alert": true,
			"timestamp": "2024-05-01T10:00:00Z"
		}`

		alert, err := DecodeFrame([]byte(frame))
		require.NoError(t, err)

		assert.Equal(t, "a-1", alert.ID)
		require.NotNil(t, alert.UrgencyScore)
		assert.Equal(t, 42, *alert.UrgencyScore)
		assert.Equal(t, []string{"5th street", "Springfield"}, alert.Location)
		assert.Equal(t, "high", alert.LocationConfidence)
		require.NotNil(t, alert.PeopleAffected)
		assert.Equal(t, 4, *alert.PeopleAffected)
		require.Len(t, alert.MatchedResources, 1)
		assert.Equal(t, "Rescue Team 3", alert.MatchedResources[0].Name)
		assert.Equal(t, "12 min", alert.MatchedResources[0].ETA)
		assert.Equal(t, "Rescue Team 3 is closest", alert.ResourceLog)
	})

	t.Run("accepts a zero urgency score", func(t *testing.T) {
		alert, err := DecodeFrame([]byte(`{"message": "all quiet", "urgency_score": 0}`))
		require.NoError(t, err)
		assert.Equal(t, 0, *alert.UrgencyScore)
	})

	t.Run("joins a resource log sent as a list", func(t *testing.T) {
		alert, err := DecodeFrame([]byte(`{"message": "m", "urgency_score": 1, "resource_log": ["first", "second"]}`))
		require.NoError(t, err)
		assert.Equal(t, "first\nsecond", alert.ResourceLog)
	})

	t.Run("treats a null resource log as empty", func(t *testing.T) {
		alert, err := DecodeFrame([]byte(`{"message": "m", "urgency_score": 1, "resource_log": null}`))
		require.NoError(t, err)
		assert.Empty(t, alert.ResourceLog)
	})

	t.Run("accepts a numeric eta", func(t *testing.T) {
		alert, err := DecodeFrame([]byte(`{"message": "m", "urgency_score": 1, "matched_resources": [{"name": "Engine 1", "eta": 7}]}`))
		require.NoError(t, err)
		assert.Equal(t, "7", alert.MatchedResources[0].ETA)
	})

	t.Run("accepts unknown location confidence", func(t *testing.T) {
		alert, err := DecodeFrame([]byte(`{"message": "m", "urgency_score": 1, "location_confidence": "unknown"}`))
		require.NoError(t, err)
		assert.Equal(t, "unknown", alert.LocationConfidence)
	})

	invalid := []struct {
		name   string
		frame  string
		reason string
	}{
		{"not json", `not json at all`, ReasonMalformed},
		{"truncated", `{"message": "m", "urgency_score": `, ReasonMalformed},
		{"array instead of object", `[1, 2, 3]`, ReasonMalformed},
		{"score as string", `{"message": "m", "urgency_score": "high"}`, ReasonMalformed},
		{"resource log as object", `{"message": "m", "urgency_score": 1, "resource_log": {"a": 1}}`, ReasonMalformed},
		{"missing score", `{"message": "m"}`, ReasonInvalid},
		{"negative score", `{"message": "m", "urgency_score": -1}`, ReasonInvalid},
		{"negative people affected", `{"message": "m", "urgency_score": 1, "people_affected": -3}`, ReasonInvalid},
		{"bad confidence", `{"message": "m", "urgency_score": 1, "location_confidence": "certain"}`, ReasonInvalid},
		{"resource without name", `{"message": "m", "urgency_score": 1, "matched_resources": [{"type": "fire"}]}`, ReasonInvalid},
		{"missing message", `{"urgency_score": 10}`, ReasonInvalid},
		{"blank message", `{"message": "   ", "urgency_score": 10}`, ReasonInvalid},
	}

	for _, tc := range invalid {
		t.Run("rejects "+tc.name, func(t *testing.T) {
			alert, err := DecodeFrame([]byte(tc.frame))
			assert.Nil(t, alert)

			var decodeErr *DecodeError
			require.ErrorAs(t, err, &decodeErr)
			assert.Equal(t, tc.reason, decodeErr.Reason)
		})
	}
}

func TestDecodeAnalysis(t *testing.T) {
	t.Run("message is optional", func(t *testing.T) {
		alert, err := DecodeAnalysis([]byte(`{"urgency_score": 18, "location": ["Harbor"], "needs": ["shelter"]}`))
		require.NoError(t, err)
		assert.Empty(t, alert.Message)
		assert.Equal(t, 18, *alert.UrgencyScore)
	})

	t.Run("score is still required", func(t *testing.T) {
		_, err := DecodeAnalysis([]byte(`{"location": ["Harbor"]}`))

		var decodeErr *DecodeError
		require.ErrorAs(t, err, &decodeErr)
		assert.Equal(t, ReasonInvalid, decodeErr.Reason)
	})
}

func TestErrorResponse_Message(t *testing.T) {
	t.Run("string detail", func(t *testing.T) {
		var resp ErrorResponse
		require.NoError(t, json.Unmarshal([]byte(`{"detail": "Model not loaded"}`), &resp))
		assert.Equal(t, "Model not loaded", resp.Message())
	})

	t.Run("validation detail list", func(t *testing.T) {
		var resp ErrorResponse
		body := `{"detail": [{"loc": ["body", "text"], "msg": "field required", "type": "value_error.missing"}, {"msg": "too short"}]}`
		require.NoError(t, json.Unmarshal([]byte(body), &resp))
		assert.Equal(t, "field required; too short", resp.Message())
	})

	t.Run("missing detail", func(t *testing.T) {
		var resp ErrorResponse
		require.NoError(t, json.Unmarshal([]byte(`{"error": "boom"}`), &resp))
		assert.Empty(t, resp.Message())
	})
}
