package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRequestJSONAcceptsWellFormedRequest(t *testing.T) {
	raw := []byte(`{
		"entities": [{"id": "rover1", "type": "robot", "capabilities": ["moving"]}],
		"activities": [{"name": "move", "duration": "PT10M", "args": ["rover1"]}],
		"goals": [{"predicate": "status", "subject": "rover1"}]
	}`)
	assert.NoError(t, ValidateRequestJSON(raw))
}

func TestValidateRequestJSONRejectsMalformedJSON(t *testing.T) {
	assert.Error(t, ValidateRequestJSON([]byte(`{`)))
}

func TestValidateRequestJSONRejectsMissingRequiredField(t *testing.T) {
	assert.Error(t, ValidateRequestJSON([]byte(`{"entities": [{"type": "robot"}]}`)))
}

func TestValidateRequestJSONRejectsWrongType(t *testing.T) {
	assert.Error(t, ValidateRequestJSON([]byte(`{"activities": "not-an-array"}`)))
}
