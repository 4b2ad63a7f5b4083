package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaSetValidate(t *testing.T) {
	set, err := NewSchemaSet()
	require.NoError(t, err)

	t.Run("valid plan request", func(t *testing.T) {
		err := set.Validate(SchemaPlanRequest, []byte(`{"schema_version":1,"session_id":"s","transcript":"open Notes","preferences":{"low_latency":false}}`))
		assert.NoError(t, err)
	})

	t.Run("collects every problem", func(t *testing.T) {
		err := set.Validate(SchemaPlanRequest, []byte(`{"schema_version":-1,"session_id":"","transcript":"x"}`))

		var failure *ValidationFailure
		require.ErrorAs(t, err, &failure)
		require.Len(t, failure.Problems, 2)
		assert.Contains(t, failure.Problems[0], "/schema_version")
		assert.Contains(t, failure.Problems[1], "/session_id")
	})

	t.Run("nested unknown field", func(t *testing.T) {
		err := set.Validate(SchemaPlanRequest, []byte(`{"session_id":"s","transcript":"x","app":{"name":"Slack","pid":3}}`))

		var failure *ValidationFailure
		require.ErrorAs(t, err, &failure)
		assert.Contains(t, failure.Problems[0], "/app")
		assert.Contains(t, failure.Problems[0], "pid")
	})

	t.Run("malformed json is not a validation failure", func(t *testing.T) {
		err := set.Validate(SchemaPlanRequest, []byte(`{"session_id":`))
		require.Error(t, err)

		var failure *ValidationFailure
		assert.NotErrorAs(t, err, &failure)
	})

	t.Run("trailing data", func(t *testing.T) {
		err := set.Validate(SchemaTelemetryEvent, []byte(`{"session_id":"s","stage":"a","status":"ok"} {}`))
		assert.ErrorContains(t, err, "trailing data")
	})

	t.Run("unknown schema", func(t *testing.T) {
		err := set.Validate("Nope", []byte(`{}`))
		assert.ErrorContains(t, err, "unknown schema")
	})
}
