package transform

import (
	"errors"
	"testing"

	"github.com/BartekS5/docshift/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRequiredListsEveryMissingField(t *testing.T) {
	_, err := ValidateRequired{Fields: []string{"name", "email", "age"}}.
		Apply(models.Document{"age": 3, "email": nil}, Context{Table: "users", OriginalKey: "c"})
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"email", "name"}, verr.Missing)
	assert.Equal(t, "validation failed for users/c: missing required fields: email, name", err.Error())
}

func TestValidateRequiredPasses(t *testing.T) {
	out, err := ValidateRequired{Fields: []string{"name"}}.Apply(models.Document{"name": "Al"}, Context{})
	require.NoError(t, err)
	assert.Equal(t, "Al", out["name"])
}

func TestValidateSchema(t *testing.T) {
	min, max := 0.0, 150.0
	v, err := NewValidateSchema(models.Schema{
		"name":  {Required: true, Type: "string", MinLength: 2, MaxLength: 5},
		"email": {Pattern: `^[^@]+@[^@]+$`},
		"role":  {Enum: []interface{}{"admin", "user"}},
		"age":   {Type: "integer", Min: &min, Max: &max},
		"nick":  {Required: true},
	})
	require.NoError(t, err)

	_, err = v.Apply(models.Document{
		"name":  "Bartholomew",
		"email": "nope",
		"role":  "root",
		"age":   200.5,
	}, Context{Table: "users", OriginalKey: "x"})
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"nick"}, verr.Missing)
	assert.Len(t, verr.Violations, 5)
	msg := err.Error()
	assert.Contains(t, msg, "name: length 11 exceeds maxLength 5")
	assert.Contains(t, msg, "email: does not match pattern")
	assert.Contains(t, msg, "role: value root not in enum")
	assert.Contains(t, msg, "age: expected integer, got number")
	assert.Contains(t, msg, "age: 200.5 above max 150")

	ok, err := v.Apply(models.Document{"name": "Al", "nick": "al", "age": 30, "role": "user", "email": "a@b"}, Context{})
	require.NoError(t, err)
	assert.Equal(t, "Al", ok["name"])
}

func TestValidateSchemaRejectsBadPattern(t *testing.T) {
	_, err := NewValidateSchema(models.Schema{"x": {Pattern: "("}})
	assert.Error(t, err)
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, "string", TypeOf("a"))
	assert.Equal(t, "number", TypeOf(3))
	assert.Equal(t, "boolean", TypeOf(true))
	assert.Equal(t, "null", TypeOf(nil))
	assert.Equal(t, "array", TypeOf([]interface{}{1}))
	assert.Equal(t, "array", TypeOf([]string{"a"}))
	assert.Equal(t, "object", TypeOf(models.Document{}))
}
