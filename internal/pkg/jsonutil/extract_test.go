package jsonutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractObjectBare(t *testing.T) {
	out, ok := ExtractObject(`{"a":1}`)
	assert.True(t, ok)
	assert.Equal(t, `{"a":1}`, out)
}

func TestExtractObjectFromProse(t *testing.T) {
	out, ok := ExtractObject(`I think we should call the tool: {"tool":"get_ltp","arguments":{"symbol":"NIFTY"}} and then decide.`)
	assert.True(t, ok)
	assert.Equal(t, `{"tool":"get_ltp","arguments":{"symbol":"NIFTY"}}`, out)
}

func TestExtractObjectFromFence(t *testing.T) {
	raw := "Here is the plan:\n```json\n{\"decision\":\"wait\"}\n```\ndone"
	out, ok := ExtractObject(raw)
	assert.True(t, ok)
	assert.Equal(t, `{"decision":"wait"}`, out)
}

func TestExtractObjectNestedBraces(t *testing.T) {
	out, ok := ExtractObject(`prefix {"a":{"b":{"c":2}},"d":3} suffix`)
	assert.True(t, ok)
	assert.Equal(t, `{"a":{"b":{"c":2}},"d":3}`, out)
}

func TestExtractObjectBracesInsideStrings(t *testing.T) {
	out, ok := ExtractObject(`{"note":"look at } and { carefully","x":1}`)
	assert.True(t, ok)
	assert.Equal(t, `{"note":"look at } and { carefully","x":1}`, out)
}

func TestExtractObjectEscapedQuotes(t *testing.T) {
	out, ok := ExtractObject(`{"quote":"he said \"buy\"","x":1}`)
	assert.True(t, ok)
	assert.Equal(t, `{"quote":"he said \"buy\"","x":1}`, out)
}

func TestExtractObjectUnbalanced(t *testing.T) {
	_, ok := ExtractObject(`{"a":1`)
	assert.False(t, ok)
}

func TestExtractObjectNone(t *testing.T) {
	_, ok := ExtractObject("no json here")
	assert.False(t, ok)

	_, ok = ExtractObject("")
	assert.False(t, ok)
}
