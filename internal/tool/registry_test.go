package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func echoDefinition() Definition {
	return Definition{
		Name:        "echo",
		Description: "echoes the input",
		Params: map[string]ParamSpec{
			"text":  {Type: TypeString, Required: true},
			"times": {Type: TypeInteger},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return args["text"], nil
		},
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := NewRegistry(ModeAlert)
	assert.NoError(t, r.Register(echoDefinition()))
	err := r.Register(echoDefinition())
	assert.ErrorContains(t, err, "already registered")
}

func TestRegisterRejectsBadParamType(t *testing.T) {
	r := NewRegistry(ModeAlert)
	def := echoDefinition()
	def.Params["bad"] = ParamSpec{Type: ParamType("boolean")}
	assert.Error(t, r.Register(def))
}

func TestExecuteUnknownTool(t *testing.T) {
	r := NewRegistry(ModeAlert)
	res := r.Execute(context.Background(), "nope", nil)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "unknown tool")
}

func TestExecuteMissingRequired(t *testing.T) {
	r := NewRegistry(ModeAlert)
	assert.NoError(t, r.Register(echoDefinition()))
	res := r.Execute(context.Background(), "echo", map[string]any{})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, `missing required parameter "text"`)
}

func TestExecuteWrongType(t *testing.T) {
	r := NewRegistry(ModeAlert)
	assert.NoError(t, r.Register(echoDefinition()))
	res := r.Execute(context.Background(), "echo", map[string]any{"text": "hi", "times": "three"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, `parameter "times" must be integer`)
}

func TestExecuteIntegralFloatAccepted(t *testing.T) {
	// JSON 解码会把 3 变成 float64(3)，按 integer 放行
	r := NewRegistry(ModeAlert)
	assert.NoError(t, r.Register(echoDefinition()))
	res := r.Execute(context.Background(), "echo", map[string]any{"text": "hi", "times": float64(3)})
	assert.True(t, res.Success)
	assert.Equal(t, "hi", res.Data)
}

func TestExecutionToolBlockedInAlertMode(t *testing.T) {
	called := false
	def := Definition{
		Name:      "place_order",
		Execution: true,
		Params:    map[string]ParamSpec{},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			called = true
			return nil, nil
		},
	}
	r := NewRegistry(ModeAlert)
	assert.NoError(t, r.Register(def))
	res := r.Execute(context.Background(), "place_order", nil)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "disabled in alert mode")
	assert.False(t, called, "handler must not run when the mode blocks it")
}

func TestExecutionToolAllowedInLiveMode(t *testing.T) {
	def := Definition{
		Name:      "place_order",
		Execution: true,
		Params:    map[string]ParamSpec{},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return "ok", nil
		},
	}
	r := NewRegistry(ModeLive)
	assert.NoError(t, r.Register(def))
	res := r.Execute(context.Background(), "place_order", nil)
	assert.True(t, res.Success)
}

func TestExecuteHandlerErrorBecomesResult(t *testing.T) {
	def := echoDefinition()
	def.Handler = func(ctx context.Context, args map[string]any) (any, error) {
		return nil, errors.New("upstream timeout")
	}
	r := NewRegistry(ModeAlert)
	assert.NoError(t, r.Register(def))
	res := r.Execute(context.Background(), "echo", map[string]any{"text": "hi"})
	assert.False(t, res.Success)
	assert.Equal(t, "upstream timeout", res.Error)
}

func TestExecutePanicRecovered(t *testing.T) {
	def := echoDefinition()
	def.Handler = func(ctx context.Context, args map[string]any) (any, error) {
		panic("boom")
	}
	r := NewRegistry(ModeAlert)
	assert.NoError(t, r.Register(def))
	res := r.Execute(context.Background(), "echo", map[string]any{"text": "hi"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "boom")
}

func TestSchemasHideDisabledTools(t *testing.T) {
	r := NewRegistry(ModeAlert)
	assert.NoError(t, r.Register(echoDefinition()))
	assert.NoError(t, r.Register(Definition{
		Name:      "place_order",
		Execution: true,
		Params:    map[string]ParamSpec{},
		Handler:   func(ctx context.Context, args map[string]any) (any, error) { return nil, nil },
	}))
	schemas := r.Schemas()
	assert.Len(t, schemas, 1)
	fn := schemas[0]["function"].(map[string]any)
	assert.Equal(t, "echo", fn["name"])
}
