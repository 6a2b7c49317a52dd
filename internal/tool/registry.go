package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"scalpel/internal/logger"
)

// 中文说明：
// 工具注册表：推理循环可调用操作的唯一目录。参数按声明的
// schema 校验；执行类工具受安全模式约束（alert 模式下固定拒绝，
// 不触碰 handler）。

// Mode 安全模式。
type Mode string

const (
	ModeAlert Mode = "alert" // 只读：执行类工具被禁用
	ModeLive  Mode = "live"  // 可执行
)

// ParamType 参数类型的封闭集合。
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeArray   ParamType = "array"
	TypeObject  ParamType = "object"
)

type ParamSpec struct {
	Type        ParamType
	Required    bool
	Description string
}

// Handler 工具实现。返回错误时由注册表包装为失败结果，不向外抛。
type Handler func(ctx context.Context, args map[string]any) (any, error)

type Definition struct {
	Name        string
	Description string
	Params      map[string]ParamSpec
	Handler     Handler
	// Execution 标记该工具会产生外部副作用（下单等），仅 live 模式可用。
	Execution bool

	compiled *jsonschema.Schema
}

// Enabled 给定模式下该工具是否可用。
func (d *Definition) Enabled(mode Mode) bool {
	return !d.Execution || mode == ModeLive
}

// Result 工具执行结果：成功携带数据，失败携带错误文本。
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Registry 单次运行持有一个实例；并发运行各自独立，不共享。
type Registry struct {
	mu    sync.RWMutex
	mode  Mode
	defs  map[string]*Definition
	order []string
}

func NewRegistry(mode Mode) *Registry {
	if mode != ModeLive {
		mode = ModeAlert
	}
	return &Registry{mode: mode, defs: make(map[string]*Definition)}
}

func (r *Registry) Mode() Mode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mode
}

// Register 注册工具并预编译参数 schema。重名注册返回错误。
func (r *Registry) Register(def Definition) error {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return fmt.Errorf("tool name is required")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool %s: handler is required", name)
	}
	for p, spec := range def.Params {
		if !validParamType(spec.Type) {
			return fmt.Errorf("tool %s: param %s has unsupported type %q", name, p, spec.Type)
		}
	}
	compiled, err := compileParamSchema(name, def.Params)
	if err != nil {
		return fmt.Errorf("tool %s: compile schema: %w", name, err)
	}
	def.Name = name
	def.compiled = compiled

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}
	r.defs[name] = &def
	r.order = append(r.order, name)
	return nil
}

// Execute 校验参数并运行工具。任何失败都以 Result 形式返回，绝不 panic。
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) Result {
	r.mu.RLock()
	def, ok := r.defs[strings.TrimSpace(name)]
	mode := r.mode
	r.mu.RUnlock()
	if !ok {
		return Result{Error: fmt.Sprintf("unknown tool: %s", name)}
	}
	if !def.Enabled(mode) {
		return Result{Error: fmt.Sprintf("tool %s is disabled in alert mode", def.Name)}
	}
	if err := def.validateArgs(args); err != nil {
		return Result{Error: err.Error()}
	}
	return runHandler(ctx, def, args)
}

func runHandler(ctx context.Context, def *Definition, args map[string]any) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Errorf("[tool] %s panicked: %v", def.Name, rec)
			res = Result{Error: fmt.Sprintf("tool %s failed: %v", def.Name, rec)}
		}
	}()
	data, err := def.Handler(ctx, args)
	if err != nil {
		return Result{Error: err.Error()}
	}
	return Result{Success: true, Data: data}
}

// Names 按注册顺序返回工具名。
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Schemas 渲染当前模式下可用工具的函数描述符（OpenAI tools 格式）。
func (r *Registry) Schemas() []map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]map[string]any, 0, len(r.order))
	for _, name := range r.order {
		def := r.defs[name]
		if !def.Enabled(r.mode) {
			continue
		}
		out = append(out, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        def.Name,
				"description": def.Description,
				"parameters":  paramSchemaDoc(def.Params),
			},
		})
	}
	return out
}

func validParamType(t ParamType) bool {
	switch t {
	case TypeString, TypeInteger, TypeNumber, TypeArray, TypeObject:
		return true
	default:
		return false
	}
}

func paramSchemaDoc(params map[string]ParamSpec) map[string]any {
	properties := make(map[string]any, len(params))
	required := make([]string, 0)
	for name, spec := range params {
		prop := map[string]any{"type": string(spec.Type)}
		if spec.Description != "" {
			prop["description"] = spec.Description
		}
		properties[name] = prop
		if spec.Required {
			required = append(required, name)
		}
	}
	doc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

func compileParamSchema(name string, params map[string]ParamSpec) (*jsonschema.Schema, error) {
	doc := paramSchemaDoc(params)
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	url := "scalpel://tools/" + name + ".json"
	if err := compiler.AddResource(url, strings.NewReader(string(raw))); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}
