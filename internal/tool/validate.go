package tool

import (
	"encoding/json"
	"fmt"
)

// 中文说明：
// 参数校验分两层：先做精确的必填/类型检查（错误信息返回给模型，
// 便于它修正参数后重试），再用预编译的 jsonschema 兜底。

func (d *Definition) validateArgs(args map[string]any) error {
	if args == nil {
		args = map[string]any{}
	}
	for name, spec := range d.Params {
		raw, ok := args[name]
		if !ok {
			if spec.Required {
				return fmt.Errorf("invalid arguments: missing required parameter %q", name)
			}
			continue
		}
		if !typeMatches(spec.Type, raw) {
			return fmt.Errorf("invalid arguments: parameter %q must be %s", name, spec.Type)
		}
	}
	if d.compiled != nil {
		// schema 验证要求 JSON 解码后的通用类型，规整一遍
		normalized, err := normalizeForSchema(args)
		if err != nil {
			return fmt.Errorf("invalid arguments: %v", err)
		}
		if err := d.compiled.Validate(normalized); err != nil {
			return fmt.Errorf("invalid arguments: %v", err)
		}
	}
	return nil
}

func typeMatches(t ParamType, v any) bool {
	switch t {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeInteger:
		switch n := v.(type) {
		case int, int32, int64:
			return true
		case float64:
			return n == float64(int64(n))
		case json.Number:
			_, err := n.Int64()
			return err == nil
		default:
			return false
		}
	case TypeNumber:
		switch v.(type) {
		case int, int32, int64, float32, float64, json.Number:
			return true
		default:
			return false
		}
	case TypeArray:
		switch v.(type) {
		case []any, []string, []float64:
			return true
		default:
			return false
		}
	case TypeObject:
		_, ok := v.(map[string]any)
		return ok
	default:
		return false
	}
}

func normalizeForSchema(args map[string]any) (any, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
