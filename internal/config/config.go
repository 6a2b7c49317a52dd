package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// 中文说明：
// 配置加载分三步：先按 include 展开成有序文件列表（深度优先、
// 后写覆盖先写），再合并解码，最后只给"用户没写"的键补默认值。
// 补默认值依赖 markProvidedKeys 记下的键集合，显式写零值不会被覆盖。

// Load 读取并校验配置；path 指向入口文件。
func Load(path string) (*Config, error) {
	files, err := expandIncludes(path)
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	for _, file := range files {
		if err := mergeFileInto(v, file); err != nil {
			return nil, fmt.Errorf("reading config file failed (%s): %w", file, err)
		}
	}

	var cfg Config
	decodeHook := func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}

	provided := make(keySet)
	markProvidedKeys("", v.AllSettings(), provided)
	cfg.applyDefaults(provided)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func mergeFileInto(v *viper.Viper, path string) error {
	one := viper.New()
	one.SetConfigFile(path)
	if err := one.ReadInConfig(); err != nil {
		return err
	}
	return v.MergeConfigMap(one.AllSettings())
}

// expandIncludes 返回入口文件及其 include 闭包，被包含者排在前面。
func expandIncludes(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	walker := includeWalker{
		done:   make(map[string]bool),
		onPath: make(map[string]bool),
	}
	files, err := walker.walk(abs)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return []string{abs}, nil
	}
	return files, nil
}

type includeWalker struct {
	done   map[string]bool
	onPath map[string]bool
}

func (w *includeWalker) walk(path string) ([]string, error) {
	path = filepath.Clean(path)
	if w.onPath[path] {
		return nil, fmt.Errorf("include cycle detected: %s", path)
	}
	if w.done[path] {
		return nil, nil
	}
	w.onPath[path] = true

	includes, err := readIncludeList(path)
	if err != nil {
		return nil, fmt.Errorf("parsing include failed (%s): %w", path, err)
	}
	dir := filepath.Dir(path)
	var ordered []string
	for _, inc := range includes {
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(dir, inc)
		}
		sub, err := w.walk(inc)
		if err != nil {
			return nil, err
		}
		ordered = append(ordered, sub...)
	}

	delete(w.onPath, path)
	w.done[path] = true
	return append(ordered, path), nil
}

func readIncludeList(path string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	raw := v.Get("include")
	if raw == nil {
		return nil, nil
	}
	var items []any
	switch val := raw.(type) {
	case []any:
		items = val
	case []string:
		for _, s := range val {
			items = append(items, s)
		}
	default:
		return nil, fmt.Errorf("include must be a string array")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		str, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("include only supports strings")
		}
		if str = strings.TrimSpace(str); str != "" {
			out = append(out, str)
		}
	}
	return out, nil
}

// markProvidedKeys 把 settings 里出现的叶子键拍平成 a.b.c 记入 dest。
// 数组按整体算一个键，viper 的老式 map[interface{}] 键也要兼容。
func markProvidedKeys(prefix string, node any, dest keySet) {
	if dest == nil {
		return
	}
	switch val := node.(type) {
	case map[string]any:
		for k, v := range val {
			markProvidedKeys(joinKey(prefix, k), v, dest)
		}
	case map[interface{}]interface{}:
		for k, v := range val {
			if str, ok := k.(string); ok {
				markProvidedKeys(joinKey(prefix, str), v, dest)
			}
		}
	case []any:
		if prefix != "" {
			dest.mark(prefix)
		}
		for _, item := range val {
			markProvidedKeys(prefix, item, dest)
		}
	default:
		if prefix != "" {
			dest.mark(prefix)
		}
	}
}

func joinKey(prefix, key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return prefix
	}
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
