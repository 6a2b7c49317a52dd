package profile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"scalpel/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// 中文说明：
// 提示词档案：不同标的/时段可挂不同的推理目标与提示补充。
// 文件可热更新，监听器在重载后收到最新快照。

// Profile 描述单个提示词档案。
type Profile struct {
	ID          string   `mapstructure:"id" yaml:"id"`
	Description string   `mapstructure:"description" yaml:"description"`
	Goal        string   `mapstructure:"goal" yaml:"goal"`
	PromptHint  string   `mapstructure:"prompt_hint" yaml:"prompt_hint"`
	Tools       []string `mapstructure:"tools" yaml:"tools"`
	MaxSteps    int      `mapstructure:"max_steps" yaml:"max_steps"`
	Version     int      `mapstructure:"version" yaml:"version"`
}

// FileConfig 映射 profiles。
type FileConfig struct {
	Profiles map[string]Profile `mapstructure:"profiles" yaml:"profiles"`
}

// Snapshot 公开的档案快照。
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Profiles map[string]Profile
}

// ChangeListener 在 registry 重载时触发。
type ChangeListener func(Snapshot)

// Registry 管理提示词档案。
type Registry struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// NewRegistry 读取档案文件并监听更新。
func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("profile registry requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read profile config failed: %w", err)
	}
	r := &Registry{path: path, v: v}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("profile reload failed: %v", err)
			return
		}
		r.notifyListeners()
	})
	v.WatchConfig()
	return r, nil
}

// OnChange 注册重载回调。
func (r *Registry) OnChange(fn ChangeListener) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// Snapshot 返回当前档案集。
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

// Profile 返回指定 ID 的档案。
func (r *Registry) Profile(id string) (Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.snapshot.Profiles[strings.TrimSpace(id)]
	return p, ok
}

// IDs 返回按名称排序的全部档案 ID。
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.snapshot.Profiles))
	for id := range r.snapshot.Profiles {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) reload() error {
	cfg, err := readProfileFile(r.path)
	if err != nil {
		return err
	}
	profiles := make(map[string]Profile)
	for name, p := range cfg.Profiles {
		norm := normalizeProfile(name, p)
		profiles[norm.ID] = norm
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Profiles: profiles,
	}
	r.mu.Unlock()
	logger.Infof("Profile registry loaded %d profiles from %s", len(profiles), filepath.Base(r.path))
	return nil
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := cloneSnapshot(r.snapshot)
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		if fn == nil {
			continue
		}
		go func(cb ChangeListener) {
			defer safeRecover("profile listener")
			cb(snap)
		}(fn)
	}
}

func normalizeProfile(name string, p Profile) Profile {
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		p.ID = strings.TrimSpace(name)
	}
	if p.Version <= 0 {
		p.Version = 1
	}
	p.Description = strings.TrimSpace(p.Description)
	p.Goal = strings.TrimSpace(p.Goal)
	tools := make([]string, 0, len(p.Tools))
	for _, t := range p.Tools {
		if t = strings.TrimSpace(t); t != "" {
			tools = append(tools, t)
		}
	}
	p.Tools = tools
	return p
}

// ToolAllowed 判断工具是否在档案的白名单内（空白名单放行全部）。
func (p Profile) ToolAllowed(name string) bool {
	if len(p.Tools) == 0 {
		return true
	}
	for _, t := range p.Tools {
		if strings.EqualFold(t, strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := Snapshot{
		Version:  src.Version,
		LoadedAt: src.LoadedAt,
		Profiles: make(map[string]Profile, len(src.Profiles)),
	}
	for id, p := range src.Profiles {
		dst.Profiles[id] = p
	}
	return dst
}

func safeRecover(tag string) {
	if r := recover(); r != nil {
		logger.Errorf("%s panic: %v", tag, r)
	}
}

func readProfileFile(path string) (FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read profile config failed: %w", err)
	}
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse profile config failed: %w", err)
	}
	return cfg, nil
}
