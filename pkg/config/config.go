// Package config loads the optional nativehost.yaml project file and
// resolves it against defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
	"gopkg.in/yaml.v3"
)

// FileName is the project configuration file name.
const FileName = "nativehost.yaml"

// Config represents the optional nativehost.yaml configuration.
type Config struct {
	App      AppConfig               `yaml:"app"`
	Instance InstanceConfig          `yaml:"instance"`
	Logging  LoggingConfig           `yaml:"logging"`
	Modules  map[string]ModuleConfig `yaml:"modules,omitempty"`
	Storage  StorageConfig           `yaml:"storage"`
}

// AppConfig contains application metadata.
type AppConfig struct {
	Name string `yaml:"name,omitempty"`
	ID   string `yaml:"id,omitempty"`
}

// InstanceConfig contains runtime instance settings.
type InstanceConfig struct {
	IDPrefix       string `yaml:"idPrefix,omitempty"`
	EnableDebugger bool   `yaml:"enableDebugger,omitempty"`
	TickInterval   string `yaml:"tickInterval,omitempty"`
}

// LoggingConfig selects the zap configuration.
type LoggingConfig struct {
	Level       string `yaml:"level,omitempty"`
	Development bool   `yaml:"development,omitempty"`
}

// ModuleConfig declares a capability served over a platform channel.
// Methods maps each method name to its calling convention.
type ModuleConfig struct {
	Channel string            `yaml:"channel,omitempty"`
	Methods map[string]string `yaml:"methods"`
}

// StorageConfig configures the AsyncStorage capability.
type StorageConfig struct {
	Path string `yaml:"path,omitempty"`
}

// Resolved contains resolved configuration values.
type Resolved struct {
	Root           string
	ModulePath     string
	AppName        string
	AppID          string
	IDPrefix       string
	EnableDebugger bool
	TickInterval   time.Duration
	LogLevel       zapcore.Level
	Development    bool
	Modules        []Module
	StoragePath    string
}

// Module is a resolved channel capability declaration.
type Module struct {
	Name    string
	Channel string
	Methods []Method
}

// Method is one declared capability method.
type Method struct {
	Name       string
	Convention string
}

// LoadOptional reads nativehost.yaml if present.
func LoadOptional(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	}
	return Parse(data)
}

// Parse decodes a nativehost.yaml document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
	}
	return &cfg, nil
}

// Resolve loads nativehost.yaml (if present) and resolves defaults.
func Resolve(dir string) (*Resolved, error) {
	cfg, err := LoadOptional(dir)
	if err != nil {
		return nil, err
	}
	return cfg.Resolve(dir)
}

// Resolve fills in defaults relative to the project directory dir. A go.mod
// in dir is optional and only feeds the default app name and id.
func (cfg *Config) Resolve(dir string) (*Resolved, error) {
	modPath, err := modulePath(dir)
	if err != nil {
		return nil, err
	}

	appName := strings.TrimSpace(cfg.App.Name)
	if appName == "" {
		appName = defaultAppName(modPath, dir)
	}

	appID := strings.TrimSpace(cfg.App.ID)
	if appID == "" {
		appID = defaultAppID(modPath, appName)
	}
	if err := validateAppID(appID); err != nil {
		return nil, err
	}

	prefix := strings.TrimSpace(cfg.Instance.IDPrefix)
	if prefix == "" {
		prefix = sanitizeSegment(appName, false)
	}

	var tick time.Duration
	if s := strings.TrimSpace(cfg.Instance.TickInterval); s != "" {
		tick, err = time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("instance.tickInterval: %w", err)
		}
		if tick <= 0 {
			return nil, fmt.Errorf("instance.tickInterval must be positive (got %q)", s)
		}
	}

	level := zapcore.InfoLevel
	if s := strings.TrimSpace(cfg.Logging.Level); s != "" {
		if err := level.UnmarshalText([]byte(s)); err != nil {
			return nil, fmt.Errorf("logging.level: %w", err)
		}
	}

	modules, err := resolveModules(cfg.Modules)
	if err != nil {
		return nil, err
	}

	storagePath := strings.TrimSpace(cfg.Storage.Path)
	switch {
	case storagePath == "":
		storagePath = ":memory:"
	case storagePath != ":memory:" && !filepath.IsAbs(storagePath):
		storagePath = filepath.Join(dir, storagePath)
	}

	return &Resolved{
		Root:           dir,
		ModulePath:     modPath,
		AppName:        appName,
		AppID:          appID,
		IDPrefix:       prefix,
		EnableDebugger: cfg.Instance.EnableDebugger,
		TickInterval:   tick,
		LogLevel:       level,
		Development:    cfg.Logging.Development,
		Modules:        modules,
		StoragePath:    storagePath,
	}, nil
}

// Logger builds the process logger described by the logging section.
func (r *Resolved) Logger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if r.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(r.LogLevel)
	return zc.Build()
}

func resolveModules(in map[string]ModuleConfig) ([]Module, error) {
	names := make([]string, 0, len(in))
	for name := range in {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Module, 0, len(names))
	for _, name := range names {
		mc := in[name]
		channel := strings.TrimSpace(mc.Channel)
		if channel == "" {
			channel = "nativehost/" + strings.ToLower(name)
		}
		if len(mc.Methods) == 0 {
			return nil, fmt.Errorf("modules.%s declares no methods", name)
		}
		methodNames := make([]string, 0, len(mc.Methods))
		for m := range mc.Methods {
			methodNames = append(methodNames, m)
		}
		sort.Strings(methodNames)

		m := Module{Name: name, Channel: channel}
		for _, method := range methodNames {
			conv := strings.TrimSpace(mc.Methods[method])
			switch conv {
			case "sync", "void", "async", "promise":
			default:
				return nil, fmt.Errorf("modules.%s.methods.%s: unknown calling convention %q", name, method, conv)
			}
			m.Methods = append(m.Methods, Method{Name: method, Convention: conv})
		}
		out = append(out, m)
	}
	return out, nil
}

// FindProjectRoot walks up from the current directory to the first
// directory holding nativehost.yaml or go.mod.
func FindProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		for _, marker := range []string{FileName, "go.mod"} {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s or go.mod found", FileName)
		}
		dir = parent
	}
}

func modulePath(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read go.mod: %w", err)
	}
	return modfile.ModulePath(data), nil
}

func defaultAppName(modulePath, dir string) string {
	base := filepath.Base(dir)
	if modulePath != "" {
		modName, _, ok := module.SplitPathVersion(modulePath)
		if ok {
			parts := strings.Split(modName, "/")
			base = parts[len(parts)-1]
		}
	}
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "nativehost_app"
	}
	return base
}

func defaultAppID(modulePath, appName string) string {
	parts := strings.Split(modulePath, "/")
	if len(parts) < 2 || !strings.Contains(parts[0], ".") {
		return fmt.Sprintf("com.example.%s", sanitizeSegment(appName, true))
	}

	host := strings.Split(parts[0], ".")
	for i, j := 0, len(host)-1; i < j; i, j = i+1, j-1 {
		host[i], host[j] = host[j], host[i]
	}

	segments := host
	for _, p := range parts[1:] {
		if p != "" {
			segments = append(segments, p)
		}
	}
	for i, segment := range segments {
		segments[i] = sanitizeSegment(segment, i > 0)
	}
	return strings.Join(segments, ".")
}

func sanitizeSegment(segment string, allowLeadingDigit bool) string {
	var out []rune
	for _, r := range strings.TrimSpace(segment) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		}
	}
	if len(out) == 0 {
		out = []rune("app")
	}
	if !allowLeadingDigit && out[0] >= '0' && out[0] <= '9' {
		out = append([]rune{'a'}, out...)
	}
	return string(out)
}

func validateAppID(appID string) error {
	if !strings.Contains(appID, ".") {
		return fmt.Errorf("app.id must contain at least one '.' (got %q)", appID)
	}
	for _, segment := range strings.Split(appID, ".") {
		if segment == "" {
			return fmt.Errorf("app.id contains an empty segment (%q)", appID)
		}
		if segment[0] >= '0' && segment[0] <= '9' {
			return fmt.Errorf("app.id segments cannot start with a digit (%q)", appID)
		}
		for _, r := range segment {
			if !(r == '_' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
				return fmt.Errorf("app.id contains invalid character %q in %q", r, appID)
			}
		}
	}
	return nil
}
