package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Provider kinds
const (
	KindOpenAI = "openai"
	KindGemini = "gemini"
)

// ServiceConfig describes one chat backend shown as a response panel
type ServiceConfig struct {
	Name        string  `yaml:"-"`
	DisplayName string  `yaml:"display_name"`
	ResponseKey string  `yaml:"response_key"`
	Kind        string  `yaml:"kind"`
	BaseURL     string  `yaml:"base_url"`
	FreeModel   string  `yaml:"free_model"`
	PaidModel   string  `yaml:"paid_model"`
	InputPer1K  float64 `yaml:"input_per_1k"`
	OutputPer1K float64 `yaml:"output_per_1k"`
}

// Services is the ordered service catalog
type Services struct {
	order []string
	byKey map[string]ServiceConfig
}

type servicesFile struct {
	Services map[string]serviceEntry `yaml:"services"`
}

// serviceEntry keeps prices as pointers so an absent price keeps the default
type serviceEntry struct {
	DisplayName string   `yaml:"display_name"`
	ResponseKey string   `yaml:"response_key"`
	Kind        string   `yaml:"kind"`
	BaseURL     string   `yaml:"base_url"`
	FreeModel   string   `yaml:"free_model"`
	PaidModel   string   `yaml:"paid_model"`
	InputPer1K  *float64 `yaml:"input_per_1k"`
	OutputPer1K *float64 `yaml:"output_per_1k"`
}

// dispatch order of the panels
var serviceOrder = []string{"openai", "gemini", "grok"}

// DefaultServices returns the built-in catalog
func DefaultServices() Services {
	return newServices(map[string]ServiceConfig{
		"openai": {
			DisplayName: "OpenAI",
			ResponseKey: "chatgpt",
			Kind:        KindOpenAI,
			FreeModel:   "gpt-3.5-turbo",
			PaidModel:   "gpt-4",
			InputPer1K:  0.0005,
			OutputPer1K: 0.0015,
		},
		"gemini": {
			DisplayName: "Gemini",
			ResponseKey: "gemini",
			Kind:        KindGemini,
			BaseURL:     "https://generativelanguage.googleapis.com/v1beta",
			FreeModel:   "gemini-pro",
		},
		"grok": {
			DisplayName: "Grok",
			ResponseKey: "grok",
			Kind:        KindOpenAI,
			BaseURL:     "https://api.x.ai/v1",
			FreeModel:   "grok-1",
			PaidModel:   "grok-2",
			InputPer1K:  0.005,
			OutputPer1K: 0.015,
		},
	})
}

func newServices(m map[string]ServiceConfig) Services {
	s := Services{byKey: make(map[string]ServiceConfig, len(m))}
	for _, name := range serviceOrder {
		svc, ok := m[name]
		if !ok {
			continue
		}
		svc.Name = name
		s.order = append(s.order, name)
		s.byKey[name] = svc
	}
	return s
}

// LoadServices reads a YAML catalog over the defaults. An empty path
// returns the defaults.
func LoadServices(path string) (Services, error) {
	defaults := DefaultServices()
	if path == "" {
		return defaults, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Services{}, fmt.Errorf("failed to read services file: %w", err)
	}
	return ParseServices(data)
}

// ParseServices merges YAML service definitions onto the defaults
func ParseServices(data []byte) (Services, error) {
	var file servicesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Services{}, fmt.Errorf("failed to parse services file: %w", err)
	}

	merged := make(map[string]ServiceConfig)
	defaults := DefaultServices()
	for _, name := range defaults.Names() {
		merged[name], _ = defaults.Get(name)
	}

	for name, override := range file.Services {
		base, ok := merged[name]
		if !ok {
			return Services{}, fmt.Errorf("unknown service %q", name)
		}
		if (override.InputPer1K != nil && *override.InputPer1K < 0) ||
			(override.OutputPer1K != nil && *override.OutputPer1K < 0) {
			return Services{}, fmt.Errorf("service %q: prices must not be negative", name)
		}
		merged[name] = mergeService(base, override)
	}

	seen := make(map[string]string, len(merged))
	for name, svc := range merged {
		if !panelKeys[svc.ResponseKey] {
			return Services{}, fmt.Errorf("service %q: unknown response key %q", name, svc.ResponseKey)
		}
		if other, dup := seen[svc.ResponseKey]; dup {
			return Services{}, fmt.Errorf("services %q and %q share response key %q", other, name, svc.ResponseKey)
		}
		seen[svc.ResponseKey] = name
	}

	return newServices(merged), nil
}

// panelKeys are the response fields a chat answer has
var panelKeys = map[string]bool{"chatgpt": true, "gemini": true, "grok": true}

func mergeService(base ServiceConfig, o serviceEntry) ServiceConfig {
	if o.DisplayName != "" {
		base.DisplayName = o.DisplayName
	}
	if o.ResponseKey != "" {
		base.ResponseKey = o.ResponseKey
	}
	if o.Kind != "" {
		base.Kind = o.Kind
	}
	if o.BaseURL != "" {
		base.BaseURL = o.BaseURL
	}
	if o.FreeModel != "" {
		base.FreeModel = o.FreeModel
	}
	if o.PaidModel != "" {
		base.PaidModel = o.PaidModel
	}
	if o.InputPer1K != nil {
		base.InputPer1K = *o.InputPer1K
	}
	if o.OutputPer1K != nil {
		base.OutputPer1K = *o.OutputPer1K
	}
	if base.Kind != KindOpenAI && base.Kind != KindGemini {
		base.Kind = KindOpenAI
	}
	return base
}

// Names returns service names in dispatch order
func (s Services) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Get looks up a service by name
func (s Services) Get(name string) (ServiceConfig, bool) {
	svc, ok := s.byKey[name]
	return svc, ok
}

// ByResponseKey looks up a service by its panel key, e.g. "chatgpt"
func (s Services) ByResponseKey(key string) (ServiceConfig, bool) {
	for _, name := range s.order {
		if svc := s.byKey[name]; svc.ResponseKey == key {
			return svc, true
		}
	}
	return ServiceConfig{}, false
}

// Resolve accepts either a service name or a response key
func (s Services) Resolve(nameOrKey string) (ServiceConfig, bool) {
	if svc, ok := s.Get(nameOrKey); ok {
		return svc, true
	}
	return s.ByResponseKey(nameOrKey)
}
