package prompts

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/lessongen/internal/platform/logger"
)

const promptsEnv = "PROMPTS_YAML"

//go:embed prompts.yaml
var promptsFS embed.FS

type Template struct {
	Name     PromptName
	Version  int
	Mode     Mode
	System   func(Input) (string, error)
	User     func(Input) (string, error)
	Validate Validator
}

// Registry holds compiled templates. It is immutable after construction.
type Registry struct {
	templates map[PromptName]Template
}

var builtinValidators = map[PromptName][]Validator{
	PromptLessonCode: {RequireLessonJSON},
	PromptLessonPlan: {RequireOutline},
}

type yamlPromptFile struct {
	Prompts []Spec `yaml:"prompts"`
}

// NewRegistry compiles specs; a duplicate name is an error.
func NewRegistry(specs ...Spec) (*Registry, error) {
	r := &Registry{templates: make(map[PromptName]Template, len(specs))}
	for _, s := range specs {
		if _, dup := r.templates[s.Name]; dup {
			return nil, fmt.Errorf("duplicate prompt: %s", s.Name)
		}
		if len(s.Validators) == 0 {
			s.Validators = builtinValidators[s.Name]
		}
		t, err := MakeTemplate(s)
		if err != nil {
			return nil, err
		}
		r.templates[t.Name] = t
	}
	return r, nil
}

// ParseRegistry builds a registry from prompts YAML.
func ParseRegistry(data []byte) (*Registry, error) {
	var file yamlPromptFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse prompts yaml: %w", err)
	}
	if len(file.Prompts) == 0 {
		return nil, fmt.Errorf("prompts yaml has no prompts")
	}
	return NewRegistry(file.Prompts...)
}

// Default returns the embedded registry.
func Default() (*Registry, error) {
	data, err := promptsFS.ReadFile("prompts.yaml")
	if err != nil {
		return nil, err
	}
	return ParseRegistry(data)
}

// Load reads PROMPTS_YAML when set and falls back to the embedded file.
func Load(log *logger.Logger) (*Registry, error) {
	path := strings.TrimSpace(os.Getenv(promptsEnv))
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", promptsEnv, err)
	}
	reg, err := ParseRegistry(data)
	if err != nil {
		return nil, err
	}
	log.Info("Loaded prompt overrides", "path", path, "count", len(reg.templates))
	return reg, nil
}

// Build renders a Prompt from a registered template.
func (r *Registry) Build(name PromptName, in Input) (Prompt, error) {
	t, ok := r.templates[name]
	if !ok {
		return Prompt{}, fmt.Errorf("unknown prompt: %s", string(name))
	}
	if t.System == nil || t.User == nil {
		return Prompt{}, fmt.Errorf("prompt %s missing system/user renderers", string(name))
	}
	if t.Validate != nil {
		if err := t.Validate(in); err != nil {
			return Prompt{}, fmt.Errorf("%s: %w", string(name), err)
		}
	}
	system, err := t.System(in)
	if err != nil {
		return Prompt{}, fmt.Errorf("%s system render: %w", string(name), err)
	}
	user, err := t.User(in)
	if err != nil {
		return Prompt{}, fmt.Errorf("%s user render: %w", string(name), err)
	}
	return Prompt{
		Name:    string(t.Name),
		Version: t.Version,
		Mode:    t.Mode,
		System:  system,
		User:    user,
	}, nil
}

func (r *Registry) Has(name PromptName) bool {
	_, ok := r.templates[name]
	return ok
}
