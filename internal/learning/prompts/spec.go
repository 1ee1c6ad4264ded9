package prompts

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// Validator rejects inputs a prompt cannot be rendered from.
type Validator func(Input) error

// Spec is the declaration format read from prompts.yaml.
type Spec struct {
	Name    PromptName `yaml:"name"`
	Version int        `yaml:"version"`
	Mode    Mode       `yaml:"mode"`
	// These can be plain strings or go templates using {{.Field}} from Input.
	System     string      `yaml:"system"`
	User       string      `yaml:"user"`
	Validators []Validator `yaml:"-"`
}

// MakeTemplate compiles a Spec into a Template (runtime type)
func MakeTemplate(s Spec) (Template, error) {
	if strings.TrimSpace(string(s.Name)) == "" {
		return Template{}, fmt.Errorf("missing prompt name")
	}
	if s.Version <= 0 {
		return Template{}, fmt.Errorf("invalid version for %s", s.Name)
	}
	switch s.Mode {
	case "":
		s.Mode = ModeCode
	case ModeCode, ModeJSON:
	default:
		return Template{}, fmt.Errorf("unknown mode %q for %s", s.Mode, s.Name)
	}
	if strings.TrimSpace(s.User) == "" {
		return Template{}, fmt.Errorf("missing user template for %s", s.Name)
	}
	sysT, err := template.New("system").Option("missingkey=zero").Parse(s.System)
	if err != nil {
		return Template{}, fmt.Errorf("%s system template parse: %w", s.Name, err)
	}
	userT, err := template.New("user").Option("missingkey=zero").Parse(s.User)
	if err != nil {
		return Template{}, fmt.Errorf("%s user template parse: %w", s.Name, err)
	}
	render := func(t *template.Template, in Input) (string, error) {
		var b bytes.Buffer
		if err := t.Execute(&b, in); err != nil {
			return "", err
		}
		return strings.TrimSpace(b.String()), nil
	}
	tt := Template{
		Name:    s.Name,
		Version: s.Version,
		Mode:    s.Mode,
		System:  func(in Input) (string, error) { return render(sysT, in) },
		User:    func(in Input) (string, error) { return render(userT, in) },
	}
	if len(s.Validators) > 0 {
		tt.Validate = func(in Input) error {
			for _, v := range s.Validators {
				if v == nil {
					continue
				}
				if err := v(in); err != nil {
					return err
				}
			}
			return nil
		}
	}
	return tt, nil
}

func RequireOutline(in Input) error {
	if strings.TrimSpace(in.Outline) == "" {
		return fmt.Errorf("outline required")
	}
	return nil
}

func RequireLessonJSON(in Input) error {
	if strings.TrimSpace(in.LessonJSON) == "" {
		return fmt.Errorf("lesson data required")
	}
	return nil
}
