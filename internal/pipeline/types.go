package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	"github.com/cascadekit/cascade/internal/command"
)

// FileSpec is one YAML file containing one or more templates.
type FileSpec struct {
	Templates []TemplateSpec `yaml:"templates"`
}

// TemplateSpec declares a named pipeline template in YAML.
type TemplateSpec struct {
	Name  string     `yaml:"name"`
	Steps []StepSpec `yaml:"steps"`
}

// StepSpec is one declared step. Delay is in milliseconds.
type StepSpec struct {
	Command   string            `yaml:"command"`
	Target    string            `yaml:"target"`
	Condition string            `yaml:"condition,omitempty"`
	Delay     int               `yaml:"delay,omitempty"`
	Once      bool              `yaml:"once,omitempty"`
	Data      map[string]string `yaml:"data,omitempty"`
}

// Step is one compiled pipeline step.
type Step struct {
	Command   string            `json:"command"`
	Target    string            `json:"target"`
	Condition command.Condition `json:"condition"`
	Delay     time.Duration     `json:"delay"`
	Once      bool              `json:"once,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
}

// Template is a compiled, inert step list. The engine reads a copy at
// execution time; the canonical definition lives in the Store.
type Template struct {
	Name        string `json:"name"`
	Steps       []Step `json:"steps"`
	Fingerprint string `json:"fingerprint"`
}

// Compile validates a spec and produces a fingerprinted template.
func Compile(spec TemplateSpec) (*Template, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return nil, fmt.Errorf("template has no name")
	}
	if len(spec.Steps) == 0 {
		return nil, fmt.Errorf("template %q has no steps", name)
	}

	t := &Template{Name: name, Steps: make([]Step, 0, len(spec.Steps))}
	for i, ss := range spec.Steps {
		cmd := strings.TrimSpace(ss.Command)
		if cmd == "" {
			return nil, fmt.Errorf("template %q step %d has no command", name, i)
		}
		cond, err := command.ParseCondition(ss.Condition)
		if err != nil {
			return nil, fmt.Errorf("template %q step %d: %w", name, i, err)
		}
		if ss.Delay < 0 {
			return nil, fmt.Errorf("template %q step %d has negative delay", name, i)
		}
		t.Steps = append(t.Steps, Step{
			Command:   cmd,
			Target:    strings.TrimSpace(ss.Target),
			Condition: cond,
			Delay:     time.Duration(ss.Delay) * time.Millisecond,
			Once:      ss.Once,
			Data:      ss.Data,
		})
	}
	t.Fingerprint = fingerprint(t)
	return t, nil
}

// fingerprint hashes the normalized compiled form so template identity
// survives cosmetic YAML differences.
func fingerprint(t *Template) string {
	var b strings.Builder
	b.WriteString(t.Name)
	for _, s := range t.Steps {
		fmt.Fprintf(&b, "\n%s|%s|%s|%d|%t", s.Command, s.Target, s.Condition, s.Delay.Milliseconds(), s.Once)
		if len(s.Data) > 0 {
			keys := make([]string, 0, len(s.Data))
			for k := range s.Data {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(&b, "|%s=%s", k, s.Data[k])
			}
		}
	}
	sum := blake3.Sum256([]byte(b.String()))
	return fmt.Sprintf("blake3:%x", sum)
}
