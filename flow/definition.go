package flow

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mohitkumar/intake/model"
	"gopkg.in/yaml.v3"
)

//go:embed definitions/*.yaml
var builtin embed.FS

const ONBOARDING string = "onboarding"

type Branch struct {
	Expression string            `yaml:"expression" json:"expression"`
	Cases      map[string]string `yaml:"cases" json:"cases"`
	Default    string            `yaml:"default,omitempty" json:"default,omitempty"`
}

type StepDef struct {
	Id          string          `yaml:"id" json:"id"`
	Kind        model.InputKind `yaml:"kind" json:"kind"`
	Validator   string          `yaml:"validator,omitempty" json:"validator,omitempty"`
	Approves    bool            `yaml:"approves,omitempty" json:"approves,omitempty"`
	Confirmable bool            `yaml:"confirmable,omitempty" json:"confirmable,omitempty"`
	Terminal    bool            `yaml:"terminal,omitempty" json:"terminal,omitempty"`
	Next        string          `yaml:"next,omitempty" json:"next,omitempty"`
	Back        []string        `yaml:"back,omitempty" json:"back,omitempty"`
	BackLocked  bool            `yaml:"back_locked,omitempty" json:"backLocked,omitempty"`
	Branch      *Branch         `yaml:"branch,omitempty" json:"branch,omitempty"`
	Prompt      map[string]any  `yaml:"prompt,omitempty" json:"prompt,omitempty"`
}

type Definition struct {
	Name        string    `yaml:"name" json:"name"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	Steps       []StepDef `yaml:"steps" json:"steps"`
}

// ParseDefinitionYAML decodes and validates a workflow definition.
func ParseDefinitionYAML(data []byte) (*Flow, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse workflow definition: %w", err)
	}
	return New(def)
}

// LoadBuiltin returns the definitions compiled into the binary.
func LoadBuiltin() ([]*Flow, error) {
	entries, err := builtin.ReadDir("definitions")
	if err != nil {
		return nil, err
	}
	var flows []*Flow
	for _, e := range entries {
		data, err := builtin.ReadFile("definitions/" + e.Name())
		if err != nil {
			return nil, err
		}
		f, err := ParseDefinitionYAML(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		flows = append(flows, f)
	}
	return flows, nil
}

// LoadDir reads every .yaml or .yml file in dir.
func LoadDir(dir string) ([]*Flow, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read definitions dir: %w", err)
	}
	var flows []*Flow
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		f, err := ParseDefinitionYAML(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		flows = append(flows, f)
	}
	return flows, nil
}
