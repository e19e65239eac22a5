// Package script reads step files and runs them in order against one page.
// A step file is YAML (JSON is accepted too):
//
//	url: https://example.com/survey
//	steps:
//	  - action: tap
//	    description: 点击"开始答题"
//	  - action: input
//	    description: 姓名
//	    value: 张三
//	  - action: select
//	    description: 学历
//	    option: 本科
//	    wait: 500ms
package script

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/v0xg/formpilot/internal/intent"
)

// Script is one step file
type Script struct {
	Name  string `yaml:"name,omitempty"`
	URL   string `yaml:"url"`
	Steps []Step `yaml:"steps"`
}

// Step is one natural-language action
type Step struct {
	Action      string `yaml:"action"`
	Description string `yaml:"description"`
	// Value is the text to enter; for select it is an alias of Option.
	Value  string `yaml:"value,omitempty"`
	Option string `yaml:"option,omitempty"`
	// Mode is "bottom" to scroll to the page end.
	Mode    string        `yaml:"mode,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
	// Wait pauses after the step.
	Wait time.Duration `yaml:"wait,omitempty"`
}

// Parse decodes a YAML or JSON step file
func Parse(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse step file: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads and parses the step file at path
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read step file: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = path
	}
	return s, nil
}

// Validate checks every step can be turned into an intent
func (s *Script) Validate() error {
	if len(s.Steps) == 0 {
		return errors.New("step file has no steps")
	}
	var errs []error
	for i, st := range s.Steps {
		if _, err := st.Intent(); err != nil {
			errs = append(errs, fmt.Errorf("step %d: %w", i+1, err))
		}
	}
	return errors.Join(errs...)
}

// Intent classifies the step
func (st Step) Intent() (intent.Intent, error) {
	kind, err := intent.ParseKind(st.Action)
	if err != nil {
		return intent.Intent{}, err
	}
	var opts []intent.Option
	switch kind {
	case intent.KindInput:
		opts = append(opts, intent.WithValue(st.Value))
	case intent.KindSelect:
		option := st.Option
		if option == "" {
			option = st.Value
		}
		if strings.TrimSpace(option) == "" {
			return intent.Intent{}, errors.New("select needs an option")
		}
		opts = append(opts, intent.WithValue(option))
	case intent.KindScroll:
		switch strings.ToLower(st.Mode) {
		case "", "target":
		case "bottom":
			opts = append(opts, intent.WithMode(intent.ScrollToBottom))
		default:
			return intent.Intent{}, fmt.Errorf("unknown scroll mode %q", st.Mode)
		}
	}
	if kind != intent.KindScroll && kind != intent.KindWaitFor && strings.TrimSpace(st.Description) == "" {
		return intent.Intent{}, fmt.Errorf("%s needs a description", kind)
	}
	if st.Timeout > 0 {
		opts = append(opts, intent.WithTimeout(st.Timeout))
	}
	return intent.New(kind, st.Description, opts...), nil
}

func (st Step) String() string {
	if st.Description == "" {
		return st.Action
	}
	return fmt.Sprintf("%s %q", st.Action, st.Description)
}
