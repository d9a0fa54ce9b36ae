// Package tutorial holds the onboarding walkthrough definition.
package tutorial

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/cvitapilot/cvitapilot/internal/models"
)

//go:embed steps.yaml
var stepsYAML []byte

type definition struct {
	Steps []models.TutorialStep `yaml:"steps"`
}

// Parse decodes a walkthrough definition and checks step ids are unique.
func Parse(b []byte) ([]models.TutorialStep, error) {
	var d definition
	if err := yaml.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("tutorial: %w", err)
	}
	if len(d.Steps) == 0 {
		return nil, errors.New("tutorial: no steps defined")
	}
	seen := make(map[string]struct{}, len(d.Steps))
	for i, s := range d.Steps {
		if s.ID == "" || s.Title == "" {
			return nil, fmt.Errorf("tutorial: step %d needs id and title", i)
		}
		if _, dup := seen[s.ID]; dup {
			return nil, fmt.Errorf("tutorial: duplicate step id %q", s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return d.Steps, nil
}

// Steps returns the bundled walkthrough.
func Steps() []models.TutorialStep {
	steps, err := Parse(stepsYAML)
	if err != nil {
		panic(err)
	}
	return steps
}
