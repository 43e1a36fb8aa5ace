package harness

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/proofdex/proofdex/internal/contract"
)

// Scenario is one scripted convergence run.
type Scenario struct {
	// Name uniquely identifies the scenario; it names the golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario exercises.
	Description string `yaml:"description,omitempty"`

	// Manifest configures the run.
	Manifest ManifestDecl `yaml:"manifest"`

	// Functions lists the parsed functions in declaration order.
	Functions []FunctionDecl `yaml:"functions"`

	// Verdicts script the checker. Rules are tried in order; the first
	// match decides the obligation. No match leaves it open.
	Verdicts []VerdictRule `yaml:"verdicts"`
}

// ManifestDecl is the scenario's project manifest.
type ManifestDecl struct {
	Project string   `yaml:"project"`
	Files   []string `yaml:"files"`
	Rounds  int      `yaml:"rounds,omitempty"`
}

// FunctionDecl declares one function: its body steps and any interface
// predicates published before the run starts.
type FunctionDecl struct {
	File      string          `yaml:"file"`
	Fn        string          `yaml:"fn"`
	Params    []string        `yaml:"params,omitempty"`
	Interface []InterfaceDecl `yaml:"interface,omitempty"`
	Body      []BodyStep      `yaml:"body,omitempty"`
}

// InterfaceDecl is one pre-published interface predicate.
type InterfaceDecl struct {
	Tag string `yaml:"tag"`
	Arg string `yaml:"arg"`
}

// BodyStep is one safety-relevant instruction. Exactly one of Deref,
// Divide, Call, or Index is set.
type BodyStep struct {
	Line   int        `yaml:"line"`
	Deref  string     `yaml:"deref,omitempty"`
	Divide string     `yaml:"divide,omitempty"`
	Call   string     `yaml:"call,omitempty"`
	Index  *IndexStep `yaml:"index,omitempty"`
}

// IndexStep is an array subscript base[index].
type IndexStep struct {
	Base  string `yaml:"base"`
	Index string `yaml:"index"`
}

// VerdictRule matches obligations and decides them. Empty fields match
// anything; Round 0 matches every round. Predicate matches as a substring
// of the rendered obligation line.
type VerdictRule struct {
	Fn          string `yaml:"fn,omitempty"`
	Kind        string `yaml:"kind,omitempty"` // "ppo" | "spo"
	Predicate   string `yaml:"predicate,omitempty"`
	Round       int    `yaml:"round,omitempty"`
	Action      string `yaml:"action"` // open | discharge | violate | dead | delegate
	Explanation string `yaml:"explanation,omitempty"`
}

var validActions = map[string]bool{
	"open": true, "discharge": true, "violate": true, "dead": true, "delegate": true,
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Manifest.Project == "" {
		return fmt.Errorf("manifest.project is required")
	}
	if len(s.Manifest.Files) == 0 {
		return fmt.Errorf("manifest.files is required")
	}
	if len(s.Functions) == 0 {
		return fmt.Errorf("at least one function is required")
	}
	for _, f := range s.Functions {
		if f.Fn == "" || f.File == "" {
			return fmt.Errorf("functions need fn and file")
		}
		for _, step := range f.Body {
			if err := validateStep(f.Fn, step); err != nil {
				return err
			}
		}
	}
	for i, v := range s.Verdicts {
		if !validActions[v.Action] {
			return fmt.Errorf("verdict %d: unknown action %q", i, v.Action)
		}
	}
	return nil
}

func validateStep(fn string, step BodyStep) error {
	n := 0
	if step.Deref != "" {
		n++
	}
	if step.Divide != "" {
		n++
	}
	if step.Call != "" {
		n++
	}
	if step.Index != nil {
		n++
	}
	if n != 1 {
		return fmt.Errorf("%s: each body step needs exactly one of deref, divide, call, index", fn)
	}
	return nil
}

// manifest builds the contract manifest for the run.
func (s *Scenario) manifest() *contract.Manifest {
	m := &contract.Manifest{
		Project:    s.Manifest.Project,
		Files:      s.Manifest.Files,
		RoundBound: s.Manifest.Rounds,
	}
	if m.RoundBound == 0 {
		m.RoundBound = contract.DefaultRoundBound
	}
	return m
}
