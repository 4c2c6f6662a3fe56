// Package simulate runs scripted escrow scenarios against an in-process engine.
package simulate

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Step actions.
const (
	ActionCreateRound = "create_round"
	ActionDeposit     = "deposit"
)

// ExpectOK is the expectation for a step that must succeed.
const ExpectOK = "ok"

// vaultPrefix names a round vault in balance checks, e.g. "vault:A".
const vaultPrefix = "vault:"

//go:embed scenarios/*.yaml
var builtins embed.FS

// Scenario is a scripted run. Participants are referred to by name and mapped
// to deterministic identities.
type Scenario struct {
	Name      string            `yaml:"name"`
	Pool      string            `yaml:"pool"`
	Authority string            `yaml:"authority"`
	MinBid    uint64            `yaml:"min_bid"`
	Funding   map[string]uint64 `yaml:"funding"`
	Steps     []Step            `yaml:"steps"`
}

// Step is one operation with its expected outcome.
type Step struct {
	Action   string `yaml:"action"`
	Round    string `yaml:"round"`
	Signer   string `yaml:"signer"`
	Capacity uint8  `yaml:"capacity"`
	Bid      uint64 `yaml:"bid"`
	Odd      uint8  `yaml:"odd"`

	// Expect is "ok" or an error code such as FinishedGame.
	Expect string `yaml:"expect"`

	// Optional checks run after the step.
	Finished  *bool             `yaml:"finished"`
	Deposited *uint8            `yaml:"deposited"`
	Balances  map[string]uint64 `yaml:"balances"`
}

// Parse decodes a YAML scenario and fills defaults.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}
	if err := sc.normalize(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Load reads a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	return Parse(data)
}

// Builtin returns the embedded scenario called name.
func Builtin(name string) (*Scenario, error) {
	data, err := builtins.ReadFile("scenarios/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScenario, name)
	}
	return Parse(data)
}

// BuiltinNames lists the embedded scenarios.
func BuiltinNames() []string {
	entries, _ := builtins.ReadDir("scenarios")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	return names
}

func (sc *Scenario) normalize() error {
	if sc.Pool == "" {
		sc.Pool = "pool"
	}
	if sc.Authority == "" {
		sc.Authority = "authority"
	}
	if len(sc.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidScenario)
	}
	for i := range sc.Steps {
		st := &sc.Steps[i]
		if st.Expect == "" {
			st.Expect = ExpectOK
		}
		switch st.Action {
		case ActionCreateRound, ActionDeposit:
		default:
			return fmt.Errorf("%w: step %d: unknown action %q", ErrInvalidScenario, i+1, st.Action)
		}
		if st.Round == "" {
			return fmt.Errorf("%w: step %d: missing round", ErrInvalidScenario, i+1)
		}
		if st.Signer == "" {
			return fmt.Errorf("%w: step %d: missing signer", ErrInvalidScenario, i+1)
		}
	}
	return nil
}
