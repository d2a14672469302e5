package rules

import (
	"fmt"
	"os"

	"github.com/Borislavv/traffic-guard/pkg/degrade"
	"github.com/Borislavv/traffic-guard/pkg/flow"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// File is the yaml shape of a governance rule set.
type File struct {
	Flow    []*flow.Rule    `yaml:"flow"`
	Degrade []*degrade.Rule `yaml:"degrade"`
}

// Load reads a rule file; validation happens inside the managers on Apply.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file %s: %w", path, err)
	}
	f := &File{}
	if err = yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("unmarshal rules file %s: %w", path, err)
	}
	return f, nil
}

// Apply swaps the rule tables of both managers.
func (f *File) Apply(fm *flow.Manager, dm *degrade.Manager) {
	fm.LoadRules(f.Flow)
	dm.LoadRules(f.Degrade)
	log.Info().Msgf("[rules] applied %d flow and %d degrade rules", len(f.Flow), len(f.Degrade))
}
