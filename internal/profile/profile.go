// Package profile loads named orchestrator argument sets from a YAML file,
// so cron entries can say `hydrarun run --profile discovery` instead of
// repeating raw flag lists in every crontab.
package profile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is a canned orchestrator invocation
type Profile struct {
	Args        []string `yaml:"args"`
	Description string   `yaml:"description,omitempty"`
}

// File is the on-disk profiles document
type File struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

// Load reads a profiles file. A missing file yields an empty set, not an
// error — profiles are optional.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{Profiles: map[string]Profile{}}, nil
		}
		return nil, fmt.Errorf("failed to read profiles %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse profiles %s: %w", path, err)
	}
	if f.Profiles == nil {
		f.Profiles = map[string]Profile{}
	}
	return &f, nil
}

// Expand returns the argument list for a named profile. Unknown names are a
// startup failure so a typoed crontab fails loudly instead of running the
// whole pipeline.
func (f *File) Expand(name string) ([]string, error) {
	p, ok := f.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown profile %q (have %d profiles)", name, len(f.Profiles))
	}
	return p.Args, nil
}

// Names returns the defined profile names (unordered)
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Profiles))
	for name := range f.Profiles {
		names = append(names, name)
	}
	return names
}
