// Package schedule decodes capacity tables and event batches from YAML
// documents, and builds Allocators from them.
//
// A capacity document looks like:
//
//	kinds: [projectors, mikes, chairs, markers]
//	labelPrefix: CSE
//	sessions:
//	  - name: morning
//	    capacity: {projectors: 5, mikes: 5, chairs: 5, markers: 5}
//	  - name: afternoon
//	    capacity: {projectors: 5, mikes: 5, chairs: 5, markers: 5}
//
// Kinds and labelPrefix may be omitted, in which case allocator defaults apply.
package schedule

import (
	"bytes"
	"io"
	"io/ioutil"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.eventsched.dev/core/allocator"
	"gopkg.in/yaml.v2"
)

// Config is a capacity table of sessions, and the resource kinds they hold.
type Config struct {
	Kinds       allocator.Kinds         `yaml:"kinds,omitempty"`
	LabelPrefix string                  `yaml:"labelPrefix,omitempty"`
	Sessions    []allocator.SessionSpec `yaml:"sessions"`
}

// DefaultConfig returns morning, afternoon, and evening sessions, each
// holding five of every default resource kind.
func DefaultConfig() Config {
	var cfg = Config{Kinds: allocator.DefaultKinds()}

	for _, name := range []string{"morning", "afternoon", "evening"} {
		var capacity = make(allocator.Vector)
		for _, k := range cfg.Kinds {
			capacity[k] = 5
		}
		cfg.Sessions = append(cfg.Sessions, allocator.SessionSpec{Name: name, Capacity: capacity})
	}
	return cfg
}

// Build an Allocator of the Config. |opts| are applied after those derived
// from the Config, and take precedence.
func (cfg Config) Build(opts ...allocator.Option) (*allocator.Allocator, error) {
	var all []allocator.Option

	if len(cfg.Kinds) != 0 {
		all = append(all, allocator.WithKinds(cfg.Kinds...))
	}
	if cfg.LabelPrefix != "" {
		all = append(all, allocator.WithLabelPrefix(cfg.LabelPrefix))
	}
	return allocator.New(cfg.Sessions, append(all, opts...)...)
}

// DecodeConfig decodes a YAML Config from |r|. Unknown fields are an error.
func DecodeConfig(r io.Reader) (Config, error) {
	var cfg Config

	if b, err := ioutil.ReadAll(r); err != nil {
		return Config{}, errors.WithMessage(err, "reading capacity config")
	} else if err = yaml.UnmarshalStrict(b, &cfg); err != nil {
		return Config{}, errors.WithMessage(err, "decoding capacity config")
	}
	return cfg, nil
}

// LoadConfig loads a Config from |path| of the Fs. If |path| is empty,
// DefaultConfig is returned.
func LoadConfig(fs afero.Fs, path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	var b, err = afero.ReadFile(fs, path)
	if err != nil {
		return Config{}, errors.WithMessagef(err, "loading capacity config %s", path)
	}
	cfg, err := DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return Config{}, errors.WithMessage(err, path)
	}
	return cfg, nil
}

// Stdin is read by LoadEvents when its path is "-".
var Stdin io.Reader = os.Stdin
