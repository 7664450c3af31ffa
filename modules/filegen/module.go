// Package filegen answers generation requests from YAML fixtures, so the
// pipeline can run offline and deterministically.
//
// A fixture file holds one or more YAML documents. A document is a list of
// particles, a mapping with a "particles" list, or a single particle:
//
//	particles:
//	  - name: TNT
//	    color: [255, 60, 30]
//	    behavior: explodes on contact with fire
//	    action_code: |
//	      if (horizontallyAdjacent(x, y, FIRE)) { grid[i] = FIRE; }
package filegen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/specialistvlad/sandforge/internal/ctxlog"
	"github.com/specialistvlad/sandforge/internal/fsutil"
	"github.com/specialistvlad/sandforge/internal/generator"
	"github.com/specialistvlad/sandforge/internal/particle"
)

// Kind is the backend name.
const Kind = "file"

// ErrNotFound is wrapped when no fixture matches a requested name.
var ErrNotFound = errors.New("no fixture for particle")

// Module registers the backend.
type Module struct{}

// Register implements generator.Module.
func (Module) Register(b *generator.Backends) {
	b.RegisterBackend(Kind, func(ctx context.Context, opts generator.Options) (generator.Generator, error) {
		return Load(ctx, opts.Path)
	})
}

type entry struct {
	Name         string `yaml:"name"`
	Color        []int  `yaml:"color"`
	Behavior     string `yaml:"behavior"`
	Interactions string `yaml:"interactions"`
	ActionCode   string `yaml:"action_code"`
}

type document struct {
	Particles []entry `yaml:"particles"`
}

// Fixtures is a generator backed by descriptions loaded from disk.
type Fixtures struct {
	order  []string
	byName map[string]particle.Description
}

// Load reads every .yaml and .yml file at path, which may be a file or a
// directory. A later entry with the same normalized name replaces an
// earlier one.
func Load(ctx context.Context, path string) (*Fixtures, error) {
	logger := ctxlog.FromContext(ctx)
	if path == "" {
		return nil, errors.New("file generator requires a path")
	}
	files, err := fsutil.FindFiles(path, ".yaml", ".yml")
	if err != nil {
		return nil, err
	}

	f := &Fixtures{byName: make(map[string]particle.Description)}
	for _, file := range files {
		entries, err := readFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to load fixtures from %s: %w", file, err)
		}
		for k, e := range entries {
			d, err := e.description()
			if err != nil {
				return nil, fmt.Errorf("%s: particle %d: %w", file, k, err)
			}
			f.add(d)
		}
		logger.Debug("Loaded particle fixtures.", "file", file, "count", len(entries))
	}
	if len(f.order) == 0 {
		logger.Warn("No particle fixtures found.", "path", path)
	}
	return f, nil
}

// Parse builds fixtures from YAML source.
func Parse(src []byte) (*Fixtures, error) {
	entries, err := decodeAll(src)
	if err != nil {
		return nil, err
	}
	f := &Fixtures{byName: make(map[string]particle.Description)}
	for k, e := range entries {
		d, err := e.description()
		if err != nil {
			return nil, fmt.Errorf("particle %d: %w", k, err)
		}
		f.add(d)
	}
	return f, nil
}

func (f *Fixtures) add(d particle.Description) {
	if _, ok := f.byName[d.Name]; !ok {
		f.order = append(f.order, d.Name)
	}
	f.byName[d.Name] = d
}

// Descriptions returns every fixture, ordered by when its name was first
// seen.
func (f *Fixtures) Descriptions() []particle.Description {
	out := make([]particle.Description, 0, len(f.order))
	for _, name := range f.order {
		out = append(out, f.byName[name])
	}
	return out
}

// Generate implements generator.Generator.
func (f *Fixtures) Generate(ctx context.Context, name string) (particle.Description, error) {
	if err := ctx.Err(); err != nil {
		return particle.Description{}, &particle.GenerationError{Name: name, Op: "request", Err: err}
	}
	d, ok := f.byName[particle.NormalizeName(name)]
	if !ok {
		return particle.Description{}, &particle.GenerationError{Name: name, Op: "lookup", Err: ErrNotFound}
	}
	return d, nil
}

func readFile(path string) ([]entry, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decodeAll(src)
}

func decodeAll(src []byte) ([]entry, error) {
	dec := yaml.NewDecoder(bytes.NewReader(src))
	var out []entry
	for {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		entries, err := decodeNode(&node)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
}

func decodeNode(node *yaml.Node) ([]entry, error) {
	root := node
	if root.Kind == yaml.DocumentNode && len(root.Content) == 1 {
		root = root.Content[0]
	}
	switch root.Kind {
	case yaml.SequenceNode:
		var list []entry
		err := root.Decode(&list)
		return list, err
	case yaml.MappingNode:
		if hasKey(root, "particles") {
			var doc document
			err := root.Decode(&doc)
			return doc.Particles, err
		}
		var single entry
		if err := root.Decode(&single); err != nil {
			return nil, err
		}
		return []entry{single}, nil
	default:
		return nil, fmt.Errorf("line %d: expected a list or mapping of particles", root.Line)
	}
}

func hasKey(mapping *yaml.Node, key string) bool {
	for k := 0; k+1 < len(mapping.Content); k += 2 {
		if mapping.Content[k].Value == key {
			return true
		}
	}
	return false
}

func (e entry) description() (particle.Description, error) {
	color, err := particle.NewColor(e.Color...)
	if err != nil {
		return particle.Description{}, err
	}
	d := particle.Description{
		Name:         e.Name,
		Color:        color,
		Behavior:     e.Behavior,
		Interactions: e.Interactions,
		ActionCode:   e.ActionCode,
	}
	if err := d.Check(); err != nil {
		return particle.Description{}, err
	}
	return d.Normalize(), nil
}
