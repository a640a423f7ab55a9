package layout

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
)

//go:embed layouts
var embedded embed.FS

// ErrUnknownModel is returned by Lookup when no layout matches a model.
var ErrUnknownModel = errors.New("layout: unknown model")

const (
	physicalFile = "physical.json"
	metaFile     = "meta.json"
	ledsFile     = "leds.json"
)

// Capabilities lists the lighting features and layer count of a model.
type Capabilities struct {
	DisplayName   string `json:"display_name" yaml:"display_name"`
	Layers        int    `json:"num_layers" yaml:"num_layers"`
	HasBrightness bool   `json:"has_brightness" yaml:"has_brightness"`
	HasColor      bool   `json:"has_color" yaml:"has_color"`
	HasMode       bool   `json:"has_mode" yaml:"has_mode"`
	PerKeyColor   bool   `json:"per_key_color" yaml:"per_key_color"`
}

// Layout is the full static description of one keyboard model.
type Layout struct {
	Model        string
	Physical     *Physical
	Capabilities Capabilities
	// Leds maps a physical key name to the LED indexes under that key.
	Leds map[string][]uint8
}

// source holds the undecoded files of one model. Decoding happens on every
// Lookup so a malformed file only fails the boards that use it.
type source struct {
	model    string
	physical []byte
	meta     []byte
	leds     []byte
}

// Repository finds the layout files for a model id.
type Repository struct {
	mu      sync.RWMutex
	sources map[string]*source
	aliases map[string]string
}

// NewRepository returns a repository preloaded with the embedded models.
func NewRepository() (*Repository, error) {
	r := NewEmptyRepository()
	if err := r.loadFS(embedded, "layouts"); err != nil {
		return nil, fmt.Errorf("layout: load embedded layouts: %w", err)
	}
	return r, nil
}

// NewEmptyRepository returns a repository with no models.
func NewEmptyRepository() *Repository {
	return &Repository{
		sources: make(map[string]*source),
		aliases: make(map[string]string),
	}
}

// LoadDir overlays models found under root. Each model is a directory holding
// physical.json and optionally meta.json and leds.json; its id is the
// directory path relative to root, e.g. "system76/launch_1".
func (r *Repository) LoadDir(root string) error {
	if _, err := os.Stat(root); err != nil {
		return fmt.Errorf("layout: %w", err)
	}
	return r.loadFS(os.DirFS(root), ".")
}

// Add registers the raw files of a model. meta and leds may be nil.
func (r *Repository) Add(model string, physical, meta, leds []byte) {
	src := &source{model: model, physical: physical, meta: meta, leds: leds}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[model] = src
	r.aliases[strings.ToLower(model)] = model
	if name := displayName(meta); name != "" {
		r.aliases[strings.ToLower(name)] = model
	}
}

func (r *Repository) loadFS(fsys fs.FS, root string) error {
	return fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || d.Name() != physicalFile {
			return nil
		}
		dir := path.Dir(p)
		model := dir
		if root != "." {
			model = strings.TrimPrefix(dir, root+"/")
		}
		if model == "." || model == root {
			return fmt.Errorf("layout: %s is not inside a model directory", p)
		}

		physical, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("layout: read %s: %w", p, err)
		}
		meta, err := readOptional(fsys, path.Join(dir, metaFile))
		if err != nil {
			return err
		}
		leds, err := readOptional(fsys, path.Join(dir, ledsFile))
		if err != nil {
			return err
		}
		r.Add(model, physical, meta, leds)
		return nil
	})
}

// Lookup parses the layout for a model id or display name, matched without
// regard to case.
func (r *Repository) Lookup(model string) (*Layout, error) {
	r.mu.RLock()
	id, ok := r.aliases[strings.ToLower(model)]
	src := r.sources[id]
	r.mu.RUnlock()
	if !ok || src == nil {
		return nil, fmt.Errorf("%w %q", ErrUnknownModel, model)
	}
	return src.decode()
}

// Models returns the registered model ids, sorted.
func (r *Repository) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	models := make([]string, 0, len(r.sources))
	for m := range r.sources {
		models = append(models, m)
	}
	sort.Strings(models)
	return models
}

func (s *source) decode() (*Layout, error) {
	physical, err := ParsePhysical(s.physical)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", s.model, err)
	}

	caps := Capabilities{Layers: 1}
	if s.meta != nil {
		if err := json.Unmarshal(s.meta, &caps); err != nil {
			return nil, fmt.Errorf("model %s: %w", s.model, parseErrorf(err, "invalid %s", metaFile))
		}
		if caps.Layers < 1 {
			return nil, fmt.Errorf("model %s: %w", s.model, parseErrorf(nil, "num_layers must be positive"))
		}
	}
	if caps.DisplayName == "" {
		caps.DisplayName = physical.Meta.Name
	}

	leds := make(map[string][]uint8)
	if s.leds != nil {
		if err := json.Unmarshal(s.leds, &leds); err != nil {
			return nil, fmt.Errorf("model %s: %w", s.model, parseErrorf(err, "invalid %s", ledsFile))
		}
	}

	return &Layout{
		Model:        s.model,
		Physical:     physical,
		Capabilities: caps,
		Leds:         leds,
	}, nil
}

func readOptional(fsys fs.FS, name string) ([]byte, error) {
	data, err := fs.ReadFile(fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("layout: read %s: %w", name, err)
	}
	return data, nil
}

// displayName pulls display_name out of a meta file for alias lookup. Errors
// are left for decode to report.
func displayName(meta []byte) string {
	if meta == nil {
		return ""
	}
	var caps Capabilities
	if err := json.Unmarshal(meta, &caps); err != nil {
		return ""
	}
	return caps.DisplayName
}
