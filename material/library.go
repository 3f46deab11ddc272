package material

import (
	"fmt"
	"os"
	"sync"

	"github.com/ghodss/yaml"
	log "github.com/sirupsen/logrus"

	"furnace/model"
)

// Library stores named materials. Registration may happen at startup or at
// runtime (material definition files); lookups are read-mostly and safe for
// concurrent use by running engines.
type Library struct {
	mu        sync.RWMutex
	materials map[string]*Material
}

// NewLibrary returns an empty library.
func NewLibrary() *Library {
	return &Library{materials: make(map[string]*Material)}
}

// Default returns a library preloaded with the built-in materials.
func Default() *Library {
	lib := NewLibrary()
	for _, m := range builtins() {
		if err := lib.Register(m); err != nil {
			// built-ins are constructed in-package; a failure here is a bug
			panic(err)
		}
	}
	return lib
}

// Register adds a material; re-registering a name is an error because
// running engines may hold a reference to the previous entry.
func (l *Library) Register(m *Material) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.materials[m.Name]; ok {
		return model.NewConfigError("material.name", "%q is already registered", m.Name)
	}
	l.materials[m.Name] = m
	return nil
}

// Get looks a material up by name.
func (l *Library) Get(name string) (*Material, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.materials[name]
	if !ok {
		return nil, &model.ConfigError{
			Field:   "material.name",
			Reason:  fmt.Sprintf("%q is not registered", name),
			Wrapped: model.ErrUnknownMaterial,
		}
	}
	return m, nil
}

// Names returns the registered material names, for the UI picker.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.materials))
	for name := range l.materials {
		names = append(names, name)
	}
	return names
}

// PropertySpec is one property in a material definition file: exactly one
// of the three kinds must be set.
type PropertySpec struct {
	Constant *float64     `json:"constant,omitempty"`
	Table    [][2]float64 `json:"table,omitempty"`
	Formula  string       `json:"formula,omitempty"`
}

func (s PropertySpec) build(field string) (Property, error) {
	set := 0
	if s.Constant != nil {
		set++
	}
	if len(s.Table) > 0 {
		set++
	}
	if s.Formula != "" {
		set++
	}
	if set != 1 {
		return nil, model.NewConfigError(field, "exactly one of constant, table or formula must be set")
	}
	switch {
	case s.Constant != nil:
		if !isFinite(*s.Constant) || *s.Constant <= 0 {
			return nil, model.NewConfigError(field, "constant must be a positive finite number, got %g", *s.Constant)
		}
		return Constant(*s.Constant), nil
	case len(s.Table) > 0:
		return NewTable(s.Table)
	default:
		return ParseFormula(s.Formula)
	}
}

// Spec is a material definition as it appears in a YAML file.
type Spec struct {
	Name       string       `json:"name"`
	Density    float64      `json:"density"`
	Emissivity float64      `json:"emissivity"`
	TMin       float64      `json:"tmin,omitempty"`
	TMax       float64      `json:"tmax,omitempty"`
	K          PropertySpec `json:"k"`
	Cp         PropertySpec `json:"cp"`
}

// FromSpec builds a material from a parsed definition. Missing validity
// limits default to [1K, 5000K].
func FromSpec(spec Spec) (*Material, error) {
	k, err := spec.K.build("material.k")
	if err != nil {
		return nil, err
	}
	cp, err := spec.Cp.build("material.cp")
	if err != nil {
		return nil, err
	}
	tmin, tmax := spec.TMin, spec.TMax
	if tmin == 0 && tmax == 0 {
		tmin, tmax = 1, 5000
	}
	return New(spec.Name, spec.Density, spec.Emissivity, tmin, tmax, k, cp)
}

// LoadFile registers every material defined in a YAML file.
func (l *Library) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var specs []Spec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return model.NewConfigError("material.file", "%s: %v", path, err)
	}
	for _, spec := range specs {
		m, err := FromSpec(spec)
		if err != nil {
			return err
		}
		if err := l.Register(m); err != nil {
			return err
		}
		log.WithField("material", m.Name).Info("material registered from file")
	}
	return nil
}

// builtins are the stock materials shipped with the engine. Carbon Steel's
// round-number properties are the reference case for the validation suite.
func builtins() []*Material {
	mustTable := func(points [][2]float64) Property {
		t, err := NewTable(points)
		if err != nil {
			panic(err)
		}
		return t
	}
	mustFormula := func(src string) Property {
		f, err := ParseFormula(src)
		if err != nil {
			panic(err)
		}
		return f
	}
	mk := func(m *Material, err error) *Material {
		if err != nil {
			panic(err)
		}
		return m
	}

	return []*Material{
		mk(New("Carbon Steel", 7850, 0.80, 200, 1800,
			Constant(50), Constant(500))),
		mk(New("Aluminum", 2700, 0.10, 200, 900,
			Constant(237), Constant(900))),
		mk(New("Concrete", 2300, 0.90, 200, 1500,
			Constant(1.4), Constant(880))),
		mk(New("Firebrick", 2100, 0.75, 200, 2000,
			mustTable([][2]float64{{300, 1.0}, {800, 1.4}, {1400, 1.8}}),
			Constant(960))),
		mk(New("Stainless Steel", 7900, 0.35, 200, 1700,
			mustFormula("9.2 + 0.0175*T"), Constant(500))),
	}
}
