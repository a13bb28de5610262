package models

import (
	"bytes"
	_ "embed"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// UnknownLabel is shown for model identifiers the catalog does not know.
const UnknownLabel = "Unknown"

// Model pairs a human-facing label with the backend's model identifier.
type Model struct {
	Label string `yaml:"label"`
	ID    string `yaml:"id"`
}

// Catalog is the fixed label→identifier mapping. It is not mutated after load.
type Catalog struct {
	models       []Model
	byLabel      map[string]Model
	byID         map[string]Model
	defaultLabel string
}

type catalogFile struct {
	Default string  `yaml:"default"`
	Models  []Model `yaml:"models"`
}

//go:embed "catalog.yaml"
var defaultCatalogYAML []byte

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Load(bytes.NewReader(defaultCatalogYAML))
	if err != nil {
		panic(errors.Wrap(err, "embedded model catalog is invalid"))
	}
	return c
}

func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not open model catalog")
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)
	c, err := Load(f)
	if err != nil {
		return nil, errors.Wrapf(err, "could not load model catalog %s", path)
	}
	return c, nil
}

func Load(r io.Reader) (*Catalog, error) {
	var cf catalogFile
	if err := yaml.NewDecoder(r).Decode(&cf); err != nil {
		return nil, errors.Wrap(err, "could not decode model catalog")
	}
	return New(cf.Default, cf.Models...)
}

// New builds a catalog. Labels and identifiers must both be unique. An empty
// defaultLabel selects the first model.
func New(defaultLabel string, models ...Model) (*Catalog, error) {
	if len(models) == 0 {
		return nil, errors.New("model catalog is empty")
	}
	ret := &Catalog{
		models:  make([]Model, 0, len(models)),
		byLabel: make(map[string]Model, len(models)),
		byID:    make(map[string]Model, len(models)),
	}
	for _, m := range models {
		if m.Label == "" || m.ID == "" {
			return nil, errors.Errorf("model %+v needs both a label and an id", m)
		}
		if _, ok := ret.byLabel[m.Label]; ok {
			return nil, errors.Errorf("duplicate model label %q", m.Label)
		}
		if _, ok := ret.byID[m.ID]; ok {
			return nil, errors.Errorf("duplicate model id %q", m.ID)
		}
		ret.models = append(ret.models, m)
		ret.byLabel[m.Label] = m
		ret.byID[m.ID] = m
	}

	if defaultLabel == "" {
		defaultLabel = models[0].Label
	}
	if _, ok := ret.byLabel[defaultLabel]; !ok {
		return nil, errors.Errorf("default model %q is not in the catalog", defaultLabel)
	}
	ret.defaultLabel = defaultLabel

	return ret, nil
}

func (c *Catalog) Models() []Model {
	return append([]Model(nil), c.models...)
}

func (c *Catalog) DefaultLabel() string {
	return c.defaultLabel
}

// IDOf maps a label to its model identifier.
func (c *Catalog) IDOf(label string) (string, bool) {
	m, ok := c.byLabel[label]
	return m.ID, ok
}

// LabelOf maps a model identifier back to its label.
func (c *Catalog) LabelOf(id string) (string, bool) {
	m, ok := c.byID[id]
	return m.Label, ok
}

// Resolve accepts either a label or a raw identifier and returns the identifier.
func (c *Catalog) Resolve(labelOrID string) (string, bool) {
	if id, ok := c.IDOf(labelOrID); ok {
		return id, true
	}
	if _, ok := c.byID[labelOrID]; ok {
		return labelOrID, true
	}
	return "", false
}
