package catalog

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Default builds the catalog embedded in the binary. It covers the duty
// authorities and exclusion records in force for US imports as of the
// catalog's version date.
func Default() (*Catalog, error) {
	return Parse(defaultsYAML)
}

// Parse decodes a YAML catalog document and builds the validated catalog.
func Parse(data []byte) (*Catalog, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "catalog: parse document")
	}
	return New(doc)
}

// LoadFile reads a catalog document from disk. An empty path loads the
// embedded default catalog.
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read %s", path)
	}
	return Parse(data)
}
