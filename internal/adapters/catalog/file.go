package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/SBCM-Alliance/G-Cart/internal/domain/model"
)

type fileDoc struct {
	Projects []model.Project `yaml:"projects"`
}

// LoadFile reads a YAML catalog of the form
//
//	projects:
//	  - id: 101
//	    name: ...
//	    location: ...
//	    budget: 50000000
//	    tags: [土木, 舗装]
//	    desc: ...
//	    image: 🚧
func LoadFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Static, error) {
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode yaml: %v", ErrInvalid, err)
	}
	return NewStatic(doc.Projects)
}
