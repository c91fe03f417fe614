package declaration

import (
	"fmt"
	"os"

	"github.com/ghodss/yaml"
)

// Load reads and validates a declaration file. Files may be YAML or JSON;
// the YAML decoder accepts both.
func Load(path string) (*Declaration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read declaration: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates declaration bytes.
func Parse(data []byte) (*Declaration, error) {
	var decl Declaration
	if err := yaml.Unmarshal(data, &decl); err != nil {
		return nil, fmt.Errorf("parse declaration: %w", err)
	}
	if err := decl.Validate(); err != nil {
		return nil, fmt.Errorf("invalid declaration: %w", err)
	}
	return &decl, nil
}
