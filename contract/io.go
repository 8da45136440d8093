package contract

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a contract YAML with strict field checking and validates it.
// Every failure wraps ErrArtifactLoad; order mismatches also wrap ErrContractMismatch.
func Load(path string) (*Contract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading contract: %v", ErrArtifactLoad, err)
	}
	return Parse(data)
}

// Parse decodes and validates a contract document.
func Parse(data []byte) (*Contract, error) {
	var c Contract
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&c); err != nil {
		return nil, fmt.Errorf("%w: parsing contract: %v", ErrArtifactLoad, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtifactLoad, err)
	}
	return &c, nil
}

// Save writes the contract as YAML.
func (c *Contract) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling contract: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing contract: %w", err)
	}
	return nil
}
