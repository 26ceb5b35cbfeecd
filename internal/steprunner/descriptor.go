package steprunner

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DescriptorFile is the unit descriptor inside each step directory.
const DescriptorFile = "step.yaml"

// Descriptor is the parsed form of step.yaml.
type Descriptor struct {
	Description string            `yaml:"description,omitempty"`
	Actions     []string          `yaml:"actions,omitempty"`
	Command     []string          `yaml:"command,omitempty"`
	Env         map[string]string `yaml:"env,omitempty"`
}

// ReadDescriptor parses the descriptor at path. Unknown fields are rejected.
func ReadDescriptor(path string) (Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, err
	}
	var desc Descriptor
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&desc); err != nil {
		return Descriptor{}, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if len(desc.Actions) == 0 && len(desc.Command) == 0 {
		return Descriptor{}, fmt.Errorf("%s declares neither actions nor command", filepath.Base(path))
	}
	for i, action := range desc.Actions {
		if strings.TrimSpace(action) == "" {
			return Descriptor{}, fmt.Errorf("action %d is empty", i+1)
		}
	}
	return desc, nil
}

// WriteDescriptor encodes desc to path, creating parent directories.
func WriteDescriptor(path string, desc Descriptor) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(desc); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
