// Package config loads the YAML fixtures the durastore CLI's apply command
// runs against a single object's engine, adapted from the teacher's
// cmd/warren apply.go resource format.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Backend names accepted by a fixture's spec.backend field.
const (
	BackendMemory = "memory"
	BackendBolt   = "bbolt"
)

// Fixture is a generic durastore resource, mirroring the teacher's
// WarrenResource envelope (apiVersion/kind/metadata/spec) but scoped to one
// object's storage engine instead of a cluster-wide resource.
type Fixture struct {
	APIVersion string       `yaml:"apiVersion"`
	Kind       string       `yaml:"kind"`
	Metadata   Metadata     `yaml:"metadata"`
	Spec       FixtureSpec  `yaml:"spec"`
}

// Metadata names the object the fixture targets.
type Metadata struct {
	Name string `yaml:"name"`
}

// FixtureSpec describes the backend to open and the operations to run
// against it.
type FixtureSpec struct {
	Backend     string      `yaml:"backend"`
	Path        string      `yaml:"path,omitempty"`
	Operations  []Operation `yaml:"operations,omitempty"`
	Transaction []Operation `yaml:"transaction,omitempty"`
}

// Operation is a single put, delete, setAlarm, or deleteAlarm step.
type Operation struct {
	Op            string `yaml:"op"`
	Key           string `yaml:"key,omitempty"`
	Value         string `yaml:"value,omitempty"`
	ScheduledTime int64  `yaml:"scheduledTime,omitempty"`
}

// Supported Operation.Op values.
const (
	OpPut         = "put"
	OpDelete      = "delete"
	OpSetAlarm    = "setAlarm"
	OpDeleteAlarm = "deleteAlarm"
)

// LoadFixture reads and parses a fixture from path, the way
// cmd/warren/apply.go reads and unmarshals a WarrenResource.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if f.Kind != "" && f.Kind != "Object" {
		return nil, fmt.Errorf("unsupported fixture kind: %s", f.Kind)
	}
	if f.Metadata.Name == "" {
		return nil, fmt.Errorf("fixture metadata.name is required")
	}
	if f.Spec.Backend == "" {
		f.Spec.Backend = BackendMemory
	}
	return &f, nil
}
