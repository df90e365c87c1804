package io

import (
	"context"
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"

	"github.com/slok/opstrack/internal/conventions"
	"github.com/slok/opstrack/internal/model"
	"github.com/slok/opstrack/internal/storage"
)

// OperationsYAMLRepository loads the operations launch configuration from YAML files.
type OperationsYAMLRepository struct {
	fs fs.FS
}

var _ storage.OperationsRepository = &OperationsYAMLRepository{}

// NewOperationsYAMLRepository creates a new YAML operations repository.
func NewOperationsYAMLRepository(filesystem fs.FS) *OperationsYAMLRepository {
	return &OperationsYAMLRepository{fs: filesystem}
}

// DefaultOperations returns the built-in launch configuration of every operation type.
func DefaultOperations() model.OperationsConfig {
	cfg := model.OperationsConfig{}
	for _, op := range model.OperationTypes {
		cfg[op] = model.OperationConfig{Endpoint: conventions.DefaultEndpoint(op)}
	}
	return cfg
}

// GetOperations loads the operations file. Operations missing from the file use the
// built-in configuration.
func (r *OperationsYAMLRepository) GetOperations(ctx context.Context, path string) (model.OperationsConfig, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading operations file: %w", err)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var file OperationsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	if err := file.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return file.toModel(), nil
}

// OperationsFile represents the YAML structure of the operations file.
type OperationsFile struct {
	Operations map[string]OperationConfig `yaml:"operations"`
}

// OperationConfig represents the YAML structure of a single operation.
type OperationConfig struct {
	Endpoint string         `yaml:"endpoint"`
	Params   map[string]any `yaml:"params"`
}

func (f OperationsFile) validate() error {
	for name, op := range f.Operations {
		if err := model.OperationType(name).Validate(); err != nil {
			return err
		}
		if op.Endpoint == "" && len(op.Params) == 0 {
			return fmt.Errorf("operation %s: endpoint or params are required", name)
		}
	}
	return nil
}

func (f OperationsFile) toModel() model.OperationsConfig {
	cfg := DefaultOperations()
	for name, op := range f.Operations {
		oc := cfg[model.OperationType(name)]
		if op.Endpoint != "" {
			oc.Endpoint = op.Endpoint
		}
		oc.Params = op.Params
		cfg[model.OperationType(name)] = oc
	}
	return cfg
}
