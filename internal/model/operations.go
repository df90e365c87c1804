package model

import "fmt"

// OperationConfig is how an operation type is launched on the server.
type OperationConfig struct {
	Endpoint string
	// Params are the default launch payload parameters.
	Params map[string]any
}

// OperationsConfig is the launch configuration of every operation type.
type OperationsConfig map[OperationType]OperationConfig

// Validate checks every configured operation.
func (c OperationsConfig) Validate() error {
	for op, oc := range c {
		if err := op.Validate(); err != nil {
			return err
		}
		if oc.Endpoint == "" {
			return fmt.Errorf("operation %s endpoint is required: %w", op, ErrNotValid)
		}
	}
	return nil
}
