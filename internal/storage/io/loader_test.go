package io

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/opstrack/internal/model"
)

func defaultsWith(op model.OperationType, oc model.OperationConfig) model.OperationsConfig {
	cfg := DefaultOperations()
	cfg[op] = oc
	return cfg
}

func TestOperationsYAMLRepositoryGetOperations(t *testing.T) {
	tests := map[string]struct {
		fs     fstest.MapFS
		path   string
		expCfg model.OperationsConfig
		expErr bool
		errMsg string
	}{
		"An empty file should load the built-in operations.": {
			fs: fstest.MapFS{
				"ops.yaml": &fstest.MapFile{Data: []byte("---\n")},
			},
			path:   "ops.yaml",
			expCfg: DefaultOperations(),
		},
		"A custom endpoint should replace the built-in one.": {
			fs: fstest.MapFS{
				"ops.yaml": &fstest.MapFile{Data: []byte(`operations:
  backup:
    endpoint: /v2/backups
`)},
			},
			path:   "ops.yaml",
			expCfg: defaultsWith(model.OperationBackup, model.OperationConfig{Endpoint: "/v2/backups"}),
		},
		"Params without endpoint should keep the built-in endpoint.": {
			fs: fstest.MapFS{
				"ops.yaml": &fstest.MapFile{Data: []byte(`operations:
  verify:
    params:
      deep: true
      retries: 2
`)},
			},
			path: "ops.yaml",
			expCfg: defaultsWith(model.OperationVerify, model.OperationConfig{
				Endpoint: "/api/backup/verify",
				Params:   map[string]any{"deep": true, "retries": 2},
			}),
		},
		"An unknown operation should fail.": {
			fs: fstest.MapFS{
				"ops.yaml": &fstest.MapFile{Data: []byte(`operations:
  reboot:
    endpoint: /reboot
`)},
			},
			path:   "ops.yaml",
			expErr: true,
			errMsg: "unknown operation type",
		},
		"An empty operation should fail.": {
			fs: fstest.MapFS{
				"ops.yaml": &fstest.MapFile{Data: []byte(`operations:
  backup: {}
`)},
			},
			path:   "ops.yaml",
			expErr: true,
			errMsg: "endpoint or params are required",
		},
		"Missing file should return error.": {
			fs:     fstest.MapFS{},
			path:   "nonexistent.yaml",
			expErr: true,
			errMsg: "reading operations file",
		},
		"Invalid YAML should return error.": {
			fs: fstest.MapFS{
				"invalid.yaml": &fstest.MapFile{Data: []byte(`invalid: yaml: content: {}`)},
			},
			path:   "invalid.yaml",
			expErr: true,
			errMsg: "parsing YAML",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			repo := NewOperationsYAMLRepository(tc.fs)
			cfg, err := repo.GetOperations(context.Background(), tc.path)

			if tc.expErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errMsg)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expCfg, cfg)
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestOperationsYAMLRepositoryContextCancellation(t *testing.T) {
	fs := fstest.MapFS{
		"ops.yaml": &fstest.MapFile{Data: []byte("operations: {}\n")},
	}

	repo := NewOperationsYAMLRepository(fs)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.GetOperations(ctx, "ops.yaml")
	require.Error(t, err)
	assert.Equal(t, context.Canceled, err)
}
