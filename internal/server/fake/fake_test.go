package fake_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/opstrack/internal/api"
	"github.com/slok/opstrack/internal/model"
	"github.com/slok/opstrack/internal/server/fake"
)

func newClient(t *testing.T, cfg fake.ServerConfig) (*api.Client, *fake.Server) {
	t.Helper()

	srv, err := fake.NewServer(cfg)
	require.NoError(t, err)
	hs := httptest.NewServer(srv)
	t.Cleanup(hs.Close)

	c, err := api.NewClient(api.ClientConfig{BaseURL: hs.URL, Token: cfg.Token})
	require.NoError(t, err)
	return c, srv
}

func TestServerRunsScriptedTask(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	ctx := context.Background()

	c, srv := newClient(t, fake.ServerConfig{
		Scripts: map[string]fake.Script{
			"/api/backup/verify": {
				Steps: []fake.Step{
					{Summary: "Checking", Level: "info", Message: "step1"},
					{Summary: "Checked", Level: "success", Message: "done", Detail: "3 files"},
				},
				Result: "All good",
			},
		},
	})

	res, err := c.Launch(ctx, "/api/backup/verify", map[string]any{"backup": "b1"})
	require.NoError(err)
	require.True(res.Success)
	assert.Equal([]string{"/api/backup/verify"}, srv.Launches())

	st, err := c.TaskStatus(ctx, res.TaskID)
	require.NoError(err)
	assert.False(st.IsDone)
	assert.Nil(st.Success)
	assert.Equal("Checking", st.StatusSummary)
	require.Len(st.LogEntries, 1)

	st, err = c.TaskStatus(ctx, res.TaskID)
	require.NoError(err)
	assert.True(st.IsDone)
	require.NotNil(st.Success)
	assert.True(*st.Success)
	assert.Equal("All good", st.ResultMessage)
	require.Len(st.LogEntries, 2)
	assert.Equal(model.LogEntry{Timestamp: "step-2", Level: model.LogLevelSuccess, Message: "done", Detail: "3 files"}, st.LogEntries[1])
}

func TestServerRejectsLaunch(t *testing.T) {
	c, _ := newClient(t, fake.ServerConfig{
		Scripts: map[string]fake.Script{"/api/backup/create": {Reject: "validation failed"}},
	})

	res, err := c.Launch(context.Background(), "/api/backup/create", nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "validation failed", res.Message)
}

func TestServerExpiresTasks(t *testing.T) {
	ctx := context.Background()
	c, _ := newClient(t, fake.ServerConfig{
		DefaultScript: fake.Script{Steps: []fake.Step{{Message: "a"}, {Message: "b"}}, ExpireAfter: 1},
	})

	res, err := c.Launch(ctx, "/api/backup/create", nil)
	require.NoError(t, err)

	_, err = c.TaskStatus(ctx, res.TaskID)
	require.NoError(t, err)

	_, err = c.TaskStatus(ctx, res.TaskID)
	assert.True(t, errors.Is(err, model.ErrTaskNotFound))

	_, err = c.TaskStatus(ctx, "unknown")
	assert.True(t, errors.Is(err, model.ErrTaskNotFound))
}

func TestServerPingAndBackups(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	c, srv := newClient(t, fake.ServerConfig{
		Backups: []fake.Backup{{Name: "b1", SizeBytes: 10, CreatedAt: created}, {Name: "b2", SizeBytes: 20, CreatedAt: created}},
		Token:   "secret",
	})

	require.NoError(c.Ping(ctx))
	srv.SetPingDown(true)
	require.Error(c.Ping(ctx))

	bs, err := c.ListBackups(ctx)
	require.NoError(err)
	require.Len(bs, 2)
	assert.Equal(t, model.Backup{Name: "b1", SizeBytes: 10, CreatedAt: created}, bs[0])

	_, err = c.Launch(ctx, "/api/backup/delete", map[string]any{"backup": "b1"})
	require.NoError(err)
	bs, err = c.ListBackups(ctx)
	require.NoError(err)
	require.Len(bs, 1)
	assert.Equal(t, "b2", bs[0].Name)
}

func TestServerRequiresToken(t *testing.T) {
	srv, err := fake.NewServer(fake.ServerConfig{Token: "secret"})
	require.NoError(t, err)
	hs := httptest.NewServer(srv)
	defer hs.Close()

	c, err := api.NewClient(api.ClientConfig{BaseURL: hs.URL})
	require.NoError(t, err)

	assert.Error(t, c.Ping(context.Background()))
}
