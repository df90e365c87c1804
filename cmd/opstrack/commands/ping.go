package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/opstrack/internal/heartbeat"
)

type PingCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
}

// NewPingCommand returns the ping command.
func NewPingCommand(rootCmd *RootCommand, app *kingpin.Application) *PingCommand {
	c := &PingCommand{rootCmd: rootCmd}
	c.Cmd = app.Command("ping", "Send a single keepalive to the admin server.")
	return c
}

func (c PingCommand) Name() string { return c.Cmd.FullCommand() }

func (c PingCommand) Run(ctx context.Context) error {
	client, err := c.rootCmd.newAPIClient()
	if err != nil {
		return err
	}

	hb, err := heartbeat.NewHeartbeat(heartbeat.HeartbeatConfig{
		Pinger: client,
		Logger: c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create heartbeat: %w", err)
	}

	if err := hb.Beat(ctx); err != nil {
		return err
	}

	_, err = fmt.Fprintln(c.rootCmd.Stdout, "pong")
	return err
}
