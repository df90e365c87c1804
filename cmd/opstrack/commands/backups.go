package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/opstrack/internal/app/backups"
)

type BackupsCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	prefix string
	format string
}

// NewBackupsCommand returns the backups command.
func NewBackupsCommand(rootCmd *RootCommand, app *kingpin.Application) *BackupsCommand {
	c := &BackupsCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("backups", "List the available backups.")
	c.Cmd.Flag("prefix", "Filter by name prefix.").StringVar(&c.prefix)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c BackupsCommand) Name() string { return c.Cmd.FullCommand() }

func (c BackupsCommand) Run(ctx context.Context) error {
	client, err := c.rootCmd.newAPIClient()
	if err != nil {
		return err
	}

	svc, err := backups.NewService(backups.ServiceConfig{
		API:    client,
		Logger: c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	bs, err := svc.Run(ctx, backups.Request{Prefix: c.prefix})
	if err != nil {
		return err
	}

	if err := newPrinter(c.format, c.rootCmd).PrintBackups(bs); err != nil {
		return fmt.Errorf("could not print backups: %w", err)
	}

	return nil
}
