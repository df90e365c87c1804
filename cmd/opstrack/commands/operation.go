package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/opstrack/internal/app/operation"
	"github.com/slok/opstrack/internal/metrics"
	"github.com/slok/opstrack/internal/model"
	"github.com/slok/opstrack/internal/utils/params"
)

type OperationCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	op          model.OperationType
	backups     []string
	paramSpecs  []string
	detach      bool
	showBackups bool
	format      string
}

var operationHelp = map[model.OperationType]string{
	model.OperationBackup:     "Create a backup and follow it to completion.",
	model.OperationRestore:    "Restore a backup and follow it to completion.",
	model.OperationVerify:     "Verify a backup and follow it to completion.",
	model.OperationDelete:     "Delete a backup and follow it to completion.",
	model.OperationBulkDelete: "Delete multiple backups and follow it to completion.",
	model.OperationDryRun:     "Simulate a backup restore and follow it to completion.",
}

// NewOperationCommand returns the command that launches an operation type.
func NewOperationCommand(rootCmd *RootCommand, app *kingpin.Application, op model.OperationType) *OperationCommand {
	c := &OperationCommand{rootCmd: rootCmd, op: op}

	c.Cmd = app.Command(string(op), operationHelp[op])
	switch op {
	case model.OperationBackup:
	case model.OperationBulkDelete:
		c.Cmd.Arg("backups", "Backup names.").Required().StringsVar(&c.backups)
	default:
		c.Cmd.Arg("backup", "Backup name.").Required().StringsVar(&c.backups)
	}
	c.Cmd.Flag("param", "Launch payload parameter in key=value format (repeatable).").Short('p').StringsVar(&c.paramSpecs)
	c.Cmd.Flag("detach", "Return after the launch without following the task.").BoolVar(&c.detach)
	c.Cmd.Flag("show-backups", "Print the available backups after a successful operation.").BoolVar(&c.showBackups)
	c.Cmd.Flag("format", "Backups output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c OperationCommand) Name() string { return c.Cmd.FullCommand() }

func (c OperationCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	ps, err := params.ParseSpecs(c.paramSpecs)
	if err != nil {
		return fmt.Errorf("invalid --param value: %w", err)
	}

	rt, err := c.rootCmd.newTaskRuntime(ctx, metrics.Noop)
	if err != nil {
		return err
	}
	defer rt.Close()

	if c.showBackups {
		rt.refreshBackupsOnComplete(newPrinter(c.format, c.rootCmd), func(err error) {
			logger.Warningf("Could not refresh backups: %s", err)
		})
	}

	resp, err := rt.operation.Run(ctx, operation.Request{
		Operation: c.op,
		Backups:   c.backups,
		Params:    ps,
		Wait:      !c.detach,
	})
	if err != nil {
		return err
	}

	if c.detach {
		// The command context ends with the command, tracking can't outlive it.
		rt.launcher.Detach(resp.Handle)
		_, err := fmt.Fprintf(c.rootCmd.Stdout, "%s\n", resp.TaskID)
		return err
	}

	return nil
}
