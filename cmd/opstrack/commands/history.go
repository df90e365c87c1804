package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/opstrack/internal/app/history"
	"github.com/slok/opstrack/internal/model"
	"github.com/slok/opstrack/internal/storage/sqlite"
)

type HistoryCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	operation  string
	limit      int
	failedOnly bool
	format     string
}

// NewHistoryCommand returns the history command.
func NewHistoryCommand(rootCmd *RootCommand, app *kingpin.Application) *HistoryCommand {
	c := &HistoryCommand{rootCmd: rootCmd}

	ops := make([]string, 0, len(model.OperationTypes))
	for _, op := range model.OperationTypes {
		ops = append(ops, string(op))
	}

	c.Cmd = app.Command("history", "List the recorded terminated operations.")
	c.Cmd.Flag("operation", "Filter by operation type.").EnumVar(&c.operation, ops...)
	c.Cmd.Flag("limit", "Maximum number of records (0 is unlimited).").Default("20").IntVar(&c.limit)
	c.Cmd.Flag("failed", "Only show unsuccessful operations.").BoolVar(&c.failedOnly)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c HistoryCommand) Name() string { return c.Cmd.FullCommand() }

func (c HistoryCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: c.rootCmd.DBPath,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create repository: %w", err)
	}
	defer repo.Close()

	svc, err := history.NewService(history.ServiceConfig{
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	records, err := svc.Run(ctx, history.Request{
		Operation:  model.OperationType(c.operation),
		Limit:      c.limit,
		FailedOnly: c.failedOnly,
	})
	if err != nil {
		return fmt.Errorf("could not list history: %w", err)
	}

	if err := newPrinter(c.format, c.rootCmd).PrintHistory(records); err != nil {
		return fmt.Errorf("could not print history: %w", err)
	}

	return nil
}
