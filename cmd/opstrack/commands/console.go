package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/slok/opstrack/internal/app/backups"
	"github.com/slok/opstrack/internal/app/operation"
	"github.com/slok/opstrack/internal/heartbeat"
	"github.com/slok/opstrack/internal/metrics"
	metricsprometheus "github.com/slok/opstrack/internal/metrics/prometheus"
	"github.com/slok/opstrack/internal/model"
	"github.com/slok/opstrack/internal/utils/params"
)

const consoleHelp = `Commands:
  backup [key=value...]            Create a backup.
  restore <backup> [key=value...]  Restore a backup.
  verify <backup> [key=value...]   Verify a backup.
  delete <backup> [key=value...]   Delete a backup.
  bulk-delete <backup>...          Delete multiple backups.
  dry-run <backup> [key=value...]  Simulate a restore.
  backups                          List the available backups.
  tasks                            List the tracked tasks.
  help                             Show this help.
  quit                             Exit.
`

type ConsoleCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	metricsAddr string
	format      string
}

// NewConsoleCommand returns the interactive console command.
func NewConsoleCommand(rootCmd *RootCommand, app *kingpin.Application) *ConsoleCommand {
	c := &ConsoleCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("console", "Interactive operations console with keepalive.")
	c.Cmd.Flag("metrics-listen-address", "Serve Prometheus metrics on this address (disabled when empty).").StringVar(&c.metricsAddr)
	c.Cmd.Flag("format", "Backups output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c ConsoleCommand) Name() string { return c.Cmd.FullCommand() }

func (c ConsoleCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	var rec metrics.Recorder = metrics.Noop
	reg := prometheus.NewRegistry()
	if c.metricsAddr != "" {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		pr, err := metricsprometheus.NewRecorder(reg)
		if err != nil {
			return fmt.Errorf("could not create metrics recorder: %w", err)
		}
		rec = pr
	}

	rt, err := c.rootCmd.newTaskRuntime(ctx, rec)
	if err != nil {
		return err
	}
	defer rt.Close()

	p := newPrinter(c.format, c.rootCmd)
	rt.refreshBackupsOnComplete(p, func(err error) {
		logger.Warningf("Could not refresh backups: %s", err)
	})

	hb, err := heartbeat.NewHeartbeat(heartbeat.HeartbeatConfig{
		Pinger:   rt.client,
		Logs:     rt.logs,
		Interval: c.rootCmd.KeepaliveInterval,
		Metrics:  rec,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("could not create heartbeat: %w", err)
	}

	var g run.Group

	// Keepalive.
	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(
			func() error { return hb.Run(ctx) },
			func(_ error) { cancel() },
		)
	}

	// Metrics.
	if c.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		server := &http.Server{Addr: c.metricsAddr, Handler: mux}

		g.Add(
			func() error {
				logger.Infof("Serving metrics on %s", c.metricsAddr)
				err := server.ListenAndServe()
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			},
			func(_ error) { _ = server.Shutdown(context.Background()) },
		)
	}

	// Input loop.
	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(
			func() error { return c.loop(ctx, rt) },
			func(_ error) { cancel() },
		)
	}

	return g.Run()
}

// loop reads console commands until the input ends, quit is requested or the context
// is cancelled. Lines are read on their own goroutine so a cancelled context doesn't
// wait for input.
func (c ConsoleCommand) loop(ctx context.Context, rt *taskRuntime) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.rootCmd.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	out := c.rootCmd.Stdout
	fmt.Fprint(out, consoleHelp)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := c.exec(ctx, rt, line)
			if err != nil {
				fmt.Fprintf(out, "error: %s\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

// exec runs a single console line. It returns true when the console must exit.
func (c ConsoleCommand) exec(ctx context.Context, rt *taskRuntime, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	out := c.rootCmd.Stdout
	name, args := fields[0], fields[1:]

	switch name {
	case "quit", "exit":
		return true, nil
	case "help":
		fmt.Fprint(out, consoleHelp)
		return false, nil
	case "tasks":
		return false, printTasks(out, rt)
	case BackupsControl:
		if !rt.controls[BackupsControl].Enabled() {
			return false, fmt.Errorf("backups listing is disabled while an operation runs")
		}
		bs, err := rt.backups.Run(ctx, backups.Request{})
		if err != nil {
			return false, err
		}
		return false, newPrinter(c.format, c.rootCmd).PrintBackups(bs)
	}

	op := model.OperationType(name)
	if err := op.Validate(); err != nil {
		return false, fmt.Errorf("unknown command %q, type help", name)
	}
	if !rt.controls[string(op)].Enabled() {
		return false, fmt.Errorf("%s is disabled while an operation runs", op)
	}

	req, err := parseOperationArgs(op, args)
	if err != nil {
		return false, err
	}

	// The task outlives this call, it is followed in the background.
	resp, err := rt.operation.Run(ctx, req)
	if err != nil {
		return false, err
	}
	c.rootCmd.Logger.Debugf("Tracking %s task %s", op, resp.TaskID)

	return false, nil
}

// parseOperationArgs splits `key=value` parameters from backup names.
func parseOperationArgs(op model.OperationType, args []string) (operation.Request, error) {
	var specs, names []string
	for _, a := range args {
		if strings.Contains(a, "=") {
			specs = append(specs, a)
			continue
		}
		names = append(names, a)
	}

	ps, err := params.ParseSpecs(specs)
	if err != nil {
		return operation.Request{}, err
	}

	return operation.Request{Operation: op, Backups: names, Params: ps}, nil
}

func printTasks(out io.Writer, rt *taskRuntime) error {
	ids := rt.manager.ActiveTasks()
	if len(ids) == 0 {
		_, err := fmt.Fprintln(out, "No tracked tasks.")
		return err
	}

	sort.Strings(ids)
	for _, id := range ids {
		if _, err := fmt.Fprintln(out, id); err != nil {
			return err
		}
	}
	return nil
}
