package commands

import (
	"context"
	"io"
	"path/filepath"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"k8s.io/client-go/util/homedir"

	"github.com/slok/opstrack/internal/conventions"
	"github.com/slok/opstrack/internal/heartbeat"
	"github.com/slok/opstrack/internal/lock"
	"github.com/slok/opstrack/internal/log"
	"github.com/slok/opstrack/internal/task"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"

	// ReporterTypeTerminal renders progress as styled terminal lines.
	ReporterTypeTerminal = "terminal"
	// ReporterTypeJSON renders progress as JSON lines.
	ReporterTypeJSON = "json"
)

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug             bool
	NoLog             bool
	NoColor           bool
	LoggerType        string
	ReporterType      string
	ServerURL         string
	Token             string
	OperationsFile    string
	DBPath            string
	NoHistory         bool
	PollInterval      time.Duration
	SafetyTimeout     time.Duration
	KeepaliveInterval time.Duration

	// Global instances.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger and reporter color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)
	app.Flag("reporter", "Selects how operation progress is rendered.").Default(ReporterTypeTerminal).EnumVar(&c.ReporterType, ReporterTypeTerminal, ReporterTypeJSON)

	app.Flag("server-url", "Admin server base URL.").Default("http://127.0.0.1:8080").StringVar(&c.ServerURL)
	app.Flag("token", "Admin server bearer token.").StringVar(&c.Token)

	dataDir := filepath.Join(homedir.HomeDir(), conventions.DefaultDataDir)
	app.Flag("config", "Path to the operations YAML file (optional).").Default(conventions.OperationsFilePath(dataDir)).StringVar(&c.OperationsFile)
	app.Flag("db-path", "Path to the SQLite history database file.").Default(conventions.HistoryDBPath(dataDir)).StringVar(&c.DBPath)
	app.Flag("no-history", "Don't record terminated operations.").BoolVar(&c.NoHistory)

	app.Flag("poll-interval", "Time between task status requests.").Default(task.DefaultPollInterval.String()).DurationVar(&c.PollInterval)
	app.Flag("safety-timeout", "Time after which the interaction lock is force released.").Default(lock.DefaultSafetyTimeout.String()).DurationVar(&c.SafetyTimeout)
	app.Flag("keepalive-interval", "Time between keepalive pings.").Default(heartbeat.DefaultInterval.String()).DurationVar(&c.KeepaliveInterval)

	return c
}
