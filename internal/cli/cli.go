package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/inworld-ai/living-memories-unity-sub003/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("living-memories", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
Living Memories - runs an HCL-defined dialogue graph once.

Usage:
  living-memories [options] (-text TEXT | -audio FILE) [GRAPH_PATH]

Arguments:
  GRAPH_PATH
    Path to a single .hcl file or a directory containing .hcl files.

Options:
`)
		flagSet.PrintDefaults()
	}

	vars := map[string]string{}
	graphFlag := flagSet.String("graph", "", "Path to the graph file or directory.")
	gFlag := flagSet.String("g", "", "Path to the graph file or directory (shorthand).")
	textFlag := flagSet.String("text", "", "Text input delivered to the entry nodes.")
	audioFlag := flagSet.String("audio", "", "Audio file delivered to the entry nodes. Raw files are read as 16-bit PCM.")
	sampleRateFlag := flagSet.Int("sample-rate", 16000, "Sample rate of raw PCM audio input.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	workersFlag := flagSet.Int("workers", 0, "Number of concurrent node workers. 0 uses the number of CPUs.")
	timeoutFlag := flagSet.Duration("timeout", 0, "Deadline for the whole run. 0 is unlimited.")
	retriesFlag := flagSet.Int("retries", 0, "Extra attempts for nodes whose backend call fails.")
	backoffFlag := flagSet.Duration("retry-backoff", 0, "Pause between retry attempts.")
	seedFlag := flagSet.Uint64("seed", 0, "Seed for random canned text. 0 seeds from the clock.")
	socketFlag := flagSet.String("socketio-url", "", "Forward graph events to this socket.io server.")
	varFileFlag := flagSet.String("var-file", "", "YAML file of graph variables. -var takes precedence.")
	flagSet.Func("var", "Set a graph variable as name=value. May be repeated.", func(s string) error {
		name, val, ok := strings.Cut(s, "=")
		if !ok || name == "" {
			return errors.New("expected name=value")
		}
		vars[name] = val
		return nil
	})

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *graphFlag != "" {
		path = *graphFlag
	} else if *gFlag != "" {
		path = *gFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Graph path determined.", "path", path)

	if path == "" {
		slog.Debug("No graph path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		GraphPath:       path,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		Workers:         *workersFlag,
		Timeout:         *timeoutFlag,
		Retries:         *retriesFlag,
		RetryBackoff:    *backoffFlag,
		Seed:            *seedFlag,
		InputText:       *textFlag,
		InputAudioPath:  *audioFlag,
		AudioSampleRate: *sampleRateFlag,
		VarsFile:        *varFileFlag,
		Vars:            vars,
		SocketIOURL:     *socketFlag,
		HealthcheckPort: *healthPortFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
