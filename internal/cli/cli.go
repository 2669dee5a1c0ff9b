package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/gridfeed/internal/app"
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

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("gridfeed", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
gridfeed - a batched data-loading pipeline engine.

Usage:
  gridfeed [options] [PIPELINE_PATH]

Arguments:
  PIPELINE_PATH
    Path to an .hcl pipeline definition file.

Options:
`)
		flagSet.PrintDefaults()
	}

	pipelineFlag := flagSet.String("pipeline", "", "Path to the pipeline definition file.")
	pFlag := flagSet.String("p", "", "Path to the pipeline definition file (shorthand).")
	iterationsFlag := flagSet.Int("iterations", 1, "Number of pipeline runs to execute.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *pipelineFlag != "" {
		path = *pipelineFlag
	} else if *pFlag != "" {
		path = *pFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Pipeline path determined.", "path", path)

	if path == "" {
		slog.Debug("No pipeline path provided, printing usage and exiting.")
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
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	if *iterationsFlag < 1 {
		return nil, false, &ExitError{Code: 2, Message: "invalid iterations: must be at least 1"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		PipelinePath: path,
		Iterations:   *iterationsFlag,
		LogFormat:    logFormat,
		LogLevel:     logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.")
	return config, false, nil
}
