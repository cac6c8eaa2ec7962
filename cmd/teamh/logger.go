package main

import (
	"fmt"
	"os"

	"github.com/teamh-ai/teamh/pkg/logger"
)

const (
	logFileEnvVar   = "LOG_FILE"
	logLevelEnvVar  = "LOG_LEVEL"
	logFormatEnvVar = "LOG_FORMAT"
)

// initLogger configures slog from CLI flags, falling back to environment
// variables. Returns a cleanup func when logging to a file.
func initLogger(cli *CLI) (func(), error) {
	logLevel := cli.LogLevel
	if logLevel == "" {
		logLevel = os.Getenv(logLevelEnvVar)
	}
	if logLevel == "" {
		logLevel = "info"
	}

	logFile := cli.LogFile
	if logFile == "" {
		logFile = os.Getenv(logFileEnvVar)
	}

	logFormat := cli.LogFormat
	if logFormat == "" {
		logFormat = os.Getenv(logFormatEnvVar)
	}
	if logFormat == "" {
		logFormat = "simple"
	}

	level, err := logger.ParseLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	output := os.Stderr
	var cleanup func()
	if logFile != "" {
		file, cleanupFn, err := logger.OpenLogFile(logFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
		cleanup = cleanupFn
	}

	logger.Init(level, output, logFormat)
	return cleanup, nil
}
