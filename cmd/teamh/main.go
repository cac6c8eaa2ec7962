// Command teamh runs the household agent team: an HTTP gateway routing
// chat requests across specialist managers with checkpointed threads.
//
// Usage:
//
//	teamh serve --config config.yaml
//	teamh validate --config config.yaml
//	teamh version
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/teamh-ai/teamh"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Start the HTTP gateway."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, verbose, json)." default:"simple"`
}

// VersionCmd prints build information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(teamh.GetVersion().String())
	return nil
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("teamh"),
		kong.Description("Multi-agent household assistant runtime."),
		kong.UsageOnError(),
	)

	cleanup, err := initLogger(cli)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	if err := ctx.Run(cli); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
