package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	if err := buildRoot().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// APIFlags holds the daemon connection flags shared by control commands.
type APIFlags struct {
	URL     string
	Timeout time.Duration
}

// StartFlags holds the descriptor flags for the start command.
type StartFlags struct {
	ID          string
	Name        string
	JavaPath    string
	MinMemoryMB int
	MaxMemoryMB int
	Software    string
	Port        int
	Proxy       bool
}

// ServeFlags holds flags for the serve command.
type ServeFlags struct {
	ConfigPath  string
	MetricsAddr string
	Debug       bool
}

func buildRoot() *cobra.Command {
	api := &APIFlags{}
	startFlags := &StartFlags{}
	serveFlags := &ServeFlags{}

	root := &cobra.Command{
		Use:   "serverstarter",
		Short: "Game server process supervision daemon and CLI",
		Long: `Serverstarter supervises game and proxy server processes: it spawns
them from descriptors, captures their console output, injects commands
and shuts them down gracefully with a kill fallback.

Examples:
  serverstarter serve --config servers.toml
  serverstarter start --name=lobby --software=paper.jar --port=25565
  serverstarter exec --id=<id> --command="say hi"
  serverstarter logs --id=<id>`,
	}

	root.PersistentFlags().StringVar(&api.URL, "api-url", "http://localhost:8080/api", "base URL of the daemon API")
	root.PersistentFlags().DurationVar(&api.Timeout, "api-timeout", 10*time.Second, "API request timeout")

	root.AddCommand(
		createStartCommand(api, startFlags),
		createStopCommand(api),
		createExecCommand(api),
		createLogsCommand(api),
		createStatusCommand(api),
		createServeCommand(serveFlags),
	)
	return root
}
