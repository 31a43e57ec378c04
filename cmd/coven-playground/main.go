// ABOUTME: Entry point for coven-playground, a terminal client for playground agents, teams, and workflows
// ABOUTME: Defines the root command, persistent flags, and config and data path resolution

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  ___ _____   _____ _ __
 / __/ _ \ \ / / _ \ '_ \
| (_| (_) \ V /  __/ | | |
 \___\___/ \_/ \___|_| |_|  playground
`

var (
	configFlag   string
	endpointFlag string
	agentFlag    string
	teamFlag     string
	workflowFlag string
	noColor      bool
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "coven-playground",
	Short: "Chat with playground agents, teams, and workflows",
	Long: `coven-playground talks to a playground backend: it lists agents, teams,
and workflows, streams run responses into the terminal, and manages the
sessions the backend stores for them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default: $COVEN_PLAYGROUND_CONFIG or ~/.config/coven/playground.yaml)")
	rootCmd.PersistentFlags().StringVar(&endpointFlag, "endpoint", "", "Playground backend URL (overrides the saved endpoint)")
	rootCmd.PersistentFlags().StringVar(&agentFlag, "agent", "", "Agent id")
	rootCmd.PersistentFlags().StringVar(&teamFlag, "team", "", "Team id (wins over --agent)")
	rootCmd.PersistentFlags().StringVar(&workflowFlag, "workflow", "", "Workflow id (used when no agent or team is given)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// getConfigPath returns the path to the playground config file.
// Priority: --config > COVEN_PLAYGROUND_CONFIG env var > XDG_CONFIG_HOME/coven/playground.yaml > ~/.config/coven/playground.yaml
func getConfigPath() string {
	if configFlag != "" {
		return configFlag
	}
	if envPath := os.Getenv("COVEN_PLAYGROUND_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "playground.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "coven", "playground.yaml")
}

// getDataPath returns the path to the coven data directory.
// Priority: XDG_DATA_HOME/coven > ~/.local/share/coven
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "coven")
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
