package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

// Global flags
var (
	configPath string
	envFile    string
	cfg        appConfig
)

// rootCmd is the fingervote CLI. Subcommands share the loaded config.
var rootCmd = &cobra.Command{
	Use:   "fingervote",
	Short: "Fingerprint voting kiosk and scan client",
	Long: `fingervote drives a fingerprint voting backend from the terminal.

The kiosk command opens the full-screen terminal UI with the scan, verify,
register and demo election pages. The scan, verify and enroll commands run
a single flow headless and print each state change.

Examples:
  fingervote kiosk
  fingervote scan --backend-url http://127.0.0.1:8000
  fingervote verify FP_123
  fingervote verify --simulated
  fingervote enroll 12
  fingervote history --limit 20`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadEnvFile(envFile); err != nil {
			return err
		}
		c, err := loadConfig(configPath, cmd.Flags())
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = c
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is $HOME/.config/fingervote/config.yml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load before reading the environment (default .env if present)")
	rootCmd.PersistentFlags().String("backend-url", "", "base URL of the voting backend")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(kioskCmd, scanCmd, verifyCmd, enrollCmd, historyCmd, versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	// No config needed.
	PersistentPreRun: func(*cobra.Command, []string) {},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fingervote - Fingerprint Voting Client\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
