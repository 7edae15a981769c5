package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/kozaktomas/faceauth/internal/config"
	"github.com/kozaktomas/faceauth/internal/logger"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "faceauth",
	Short: "Face registration and face login for Hisabbook",
	Long: `faceauth serves the Hisabbook face registration and face login screens.
A face is registered once under a username and later used to sign in
by comparing a fresh webcam capture against the stored descriptor.

The same workflows can be run from the command line against still images.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var envFile string

func init() {
	cobra.OnInitialize(loadEnvFile)
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "File with environment variables, loaded before configuration is read")
	rootCmd.PersistentFlags().String("log-level", "", "Overrides LOG_LEVEL (debug, info, warn, error)")
}

// loadEnvFile loads envFile without overriding variables already set.
// The default .env is optional; a file named on the command line is not.
func loadEnvFile() {
	if err := godotenv.Load(envFile); err != nil && rootCmd.PersistentFlags().Changed("env-file") {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

// loadConfig reads the environment and sets up logging. The returned
// closer releases the log file.
func loadConfig(cmd *cobra.Command) (*config.Config, io.Closer, error) {
	cfg := config.Load()
	if level := mustGetString(cmd, "log-level"); level != "" {
		cfg.Log.Level = level
	}
	closer, err := logger.Init(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing logger: %w", err)
	}
	return cfg, closer, nil
}
