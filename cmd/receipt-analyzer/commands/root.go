package commands

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	envFile  string
	logLevel string
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:     "receipt-analyzer",
	Version: "1.0.0",
	Short:   "Receipt recognition pipeline backed by S3 and Textract",
	Long: `receipt-analyzer prepares a local receipt for OCR, uploads it to S3,
runs an asynchronous Textract document analysis over it and saves the
full response locally once the job completes.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadEnvFile(cmd)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "environment file to load before reading configuration")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "shorthand for --log-level debug")
}

// loadEnvFile loads the environment file when present. The default file
// may be absent; a file named explicitly must exist.
func loadEnvFile(cmd *cobra.Command) error {
	err := godotenv.Load(envFile)
	if err == nil {
		return nil
	}
	if !cmd.Root().PersistentFlags().Changed("env-file") && os.IsNotExist(err) {
		return nil
	}
	return fmt.Errorf("load %s: %w", envFile, err)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
