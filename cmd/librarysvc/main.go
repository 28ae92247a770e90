// Command librarysvc runs the library catalog and lending service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	configPath string
	envPath    string
)

var rootCmd = &cobra.Command{
	Use:           "librarysvc",
	Short:         "Library catalog and lending service",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config file, skipped if missing")
	rootCmd.PersistentFlags().StringVar(&envPath, "env-file", ".env", "path to a dotenv file, skipped if missing")

	rootCmd.AddCommand(serveCmd, migrateCmd, userAddCmd, loadgenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "librarysvc:", err)
		os.Exit(1)
	}
}
