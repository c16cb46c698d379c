package main

import (
	"fmt"
	"os"

	"github.com/ayo6706/clubledger/internal/app"
	"github.com/spf13/cobra"
)

var migrateRollback bool

var rootCmd = &cobra.Command{
	Use:   "clubledger",
	Short: "Club ledger and payment settlement service",
	Long:  `Keeps member and organisation ledgers and settles charges from balance, automatic top-ups or card payments.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and background workers",
	RunE: func(_ *cobra.Command, _ []string) error {
		return app.Run()
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded database migrations",
	RunE: func(_ *cobra.Command, _ []string) error {
		return app.Migrate(migrateRollback)
	},
}

func init() {
	migrateCmd.Flags().BoolVarP(&migrateRollback, "rollback", "r", false, "roll back the latest migration instead of applying")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "application error: %v\n", err)
		os.Exit(1)
	}
}
