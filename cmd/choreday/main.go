package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dukerupert/choreday/internal/config"
	"github.com/dukerupert/choreday/internal/docstore"
	"github.com/dukerupert/choreday/internal/store"
)

var rootCmd = &cobra.Command{
	Use:           "choreday",
	Short:         "Shared household task list with daily templates and reactions",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.AddCommand(
		newServeCmd(),
		newGenerateCmd(),
		newVAPIDKeysCmd(),
		newHashAdminKeyCmd(),
		newTokenCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// openStore opens the configured SQLite database, or an empty in-memory
// store when memory is set.
func openStore(cfg config.Config, memory bool) (*docstore.DB, error) {
	if memory {
		return docstore.NewMemory(docstore.WithIndexes(store.Indexes...)), nil
	}
	db, err := docstore.OpenSQLite(cfg.DBPath, docstore.WithIndexes(store.Indexes...))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}
