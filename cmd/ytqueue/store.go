package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"ytqueue/internal/store"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect or roll back the queue store schema",
}

var storeVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the applied schema version",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return withQueueStore(func(s *store.QueueStore) error {
			return printSchemaVersion(os.Stdout, s)
		})
	},
}

var storeRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Roll back the latest schema migration (rolling back the first drops the saved queue)",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return withQueueStore(func(s *store.QueueStore) error {
			return rollbackSchema(os.Stdout, s)
		})
	},
}

func init() {
	storeCmd.AddCommand(storeVersionCmd, storeRollbackCmd)
}

// withQueueStore opens the configured store, which also applies pending migrations.
func withQueueStore(fn func(*store.QueueStore) error) error {
	s, err := store.OpenQueueStore(config.Store.Path, logger.Named("store"))
	if err != nil {
		return fmt.Errorf("failed to open queue store: %w", err)
	}
	defer s.Close()

	return fn(s)
}

func printSchemaVersion(w io.Writer, s *store.QueueStore) error {
	version, err := s.SchemaVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "schema version %d\n", version)
	return nil
}

func rollbackSchema(w io.Writer, s *store.QueueStore) error {
	version, err := s.RollbackMigration()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "rolled back migration %d\n", version)
	return nil
}
