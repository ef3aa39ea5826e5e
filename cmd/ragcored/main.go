package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/voxloop/ragcore/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ragcored",
		Short: "RAG knowledge pipeline daemon and CLI",
		Long:  "ragcored runs the embedding worker and manages knowledge items, bot assignments, and retrieval",
	}

	rootCmd.AddCommand(cli.WorkerCmd())
	rootCmd.AddCommand(cli.MigrateCmd())
	rootCmd.AddCommand(cli.KnowledgeCmd())
	rootCmd.AddCommand(cli.IngestCmd())
	rootCmd.AddCommand(cli.ReprocessCmd())
	rootCmd.AddCommand(cli.RetrieveCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "worker")
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
