package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// IngestCmd returns the ingest command
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <item-id>",
		Short: "Embed a single knowledge item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			rag, err := app.requireRAG()
			if err != nil {
				return err
			}

			companyID, _ := cmd.Flags().GetString("company")
			result, err := rag.Ingest(ctx, args[0], companyID, "")
			if err != nil {
				return err
			}

			fmt.Printf("ingested item %s: %d chunks (%d embedded, %d cache hits)\n",
				args[0], result.ChunkCount, result.EmbeddedCount, result.CachedCount)
			return nil
		},
	}

	cmd.Flags().String("company", "", "Company ID (required)")
	_ = cmd.MarkFlagRequired("company")

	return cmd
}
