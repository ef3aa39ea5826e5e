package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// ReprocessCmd returns the reprocess command
func ReprocessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reprocess",
		Short: "Re-embed a company's knowledge items",
		Long:  "Re-run the embedding pipeline for every item of a company that is missing embeddings",
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
			report, err := rag.Reprocess(ctx, companyID)
			if err != nil {
				return err
			}

			for _, item := range report.Items {
				if item.Error != "" {
					fmt.Printf("FAIL  %s  %s: %s\n", item.KnowledgeItemID, truncate(item.Title, 40), item.Error)
				} else {
					fmt.Printf("OK    %s  %s (%d chunks)\n", item.KnowledgeItemID, truncate(item.Title, 40), item.ChunkCount)
				}
			}
			fmt.Printf("\n%d succeeded, %d failed\n", report.Succeeded, report.Failed)
			return nil
		},
	}

	cmd.Flags().String("company", "", "Company ID (required)")
	_ = cmd.MarkFlagRequired("company")

	return cmd
}
