package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/voxloop/ragcore/internal/service"
)

// RetrieveCmd returns the retrieve command
func RetrieveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retrieve <query>",
		Short: "Run a retrieval query and print the assembled context",
		Args:  cobra.MinimumNArgs(1),
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

			botID, _ := cmd.Flags().GetString("bot")
			companyID, _ := cmd.Flags().GetString("company")
			maxResults, _ := cmd.Flags().GetInt("max")
			query := strings.Join(args, " ")

			opts := service.RetrieveOptions{MaxResults: maxResults}
			if cmd.Flags().Changed("threshold") {
				threshold, _ := cmd.Flags().GetFloat64("threshold")
				opts.SimilarityThreshold = &threshold
			}

			var result *service.RetrievalResult
			switch {
			case botID != "":
				result, err = rag.RetrieveForBot(ctx, botID, query, opts)
			case companyID != "":
				result, err = rag.RetrieveForCompany(ctx, companyID, query, opts)
			default:
				return fmt.Errorf("either --bot or --company is required")
			}
			if err != nil {
				return err
			}

			if result.ChunkCount == 0 {
				fmt.Println("no relevant knowledge found")
				return nil
			}

			fmt.Println(result.Text)
			fmt.Printf("--\n%d chunks, %d tokens, avg similarity %.3f (embed %s, search %s)\n",
				result.ChunkCount, result.TokenCount, result.AvgSimilarity,
				result.EmbedDuration.Round(time.Millisecond), result.SearchDuration.Round(time.Millisecond))
			for _, src := range result.Sources {
				priority := "-"
				if src.Priority != nil {
					priority = fmt.Sprintf("%d", *src.Priority)
				}
				fmt.Printf("  %s  %-10s  sim %.3f  prio %s  %s\n",
					src.KnowledgeItemID, src.ContentType, src.Similarity, priority, truncate(src.Title, 40))
			}
			return nil
		},
	}

	cmd.Flags().String("bot", "", "Retrieve in a bot's scope")
	cmd.Flags().String("company", "", "Retrieve across a whole company")
	cmd.Flags().Float64("threshold", 0, "Similarity threshold override")
	cmd.Flags().Int("max", 0, "Maximum result chunks override")

	return cmd
}
