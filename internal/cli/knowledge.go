package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/voxloop/ragcore/internal/domain"
	"github.com/voxloop/ragcore/internal/service"
)

// KnowledgeCmd returns the knowledge management command
func KnowledgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Manage knowledge items",
	}

	cmd.AddCommand(knowledgeAddCmd())
	cmd.AddCommand(knowledgeListCmd())
	cmd.AddCommand(knowledgeDeleteCmd())
	cmd.AddCommand(knowledgeAssignCmd())
	cmd.AddCommand(knowledgeUnassignCmd())

	return cmd
}

func knowledgeAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a knowledge item",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			companyID, _ := cmd.Flags().GetString("company")
			title, _ := cmd.Flags().GetString("title")
			contentType, _ := cmd.Flags().GetString("type")
			tags, _ := cmd.Flags().GetStringSlice("tags")
			content, _ := cmd.Flags().GetString("content")
			file, _ := cmd.Flags().GetString("file")

			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read content file: %w", err)
				}
				content = string(data)
			}

			item, err := app.admin.CreateItem(ctx, service.CreateItemInput{
				CompanyID:   companyID,
				Title:       title,
				Content:     content,
				ContentType: domain.ContentType(contentType),
				Tags:        tags,
			})
			if err != nil {
				return err
			}

			fmt.Printf("created knowledge item %s (status: %s)\n", item.ID, item.EmbeddingStatus)
			return nil
		},
	}

	cmd.Flags().String("company", "", "Company ID (required)")
	cmd.Flags().String("title", "", "Item title (required)")
	cmd.Flags().String("type", "document", "Content type: faq, document, policy, product, article")
	cmd.Flags().StringSlice("tags", nil, "Comma-separated tags")
	cmd.Flags().String("content", "", "Item content")
	cmd.Flags().String("file", "", "Read content from a file instead of --content")
	_ = cmd.MarkFlagRequired("company")
	_ = cmd.MarkFlagRequired("title")

	return cmd
}

func knowledgeListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a company's knowledge items",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			companyID, _ := cmd.Flags().GetString("company")
			cursor, _ := cmd.Flags().GetString("cursor")
			limit, _ := cmd.Flags().GetInt("limit")

			page, err := app.admin.ListItemsPage(ctx, companyID, cursor, limit)
			if err != nil {
				return err
			}

			for _, item := range page.Items {
				fmt.Printf("%s  %-10s  %-10s  %s\n",
					item.ID, item.ContentType, item.EmbeddingStatus, truncate(item.Title, 60))
			}
			if page.HasMore {
				fmt.Printf("\nnext page: --cursor %s\n", page.NextCursor)
			}
			return nil
		},
	}

	cmd.Flags().String("company", "", "Company ID (required)")
	cmd.Flags().String("cursor", "", "Pagination cursor from a previous page")
	cmd.Flags().Int("limit", 20, "Page size")
	_ = cmd.MarkFlagRequired("company")

	return cmd
}

func knowledgeDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <item-id>",
		Short: "Delete a knowledge item and its embeddings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			companyID, _ := cmd.Flags().GetString("company")
			if err := app.admin.DeleteItem(ctx, args[0], companyID); err != nil {
				return err
			}

			fmt.Printf("deleted knowledge item %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().String("company", "", "Company ID (required)")
	_ = cmd.MarkFlagRequired("company")

	return cmd
}

func knowledgeAssignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assign <item-id>",
		Short: "Assign a knowledge item to a bot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			companyID, _ := cmd.Flags().GetString("company")
			botID, _ := cmd.Flags().GetString("bot")
			priority, _ := cmd.Flags().GetInt("priority")

			assignment, err := app.admin.AssignToBot(ctx, botID, args[0], companyID, priority)
			if err != nil {
				return err
			}

			fmt.Printf("assigned item %s to bot %s with priority %d\n",
				assignment.KnowledgeItemID, assignment.BotID, assignment.Priority)
			return nil
		},
	}

	cmd.Flags().String("company", "", "Company ID (required)")
	cmd.Flags().String("bot", "", "Bot ID (required)")
	cmd.Flags().Int("priority", 3, fmt.Sprintf("Priority %d (highest) to %d (lowest)",
		domain.AssignmentPriorityHighest, domain.AssignmentPriorityLowest))
	_ = cmd.MarkFlagRequired("company")
	_ = cmd.MarkFlagRequired("bot")

	return cmd
}

func knowledgeUnassignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unassign <item-id>",
		Short: "Remove a knowledge item from a bot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			botID, _ := cmd.Flags().GetString("bot")
			if err := app.admin.UnassignFromBot(ctx, botID, args[0]); err != nil {
				return err
			}

			fmt.Printf("unassigned item %s from bot %s\n", args[0], botID)
			return nil
		},
	}

	cmd.Flags().String("bot", "", "Bot ID (required)")
	_ = cmd.MarkFlagRequired("bot")

	return cmd
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
