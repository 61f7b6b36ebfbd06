package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crystaldolphin/chatkeeper/internal/archive"
	"github.com/crystaldolphin/chatkeeper/internal/config"
	"github.com/crystaldolphin/chatkeeper/internal/shared/llmutils"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Browse archived conversations",
}

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived conversations, newest first",
	Args:  cobra.NoArgs,
	RunE:  runArchiveList,
}

var archiveShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print an archived conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runArchiveShow,
}

func init() {
	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archiveShowCmd)
}

func openArchive(ctx context.Context) (archive.Store, error) {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return archive.NewStore(ctx, cfg.ArchivePath(), cfg.Conversation.DatabaseURL)
}

func runArchiveList(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	store, err := openArchive(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No archived conversations.")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("  %-36s  %s  %d turns\n", e.ID, e.UpdatedAt.Format("2006-01-02 15:04"), e.Turns)
	}
	return nil
}

func runArchiveShow(_ *cobra.Command, args []string) error {
	ctx := context.Background()
	store, err := openArchive(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	snap, err := store.Load(ctx, args[0])
	if err != nil {
		return fmt.Errorf("load %s: %w", args[0], err)
	}

	fmt.Printf("%s Conversation %s\n", logo, snap.ID)
	fmt.Printf("Created: %s  Updated: %s  Summaries: %d\n\n",
		snap.CreatedAt.Format("2006-01-02 15:04:05"), snap.UpdatedAt.Format("2006-01-02 15:04:05"), snap.Summaries)
	for _, t := range snap.Turns {
		fmt.Printf("[%s] %s: %s\n", t.Timestamp.Format("15:04:05"), t.Speaker, llmutils.Truncate(t.Text, 500))
	}
	return nil
}
