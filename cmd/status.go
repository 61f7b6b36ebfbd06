package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crystaldolphin/chatkeeper/internal/archive"
	"github.com/crystaldolphin/chatkeeper/internal/config"
	"github.com/crystaldolphin/chatkeeper/internal/providers"
	"github.com/crystaldolphin/chatkeeper/internal/shared/llmutils"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show chatkeeper status",
	RunE:  runStatus,
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfgPath := config.ConfigPath()

	fmt.Printf("%s chatkeeper Status\n\n", logo)

	_, statErr := os.Stat(cfgPath)
	cfgMark := "✗"
	if statErr == nil {
		cfgMark = "✓"
	}
	fmt.Printf("Config:     %s %s\n", cfgPath, cfgMark)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  (could not load config: %v)\n", err)
		return nil
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("  ✗ %v\n", err)
	}

	fmt.Printf("Model:      %s\n", cfg.Model.Name)
	fmt.Printf("History:    %d turns / %d chars, summary every %d turns\n",
		cfg.Conversation.MaxTurns, cfg.Conversation.MaxChars, cfg.Conversation.SummarizeEvery)
	fmt.Printf("Extraction: %s mode, concurrency %d, schema %s\n",
		cfg.Extraction.Mode, cfg.Extraction.Concurrency, llmutils.StringOrDefault(cfg.SchemaFile(), "(built-in)"))

	if cfg.Conversation.DatabaseURL != "" {
		fmt.Println("Archive:    postgres")
	} else {
		store, err := archive.NewJSONLStore(cfg.ArchivePath())
		if err != nil {
			fmt.Printf("Archive:    %s ✗\n", cfg.ArchivePath())
		} else {
			entries, _ := store.List(context.Background())
			fmt.Printf("Archive:    %s (%d conversations)\n", cfg.ArchivePath(), len(entries))
		}
	}
	fmt.Println()

	fmt.Println("Providers:")
	for _, spec := range providers.PROVIDERS {
		p := cfg.ProviderByName(spec.Name)
		if p == nil {
			continue
		}
		label := spec.Label()
		switch {
		case spec.IsLocal:
			if p.APIBase != "" {
				fmt.Printf("  %-20s ✓ %s\n", label, p.APIBase)
			} else {
				fmt.Printf("  %-20s (not set)\n", label)
			}
		default:
			if p.APIKey != "" {
				fmt.Printf("  %-20s ✓\n", label)
			} else {
				fmt.Printf("  %-20s (not set)\n", label)
			}
		}
	}
	return nil
}
