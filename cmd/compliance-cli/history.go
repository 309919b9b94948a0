package main

import (
	"context"
	"fmt"

	"github.com/fpang/compliance-media-cli/internal/config"
	"github.com/fpang/compliance-media-cli/internal/jsonutil"
	"github.com/fpang/compliance-media-cli/internal/logging"
	"github.com/fpang/compliance-media-cli/internal/stream"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// historyCmd lists past compliance checks or shows one check's report.
var historyCmd = &cobra.Command{
	Use:   "history [check-id]",
	Short: "List past compliance checks or show one check's report",
	Long: `Without arguments, lists past compliance checks. With a check id, fetches
the stored analysis payload and renders it as a readable report. Stored
payloads come in several historical shapes; all of them normalize to the
same markdown rendering.

Examples:
  compliance-cli history
  compliance-cli history 3f2a9c`,
	Args: cobra.MaximumNArgs(1),
	Run:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) {
	logging.Init()

	cfg := &config.Config{
		ServerURL: serverFlag,
		Username:  usernameFlag,
		Password:  passwordFlag,
	}
	cfg.FromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := context.Background()
	client := mustLogin(ctx, cfg)

	if len(args) == 0 {
		items, err := client.History(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to fetch history")
		}
		if len(items) == 0 {
			fmt.Println("No compliance checks yet.")
			return
		}
		for _, item := range items {
			fmt.Printf("%-12s  %-6s  %-20s  %s  %s\n",
				item.ID, item.MediaType, item.Filename, item.Brand, item.CreatedAt)
		}
		return
	}

	detail, err := client.HistoryDetail(ctx, args[0])
	if err != nil {
		log.Fatal().Err(err).Str("id", args[0]).Msg("Failed to fetch check detail")
	}

	fmt.Println("============================================")
	fmt.Println(jsonutil.CleanMarkdown(stream.ResolveDetail(detail)))
}
