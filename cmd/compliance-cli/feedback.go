package main

import (
	"context"
	"fmt"

	"github.com/fpang/compliance-media-cli/internal/config"
	"github.com/fpang/compliance-media-cli/internal/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// feedbackCmd submits user feedback for a completed check.
var feedbackCmd = &cobra.Command{
	Use:   "feedback <check-id> <text>",
	Short: "Submit feedback for a completed compliance check",
	Args:  cobra.ExactArgs(2),
	Run:   runFeedback,
}

func runFeedback(cmd *cobra.Command, args []string) {
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

	if err := client.SubmitFeedback(ctx, args[0], args[1]); err != nil {
		log.Fatal().Err(err).Str("id", args[0]).Msg("Failed to submit feedback")
	}
	fmt.Println("✅ Feedback submitted")
}
