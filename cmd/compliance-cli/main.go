package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fpang/compliance-media-cli/internal/api"
	"github.com/fpang/compliance-media-cli/internal/auth"
	"github.com/fpang/compliance-media-cli/internal/batch"
	"github.com/fpang/compliance-media-cli/internal/config"
	"github.com/fpang/compliance-media-cli/internal/filehandler"
	"github.com/fpang/compliance-media-cli/internal/logging"
	"github.com/fpang/compliance-media-cli/internal/report"
	"github.com/fpang/compliance-media-cli/internal/stream"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// CLI flags
var (
	serverFlag      string
	usernameFlag    string
	passwordFlag    string
	brandFlag         string
	messageFlag       string
	concurrencyFlag   int
	videoURLFlag      string
	reportDirFlag     string
	analysisModesFlag []string
)

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "compliance-cli [files...]",
	Short: "AI-powered brand compliance checks for images and videos",
	Long: `Compliance CLI submits images and videos to the compliance-analysis service
and streams the analysis back live: each reasoning step appears as it happens,
followed by the final compliance verdict.

Multiple files are processed as a batch with bounded concurrency. Video files
are first uploaded to the storage endpoint and then analyzed by reference.

Examples:
  compliance-cli --server https://api.example.com --brand "Acme" ad.jpg
  compliance-cli -b "Acme" -m "focus on logo usage" banner.png spot.mp4
  compliance-cli --concurrency 1 *.jpg              # strictly sequential
  compliance-cli --video-url https://cdn.example.com/spot.mp4 -b "Acme"
  compliance-cli --report-dir ./reports campaign/*.png`,
	Run: runMain,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverFlag, "server", "s", "", "Base URL of the compliance service (or COMPLIANCE_SERVER_URL)")
	rootCmd.PersistentFlags().StringVarP(&usernameFlag, "username", "u", "", "Username for the token endpoint (or COMPLIANCE_USERNAME)")
	rootCmd.PersistentFlags().StringVarP(&passwordFlag, "password", "p", "", "Password for the token endpoint (or COMPLIANCE_PASSWORD)")
	rootCmd.Flags().StringVarP(&brandFlag, "brand", "b", "", "Brand name the submissions are checked against")
	rootCmd.Flags().StringVarP(&messageFlag, "message", "m", "", "Optional instruction sent with each check")
	rootCmd.Flags().IntVarP(&concurrencyFlag, "concurrency", "c", config.DefaultConcurrency, "Maximum simultaneous analysis streams (1 = sequential)")
	rootCmd.Flags().StringVar(&videoURLFlag, "video-url", "", "Analyze an already-uploaded video by URL instead of a local file")
	rootCmd.Flags().StringSliceVar(&analysisModesFlag, "analysis-modes", nil, "Analyses to run on videos, e.g. visual,audio (default: all)")
	rootCmd.Flags().StringVar(&reportDirFlag, "report-dir", "", "Directory for compressed report exports (disabled when empty)")

	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(feedbackCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runMain is the main execution logic called by Cobra.
func runMain(cmd *cobra.Command, args []string) {
	logging.Init()

	cfg := &config.Config{
		ServerURL:   serverFlag,
		Username:    usernameFlag,
		Password:    passwordFlag,
		Brand:         brandFlag,
		Message:       messageFlag,
		AnalysisModes: analysisModesFlag,
		Concurrency:   concurrencyFlag,
		ReportDir:     reportDirFlag,
	}
	cfg.FromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	if len(args) == 0 && videoURLFlag == "" {
		log.Fatal().Msg("No media files given. Pass file paths or --video-url")
	}

	ctx := context.Background()
	client := mustLogin(ctx, cfg)

	// Load and validate every file before opening any stream.
	var mediaFiles []*filehandler.MediaFile
	for _, path := range args {
		mf, err := filehandler.LoadMediaFile(path)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("Failed to load media file")
		}
		mediaFiles = append(mediaFiles, mf)
	}

	var submissions []batch.Submission
	for _, mf := range mediaFiles {
		displayHeader(mf)

		sub := batch.Submission{
			FilePath:      mf.Path,
			IsVideo:       mf.IsVideo,
			Brand:         cfg.Brand,
			Message:       cfg.Message,
			AnalysisModes: cfg.AnalysisModes,
		}

		if !mf.IsVideo {
			if preview, err := filehandler.PreviewDataURL(mf, filehandler.DefaultPreviewMaxDimension); err != nil {
				log.Warn().Err(err).Str("path", mf.Path).Msg("Preview generation failed")
			} else {
				sub.Preview = preview
			}
		}

		// Videos go up to storage first; the check then references the URL.
		if mf.IsVideo {
			fmt.Println("⏳ Uploading video to storage...")
			url, err := client.UploadVideo(ctx, mf.Path)
			if err != nil {
				log.Fatal().Err(err).Str("path", mf.Path).Msg("Video upload failed")
			}
			sub.VideoURL = url
		}

		submissions = append(submissions, sub)
	}

	if videoURLFlag != "" {
		submissions = append(submissions, batch.Submission{
			IsVideo:       true,
			VideoURL:      videoURLFlag,
			Brand:         cfg.Brand,
			Message:       cfg.Message,
			AnalysisModes: cfg.AnalysisModes,
		})
	}

	fmt.Println()
	fmt.Println("============================================")
	fmt.Printf("🔍 Compliance Check: %d submission(s)\n", len(submissions))
	if cfg.Brand != "" {
		fmt.Printf("Brand: %s\n", cfg.Brand)
	}
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Println("============================================")
	fmt.Println()

	sched := batch.NewScheduler(client, cfg.Concurrency, batch.Hooks{
		OnStep: printStep,
		OnDone: printResult,
	})
	sched.Submit(submissions)
	sched.Run(ctx)

	if cfg.ReportDir != "" {
		for _, snap := range sched.Snapshots() {
			path, err := report.Export(snap, cfg.ReportDir)
			if err != nil {
				log.Warn().Err(err).Str("file", snap.FilePath).Msg("Report export failed")
				continue
			}
			fmt.Printf("📄 Report saved: %s\n", path)
		}
	}
}

// mustLogin resolves credentials, validates them against the token endpoint,
// and returns an API client. Auth failures are fatal before any stream opens.
func mustLogin(ctx context.Context, cfg *config.Config) *api.Client {
	if cfg.Username == "" {
		cfg.Username = promptLine("Username: ")
	}
	if cfg.Password == "" {
		cfg.Password = promptLine("Password: ")
	}

	authClient := auth.NewClient(cfg.ServerURL)
	provider := auth.NewTokenProvider(authClient, cfg.Username, cfg.Password)

	if _, err := provider(ctx); err != nil {
		handleAuthError(err)
	}
	log.Info().Str("server", cfg.ServerURL).Msg("Login successful - ready for operations")

	return api.NewClient(cfg.ServerURL, provider)
}

// promptLine reads one trimmed line from stdin.
func promptLine(label string) string {
	fmt.Print(label)
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read input")
		return ""
	}
	return strings.TrimSpace(input)
}

// displayHeader prints the per-file section with extracted metadata.
func displayHeader(mf *filehandler.MediaFile) {
	emoji := "📸"
	if mf.IsVideo {
		emoji = "🎬"
	}

	fmt.Println()
	fmt.Println("--------------------------------------------")
	fmt.Printf("%s %s\n", emoji, filepath.Base(mf.Path))
	fmt.Printf("Size: %.2f MB\n", float64(mf.Size)/(1024*1024))
	fmt.Printf("Type: %s\n", mf.MIMEType)

	if mf.Metadata != nil {
		m := mf.Metadata
		if m.HasGPS {
			fmt.Printf("GPS: %.6f, %.6f\n", m.Latitude, m.Longitude)
		}
		if m.HasDate {
			fmt.Printf("Date: %s\n", m.DateTaken.Format("Monday, January 2, 2006 at 3:04 PM"))
		}
		if m.CameraMake != "" || m.CameraModel != "" {
			fmt.Printf("Camera: %s %s\n", m.CameraMake, m.CameraModel)
		}
	}

	fmt.Println("--------------------------------------------")
}

// printStep renders one live step update.
func printStep(sessionID string, step stream.Step) {
	if step.Kind == stream.KindTool {
		if step.TaskDetail != "" {
			fmt.Printf("   🔧 [%s] %s\n", shortID(sessionID), step.TaskDetail)
		}
		return
	}
	fmt.Printf("   💬 [%s] %s\n", shortID(sessionID), lastLine(step.Content))
}

// printResult renders a session's terminal state.
func printResult(snap batch.Snapshot) {
	name := filepath.Base(snap.FilePath)
	if snap.FilePath == "" {
		name = "remote video"
	}

	fmt.Println()
	if snap.Status == batch.StatusError {
		fmt.Printf("❌ %s failed\n", name)
	} else {
		fmt.Printf("✅ %s complete", name)
		if snap.IsVideo && snap.ElapsedSeconds > 0 {
			fmt.Printf(" (%ds)", snap.ElapsedSeconds)
		}
		fmt.Println()
	}
	fmt.Println("============================================")
	fmt.Println(report.Render(snap))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// lastLine trims a growing text step to its most recent line so live output
// stays one line per update.
func lastLine(content string) string {
	content = strings.TrimRight(content, "\n")
	if idx := strings.LastIndex(content, "\n"); idx >= 0 {
		content = content[idx+1:]
	}
	if len(content) > 100 {
		content = "..." + content[len(content)-100:]
	}
	return content
}

// handleAuthError processes authentication errors and exits with appropriate messaging.
func handleAuthError(err error) {
	var valErr *auth.ValidationError
	if errors.As(err, &valErr) {
		switch valErr.Type {
		case auth.ErrTypeNoCredentials:
			log.Fatal().Msg("No credentials configured. Set COMPLIANCE_USERNAME and COMPLIANCE_PASSWORD or pass --username/--password")
		case auth.ErrTypeInvalidCredentials:
			log.Fatal().Err(err).Msg("Invalid credentials. Please check your username and password")
		case auth.ErrTypeNetwork:
			log.Fatal().Err(err).Msg("Network error. Please check the server URL and your connection")
		default:
			log.Fatal().Err(err).Msg("Login failed")
		}
	}
	log.Fatal().Err(err).Msg("Unexpected error during login")
}
