// voicetask is a LiveKit voice assistant that answers briefly in
// conversation and delegates heavy generative work to an asynchronous
// batch-completion API, announcing results when they arrive.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/chriscow/voicetask/internal/config"
	"github.com/chriscow/voicetask/pkg/version"

	_ "github.com/chriscow/voicetask/pkg/plugin/energy" // register energy VAD
	_ "github.com/chriscow/voicetask/pkg/plugin/openai" // register OpenAI providers
)

var rootCmd = &cobra.Command{
	Use:   "voicetask",
	Short: "Voice assistant with batch task delegation",
	Long: `voicetask is a LiveKit voice agent that keeps spoken replies short and
offloads complex generative tasks (plans, reports, research) to an
asynchronous batch-completion API, notifying the user when results are ready.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.String())
	},
}

func setupLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if debug {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func loadConfig() (*config.Config, error) {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()
	return config.Load()
}

func main() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(devCmd)
	rootCmd.AddCommand(consoleCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
