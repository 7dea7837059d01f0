package main

import (
	"os"
	"strings"

	"github.com/fgeck/streamlit-waker/internal/config"
	"github.com/fgeck/streamlit-waker/internal/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "dev"

	// Configuration flags.
	configFile string
	appURL     string
	verbose    bool
	quiet      bool
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "streamlit-waker",
	Short: "Keep a Streamlit Community Cloud app from sleeping",
	Long: `streamlit-waker opens a Streamlit app in Chromium and, if the app has been
put to sleep, clicks the "Yes, get this app back up!" button and checks that the
app came back.

The target is read from STREAMLIT_APP_URL. When GITHUB_ACTIONS is set the browser
runs headless without sandbox. Use as a one-shot command with an external
scheduler (cron, GitHub Actions schedule, systemd timer, etc.)`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (optional, environment is used otherwise)")
	rootCmd.PersistentFlags().StringVarP(&appURL, "url", "u", "", "app URL (overrides "+config.EnvAppURL+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose (debug) output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "enable quiet mode (errors only)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output logs in JSON format")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}

func setupLogging() {
	// Set output format
	if jsonOutput {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
		output.FormatLevel = func(i interface{}) string {
			if s, ok := i.(string); ok {
				return strings.ToUpper(s)
			}
			return ""
		}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set log level
	switch {
	case quiet:
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case verbose:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// loadConfig reads the config file if one was given, the environment otherwise.
func loadConfig() (*models.AppConfig, error) {
	parser := config.NewParser()
	if appURL != "" {
		parser.SetAppURL(appURL)
	}

	if configFile != "" {
		return parser.LoadFile(configFile)
	}
	return parser.LoadEnv()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
