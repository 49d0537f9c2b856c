package cmd

import (
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/cadenza/logging"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "cadenza",
	Short: "Audio to MIDI transcription",
	Long:  `Cadenza transcribes monophonic and polyphonic audio into MIDI notes with pitch bends.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger := logging.NewZapLogger()
		if verbose {
			logger.SetLevel(logging.DebugLevel)
		}
		logging.SetGlobalLogger(logger)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
