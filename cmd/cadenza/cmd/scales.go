package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/cadenza/transcription/config"
)

func init() {
	rootCmd.AddCommand(scalesCmd)
}

var scalesCmd = &cobra.Command{
	Use:   "scales",
	Short: "List scales available for pitch snapping",
	Run: func(cmd *cobra.Command, args []string) {
		for _, s := range config.KnownScales() {
			fmt.Printf("%-18s %v\n", s, s.Intervals())
		}
	},
}
