// Package process implements the one-shot command: run the pipeline for a
// single URL and print the resulting entry as JSON.
package process

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/soundreel/soundreel-go/internal/conf"
	"github.com/soundreel/soundreel-go/internal/entry"
	"github.com/soundreel/soundreel-go/internal/runtime"
)

// Command creates the process command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "process [url]",
		Short: "Process a single post URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := runtime.NewApp(settings)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			outcome, err := app.Processor.Process(cmd.Context(), args[0], entry.ChannelWeb)
			if err != nil {
				return err
			}
			if outcome.AlreadyExists {
				fmt.Fprintln(os.Stderr, "url already processed, returning existing entry")
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(outcome.Entry)
		},
	}
}
