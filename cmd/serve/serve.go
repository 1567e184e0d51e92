// Package serve implements the server command, running the HTTP API and
// Telegram webhook until interrupted.
package serve

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/soundreel/soundreel-go/internal/conf"
	"github.com/soundreel/soundreel-go/internal/runtime"
)

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long:  "Start the HTTP API and Telegram webhook and process submitted links until interrupted.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings.WebServer.Enabled = true

			app, err := runtime.NewApp(settings)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			return app.RunServer(cmd.Context())
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", viper.GetString("webserver.port"), "Port to listen on")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
