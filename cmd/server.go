package cmd

import (
	"os"

	"github.com/inkwell-blog/apiserver/config"
	"github.com/inkwell-blog/apiserver/internal/server"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Starts the inkwell backend server",
	Long: `Starts the inkwell backend server. Usage:

	inkwell server
`,
	Run: func(cmd *cobra.Command, args []string) {
		log := zerolog.New(os.Stderr).With().Timestamp().Logger()
		cfg := config.LoadConfig()

		srv, err := server.New(cmd.Context(), cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}

		log.Info().Int("port", cfg.ServerPort).Msg("server listening")
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("server error")
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
