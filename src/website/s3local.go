package website

import (
	"net/http"

	"git.handmade.network/hmn/forumwiki/src/logging"
	"git.handmade.network/hmn/forumwiki/src/s3local"
	"github.com/spf13/cobra"
)

func init() {
	var addr string

	s3Command := &cobra.Command{
		Use:   "s3local [dir]",
		Short: "Run a local S3-compatible server for development",
		Run: func(cmd *cobra.Command, args []string) {
			dir := "./tmp/s3"
			if len(args) > 0 {
				dir = args[0]
			}

			server, err := s3local.New(dir)
			if err != nil {
				logging.Fatal().Err(err).Msg("failed to set up local S3")
			}

			logging.Info().Str("addr", addr).Str("dir", dir).Msg("Serving local S3")
			if err := http.ListenAndServe(addr, server); err != nil {
				logging.Fatal().Err(err).Msg("local S3 server stopped")
			}
		},
	}
	s3Command.Flags().StringVar(&addr, "addr", ":9004", "Address to listen on")

	WebsiteCommand.AddCommand(s3Command)
}
