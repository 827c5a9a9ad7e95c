package website

import (
	"context"
	"os"
	"os/signal"
	"time"

	"git.handmade.network/hmn/forumwiki/src/auth"
	"git.handmade.network/hmn/forumwiki/src/config"
	"git.handmade.network/hmn/forumwiki/src/jobs"
	"git.handmade.network/hmn/forumwiki/src/logging"
	"github.com/spf13/cobra"
)

var WebsiteCommand = &cobra.Command{
	Use:   "forumwiki",
	Short: "Run the forum and wiki background worker",
	Run: func(cmd *cobra.Command, args []string) {
		defer logging.LogPanics(nil)
		logging.Info().Str("env", string(config.Config.Env)).Msg("Hello, forumwiki!")

		startupCtx, cancelStartup := signal.NotifyContext(context.Background(), os.Interrupt)
		services, err := OpenServices(startupCtx, config.Config)
		cancelStartup()
		if err != nil {
			logging.Fatal().Err(err).Msg("failed to start up")
		}
		defer services.Close()

		backgroundJobs := jobs.Jobs{
			sessionCleanupJob(services),
			meiliMonitorJob(services),
		}

		// Wait for SIGINT and trigger graceful shutdown
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt)
		<-signals // First SIGINT (start shutdown)
		logging.Info().Msg("Shutting down")

		done := make(chan struct{})
		go func() {
			logging.Info().Msg("Shutting down background jobs...")
			unfinished := backgroundJobs.CancelAndWait(10 * time.Second)
			if len(unfinished) == 0 {
				logging.Info().Msg("Background jobs closed gracefully")
			} else {
				logging.Warn().Strs("Unfinished", unfinished).Msg("Background jobs did not finish by the deadline")
			}
			close(done)
		}()

		select {
		case <-done:
		case <-signals: // Second SIGINT (force quit)
			logging.Warn().Strs("Unfinished background jobs", backgroundJobs.ListUnfinished()).Msg("Forcibly killed the worker")
			os.Exit(1)
		}
	},
}

// Redis expires sessions by itself, and without a TTL nothing ever expires.
func sessionCleanupJob(s *Services) *jobs.Job {
	if _, ok := s.Sessions.(*auth.PgSessionStore); !ok || config.Config.Sessions.TTL <= 0 {
		return jobs.Noop()
	}
	return auth.PeriodicallyDeleteExpiredSessions(s.Conn)
}

func meiliMonitorJob(s *Services) *jobs.Job {
	if s.Search.Meili == nil {
		logging.Info().Msg("No Meilisearch URL was provided, so article search uses Postgres only.")
		return jobs.Noop()
	}
	return s.Search.Meili.Monitor()
}
