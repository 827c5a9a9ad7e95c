package admintools

import (
	"fmt"
	"os"
	"time"

	"git.handmade.network/hmn/forumwiki/src/website"
	"github.com/spf13/cobra"
)

func init() {
	searchCommand := &cobra.Command{
		Use:   "search",
		Short: "Search index maintenance",
	}
	website.WebsiteCommand.AddCommand(searchCommand)

	reindexCommand := &cobra.Command{
		Use:   "reindex",
		Short: "Pushes every active wiki article to Meilisearch",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, services := openServices()
			defer services.Close()

			meili := services.Search.Meili
			if meili == nil {
				fmt.Println("No Meilisearch URL is configured, so there is nothing to reindex.")
				os.Exit(1)
			}

			// The index settings are applied on the first successful health check.
			monitor := meili.Monitor()
			defer monitor.Cancel()
			deadline := time.After(30 * time.Second)
			for !meili.Healthy() {
				select {
				case <-deadline:
					fmt.Println("Meilisearch did not become available in time.")
					os.Exit(1)
				case <-time.After(100 * time.Millisecond):
				}
			}

			n, err := services.Search.ReindexArticles(ctx)
			if err != nil {
				panic(err)
			}
			fmt.Printf("Queued %d article(s) for indexing\n", n)
		},
	}
	searchCommand.AddCommand(reindexCommand)
}
