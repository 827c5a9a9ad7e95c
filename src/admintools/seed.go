package admintools

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/rand"
	"strings"

	"git.handmade.network/hmn/forumwiki/src/auth"
	"git.handmade.network/hmn/forumwiki/src/db"
	"git.handmade.network/hmn/forumwiki/src/forum"
	"git.handmade.network/hmn/forumwiki/src/models"
	"git.handmade.network/hmn/forumwiki/src/search"
	"git.handmade.network/hmn/forumwiki/src/website"
	"git.handmade.network/hmn/forumwiki/src/wiki"
	lorem "github.com/HandmadeNetwork/golorem"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func init() {
	seedCommand := &cobra.Command{
		Use:   "seed",
		Short: "Fills the database with sample users, forum threads and wiki articles",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, services := openServices()
			defer services.Close()

			SampleSeed(ctx, services.Search)
		},
	}
	website.WebsiteCommand.AddCommand(seedCommand)
}

const seedPassword = "password"

// Seeds the database with sample data for local dev. Running it twice adds
// a second batch of forum and wiki content; the users are reused. Articles
// are written through s so a configured Meilisearch index gets them too.
func SampleSeed(ctx context.Context, s *search.Service) {
	conn := s.Conn

	fmt.Printf("Creating users (all with password %q)...\n", seedPassword)
	alice := seedUser(ctx, conn, "alice")
	bob := seedUser(ctx, conn, "bob")
	charlie := seedUser(ctx, conn, "charlie")
	users := []*models.User{alice, bob, charlie}

	fmt.Println("Creating forum sections...")
	for range 2 {
		sectionID, err := forum.CreateSection(ctx, conn, title(2))
		if err != nil {
			panic(err)
		}
		for range 3 {
			subsectionID, err := forum.CreateSubsection(ctx, conn, sectionID, title(3))
			if err != nil {
				panic(err)
			}
			seedThreads(ctx, conn, subsectionID, users)
		}
	}

	fmt.Println("Creating wiki articles...")
	for i := range 8 {
		author := randomUser(users)
		visibility := models.VisibilityPublic
		if i%4 == 3 {
			visibility = models.VisibilityPrivate
		}

		name := title(3)
		path := "/" + strings.ReplaceAll(strings.ToLower(name), " ", "-") + "-" + uuid.NewString()[:8]
		id, err := s.CreateArticle(ctx, models.ArticleInput{
			Path:       path,
			Name:       name,
			Content:    paragraphs(3),
			Visibility: visibility,
		}, author)
		if err != nil {
			panic(err)
		}

		for range rand.Intn(3) {
			_, err := s.UpdateArticle(ctx, id, models.ArticleInput{
				Path:    path,
				Name:    name,
				Content: paragraphs(3),
			}, author)
			if err != nil {
				panic(err)
			}
		}

		for range rand.Intn(4) {
			_, err := wiki.PostComment(ctx, conn, models.NewComment{
				ArticleID: id,
				Message:   lorem.Sentence(4, 20),
			}, author)
			if err != nil {
				panic(err)
			}
		}

		if err := wiki.AddFavorite(ctx, conn, randomUser(users), id); err != nil {
			panic(err)
		}
	}

	fmt.Println("Done!")
}

func seedThreads(ctx context.Context, conn db.ConnOrTx, subsectionID int, users []*models.User) {
	for range 1 + rand.Intn(6) {
		threadID, err := forum.CreateThread(ctx, conn, models.NewThread{
			SubSectionID: subsectionID,
			Name:         strings.TrimSuffix(lorem.Sentence(3, 8), "."),
			Message:      paragraphs(2),
		}, randomUser(users))
		if err != nil {
			panic(err)
		}

		for range rand.Intn(8) {
			_, err := forum.PostMessage(ctx, conn, models.NewMessage{
				ThreadID: threadID,
				Message:  paragraphs(1 + rand.Intn(2)),
			}, randomUser(users))
			if err != nil {
				panic(err)
			}
		}
	}
}

func seedUser(ctx context.Context, conn db.ConnOrTx, name string) *models.User {
	if _, err := auth.SignUp(ctx, conn, conn, name, hex.EncodeToString([]byte(seedPassword))); err != nil {
		panic(err)
	}
	user, err := auth.FindUser(ctx, conn, name)
	if err != nil {
		panic(err)
	}
	return user
}

func randomUser(users []*models.User) *models.User {
	return users[rand.Intn(len(users))]
}

func title(words int) string {
	parts := make([]string, words)
	for i := range parts {
		w := lorem.Word(3, 10)
		parts[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(parts, " ")
}

func paragraphs(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = lorem.Paragraph(1, 4)
	}
	return strings.Join(parts, "\n\n")
}
