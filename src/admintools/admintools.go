package admintools

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"git.handmade.network/hmn/forumwiki/src/auth"
	"git.handmade.network/hmn/forumwiki/src/config"
	"git.handmade.network/hmn/forumwiki/src/db"
	"git.handmade.network/hmn/forumwiki/src/forum"
	"git.handmade.network/hmn/forumwiki/src/logging"
	"git.handmade.network/hmn/forumwiki/src/models"
	"git.handmade.network/hmn/forumwiki/src/oops"
	"git.handmade.network/hmn/forumwiki/src/website"
	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"
)

func init() {
	adminCommand := &cobra.Command{
		Use:   "admin",
		Short: "Miscellaneous admin commands",
	}
	website.WebsiteCommand.AddCommand(adminCommand)

	createUserCommand := &cobra.Command{
		Use:   "createuser [username] [password]",
		Short: "Creates a new user with the given password",
		Run: func(cmd *cobra.Command, args []string) {
			requireArgs(cmd, args, 2, "You must provide a username and a password.")
			username, password := args[0], args[1]

			ctx, conn := connect()
			defer conn.Close(ctx)

			ok, err := auth.SignUp(ctx, conn, conn, username, hex.EncodeToString([]byte(password)))
			if err != nil {
				panic(err)
			}
			if !ok {
				fmt.Printf("%s already exists. Please pick a different username.\n\n", username)
				os.Exit(1)
			}

			fmt.Printf("New user added!\nUsername: %s\nPassword: %s\n", username, password)
		},
	}
	adminCommand.AddCommand(createUserCommand)

	setPasswordCommand := &cobra.Command{
		Use:   "setpassword [username] [new password]",
		Short: "Replace a user's password",
		Run: func(cmd *cobra.Command, args []string) {
			requireArgs(cmd, args, 2, "You must provide a username and a password.")
			username, password := args[0], args[1]

			ctx, conn := connect()
			defer conn.Close(ctx)

			user := mustFindUser(ctx, conn, username)
			err := auth.SaveUserPassword(ctx, conn, user, hex.EncodeToString([]byte(password)))
			if err != nil {
				panic(err)
			}

			fmt.Printf("Successfully updated password for '%s'\n", user.Name)
		},
	}
	adminCommand.AddCommand(setPasswordCommand)

	createSectionCommand := &cobra.Command{
		Use:   "createsection [name]",
		Short: "Creates a forum section",
		Run: func(cmd *cobra.Command, args []string) {
			requireArgs(cmd, args, 1, "You must provide a section name.")

			ctx, conn := connect()
			defer conn.Close(ctx)

			id, err := forum.CreateSection(ctx, conn, args[0])
			if err != nil {
				panic(err)
			}
			fmt.Printf("Created section %d\n", id)
		},
	}
	adminCommand.AddCommand(createSectionCommand)

	createSubsectionCommand := &cobra.Command{
		Use:   "createsubsection [section id] [name]",
		Short: "Creates a forum subsection inside a section",
		Run: func(cmd *cobra.Command, args []string) {
			requireArgs(cmd, args, 2, "You must provide a section id and a subsection name.")
			sectionID := parseID(args[0], "section")

			ctx, conn := connect()
			defer conn.Close(ctx)

			id, err := forum.CreateSubsection(ctx, conn, sectionID, args[1])
			exitOnKind(err, oops.KindCreate, "Section %d does not exist.", sectionID)
			fmt.Printf("Created subsection %d\n", id)
		},
	}
	adminCommand.AddCommand(createSubsectionCommand)

	renameSectionCommand := &cobra.Command{
		Use:   "renamesection [section id] [name]",
		Short: "Renames a forum section",
		Run: func(cmd *cobra.Command, args []string) {
			requireArgs(cmd, args, 2, "You must provide a section id and a name.")
			sectionID := parseID(args[0], "section")

			ctx, conn := connect()
			defer conn.Close(ctx)

			err := forum.RenameSection(ctx, conn, sectionID, args[1])
			exitOnKind(err, oops.KindSectionNotFound, "Section %d does not exist.", sectionID)
			fmt.Printf("Renamed section %d\n", sectionID)
		},
	}
	adminCommand.AddCommand(renameSectionCommand)

	renameSubsectionCommand := &cobra.Command{
		Use:   "renamesubsection [subsection id] [name]",
		Short: "Renames a forum subsection",
		Run: func(cmd *cobra.Command, args []string) {
			requireArgs(cmd, args, 2, "You must provide a subsection id and a name.")
			subsectionID := parseID(args[0], "subsection")

			ctx, conn := connect()
			defer conn.Close(ctx)

			err := forum.RenameSubsection(ctx, conn, subsectionID, args[1])
			exitOnKind(err, oops.KindSubsectionNotFound, "Subsection %d does not exist.", subsectionID)
			fmt.Printf("Renamed subsection %d\n", subsectionID)
		},
	}
	adminCommand.AddCommand(renameSubsectionCommand)

	moveSubsectionCommand := &cobra.Command{
		Use:   "movesubsection [subsection id] [section id]",
		Short: "Moves a forum subsection to another section",
		Run: func(cmd *cobra.Command, args []string) {
			requireArgs(cmd, args, 2, "You must provide a subsection id and a section id.")
			subsectionID := parseID(args[0], "subsection")
			sectionID := parseID(args[1], "section")

			ctx, conn := connect()
			defer conn.Close(ctx)

			err := forum.MoveSubsection(ctx, conn, subsectionID, sectionID)
			exitOnKind(err, oops.KindSubsectionNotFound, "Subsection %d or section %d does not exist.", subsectionID, sectionID)
			fmt.Printf("Moved subsection %d to section %d\n", subsectionID, sectionID)
		},
	}
	adminCommand.AddCommand(moveSubsectionCommand)

	deleteSectionCommand := &cobra.Command{
		Use:   "deletesection [section id]",
		Short: "Deletes a forum section, hiding its subsections and threads",
		Run: func(cmd *cobra.Command, args []string) {
			requireArgs(cmd, args, 1, "You must provide a section id.")
			sectionID := parseID(args[0], "section")

			ctx, conn := connect()
			defer conn.Close(ctx)

			if err := forum.DeleteSection(ctx, conn, sectionID); err != nil {
				panic(err)
			}
			fmt.Printf("Deleted section %d\n", sectionID)
		},
	}
	adminCommand.AddCommand(deleteSectionCommand)

	deleteSubsectionCommand := &cobra.Command{
		Use:   "deletesubsection [subsection id]",
		Short: "Deletes a forum subsection, hiding its threads",
		Run: func(cmd *cobra.Command, args []string) {
			requireArgs(cmd, args, 1, "You must provide a subsection id.")
			subsectionID := parseID(args[0], "subsection")

			ctx, conn := connect()
			defer conn.Close(ctx)

			if err := forum.DeleteSubsection(ctx, conn, subsectionID); err != nil {
				panic(err)
			}
			fmt.Printf("Deleted subsection %d\n", subsectionID)
		},
	}
	adminCommand.AddCommand(deleteSubsectionCommand)

	renameThreadCommand := &cobra.Command{
		Use:   "renamethread [thread id] [name]",
		Short: "Renames a forum thread",
		Run: func(cmd *cobra.Command, args []string) {
			requireArgs(cmd, args, 2, "You must provide a thread id and a name.")
			threadID := parseID(args[0], "thread")

			ctx, conn := connect()
			defer conn.Close(ctx)

			err := forum.RenameThread(ctx, conn, threadID, args[1])
			exitOnKind(err, oops.KindThreadNotFound, "Thread %d does not exist.", threadID)
			fmt.Printf("Renamed thread %d\n", threadID)
		},
	}
	adminCommand.AddCommand(renameThreadCommand)

	moveThreadCommand := &cobra.Command{
		Use:   "movethread [thread id] [subsection id]",
		Short: "Moves a forum thread to another subsection",
		Run: func(cmd *cobra.Command, args []string) {
			requireArgs(cmd, args, 2, "You must provide a thread id and a subsection id.")
			threadID := parseID(args[0], "thread")
			subsectionID := parseID(args[1], "subsection")

			ctx, conn := connect()
			defer conn.Close(ctx)

			err := forum.MoveThread(ctx, conn, threadID, subsectionID)
			exitOnKind(err, oops.KindThreadNotFound, "Thread %d or subsection %d does not exist.", threadID, subsectionID)
			fmt.Printf("Moved thread %d to subsection %d\n", threadID, subsectionID)
		},
	}
	adminCommand.AddCommand(moveThreadCommand)

	deleteThreadCommand := &cobra.Command{
		Use:   "deletethread [thread id]",
		Short: "Deletes a forum thread",
		Run: func(cmd *cobra.Command, args []string) {
			requireArgs(cmd, args, 1, "You must provide a thread id.")
			threadID := parseID(args[0], "thread")

			ctx, conn := connect()
			defer conn.Close(ctx)

			if err := forum.DeleteThread(ctx, conn, threadID); err != nil {
				panic(err)
			}
			fmt.Printf("Deleted thread %d\n", threadID)
		},
	}
	adminCommand.AddCommand(deleteThreadCommand)

	listSessionsCommand := &cobra.Command{
		Use:   "listsessions [username]",
		Short: "Lists a user's active sessions",
		Run: func(cmd *cobra.Command, args []string) {
			requireArgs(cmd, args, 1, "You must provide a username.")

			ctx, services := openServices()
			defer services.Close()

			user := mustFindUser(ctx, services.Conn, args[0])
			sessions, err := userSessionAdmin(services).UserSessions(ctx, user.ID)
			if err != nil {
				panic(err)
			}

			fmt.Printf("%s has %d active session(s)\n", user.Name, len(sessions))
			for _, s := range sessions {
				fmt.Println(s.Session)
			}
		},
	}
	adminCommand.AddCommand(listSessionsCommand)

	logoutAllCommand := &cobra.Command{
		Use:   "logoutall [username]",
		Short: "Removes every session of a user",
		Run: func(cmd *cobra.Command, args []string) {
			requireArgs(cmd, args, 1, "You must provide a username.")

			ctx, services := openServices()
			defer services.Close()

			user := mustFindUser(ctx, services.Conn, args[0])
			n, err := userSessionAdmin(services).RemoveUserSessions(ctx, user.ID)
			if err != nil {
				panic(err)
			}

			fmt.Printf("Removed %d session(s) of %s\n", n, user.Name)
		},
	}
	adminCommand.AddCommand(logoutAllCommand)
}

func requireArgs(cmd *cobra.Command, args []string, n int, msg string) {
	if len(args) < n {
		fmt.Printf("%s\n\n", msg)
		cmd.Usage()
		os.Exit(1)
	}
}

func parseID(s string, what string) int {
	id, err := strconv.Atoi(s)
	if err != nil {
		fmt.Printf("ERROR: bad %s id '%s'\n", what, s)
		os.Exit(1)
	}
	return id
}

func connect() (context.Context, *pgx.Conn) {
	ctx := context.Background()
	conn, err := db.NewConn(ctx)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to connect to the database")
	}
	return ctx, conn
}

func openServices() (context.Context, *website.Services) {
	ctx := context.Background()
	services, err := website.OpenServices(ctx, config.Config)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to start up")
	}
	return ctx, services
}

func userSessionAdmin(services *website.Services) auth.UserSessionAdmin {
	admin, ok := services.Sessions.(auth.UserSessionAdmin)
	if !ok {
		panic(oops.New(nil, "session store %T cannot list sessions by user", services.Sessions))
	}
	return admin
}

func mustFindUser(ctx context.Context, conn db.ConnOrTx, username string) *models.User {
	user, err := auth.FindUser(ctx, conn, username)
	if err != nil {
		panic(err)
	}
	if user == nil {
		fmt.Printf("User '%s' not found\n", username)
		os.Exit(1)
	}
	return user
}

// Exits with a message if err has the given kind, and panics on any other error.
func exitOnKind(err error, kind oops.Kind, format string, args ...any) {
	if err == nil {
		return
	}
	if oops.KindOf(err) == kind {
		fmt.Printf(format+"\n", args...)
		os.Exit(1)
	}
	panic(err)
}
