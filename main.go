package main

import (
	_ "git.handmade.network/hmn/forumwiki/src/admintools"
	"git.handmade.network/hmn/forumwiki/src/website"
)

func main() {
	website.WebsiteCommand.Execute()
}
