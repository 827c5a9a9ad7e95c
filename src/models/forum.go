package models

import "time"

type Section struct {
	ID   int    `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

type SubSection struct {
	ID        int    `db:"id" json:"id"`
	SectionID int    `db:"section_id" json:"sectionId"`
	Name      string `db:"name" json:"name"`
}

type ForumStructure struct {
	Sections        []Section    `json:"sections"`
	SubSections     []SubSection `json:"subSections"`
	ThreadsPerPage  int          `json:"threadsPerPage"`
	MessagesPerPage int          `json:"messagesPerPage"`
}

type Thread struct {
	ID           int       `db:"id" json:"id"`
	SubSectionID int       `db:"subsection_id" json:"subSectionId"`
	Name         string    `db:"name" json:"name"`
	Author       User      `db:"author" json:"author"`
	CreateTime   time.Time `db:"create_time" json:"creationDateTime"`

	TotalMessages       int       `db:"total_messages" json:"totalMessages"`
	LastMessageID       int       `db:"last_message_id" json:"lastMessageId"`
	LastMessageUser     User      `db:"last_user" json:"lastMessageUser"`
	LastMessageDateTime time.Time `db:"last_message_time" json:"lastMessageDateTime"`
}

type Message struct {
	ID         int        `db:"id" json:"id"`
	User       User       `db:"author" json:"user"`
	ThreadID   int        `db:"thread_id" json:"threadId"`
	CreateTime time.Time  `db:"create_time" json:"createTime"`
	UpdateTime *time.Time `db:"update_time" json:"updateTime"`
	Content    string     `db:"content" json:"content"`
}

type ThreadsQueryType int

const (
	ThreadsAll ThreadsQueryType = iota
	ThreadsBySection
	ThreadsBySubSection
)

// ID is the section or subsection id, and is ignored for ThreadsAll.
type ThreadsQuery struct {
	Type ThreadsQueryType
	ID   int
}

type ThreadsPage struct {
	Threads []*Thread `json:"threads"`
	Count   int       `json:"count"`
}

type MessagesPage struct {
	Thread   *Thread    `json:"thread"`
	Messages []*Message `json:"messages"`
}

type NewThread struct {
	SubSectionID int    `json:"subsectionId"`
	Name         string `json:"threadName"`
	Message      string `json:"message"`
}

type NewMessage struct {
	ThreadID int    `json:"threadId"`
	Message  string `json:"message"`
}

type MessageEdit struct {
	ThreadID  int    `json:"threadId"`
	MessageID int    `json:"messageId"`
	Message   string `json:"message"`
}
