// Package ews is the Exchange Web Services boundary: inbox and sent-item
// fetches plus best-effort directory (GAL) resolution, spoken over SOAP.
package ews

import "time"

// Mailbox is a name/address pair on a message.
type Mailbox struct {
	Name  string
	Email string
}

// Message is one inbox item.
type Message struct {
	MessageID  string // stable internet Message-ID, the ingestion idempotency key
	ItemID     string // mutable provider location pointer
	ChangeKey  string
	Subject    string
	Sender     Mailbox
	To         []Mailbox
	Cc         []Mailbox
	Body       string // HTML body
	TextBody   string // plain-text body, preferred when present
	ReceivedAt time.Time
}

// SentMessage is one sent item, carrying the threading pointer used by the
// completion scanner.
type SentMessage struct {
	MessageID string
	InReplyTo string // Message-ID of the parent, empty for fresh sends
	Subject   string
	To        []Mailbox
	Cc        []Mailbox
	Body      string
	TextBody  string
	SentAt    time.Time
}

// DirectoryEntry is the organizational metadata the GAL holds for an address.
type DirectoryEntry struct {
	Name       string
	JobTitle   string
	Department string
	Office     string
	Manager    string
}
