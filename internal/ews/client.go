package ews

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Client fetches mail through an injected connection manager.
type Client struct {
	conn          *Conn
	operatorEmail string // lowercased; inbox fetches are filtered to this address
	maxPerFetch   int
	logger        zerolog.Logger
}

// NewClient builds a mail source for the operator's mailbox.
func NewClient(conn *Conn, operatorEmail string, maxPerFetch int, logger zerolog.Logger) *Client {
	if maxPerFetch <= 0 {
		maxPerFetch = 50
	}
	return &Client{
		conn:          conn,
		operatorEmail: strings.ToLower(operatorEmail),
		maxPerFetch:   maxPerFetch,
		logger:        logger.With().Str("component", "ews_client").Logger(),
	}
}

// FetchInbox returns inbox messages received in [start, end] that are
// explicitly addressed (To) to the operator, newest first, capped at the
// configured maximum.
func (c *Client) FetchInbox(ctx context.Context, start, end time.Time) ([]Message, error) {
	if err := c.conn.EnsureConnected(ctx); err != nil {
		return nil, err
	}

	wires, err := c.fetchFolder(ctx, "inbox", "item:DateTimeReceived", start, end)
	if err != nil {
		return nil, err
	}

	msgs := make([]Message, 0, len(wires))
	for _, w := range wires {
		m := Message{
			MessageID:  w.InternetMessageID,
			ItemID:     w.ItemID.ID,
			ChangeKey:  w.ItemID.ChangeKey,
			Subject:    w.Subject,
			Sender:     pickSender(w),
			To:         toMailboxes(w.To),
			Cc:         toMailboxes(w.Cc),
			Body:       w.Body,
			TextBody:   w.TextBody,
			ReceivedAt: parseTime(w.DateTimeReceived),
		}
		if !c.addressedToOperator(m.To) {
			continue
		}
		msgs = append(msgs, m)
	}

	c.logger.Debug().Int("fetched", len(wires)).Int("for_operator", len(msgs)).Msg("inbox fetch")
	return msgs, nil
}

// FetchSent returns sent items from [start, end], newest first, including
// the in-reply-to threading pointer.
func (c *Client) FetchSent(ctx context.Context, start, end time.Time) ([]SentMessage, error) {
	if err := c.conn.EnsureConnected(ctx); err != nil {
		return nil, err
	}

	wires, err := c.fetchFolder(ctx, "sentitems", "item:DateTimeSent", start, end)
	if err != nil {
		return nil, err
	}

	msgs := make([]SentMessage, 0, len(wires))
	for _, w := range wires {
		msgs = append(msgs, SentMessage{
			MessageID: w.InternetMessageID,
			InReplyTo: w.InReplyTo,
			Subject:   w.Subject,
			To:        toMailboxes(w.To),
			Cc:        toMailboxes(w.Cc),
			Body:      w.Body,
			TextBody:  w.TextBody,
			SentAt:    parseTime(w.DateTimeSent),
		})
	}
	return msgs, nil
}

// ResolveName resolves organizational metadata for an address from the GAL.
// Returns nil on any failure or when the directory has nothing; callers
// tolerate that.
func (c *Client) ResolveName(ctx context.Context, email string) *DirectoryEntry {
	raw, err := c.conn.call(ctx, resolveNamesXML(email))
	if err != nil {
		c.logger.Warn().Err(err).Str("email", email).Msg("directory lookup failed")
		return nil
	}

	var rr resolveNamesResponse
	if err := parseXML(raw, &rr); err != nil {
		c.logger.Warn().Err(err).Str("email", email).Msg("directory response unparseable")
		return nil
	}
	if len(rr.Resolutions) == 0 {
		return nil
	}

	res := rr.Resolutions[0]
	entry := &DirectoryEntry{
		Name:       res.Contact.DisplayName,
		JobTitle:   res.Contact.JobTitle,
		Department: res.Contact.Department,
		Office:     res.Contact.OfficeLocation,
		Manager:    res.Contact.Manager,
	}
	if entry.Name == "" {
		entry.Name = res.Mailbox.Name
	}
	if *entry == (DirectoryEntry{}) {
		return nil
	}
	return entry
}

func (c *Client) fetchFolder(ctx context.Context, folder, dateField string, start, end time.Time) ([]wireMessage, error) {
	raw, err := c.conn.call(ctx, findItemXML(folder, dateField, start, end, c.maxPerFetch))
	if err != nil {
		return nil, err
	}
	ids, err := parseFindItem(raw)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	raw, err = c.conn.call(ctx, getItemXML(ids))
	if err != nil {
		return nil, err
	}
	return parseGetItem(raw)
}

func (c *Client) addressedToOperator(to []Mailbox) bool {
	for _, r := range to {
		if strings.ToLower(r.Email) == c.operatorEmail {
			return true
		}
	}
	return false
}

func pickSender(w wireMessage) Mailbox {
	if w.Sender.EmailAddress != "" {
		return w.Sender.toMailbox()
	}
	return w.From.toMailbox()
}

func toMailboxes(ws []wireMailbox) []Mailbox {
	if len(ws) == 0 {
		return nil
	}
	out := make([]Mailbox, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.toMailbox())
	}
	return out
}
