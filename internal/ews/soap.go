package ews

import (
	"encoding/xml"
	"fmt"
	"time"
)

const soapTimeLayout = "2006-01-02T15:04:05Z"

// envelope wraps a request body in the SOAP skeleton Exchange expects.
func envelope(body string) string {
	return `<?xml version="1.0" encoding="utf-8"?>` +
		`<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"` +
		` xmlns:t="http://schemas.microsoft.com/exchange/services/2006/types"` +
		` xmlns:m="http://schemas.microsoft.com/exchange/services/2006/messages">` +
		`<soap:Header><t:RequestServerVersion Version="Exchange2013_SP1"/></soap:Header>` +
		`<soap:Body>` + body + `</soap:Body></soap:Envelope>`
}

// getFolderProbeXML is a minimal request used only to validate the session.
var getFolderProbeXML = envelope(
	`<m:GetFolder><m:FolderShape><t:BaseShape>IdOnly</t:BaseShape></m:FolderShape>` +
		`<m:FolderIds><t:DistinguishedFolderId Id="inbox"/></m:FolderIds></m:GetFolder>`)

// findItemXML builds a windowed, newest-first id query against a well-known
// folder. dateField is item:DateTimeReceived for the inbox and
// item:DateTimeSent for sent items.
func findItemXML(folder, dateField string, start, end time.Time, max int) string {
	return envelope(fmt.Sprintf(
		`<m:FindItem Traversal="Shallow">`+
			`<m:ItemShape><t:BaseShape>IdOnly</t:BaseShape></m:ItemShape>`+
			`<m:IndexedPageItemView MaxEntriesReturned="%d" Offset="0" BasePoint="Beginning"/>`+
			`<m:Restriction><t:And>`+
			`<t:IsGreaterThanOrEqualTo><t:FieldURI FieldURI="%s"/>`+
			`<t:FieldURIOrConstant><t:Constant Value="%s"/></t:FieldURIOrConstant></t:IsGreaterThanOrEqualTo>`+
			`<t:IsLessThanOrEqualTo><t:FieldURI FieldURI="%s"/>`+
			`<t:FieldURIOrConstant><t:Constant Value="%s"/></t:FieldURIOrConstant></t:IsLessThanOrEqualTo>`+
			`</t:And></m:Restriction>`+
			`<m:SortOrder><t:FieldOrder Order="Descending"><t:FieldURI FieldURI="%s"/></t:FieldOrder></m:SortOrder>`+
			`<m:ParentFolderIds><t:DistinguishedFolderId Id="%s"/></m:ParentFolderIds>`+
			`</m:FindItem>`,
		max, dateField, start.UTC().Format(soapTimeLayout),
		dateField, end.UTC().Format(soapTimeLayout),
		dateField, folder))
}

// getItemXML fetches full message properties (including plain-text body and
// threading headers) for a batch of item ids.
func getItemXML(ids []itemID) string {
	items := ""
	for _, id := range ids {
		items += fmt.Sprintf(`<t:ItemId Id="%s" ChangeKey="%s"/>`, xmlEscape(id.ID), xmlEscape(id.ChangeKey))
	}
	return envelope(
		`<m:GetItem><m:ItemShape><t:BaseShape>AllProperties</t:BaseShape>` +
			`<t:BodyType>HTML</t:BodyType>` +
			`<t:AdditionalProperties><t:FieldURI FieldURI="item:TextBody"/></t:AdditionalProperties>` +
			`</m:ItemShape><m:ItemIds>` + items + `</m:ItemIds></m:GetItem>`)
}

// resolveNamesXML builds a GAL lookup for one address.
func resolveNamesXML(email string) string {
	return envelope(
		`<m:ResolveNames ReturnFullContactData="true" SearchScope="ActiveDirectory">` +
			`<m:UnresolvedEntry>` + xmlEscape(email) + `</m:UnresolvedEntry></m:ResolveNames>`)
}

func xmlEscape(s string) string {
	var buf []byte
	for _, r := range s {
		switch r {
		case '&':
			buf = append(buf, "&amp;"...)
		case '<':
			buf = append(buf, "&lt;"...)
		case '>':
			buf = append(buf, "&gt;"...)
		case '"':
			buf = append(buf, "&quot;"...)
		case '\'':
			buf = append(buf, "&apos;"...)
		default:
			buf = append(buf, string(r)...)
		}
	}
	return string(buf)
}

// ---- response wire types (namespaces matched by local name) ----

type itemID struct {
	ID        string `xml:"Id,attr"`
	ChangeKey string `xml:"ChangeKey,attr"`
}

type findItemResponse struct {
	Items []struct {
		ItemID itemID `xml:"ItemId"`
	} `xml:"Body>FindItemResponse>ResponseMessages>FindItemResponseMessage>RootFolder>Items>Message"`
}

type wireMailbox struct {
	Name         string `xml:"Name"`
	EmailAddress string `xml:"EmailAddress"`
}

func (w wireMailbox) toMailbox() Mailbox {
	return Mailbox{Name: w.Name, Email: w.EmailAddress}
}

type wireMessage struct {
	ItemID            itemID        `xml:"ItemId"`
	Subject           string        `xml:"Subject"`
	InternetMessageID string        `xml:"InternetMessageId"`
	InReplyTo         string        `xml:"InReplyTo"`
	Body              string        `xml:"Body"`
	TextBody          string        `xml:"TextBody"`
	DateTimeReceived  string        `xml:"DateTimeReceived"`
	DateTimeSent      string        `xml:"DateTimeSent"`
	Sender            wireMailbox   `xml:"Sender>Mailbox"`
	From              wireMailbox   `xml:"From>Mailbox"`
	To                []wireMailbox `xml:"ToRecipients>Mailbox"`
	Cc                []wireMailbox `xml:"CcRecipients>Mailbox"`
}

type getItemResponse struct {
	Messages []wireMessage `xml:"Body>GetItemResponse>ResponseMessages>GetItemResponseMessage>Items>Message"`
}

type resolveNamesResponse struct {
	Resolutions []struct {
		Mailbox wireMailbox `xml:"Mailbox"`
		Contact struct {
			DisplayName    string `xml:"DisplayName"`
			JobTitle       string `xml:"JobTitle"`
			Department     string `xml:"Department"`
			OfficeLocation string `xml:"OfficeLocation"`
			Manager        string `xml:"Manager"`
		} `xml:"Contact"`
	} `xml:"Body>ResolveNamesResponse>ResponseMessages>ResolveNamesResponseMessage>ResolutionSet>Resolution"`
}

func parseFindItem(raw []byte) ([]itemID, error) {
	var fr findItemResponse
	if err := xml.Unmarshal(raw, &fr); err != nil {
		return nil, fmt.Errorf("parse FindItem response: %w", err)
	}
	ids := make([]itemID, 0, len(fr.Items))
	for _, it := range fr.Items {
		ids = append(ids, it.ItemID)
	}
	return ids, nil
}

func parseGetItem(raw []byte) ([]wireMessage, error) {
	var gr getItemResponse
	if err := xml.Unmarshal(raw, &gr); err != nil {
		return nil, fmt.Errorf("parse GetItem response: %w", err)
	}
	return gr.Messages, nil
}

func parseXML(raw []byte, v interface{}) error {
	return xml.Unmarshal(raw, v)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse(soapTimeLayout, s); err == nil {
		return t
	}
	return time.Time{}
}
