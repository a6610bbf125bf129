// Package notify builds chat cards and delivers them to destinations.
package notify

import (
	"context"
	"errors"
)

// Kinds of message, carried to destinations that care (the websocket stream).
const (
	KindNews   = "news"
	KindDigest = "digest"
	KindReport = "report"
)

// ErrNotDelivered is returned by Dispatch when no destination accepted a message.
var ErrNotDelivered = errors.New("notify: message not delivered to any destination")

// Message is one chat post: a short content line plus embeds.
type Message struct {
	Kind    string  `json:"kind,omitempty"`
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
	Pin     bool    `json:"pin,omitempty"`
}

// Embed is a rich card, shaped like a Discord embed object.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Color       int          `json:"color,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Author      *EmbedAuthor `json:"author,omitempty"`
	Fields      []Field      `json:"fields,omitempty"`
	Thumbnail   *EmbedImage  `json:"thumbnail,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
}

// EmbedAuthor is the author line of an embed.
type EmbedAuthor struct {
	Name string `json:"name"`
}

// EmbedImage is an image reference.
type EmbedImage struct {
	URL string `json:"url"`
}

// EmbedFooter is the footer line of an embed.
type EmbedFooter struct {
	Text string `json:"text"`
}

// Field is a name/value pair inside an embed.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// HasThumbnail reports whether any embed carries a thumbnail.
func (m Message) HasThumbnail() bool {
	for _, e := range m.Embeds {
		if e.Thumbnail != nil {
			return true
		}
	}
	return false
}

// WithoutThumbnail returns a copy of m with every thumbnail removed.
func (m Message) WithoutThumbnail() Message {
	embeds := make([]Embed, len(m.Embeds))
	copy(embeds, m.Embeds)
	for i := range embeds {
		embeds[i].Thumbnail = nil
	}
	m.Embeds = embeds
	return m
}

// Destination is a place messages are delivered to. Send returns an opaque
// receipt that Pin accepts.
type Destination interface {
	Name() string
	Send(ctx context.Context, msg Message) (string, error)
	Pin(ctx context.Context, receipt string) error
}
