package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/choigod1023/american-stock-news-discord-bot/internal/infra"
)

const (
	// DefaultDiscordBaseURL is the Discord REST API root.
	DefaultDiscordBaseURL = "https://discord.com/api/v10"
	// DefaultChannelTopic marks the channels the bot posts to.
	DefaultChannelTopic = "american_stock"

	channelCacheTTL = 10 * time.Minute
	textChannelType = 0
)

// ErrNoChannels is returned when neither configuration nor discovery yields a channel.
var ErrNoChannels = errors.New("discord: no target channels")

// APIError is a non-2xx answer from the Discord API.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("discord: %s %s: HTTP %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// Discord posts messages to every target channel through the REST API.
// Receipts have the form "channel/message,channel/message".
type Discord struct {
	token    string
	baseURL  string
	topic    string
	fixed    []string
	client   *http.Client
	channels *infra.TTLCache[[]string]
	log      *slog.Logger
}

// DiscordOption configures the Discord destination.
type DiscordOption func(*Discord)

// WithChannels pins the destination to the given channel ids; discovery is skipped.
func WithChannels(ids ...string) DiscordOption {
	return func(d *Discord) { d.fixed = ids }
}

// WithChannelTopic sets the topic substring used for channel discovery.
func WithChannelTopic(topic string) DiscordOption {
	return func(d *Discord) {
		if topic != "" {
			d.topic = topic
		}
	}
}

// WithDiscordBaseURL overrides the API root.
func WithDiscordBaseURL(u string) DiscordOption {
	return func(d *Discord) { d.baseURL = strings.TrimRight(u, "/") }
}

// WithDiscordHTTPClient sets the HTTP client.
func WithDiscordHTTPClient(c *http.Client) DiscordOption {
	return func(d *Discord) { d.client = c }
}

// WithDiscordLogger sets the logger.
func WithDiscordLogger(l *slog.Logger) DiscordOption {
	return func(d *Discord) { d.log = l }
}

// NewDiscord creates a Discord destination authenticated with a bot token.
func NewDiscord(token string, opts ...DiscordOption) *Discord {
	d := &Discord{
		token:    token,
		baseURL:  DefaultDiscordBaseURL,
		topic:    DefaultChannelTopic,
		client:   infra.NewHTTPClient(15 * time.Second),
		channels: infra.NewTTLCache[[]string](channelCacheTTL),
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Name implements Destination.
func (d *Discord) Name() string { return "discord" }

// Send posts msg to every target channel. It fails only when no channel
// accepted the message.
func (d *Discord) Send(ctx context.Context, msg Message) (string, error) {
	ids, err := d.Channels(ctx)
	if err != nil {
		return "", err
	}

	var receipts []string
	var errs []error
	for _, ch := range ids {
		id, err := d.sendChannel(ctx, ch, msg)
		if err != nil {
			d.log.Warn("discord send failed", "channel", ch, "error", err)
			errs = append(errs, err)
			continue
		}
		receipts = append(receipts, ch+"/"+id)
	}
	if len(receipts) == 0 {
		return "", errors.Join(errs...)
	}
	return strings.Join(receipts, ","), nil
}

// sendChannel posts to one channel, retrying once without thumbnails when
// a card with an image is rejected.
func (d *Discord) sendChannel(ctx context.Context, channel string, msg Message) (string, error) {
	id, err := d.postMessage(ctx, channel, msg)
	if err == nil || !msg.HasThumbnail() || ctx.Err() != nil {
		return id, err
	}
	d.log.Info("retrying without thumbnail", "channel", channel, "error", err)
	return d.postMessage(ctx, channel, msg.WithoutThumbnail())
}

type discordPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

func (d *Discord) postMessage(ctx context.Context, channel string, msg Message) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	payload := discordPayload{Content: msg.Content, Embeds: msg.Embeds}
	if err := d.do(ctx, http.MethodPost, "/channels/"+channel+"/messages", payload, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// Pin pins every message named in a receipt returned by Send.
func (d *Discord) Pin(ctx context.Context, receipt string) error {
	var errs []error
	for _, part := range strings.Split(receipt, ",") {
		ch, msgID, ok := strings.Cut(part, "/")
		if !ok || ch == "" || msgID == "" {
			continue
		}
		if err := d.do(ctx, http.MethodPut, "/channels/"+ch+"/pins/"+msgID, nil, nil); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Channels returns the configured channels, or those discovered by topic.
// Discovery results are cached.
func (d *Discord) Channels(ctx context.Context) ([]string, error) {
	if len(d.fixed) > 0 {
		return d.fixed, nil
	}
	if ids, ok := d.channels.Get(d.topic); ok {
		return ids, nil
	}
	ids, err := d.discover(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no text channel topic contains %q", ErrNoChannels, d.topic)
	}
	d.channels.Set(d.topic, ids)
	d.log.Info("discovered discord channels", "topic", d.topic, "count", len(ids))
	return ids, nil
}

// Refresh drops the discovery cache.
func (d *Discord) Refresh() { d.channels.Invalidate(d.topic) }

type discordGuild struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type discordChannel struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Type  int    `json:"type"`
	Topic string `json:"topic"`
}

func (d *Discord) discover(ctx context.Context) ([]string, error) {
	var guilds []discordGuild
	if err := d.do(ctx, http.MethodGet, "/users/@me/guilds", nil, &guilds); err != nil {
		return nil, fmt.Errorf("list guilds: %w", err)
	}
	var ids []string
	for _, g := range guilds {
		var chans []discordChannel
		if err := d.do(ctx, http.MethodGet, "/guilds/"+g.ID+"/channels", nil, &chans); err != nil {
			d.log.Warn("list guild channels failed", "guild", g.Name, "error", err)
			continue
		}
		for _, c := range chans {
			if c.Type == textChannelType && strings.Contains(c.Topic, d.topic) {
				ids = append(ids, c.ID)
			}
		}
	}
	return ids, nil
}

func (d *Discord) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("discord: marshal: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bot "+d.token)
	req.Header.Set("User-Agent", "DiscordBot (https://github.com/choigod1023/american-stock-news-discord-bot, 1.0)")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("discord: decode %s: %w", path, err)
	}
	return nil
}
