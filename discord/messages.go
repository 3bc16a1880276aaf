package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/rate-room/ratebot/status"
)

// RecentMessages fetches the newest messages of a channel (a voice channel's built-in text chat).
func (c *Client) RecentMessages(ctx context.Context, channelID string, limit int) ([]status.Message, error) {
	msgs, err := c.s.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrapErr("fetch_messages", err)
	}
	out := make([]status.Message, 0, len(msgs))
	for _, m := range msgs {
		if m == nil {
			continue
		}
		out = append(out, toMessage(m))
	}
	return out, nil
}

func (c *Client) SendMessage(ctx context.Context, channelID, content string) (status.Message, error) {
	m, err := c.s.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	if err != nil {
		return status.Message{}, wrapErr("send_message", err)
	}
	return toMessage(m), nil
}

func (c *Client) EditMessage(ctx context.Context, channelID, messageID, content string) error {
	if _, err := c.s.ChannelMessageEdit(channelID, messageID, content, discordgo.WithContext(ctx)); err != nil {
		return wrapErr("edit_message", err)
	}
	return nil
}

func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if err := c.s.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return wrapErr("delete_message", err)
	}
	return nil
}

func toMessage(m *discordgo.Message) status.Message {
	out := status.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
		CreatedAt: m.Timestamp,
	}
	if m.EditedTimestamp != nil {
		out.EditedAt = *m.EditedTimestamp
	}
	if m.Author != nil {
		out.AuthorID = m.Author.ID
		out.AuthorBot = m.Author.Bot
	}
	return out
}
