package discord

import "context"

// Members returns the ids of everyone connected to a voice channel, read from the
// gateway state cache. No REST call is made; the cache is updated before handlers run,
// so a person who just left is already absent.
func (c *Client) Members(ctx context.Context, channelID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch, err := c.s.State.Channel(channelID)
	if err != nil {
		return nil, wrapErr("roster_channel", err)
	}
	g, err := c.s.State.Guild(ch.GuildID)
	if err != nil {
		return nil, wrapErr("roster_guild", err)
	}

	c.s.State.RLock()
	defer c.s.State.RUnlock()
	ids := make([]string, 0, len(g.VoiceStates))
	for _, vs := range g.VoiceStates {
		if vs == nil || vs.UserID == "" || vs.ChannelID != channelID {
			continue
		}
		ids = append(ids, vs.UserID)
	}
	return ids, nil
}
