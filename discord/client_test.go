package discord

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/rate-room/ratebot/commands"
	"github.com/rate-room/ratebot/presence"
	"github.com/rate-room/ratebot/status"
	"github.com/rate-room/ratebot/testutil"
)

func newTestClient(t *testing.T) (*Client, *testutil.MockDiscordServer) {
	t.Helper()
	srv := testutil.NewMockDiscordServer(t)
	return NewWithSession(srv.Session(t), "app-1", ""), srv
}

func TestRecentMessagesConvertsPayload(t *testing.T) {
	c, srv := newTestClient(t)
	created := time.Date(2024, 10, 15, 10, 0, 0, 0, time.UTC)
	edited := created.Add(time.Minute)
	srv.Handle("GET /api/v9/channels/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusOK, []*discordgo.Message{
			{ID: "2", ChannelID: "room", Content: "hello", Timestamp: created.Add(time.Second), Author: &discordgo.User{ID: "human"}},
			{ID: "1", ChannelID: "room", Content: "rate", Timestamp: created, EditedTimestamp: &edited, Author: &discordgo.User{ID: "self", Bot: true}},
		})
	})

	msgs, err := c.RecentMessages(context.Background(), "room", 10)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages", len(msgs))
	}
	if msgs[0].AuthorBot || msgs[0].AuthorID != "human" {
		t.Errorf("first message = %+v", msgs[0])
	}
	if !msgs[1].AuthorBot || !msgs[1].EditedAt.Equal(edited) || !msgs[1].CreatedAt.Equal(created) {
		t.Errorf("second message = %+v", msgs[1])
	}
	reqs := srv.Requests()
	if len(reqs) != 1 || reqs[0].Query.Get("limit") != "10" {
		t.Errorf("requests = %+v, want one fetch with limit=10", reqs)
	}
}

func TestSendEditDelete(t *testing.T) {
	c, srv := newTestClient(t)
	srv.Handle("POST /api/v9/channels/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Content string `json:"content"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		testutil.WriteJSON(w, http.StatusOK, &discordgo.Message{ID: "new", ChannelID: r.PathValue("id"), Content: body.Content, Author: &discordgo.User{ID: "self", Bot: true}})
	})
	srv.Handle("PATCH /api/v9/channels/{id}/messages/{mid}", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusOK, &discordgo.Message{ID: r.PathValue("mid"), ChannelID: r.PathValue("id")})
	})
	srv.Handle("DELETE /api/v9/channels/{id}/messages/{mid}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("mid") == "gone" {
			testutil.WriteAPIError(w, http.StatusNotFound, discordgo.ErrCodeUnknownMessage, "Unknown Message")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	ctx := context.Background()

	m, err := c.SendMessage(ctx, "room", "Current hourly rate for this room is ||30||€.")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if m.ID != "new" || m.Content != "Current hourly rate for this room is ||30||€." || !m.AuthorBot {
		t.Errorf("sent = %+v", m)
	}
	if err := c.EditMessage(ctx, "room", "new", "x"); err != nil {
		t.Fatalf("EditMessage: %v", err)
	}
	if err := c.DeleteMessage(ctx, "room", "old"); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
	if err := c.DeleteMessage(ctx, "room", "gone"); !errors.Is(err, status.ErrGone) {
		t.Fatalf("DeleteMessage(gone) = %v, want status.ErrGone", err)
	}
	if srv.Count(http.MethodPatch, "/api/v9/channels/room/messages/new") != 1 {
		t.Error("expected one edit request")
	}
}

func TestPublishThroughClient(t *testing.T) {
	c, srv := newTestClient(t)
	base := time.Date(2024, 10, 15, 10, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	deleted := []string{}
	srv.Handle("GET /api/v9/channels/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusOK, []*discordgo.Message{
			{ID: "5", Timestamp: base.Add(5 * time.Second), Author: &discordgo.User{ID: "self", Bot: true}},
			{ID: "4", Timestamp: base.Add(4 * time.Second), Author: &discordgo.User{ID: "h2"}},
			{ID: "3", Timestamp: base.Add(3 * time.Second), Author: &discordgo.User{ID: "self", Bot: true}},
			{ID: "2", Timestamp: base.Add(2 * time.Second), Author: &discordgo.User{ID: "h1"}},
			{ID: "1", Timestamp: base.Add(1 * time.Second), Author: &discordgo.User{ID: "self", Bot: true}},
		})
	})
	srv.Handle("PATCH /api/v9/channels/{id}/messages/{mid}", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusOK, &discordgo.Message{ID: r.PathValue("mid")})
	})
	srv.Handle("DELETE /api/v9/channels/{id}/messages/{mid}", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		deleted = append(deleted, r.PathValue("mid"))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})

	m := status.NewManager(c, status.Options{HistoryLimit: 10, Currency: "€", SelfID: c.SelfID})
	res, err := m.Publish(context.Background(), "room", 30)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if res.Action != status.ActionEdited || res.MessageID != "5" || res.Deleted != 2 {
		t.Errorf("result = %+v", res)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(deleted) != 2 || deleted[0] != "3" || deleted[1] != "1" {
		t.Errorf("deleted = %v, want [3 1]", deleted)
	}
	if srv.Count(http.MethodPost, "/api/v9/channels/room/messages") != 0 {
		t.Error("no new message should be posted when a live one exists")
	}
}

func TestMembersFromState(t *testing.T) {
	c, _ := newTestClient(t)
	st := c.Session().State
	err := st.GuildAdd(&discordgo.Guild{
		ID:       "g1",
		Channels: []*discordgo.Channel{{ID: "room", GuildID: "g1", Type: discordgo.ChannelTypeGuildVoice}, {ID: "other", GuildID: "g1", Type: discordgo.ChannelTypeGuildVoice}},
		VoiceStates: []*discordgo.VoiceState{
			{UserID: "A", ChannelID: "room", GuildID: "g1"},
			{UserID: "B", ChannelID: "room", GuildID: "g1"},
			{UserID: "C", ChannelID: "other", GuildID: "g1"},
		},
	})
	if err != nil {
		t.Fatalf("GuildAdd: %v", err)
	}

	ids, err := c.Members(context.Background(), "room")
	if err != nil {
		t.Fatalf("Members: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("members = %v, want A and B", ids)
	}
	seen := map[string]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen["A"] || !seen["B"] || seen["C"] {
		t.Errorf("members = %v", ids)
	}

	if _, err := c.Members(context.Background(), "unknown"); err == nil {
		t.Error("expected error for channel missing from state")
	}
}

type recordingPresence struct {
	mu     sync.Mutex
	before []presence.VoiceState
	after  []presence.VoiceState
}

func (r *recordingPresence) HandleVoiceState(_ context.Context, before, after presence.VoiceState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.before = append(r.before, before)
	r.after = append(r.after, after)
}

type stubCommands struct {
	got   []commands.Invocation
	reply commands.Reply
}

func (s *stubCommands) Handle(_ context.Context, inv commands.Invocation) commands.Reply {
	s.got = append(s.got, inv)
	return s.reply
}

func TestVoiceStateUpdateForwardsBeforeAndAfter(t *testing.T) {
	c, _ := newTestClient(t)
	p := &recordingPresence{}
	c.presence = p

	c.onVoiceStateUpdate(c.Session(), &discordgo.VoiceStateUpdate{
		VoiceState:   &discordgo.VoiceState{UserID: "u1", GuildID: "g1", ChannelID: "b", SelfMute: true},
		BeforeUpdate: &discordgo.VoiceState{UserID: "u1", GuildID: "g1", ChannelID: "a"},
	})
	// first join: no previous state
	c.onVoiceStateUpdate(c.Session(), &discordgo.VoiceStateUpdate{
		VoiceState: &discordgo.VoiceState{UserID: "u2", GuildID: "g1", ChannelID: "a"},
	})

	if len(p.after) != 2 {
		t.Fatalf("forwarded %d events, want 2", len(p.after))
	}
	if p.before[0].ChannelID != "a" || p.after[0].ChannelID != "b" || !p.after[0].SelfMute {
		t.Errorf("first event = %+v -> %+v", p.before[0], p.after[0])
	}
	if p.before[1] != (presence.VoiceState{}) {
		t.Errorf("missing before state should be zero, got %+v", p.before[1])
	}
}

func TestInteractionDefersThenEditsReply(t *testing.T) {
	c, srv := newTestClient(t)
	srv.Handle("POST /api/v9/interactions/{id}/{token}/callback", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	var edited string
	srv.Handle("PATCH /api/v9/webhooks/{app}/{token}/messages/{mid}", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Content string `json:"content"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		edited = body.Content
		testutil.WriteJSON(w, http.StatusOK, &discordgo.Message{ID: "reply"})
	})
	cmds := &stubCommands{reply: commands.Reply{Content: "Your rate of 15 has been successfully recorded."}}
	c.commands = cmds

	c.onInteractionCreate(c.Session(), &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		ID:     "i1",
		AppID:  "app-1",
		Type:   discordgo.InteractionApplicationCommand,
		Token:  "tok",
		Member: &discordgo.Member{Nick: "Ada", User: &discordgo.User{ID: "u1", Username: "ada"}},
		Data: discordgo.ApplicationCommandInteractionData{
			Name: commands.AddRate,
			Options: []*discordgo.ApplicationCommandInteractionDataOption{
				{Name: "rate", Type: discordgo.ApplicationCommandOptionNumber, Value: 15.0},
			},
		},
	}})

	if len(cmds.got) != 1 {
		t.Fatalf("handled %d invocations", len(cmds.got))
	}
	inv := cmds.got[0]
	if inv.Name != commands.AddRate || inv.UserID != "u1" || inv.UserName != "Ada" || inv.Rate == nil || *inv.Rate != 15 {
		t.Errorf("invocation = %+v", inv)
	}
	if edited != "Your rate of 15 has been successfully recorded." {
		t.Errorf("edited reply = %q", edited)
	}
	reqs := srv.Requests()
	if len(reqs) != 2 || reqs[0].Method != http.MethodPost {
		t.Fatalf("requests = %+v, want defer then edit", reqs)
	}
	var deferred discordgo.InteractionResponse
	if err := json.Unmarshal(reqs[0].Body, &deferred); err != nil {
		t.Fatalf("decode defer body: %v", err)
	}
	if deferred.Type != discordgo.InteractionResponseDeferredChannelMessageWithSource || deferred.Data == nil || deferred.Data.Flags != discordgo.MessageFlagsEphemeral {
		t.Errorf("defer = %+v, want ephemeral deferred response", deferred)
	}
}

func TestInteractionSilentReplySkipsEdit(t *testing.T) {
	c, srv := newTestClient(t)
	srv.Handle("POST /api/v9/interactions/{id}/{token}/callback", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	cmds := &stubCommands{}
	c.commands = cmds

	c.onInteractionCreate(c.Session(), &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		ID:    "i2",
		AppID: "app-1",
		Type:  discordgo.InteractionApplicationCommand,
		Token: "tok",
		User:  &discordgo.User{ID: "u1", Username: "ada", GlobalName: "Ada L."},
		Data: discordgo.ApplicationCommandInteractionData{
			Name: commands.AddChannelForCalculation,
			Options: []*discordgo.ApplicationCommandInteractionDataOption{
				{Name: "channel", Type: discordgo.ApplicationCommandOptionChannel, Value: "c1"},
			},
			Resolved: &discordgo.ApplicationCommandInteractionDataResolved{
				Channels: map[string]*discordgo.Channel{"c1": {ID: "c1", Name: "standup"}},
			},
		},
	}})

	if len(cmds.got) != 1 || cmds.got[0].ChannelID != "c1" || cmds.got[0].ChannelName != "standup" || cmds.got[0].UserName != "Ada L." {
		t.Fatalf("invocations = %+v", cmds.got)
	}
	if n := len(srv.Requests()); n != 1 {
		t.Errorf("requests = %d, want only the deferral", n)
	}
}

func TestReadyTracksSelf(t *testing.T) {
	c, _ := newTestClient(t)
	if c.Ready() || c.SelfID() != "" {
		t.Fatal("client should not be ready before the gateway says so")
	}
	c.onReady(c.Session(), &discordgo.Ready{User: &discordgo.User{ID: "self", Username: "ratebot"}})
	if !c.Ready() || c.SelfID() != "self" {
		t.Errorf("ready=%v self=%q", c.Ready(), c.SelfID())
	}
	c.onDisconnect(c.Session(), &discordgo.Disconnect{})
	if c.Ready() {
		t.Error("disconnect should clear ready")
	}
}

func TestRegisterCommands(t *testing.T) {
	c, srv := newTestClient(t)
	var names []string
	srv.Handle("PUT /api/v9/applications/{app}/commands", func(w http.ResponseWriter, r *http.Request) {
		var defs []*discordgo.ApplicationCommand
		_ = json.NewDecoder(r.Body).Decode(&defs)
		for _, d := range defs {
			names = append(names, d.Name)
		}
		testutil.WriteJSON(w, http.StatusOK, defs)
	})
	if err := c.RegisterCommands(context.Background()); err != nil {
		t.Fatalf("RegisterCommands: %v", err)
	}
	if len(names) != len(commands.Definitions()) {
		t.Errorf("registered %v", names)
	}
	if err := RegisterCommands(context.Background(), c.Session(), "", ""); err == nil {
		t.Error("expected error without application id")
	}
}
