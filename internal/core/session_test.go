package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinEmptyClubReplaysNothing(t *testing.T) {
	h := newHarness(t)

	c := NewClient("c", 0)
	s := h.chat.NewSession(c)
	require.NoError(t, s.Handle(context.Background(), Command{Kind: CommandJoin, Credential: "token-1"}))

	initEv := nextEvent(t, c.Events)
	require.Equal(t, EventInit, initEv.Kind)
	assert.Empty(t, initEv.History)
	assert.Equal(t, "🟢 Vito#1 joined the club chat.", nextEvent(t, c.Events).Text)
	assert.Equal(t, []int64{1}, nextEvent(t, c.Events).Users)
	assert.Equal(t, StateJoined, c.State())
}

func TestJoinReplaysRecentHistoryInOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for i := 1; i <= 25; i++ {
		_, err := h.store.AppendClubMessage(ctx, 2, fmt.Sprintf("msg %d", i))
		require.NoError(t, err)
	}

	var histories [][]int64
	for _, user := range []int64{1, 3} {
		c := NewClient(fmt.Sprintf("c%d", user), 0)
		s := h.chat.NewSession(c)
		require.NoError(t, s.Handle(ctx, Command{Kind: CommandJoin, Credential: fmt.Sprintf("token-%d", user)}))

		initEv := mustEvent(t, c.Events, EventInit)
		require.Len(t, initEv.History, DefaultHistoryLimit)
		ids := make([]int64, 0, len(initEv.History))
		for _, m := range initEv.History {
			ids = append(ids, m.ID)
		}
		histories = append(histories, ids)
	}

	require.Equal(t, histories[0], histories[1])
	assert.Equal(t, int64(6), histories[0][0])
	assert.Equal(t, int64(25), histories[0][len(histories[0])-1])
}

func TestJoinHistoryFailureStillJoins(t *testing.T) {
	h := newHarness(t)
	h.store.historyErr = errors.New("disk on fire")

	_, c := h.join(t, 1)
	assert.Equal(t, StateJoined, c.State())
}

func TestJoinRejectsBadCredentials(t *testing.T) {
	cases := []struct {
		name       string
		credential string
		fallback   string
		notice     string
	}{
		{name: "missing", notice: NoticeMissingCredential},
		{name: "unknown", credential: "nope", notice: NoticeInvalidSession},
		{name: "bad fallback", fallback: "nope", notice: NoticeInvalidSession},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			_, watcher := h.join(t, 2)
			drain(watcher.Events)

			c := NewClient("c", 0)
			s := h.chat.NewSession(c)
			s.SetFallbackCredential(tc.fallback)
			err := s.Handle(context.Background(), Command{Kind: CommandJoin, Credential: tc.credential})
			require.ErrorIs(t, err, ErrHandshakeFailed)

			assert.Equal(t, tc.notice, mustEvent(t, c.Events, EventSystem).Text)
			assert.Equal(t, StateConnecting, c.State())
			noEvent(t, watcher.Events, EventSystem)
		})
	}
}

func TestJoinUsesFallbackCredential(t *testing.T) {
	h := newHarness(t)

	c := NewClient("c", 0)
	s := h.chat.NewSession(c)
	s.SetFallbackCredential("token-3")
	require.NoError(t, s.Handle(context.Background(), Command{Kind: CommandJoin}))

	mustEvent(t, c.Events, EventInit)
	assert.Equal(t, int64(3), c.UserID())
}

func TestJoinTwiceOnSameConnection(t *testing.T) {
	h := newHarness(t)
	s, c := h.join(t, 1)

	require.NoError(t, s.Handle(context.Background(), Command{Kind: CommandJoin, Credential: "token-2"}))
	assert.Equal(t, NoticeAlreadyJoined, mustEvent(t, c.Events, EventSystem).Text)
	assert.Equal(t, int64(1), c.UserID())
}

func TestMessageBeforeJoinIsIgnored(t *testing.T) {
	h := newHarness(t)
	_, watcher := h.join(t, 2)
	drain(watcher.Events)

	c := NewClient("c", 0)
	s := h.chat.NewSession(c)
	require.NoError(t, s.Handle(context.Background(), Command{Kind: CommandSendMessage, Body: "hello"}))

	noEvent(t, watcher.Events, EventNewMessage)
	select {
	case ev := <-c.Events:
		t.Fatalf("unexpected event for unjoined client: %+v", ev)
	default:
	}
	assert.Zero(t, h.store.clubCount())
}

func TestBroadcastReachesEveryone(t *testing.T) {
	h := newHarness(t)
	s1, c1 := h.join(t, 1)
	_, c2 := h.join(t, 2)

	h.say(t, s1, "  hello  ")

	for _, c := range []*Client{c1, c2} {
		ev := mustEvent(t, c.Events, EventNewMessage)
		assert.Equal(t, "hello", ev.Club.Body)
		assert.Equal(t, "Vito#1", ev.Club.ProfileName)
		assert.Equal(t, int64(1), ev.Club.UserID)
	}
	assert.Equal(t, 1, h.store.clubCount())
}

func TestBroadcastOrderIsConsistent(t *testing.T) {
	h := newHarness(t)
	s1, c1 := h.join(t, 1)
	s2, c2 := h.join(t, 2)
	_, c3 := h.join(t, 3)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			_ = s1.Handle(context.Background(), Command{Kind: CommandSendMessage, Body: fmt.Sprintf("a%d", i)})
		}
	}()
	for i := 0; i < 10; i++ {
		h.say(t, s2, fmt.Sprintf("b%d", i))
	}
	<-done

	read := func(c *Client) []int64 {
		ids := make([]int64, 0, 20)
		for len(ids) < 20 {
			ids = append(ids, mustEvent(t, c.Events, EventNewMessage).Club.ID)
		}
		return ids
	}
	first := read(c1)
	assert.Equal(t, first, read(c2))
	assert.Equal(t, first, read(c3))
}

func TestPrivateMessageReachesOnlyPair(t *testing.T) {
	h := newHarness(t)
	s1, c1 := h.join(t, 1)
	_, c2 := h.join(t, 2)
	_, c3 := h.join(t, 3)

	h.say(t, s1, "meet at the docks", 2)

	for _, c := range []*Client{c1, c2} {
		ev := mustEvent(t, c.Events, EventPrivateMessage)
		assert.Equal(t, "meet at the docks", ev.Private.Body)
		assert.Equal(t, "Vito#1", ev.Private.SenderProfileName)
		assert.Equal(t, "Sonny#2", ev.Private.RecipientProfileName)
	}
	noEvent(t, c3.Events, EventPrivateMessage)
	assert.Equal(t, 1, h.store.privateCount())
}

func TestPrivateMessageRejections(t *testing.T) {
	cases := []struct {
		name      string
		recipient int64
		notice    string
	}{
		{name: "self", recipient: 1, notice: NoticeSelfMessage},
		{name: "offline", recipient: 4, notice: "❌ Tom#4 is not online."},
		{name: "unknown", recipient: 99, notice: NoticeUnknownRecipient},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			s1, c1 := h.join(t, 1)
			_, c2 := h.join(t, 2)
			drain(c1.Events)
			drain(c2.Events)

			h.say(t, s1, "psst", tc.recipient)

			assert.Equal(t, tc.notice, mustEvent(t, c1.Events, EventSystem).Text)
			noEvent(t, c2.Events, EventPrivateMessage)
			noEvent(t, c2.Events, EventSystem)
			assert.Zero(t, h.store.privateCount())
		})
	}
}

func TestBodyValidation(t *testing.T) {
	h := newHarness(t)
	s1, c1 := h.join(t, 1)
	_, c2 := h.join(t, 2)
	drain(c1.Events)

	h.say(t, s1, "   ")
	assert.Equal(t, NoticeEmptyBody, mustEvent(t, c1.Events, EventSystem).Text)

	h.say(t, s1, strings.Repeat("ж", 501))
	assert.Equal(t, "❌ Message is too long (max 500 characters).", mustEvent(t, c1.Events, EventSystem).Text)

	noEvent(t, c2.Events, EventNewMessage)
	assert.Zero(t, h.store.clubCount())

	h.say(t, s1, strings.Repeat("ж", 500))
	mustEvent(t, c2.Events, EventNewMessage)
}

func TestStoreFailureSkipsDelivery(t *testing.T) {
	h := newHarness(t)
	s1, c1 := h.join(t, 1)
	_, c2 := h.join(t, 2)
	drain(c1.Events)
	drain(c2.Events)
	h.store.failAppends(errors.New("connection reset"))

	h.say(t, s1, "lost")
	assert.Equal(t, NoticeDeliveryFailed, mustEvent(t, c1.Events, EventSystem).Text)
	noEvent(t, c2.Events, EventNewMessage)

	h.say(t, s1, "lost too", 2)
	assert.Equal(t, NoticeDeliveryFailed, mustEvent(t, c1.Events, EventSystem).Text)
	noEvent(t, c2.Events, EventPrivateMessage)
}

func TestCooldownRejectsRapidMessages(t *testing.T) {
	h := newHarness(t, withCooldown(time.Minute))
	s1, c1 := h.join(t, 1)
	_, c2 := h.join(t, 2)
	drain(c1.Events)

	h.say(t, s1, "first")
	mustEvent(t, c2.Events, EventNewMessage)

	h.say(t, s1, "second")
	notice := mustEvent(t, c1.Events, EventSystem)
	assert.True(t, strings.HasPrefix(notice.Text, "⏳ Slow down"), notice.Text)
	noEvent(t, c2.Events, EventNewMessage)
	assert.Equal(t, 1, h.store.clubCount())
}

func TestCooldownNotChargedForRejections(t *testing.T) {
	h := newHarness(t, withCooldown(time.Minute))
	s1, c1 := h.join(t, 1)
	_, c2 := h.join(t, 2)
	drain(c1.Events)

	h.say(t, s1, "psst", 4)
	assert.Contains(t, mustEvent(t, c1.Events, EventSystem).Text, "is not online")

	h.say(t, s1, "hello")
	mustEvent(t, c2.Events, EventNewMessage)
}

func TestDuplicateJoinEvictsOlderConnection(t *testing.T) {
	h := newHarness(t)
	_, watcher := h.join(t, 2)
	oldSession, oldConn := h.join(t, 1)
	drain(watcher.Events)

	_, newConn := h.join(t, 1)
	assert.Equal(t, NoticeReplaced, mustEvent(t, oldConn.Events, EventSystem).Text)
	assert.Equal(t, StateClosed, oldConn.State())
	assert.Equal(t, []int64{1, 2}, mustEvent(t, watcher.Events, EventOnlineUsers).Users)

	oldSession.Close()
	noEvent(t, watcher.Events, EventSystem)

	online, err := h.hub.IsOnline(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, online)
	assert.Equal(t, StateJoined, newConn.State())
}

func TestCloseAnnouncesDeparture(t *testing.T) {
	h := newHarness(t)
	_, c1 := h.join(t, 1)
	s2, _ := h.join(t, 2)
	drain(c1.Events)

	s2.Close()
	assert.Equal(t, "🔴 Sonny#2 left the club chat.", mustEvent(t, c1.Events, EventSystem).Text)
	assert.Equal(t, []int64{1}, mustEvent(t, c1.Events, EventOnlineUsers).Users)

	// a second close is a no-op
	s2.Close()
	noEvent(t, c1.Events, EventSystem)
}

func TestBroadcastSurvivesSenderDisconnect(t *testing.T) {
	h := newHarness(t, withCooldown(time.Minute))
	s1, c1 := h.join(t, 1)
	_, c2 := h.join(t, 2)
	drain(c1.Events)
	drain(c2.Events)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.store.onAppend(cancel)

	require.NoError(t, s1.Handle(ctx, Command{Kind: CommandSendMessage, Body: "last words"}))
	assert.Equal(t, "last words", mustEvent(t, c2.Events, EventNewMessage).Club.Body)
	assert.Equal(t, 1, h.store.clubCount())

	// the delivered message still counts against the cooldown
	h.store.onAppend(nil)
	h.say(t, s1, "again")
	assert.True(t, strings.HasPrefix(mustEvent(t, c1.Events, EventSystem).Text, "⏳ Slow down"))
	assert.Equal(t, 1, h.store.clubCount())
}

func TestPrivateMessageSurvivesSenderDisconnect(t *testing.T) {
	h := newHarness(t)
	s1, c1 := h.join(t, 1)
	_, c2 := h.join(t, 2)
	drain(c1.Events)
	drain(c2.Events)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.store.onAppend(cancel)

	recipient := int64(2)
	require.NoError(t, s1.Handle(ctx, Command{Kind: CommandSendMessage, Body: "psst", RecipientID: &recipient}))
	assert.Equal(t, "psst", mustEvent(t, c2.Events, EventPrivateMessage).Private.Body)
	assert.Equal(t, "psst", mustEvent(t, c1.Events, EventPrivateMessage).Private.Body)
}

func TestHubStopClosesConnectingSessions(t *testing.T) {
	h := newHarness(t)

	c := NewClient("pending", 0)
	h.chat.NewSession(c)
	require.Equal(t, StateConnecting, c.State())

	h.stop()
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("connecting client not closed on hub stop")
	}
	assert.Equal(t, StateClosed, c.State())
}
