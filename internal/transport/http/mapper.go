package http

import (
	"github.com/vovakirdan/clubchat-server/internal/core"
	"github.com/vovakirdan/clubchat-server/internal/proto"
	"github.com/vovakirdan/clubchat-server/internal/store"
)

func commandFromRequest(req proto.Request) (core.Command, bool) {
	switch r := req.(type) {
	case proto.Join:
		return core.Command{Kind: core.CommandJoin, Credential: r.Credential}, true
	case proto.Send:
		return core.Command{
			Kind:        core.CommandSendMessage,
			Body:        r.Body,
			RecipientID: r.RecipientID,
		}, true
	default:
		return core.Command{}, false
	}
}

func outboundFromEvent(event *core.Event) any {
	switch event.Kind {
	case core.EventInit:
		messages := make([]proto.ClubMessage, 0, len(event.History))
		for _, msg := range event.History {
			messages = append(messages, clubMessage(msg))
		}
		return proto.Init{Type: proto.OutboundTypeInit, Messages: messages}
	case core.EventNewMessage:
		return proto.NewMessage{Type: proto.OutboundTypeNewMessage, Message: clubMessage(event.Club)}
	case core.EventPrivateMessage:
		msg := event.Private
		return proto.Private{
			Type: proto.OutboundTypePrivateMessage,
			Message: proto.PrivateMessage{
				ID:                   msg.ID,
				UserID:               msg.SenderID,
				ProfileName:          msg.SenderProfileName,
				RecipientID:          msg.RecipientID,
				RecipientProfileName: msg.RecipientProfileName,
				Message:              msg.Body,
				CreatedAt:            msg.CreatedAt,
			},
		}
	case core.EventOnlineUsers:
		users := event.Users
		if users == nil {
			users = []int64{}
		}
		return proto.OnlineUsers{Type: proto.OutboundTypeOnlineUsers, Users: users}
	default:
		return proto.System{Type: proto.OutboundTypeSystem, Message: event.Text}
	}
}

func clubMessage(msg *store.ClubMessage) proto.ClubMessage {
	return proto.ClubMessage{
		ID:          msg.ID,
		UserID:      msg.UserID,
		ProfileName: msg.ProfileName,
		Message:     msg.Body,
		CreatedAt:   msg.CreatedAt,
	}
}
