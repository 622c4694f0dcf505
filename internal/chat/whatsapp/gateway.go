// Package whatsapp implements the chat.Gateway port over whatsmeow.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/skip2/go-qrcode"

	_ "modernc.org/sqlite"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"gastos/internal/cache"
	"gastos/internal/chat"
	"gastos/internal/core"
	applog "gastos/internal/log"
)

// Media references are only downloadable while the proto that carries the
// decryption keys is still retained.
const (
	mediaRefCap = 256
	mediaRefTTL = 15 * time.Minute
)

const eventTimeout = 60 * time.Second

type Config struct {
	SessionDBPath string
	QRCodePath    string
}

// Gateway is the whatsmeow-backed chat gateway.
type Gateway struct {
	cfg       Config
	client    *whatsmeow.Client
	container *sqlstore.Container
	handler   chat.Handler
	media     *cache.LRUCache[whatsmeow.DownloadableMessage]
	logger    *applog.Logger
}

var _ chat.Gateway = (*Gateway)(nil)

func New(cfg Config, logger *applog.Logger) *Gateway {
	return &Gateway{
		cfg:    cfg,
		media:  cache.NewLRUCache[whatsmeow.DownloadableMessage](mediaRefCap, mediaRefTTL),
		logger: logger.WithComponent(applog.ComponentWhatsApp),
	}
}

// SetHandler registers the consumer of translated inbound events. Must be
// called before Connect.
func (g *Gateway) SetHandler(h chat.Handler) {
	g.handler = h
}

// MediaCache exposes the media reference cache for cleanup registration.
func (g *Gateway) MediaCache() *cache.LRUCache[whatsmeow.DownloadableMessage] {
	return g.media
}

// Connect opens the session store, pairs the device when no session exists
// (writing the login QR code to the configured path), and connects.
func (g *Gateway) Connect(ctx context.Context) error {
	dbLog := waLog.Stdout("Database", "WARN", true)
	clientLog := waLog.Stdout("Client", "WARN", true)

	if err := os.MkdirAll(filepath.Dir(g.cfg.SessionDBPath), 0o755); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}

	container, err := sqlstore.New(ctx, "sqlite",
		"file:"+g.cfg.SessionDBPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbLog)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	g.container = container

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("get device: %w", err)
	}

	g.client = whatsmeow.NewClient(deviceStore, clientLog)
	g.client.AddEventHandler(g.handleEvent)

	if g.client.Store.ID == nil {
		qrChan, _ := g.client.GetQRChannel(ctx)
		if err := g.client.Connect(); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		for evt := range qrChan {
			switch evt.Event {
			case "code":
				if err := qrcode.WriteFile(evt.Code, qrcode.Medium, 512, g.cfg.QRCodePath); err != nil {
					g.logger.Error("write login qr code", applog.FieldError, err)
					continue
				}
				g.logger.Info("login qr code written, scan it with the phone", "path", g.cfg.QRCodePath)
			case "success":
				g.logger.Info("device paired")
			default:
				g.logger.Debug("login event", "event", evt.Event)
			}
		}
		return nil
	}

	if err := g.client.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	g.logger.Info("connected")
	return nil
}

// Close disconnects the client and closes the session store.
func (g *Gateway) Close() error {
	if g.client != nil {
		g.client.Disconnect()
	}
	if g.container != nil {
		return g.container.Close()
	}
	return nil
}

func (g *Gateway) ListGroups(ctx context.Context) ([]chat.Group, error) {
	infos, err := g.client.GetJoinedGroups(ctx)
	if err != nil {
		return nil, upstream("list groups", err)
	}
	groups := make([]chat.Group, 0, len(infos))
	for _, gi := range infos {
		groups = append(groups, chat.Group{
			GroupID:      gi.JID.String(),
			Name:         gi.Name,
			Participants: participantPhones(gi.Participants),
		})
	}
	return groups, nil
}

func (g *Gateway) FetchGroupRoster(ctx context.Context, groupID string) ([]string, error) {
	jid, err := types.ParseJID(groupID)
	if err != nil {
		return nil, fmt.Errorf("parse group jid: %w", err)
	}
	info, err := g.client.GetGroupInfo(ctx, jid)
	if err != nil {
		return nil, upstream("fetch group roster", err)
	}
	return participantPhones(info.Participants), nil
}

func (g *Gateway) DownloadAttachment(ctx context.Context, url string) ([]byte, error) {
	msg, ok := g.media.Get(url)
	if !ok {
		return nil, fmt.Errorf("attachment reference expired: %w", core.ErrNotFound)
	}
	data, err := g.client.Download(ctx, msg)
	if err != nil {
		return nil, upstream("download attachment", err)
	}
	return data, nil
}

func (g *Gateway) SendText(ctx context.Context, chatID, text string) error {
	jid, err := types.ParseJID(chatID)
	if err != nil {
		return fmt.Errorf("parse chat jid: %w", err)
	}
	_, err = g.client.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return upstream("send text", err)
	}
	return nil
}

func (g *Gateway) SendButtons(ctx context.Context, chatID, text string, buttons []chat.Button) error {
	jid, err := types.ParseJID(chatID)
	if err != nil {
		return fmt.Errorf("parse chat jid: %w", err)
	}
	waButtons := make([]*waE2E.ButtonsMessage_Button, 0, len(buttons))
	for _, b := range buttons {
		waButtons = append(waButtons, &waE2E.ButtonsMessage_Button{
			ButtonID:   proto.String(b.ID),
			ButtonText: &waE2E.ButtonsMessage_Button_ButtonText{DisplayText: proto.String(b.Label)},
			Type:       waE2E.ButtonsMessage_Button_RESPONSE.Enum(),
		})
	}
	_, err = g.client.SendMessage(ctx, jid, &waE2E.Message{
		ButtonsMessage: &waE2E.ButtonsMessage{
			ContentText: proto.String(text),
			HeaderType:  waE2E.ButtonsMessage_EMPTY.Enum(),
			Buttons:     waButtons,
		},
	})
	if err != nil {
		return upstream("send buttons", err)
	}
	return nil
}

func (g *Gateway) SendList(ctx context.Context, chatID, text string, list chat.ListSpec) error {
	jid, err := types.ParseJID(chatID)
	if err != nil {
		return fmt.Errorf("parse chat jid: %w", err)
	}
	rows := make([]*waE2E.ListMessage_Row, 0, len(list.Options))
	for _, opt := range list.Options {
		rows = append(rows, &waE2E.ListMessage_Row{
			RowID:       proto.String(opt.ID),
			Title:       proto.String(opt.Title),
			Description: proto.String(opt.Description),
		})
	}
	_, err = g.client.SendMessage(ctx, jid, &waE2E.Message{
		ListMessage: &waE2E.ListMessage{
			Title:       proto.String(list.Title),
			Description: proto.String(text),
			ButtonText:  proto.String("Selecionar"),
			ListType:    waE2E.ListMessage_SINGLE_SELECT.Enum(),
			Sections: []*waE2E.ListMessage_Section{{
				Title: proto.String(list.Title),
				Rows:  rows,
			}},
		},
	})
	if err != nil {
		return upstream("send list", err)
	}
	return nil
}

// handleEvent translates whatsmeow events into the tagged inbound-event
// union and dispatches them to the registered handler, one goroutine per
// event. Message kinds outside the union are dropped here.
func (g *Gateway) handleEvent(evt interface{}) {
	v, ok := evt.(*events.Message)
	if !ok {
		return
	}
	if v.Info.IsFromMe {
		return
	}

	out := chat.Event{
		IsGroup:          v.Info.Chat.Server == types.GroupServer,
		GroupID:          v.Info.Chat.String(),
		MessageID:        v.Info.ID,
		ParticipantPhone: v.Info.Sender.User,
	}

	msg := v.Message
	switch {
	case msg.GetButtonsResponseMessage() != nil:
		out.Kind = chat.EventButtonReply
		out.ButtonReply = &chat.Reply{SelectedID: msg.GetButtonsResponseMessage().GetSelectedButtonID()}
	case msg.GetListResponseMessage() != nil:
		out.Kind = chat.EventListReply
		out.ListReply = &chat.Reply{SelectedID: msg.GetListResponseMessage().GetSingleSelectReply().GetSelectedRowID()}
	case msg.GetImageMessage() != nil:
		img := msg.GetImageMessage()
		g.media.Set(img.GetURL(), img)
		out.Kind = chat.EventMedia
		out.Attachment = &chat.Attachment{
			Kind:     chat.AttachmentImage,
			URL:      img.GetURL(),
			Caption:  img.GetCaption(),
			MimeType: img.GetMimetype(),
		}
	case msg.GetDocumentMessage() != nil:
		doc := msg.GetDocumentMessage()
		g.media.Set(doc.GetURL(), doc)
		out.Kind = chat.EventMedia
		out.Attachment = &chat.Attachment{
			Kind:     chat.AttachmentDocument,
			URL:      doc.GetURL(),
			Caption:  doc.GetCaption(),
			MimeType: doc.GetMimetype(),
		}
	case msg.GetAudioMessage() != nil:
		audio := msg.GetAudioMessage()
		g.media.Set(audio.GetURL(), audio)
		out.Kind = chat.EventMedia
		out.Attachment = &chat.Attachment{
			Kind:     chat.AttachmentAudio,
			URL:      audio.GetURL(),
			MimeType: audio.GetMimetype(),
		}
	default:
		return
	}

	if g.handler == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()
		g.handler(ctx, out)
	}()
}

func participantPhones(participants []types.GroupParticipant) []string {
	phones := make([]string, 0, len(participants))
	for _, p := range participants {
		phones = append(phones, p.JID.User)
	}
	return phones
}

func upstream(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(core.ErrUpstreamUnavailable, err))
}
