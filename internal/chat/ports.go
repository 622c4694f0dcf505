// Package chat defines the ports for the chat-platform gateway and the
// inbound events the intake pipeline consumes.
package chat

import "context"

type AttachmentKind string

const (
	AttachmentImage    AttachmentKind = "image"
	AttachmentDocument AttachmentKind = "document"
	AttachmentAudio    AttachmentKind = "audio"
)

type EventKind string

const (
	EventMedia       EventKind = "media"
	EventButtonReply EventKind = "button_reply"
	EventListReply   EventKind = "list_reply"
)

type (
	// Attachment describes inbound media. URL is an opaque reference the
	// gateway resolves in DownloadAttachment.
	Attachment struct {
		Kind     AttachmentKind
		URL      string
		Caption  string
		MimeType string
	}

	// Reply carries the opaque identifier of the pressed button or chosen
	// list row.
	Reply struct {
		SelectedID string
	}

	// Event is the tagged union of inbound message variants. Exactly one of
	// Attachment, ButtonReply and ListReply is set, selected by Kind.
	Event struct {
		Kind             EventKind
		IsGroup          bool
		GroupID          string
		MessageID        string
		ParticipantPhone string
		Attachment       *Attachment
		ButtonReply      *Reply
		ListReply        *Reply
	}

	// Group is a chat group with its raw (unnormalized) participant phones.
	// Participants may be nil when the platform did not include the roster
	// in the listing; fetch it separately via FetchGroupRoster.
	Group struct {
		GroupID      string
		Name         string
		Participants []string
	}

	Button struct {
		ID    string
		Label string
	}

	ListOption struct {
		ID          string
		Title       string
		Description string
	}

	ListSpec struct {
		Title   string
		Options []ListOption
	}
)

// Gateway is the outbound port to the chat platform.
type Gateway interface {
	ListGroups(ctx context.Context) ([]Group, error)
	FetchGroupRoster(ctx context.Context, groupID string) ([]string, error)
	DownloadAttachment(ctx context.Context, url string) ([]byte, error)
	SendText(ctx context.Context, chatID, text string) error
	SendButtons(ctx context.Context, chatID, text string, buttons []Button) error
	SendList(ctx context.Context, chatID, text string, list ListSpec) error
}

// Handler consumes translated inbound events. Implementations must tolerate
// concurrent calls; no ordering is guaranteed across chats.
type Handler func(ctx context.Context, evt Event)
