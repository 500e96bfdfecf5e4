package core

import (
	"context"
	"errors"
)

// ErrImageTooLarge is returned by an ImageSource when a referenced image
// exceeds the configured size ceiling
var ErrImageTooLarge = errors.New("image exceeds size limit")

// Classifier defines the interface for the spam classification oracle
type Classifier interface {
	// ClassifyText evaluates a candidate message against recent
	// conversation context and returns a structured verdict
	ClassifyText(ctx context.Context, message string, chatContext string) (*Verdict, error)

	// ClassifyImage evaluates an image payload and returns a structured verdict
	ClassifyImage(ctx context.Context, image []byte, mimeType string) (*Verdict, error)
}

// TrustStore defines the interface for persisting trust records
type TrustStore interface {
	// Load reads all trust records; a missing or corrupt store yields
	// an empty map, not an error
	Load(ctx context.Context) (map[string]*TrustRecord, error)

	// Save rewrites the full set of trust records
	Save(ctx context.Context, records map[string]*TrustRecord) error

	// Close releases store resources
	Close() error
}

// ChatModerator defines the moderation primitives of the chat transport
type ChatModerator interface {
	// Capabilities reports the bot's current permissions in a conversation
	Capabilities(ctx context.Context, chatID int64) (Capabilities, error)

	// DeleteMessage removes a post from a conversation
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error

	// BanSender removes a user from a conversation
	BanSender(ctx context.Context, chatID int64, senderID string) error

	// SendNotice posts an operational notice into a conversation
	SendNotice(ctx context.Context, chatID int64, text string) error
}

// AuditSink receives append-only audit records for human review,
// distinct from operational logging
type AuditSink interface {
	// RecordVerdict records one classifier call and its collapsed decision
	RecordVerdict(post *Post, modality string, verdict *Verdict, spam bool)

	// RecordFailure records a classifier call that failed closed
	RecordFailure(post *Post, modality string, reason string)

	// RecordIncident records one moderation incident
	RecordIncident(post *Post, outcome *ModerationOutcome)
}

// ImageSource fetches image payloads referenced by posts
type ImageSource interface {
	// FetchImage downloads the referenced image, up to maxBytes.
	// ErrImageTooLarge is returned when the payload exceeds the limit.
	FetchImage(ctx context.Context, ref string, maxBytes int64) (data []byte, mimeType string, err error)
}
