package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ActionSequencer executes the ordered remediation sequence for a
// flagged post under whatever permissions the bot actually holds.
// Actions are attempted independently: a failed delete never blocks a
// ban attempt and vice versa. The sequencer never returns an error; all
// failures are captured in the outcome.
type ActionSequencer struct {
	moderator      ChatModerator
	banOnImageOnly bool
	logger         *zap.Logger
}

// NewActionSequencer creates a sequencer over the given chat moderator.
func NewActionSequencer(moderator ChatModerator, banOnImageOnly bool, logger *zap.Logger) *ActionSequencer {
	return &ActionSequencer{
		moderator:      moderator,
		banOnImageOnly: banOnImageOnly,
		logger:         logger,
	}
}

// Moderate applies the remediation sequence to a post flagged by the
// text and/or image detector.
func (s *ActionSequencer) Moderate(ctx context.Context, post *Post, textSpam, imageSpam bool) *ModerationOutcome {
	outcome := &ModerationOutcome{}
	if !textSpam && !imageSpam {
		return outcome
	}

	if textSpam {
		outcome.Reasons = append(outcome.Reasons, "text")
	}
	if imageSpam {
		outcome.Reasons = append(outcome.Reasons, "image")
	}

	// Image-only detections may be deletion-only by policy: vision false
	// positives are weaker grounds for a ban than text.
	shouldBan := textSpam || (imageSpam && s.banOnImageOnly)

	// Capabilities can change between posts, so they are fetched fresh
	// per incident. A failed query means the permission state is
	// unknown, not absent: no actions, no permission complaints, only
	// the query failure itself is recorded.
	caps, err := s.moderator.Capabilities(ctx, post.ChatID)
	if err != nil {
		outcome.Failures = append(outcome.Failures, fmt.Sprintf("capability query: %v", err))
		s.logger.Error("Failed to query bot capabilities",
			zap.Int64("chat_id", post.ChatID),
			zap.Error(err))
	} else {
		if caps.CanDelete {
			if err := s.moderator.DeleteMessage(ctx, post.ChatID, post.MessageID); err != nil {
				outcome.Failures = append(outcome.Failures, fmt.Sprintf("delete: %v", err))
				s.logger.Error("Failed to delete spam message",
					zap.Int64("chat_id", post.ChatID),
					zap.Int("message_id", post.MessageID),
					zap.Error(err))
			} else {
				outcome.Deleted = true
			}
		} else {
			outcome.Failures = append(outcome.Failures, "no permission to delete")
			if err := s.moderator.SendNotice(ctx, post.ChatID,
				"Spam detected but I lack permission to delete messages."); err != nil {
				outcome.Failures = append(outcome.Failures, fmt.Sprintf("notice: %v", err))
			}
		}

		if shouldBan {
			if caps.CanRestrict {
				if err := s.moderator.BanSender(ctx, post.ChatID, post.SenderID); err != nil {
					outcome.Failures = append(outcome.Failures, fmt.Sprintf("ban: %v", err))
					s.logger.Error("Failed to ban sender",
						zap.Int64("chat_id", post.ChatID),
						zap.String("sender_id", post.SenderID),
						zap.Error(err))
				} else {
					outcome.Banned = true
				}
			} else {
				// Recorded but not announced: repeated capability
				// complaints would alarm ordinary members.
				outcome.Failures = append(outcome.Failures, "no permission to ban")
			}
		}
	}

	s.logger.Info("Moderation sequence complete",
		zap.Int64("chat_id", post.ChatID),
		zap.String("sender_id", post.SenderID),
		zap.Strings("reasons", outcome.Reasons),
		zap.Bool("deleted", outcome.Deleted),
		zap.Bool("banned", outcome.Banned),
		zap.Strings("failures", outcome.Failures))

	return outcome
}
