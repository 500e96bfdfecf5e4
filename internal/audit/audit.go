// Package audit emits the append-only moderation audit trail: one record
// per classifier call and one per moderation incident, kept apart from
// operational logs so false positives and negatives can be reviewed.
package audit

import (
	"github.com/mikey/llm-chat-guard/internal/core"
	"go.uber.org/zap"
)

// Logger writes audit records through a dedicated zap logger.
type Logger struct {
	log *zap.Logger
}

// NewLogger wraps the audit zap logger.
func NewLogger(log *zap.Logger) *Logger {
	return &Logger{log: log}
}

func postFields(post *core.Post) []zap.Field {
	return []zap.Field{
		zap.Int64("chat_id", post.ChatID),
		zap.Int("message_id", post.MessageID),
		zap.String("user_id", post.SenderID),
		zap.String("display_name", post.DisplayName),
	}
}

// RecordVerdict records one classifier call and its collapsed decision.
func (l *Logger) RecordVerdict(post *core.Post, modality string, verdict *core.Verdict, spam bool) {
	signs := make([]string, len(verdict.Signs))
	for i, s := range verdict.Signs {
		signs[i] = string(s.Type)
	}

	fields := append(postFields(post),
		zap.String("modality", modality),
		zap.Bool("model_is_spam", verdict.IsSpam),
		zap.Float64("confidence", verdict.Confidence),
		zap.Strings("signs", signs),
		zap.String("explanation", verdict.Explanation),
		zap.String("model", verdict.ModelUsed),
		zap.Bool("decision_spam", spam),
		zap.String("content", post.Content()),
	)
	l.log.Info("verdict", fields...)
}

// RecordFailure records a classifier call that failed closed.
func (l *Logger) RecordFailure(post *core.Post, modality string, reason string) {
	fields := append(postFields(post),
		zap.String("modality", modality),
		zap.String("reason", reason),
	)
	l.log.Info("classification_failed_closed", fields...)
}

// RecordIncident records one moderation incident.
func (l *Logger) RecordIncident(post *core.Post, outcome *core.ModerationOutcome) {
	fields := append(postFields(post),
		zap.Strings("reasons", outcome.Reasons),
		zap.Bool("deleted", outcome.Deleted),
		zap.Bool("banned", outcome.Banned),
		zap.Strings("failures", outcome.Failures),
		zap.String("content", post.Content()),
	)
	l.log.Info("moderation_incident", fields...)
}
