package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// seenPostCap bounds the dedup set guarding against transport
// redelivery of the same update.
const seenPostCap = 4096

// ModerationConfig carries the tunables of the per-post decision flow.
type ModerationConfig struct {
	AllowedChats  []int64
	Policy        DecisionPolicy
	TextTimeout   time.Duration
	ImageTimeout  time.Duration
	MaxImageBytes int64
}

// ModerationService is the per-post orchestrator. It gates each inbound
// post through the allow-list and trust ledger, gathers conversation
// context, invokes the classifier, and either records the user as safe
// or hands the post to the action sequencer.
type ModerationService struct {
	cfg        ModerationConfig
	allowed    map[int64]bool
	ledger     *TrustLedger
	window     *ContextWindow
	classifier Classifier
	images     ImageSource
	sequencer  *ActionSequencer
	audit      AuditSink
	logger     *zap.Logger

	seen *lru.Cache[string, struct{}]

	// chatLocks serializes posts within one conversation; posts in
	// distinct conversations run in parallel.
	chatLocks sync.Map
}

// NewModerationService wires the decision flow together.
func NewModerationService(
	cfg ModerationConfig,
	ledger *TrustLedger,
	window *ContextWindow,
	classifier Classifier,
	images ImageSource,
	sequencer *ActionSequencer,
	audit AuditSink,
	logger *zap.Logger,
) (*ModerationService, error) {
	seen, err := lru.New[string, struct{}](seenPostCap)
	if err != nil {
		return nil, fmt.Errorf("failed to create dedup cache: %w", err)
	}

	allowed := make(map[int64]bool, len(cfg.AllowedChats))
	for _, id := range cfg.AllowedChats {
		allowed[id] = true
	}

	return &ModerationService{
		cfg:        cfg,
		allowed:    allowed,
		ledger:     ledger,
		window:     window,
		classifier: classifier,
		images:     images,
		sequencer:  sequencer,
		audit:      audit,
		logger:     logger,
		seen:       seen,
	}, nil
}

func (s *ModerationService) lockChat(chatID int64) *sync.Mutex {
	mu, _ := s.chatLocks.LoadOrStore(chatID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// ProcessPost runs one post through the full decision flow. Errors from
// collaborators are absorbed into the flow's fail-closed policy; the
// returned error is always nil for now but kept for interface stability
// at the transport boundary.
func (s *ModerationService) ProcessPost(ctx context.Context, post *Post) error {
	if !s.allowed[post.ChatID] {
		s.logger.Debug("Ignoring post from non-allow-listed chat",
			zap.Int64("chat_id", post.ChatID))
		return nil
	}
	if post.FromBot || !post.IsGroup {
		s.logger.Debug("Ignoring bot or non-group post",
			zap.Int64("chat_id", post.ChatID),
			zap.String("sender_id", post.SenderID))
		return nil
	}

	// ContainsOrAdd keeps the gate atomic: copies of one update arrive
	// on separate goroutines.
	key := fmt.Sprintf("%d:%d", post.ChatID, post.MessageID)
	if dup, _ := s.seen.ContainsOrAdd(key, struct{}{}); dup {
		s.logger.Debug("Ignoring duplicate delivery", zap.String("post", key))
		return nil
	}

	mu := s.lockChat(post.ChatID)
	mu.Lock()
	defer mu.Unlock()

	if s.ledger.IsEligible(post.SenderID) {
		s.evaluate(ctx, post)
	} else {
		s.logger.Debug("Skipping trusted user",
			zap.String("sender_id", post.SenderID),
			zap.String("display_name", post.DisplayName))
	}

	// The window records what was said, not what survives moderation:
	// deleted posts are still appended so later posts keep continuity.
	if content := post.Content(); content != "" {
		s.window.Append(post.ChatID, content)
	}
	return nil
}

// evaluate classifies the post's modalities and either updates trust or
// triggers the moderation sequence.
func (s *ModerationService) evaluate(ctx context.Context, post *Post) {
	chatContext := s.window.Render(post.ChatID)

	textSpam := false
	if content := post.Content(); content != "" {
		textSpam = s.classifyText(ctx, post, content, chatContext)
	}

	imageSpam := false
	if post.HasImage() {
		imageSpam = s.classifyImage(ctx, post)
	}

	if textSpam || imageSpam {
		outcome := s.sequencer.Moderate(ctx, post, textSpam, imageSpam)
		s.audit.RecordIncident(post, outcome)
		return
	}

	if err := s.ledger.RecordSafe(ctx, post.SenderID, post.DisplayName); err != nil {
		s.logger.Error("Trust update failed", zap.Error(err))
	}
}

func (s *ModerationService) classifyText(ctx context.Context, post *Post, content, chatContext string) bool {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.TextTimeout)
	defer cancel()

	verdict, err := s.classifier.ClassifyText(cctx, content, chatContext)
	if err == nil {
		err = ValidateVerdict(verdict)
	}
	if err != nil {
		// Fail closed: an unreachable or non-conforming oracle must never
		// cause a deletion or ban.
		s.logger.Error("Text classification failed, treating as clean",
			zap.Int64("chat_id", post.ChatID),
			zap.String("sender_id", post.SenderID),
			zap.Error(err))
		s.audit.RecordFailure(post, "text", err.Error())
		return false
	}

	spam := s.cfg.Policy.IsSpam(verdict)
	s.audit.RecordVerdict(post, "text", verdict, spam)
	return spam
}

func (s *ModerationService) classifyImage(ctx context.Context, post *Post) bool {
	data, mimeType, err := s.images.FetchImage(ctx, post.ImageRef, s.cfg.MaxImageBytes)
	if err != nil {
		if errors.Is(err, ErrImageTooLarge) {
			// Oversized images are skipped, not failed: no verdict, no action.
			s.logger.Info("Image exceeds size ceiling, skipping classification",
				zap.Int64("chat_id", post.ChatID),
				zap.String("image_ref", post.ImageRef))
			s.audit.RecordFailure(post, "image", "skipped: exceeds size limit")
			return false
		}
		s.logger.Error("Image download failed, treating as clean",
			zap.Int64("chat_id", post.ChatID),
			zap.Error(err))
		s.audit.RecordFailure(post, "image", err.Error())
		return false
	}

	// Images are larger and slower than text; a stricter timeout keeps a
	// hanging vision call from stalling subsequent posts.
	cctx, cancel := context.WithTimeout(ctx, s.cfg.ImageTimeout)
	defer cancel()

	verdict, err := s.classifier.ClassifyImage(cctx, data, mimeType)
	if err == nil {
		err = ValidateVerdict(verdict)
	}
	if err != nil {
		s.logger.Error("Image classification failed, treating as clean",
			zap.Int64("chat_id", post.ChatID),
			zap.String("sender_id", post.SenderID),
			zap.Error(err))
		s.audit.RecordFailure(post, "image", err.Error())
		return false
	}

	spam := s.cfg.Policy.IsSpam(verdict)
	s.audit.RecordVerdict(post, "image", verdict, spam)
	return spam
}
