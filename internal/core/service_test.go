package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// fakeClassifier returns scripted verdicts
type fakeClassifier struct {
	mu         sync.Mutex
	textVerd   *Verdict
	textErr    error
	imageVerd  *Verdict
	imageErr   error
	textCalls  int
	imageCalls int
	lastCtx    string
}

func (c *fakeClassifier) ClassifyText(ctx context.Context, message, chatContext string) (*Verdict, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.textCalls++
	c.lastCtx = chatContext
	return c.textVerd, c.textErr
}

func (c *fakeClassifier) ClassifyImage(ctx context.Context, image []byte, mimeType string) (*Verdict, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.imageCalls++
	return c.imageVerd, c.imageErr
}

// fakeImages serves a scripted payload
type fakeImages struct {
	data  []byte
	err   error
	calls int
}

func (f *fakeImages) FetchImage(ctx context.Context, ref string, maxBytes int64) ([]byte, string, error) {
	f.calls++
	return f.data, "image/jpeg", f.err
}

// fakeAudit records what was audited
type fakeAudit struct {
	mu        sync.Mutex
	verdicts  int
	failures  int
	incidents int
}

func (a *fakeAudit) RecordVerdict(post *Post, modality string, verdict *Verdict, spam bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.verdicts++
}

func (a *fakeAudit) RecordFailure(post *Post, modality string, reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures++
}

func (a *fakeAudit) RecordIncident(post *Post, outcome *ModerationOutcome) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.incidents++
}

type serviceFixture struct {
	svc        *ModerationService
	classifier *fakeClassifier
	moderator  *fakeModerator
	images     *fakeImages
	audit      *fakeAudit
	ledger     *TrustLedger
	window     *ContextWindow
	store      *fakeTrustStore
}

func newFixture(t *testing.T, classifier *fakeClassifier) *serviceFixture {
	t.Helper()

	store := &fakeTrustStore{}
	ledger := NewTrustLedger(context.Background(), store, 2, zap.NewNop())
	window := NewContextWindow(5)
	moderator := &fakeModerator{caps: Capabilities{CanDelete: true, CanRestrict: true}}
	images := &fakeImages{data: []byte("jpegdata")}
	auditSink := &fakeAudit{}
	sequencer := NewActionSequencer(moderator, false, zap.NewNop())

	cfg := ModerationConfig{
		AllowedChats:  []int64{-100123},
		Policy:        DefaultDecisionPolicy(),
		TextTimeout:   time.Second,
		ImageTimeout:  time.Second,
		MaxImageBytes: 1 << 20,
	}

	svc, err := NewModerationService(cfg, ledger, window, classifier, images, sequencer, auditSink, zap.NewNop())
	if err != nil {
		t.Fatalf("NewModerationService: %v", err)
	}

	return &serviceFixture{
		svc:        svc,
		classifier: classifier,
		moderator:  moderator,
		images:     images,
		audit:      auditSink,
		ledger:     ledger,
		window:     window,
		store:      store,
	}
}

func groupPost(messageID int, text string) *Post {
	return &Post{
		ChatID:      -100123,
		MessageID:   messageID,
		SenderID:    "300",
		DisplayName: "mallory",
		Text:        text,
		IsGroup:     true,
	}
}

func TestService_IgnoresNonAllowListedChat(t *testing.T) {
	fx := newFixture(t, &fakeClassifier{textVerd: verdictWith(false, 0.9, 0)})

	post := groupPost(1, "hello")
	post.ChatID = -999

	fx.svc.ProcessPost(context.Background(), post)

	if fx.classifier.textCalls != 0 {
		t.Error("no oracle call expected outside the allow-list")
	}
	if fx.window.Len(-999) != 0 {
		t.Error("no context recording expected outside the allow-list")
	}
	if fx.store.saves != 0 {
		t.Error("no trust mutation expected outside the allow-list")
	}
}

func TestService_IgnoresBotAndNonGroupPosts(t *testing.T) {
	fx := newFixture(t, &fakeClassifier{textVerd: verdictWith(false, 0.9, 0)})

	fromBot := groupPost(1, "bot chatter")
	fromBot.FromBot = true
	fx.svc.ProcessPost(context.Background(), fromBot)

	private := groupPost(2, "direct message")
	private.IsGroup = false
	fx.svc.ProcessPost(context.Background(), private)

	if fx.classifier.textCalls != 0 {
		t.Error("bot and non-group posts must not be classified")
	}
	if fx.window.Len(-100123) != 0 {
		t.Error("ignored posts must not be context-recorded")
	}
}

func TestService_CleanPostUpdatesTrustAndWindow(t *testing.T) {
	fx := newFixture(t, &fakeClassifier{textVerd: verdictWith(false, 0.9, 0)})

	fx.svc.ProcessPost(context.Background(), groupPost(1, "nice wheels"))

	if fx.classifier.textCalls != 1 {
		t.Fatalf("textCalls = %d, want 1", fx.classifier.textCalls)
	}
	if got := fx.ledger.SafeCount("300"); got != 1 {
		t.Errorf("SafeCount = %d, want 1", got)
	}
	if got := fx.window.Render(-100123); got != "nice wheels" {
		t.Errorf("window = %q, want the post text", got)
	}
	if fx.moderator.deletes != 0 {
		t.Error("clean post must not trigger moderation")
	}
}

func TestService_TrustedUserSkipsOracleButFeedsWindow(t *testing.T) {
	fx := newFixture(t, &fakeClassifier{textVerd: verdictWith(false, 0.9, 0)})
	ctx := context.Background()

	fx.ledger.RecordSafe(ctx, "300", "mallory")
	fx.ledger.RecordSafe(ctx, "300", "mallory")

	fx.svc.ProcessPost(ctx, groupPost(1, "morning everyone"))

	if fx.classifier.textCalls != 0 {
		t.Error("trusted user's posts must never reach the oracle")
	}
	if got := fx.window.Render(-100123); got != "morning everyone" {
		t.Errorf("window = %q, trusted posts still feed context", got)
	}
	if got := fx.ledger.SafeCount("300"); got != 2 {
		t.Errorf("SafeCount = %d, trust must not grow past evaluation", got)
	}
}

func TestService_SpamTextTriggersModeration(t *testing.T) {
	fx := newFixture(t, &fakeClassifier{textVerd: verdictWith(true, 0.9, 0)})

	spamText := "500$ per week, write me in PM"
	fx.svc.ProcessPost(context.Background(), groupPost(1, spamText))

	if fx.moderator.deletes != 1 {
		t.Errorf("deletes = %d, want 1", fx.moderator.deletes)
	}
	if fx.moderator.bans != 1 {
		t.Errorf("bans = %d, want 1", fx.moderator.bans)
	}
	if got := fx.ledger.SafeCount("300"); got != 0 {
		t.Errorf("SafeCount = %d, spam must never increment trust", got)
	}
	// The window records what was said, not what survives.
	if got := fx.window.Render(-100123); got != spamText {
		t.Errorf("window = %q, want the original literal text", got)
	}
	if fx.audit.incidents != 1 {
		t.Errorf("audit incidents = %d, want 1", fx.audit.incidents)
	}
}

func TestService_OracleFailureFailsClosed(t *testing.T) {
	fx := newFixture(t, &fakeClassifier{textErr: errors.New("oracle unreachable")})

	fx.svc.ProcessPost(context.Background(), groupPost(1, "borderline message"))

	if fx.moderator.deletes != 0 || fx.moderator.bans != 0 {
		t.Error("oracle failure must never cause moderation actions")
	}
	if got := fx.ledger.SafeCount("300"); got != 1 {
		t.Errorf("SafeCount = %d, fail-closed posts count as clean", got)
	}
	if fx.audit.failures != 1 {
		t.Errorf("audit failures = %d, want 1", fx.audit.failures)
	}
}

func TestService_NonConformingVerdictFailsClosed(t *testing.T) {
	fx := newFixture(t, &fakeClassifier{textVerd: &Verdict{IsSpam: true, Confidence: 7.5}})

	fx.svc.ProcessPost(context.Background(), groupPost(1, "strange reply shape"))

	if fx.moderator.deletes != 0 {
		t.Error("a verdict outside the contract must not trigger action")
	}
	if fx.audit.failures != 1 {
		t.Errorf("audit failures = %d, want 1", fx.audit.failures)
	}
}

func TestService_DuplicateDeliveryIsDropped(t *testing.T) {
	fx := newFixture(t, &fakeClassifier{textVerd: verdictWith(false, 0.9, 0)})
	ctx := context.Background()

	fx.svc.ProcessPost(ctx, groupPost(1, "hello"))
	fx.svc.ProcessPost(ctx, groupPost(1, "hello"))

	if fx.classifier.textCalls != 1 {
		t.Errorf("textCalls = %d, duplicate delivery must be dropped", fx.classifier.textCalls)
	}
	if fx.window.Len(-100123) != 1 {
		t.Errorf("window entries = %d, want 1", fx.window.Len(-100123))
	}
	if got := fx.ledger.SafeCount("300"); got != 1 {
		t.Errorf("SafeCount = %d, want 1", got)
	}
}

func TestService_ConcurrentDuplicateDeliveryIsDropped(t *testing.T) {
	// The transport hands each update to its own goroutine, so two
	// copies of one update can race into the dedup gate together.
	fx := newFixture(t, &fakeClassifier{textVerd: verdictWith(false, 0.9, 0)})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fx.svc.ProcessPost(ctx, groupPost(1, "hello"))
		}()
	}
	wg.Wait()

	if fx.classifier.textCalls != 1 {
		t.Errorf("textCalls = %d, exactly one copy must pass the gate", fx.classifier.textCalls)
	}
	if got := fx.ledger.SafeCount("300"); got != 1 {
		t.Errorf("SafeCount = %d, want 1", got)
	}
	if fx.window.Len(-100123) != 1 {
		t.Errorf("window entries = %d, want 1", fx.window.Len(-100123))
	}
}

func TestService_ContextIsRenderedBeforeAppend(t *testing.T) {
	fx := newFixture(t, &fakeClassifier{textVerd: verdictWith(false, 0.9, 0)})
	ctx := context.Background()

	fx.svc.ProcessPost(ctx, groupPost(1, "first"))
	fx.svc.ProcessPost(ctx, groupPost(2, "second"))

	// The second post's evaluation must see the first post, not itself.
	if fx.classifier.lastCtx != "first" {
		t.Errorf("context seen by classifier = %q, want %q", fx.classifier.lastCtx, "first")
	}
}

func TestService_ImageSpamDeletesViaImagePath(t *testing.T) {
	classifier := &fakeClassifier{
		textVerd:  verdictWith(false, 0.9, 0),
		imageVerd: verdictWith(true, 0.95, 0),
	}
	fx := newFixture(t, classifier)

	post := groupPost(1, "")
	post.Caption = "look at this"
	post.ImageRef = "file-abc"
	fx.svc.ProcessPost(context.Background(), post)

	if classifier.imageCalls != 1 {
		t.Fatalf("imageCalls = %d, want 1", classifier.imageCalls)
	}
	if fx.moderator.deletes != 1 {
		t.Error("image spam should delete the post")
	}
	if fx.moderator.bans != 0 {
		t.Error("image-only spam must not ban under the default policy")
	}
	if got := fx.window.Render(-100123); got != "look at this" {
		t.Errorf("window = %q, want the caption", got)
	}
}

func TestService_OversizedImageIsSkippedNotFailed(t *testing.T) {
	classifier := &fakeClassifier{textVerd: verdictWith(false, 0.9, 0)}
	fx := newFixture(t, classifier)
	fx.images.err = ErrImageTooLarge

	post := groupPost(1, "")
	post.Caption = "huge panorama"
	post.ImageRef = "file-big"
	fx.svc.ProcessPost(context.Background(), post)

	if classifier.imageCalls != 0 {
		t.Error("oversized image must not reach the vision oracle")
	}
	if fx.moderator.deletes != 0 {
		t.Error("a skipped image must not trigger moderation")
	}
	if got := fx.ledger.SafeCount("300"); got != 1 {
		t.Errorf("SafeCount = %d, the post still counts as clean", got)
	}
}

func TestService_TextAndImageVerdictsAreORed(t *testing.T) {
	classifier := &fakeClassifier{
		textVerd:  verdictWith(true, 0.9, 0),
		imageVerd: verdictWith(false, 0.9, 0),
	}
	fx := newFixture(t, classifier)

	post := groupPost(1, "spam text with clean image")
	post.ImageRef = "file-xyz"
	fx.svc.ProcessPost(context.Background(), post)

	if fx.moderator.deletes != 1 {
		t.Error("spam on either modality must moderate the post")
	}
	if fx.moderator.bans != 1 {
		t.Error("text spam should ban")
	}
}
