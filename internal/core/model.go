package core

import (
	"time"
)

// Post represents one inbound chat message
type Post struct {
	ChatID      int64
	MessageID   int
	SenderID    string
	DisplayName string
	Text        string
	Caption     string
	ImageRef    string
	IsGroup     bool
	FromBot     bool
}

// Content returns the textual content of the post: the message text,
// or the image caption when the post carries no text body.
func (p *Post) Content() string {
	if p.Text != "" {
		return p.Text
	}
	return p.Caption
}

// HasImage reports whether the post carries an image reference.
func (p *Post) HasImage() bool {
	return p.ImageRef != ""
}

// SignType identifies one category of spam indicator
type SignType string

const (
	SignMonetaryGain    SignType = "monetary_gain"
	SignOffPlatform     SignType = "off_platform_redirect"
	SignVagueWorkOffer  SignType = "vague_work_offer"
	SignEasyRecruitment SignType = "easy_recruitment"
	SignFormattingAbuse SignType = "formatting_abuse"
	SignNonSequitur     SignType = "non_sequitur"
	SignSalesPitch      SignType = "sales_pitch"
	SignPromoBanner     SignType = "promo_banner"
	SignQRCode          SignType = "qr_code"
	SignAdultContent    SignType = "adult_content"
	SignScamOffer       SignType = "scam_offer"
	SignPyramidScheme   SignType = "pyramid_scheme"
	SignCryptoPromotion SignType = "crypto_promotion"
	SignContactOverlay  SignType = "contact_overlay"
)

// SpamSign is one indicator the classifier found in the content
type SpamSign struct {
	Type        SignType `json:"type"`
	Description string   `json:"description"`
}

// Verdict is the normalized output of one classifier call
type Verdict struct {
	IsSpam      bool       `json:"is_spam"`
	Confidence  float64    `json:"confidence"`
	Signs       []SpamSign `json:"signs"`
	Explanation string     `json:"explanation"`
	AnalyzedAt  time.Time  `json:"-"`
	ModelUsed   string     `json:"-"`
}

// TrustRecord tracks how many clean posts a user has produced
type TrustRecord struct {
	UserID      string `json:"user_id"`
	SafeCount   int    `json:"safe_count"`
	DisplayName string `json:"display_name,omitempty"`
}

// Capabilities are the bot's live permissions in one conversation
type Capabilities struct {
	CanDelete   bool
	CanRestrict bool
}

// ModerationOutcome summarizes one moderation incident
type ModerationOutcome struct {
	Deleted  bool
	Banned   bool
	Reasons  []string
	Failures []string
}
