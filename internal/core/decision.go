package core

import (
	"fmt"
)

// DecisionPolicy collapses a rich classifier verdict into a boolean.
// A verdict counts as spam when the classifier itself flags it with high
// confidence, or when multiple independent signs corroborate each other
// at moderate confidence. A single weak signal never triggers action.
type DecisionPolicy struct {
	SpamConfidence   float64
	SignalConfidence float64
	MinSignals       int
}

// DefaultDecisionPolicy returns the standard thresholds.
func DefaultDecisionPolicy() DecisionPolicy {
	return DecisionPolicy{
		SpamConfidence:   0.7,
		SignalConfidence: 0.6,
		MinSignals:       2,
	}
}

// IsSpam applies the decision rule to a verdict. A nil verdict is not spam.
func (p DecisionPolicy) IsSpam(v *Verdict) bool {
	if v == nil {
		return false
	}
	if v.IsSpam && v.Confidence >= p.SpamConfidence {
		return true
	}
	return len(v.Signs) >= p.MinSignals && v.Confidence >= p.SignalConfidence
}

var validSignTypes = map[SignType]bool{
	SignMonetaryGain:    true,
	SignOffPlatform:     true,
	SignVagueWorkOffer:  true,
	SignEasyRecruitment: true,
	SignFormattingAbuse: true,
	SignNonSequitur:     true,
	SignSalesPitch:      true,
	SignPromoBanner:     true,
	SignQRCode:          true,
	SignAdultContent:    true,
	SignScamOffer:       true,
	SignPyramidScheme:   true,
	SignCryptoPromotion: true,
	SignContactOverlay:  true,
}

// ValidateVerdict checks that a decoded classifier response conforms to
// the verdict contract. Non-conforming responses are treated as oracle
// failures by callers, never pattern-matched or repaired.
func ValidateVerdict(v *Verdict) error {
	if v == nil {
		return fmt.Errorf("verdict is nil")
	}
	if v.Confidence < 0 || v.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", v.Confidence)
	}
	for _, s := range v.Signs {
		if !validSignTypes[s.Type] {
			return fmt.Errorf("unknown sign type %q", s.Type)
		}
	}
	return nil
}
