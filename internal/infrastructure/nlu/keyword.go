// Package nlu classifies chat messages with keyword and pattern
// heuristics. Sellers write short, formulaic messages, so a small
// rule set covers the traffic without an external model.
package nlu

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dealdesk/dealdesk/internal/application/engine"
	"github.com/dealdesk/dealdesk/internal/domain/negotiation"
)

var (
	priceRe   = regexp.MustCompile(`(?:rs\.?|₹|inr)?\s*(\d{2,4})\s*(?:rs|rupees|/-|only)?`)
	paymentRe = regexp.MustCompile(`\b[\w.\-]{2,}@[a-zA-Z][a-zA-Z0-9]{1,}\b`)
	numberRe  = regexp.MustCompile(`\b\d{2,4}\b`)
)

var sellKeywords = []string{"selling", "sell", "anyone wants", "anyone want", "available", "coupon for sale", "dm me", "dm if interested"}

var agreementKeywords = []string{"yes", "yeah", "yep", "sure", "ok", "okay", "haan", "done", "go ahead", "confirmed", "approve", "sounds good"}

var declineKeywords = []string{"no", "nope", "don't", "dont", "nah", "skip", "cancel it", "not today", "decline", "leave it"}

var withdrawalKeywords = []string{"sold", "sold it", "someone else", "not selling", "changed my mind", "cancel", "can't sell", "cant sell", "no longer", "sorry bro"}

var refundKeywords = []string{"refunded", "sent it back", "sent back", "returned", "refund done", "money sent", "transferred back", "paid you back"}

var waitKeywords = []string{"wait", "give me", "one sec", "1 min", "a minute", "hold on", "later", "brb", "in class", "busy"}

var couponKeywords = []string{"sent the coupon", "coupon sent", "here it is", "shared the coupon", "check the coupon", "sent it"}

// KeywordClassifier implements message understanding with pattern rules.
type KeywordClassifier struct {
	logger zerolog.Logger
}

func NewKeywordClassifier(logger zerolog.Logger) *KeywordClassifier {
	return &KeywordClassifier{
		logger: logger.With().Str("service", "nlu").Logger(),
	}
}

// ClassifyOffer decides whether a channel message advertises a coupon.
func (k *KeywordClassifier) ClassifyOffer(ctx context.Context, text string) (engine.OfferClassification, error) {
	lower := strings.ToLower(text)

	var category negotiation.Category
	switch {
	case strings.Contains(lower, "lunch"):
		category = negotiation.CategoryLunch
	case strings.Contains(lower, "dinner"):
		category = negotiation.CategoryDinner
	default:
		return engine.OfferClassification{}, nil
	}

	if !strings.Contains(lower, "coupon") && !strings.Contains(lower, "token") {
		return engine.OfferClassification{}, nil
	}

	confidence := 0.6
	for _, kw := range sellKeywords {
		if strings.Contains(lower, kw) {
			confidence = 0.9
			break
		}
	}
	return engine.OfferClassification{
		IsOffer:    true,
		Category:   category,
		Confidence: confidence,
	}, nil
}

// ClassifyReply extracts structured signals from a seller reply.
func (k *KeywordClassifier) ClassifyReply(ctx context.Context, text string) (engine.ReplyClassification, error) {
	lower := strings.ToLower(strings.TrimSpace(text))
	var cls engine.ReplyClassification

	if containsAny(lower, waitKeywords) {
		cls.WaitRequested = true
	}
	if containsAny(lower, couponKeywords) {
		cls.HasCoupon = true
	}

	if agreed := matchShort(lower, agreementKeywords); agreed {
		v := true
		cls.Agreement = &v
		cls.Available = &v
	} else if declined := matchShort(lower, declineKeywords); declined {
		v := false
		cls.Agreement = &v
		if strings.Contains(lower, "available") || strings.Contains(lower, "sold") {
			cls.Available = &v
		}
	}

	if m := paymentRe.FindString(text); m != "" {
		cls.PaymentID = &m
	}
	if m := priceRe.FindStringSubmatch(lower); m != nil && cls.PaymentID == nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 10 && n <= 5000 {
			cls.Price = &n
		}
	}

	return cls, nil
}

// DetectWithdrawal scores how strongly a seller message reads as
// backing out of the deal.
func (k *KeywordClassifier) DetectWithdrawal(ctx context.Context, text string) (engine.Signal, error) {
	lower := strings.ToLower(text)
	score := 0.0
	for _, kw := range withdrawalKeywords {
		if strings.Contains(lower, kw) {
			score += 0.4
		}
	}
	if score > 1.0 {
		score = 1.0
	}
	return engine.Signal{Flag: score >= 0.4, Confidence: score}, nil
}

// DetectRefundConfirmation scores a claim that the refund was sent.
func (k *KeywordClassifier) DetectRefundConfirmation(ctx context.Context, text string) (engine.Signal, error) {
	lower := strings.ToLower(text)
	for _, kw := range refundKeywords {
		if strings.Contains(lower, kw) {
			return engine.Signal{Flag: true, Confidence: 0.85}, nil
		}
	}
	return engine.Signal{}, nil
}

// DetectUserWithdrawal recognizes an operator telling the bot to drop
// the current purchase.
func (k *KeywordClassifier) DetectUserWithdrawal(ctx context.Context, text string) (bool, error) {
	lower := strings.ToLower(strings.TrimSpace(text))
	if matchShort(lower, declineKeywords) {
		return true, nil
	}
	return strings.Contains(lower, "don't buy") || strings.Contains(lower, "dont buy") ||
		strings.Contains(lower, "stop") || strings.Contains(lower, "drop it"), nil
}

// ExtractMess pulls a mess name out of a message, if one is present.
func (k *KeywordClassifier) ExtractMess(ctx context.Context, text string) (string, error) {
	lower := strings.ToLower(text)
	idx := strings.Index(lower, "mess")
	if idx < 0 {
		return "", nil
	}

	// "north mess", "mess 2" and similar; look on both sides of the word.
	before := strings.Fields(lower[:idx])
	after := strings.Fields(lower[idx+len("mess"):])
	if len(before) > 0 {
		if w := strings.Trim(before[len(before)-1], ".,!"); w != "" && !isStopWord(w) {
			return w + " mess", nil
		}
	}
	if len(after) > 0 {
		if w := strings.Trim(after[0], ".,!"); numberRe.MatchString(w) || !isStopWord(w) {
			return "mess " + w, nil
		}
	}
	return "", nil
}

func containsAny(s string, kws []string) bool {
	for _, kw := range kws {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// matchShort requires the keyword near the start so that a "no" buried
// in a longer sentence does not read as a decline.
func matchShort(s string, kws []string) bool {
	for _, kw := range kws {
		if s == kw || strings.HasPrefix(s, kw+" ") || strings.HasPrefix(s, kw+",") || strings.HasPrefix(s, kw+"!") || strings.HasPrefix(s, kw+".") {
			return true
		}
	}
	return false
}

func isStopWord(w string) bool {
	switch w {
	case "the", "a", "an", "my", "from", "of", "for", "in", "at", "which", "this", "that":
		return true
	}
	return false
}
