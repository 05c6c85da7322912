package modelrouter

import (
	"strings"
	"sync"
	"time"

	"docuchat/internal/filerouter"
)

// Confidence grades how strongly the keyword analysis matched.
type Confidence string

const (
	ConfidenceVeryHigh Confidence = "very_high"
	ConfidenceHigh     Confidence = "high"
	ConfidenceMedium   Confidence = "medium"
	ConfidenceLow      Confidence = "low"
)

type routingRule struct {
	category Category
	keywords []string
}

// rules are scored by keyword hits; the best-scoring category wins and ties
// keep the earlier rule.
var routingRules = []routingRule{
	{CategoryPDFAnalysis, []string{"pdf", "document", "file", "page", "summarize", "extract"}},
	{CategoryReasoning, []string{"why", "explain", "reason", "logic", "prove", "step by step", "think"}},
	{CategoryCoding, []string{"code", "function", "debug", "error", "python", "golang", "javascript", "compile", "bug"}},
	{CategoryMultimodal, []string{"image", "picture", "photo", "screenshot", "diagram"}},
	{CategoryFastResponse, []string{"quick", "fast", "short", "briefly", "tldr"}},
}

// Routing describes why a model was chosen.
type Routing struct {
	Method            string     `json:"routing_method"`
	Category          Category   `json:"category"`
	Tier              Tier       `json:"tier"`
	CurrentModel      string     `json:"current_model"`
	SupportsNativePDF bool       `json:"supports_native_pdf"`
	ContextWindow     int        `json:"context_window"`
	Description       string     `json:"description"`
	Confidence        Confidence `json:"confidence,omitempty"`
	KeywordMatches    int        `json:"keyword_matches,omitempty"`
}

// Router picks models for queries with a three-tier fallback chain.
type Router struct {
	mu      sync.Mutex
	history []time.Time

	maxPerMinute int
	now          func() time.Time
}

const defaultMaxRequestsPerMinute = 5

// New returns a router with the default rate limit.
func New() *Router {
	return &Router{maxPerMinute: defaultMaxRequestsPerMinute, now: time.Now}
}

// AnalyzeQuery scores the question against the routing rules and returns the
// winning category with a confidence grade.
func (r *Router) AnalyzeQuery(question string) (Category, Confidence, int) {
	q := strings.ToLower(question)
	best := CategoryGeneralChat
	bestMatches := 0
	for _, rule := range routingRules {
		matches := 0
		for _, kw := range rule.keywords {
			if strings.Contains(q, kw) {
				matches++
			}
		}
		if matches > bestMatches {
			bestMatches = matches
			best = rule.category
		}
	}
	var conf Confidence
	switch {
	case bestMatches >= 3:
		conf = ConfidenceVeryHigh
	case bestMatches == 2:
		conf = ConfidenceHigh
	case bestMatches == 1:
		conf = ConfidenceMedium
	default:
		conf = ConfidenceLow
	}
	return best, conf, bestMatches
}

// ModelForQuery resolves the model for a query. A user-selected model always
// wins; conversations holding documents force the PDF category; attempt
// selects the tier (0 primary, 1 secondary, 2+ fallback).
func (r *Router) ModelForQuery(question, userSelected string, hasDocuments, preferSpeed bool, attempt int) (string, Routing) {
	if userSelected != "" && userSelected != "auto" {
		cat := CategoryFor(userSelected)
		models := Models(cat)
		return userSelected, Routing{
			Method:            "manual",
			Category:          cat,
			Tier:              "manual",
			CurrentModel:      userSelected,
			SupportsNativePDF: models.SupportsNativePDF,
			ContextWindow:     models.ContextWindow,
			Description:       "User selected: " + models.Description,
		}
	}

	category := CategoryGeneralChat
	method := "intelligent"
	conf := ConfidenceLow
	matches := 0
	switch {
	case hasDocuments:
		category = CategoryPDFAnalysis
		method = "document_detected"
		conf = ConfidenceVeryHigh
	case preferSpeed:
		category = CategoryFastResponse
		method = "speed_optimized"
		conf = ConfidenceHigh
	default:
		category, conf, matches = r.AnalyzeQuery(question)
	}

	models := Models(category)
	tier, model := tierAt(models, attempt)
	return model, Routing{
		Method:            method,
		Category:          category,
		Tier:              tier,
		CurrentModel:      model,
		SupportsNativePDF: models.SupportsNativePDF,
		ContextWindow:     models.ContextWindow,
		Description:       models.Description,
		Confidence:        conf,
		KeywordMatches:    matches,
	}
}

func tierAt(models CategoryModels, attempt int) (Tier, string) {
	switch {
	case attempt <= 0:
		return TierPrimary, models.Primary
	case attempt == 1:
		return TierSecondary, models.Secondary
	default:
		return TierFallback, models.Fallback
	}
}

// CategoryFor resolves the routing category of a model id. It leans on the
// filerouter family detection so the two packages never disagree about what
// a deepseek or vision model is.
func CategoryFor(modelID string) Category {
	switch filerouter.FamilyOf(modelID) {
	case filerouter.FamilyDeepseek:
		return CategoryPDFAnalysis
	case filerouter.FamilyPixtral, filerouter.FamilyLlamaVision:
		return CategoryMultimodal
	}
	norm := strings.ToLower(modelID)
	if i := strings.LastIndex(norm, "/"); i >= 0 {
		norm = norm[i+1:]
	}
	for _, cat := range []Category{CategoryGeneralChat, CategoryReasoning, CategoryCoding, CategoryMultimodal, CategoryFastResponse} {
		for _, id := range catalog[cat].Tiers() {
			short := id
			if i := strings.LastIndex(short, "/"); i >= 0 {
				short = short[i+1:]
			}
			if strings.EqualFold(short, norm) || strings.EqualFold(id, modelID) {
				return cat
			}
		}
	}
	return CategoryGeneralChat
}

// RateLimit is the outcome of a rate limit check.
type RateLimit struct {
	Allowed       bool   `json:"allowed"`
	RequestsMade  int    `json:"requests_made"`
	Limit         int    `json:"limit"`
	Remaining     int    `json:"remaining,omitempty"`
	RetryAfterSec int    `json:"retry_after,omitempty"`
	Message       string `json:"message,omitempty"`
}

// RateLimitStatus reports the window state without consuming a slot.
func (r *Router) RateLimitStatus() RateLimit {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-time.Minute)
	kept := r.history[:0]
	for _, ts := range r.history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	r.history = kept

	return RateLimit{
		Allowed:      len(r.history) < r.maxPerMinute,
		RequestsMade: len(r.history),
		Limit:        r.maxPerMinute,
		Remaining:    r.maxPerMinute - len(r.history),
	}
}

// CheckRateLimit enforces a sliding one-minute window over routing requests.
func (r *Router) CheckRateLimit() RateLimit {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cutoff := now.Add(-time.Minute)
	kept := r.history[:0]
	for _, ts := range r.history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	r.history = kept

	if len(r.history) >= r.maxPerMinute {
		return RateLimit{
			RequestsMade:  len(r.history),
			Limit:         r.maxPerMinute,
			RetryAfterSec: 60,
			Message:       "Rate limit exceeded",
		}
	}
	r.history = append(r.history, now)
	return RateLimit{
		Allowed:      true,
		RequestsMade: len(r.history),
		Limit:        r.maxPerMinute,
		Remaining:    r.maxPerMinute - len(r.history),
	}
}
