package modelrouter

import (
	"testing"
	"time"
)

func TestAnalyzeQuery(t *testing.T) {
	r := New()

	cat, conf, matches := r.AnalyzeQuery("Help me debug this Python code error")
	if cat != CategoryCoding {
		t.Fatalf("category %s, want coding", cat)
	}
	if matches < 3 || conf != ConfidenceVeryHigh {
		t.Fatalf("matches %d conf %s, want >=3 very_high", matches, conf)
	}

	cat, conf, _ = r.AnalyzeQuery("hello there")
	if cat != CategoryGeneralChat || conf != ConfidenceLow {
		t.Fatalf("no keywords should fall back to general chat, got %s/%s", cat, conf)
	}
}

func TestModelForQueryTiers(t *testing.T) {
	r := New()
	models := Models(CategoryPDFAnalysis)

	for attempt, want := range models.Tiers() {
		model, routing := r.ModelForQuery("anything", "", true, false, attempt)
		if model != want {
			t.Fatalf("attempt %d: model %s, want %s", attempt, model, want)
		}
		if routing.Method != "document_detected" {
			t.Fatalf("attempt %d: method %s", attempt, routing.Method)
		}
	}

	// attempts past the chain stay on the fallback
	model, routing := r.ModelForQuery("anything", "", true, false, 7)
	if model != models.Fallback || routing.Tier != TierFallback {
		t.Fatalf("deep attempt should cap at fallback, got %s/%s", model, routing.Tier)
	}
}

func TestModelForQueryManualOverride(t *testing.T) {
	r := New()
	model, routing := r.ModelForQuery("summarize this pdf", "provider-3/gemma-3-27b-it", true, false, 0)
	if model != "provider-3/gemma-3-27b-it" {
		t.Fatalf("manual selection must win, got %s", model)
	}
	if routing.Method != "manual" {
		t.Fatalf("method %s, want manual", routing.Method)
	}
}

func TestModelForQuerySpeed(t *testing.T) {
	r := New()
	model, routing := r.ModelForQuery("whatever", "", false, true, 0)
	if routing.Category != CategoryFastResponse {
		t.Fatalf("category %s, want fast_response", routing.Category)
	}
	if model != Models(CategoryFastResponse).Primary {
		t.Fatalf("model %s", model)
	}
}

func TestCategoryFor(t *testing.T) {
	if CategoryFor("provider-1/deepseek-v3.1") != CategoryPDFAnalysis {
		t.Fatalf("deepseek should be pdf_analysis")
	}
	if CategoryFor("provider-6/pixtral-12b") != CategoryMultimodal {
		t.Fatalf("pixtral should be multimodal")
	}
	if CategoryFor("provider-8/gpt-oss-120b") != CategoryCoding {
		t.Fatalf("catalog model should resolve to its category")
	}
	if CategoryFor("never-heard-of-it") != CategoryGeneralChat {
		t.Fatalf("unknown model should default to general chat")
	}
}

func TestCheckRateLimit(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	r := New()
	r.now = func() time.Time { return now }

	for i := 0; i < defaultMaxRequestsPerMinute; i++ {
		if rl := r.CheckRateLimit(); !rl.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl := r.CheckRateLimit(); rl.Allowed {
		t.Fatalf("request over the limit should be denied")
	}

	// window slides: a minute later everything is allowed again
	now = now.Add(61 * time.Second)
	rl := r.CheckRateLimit()
	if !rl.Allowed || rl.RequestsMade != 1 {
		t.Fatalf("window should have reset: %+v", rl)
	}
}

func TestAllModelsUnique(t *testing.T) {
	ids := AllModels()
	seen := make(map[string]struct{})
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate model id %s", id)
		}
		seen[id] = struct{}{}
	}
	if len(ids) == 0 {
		t.Fatalf("catalog should not be empty")
	}
}
