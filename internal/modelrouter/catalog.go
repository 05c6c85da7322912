// Package modelrouter selects the model used to answer a query: a static
// category catalog with a three-tier fallback chain per category, keyword
// routing, and a request rate limiter. Per-type file caps are NOT here; the
// filerouter capability table is authoritative for those.
package modelrouter

// Category names the routing buckets.
type Category string

const (
	CategoryPDFAnalysis  Category = "pdf_analysis"
	CategoryGeneralChat  Category = "general_chat"
	CategoryReasoning    Category = "reasoning"
	CategoryCoding       Category = "coding"
	CategoryMultimodal   Category = "multimodal"
	CategoryFastResponse Category = "fast_response"
)

// Tier identifies the fallback position of a model within its category.
type Tier string

const (
	TierPrimary   Tier = "primary"
	TierSecondary Tier = "secondary"
	TierFallback  Tier = "fallback"
)

// CategoryModels is one catalog entry: the three-tier chain plus display
// metadata. The catalog is static and loaded at process start.
type CategoryModels struct {
	Primary           string `json:"primary"`
	Secondary         string `json:"secondary"`
	Fallback          string `json:"fallback"`
	SupportsNativePDF bool   `json:"supports_native_pdf"`
	ContextWindow     int    `json:"context_window"`
	Description       string `json:"description"`
}

// Tiers returns the chain in fallback order.
func (c CategoryModels) Tiers() []string {
	return []string{c.Primary, c.Secondary, c.Fallback}
}

var catalog = map[Category]CategoryModels{
	CategoryPDFAnalysis: {
		Primary:           "provider-1/deepseek-v3.1",
		Secondary:         "provider-2/deepseek-r1-0528",
		Fallback:          "provider-8/deepseek-v3",
		SupportsNativePDF: true,
		ContextWindow:     128000,
		Description:       "PDF Analysis - DeepSeek models for document understanding",
	},
	CategoryGeneralChat: {
		Primary:       "provider-8/kimi-k2",
		Secondary:     "provider-8/gemini-2.0-flash",
		Fallback:      "provider-8/mistral-small-3.2-24b-instruct",
		ContextWindow: 128000,
		Description:   "General Chat - Balanced conversational models",
	},
	CategoryReasoning: {
		Primary:       "provider-2/deepseek-r1-0528",
		Secondary:     "provider-8/deepseek-r1-distill-llama-70b",
		Fallback:      "provider-8/qwen3-32b",
		ContextWindow: 128000,
		Description:   "Reasoning - Explicit chain-of-thought models",
	},
	CategoryCoding: {
		Primary:       "provider-8/gpt-oss-120b",
		Secondary:     "provider-8/gpt-oss-20b",
		Fallback:      "provider-8/hermes-4-14b",
		ContextWindow: 128000,
		Description:   "Coding - Open-source programming models",
	},
	CategoryMultimodal: {
		Primary:       "provider-6/pixtral-12b",
		Secondary:     "provider-6/llama-3.2-11b-vision-instruct",
		Fallback:      "provider-3/gemma-3-27b-it",
		ContextWindow: 32000,
		Description:   "Multimodal - Vision models for image inputs",
	},
	CategoryFastResponse: {
		Primary:       "provider-6/mimo-v2-flash",
		Secondary:     "provider-8/deepseek-v3",
		Fallback:      "provider-8/llama-4-scout",
		ContextWindow: 32000,
		Description:   "Fast Response - Speed-optimized models",
	},
}

// Catalog exposes a copy of all categories for the monitoring endpoint.
func Catalog() map[Category]CategoryModels {
	out := make(map[Category]CategoryModels, len(catalog))
	for k, v := range catalog {
		out[k] = v
	}
	return out
}

// Models returns the tier chain for a category, falling back to general
// chat for unknown categories.
func Models(category Category) CategoryModels {
	if c, ok := catalog[category]; ok {
		return c
	}
	return catalog[CategoryGeneralChat]
}

// AllModels lists every model id in the catalog, tier order within category.
func AllModels() []string {
	ordered := []Category{
		CategoryPDFAnalysis, CategoryGeneralChat, CategoryReasoning,
		CategoryCoding, CategoryMultimodal, CategoryFastResponse,
	}
	var ids []string
	seen := make(map[string]struct{})
	for _, cat := range ordered {
		for _, id := range catalog[cat].Tiers() {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}
