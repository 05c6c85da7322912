package filerouter

import "strings"

// Family is a coarse grouping of model identifiers sharing one capability
// profile. Unrecognized identifiers map to FamilyUnknown, which carries the
// most conservative profile.
type Family string

const (
	FamilyDeepseek    Family = "deepseek"
	FamilyPixtral     Family = "pixtral"
	FamilyLlamaVision Family = "llama-vision"
	FamilyQwen        Family = "qwen"
	FamilyLlama       Family = "llama"
	FamilyGemma       Family = "gemma"
	FamilyGPT         Family = "gpt"
	FamilyMistral     Family = "mistral"
	FamilyUnknown     Family = "unknown"
)

// familyMarkers is checked in order; an entry matches when every marker is a
// case-insensitive substring of the model id. More specific families must
// come before generic ones ("llama"+"vision" before "llama").
var familyMarkers = []struct {
	family  Family
	markers []string
}{
	{FamilyDeepseek, []string{"deepseek"}},
	{FamilyPixtral, []string{"pixtral"}},
	{FamilyLlamaVision, []string{"llama", "vision"}},
	{FamilyQwen, []string{"qwen"}},
	{FamilyLlama, []string{"llama"}},
	{FamilyGemma, []string{"gemma"}},
	{FamilyGPT, []string{"gpt"}},
	{FamilyMistral, []string{"mistral"}},
}

// FamilyOf resolves the capability family for a model identifier.
func FamilyOf(modelID string) Family {
	id := strings.ToLower(modelID)
	for _, entry := range familyMarkers {
		matched := true
		for _, marker := range entry.markers {
			if !strings.Contains(id, marker) {
				matched = false
				break
			}
		}
		if matched {
			return entry.family
		}
	}
	return FamilyUnknown
}

// Capability describes what one model family can accept. The table is static
// and never mutated at runtime; it is the single source of truth for
// per-model routing behavior.
type Capability struct {
	SupportsPDF    bool             `json:"supports_pdf"`
	SupportsImages bool             `json:"supports_images"`
	NativeUpload   bool             `json:"native_upload"`
	ContextWindow  int              `json:"context_window"`
	MaxFiles       map[FileType]int `json:"max_files"`
}

var conservativeCapability = Capability{
	ContextWindow: 8000,
}

var familyCapabilities = map[Family]Capability{
	FamilyDeepseek: {
		SupportsPDF:   true,
		NativeUpload:  true,
		ContextWindow: 128000,
		MaxFiles: map[FileType]int{
			TypePDF:  3,
			TypeDOCX: 3,
			TypePPTX: 3,
		},
	},
	FamilyPixtral: {
		SupportsImages: true,
		ContextWindow:  32000,
		MaxFiles: map[FileType]int{
			TypeImage: 10,
		},
	},
	FamilyLlamaVision: {
		SupportsImages: true,
		ContextWindow:  32000,
		MaxFiles: map[FileType]int{
			TypeImage: 10,
		},
	},
}

// Capabilities returns the capability profile for a family. Families without
// an explicit entry (and FamilyUnknown) get the conservative profile: no
// native support, one file of any type, small context window.
func Capabilities(family Family) Capability {
	if c, ok := familyCapabilities[family]; ok {
		return c
	}
	return conservativeCapability
}

// MaxFilesFor returns the per-type concurrent file cap, defaulting to 1 for
// any type without an explicit entry.
func (c Capability) MaxFilesFor(t FileType) int {
	if n, ok := c.MaxFiles[t]; ok {
		return n
	}
	return 1
}

// ModelCapabilities is the capability lookup keyed by the full model id,
// exposed on the HTTP boundary.
func ModelCapabilities(modelID string) Capability {
	return Capabilities(FamilyOf(modelID))
}

// Reference models offered when the builder recommends a switch.
const (
	RecommendedDocumentModel = "provider-1/deepseek-v3.1"
	RecommendedVisionModel   = "provider-6/pixtral-12b"
	recommendedVisionAlt     = "provider-6/llama-3.2-11b-vision-instruct"
)
