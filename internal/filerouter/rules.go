package filerouter

import "fmt"

// ModelCategory is the validation bucket a model falls into. Routing
// categories from the model catalog collapse onto these three.
type ModelCategory string

const (
	CategoryPDFAnalysis ModelCategory = "pdf_analysis"
	CategoryVision      ModelCategory = "vision"
	CategoryGeneral     ModelCategory = "general"
)

// categoryAliases maps catalog category names onto validation categories.
var categoryAliases = map[string]ModelCategory{
	"pdf_analysis":  CategoryPDFAnalysis,
	"vision":        CategoryVision,
	"general_chat":  CategoryGeneral,
	"reasoning":     CategoryGeneral,
	"coding":        CategoryGeneral,
	"multimodal":    CategoryGeneral,
	"fast_response": CategoryGeneral,
}

// NormalizeCategory collapses a catalog category name onto a validation
// category, defaulting to general.
func NormalizeCategory(name string) ModelCategory {
	if c, ok := categoryAliases[name]; ok {
		return c
	}
	return CategoryGeneral
}

// CategoryForModel derives the validation category straight from the model
// id, so validation and compatibility always agree on the family.
func CategoryForModel(modelID string) ModelCategory {
	switch FamilyOf(modelID) {
	case FamilyDeepseek:
		return CategoryPDFAnalysis
	case FamilyPixtral, FamilyLlamaVision:
		return CategoryVision
	default:
		return CategoryGeneral
	}
}

type categoryLimits struct {
	totalFiles int
	perType    map[FileType]int
}

var maxLimits = map[ModelCategory]categoryLimits{
	// DeepSeek: 3 files total, any mix of documents, no images.
	CategoryPDFAnalysis: {
		totalFiles: 3,
		perType: map[FileType]int{
			TypePDF:   3,
			TypeDOCX:  3,
			TypePPTX:  3,
			TypeImage: 0,
		},
	},
	// Vision models: images only, up to 10.
	CategoryVision: {
		totalFiles: 10,
		perType: map[FileType]int{
			TypePDF:   0,
			TypeDOCX:  0,
			TypePPTX:  0,
			TypeImage: 10,
		},
	},
	// Everything else: one document via extraction, no images.
	CategoryGeneral: {
		totalFiles: 1,
		perType: map[FileType]int{
			TypePDF:   1,
			TypeDOCX:  1,
			TypePPTX:  1,
			TypeImage: 0,
		},
	},
}

// sizeLimitsMB caps individual files per type, tighter than the blanket cap.
var sizeLimitsMB = map[FileType]int{
	TypePDF:   50,
	TypeImage: 10,
	TypeDOCX:  25,
	TypePPTX:  50,
}

const defaultSizeLimitMB = 25

// SizeLimitMB returns the per-type size cap in megabytes.
func SizeLimitMB(t FileType) int {
	if mb, ok := sizeLimitsMB[t]; ok {
		return mb
	}
	return defaultSizeLimitMB
}

// UploadLimits exposes the per-type caps for a validation category.
func UploadLimits(category ModelCategory) map[FileType]int {
	limits, ok := maxLimits[category]
	if !ok {
		limits = maxLimits[CategoryGeneral]
	}
	out := make(map[FileType]int, len(limits.perType)+1)
	for t, n := range limits.perType {
		out[t] = n
	}
	return out
}

// TotalLimit is the combined cap across document types for a category.
func TotalLimit(category ModelCategory) int {
	limits, ok := maxLimits[category]
	if !ok {
		limits = maxLimits[CategoryGeneral]
	}
	return limits.totalFiles
}

// ValidationReason identifies why an upload was rejected.
type ValidationReason string

const (
	ReasonTypeNotSupported ValidationReason = "file_type_not_supported"
	ReasonTotalLimit       ValidationReason = "total_limit_exceeded"
	ReasonCountLimit       ValidationReason = "count_limit_exceeded"
	ReasonSizeLimit        ValidationReason = "file_size_exceeded"
	ReasonPassed           ValidationReason = "validation_passed"
)

// Validation is the result of checking one prospective upload against the
// current per-type counts for the conversation.
type Validation struct {
	IsValid        bool             `json:"is_valid"`
	Reason         ValidationReason `json:"reason"`
	Message        string           `json:"message"`
	MaxAllowed     int              `json:"max_allowed"`
	CurrentCount   int              `json:"current_count"`
	RemainingSlots int              `json:"remaining_slots,omitempty"`
	FileBreakdown  map[FileType]int `json:"file_breakdown,omitempty"`
}

// ValidateUpload checks whether one more file of the given type may be added.
// currentFiles holds counts of files already attached (the new file is not
// pre-counted). Checks run in priority order: type support, combined cap,
// per-type cap, size.
func ValidateUpload(fileType FileType, currentFiles map[FileType]int, category ModelCategory, sizeMB float64) Validation {
	limits, ok := maxLimits[category]
	if !ok {
		limits = maxLimits[CategoryGeneral]
	}
	maxAllowed := limits.perType[fileType]
	currentCount := currentFiles[fileType]

	if maxAllowed == 0 {
		return Validation{
			Reason:       ReasonTypeNotSupported,
			Message:      fmt.Sprintf("%s files not supported with current model", fileType.upper()),
			CurrentCount: currentCount,
		}
	}

	if category == CategoryPDFAnalysis {
		total := currentFiles[TypePDF] + currentFiles[TypeDOCX] + currentFiles[TypePPTX]
		if total >= limits.totalFiles {
			return Validation{
				Reason:        ReasonTotalLimit,
				Message:       fmt.Sprintf("Maximum %d files allowed (any mix of PDF/DOCX/PPTX)", limits.totalFiles),
				MaxAllowed:    limits.totalFiles,
				CurrentCount:  total,
				FileBreakdown: copyCounts(currentFiles),
			}
		}
	}

	if currentCount >= maxAllowed {
		return Validation{
			Reason:       ReasonCountLimit,
			Message:      fmt.Sprintf("Cannot upload more %s files. Limit: %d", fileType.upper(), maxAllowed),
			MaxAllowed:   maxAllowed,
			CurrentCount: currentCount,
		}
	}

	if limit := SizeLimitMB(fileType); sizeMB > float64(limit) {
		return Validation{
			Reason:       ReasonSizeLimit,
			Message:      fmt.Sprintf("File too large (%.2fMB). Max: %dMB", sizeMB, limit),
			MaxAllowed:   maxAllowed,
			CurrentCount: currentCount,
		}
	}

	return Validation{
		IsValid:        true,
		Reason:         ReasonPassed,
		Message:        "File upload allowed",
		MaxAllowed:     maxAllowed,
		CurrentCount:   currentCount,
		RemainingSlots: maxAllowed - currentCount,
	}
}

// BatchFileResult is the per-file outcome of a batch validation.
type BatchFileResult struct {
	Filename string           `json:"filename"`
	IsValid  bool             `json:"is_valid"`
	Reason   ValidationReason `json:"reason"`
	Message  string           `json:"message"`
}

// BatchValidation summarizes a multi-file validation pass.
type BatchValidation struct {
	AllValid bool              `json:"all_valid"`
	Results  []BatchFileResult `json:"results"`
	Summary  BatchSummary      `json:"summary"`
}

type BatchSummary struct {
	TotalFiles   int `json:"total_files"`
	ValidFiles   int `json:"valid_files"`
	InvalidFiles int `json:"invalid_files"`
}

// ValidateBatch validates a set of prospective uploads in order, counting
// each accepted file against the ones after it.
func ValidateBatch(files []FileInfo, currentFiles map[FileType]int, category ModelCategory) BatchValidation {
	counts := copyCounts(currentFiles)
	batch := BatchValidation{AllValid: true}
	for _, f := range files {
		v := ValidateUpload(f.FileType, counts, category, f.FileSizeMB)
		batch.Results = append(batch.Results, BatchFileResult{
			Filename: f.Filename,
			IsValid:  v.IsValid,
			Reason:   v.Reason,
			Message:  v.Message,
		})
		if v.IsValid {
			counts[f.FileType]++
			batch.Summary.ValidFiles++
		} else {
			batch.AllValid = false
			batch.Summary.InvalidFiles++
		}
		batch.Summary.TotalFiles++
	}
	return batch
}

func copyCounts(counts map[FileType]int) map[FileType]int {
	out := make(map[FileType]int, len(counts))
	for t, n := range counts {
		out[t] = n
	}
	return out
}
