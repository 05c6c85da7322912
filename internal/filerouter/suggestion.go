package filerouter

import (
	"fmt"
	"strings"
)

// SuggestionType ranks how the UI should present a suggestion.
type SuggestionType string

const (
	SuggestSuccess SuggestionType = "success"
	SuggestError   SuggestionType = "error"
	SuggestWarning SuggestionType = "warning"
	SuggestSwitch  SuggestionType = "suggestion"
	SuggestInfo    SuggestionType = "info"
)

// Action is the remedial step offered to the user.
type Action string

const (
	ActionProceed        Action = "proceed"
	ActionSwitchModel    Action = "switch_model"
	ActionRemoveFiles    Action = "remove_files"
	ActionReduceFiles    Action = "reduce_files"
	ActionCompressFile   Action = "compress_file"
	ActionContinueAnyway Action = "continue_anyway"
	ActionNone           Action = "none"
)

// Severity orders suggestions for display.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Suggestion is the user-facing record describing a routing verdict and the
// action offered. Field names on the wire match what the frontend renders.
// Each builder branch fills only the fields its variant defines.
type Suggestion struct {
	Type             SuggestionType `json:"type"`
	Title            string         `json:"title"`
	Message          string         `json:"message"`
	Details          string         `json:"details,omitempty"`
	Action           Action         `json:"action"`
	ActionText       string         `json:"actionText"`
	Severity         Severity       `json:"severity"`
	RecommendedModel string         `json:"recommendedModel,omitempty"`
	CompatibleModels ModelSet       `json:"compatibleModels"`
	MaxFiles         int            `json:"maxFiles,omitempty"`
	CurrentCount     int            `json:"currentCount,omitempty"`
}

// BuildSuggestion projects a decision plus validation outcome into the
// suggestion shown to the user. It never mutates its inputs and performs no
// I/O; all text is derived deterministically from the decision fields.
func BuildSuggestion(dec Decision, val Validation, info FileInfo) Suggestion {
	if !info.IsSupported {
		return unsupportedFileSuggestion(info)
	}
	if !val.IsValid {
		return validationSuggestion(dec, val, info)
	}
	if dec.IsCompatible {
		return compatibleSuggestion(dec, info)
	}
	if dec.ExceedsLimit {
		return capacitySuggestion(dec, info)
	}
	return incompatibleSuggestion(dec, info)
}

func unsupportedFileSuggestion(info FileInfo) Suggestion {
	return Suggestion{
		Type:    SuggestError,
		Title:   "File Type Not Supported",
		Message: fmt.Sprintf("%q is not a supported file type.", info.Filename),
		Details: strings.Join([]string{
			"Supported: " + strings.Join(SupportedExtensions(), ", "),
			"",
			"DeepSeek models accept up to 3 documents (any mix of PDF/DOCX/PPTX).",
			"Vision models accept up to 10 images.",
		}, "\n"),
		Action:           ActionNone,
		ActionText:       "OK",
		Severity:         SeverityHigh,
		CompatibleModels: NoModels(),
	}
}

func validationSuggestion(dec Decision, val Validation, info FileInfo) Suggestion {
	ft := info.FileType.upper()
	switch val.Reason {
	case ReasonTypeNotSupported:
		if dec.RecommendedModel != "" {
			return Suggestion{
				Type:    SuggestSwitch,
				Title:   "Model Switch Recommended",
				Message: fmt.Sprintf("Your current model doesn't support %s files.", ft),
				Details: strings.Join([]string{
					fmt.Sprintf("%s files are not available with %s.", ft, dec.CurrentModel),
					"",
					"Switch to " + dec.RecommendedModel + " for:",
					"- Support for this file type",
					fmt.Sprintf("- Up to %d file(s) at once", recommendedCap(info.FileType)),
				}, "\n"),
				Action:           ActionSwitchModel,
				ActionText:       "Switch to " + dec.RecommendedModel,
				Severity:         SeverityMedium,
				RecommendedModel: dec.RecommendedModel,
				CompatibleModels: dec.CompatibleModels,
			}
		}
		return Suggestion{
			Type:             SuggestError,
			Title:            "File Type Not Supported",
			Message:          val.Message,
			Details:          "No available model accepts " + ft + " files.",
			Action:           ActionNone,
			ActionText:       "OK",
			Severity:         SeverityHigh,
			CompatibleModels: dec.CompatibleModels,
		}
	case ReasonTotalLimit:
		return Suggestion{
			Type:    SuggestWarning,
			Title:   "Maximum Upload Limit Reached",
			Message: fmt.Sprintf("You've reached the maximum upload limit (%d files).", val.MaxAllowed),
			Details: strings.Join([]string{
				"Current files: " + breakdownText(val.FileBreakdown),
				"",
				"Remove one file if you wish to add another.",
				"Tip: you can upload any mix of PDF, DOCX, or PPTX files.",
			}, "\n"),
			Action:           ActionRemoveFiles,
			ActionText:       "OK",
			Severity:         SeverityMedium,
			CompatibleModels: dec.CompatibleModels,
			MaxFiles:         val.MaxAllowed,
			CurrentCount:     val.CurrentCount,
		}
	case ReasonCountLimit:
		return Suggestion{
			Type:    SuggestWarning,
			Title:   "File Limit Reached",
			Message: fmt.Sprintf("Cannot upload more %s files with this model.", ft),
			Details: fmt.Sprintf("You've already uploaded %d %s file(s). Limit: %d.\n\nRemove an existing file to upload a new one.",
				val.CurrentCount, ft, val.MaxAllowed),
			Action:           ActionRemoveFiles,
			ActionText:       "OK",
			Severity:         SeverityMedium,
			RecommendedModel: dec.RecommendedModel,
			CompatibleModels: dec.CompatibleModels,
			MaxFiles:         val.MaxAllowed,
			CurrentCount:     val.CurrentCount,
		}
	case ReasonSizeLimit:
		return Suggestion{
			Type:             SuggestError,
			Title:            "File Too Large",
			Message:          val.Message,
			Details:          fmt.Sprintf("Maximum allowed size for %s files is %dMB.", ft, SizeLimitMB(info.FileType)),
			Action:           ActionCompressFile,
			ActionText:       "Try compressing the file or use a smaller version",
			Severity:         SeverityMedium,
			CompatibleModels: dec.CompatibleModels,
		}
	default:
		return Suggestion{
			Type:             SuggestError,
			Title:            "Upload Failed",
			Message:          val.Message,
			Details:          "Please check the file and try again.",
			Action:           ActionNone,
			ActionText:       "OK",
			Severity:         SeverityMedium,
			CompatibleModels: dec.CompatibleModels,
		}
	}
}

func compatibleSuggestion(dec Decision, info FileInfo) Suggestion {
	ft := info.FileType.upper()
	return Suggestion{
		Type:             SuggestSuccess,
		Title:            ft + " Upload Ready",
		Message:          fmt.Sprintf("Your %s file is compatible with the current model.", ft),
		Details:          dec.Reason,
		Action:           ActionProceed,
		ActionText:       "Upload File",
		Severity:         SeverityLow,
		CompatibleModels: dec.CompatibleModels,
		MaxFiles:         dec.MaxFiles,
		CurrentCount:     dec.FileCount,
	}
}

func capacitySuggestion(dec Decision, info FileInfo) Suggestion {
	ft := info.FileType.upper()
	excess := dec.FileCount - dec.MaxFiles
	return Suggestion{
		Type:             SuggestWarning,
		Title:            fmt.Sprintf("Too Many %s Files", ft),
		Message:          "You're trying to upload too many files for this model.",
		Details:          fmt.Sprintf("Maximum %d %s file(s) allowed. You have %d.", dec.MaxFiles, ft, dec.FileCount),
		Action:           ActionReduceFiles,
		ActionText:       fmt.Sprintf("Remove %d file(s) to proceed", excess),
		Severity:         SeverityMedium,
		RecommendedModel: dec.RecommendedModel,
		CompatibleModels: dec.CompatibleModels,
		MaxFiles:         dec.MaxFiles,
		CurrentCount:     dec.FileCount,
	}
}

func incompatibleSuggestion(dec Decision, info FileInfo) Suggestion {
	if dec.RecommendedModel == "" {
		return Suggestion{
			Type:             SuggestError,
			Title:            "Compatibility Issue",
			Message:          "This file type may not work with your current model.",
			Details:          dec.Reason,
			Action:           ActionContinueAnyway,
			ActionText:       "Continue Anyway",
			Severity:         SeverityHigh,
			CompatibleModels: dec.CompatibleModels,
		}
	}

	var title, message string
	var details []string
	switch info.FileType {
	case TypeImage:
		title = "Vision Model Required"
		message = "Image files require a vision-capable model."
		details = []string{
			fmt.Sprintf("Your current model (%s) can't process images.", dec.CurrentModel),
			"",
			"Switch to a vision model for:",
			"- Direct image understanding",
			"- Up to 10 images per conversation",
		}
	default:
		title = "Model Switch Recommended"
		message = fmt.Sprintf("%s files work best with DeepSeek models.", info.FileType.upper())
		details = []string{
			fmt.Sprintf("Your current model (%s) doesn't support native %s reading.", dec.CurrentModel, info.FileType.upper()),
			"",
			"Switch to DeepSeek for:",
			"- Native PDF support with 128K context",
			"- Up to 3 documents at once (any mix of PDF/DOCX/PPTX)",
			"- Better document comprehension",
		}
	}

	return Suggestion{
		Type:             SuggestSwitch,
		Title:            title,
		Message:          message,
		Details:          strings.Join(details, "\n"),
		Action:           ActionSwitchModel,
		ActionText:       "Switch to " + dec.RecommendedModel,
		Severity:         SeverityMedium,
		RecommendedModel: dec.RecommendedModel,
		CompatibleModels: dec.CompatibleModels,
	}
}

func recommendedCap(t FileType) int {
	if t == TypeImage {
		return Capabilities(FamilyPixtral).MaxFilesFor(TypeImage)
	}
	return Capabilities(FamilyDeepseek).MaxFilesFor(t)
}

func breakdownText(counts map[FileType]int) string {
	var parts []string
	for _, t := range detectionOrder {
		if n := counts[t]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, t.upper()))
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

func (t FileType) upper() string {
	return strings.ToUpper(string(t))
}
