package filerouter

// Decision is the policy-level verdict for one (model, file type, count)
// combination. It is computed fresh per request and never persisted.
type Decision struct {
	IsCompatible     bool     `json:"is_compatible"`
	CurrentModel     string   `json:"current_model"`
	FileType         FileType `json:"file_type"`
	FileCount        int      `json:"file_count"`
	MaxFiles         int      `json:"max_files"`
	ExceedsLimit     bool     `json:"exceeds_limit"`
	RecommendedModel string   `json:"recommended_model,omitempty"`
	CompatibleModels ModelSet `json:"compatible_models"`
	Reason           string   `json:"reason"`
	ActionRequired   bool     `json:"action_required"`
}

// typeProfile is the baseline per-type compatibility info: which models are
// generally compatible and which one to recommend. Per-model file caps are
// NOT here; those come from the capability table.
type typeProfile struct {
	compatible  ModelSet
	recommended string
	reason      string
}

var typeProfiles = map[FileType]typeProfile{
	TypePDF: {
		compatible:  AllModels(),
		recommended: RecommendedDocumentModel,
		reason:      "DeepSeek models read PDFs natively with a 128K context. Other models receive extracted text.",
	},
	TypeImage: {
		compatible:  SomeModels(RecommendedVisionModel, recommendedVisionAlt),
		recommended: RecommendedVisionModel,
		reason:      "Images require a vision-capable model such as Pixtral or Llama Vision.",
	},
	TypeDOCX: {
		compatible:  AllModels(),
		recommended: RecommendedDocumentModel,
		reason:      "Text is extracted and sent to any model. DeepSeek accepts up to 3 files.",
	},
	TypePPTX: {
		compatible:  AllModels(),
		recommended: RecommendedDocumentModel,
		reason:      "Text is extracted and sent to any model. DeepSeek accepts up to 3 files.",
	},
}

var unsupportedProfile = typeProfile{
	compatible: NoModels(),
	reason:     "Unsupported file type",
}

// acceptsType reports whether the family can take the file type at all:
// documents universally via extraction fallback, images only on vision
// families.
func acceptsType(family Family, t FileType) bool {
	switch t {
	case TypePDF, TypeDOCX, TypePPTX:
		return true
	case TypeImage:
		return Capabilities(family).SupportsImages
	default:
		return false
	}
}

// Check resolves the compatibility decision for uploading the given number
// of files of one type to the current model. requestedCount already includes
// the file under consideration (callers pass existing count + 1). Check is
// pure and never fails; unknown models and unknown types resolve to the most
// restrictive decision.
func Check(currentModel string, fileType FileType, requestedCount int) Decision {
	family := FamilyOf(currentModel)
	capability := Capabilities(family)

	profile, ok := typeProfiles[fileType]
	if !ok {
		profile = unsupportedProfile
	}

	accepted := acceptsType(family, fileType)
	maxFiles := capability.MaxFilesFor(fileType)
	exceeds := requestedCount > maxFiles
	compatible := accepted && !exceeds

	return Decision{
		IsCompatible:     compatible,
		CurrentModel:     currentModel,
		FileType:         fileType,
		FileCount:        requestedCount,
		MaxFiles:         maxFiles,
		ExceedsLimit:     exceeds,
		RecommendedModel: profile.recommended,
		CompatibleModels: profile.compatible,
		Reason:           profile.reason,
		ActionRequired:   !compatible || exceeds,
	}
}
