package filerouter

// PreCheck is the cheap local filter run before asking the server: type and
// size only, with no knowledge of current file counts. A nil suggestion
// means nothing blocks the upload locally; the server-side check remains the
// source of truth and its decision overrides any local optimism.
func PreCheck(filename, declaredMime string, sizeBytes int64) (FileInfo, *Suggestion) {
	info := Analyze(filename, declaredMime, sizeBytes)
	if !info.IsSupported {
		s := unsupportedFileSuggestion(info)
		return info, &s
	}
	if ok, msg := ValidateSize(info.FileSizeMB, DefaultMaxSizeMB); !ok {
		s := Suggestion{
			Type:             SuggestError,
			Title:            "File Too Large",
			Message:          msg,
			Action:           ActionCompressFile,
			ActionText:       "Try compressing the file or use a smaller version",
			Severity:         SeverityMedium,
			CompatibleModels: NoModels(),
		}
		return info, &s
	}
	return info, nil
}
