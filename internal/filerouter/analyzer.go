// Package filerouter decides whether an uploaded document may be routed to
// the currently selected AI model. It classifies files, looks up model
// capabilities, checks per-model upload limits and turns the verdict into a
// structured suggestion for the UI. The package is pure: expected failures
// (unsupported type, capacity exceeded, incompatible model) are data, never
// errors, so both the HTTP layer and any local pre-check share one code path.
package filerouter

import (
	"fmt"
	"math"
	"mime"
	"path/filepath"
	"sort"
	"strings"
)

// FileType is the routing classification of an upload.
type FileType string

const (
	TypePDF         FileType = "pdf"
	TypeImage       FileType = "image"
	TypeDOCX        FileType = "docx"
	TypePPTX        FileType = "pptx"
	TypeUnsupported FileType = "unsupported"
)

// Category is the coarse grouping used for display.
type Category string

const (
	CategoryDocument Category = "document"
	CategoryImage    Category = "image"
	CategoryUnknown  Category = "unknown"
)

type typeSpec struct {
	extensions []string
	mimeTypes  []string
	category   Category
	// requiresExtraction means the file must be converted to plain text
	// before a model without native support can use it.
	requiresExtraction bool
	supportsNative     bool
}

var fileTypes = map[FileType]typeSpec{
	TypePDF: {
		extensions:         []string{".pdf"},
		mimeTypes:          []string{"application/pdf"},
		category:           CategoryDocument,
		requiresExtraction: true,
		supportsNative:     true,
	},
	TypeImage: {
		extensions:         []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp"},
		mimeTypes:          []string{"image/jpeg", "image/png", "image/gif", "image/bmp", "image/webp"},
		category:           CategoryImage,
		requiresExtraction: false,
		supportsNative:     true,
	},
	TypeDOCX: {
		extensions:         []string{".doc", ".docx"},
		mimeTypes:          []string{"application/msword", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		category:           CategoryDocument,
		requiresExtraction: true,
		supportsNative:     false,
	},
	TypePPTX: {
		extensions:         []string{".ppt", ".pptx"},
		mimeTypes:          []string{"application/vnd.ms-powerpoint", "application/vnd.openxmlformats-officedocument.presentationml.presentation"},
		category:           CategoryDocument,
		requiresExtraction: true,
		supportsNative:     false,
	},
}

// detection order is fixed so results never depend on map iteration
var detectionOrder = []FileType{TypePDF, TypeImage, TypeDOCX, TypePPTX}

// FileInfo is the immutable analysis result for one upload.
type FileInfo struct {
	Filename           string   `json:"filename"`
	FileSize           int64    `json:"file_size"`
	FileSizeMB         float64  `json:"file_size_mb"`
	FileExtension      string   `json:"file_extension"`
	MimeType           string   `json:"mime_type,omitempty"`
	FileType           FileType `json:"file_type"`
	Category           Category `json:"category"`
	RequiresExtraction bool     `json:"requires_extraction"`
	SupportsNative     bool     `json:"supports_native"`
	IsSupported        bool     `json:"is_supported"`
}

// Analyze classifies a file from its name, declared content type and size.
// The declared MIME type is untrusted and may be empty; when empty the type
// registered for the extension is used instead. Analyze never fails: an
// unrecognized file comes back with FileType == TypeUnsupported.
func Analyze(filename, declaredMime string, sizeBytes int64) FileInfo {
	ext := strings.ToLower(filepath.Ext(filename))
	mimeType := strings.TrimSpace(declaredMime)
	if mimeType == "" {
		mimeType = mime.TypeByExtension(ext)
	}
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}

	fileType := detectType(ext, mimeType)
	spec, supported := fileTypes[fileType]

	info := FileInfo{
		Filename:      filename,
		FileSize:      sizeBytes,
		FileSizeMB:    roundMB(sizeBytes),
		FileExtension: ext,
		MimeType:      mimeType,
		FileType:      fileType,
		Category:      CategoryUnknown,
		IsSupported:   supported,
	}
	if supported {
		info.Category = spec.category
		info.RequiresExtraction = spec.requiresExtraction
		info.SupportsNative = spec.supportsNative
	} else {
		// callers treat anything unknown as needing extraction
		info.RequiresExtraction = true
	}
	return info
}

func detectType(ext, mimeType string) FileType {
	for _, ft := range detectionOrder {
		spec := fileTypes[ft]
		for _, e := range spec.extensions {
			if e == ext {
				return ft
			}
		}
		if mimeType == "" {
			continue
		}
		for _, m := range spec.mimeTypes {
			if m == mimeType {
				return ft
			}
		}
	}
	return TypeUnsupported
}

// SupportedExtensions lists every extension the analyzer recognizes, sorted.
func SupportedExtensions() []string {
	var exts []string
	for _, spec := range fileTypes {
		exts = append(exts, spec.extensions...)
	}
	sort.Strings(exts)
	return exts
}

// DefaultMaxSizeMB is the blanket size ceiling applied before the per-type
// limits in the validation rules.
const DefaultMaxSizeMB = 50

// ValidateSize checks the blanket size ceiling. It is orthogonal to type
// detection; callers apply both before proceeding.
func ValidateSize(sizeMB, maxSizeMB float64) (bool, string) {
	if maxSizeMB <= 0 {
		maxSizeMB = DefaultMaxSizeMB
	}
	if sizeMB > maxSizeMB {
		return false, fmt.Sprintf("File too large (%.2fMB). Max: %.0fMB", sizeMB, maxSizeMB)
	}
	return true, ""
}

func roundMB(sizeBytes int64) float64 {
	return math.Round(float64(sizeBytes)/(1024*1024)*100) / 100
}
