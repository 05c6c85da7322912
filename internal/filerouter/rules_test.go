package filerouter

import "testing"

func TestValidateUploadTypeNotSupported(t *testing.T) {
	v := ValidateUpload(TypeImage, nil, CategoryGeneral, 1)
	if v.IsValid {
		t.Fatalf("images on a general model must fail validation")
	}
	if v.Reason != ReasonTypeNotSupported {
		t.Fatalf("reason %s, want %s", v.Reason, ReasonTypeNotSupported)
	}

	v = ValidateUpload(TypePDF, nil, CategoryVision, 1)
	if v.IsValid || v.Reason != ReasonTypeNotSupported {
		t.Fatalf("documents on a vision model must fail: %+v", v)
	}
}

func TestValidateUploadTotalLimit(t *testing.T) {
	current := map[FileType]int{TypePDF: 1, TypeDOCX: 1, TypePPTX: 1}
	v := ValidateUpload(TypePDF, current, CategoryPDFAnalysis, 1)
	if v.IsValid {
		t.Fatalf("fourth document must fail the combined cap")
	}
	if v.Reason != ReasonTotalLimit {
		t.Fatalf("reason %s, want %s", v.Reason, ReasonTotalLimit)
	}
	if v.CurrentCount != 3 || v.MaxAllowed != 3 {
		t.Fatalf("counts %d/%d, want 3/3", v.CurrentCount, v.MaxAllowed)
	}
	if len(v.FileBreakdown) == 0 {
		t.Fatalf("expected file breakdown")
	}
}

func TestValidateUploadCountLimit(t *testing.T) {
	v := ValidateUpload(TypePDF, map[FileType]int{TypePDF: 1}, CategoryGeneral, 1)
	if v.IsValid || v.Reason != ReasonCountLimit {
		t.Fatalf("second pdf on a general model must fail per-type cap: %+v", v)
	}
}

func TestValidateUploadSizeLimit(t *testing.T) {
	v := ValidateUpload(TypeDOCX, nil, CategoryGeneral, 30)
	if v.IsValid || v.Reason != ReasonSizeLimit {
		t.Fatalf("30MB docx must fail the 25MB cap: %+v", v)
	}
	// size checks run after count checks
	v = ValidateUpload(TypeDOCX, map[FileType]int{TypeDOCX: 1}, CategoryGeneral, 30)
	if v.Reason != ReasonCountLimit {
		t.Fatalf("count check has priority over size, got %s", v.Reason)
	}
}

func TestValidateUploadPassed(t *testing.T) {
	v := ValidateUpload(TypePPTX, map[FileType]int{TypePDF: 1}, CategoryPDFAnalysis, 12)
	if !v.IsValid {
		t.Fatalf("expected pass: %+v", v)
	}
	if v.Reason != ReasonPassed {
		t.Fatalf("reason %s, want %s", v.Reason, ReasonPassed)
	}
	// Remaining slots are per-type: no pptx uploaded yet against a cap of 3.
	if v.RemainingSlots != 3 {
		t.Fatalf("remaining slots %d, want 3", v.RemainingSlots)
	}
}

func TestValidateBatchCumulative(t *testing.T) {
	files := []FileInfo{
		Analyze("a.pdf", "", 1024),
		Analyze("b.docx", "", 1024),
		Analyze("c.pptx", "", 1024),
		Analyze("d.pdf", "", 1024),
	}
	batch := ValidateBatch(files, nil, CategoryPDFAnalysis)
	if batch.AllValid {
		t.Fatalf("fourth file must fail the combined cap")
	}
	if batch.Summary.ValidFiles != 3 || batch.Summary.InvalidFiles != 1 {
		t.Fatalf("summary %+v", batch.Summary)
	}
	if batch.Results[3].Reason != ReasonTotalLimit {
		t.Fatalf("last file reason %s, want %s", batch.Results[3].Reason, ReasonTotalLimit)
	}
}

func TestCategoryForModel(t *testing.T) {
	cases := []struct {
		model string
		want  ModelCategory
	}{
		{"provider-1/deepseek-v3.1", CategoryPDFAnalysis},
		{"provider-6/pixtral-12b", CategoryVision},
		{"provider-6/llama-3.2-11b-vision-instruct", CategoryVision},
		{"provider-8/qwen3-next-80b-a3b-instruct", CategoryGeneral},
		{"anything-else", CategoryGeneral},
	}
	for _, tc := range cases {
		if got := CategoryForModel(tc.model); got != tc.want {
			t.Fatalf("CategoryForModel(%q) = %s, want %s", tc.model, got, tc.want)
		}
	}
}

func TestNormalizeCategory(t *testing.T) {
	if NormalizeCategory("reasoning") != CategoryGeneral {
		t.Fatalf("reasoning should collapse to general")
	}
	if NormalizeCategory("pdf_analysis") != CategoryPDFAnalysis {
		t.Fatalf("pdf_analysis should stay pdf_analysis")
	}
	if NormalizeCategory("unheard-of") != CategoryGeneral {
		t.Fatalf("unknown categories default to general")
	}
}
