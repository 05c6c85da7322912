package filerouter

import (
	"encoding/json"
	"testing"
)

func TestFamilyOf(t *testing.T) {
	cases := []struct {
		modelID string
		want    Family
	}{
		{"provider-1/deepseek-v3.1", FamilyDeepseek},
		{"DeepSeek-Chat-V3.2-EXP", FamilyDeepseek},
		{"provider-6/pixtral-12b", FamilyPixtral},
		{"provider-6/llama-3.2-11b-vision-instruct", FamilyLlamaVision},
		{"provider-6/llama-3.2-11b-instruct", FamilyLlama},
		{"provider-8/qwen3-next-80b-a3b-instruct", FamilyQwen},
		{"provider-3/gemma-3-27b-it", FamilyGemma},
		{"provider-8/gpt-oss-120b", FamilyGPT},
		{"provider-8/mistral-small-3.2-24b-instruct", FamilyMistral},
		{"provider-8/kimi-k2", FamilyUnknown},
		{"", FamilyUnknown},
	}
	for _, tc := range cases {
		if got := FamilyOf(tc.modelID); got != tc.want {
			t.Fatalf("FamilyOf(%q) = %s, want %s", tc.modelID, got, tc.want)
		}
	}
}

func TestDeepseekCapabilities(t *testing.T) {
	c := Capabilities(FamilyDeepseek)
	if !c.SupportsPDF || !c.NativeUpload {
		t.Fatalf("deepseek should support native PDF upload")
	}
	if c.ContextWindow != 128000 {
		t.Fatalf("context window %d, want 128000", c.ContextWindow)
	}
	for _, ft := range []FileType{TypePDF, TypeDOCX, TypePPTX} {
		if n := c.MaxFilesFor(ft); n != 3 {
			t.Fatalf("deepseek cap for %s = %d, want 3", ft, n)
		}
	}
	if n := c.MaxFilesFor(TypeImage); n != 1 {
		t.Fatalf("deepseek image cap = %d, want default 1", n)
	}
}

func TestVisionCapabilities(t *testing.T) {
	for _, f := range []Family{FamilyPixtral, FamilyLlamaVision} {
		c := Capabilities(f)
		if !c.SupportsImages {
			t.Fatalf("%s should support images", f)
		}
		if c.ContextWindow != 32000 {
			t.Fatalf("%s context window %d, want 32000", f, c.ContextWindow)
		}
		if n := c.MaxFilesFor(TypeImage); n != 10 {
			t.Fatalf("%s image cap = %d, want 10", f, n)
		}
	}
}

func TestUnknownFamilyIsConservative(t *testing.T) {
	for _, f := range []Family{FamilyUnknown, FamilyQwen, FamilyGemma, FamilyGPT, FamilyMistral, FamilyLlama} {
		c := Capabilities(f)
		if c.SupportsPDF || c.SupportsImages || c.NativeUpload {
			t.Fatalf("%s should have no native support", f)
		}
		if c.ContextWindow != 8000 {
			t.Fatalf("%s context window %d, want 8000", f, c.ContextWindow)
		}
		for _, ft := range []FileType{TypePDF, TypeImage, TypeDOCX, TypePPTX} {
			if n := c.MaxFilesFor(ft); n != 1 {
				t.Fatalf("%s cap for %s = %d, want 1", f, ft, n)
			}
		}
	}
}

func TestModelSetJSON(t *testing.T) {
	all, err := json.Marshal(AllModels())
	if err != nil {
		t.Fatalf("marshal all: %v", err)
	}
	if string(all) != `"all"` {
		t.Fatalf(`marshal all = %s, want "all"`, all)
	}

	some, err := json.Marshal(SomeModels("a", "b"))
	if err != nil {
		t.Fatalf("marshal some: %v", err)
	}
	if string(some) != `["a","b"]` {
		t.Fatalf("marshal some = %s", some)
	}

	empty, err := json.Marshal(NoModels())
	if err != nil {
		t.Fatalf("marshal empty: %v", err)
	}
	if string(empty) != `[]` {
		t.Fatalf("marshal empty = %s, want []", empty)
	}

	var set ModelSet
	if err := json.Unmarshal([]byte(`"all"`), &set); err != nil {
		t.Fatalf("unmarshal all: %v", err)
	}
	if !set.All {
		t.Fatalf("expected universal set")
	}
	if err := json.Unmarshal([]byte(`["x"]`), &set); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if set.All || len(set.Models) != 1 || set.Models[0] != "x" {
		t.Fatalf("unexpected set %+v", set)
	}
	if err := json.Unmarshal([]byte(`"some"`), &set); err == nil {
		t.Fatalf("expected error for invalid literal")
	}
}
