package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// DOCX and PPTX are OOXML zip containers. Text lives in w:t (word) and a:t
// (drawingml) elements; paragraphs and slides become newlines and markers.

func fromDOCX(data []byte) (Result, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, fmt.Errorf("open docx: %w", err)
	}
	entry := zipEntry(zr, "word/document.xml")
	if entry == nil {
		return Result{}, fmt.Errorf("docx missing word/document.xml")
	}
	text, err := ooxmlText(entry, "p")
	if err != nil {
		return Result{}, fmt.Errorf("parse docx: %w", err)
	}
	return Result{Text: text, Pages: 1}, nil
}

func fromPPTX(data []byte) (Result, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, fmt.Errorf("open pptx: %w", err)
	}

	slides := slideEntries(zr)
	if len(slides) == 0 {
		return Result{}, fmt.Errorf("pptx has no slides")
	}

	var sb strings.Builder
	for i, entry := range slides {
		text, err := ooxmlText(entry, "p")
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		fmt.Fprintf(&sb, "--- Page %d ---\n%s\n\n", i+1, text)
	}
	return Result{Text: sb.String(), Pages: len(slides)}, nil
}

func zipEntry(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// slideEntries returns ppt/slides/slideN.xml sorted by slide number, not by
// the lexicographic order zip happens to store them in.
func slideEntries(zr *zip.Reader) []*zip.File {
	type numbered struct {
		n int
		f *zip.File
	}
	var found []numbered
	for _, f := range zr.File {
		name := f.Name
		if !strings.HasPrefix(name, "ppt/slides/slide") || !strings.HasSuffix(name, ".xml") {
			continue
		}
		num := strings.TrimSuffix(strings.TrimPrefix(name, "ppt/slides/slide"), ".xml")
		n, err := strconv.Atoi(num)
		if err != nil {
			continue
		}
		found = append(found, numbered{n, f})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })
	out := make([]*zip.File, len(found))
	for i, e := range found {
		out[i] = e.f
	}
	return out
}

// ooxmlText streams the XML and collects character data inside <*:t>
// elements, inserting a newline whenever a paragraph element closes.
func ooxmlText(entry *zip.File, paragraphTag string) (string, error) {
	rc, err := entry.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)
	var sb strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case paragraphTag:
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}
