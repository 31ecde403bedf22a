package loader

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

const (
	docxBody   = "word/document.xml"
	docxXMLMax = 50 << 20
)

var blankLines = regexp.MustCompile(`\n{3,}`)

// docxWriter accumulates the visible text of a WordprocessingML body.
// Deleted runs (w:del) are skipped; table cells are separated by tabs.
type docxWriter struct {
	sb       strings.Builder
	inText   bool
	deleted  int
	cellSeen bool
}

func (w *docxWriter) visible() bool {
	return w.deleted == 0
}

func (w *docxWriter) newline() {
	if w.visible() {
		w.sb.WriteByte('\n')
	}
}

func (w *docxWriter) start(name string) {
	switch name {
	case "del":
		w.deleted++
	case "t":
		w.inText = true
	case "tab":
		if w.visible() {
			w.sb.WriteByte('\t')
		}
	case "br", "cr":
		w.newline()
	case "noBreakHyphen":
		if w.visible() {
			w.sb.WriteByte('-')
		}
	case "tr":
		w.cellSeen = false
	case "tc":
		if w.visible() && w.cellSeen {
			w.sb.WriteByte('\t')
		}
		w.cellSeen = true
	}
}

func (w *docxWriter) end(name string) {
	switch name {
	case "t":
		w.inText = false
	case "p", "tr", "tbl":
		w.newline()
	case "del":
		if w.deleted > 0 {
			w.deleted--
		}
	}
}

func (w *docxWriter) text(data []byte) {
	if w.inText && w.visible() {
		w.sb.Write(data)
	}
}

func (w *docxWriter) String() string {
	text := blankLines.ReplaceAllString(strings.TrimSpace(w.sb.String()), "\n\n")
	if text != "" {
		text += "\n"
	}
	return text
}

func parseDocx(content []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open docx: %w", err)
	}

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBody {
			body = f
			break
		}
	}
	if body == nil {
		return nil, errors.New("document.xml not found in docx")
	}
	if body.UncompressedSize64 > docxXMLMax {
		return nil, fmt.Errorf("document.xml too large: %d bytes", body.UncompressedSize64)
	}

	rc, err := body.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open document.xml: %w", err)
	}
	defer rc.Close()

	dec := xml.NewDecoder(io.LimitReader(rc, docxXMLMax))
	w := &docxWriter{}
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse XML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			w.start(t.Name.Local)
		case xml.EndElement:
			w.end(t.Name.Local)
		case xml.CharData:
			w.text(t)
		}
	}

	return []byte(w.String()), nil
}
