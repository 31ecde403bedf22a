package loader

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"
)

func docxFixture(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	doc := `<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`
	if _, err := f.Write([]byte(doc)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtractText_Plain(t *testing.T) {
	tests := []struct {
		contentType string
	}{
		{""},
		{"text/plain"},
		{"text/plain; charset=utf-8"},
	}
	for _, tt := range tests {
		got, err := ExtractText(strings.NewReader("The mayor of Paris."), tt.contentType)
		if err != nil || got != "The mayor of Paris." {
			t.Fatalf("%q: got %q, %v", tt.contentType, got, err)
		}
	}
}

func TestExtractText_Docx(t *testing.T) {
	body := `<w:p><w:r><w:t>Paris</w:t></w:r><w:r><w:tab/><w:t>France</w:t></w:r></w:p>` +
		`<w:p><w:del><w:r><w:t>removed</w:t></w:r></w:del><w:r><w:t>kept</w:t></w:r></w:p>` +
		`<w:tbl><w:tr><w:tc><w:p><w:r><w:t>a</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>b</w:t></w:r></w:p></w:tc></w:tr></w:tbl>`

	got, err := ExtractText(bytes.NewReader(docxFixture(t, body)), ContentTypeDocx)
	if err != nil {
		t.Fatal(err)
	}
	want := "Paris\tFrance\nkept\na\n\tb\n"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestExtractText_DocxInvalid(t *testing.T) {
	if _, err := ExtractText(strings.NewReader("not a zip"), ContentTypeDocx); err == nil {
		t.Fatal("expected error for invalid docx")
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if _, err := zw.Create("word/other.xml"); err != nil {
		t.Fatal(err)
	}
	zw.Close()
	if _, err := ExtractText(&buf, ContentTypeDocx); err == nil {
		t.Fatal("expected error for docx without body")
	}
}

func TestExtractText_HTML(t *testing.T) {
	html := `<html><head><title>Paris</title></head><body><article>` +
		`<p>Paris is the capital and most populous city of France. It has been one of the major centres of finance, diplomacy, commerce and science since the 17th century.</p>` +
		`<p>The city is a major railway, highway and air-transport hub served by two international airports.</p>` +
		`<p>Paris is known for its museums and architectural landmarks, and it hosts the headquarters of several international organisations.</p>` +
		`<p>The historic district along the Seine has been classified as a World Heritage Site since 1991, and the city receives millions of visitors every year.</p>` +
		`</article></body></html>`

	got, err := ExtractText(strings.NewReader(html), "text/html; charset=utf-8")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "capital and most populous city of France") || strings.Contains(got, "<p>") {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestExtractText_Errors(t *testing.T) {
	if _, err := ExtractText(strings.NewReader("x"), "application/pdf"); !errors.Is(err, ErrUnsupportedContentType) {
		t.Fatalf("expected ErrUnsupportedContentType, got %v", err)
	}
	if _, err := ExtractText(strings.NewReader("x"), "text/plain; ===="); !errors.Is(err, ErrUnsupportedContentType) {
		t.Fatalf("expected ErrUnsupportedContentType for malformed type, got %v", err)
	}
	big := strings.NewReader(strings.Repeat("a", MaxDocumentSize+1))
	if _, err := ExtractText(big, ContentTypeText); !errors.Is(err, ErrDocumentTooLarge) {
		t.Fatalf("expected ErrDocumentTooLarge, got %v", err)
	}
}
