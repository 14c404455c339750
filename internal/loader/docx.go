package loader

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DOCXLoader extracts the raw text of Word documents.
type DOCXLoader struct{}

// NewDOCXLoader creates a DOCX loader.
func NewDOCXLoader() *DOCXLoader {
	return &DOCXLoader{}
}

func (l *DOCXLoader) Extensions() []string {
	return []string{".docx"}
}

// Parse reads word/document.xml, separating paragraphs with blank lines,
// and records the page count from docProps/app.xml as "doc_numpages".
func (l *DOCXLoader) Parse(_ context.Context, raw []byte, meta Metadata) ([]Document, error) {
	reader, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("opening docx archive: %w", err)
	}

	body, err := readZipFile(reader, "word/document.xml")
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, fmt.Errorf("word/document.xml not found")
	}
	text, err := parseDocumentXML(body)
	if err != nil {
		return nil, fmt.Errorf("parsing word/document.xml: %w", err)
	}

	md := meta.Clone()
	md["doc_numpages"] = pageCount(reader)
	return []Document{{Content: text, Metadata: md}}, nil
}

func readZipFile(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		return data, nil
	}
	return nil, nil
}

// parseDocumentXML walks the WordprocessingML token stream so paragraphs
// nested in tables and text boxes are included.
func parseDocumentXML(content []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))

	var (
		paras  []string
		cur    strings.Builder
		inText bool
	)
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
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				cur.WriteByte('\t')
			case "br", "cr":
				cur.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				paras = append(paras, cur.String())
				cur.Reset()
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		}
	}
	if cur.Len() > 0 {
		paras = append(paras, cur.String())
	}

	return strings.TrimSpace(strings.Join(paras, "\n\n")), nil
}

type appXML struct {
	Pages string `xml:"Pages"`
}

// pageCount returns the page count the authoring application stored, or 0.
func pageCount(reader *zip.Reader) int {
	data, err := readZipFile(reader, "docProps/app.xml")
	if err != nil || data == nil {
		return 0
	}
	var app appXML
	if err := xml.Unmarshal(data, &app); err != nil {
		return 0
	}
	n, _ := strconv.Atoi(strings.TrimSpace(app.Pages))
	return n
}
