package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/satishpasalait/RAGAIUSLawBills/internal/apperr"
)

// Document is one bill as read from a source file.
type Document struct {
	ID       string
	Title    string
	FullText string
}

// DefaultID and DefaultTitle name a document by its zero-based row.
func DefaultID(row int) string    { return "bill_" + strconv.Itoa(row) }
func DefaultTitle(row int) string { return "Bill " + strconv.Itoa(row) }

// ReadCSV reads one document per row. A text column is required; title and
// id (or bill_id) are optional and fall back to the row number.
func ReadCSV(r io.Reader) ([]Document, error) {
	return readCSV(r, "")
}

// readCSV prefixes fallback ids with idPrefix.
func readCSV(r io.Reader, idPrefix string) ([]Document, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: csv is empty", apperr.ErrInvalidRequest)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read csv header: %w", apperr.ErrInvalidRequest, err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, seen := cols[name]; !seen {
			cols[name] = i
		}
	}

	textCol, ok := cols["text"]
	if !ok {
		return nil, fmt.Errorf("%w: csv has no text column", apperr.ErrInvalidRequest)
	}
	titleCol, hasTitle := cols["title"]
	idCol, hasID := cols["id"]
	if !hasID {
		idCol, hasID = cols["bill_id"]
	}

	field := func(rec []string, i int) string {
		if i < len(rec) {
			return rec[i]
		}
		return ""
	}

	var docs []Document
	for row := 0; ; row++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read csv row %d: %w", apperr.ErrInvalidRequest, row, err)
		}

		doc := Document{
			ID:       idPrefix + DefaultID(row),
			Title:    DefaultTitle(row),
			FullText: field(rec, textCol),
		}
		if hasTitle {
			if t := strings.TrimSpace(field(rec, titleCol)); t != "" {
				doc.Title = t
			}
		}
		if hasID {
			if id := strings.TrimSpace(field(rec, idCol)); id != "" {
				doc.ID = id
			}
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// ReadPDF extracts the plain text of a PDF as a single document named after
// the file.
func ReadPDF(path string) (Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("%w: open pdf %s: %w", apperr.ErrInvalidRequest, path, err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return Document{}, fmt.Errorf("%w: extract text from %s: %w", apperr.ErrInvalidRequest, path, err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return Document{}, fmt.Errorf("%w: read text from %s: %w", apperr.ErrInvalidRequest, path, err)
	}

	return documentFromFile(path, buf.String()), nil
}

func ReadText(path string) (Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("%w: read %s: %w", apperr.ErrInvalidRequest, path, err)
	}
	return documentFromFile(path, string(b)), nil
}

func documentFromFile(path, text string) Document {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Document{ID: base, Title: base, FullText: text}
}

// Load reads documents from a .csv, .pdf or .txt file, or from every such
// file directly inside a directory, in name order. In a directory, CSV rows
// without an id are named after their file ("<file>_bill_<row>"), symlinks
// are skipped, and two documents with the same id are an error.
func Load(path string) ([]Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrInvalidRequest, err)
	}
	if !info.IsDir() {
		return loadFile(path, "")
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrInvalidRequest, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var docs []Document
	seen := make(map[string]string)
	for _, e := range entries {
		if !e.Type().IsRegular() || !Supported(e.Name()) {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		got, err := loadFile(filepath.Join(path, e.Name()), stem+"_")
		if err != nil {
			return nil, err
		}
		for _, d := range got {
			if prev, dup := seen[d.ID]; dup {
				return nil, fmt.Errorf("%w: document id %q appears in both %s and %s", apperr.ErrInvalidRequest, d.ID, prev, e.Name())
			}
			seen[d.ID] = e.Name()
		}
		docs = append(docs, got...)
	}
	return docs, nil
}

func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".pdf", ".txt":
		return true
	}
	return false
}

func loadFile(path, idPrefix string) ([]Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", apperr.ErrInvalidRequest, err)
		}
		defer f.Close()
		return readCSV(f, idPrefix)
	case ".pdf":
		doc, err := ReadPDF(path)
		if err != nil {
			return nil, err
		}
		return []Document{doc}, nil
	case ".txt":
		doc, err := ReadText(path)
		if err != nil {
			return nil, err
		}
		return []Document{doc}, nil
	}
	return nil, fmt.Errorf("%w: unsupported file type %q", apperr.ErrInvalidRequest, filepath.Ext(path))
}
