// Package extract pulls plain text out of uploaded files so their content
// can be saved or embedded. Extraction is synchronous: each file runs to
// completion and surfaces a single success or failure.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

// File extracts the text content of the file at path. The format is chosen
// by extension: PDF and HTML are parsed, everything else is read verbatim.
func File(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return pdfFile(path)
	case ".html", ".htm":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", path, err)
		}
		return htmlText(bytes.NewReader(data))
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", path, err)
		}
		return string(data), nil
	}
}

// Reader extracts text from in-memory content, using name's extension to
// pick the format. Used for HTTP uploads, where no file path exists.
func Reader(r io.Reader, name string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading upload %s: %w", name, err)
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return pdfBytes(data)
	case ".html", ".htm":
		return htmlText(bytes.NewReader(data))
	default:
		return string(data), nil
	}
}

// Batch extracts multiple files concurrently and returns their texts in input
// order. The first failure aborts the batch.
func Batch(ctx context.Context, paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	results := make([]string, len(paths))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency; PDF parsing is memory-hungry.

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			text, err := File(path)
			if err != nil {
				return err
			}
			results[i] = text
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func pdfFile(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf %s: %w", path, err)
	}
	defer f.Close()
	return pdfPlainText(r)
}

func pdfBytes(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parsing pdf: %w", err)
	}
	return pdfPlainText(r)
}

func pdfPlainText(r *pdf.Reader) (string, error) {
	content, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(content); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return buf.String(), nil
}

// htmlText walks the token stream and keeps text nodes, skipping script and
// style bodies. Block-level boundaries collapse to single newlines.
func htmlText(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	var sb strings.Builder
	skipDepth := 0

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return strings.TrimSpace(sb.String()), nil
			}
			return "", fmt.Errorf("parsing html: %w", z.Err())
		case html.StartTagToken:
			name, _ := z.TagName()
			if skippedTag(string(name)) {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if skippedTag(string(name)) && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			text := strings.TrimSpace(string(z.Text()))
			if text == "" {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(text)
		}
	}
}

func skippedTag(name string) bool {
	return name == "script" || name == "style"
}
