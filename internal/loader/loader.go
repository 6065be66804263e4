// Package loader discovers PDF textbooks under a folder and extracts their
// text with pdfcpu.
package loader

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"go.uber.org/zap"

	"textbook-rag/internal/domain"
)

// PDFLoader loads every *.pdf below root. The category of a textbook is
// its directory relative to root.
type PDFLoader struct {
	root    string
	logger  *zap.Logger
	extract func(path string) (string, error)
}

var _ domain.TextbookLoader = (*PDFLoader)(nil)

func init() {
	// keep pdfcpu from creating a config directory in the user's home
	api.DisableConfigDir()
}

func NewPDFLoader(root string, logger *zap.Logger) *PDFLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &PDFLoader{root: root, logger: logger}
	l.extract = l.extractText
	return l
}

// Paths returns the PDF files below root in lexical order.
func (l *PDFLoader) Paths() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == l.root {
				return err
			}
			l.logger.Warn("skipping unreadable path", zap.String("path", path), zap.Error(err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".pdf") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loader: walk %s: %w", l.root, err)
	}
	return paths, nil
}

// LoadTextbooks extracts every PDF. Files that cannot be read or contain
// no text are skipped with a warning.
func (l *PDFLoader) LoadTextbooks(ctx context.Context) ([]domain.Textbook, error) {
	paths, err := l.Paths()
	if err != nil {
		return nil, err
	}
	l.logger.Info("found pdf files", zap.Int("count", len(paths)), zap.String("root", l.root))

	var textbooks []domain.Textbook
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := l.extract(path)
		if err != nil {
			l.logger.Warn("error extracting text", zap.String("path", path), zap.Error(err))
			continue
		}
		if strings.TrimSpace(text) == "" {
			l.logger.Warn("no text extracted", zap.String("path", path))
			continue
		}
		textbooks = append(textbooks, domain.Textbook{
			Path:     path,
			Category: l.category(path),
			Filename: filepath.Base(path),
			Content:  text,
		})
	}
	l.logger.Info("loaded textbooks", zap.Int("count", len(textbooks)))
	return textbooks, nil
}

func (l *PDFLoader) category(path string) string {
	rel, err := filepath.Rel(l.root, path)
	if err != nil {
		return ""
	}
	dir := filepath.Dir(rel)
	if dir == "." {
		return ""
	}
	return filepath.ToSlash(dir)
}

// extractText joins the text of every page, one page per line block.
// A page that fails to extract is skipped.
func (l *PDFLoader) extractText(path string) (string, error) {
	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for page := 1; page <= pdfCtx.PageCount; page++ {
		text, err := pageText(func() (io.Reader, error) {
			return pdfcpu.ExtractPageContent(pdfCtx, page)
		})
		if err != nil {
			l.logger.Warn("could not extract text from page",
				zap.Int("page", page), zap.String("path", path), zap.Error(err))
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func pageText(content func() (io.Reader, error)) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed page: %v", r)
		}
	}()
	r, err := content()
	if err != nil {
		return "", err
	}
	if r == nil {
		return "", nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return ContentText(data), nil
}
