package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dslipak/pdf"
	"github.com/lu4p/cat"

	"github.com/akolanti/RagAPI/internal/domain/commonModels"
	"github.com/akolanti/RagAPI/pkg/logger_i"
)

// UploadConnector serves sources whose content arrives with the source
// itself: inline text, or a file path to extract.
type UploadConnector struct {
	logger *logger_i.Logger
}

func NewUploadConnector() *UploadConnector {
	return &UploadConnector{logger: logger_i.NewLogger("Upload Connector")}
}

func (c *UploadConnector) Fetch(ctx context.Context, source commonModels.Source, cursor string) ([]SourceDocument, string, error) {
	cfg := source.Config

	text := cfg.Text
	if text == "" && cfg.FilePath != "" {
		extracted, err := c.extractFile(cfg.FilePath)
		if err != nil {
			return nil, cursor, err
		}
		text = extracted
	}
	if text == "" {
		return nil, cursor, errors.New("upload source has neither text nor file_path")
	}

	externalId := cfg.ExternalId
	if externalId == "" {
		externalId = "upload-" + source.Id
	}
	title := cfg.Title
	if title == "" {
		title = source.Name
	}
	canonicalURL := cfg.CanonicalURL
	if canonicalURL == "" {
		canonicalURL = "upload://" + source.Id
	}

	doc := SourceDocument{
		ExternalId:   externalId,
		Title:        title,
		CanonicalURL: canonicalURL,
		Text:         text,
		ACL:          defaultACL(cfg.ACL),
	}
	return []SourceDocument{doc}, cursor, nil
}

func (c *UploadConnector) extractFile(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return c.extractPDF(path)
	case ".docx", ".odt", ".rtf", ".txt", ".md":
		text, err := cat.File(path)
		if err != nil {
			return "", fmt.Errorf("failed to extract %s: %w", path, err)
		}
		return text, nil
	default:
		return "", fmt.Errorf("unsupported upload file type: %s", path)
	}
}

func (c *UploadConnector) extractPDF(path string) (string, error) {
	f, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	var pages []string
	numPages := f.NumPage()
	c.logger.Debug("extractPDF", "path", path, "pages", numPages)
	for i := 1; i <= numPages; i++ {
		page := f.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := protectExtract(page)
		if err != nil {
			c.logger.Error("Error parsing page content", "page", i, "error", err)
			continue
		}
		pages = append(pages, content)
	}
	return strings.Join(pages, "\n\n"), nil
}

// protectExtract guards against the parser hanging on malformed pages.
func protectExtract(page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()
	select {
	case r := <-resChan:
		return r.content, r.err
	case <-time.After(time.Second * 10):
		return "", errors.New("timeout")
	}
}
