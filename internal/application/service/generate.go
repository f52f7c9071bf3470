package service

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/visaflow/internal/domain/entity"
	"github.com/garyjia/visaflow/internal/domain/event"
)

// Fixed properties of the generated application document
const (
	GeneratedSize      = "2.4 MB"
	GeneratedPageCount = 8
	summaryDir         = "summaries"
)

var nameWhitespace = regexp.MustCompile(`\s+`)

// GeneratedDocument describes the final application document
type GeneratedDocument struct {
	FileName    string    `json:"fileName"`
	Size        string    `json:"size"`
	PageCount   int       `json:"pageCount"`
	GeneratedAt time.Time `json:"generatedAt"`
	// SummaryPath is the stored summary workbook, empty when no renderer is configured
	SummaryPath string `json:"summaryPath,omitempty"`
}

// Generate produces the document descriptor for an approved record and,
// when configured, stores a summary workbook next to it
func (s *applicationService) Generate(ctx context.Context) (*GeneratedDocument, error) {
	rec := s.Current()
	if rec.ApprovedAt == nil {
		return nil, ErrNotApproved
	}

	if err := s.simulate(ctx, OpGenerate, s.delays.Generation); err != nil {
		return nil, err
	}

	now := s.now()
	doc := &GeneratedDocument{
		FileName:    DocumentFileName(rec, now),
		Size:        GeneratedSize,
		PageCount:   GeneratedPageCount,
		GeneratedAt: now,
	}

	if s.deps.Renderer != nil && s.deps.Storage != nil {
		summaryPath, err := s.storeSummary(ctx, rec, doc.FileName)
		if err != nil {
			return nil, err
		}
		doc.SummaryPath = summaryPath
	}

	s.logger.Info("Application document generated",
		zap.String("file_name", doc.FileName),
		zap.String("summary_path", doc.SummaryPath))
	s.emit(ctx, event.TypeDocumentGenerated, rec, map[string]interface{}{
		"file_name":    doc.FileName,
		"summary_path": doc.SummaryPath,
	})
	return doc, nil
}

func (s *applicationService) storeSummary(ctx context.Context, rec entity.ApplicationRecord, fileName string) (string, error) {
	content, err := s.deps.Renderer.Render(rec)
	if err != nil {
		return "", fmt.Errorf("failed to render summary: %w", err)
	}

	relPath := path.Join(summaryDir, strings.TrimSuffix(fileName, path.Ext(fileName))+s.deps.Renderer.Extension())
	if err := s.deps.Storage.Save(ctx, relPath, content); err != nil {
		return "", fmt.Errorf("failed to store summary: %w", err)
	}
	return s.deps.Storage.GetFullPath(relPath), nil
}

// DocumentFileName returns VISA_<visa type>_<full name>_<unix millis>.pdf
// with whitespace in the name replaced by underscores
func DocumentFileName(rec entity.ApplicationRecord, now time.Time) string {
	visaType := rec.VisaType
	if visaType == "" {
		visaType = entity.DefaultVisaType
	}
	name := nameWhitespace.ReplaceAllString(strings.TrimSpace(rec.FullName), "_")
	name = strings.NewReplacer("/", "", "\\", "").Replace(name)
	return fmt.Sprintf("VISA_%s_%s_%d.pdf", visaType, name, now.UnixMilli())
}
