// Package publish runs the per-area publication: export the buildings to CSV,
// zip and hash the export, upload the archive and point the portal resource
// at it. Each area works in its own workspace, removed on every exit path.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/leonkenneth/RNB-coeur/internal/archive"
	"github.com/leonkenneth/RNB-coeur/internal/area"
	"github.com/leonkenneth/RNB-coeur/internal/export"
	"github.com/leonkenneth/RNB-coeur/internal/logging"
	"github.com/leonkenneth/RNB-coeur/internal/metrics"
)

// Extractor writes the CSV export of an area into dir.
type Extractor interface {
	ExportCSV(ctx context.Context, dir string, a area.Area) (export.Result, error)
}

// Uploader stores a file and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, filePath string) (string, error)
}

// PortalPublisher creates or updates the portal resource of an area.
type PortalPublisher interface {
	Publish(ctx context.Context, a area.Area, url string, size int64, sha1 string) error
}

// Pipeline chains the publication stages.
type Pipeline struct {
	extractor Extractor
	uploader  Uploader
	portal    PortalPublisher
	workDir   string
	now       func() time.Time
}

// NewPipeline creates a Pipeline whose workspaces live under workDir.
func NewPipeline(extractor Extractor, uploader Uploader, portal PortalPublisher, workDir string) *Pipeline {
	if workDir == "" {
		workDir = "."
	}
	return &Pipeline{
		extractor: extractor,
		uploader:  uploader,
		portal:    portal,
		workDir:   workDir,
		now:       time.Now,
	}
}

// Publish publishes each area in order. The first failure is logged and
// returned; the remaining areas are not attempted.
func (p *Pipeline) Publish(ctx context.Context, areas []area.Area) error {
	slog.Info(fmt.Sprintf("%d area(s) to process...", len(areas)))

	for _, a := range areas {
		runCtx := logging.ContextWithRun(ctx, uuid.NewString(), a.String())

		err := p.PublishArea(runCtx, a)
		metrics.ObserveRun(a.String(), err)
		if err != nil {
			logging.FromContext(runCtx).Error(
				fmt.Sprintf("error while publishing the RNB for area %s on data.gouv.fr", a),
				"error", err,
			)
			return fmt.Errorf("publish area %s: %w", a, err)
		}
	}
	return nil
}

// PublishArea runs every stage for a inside a fresh workspace.
func (p *Pipeline) PublishArea(ctx context.Context, a area.Area) (err error) {
	start := time.Now()
	logger := logging.FromContext(ctx)

	ws, err := NewWorkspace(p.workDir, a, p.now())
	if err != nil {
		return err
	}
	defer func() {
		if rerr := ws.Remove(); rerr != nil {
			logger.Error("workspace cleanup failed", "error", rerr)
			if err == nil {
				err = rerr
			}
		}
	}()

	logger.Info("processing area", "workspace", ws.Dir)

	done := metrics.StageTimer(metrics.StageExtract)
	res, err := p.extractor.ExportCSV(ctx, ws.Dir, a)
	done()
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	metrics.AddExportRows(a.String(), res.Rows)

	done = metrics.StageTimer(metrics.StageArchive)
	arc, err := archive.Create(ctx, ws.Dir, a, res.Path)
	done()
	if err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	metrics.SetArchiveBytes(a.String(), arc.Size)

	done = metrics.StageTimer(metrics.StageUpload)
	url, err := p.uploader.Upload(ctx, arc.Path)
	done()
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	done = metrics.StageTimer(metrics.StagePortal)
	err = p.portal.Publish(ctx, a, url, arc.Size, arc.SHA1)
	done()
	if err != nil {
		return fmt.Errorf("portal: %w", err)
	}

	logger.Info("area published", "url", url, "duration_ms", time.Since(start).Milliseconds())
	return nil
}
