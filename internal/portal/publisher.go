package portal

import (
	"context"
	"fmt"
	"time"

	"github.com/leonkenneth/RNB-coeur/internal/area"
	"github.com/leonkenneth/RNB-coeur/internal/logging"
)

// ArchiveFormat is the resource format of every published archive.
const ArchiveFormat = "zip"

// LastModifiedExtra makes the portal refresh the modification date of a
// remote resource on update.
const LastModifiedExtra = "analysis:last-modified-at"

// ResourceFinder resolves the resource id already holding an area's archive.
// An empty id with a nil error means no such resource exists.
type ResourceFinder interface {
	FindResource(ctx context.Context, datasetID string, a area.Area) (string, error)
}

// DatasetGetter is the read side of Client.
type DatasetGetter interface {
	GetDataset(ctx context.Context, datasetID string) (*Dataset, error)
}

// ResourceWriter is the write side of Client.
type ResourceWriter interface {
	CreateResource(ctx context.Context, datasetID string, p ResourcePayload) error
	UpdateResource(ctx context.Context, datasetID, resourceID string, p ResourcePayload) error
}

// ScanFinder lists the dataset and scans its resources for a zip whose title
// is the area title. The first match wins; pagination is not handled.
type ScanFinder struct {
	Datasets DatasetGetter
}

// FindResource implements ResourceFinder.
func (f ScanFinder) FindResource(ctx context.Context, datasetID string, a area.Area) (string, error) {
	ds, err := f.Datasets.GetDataset(ctx, datasetID)
	if err != nil {
		return "", err
	}

	title := a.Title()
	for _, r := range ds.Resources {
		if r.Format == ArchiveFormat && r.Title == title {
			return r.ID, nil
		}
	}
	return "", nil
}

// Publisher creates or updates the resource of an area so it points at the
// latest archive.
type Publisher struct {
	datasetID string
	finder    ResourceFinder
	writer    ResourceWriter
	now       func() time.Time
}

// NewPublisher wires a Publisher for datasetID.
func NewPublisher(datasetID string, finder ResourceFinder, writer ResourceWriter) *Publisher {
	return &Publisher{
		datasetID: datasetID,
		finder:    finder,
		writer:    writer,
		now:       time.Now,
	}
}

// NewClientPublisher uses c for both the lookup and the writes.
func NewClientPublisher(datasetID string, c *Client) *Publisher {
	return NewPublisher(datasetID, ScanFinder{Datasets: c}, c)
}

// Payload builds the resource body shared by create and update.
func Payload(a area.Area, url string, size int64, sha1 string) ResourcePayload {
	return ResourcePayload{
		Title:       a.Title(),
		Description: a.Description(),
		Type:        "main",
		URL:         url,
		FileType:    "remote",
		Format:      ArchiveFormat,
		FileSize:    size,
		Checksum:    Checksum{Type: "sha1", Value: sha1},
	}
}

// Publish points the area's resource at url. An existing resource is updated
// in place; otherwise one is created.
func (p *Publisher) Publish(ctx context.Context, a area.Area, url string, size int64, sha1 string) error {
	logger := logging.WithFields(ctx, "stage", "portal", "dataset_id", p.datasetID)

	resourceID, err := p.finder.FindResource(ctx, p.datasetID, a)
	if err != nil {
		return fmt.Errorf("find resource: %w", err)
	}

	payload := Payload(a, url, size, sha1)
	stamp := Timestamp(p.now())

	if resourceID != "" {
		payload.Extras = map[string]string{LastModifiedExtra: stamp}
		if err := p.writer.UpdateResource(ctx, p.datasetID, resourceID, payload); err != nil {
			return err
		}
		logger.Info("resource updated", "resource_id", resourceID, "title", payload.Title)
		return nil
	}

	payload.CreatedAt = stamp
	if err := p.writer.CreateResource(ctx, p.datasetID, payload); err != nil {
		return err
	}
	logger.Info("resource created", "title", payload.Title)
	return nil
}
