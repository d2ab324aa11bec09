package policy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/newsletterlab/pulse/internal/domain/newsletter/entity"
	"github.com/newsletterlab/pulse/internal/domain/newsletter/ingest"
	"github.com/newsletterlab/pulse/internal/domain/newsletter/metrics"
	"github.com/newsletterlab/pulse/internal/domain/newsletter/service"
	"github.com/newsletterlab/pulse/internal/storage"
)

// Syncer defines the interface for the API sync ingestion adapter
// This interface is defined here (consumer) not in the ingest package (provider)
type Syncer interface {
	Sync(ctx context.Context, req ingest.SyncRequest) (*entity.Dataset, error)
}

// Archiver defines the interface for keeping raw uploaded files
type Archiver interface {
	Archive(ctx context.Context, in storage.ArchiveInput) (*storage.ArchiveOutput, error)
}

// SyncTarget pairs a tracked newsletter with its upstream publication
type SyncTarget struct {
	NewsletterID  string
	PublicationID string
}

// Config holds policy settings
type Config struct {
	RecentStats int          // Posts that get per-post stats on sync
	Targets     []SyncTarget // Newsletters re-synced by SyncAll
}

// Session carries the per-request selection that every analytics query runs against
type Session struct {
	NewsletterID string
	Window       metrics.Window
	Now          time.Time
}

// Policy orchestrates newsletter ingestion and analytics use-cases
type Policy struct {
	svc      *service.Service
	syncer   Syncer
	archiver Archiver // nil disables archiving
	cfg      Config
	logger   *slog.Logger
}

// New creates a new newsletter policy. archiver may be nil.
func New(svc *service.Service, syncer Syncer, archiver Archiver, cfg Config, logger *slog.Logger) *Policy {
	return &Policy{
		svc:      svc,
		syncer:   syncer,
		archiver: archiver,
		cfg:      cfg,
		logger:   logger.With("component", "newsletter.policy"),
	}
}

// ImportInput is one uploaded file
type ImportInput struct {
	NewsletterID string
	Filename     string
	ContentType  string
	Body         []byte
}

// ImportOutput summarizes a stored dataset
type ImportOutput struct {
	NewsletterID string            `json:"newsletter_id"`
	Kind         entity.SourceKind `json:"kind"`
	Posts        int               `json:"posts"`
	Growth       int               `json:"growth"`
	Audience     int               `json:"audience"`
	Warnings     []entity.Warning  `json:"warnings"`
	ArchiveKey   string            `json:"archive_key,omitempty"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// ImportBulkText parses a delimited text export and replaces the newsletter's dataset
func (p *Policy) ImportBulkText(ctx context.Context, in ImportInput) (*ImportOutput, error) {
	if in.NewsletterID == "" {
		return nil, entity.ErrEmptyNewsletter
	}
	ds, err := ingest.ParseBulkText(bytes.NewReader(in.Body))
	if err != nil {
		return nil, err
	}
	return p.store(ctx, in, ds)
}

// ImportWorkbook parses a multi-sheet XLSX export and replaces the newsletter's dataset
func (p *Policy) ImportWorkbook(ctx context.Context, in ImportInput) (*ImportOutput, error) {
	if in.NewsletterID == "" {
		return nil, entity.ErrEmptyNewsletter
	}
	if len(in.Body) == 0 {
		return nil, entity.ErrEmptyInput
	}

	wb, err := ingest.OpenWorkbook(bytes.NewReader(in.Body))
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	ds, err := ingest.ParseWorkbook(wb)
	if err != nil {
		return nil, err
	}
	return p.store(ctx, in, ds)
}

func (p *Policy) store(ctx context.Context, in ImportInput, ds *entity.Dataset) (*ImportOutput, error) {
	ds.NewsletterID = in.NewsletterID
	if err := p.svc.Replace(ctx, ds); err != nil {
		return nil, err
	}

	out := summarize(ds)
	if p.archiver != nil {
		arch, err := p.archiver.Archive(ctx, storage.ArchiveInput{
			NewsletterID: in.NewsletterID,
			Filename:     in.Filename,
			ContentType:  in.ContentType,
			Body:         in.Body,
		})
		if err != nil {
			// The import itself succeeded
			p.logger.Warn("failed to archive import", "newsletter_id", in.NewsletterID, "error", err)
		} else {
			out.ArchiveKey = arch.Key
		}
	}

	p.logger.Info("dataset imported",
		"newsletter_id", in.NewsletterID,
		"kind", ds.Kind,
		"posts", len(ds.Posts),
		"warnings", len(ds.Warnings),
	)
	return out, nil
}

// SyncInput selects the newsletter and upstream publication to sync
type SyncInput struct {
	NewsletterID  string
	PublicationID string
	RecentStats   *int // Defaults to the configured count
}

// Sync pulls the newsletter from the upstream API. A result that arrives
// after a newer import or sync is discarded with entity.ErrStaleSync.
func (p *Policy) Sync(ctx context.Context, in SyncInput) (*ImportOutput, error) {
	if in.NewsletterID == "" {
		return nil, entity.ErrEmptyNewsletter
	}
	if in.PublicationID == "" {
		in.PublicationID = p.publicationFor(in.NewsletterID)
	}
	if in.PublicationID == "" {
		return nil, entity.ErrNoPublicationID
	}
	recent := p.cfg.RecentStats
	if in.RecentStats != nil {
		recent = *in.RecentStats
	}

	token := p.svc.BeginSync(in.NewsletterID)
	ds, err := p.syncer.Sync(ctx, ingest.SyncRequest{
		PublicationID: in.PublicationID,
		RecentStats:   recent,
	})
	if err != nil {
		return nil, fmt.Errorf("syncing %s: %w", in.NewsletterID, err)
	}
	if err := p.svc.CommitSync(ctx, token, ds); err != nil {
		if errors.Is(err, entity.ErrStaleSync) {
			p.logger.Info("discarding stale sync", "newsletter_id", in.NewsletterID, "generation", token.Generation)
		}
		return nil, err
	}
	return summarize(ds), nil
}

// SyncAll re-syncs every configured target. Failures are logged and joined;
// one failing newsletter does not stop the others.
func (p *Policy) SyncAll(ctx context.Context) error {
	var errs []error
	for _, t := range p.cfg.Targets {
		out, err := p.Sync(ctx, SyncInput{NewsletterID: t.NewsletterID, PublicationID: t.PublicationID})
		if err != nil {
			p.logger.Error("scheduled sync failed", "newsletter_id", t.NewsletterID, "error", err)
			errs = append(errs, err)
			continue
		}
		p.logger.Info("scheduled sync done", "newsletter_id", t.NewsletterID, "posts", out.Posts)
	}
	return errors.Join(errs...)
}

// Targets returns the configured sync targets
func (p *Policy) Targets() []SyncTarget {
	return p.cfg.Targets
}

func (p *Policy) publicationFor(newsletterID string) string {
	for _, t := range p.cfg.Targets {
		if t.NewsletterID == newsletterID {
			return t.PublicationID
		}
	}
	return ""
}

func summarize(ds *entity.Dataset) *ImportOutput {
	return &ImportOutput{
		NewsletterID: ds.NewsletterID,
		Kind:         ds.Kind,
		Posts:        len(ds.Posts),
		Growth:       len(ds.Growth),
		Audience:     len(ds.Audience),
		Warnings:     ds.Warnings,
		UpdatedAt:    ds.UpdatedAt,
	}
}

// List returns the IDs of all newsletters with stored data
func (p *Policy) List(ctx context.Context) ([]string, error) {
	return p.svc.List(ctx)
}

// Delete removes a newsletter's dataset
func (p *Policy) Delete(ctx context.Context, newsletterID string) error {
	if newsletterID == "" {
		return entity.ErrEmptyNewsletter
	}
	return p.svc.Delete(ctx, newsletterID)
}
