package policy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/newsletterlab/pulse/internal/domain/newsletter/dao"
	"github.com/newsletterlab/pulse/internal/domain/newsletter/entity"
	"github.com/newsletterlab/pulse/internal/domain/newsletter/ingest"
	"github.com/newsletterlab/pulse/internal/domain/newsletter/insight"
	"github.com/newsletterlab/pulse/internal/domain/newsletter/metrics"
	"github.com/newsletterlab/pulse/internal/domain/newsletter/service"
	"github.com/newsletterlab/pulse/internal/storage"
)

const sampleCSV = "Title,Date,Sent,Delivered,Unique Opens,Unique Clicks\n" +
	"A,2024-01-05,1000,1000,500,50\n" +
	"B,2024-01-20,2000,2000,1000,80\n" +
	"C,2024-02-03,500,500,100,30\n" +
	"D,2024-02-17,1500,1500,600,90\n"

type fakeSyncer struct {
	ds     *entity.Dataset
	err    error
	before func() // runs while the sync is in flight
	reqs   []ingest.SyncRequest
}

func (f *fakeSyncer) Sync(_ context.Context, req ingest.SyncRequest) (*entity.Dataset, error) {
	f.reqs = append(f.reqs, req)
	if f.before != nil {
		f.before()
	}
	if f.err != nil {
		return nil, f.err
	}
	out := *f.ds
	return &out, nil
}

type fakeArchiver struct {
	inputs []storage.ArchiveInput
	err    error
}

func (f *fakeArchiver) Archive(_ context.Context, in storage.ArchiveInput) (*storage.ArchiveOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &storage.ArchiveOutput{Key: "imports/" + in.NewsletterID + "/x.csv", Size: int64(len(in.Body))}, nil
}

func newTestPolicy(syncer Syncer, archiver Archiver, cfg Config) *Policy {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(dao.NewDatasetMemory())
	return New(svc, syncer, archiver, cfg, logger)
}

func importSample(t *testing.T, p *Policy) {
	t.Helper()
	_, err := p.ImportBulkText(context.Background(), ImportInput{
		NewsletterID: "weekly",
		Filename:     "posts.csv",
		ContentType:  "text/csv",
		Body:         []byte(sampleCSV),
	})
	if err != nil {
		t.Fatalf("ImportBulkText() error = %v", err)
	}
}

func session() Session {
	return Session{NewsletterID: "weekly", Now: time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC)}
}

func TestImportBulkText(t *testing.T) {
	t.Parallel()

	arch := &fakeArchiver{}
	p := newTestPolicy(&fakeSyncer{}, arch, Config{})

	out, err := p.ImportBulkText(context.Background(), ImportInput{
		NewsletterID: "weekly",
		Filename:     "posts.csv",
		ContentType:  "text/csv",
		Body:         []byte(sampleCSV),
	})
	if err != nil {
		t.Fatalf("ImportBulkText() error = %v", err)
	}
	if out.Posts != 4 || out.Kind != entity.SourceBulkText || out.ArchiveKey == "" {
		t.Errorf("ImportBulkText() = %+v", out)
	}
	if len(arch.inputs) != 1 || arch.inputs[0].Filename != "posts.csv" {
		t.Errorf("archived %+v", arch.inputs)
	}

	_, err = p.ImportBulkText(context.Background(), ImportInput{NewsletterID: "weekly", Body: []byte("Title\nx\n")})
	var colErr *entity.MissingColumnError
	if !errors.As(err, &colErr) {
		t.Errorf("error = %v, want MissingColumnError", err)
	}
	ds, _ := p.Dataset(context.Background(), session())
	if len(ds.Posts) != 4 {
		t.Error("failed import replaced the stored dataset")
	}

	if _, err := p.ImportBulkText(context.Background(), ImportInput{Body: []byte(sampleCSV)}); !errors.Is(err, entity.ErrEmptyNewsletter) {
		t.Errorf("error = %v, want ErrEmptyNewsletter", err)
	}
}

func TestImport_ArchiveFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	p := newTestPolicy(&fakeSyncer{}, &fakeArchiver{err: errors.New("bucket missing")}, Config{})
	out, err := p.ImportBulkText(context.Background(), ImportInput{NewsletterID: "weekly", Body: []byte(sampleCSV)})
	if err != nil {
		t.Fatalf("ImportBulkText() error = %v", err)
	}
	if out.ArchiveKey != "" {
		t.Errorf("ArchiveKey = %q, want empty", out.ArchiveKey)
	}
}

func TestImportWorkbook_Invalid(t *testing.T) {
	t.Parallel()

	p := newTestPolicy(&fakeSyncer{}, nil, Config{})
	_, err := p.ImportWorkbook(context.Background(), ImportInput{NewsletterID: "weekly", Body: []byte("not a zip")})
	if !errors.Is(err, entity.ErrUnparseableFile) {
		t.Errorf("error = %v, want ErrUnparseableFile", err)
	}
	_, err = p.ImportWorkbook(context.Background(), ImportInput{NewsletterID: "weekly"})
	if !errors.Is(err, entity.ErrEmptyInput) {
		t.Errorf("error = %v, want ErrEmptyInput", err)
	}
}

func TestSync(t *testing.T) {
	t.Parallel()

	syncer := &fakeSyncer{ds: &entity.Dataset{
		Kind:  entity.SourceAPISync,
		Posts: []entity.Post{{ID: "p1", Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)}},
	}}
	p := newTestPolicy(syncer, nil, Config{
		RecentStats: 10,
		Targets:     []SyncTarget{{NewsletterID: "weekly", PublicationID: "pub_1"}},
	})

	out, err := p.Sync(context.Background(), SyncInput{NewsletterID: "weekly"})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if out.Posts != 1 || out.NewsletterID != "weekly" {
		t.Errorf("Sync() = %+v", out)
	}
	if got := syncer.reqs[0]; got.PublicationID != "pub_1" || got.RecentStats != 10 {
		t.Errorf("request = %+v", got)
	}

	three := 3
	if _, err := p.Sync(context.Background(), SyncInput{NewsletterID: "weekly", PublicationID: "pub_2", RecentStats: &three}); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if got := syncer.reqs[1]; got.PublicationID != "pub_2" || got.RecentStats != 3 {
		t.Errorf("override request = %+v", got)
	}

	if _, err := p.Sync(context.Background(), SyncInput{NewsletterID: "other"}); !errors.Is(err, entity.ErrNoPublicationID) {
		t.Errorf("error = %v, want ErrNoPublicationID", err)
	}
}

func TestSync_StaleResultDiscarded(t *testing.T) {
	t.Parallel()

	syncer := &fakeSyncer{ds: &entity.Dataset{Kind: entity.SourceAPISync}}
	p := newTestPolicy(syncer, nil, Config{})
	syncer.before = func() { importSample(t, p) }

	_, err := p.Sync(context.Background(), SyncInput{NewsletterID: "weekly", PublicationID: "pub_1"})
	if !errors.Is(err, entity.ErrStaleSync) {
		t.Fatalf("error = %v, want ErrStaleSync", err)
	}
	ds, _ := p.Dataset(context.Background(), session())
	if ds.Kind != entity.SourceBulkText {
		t.Errorf("Kind = %q, want the newer import", ds.Kind)
	}
}

func TestSyncAll(t *testing.T) {
	t.Parallel()

	syncer := &fakeSyncer{err: &entity.UpstreamError{Status: 503}}
	p := newTestPolicy(syncer, nil, Config{Targets: []SyncTarget{
		{NewsletterID: "a", PublicationID: "pub_a"},
		{NewsletterID: "b", PublicationID: "pub_b"},
	}})

	err := p.SyncAll(context.Background())
	var upErr *entity.UpstreamError
	if !errors.As(err, &upErr) || upErr.Status != 503 {
		t.Fatalf("SyncAll() error = %v", err)
	}
	if len(syncer.reqs) != 2 {
		t.Errorf("attempted %d syncs, want 2", len(syncer.reqs))
	}
}

func TestSummary(t *testing.T) {
	t.Parallel()

	p := newTestPolicy(&fakeSyncer{}, nil, Config{})
	importSample(t, p)

	got, err := p.Summary(context.Background(), session())
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if got.Aggregate.OpenRate == nil || math.Abs(*got.Aggregate.OpenRate-44) > 1e-9 {
		t.Errorf("OpenRate = %v, want 44", got.Aggregate.OpenRate)
	}
	if len(got.Deltas) != len(entity.Metrics) {
		t.Errorf("got %d deltas", len(got.Deltas))
	}
	if d := got.Deltas[entity.MetricDelivered]; d.Direction != metrics.DirectionNegative || !d.IsAbsolute {
		t.Errorf("delivered delta = %+v", d)
	}
	if got.Audience != nil {
		t.Errorf("Audience = %+v, want nil for bulk text", got.Audience)
	}

	if _, err := p.Summary(context.Background(), Session{NewsletterID: "missing"}); !errors.Is(err, entity.ErrDatasetNotFound) {
		t.Errorf("error = %v, want ErrDatasetNotFound", err)
	}
}

func TestBuckets_MonthSnaps(t *testing.T) {
	t.Parallel()

	p := newTestPolicy(&fakeSyncer{}, nil, Config{})
	importSample(t, p)

	s := session()
	s.Window = metrics.Window{Start: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)}

	monthly, err := p.Buckets(context.Background(), s, entity.GranularityMonth)
	if err != nil {
		t.Fatalf("Buckets() error = %v", err)
	}
	if len(monthly) != 2 || monthly[0].Aggregate.Count != 2 {
		t.Errorf("monthly buckets = %+v", monthly)
	}

	daily, _ := p.Buckets(context.Background(), s, entity.GranularityDay)
	if len(daily) != 3 {
		t.Errorf("got %d daily buckets, want 3", len(daily))
	}

	if _, err := p.Buckets(context.Background(), s, "hour"); !errors.Is(err, entity.ErrInvalidGranularity) {
		t.Errorf("error = %v", err)
	}

	bad := session()
	bad.Window = metrics.Window{Start: s.Now, End: s.Now.AddDate(0, -1, 0)}
	if _, err := p.Buckets(context.Background(), bad, entity.GranularityDay); !errors.Is(err, entity.ErrInvalidRange) {
		t.Errorf("error = %v, want ErrInvalidRange", err)
	}
}

func TestAnalyticsQueries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := newTestPolicy(&fakeSyncer{}, nil, Config{})
	importSample(t, p)
	s := session()

	tr, err := p.Trend(ctx, s, entity.MetricOpenRate, "")
	if err != nil {
		t.Fatalf("Trend() error = %v", err)
	}
	if len(tr.Series) != 4 || tr.Trend.Direction != insight.DirectionDown {
		t.Errorf("Trend() = %+v", tr)
	}
	monthly, _ := p.Trend(ctx, s, entity.MetricOpenRate, entity.GranularityMonth)
	if len(monthly.Series) != 2 {
		t.Errorf("monthly series = %d points", len(monthly.Series))
	}

	d, err := p.Delta(ctx, s, entity.MetricOpenRate)
	if err != nil || d.Direction != metrics.DirectionNegative {
		t.Errorf("Delta() = %+v, %v", d, err)
	}

	rk, err := p.Rankings(ctx, s, entity.MetricCTR, insight.OrderDesc, 2)
	if err != nil {
		t.Fatalf("Rankings() error = %v", err)
	}
	if len(rk.Ranked) != 2 || rk.Ranked[0].Post.Title != "C" || len(rk.Extremes.Bottom) != 2 {
		t.Errorf("Rankings() = %+v", rk)
	}

	base, err := p.Baseline(ctx, s, entity.MetricOpenRate, 30)
	if err != nil || base.Value == nil {
		t.Errorf("Baseline() = %+v, %v", base, err)
	}

	in, err := p.Insight(ctx, s)
	if err != nil {
		t.Fatalf("Insight() error = %v", err)
	}
	if in.Primary.Message == "" {
		t.Error("empty insight message")
	}

	if _, err := p.Anomalies(ctx, s, entity.MetricSent, 0); err != nil {
		t.Errorf("Anomalies() error = %v", err)
	}
}

func TestDataset_WindowsEverySeries(t *testing.T) {
	t.Parallel()

	p := newTestPolicy(&fakeSyncer{}, nil, Config{})
	importSample(t, p)

	s := session()
	s.Window = metrics.Window{End: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)}
	ds, err := p.Dataset(context.Background(), s)
	if err != nil {
		t.Fatalf("Dataset() error = %v", err)
	}
	var titles []string
	for _, post := range ds.Posts {
		titles = append(titles, post.Title)
	}
	if strings.Join(titles, ",") != "A,B" {
		t.Errorf("titles = %v", titles)
	}

	full, _ := p.Dataset(context.Background(), session())
	if len(full.Posts) != 4 {
		t.Error("windowed read mutated the cached dataset")
	}
}
