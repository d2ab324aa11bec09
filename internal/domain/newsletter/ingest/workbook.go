package ingest

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/newsletterlab/pulse/internal/domain/newsletter/entity"
	"github.com/newsletterlab/pulse/internal/domain/newsletter/normalize"
)

// Workbook is a parsed multi-sheet document exposing named sheets as rows
type Workbook interface {
	SheetNames() []string
	Rows(sheet string) ([][]string, error)
}

// Sheets is an in-memory Workbook keyed by sheet name
type Sheets map[string][][]string

// SheetNames returns the sheet names in sorted order
func (s Sheets) SheetNames() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Rows returns the rows of a sheet
func (s Sheets) Rows(sheet string) ([][]string, error) {
	rows, ok := s[sheet]
	if !ok {
		return nil, fmt.Errorf("sheet %q not found", sheet)
	}
	return rows, nil
}

// ExcelWorkbook reads an XLSX file. Cells are read raw so date cells keep
// their serial day numbers.
type ExcelWorkbook struct {
	f *excelize.File
}

// OpenWorkbook opens an XLSX document from r
func OpenWorkbook(r io.Reader) (*ExcelWorkbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrUnparseableFile, err)
	}
	return &ExcelWorkbook{f: f}, nil
}

// SheetNames returns the sheet names in workbook order
func (w *ExcelWorkbook) SheetNames() []string {
	return w.f.GetSheetList()
}

// Rows returns every row of a sheet as raw cell values
func (w *ExcelWorkbook) Rows(sheet string) ([][]string, error) {
	return w.f.GetRows(sheet, excelize.Options{RawCellValue: true})
}

// Close releases the workbook
func (w *ExcelWorkbook) Close() error {
	return w.f.Close()
}

type sheetKind struct {
	name    string
	aliases []string
	feature string // what becomes unavailable without the sheet
}

var (
	postsSheet    = sheetKind{"posts", []string{"posts", "campaigns"}, "post performance charts"}
	growthSheet   = sheetKind{"subscriber growth", []string{"subscriber monthly", "growth", "subscriber growth"}, "subscriber growth chart"}
	audienceSheet = sheetKind{"current subscribers", []string{"current subscribers", "audience"}, "audience size"}
)

// ParseWorkbook reads the posts, monthly growth and audience sheets.
// A missing sheet is a warning; the call fails only when no known sheet exists.
func ParseWorkbook(wb Workbook) (*entity.Dataset, error) {
	names := wb.SheetNames()
	if len(names) == 0 {
		return nil, entity.ErrEmptyInput
	}

	postsName, hasPosts := findSheet(names, postsSheet)
	growthName, hasGrowth := findSheet(names, growthSheet)
	audienceName, hasAudience := findSheet(names, audienceSheet)
	if !hasPosts && !hasGrowth && !hasAudience {
		return nil, fmt.Errorf("%w: no posts, growth or audience sheet among %s", entity.ErrUnparseableFile, strings.Join(names, ", "))
	}

	ds := &entity.Dataset{Kind: entity.SourceMultiSheet}

	if hasPosts {
		rows, err := wb.Rows(postsName)
		if err != nil {
			return nil, fmt.Errorf("%w: reading sheet %q: %v", entity.ErrUnparseableFile, postsName, err)
		}
		if len(rows) < 2 {
			ds.Warn(entity.WarningMissingSheet, "sheet %q has no rows: %s unavailable", postsName, postsSheet.feature)
		} else {
			posts, err := parsePostRows(ds, rows)
			if err != nil {
				return nil, err
			}
			ds.Posts = posts
		}
	} else {
		missingSheet(ds, postsSheet)
	}

	if hasGrowth {
		growth, err := parseGrowth(ds, wb, growthName)
		if err != nil {
			return nil, err
		}
		ds.Growth = growth
	} else {
		missingSheet(ds, growthSheet)
	}

	if hasAudience {
		audience, err := parseAudience(ds, wb, audienceName)
		if err != nil {
			return nil, err
		}
		ds.Audience = audience
	} else {
		missingSheet(ds, audienceSheet)
	}

	return ds, nil
}

func parseGrowth(ds *entity.Dataset, wb Workbook, sheet string) ([]entity.GrowthBucket, error) {
	rows, err := wb.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: reading sheet %q: %v", entity.ErrUnparseableFile, sheet, err)
	}
	if len(rows) < 2 {
		ds.Warn(entity.WarningMissingSheet, "sheet %q has no rows: %s unavailable", sheet, growthSheet.feature)
		return nil, nil
	}
	idx := normalize.GrowthColumns.Resolve(trimCells(rows[0]))
	if !idx.Has(normalize.FieldDate) {
		ds.Warn(entity.WarningMissingColumn, "sheet %q has no month column: %s unavailable", sheet, growthSheet.feature)
		return nil, nil
	}

	growth := make([]entity.GrowthBucket, 0, len(rows)-1)
	skipped := 0
	for _, row := range rows[1:] {
		if blank(trimCells(row)) {
			continue
		}
		date, ok := normalize.ParseDate(idx.Get(row, normalize.FieldDate))
		if !ok {
			skipped++
			continue
		}
		g := entity.GrowthBucket{
			Date:         entity.MonthStart(date),
			Subscribed:   normalize.Count(row, idx, normalize.FieldSubscribed),
			Unsubscribed: normalize.Count(row, idx, normalize.FieldUnsubscribed),
		}
		// Net is signed; derive it when the sheet omits it
		if net, ok := parseSigned(idx.Get(row, normalize.FieldNet)); ok {
			g.Net = net
		} else {
			g.Net = g.Subscribed - g.Unsubscribed
		}
		growth = append(growth, g)
	}
	if skipped > 0 {
		ds.Warn(entity.WarningSkippedRows, "%d growth rows skipped without a parseable month", skipped)
	}

	sort.SliceStable(growth, func(i, j int) bool {
		return growth[i].Date.Before(growth[j].Date)
	})
	return growth, nil
}

func parseAudience(ds *entity.Dataset, wb Workbook, sheet string) ([]entity.AudienceSnapshot, error) {
	rows, err := wb.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: reading sheet %q: %v", entity.ErrUnparseableFile, sheet, err)
	}
	if len(rows) < 2 {
		ds.Warn(entity.WarningMissingSheet, "sheet %q has no rows: %s unavailable", sheet, audienceSheet.feature)
		return nil, nil
	}
	idx := normalize.AudienceColumns.Resolve(trimCells(rows[0]))
	if !idx.Has(normalize.FieldDate) || !idx.Has(normalize.FieldActiveSubscribers) {
		ds.Warn(entity.WarningMissingColumn, "sheet %q needs date and subscriber columns: %s unavailable", sheet, audienceSheet.feature)
		return nil, nil
	}

	audience := make([]entity.AudienceSnapshot, 0, len(rows)-1)
	for _, row := range rows[1:] {
		date, ok := normalize.ParseDate(idx.Get(row, normalize.FieldDate))
		if !ok {
			continue
		}
		n, ok := normalize.ParseCount(idx.Get(row, normalize.FieldActiveSubscribers))
		if !ok {
			continue
		}
		audience = append(audience, entity.AudienceSnapshot{Date: date, ActiveSubscribers: n})
	}

	sort.SliceStable(audience, func(i, j int) bool {
		return audience[i].Date.Before(audience[j].Date)
	})
	return audience, nil
}

// findSheet matches sheet names against aliases: exact key match first, then containment
func findSheet(names []string, kind sheetKind) (string, bool) {
	for _, alias := range kind.aliases {
		for _, name := range names {
			if normalize.Matches(name, alias) {
				return name, true
			}
		}
	}
	for _, alias := range kind.aliases {
		key := normalize.Key(alias)
		for _, name := range names {
			if strings.Contains(normalize.Key(name), key) {
				return name, true
			}
		}
	}
	return "", false
}

func missingSheet(ds *entity.Dataset, kind sheetKind) {
	ds.Warn(entity.WarningMissingSheet, "no %s sheet found: %s unavailable", kind.name, kind.feature)
}

func parseSigned(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		n, ok := normalize.ParseCount(strings.TrimPrefix(s, "-"))
		return -n, ok
	}
	return normalize.ParseCount(s)
}
