// Package ingest holds the three ingestion adapters. Each one turns a raw
// source into an entity.Dataset so consumers never branch on source type.
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/newsletterlab/pulse/internal/domain/newsletter/entity"
	"github.com/newsletterlab/pulse/internal/domain/newsletter/normalize"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// optionalPostFields are reported as warnings when absent from a posts header
var optionalPostFields = []normalize.Field{
	normalize.FieldTitle,
	normalize.FieldSent,
	normalize.FieldDelivered,
	normalize.FieldUniqueOpens,
	normalize.FieldUniqueClicks,
}

// ParseBulkText parses a delimited text export with a header row.
// Quoted cells may contain the delimiter and line breaks. A missing date
// column is terminal and yields no rows.
func ParseBulkText(r io.Reader) (*entity.Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: reading input: %v", entity.ErrUnparseableFile, err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, entity.ErrEmptyInput
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = sniffDelimiter(data)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return nil, fmt.Errorf("%w: line %d: %v", entity.ErrUnparseableFile, perr.Line, perr.Err)
		}
		return nil, fmt.Errorf("%w: %v", entity.ErrUnparseableFile, err)
	}
	if len(records) < 2 {
		return nil, entity.ErrEmptyInput
	}

	ds := &entity.Dataset{Kind: entity.SourceBulkText}
	posts, err := parsePostRows(ds, records)
	if err != nil {
		return nil, err
	}
	ds.Posts = posts
	return ds, nil
}

// parsePostRows normalizes a header row plus data rows, recording warnings on ds
func parsePostRows(ds *entity.Dataset, records [][]string) ([]entity.Post, error) {
	header := trimCells(records[0])
	idx := normalize.PostColumns.Resolve(header)
	if !idx.Has(normalize.FieldDate) {
		return nil, &entity.MissingColumnError{Column: string(normalize.FieldDate)}
	}
	for _, f := range optionalPostFields {
		if !idx.Has(f) {
			ds.Warn(entity.WarningMissingColumn, "column %q not found, values default to empty", f)
		}
	}

	posts := make([]entity.Post, 0, len(records)-1)
	skipped := 0
	for _, row := range records[1:] {
		row = trimCells(row)
		if blank(row) {
			continue
		}
		p, ok := normalize.Row(row, idx)
		if !ok {
			skipped++
			continue
		}
		posts = append(posts, p)
	}
	if skipped > 0 {
		ds.Warn(entity.WarningSkippedRows, "%d rows skipped without a parseable date", skipped)
	}

	sortPosts(posts)
	return posts, nil
}

// sniffDelimiter picks comma, semicolon or tab from the header line
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		line = data[:i]
	}
	best, bestCount := ',', bytes.Count(line, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func trimCells(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(c)
	}
	return out
}

func blank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}

func sortPosts(posts []entity.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].Date.Before(posts[j].Date)
	})
}
