package export

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"pichost/internal/database"
	"pichost/internal/logging"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrMissingParams is returned when the album or export type is empty.
	ErrMissingParams = errors.New("missing required parameters")
	// ErrInvalidType is returned for an unknown export layout.
	ErrInvalidType = errors.New("invalid export type")
	// ErrNoData is returned when the selection matches no rows.
	ErrNoData = errors.New("no data found for export")
)

// Type selects the spreadsheet layout.
type Type string

const (
	// TypeInRow puts each link of an article in its own column.
	TypeInRow Type = "in_row"
	// TypeInCell joins the links of an article into one cell.
	TypeInCell Type = "in_cell"
)

// DefaultSeparator joins links in TypeInCell exports.
const DefaultSeparator = ", "

const (
	sheetName   = "Image links"
	headerColor = "366092"
	maxColWidth = 50
)

// Request describes one export.
type Request struct {
	Album     string `json:"album_name"`
	Article   string `json:"article_name,omitempty"`
	Type      Type   `json:"export_type"`
	Separator string `json:"separator,omitempty"`
}

// Validate checks the required fields.
func (r Request) Validate() error {
	if r.Album == "" || r.Type == "" {
		return ErrMissingParams
	}
	if r.Type != TypeInRow && r.Type != TypeInCell {
		return fmt.Errorf("%w: %q", ErrInvalidType, r.Type)
	}
	return nil
}

// FileName is the download name: links_{album}[_{article}].xlsx.
func (r Request) FileName() string {
	name := "links_" + r.Album
	if r.Article != "" {
		name += "_" + r.Article
	}
	return name + ".xlsx"
}

// Querier reads catalog rows.
type Querier interface {
	Query(ctx context.Context, f database.Filter, order database.Order) ([]database.FileRecord, error)
}

// ArticleLinks is one spreadsheet row.
type ArticleLinks struct {
	Article string
	Links   []string
}

var suffixPattern = regexp.MustCompile(`(.+)_(\d+)(\.[^.]*)?$`)

// Suffix returns the numeric suffix of a file name such as "shoe_12.jpg",
// or 0 when there is none.
func Suffix(filename string) int64 {
	m := suffixPattern.FindStringSubmatch(filename)
	if m == nil {
		return 0
	}
	n, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Group orders rows by article, then by numeric file suffix, and collects
// the links of each article. Rows that tie keep their input order.
func Group(rows []database.FileRecord) []ArticleLinks {
	sorted := make([]database.FileRecord, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ArticleNumber != sorted[j].ArticleNumber {
			return sorted[i].ArticleNumber < sorted[j].ArticleNumber
		}
		return Suffix(sorted[i].Filename) < Suffix(sorted[j].Filename)
	})

	var groups []ArticleLinks
	for _, row := range sorted {
		if n := len(groups); n > 0 && groups[n-1].Article == row.ArticleNumber {
			groups[n-1].Links = append(groups[n-1].Links, row.PublicLink)
			continue
		}
		groups = append(groups, ArticleLinks{Article: row.ArticleNumber, Links: []string{row.PublicLink}})
	}
	return groups
}

// Export builds the XLSX workbook for req.
func Export(ctx context.Context, q Querier, req Request) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, database.Filter{Album: req.Album, Article: req.Article}, database.OrderArticleFilename)
	if err != nil {
		return nil, fmt.Errorf("query export rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNoData
	}

	groups := Group(rows)
	table := layout(groups, req)

	data, err := render(table)
	if err != nil {
		return nil, err
	}
	logging.Info("Exported %d articles (%d links) of album %s as %s", len(groups), len(rows), req.Album, req.Type)
	return data, nil
}

// layout returns the header followed by data rows.
func layout(groups []ArticleLinks, req Request) [][]string {
	var table [][]string

	switch req.Type {
	case TypeInRow:
		maxLinks := 0
		for _, g := range groups {
			maxLinks = max(maxLinks, len(g.Links))
		}
		header := []string{"Article"}
		for i := 1; i <= maxLinks; i++ {
			header = append(header, fmt.Sprintf("Link %d", i))
		}
		table = append(table, header)
		for _, g := range groups {
			table = append(table, append([]string{g.Article}, g.Links...))
		}

	case TypeInCell:
		sep := req.Separator
		if sep == "" {
			sep = DefaultSeparator
		}
		table = append(table, []string{"Article", "Links"})
		for _, g := range groups {
			table = append(table, []string{g.Article, strings.Join(g.Links, sep)})
		}
	}
	return table
}

func render(table [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logging.Debug("failed to close workbook: %v", err)
		}
	}()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{headerColor}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	widths := make(map[int]int)
	for r, row := range table {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellStr(sheetName, cell, value); err != nil {
				return nil, fmt.Errorf("set %s: %w", cell, err)
			}
			if r == 0 {
				if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
					return nil, fmt.Errorf("style %s: %w", cell, err)
				}
			}
			widths[c+1] = max(widths[c+1], utf8.RuneCountInString(value))
		}
	}

	for col, w := range widths {
		name, err := excelize.ColumnNumberToName(col)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheetName, name, name, float64(min(w+2, maxColWidth))); err != nil {
			return nil, fmt.Errorf("set width of %s: %w", name, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
