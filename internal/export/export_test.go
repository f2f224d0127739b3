package export

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"testing"

	"pichost/internal/database"

	"github.com/xuri/excelize/v2"
)

type fakeQuerier struct {
	rows   []database.FileRecord
	filter database.Filter
	order  database.Order
}

func (q *fakeQuerier) Query(_ context.Context, f database.Filter, o database.Order) ([]database.FileRecord, error) {
	q.filter, q.order = f, o
	return q.rows, nil
}

func row(article, filename string) database.FileRecord {
	return database.FileRecord{
		Filename:      "Album/" + article + "/" + filename,
		AlbumName:     "Album",
		ArticleNumber: article,
		PublicLink:    "https://x/images/Album/" + article + "/" + filename,
	}
}

func TestSuffix(t *testing.T) {
	tests := map[string]int64{
		"A/B/1.jpg":       0,
		"A/B/1_2.jpg":     2,
		"A/B/shoe_10.png": 10,
		"A/B/shoe_10":     10,
		"A/B/shoe_x.jpg":  0,
		"A/B/a_1_3.jpg":   3,
	}
	for in, want := range tests {
		if got := Suffix(in); got != want {
			t.Errorf("Suffix(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestGroup(t *testing.T) {
	// Input in filename order, as the catalog returns it.
	rows := []database.FileRecord{
		row("A2", "x_1.jpg"),
		row("A1", "p_10.jpg"),
		row("A1", "p_2.jpg"),
		row("A1", "p.jpg"),
	}

	got := Group(rows)
	want := []ArticleLinks{
		{"A1", []string{
			"https://x/images/Album/A1/p.jpg",
			"https://x/images/Album/A1/p_2.jpg",
			"https://x/images/Album/A1/p_10.jpg",
		}},
		{"A2", []string{"https://x/images/Album/A2/x_1.jpg"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Group() = %+v, want %+v", got, want)
	}
}

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		req  Request
		want error
	}{
		{Request{Album: "A", Type: TypeInRow}, nil},
		{Request{Album: "A", Type: TypeInCell}, nil},
		{Request{Type: TypeInRow}, ErrMissingParams},
		{Request{Album: "A"}, ErrMissingParams},
		{Request{Album: "A", Type: "sideways"}, ErrInvalidType},
	}
	for _, tt := range tests {
		if err := tt.req.Validate(); !errors.Is(err, tt.want) || (tt.want == nil && err != nil) {
			t.Errorf("Validate(%+v) = %v, want %v", tt.req, err, tt.want)
		}
	}
}

func TestFileName(t *testing.T) {
	if got := (Request{Album: "Shoes"}).FileName(); got != "links_Shoes.xlsx" {
		t.Errorf("FileName() = %q", got)
	}
	if got := (Request{Album: "Shoes", Article: "A1"}).FileName(); got != "links_Shoes_A1.xlsx" {
		t.Errorf("FileName() = %q", got)
	}
}

func openWorkbook(t *testing.T, data []byte) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	return rows
}

func TestExportInRow(t *testing.T) {
	q := &fakeQuerier{rows: []database.FileRecord{
		row("A1", "1.jpg"), row("A1", "1_2.jpg"), row("A2", "2.jpg"),
	}}

	data, err := Export(context.Background(), q, Request{Album: "Album", Type: TypeInRow})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if q.filter.Album != "Album" || q.order != database.OrderArticleFilename {
		t.Errorf("query filter = %+v order = %v", q.filter, q.order)
	}

	got := openWorkbook(t, data)
	want := [][]string{
		{"Article", "Link 1", "Link 2"},
		{"A1", "https://x/images/Album/A1/1.jpg", "https://x/images/Album/A1/1_2.jpg"},
		{"A2", "https://x/images/Album/A2/2.jpg"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("rows = %v, want %v", got, want)
	}
}

func TestExportInCell(t *testing.T) {
	q := &fakeQuerier{rows: []database.FileRecord{row("A1", "1.jpg"), row("A1", "1_2.jpg")}}

	data, err := Export(context.Background(), q, Request{Album: "Album", Article: "A1", Type: TypeInCell, Separator: "\n"})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if q.filter.Article != "A1" {
		t.Errorf("article filter = %q", q.filter.Article)
	}

	got := openWorkbook(t, data)
	want := [][]string{
		{"Article", "Links"},
		{"A1", "https://x/images/Album/A1/1.jpg\nhttps://x/images/Album/A1/1_2.jpg"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("rows = %q, want %q", got, want)
	}
}

func TestExportErrors(t *testing.T) {
	ctx := context.Background()
	if _, err := Export(ctx, &fakeQuerier{}, Request{Album: "Album", Type: TypeInRow}); !errors.Is(err, ErrNoData) {
		t.Errorf("empty album error = %v, want ErrNoData", err)
	}
	if _, err := Export(ctx, &fakeQuerier{}, Request{Album: "Album", Type: "diagonal"}); !errors.Is(err, ErrInvalidType) {
		t.Errorf("bad type error = %v, want ErrInvalidType", err)
	}
}

func TestLayoutDefaultSeparator(t *testing.T) {
	table := layout([]ArticleLinks{{"A", []string{"l1", "l2"}}}, Request{Type: TypeInCell})
	if table[1][1] != "l1, l2" {
		t.Errorf("joined = %q, want %q", table[1][1], "l1, l2")
	}
}
