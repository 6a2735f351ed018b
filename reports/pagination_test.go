package reports

import "testing"

func TestNormalizePage(t *testing.T) {
	cases := []struct {
		page, size         int
		wantPage, wantSize int
	}{
		{0, 0, 1, defaultPageSize},
		{-3, -1, 1, defaultPageSize},
		{2, 50, 2, 50},
		{1, 5000, 1, maxPageSize},
	}
	for _, c := range cases {
		page, size := normalizePage(c.page, c.size)
		if page != c.wantPage || size != c.wantSize {
			t.Fatalf("normalizePage(%d, %d) = (%d, %d), want (%d, %d)",
				c.page, c.size, page, size, c.wantPage, c.wantSize)
		}
	}
}

func TestBuildPaginationRoundsUp(t *testing.T) {
	cases := []struct {
		total     int64
		size      int
		wantPages int
	}{
		{0, 20, 0},
		{1, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{41, 20, 3},
	}
	for _, c := range cases {
		p := buildPagination(1, c.size, c.total)
		if p.TotalPages != c.wantPages {
			t.Fatalf("buildPagination(total=%d, size=%d).TotalPages = %d, want %d",
				c.total, c.size, p.TotalPages, c.wantPages)
		}
		if p.TotalItems != c.total {
			t.Fatalf("TotalItems = %d, want %d", p.TotalItems, c.total)
		}
	}
}

func TestParseDimensionId(t *testing.T) {
	cases := []struct {
		raw     string
		id      int
		present bool
		ok      bool
	}{
		{"", 0, false, true},
		{"  ", 0, false, true},
		{"7", 7, true, true},
		{"abc", 0, true, false},
		{"-1", 0, true, false},
	}
	for _, c := range cases {
		id, present, ok := parseDimensionId(c.raw)
		if id != c.id || present != c.present || ok != c.ok {
			t.Fatalf("parseDimensionId(%q) = (%d, %v, %v), want (%d, %v, %v)",
				c.raw, id, present, ok, c.id, c.present, c.ok)
		}
	}
}
