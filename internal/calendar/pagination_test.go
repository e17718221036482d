package calendar

import (
	"math"
	"testing"
)

func TestPaginate_Basic(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	page := Paginate(items, 1, 5)

	if len(page.Items) != 5 {
		t.Fatalf("expected 5 items on page 1, got %d", len(page.Items))
	}
	if page.HasPrev {
		t.Fatalf("expected HasPrev=false on first page")
	}
	if !page.HasNext {
		t.Fatalf("expected HasNext=true on first page")
	}
	if page.Total != len(items) {
		t.Fatalf("expected Total=%d, got %d", len(items), page.Total)
	}
}

func TestPaginate_LastPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6}
	page := Paginate(items, 2, 4)

	if len(page.Items) != 2 {
		t.Fatalf("expected 2 items on last page, got %d", len(page.Items))
	}
	if !page.HasPrev || page.HasNext {
		t.Fatalf("expected HasPrev=true HasNext=false on last page, got %+v", page)
	}
}

func TestPaginate_PastTheEnd(t *testing.T) {
	page := Paginate([]int{1, 2, 3}, 5, 2)

	if len(page.Items) != 0 {
		t.Fatalf("expected empty page, got %v", page.Items)
	}
	if page.HasNext {
		t.Fatalf("expected HasNext=false past the end")
	}
}

func TestPaginate_Defaults(t *testing.T) {
	items := make([]int, 25)
	page := Paginate(items, 0, 0)

	if page.Page != 1 || page.PageSize != defaultPageSize {
		t.Fatalf("expected page=1 size=%d, got page=%d size=%d", defaultPageSize, page.Page, page.PageSize)
	}
	if len(page.Items) != defaultPageSize {
		t.Fatalf("expected %d items, got %d", defaultPageSize, len(page.Items))
	}
}

func TestNewPage_FromStore(t *testing.T) {
	page := NewPage([]string{"c", "d"}, 2, 2, 5)

	if !page.HasPrev || !page.HasNext {
		t.Fatalf("expected HasPrev and HasNext on a middle page, got %+v", page)
	}

	last := NewPage([]string{"e"}, 3, 2, 5)
	if last.HasNext {
		t.Fatalf("expected HasNext=false on last page")
	}
}

func TestPageBounds_Defaults(t *testing.T) {
	page, size, offset := PageBounds(0, 0)
	if page != 1 || size != defaultPageSize || offset != 0 {
		t.Fatalf("unexpected bounds: page=%d size=%d offset=%d", page, size, offset)
	}

	_, _, offset = PageBounds(3, 10)
	if offset != 20 {
		t.Fatalf("expected offset 20, got %d", offset)
	}
}

func TestPaginate_HugePageDoesNotOverflow(t *testing.T) {
	page := Paginate([]int{1, 2, 3}, math.MaxInt/20+2, 20)

	if len(page.Items) != 0 {
		t.Fatalf("expected empty page, got %v", page.Items)
	}
	if page.HasNext {
		t.Fatalf("expected HasNext=false past the end")
	}
}

func TestPaginate_HugePageSize(t *testing.T) {
	items := make([]int, 5)
	page := Paginate(items, 2, math.MaxInt)

	if page.PageSize != maxPageSize {
		t.Fatalf("expected page size capped at %d, got %d", maxPageSize, page.PageSize)
	}
	if len(page.Items) != 0 {
		t.Fatalf("expected empty second page, got %d items", len(page.Items))
	}
}

func TestPageBounds_OffsetStaysInRange(t *testing.T) {
	page, size, offset := PageBounds(math.MaxInt/20+2, 20)

	if offset < 0 || offset > maxOffset {
		t.Fatalf("offset out of range: %d", offset)
	}
	if offset != (page-1)*size {
		t.Fatalf("offset %d does not match page=%d size=%d", offset, page, size)
	}

	_, size, _ = PageBounds(1, math.MaxInt)
	if size != maxPageSize {
		t.Fatalf("expected size capped at %d, got %d", maxPageSize, size)
	}
}
