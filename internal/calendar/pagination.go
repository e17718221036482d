package calendar

import "math"

const (
	defaultPageSize = 20
	maxPageSize     = 1000
	// maxOffset держит смещение в пределах int32, чтобы его принял любой драйвер БД.
	maxOffset = math.MaxInt32
)

// Page описывает одну страницу элементов
type Page[T any] struct {
	Items    []T  `json:"items"`     // элементы на текущей странице
	Page     int  `json:"page"`      // номер страницы (с 1)
	PageSize int  `json:"page_size"` // количество элементов на странице
	HasNext  bool `json:"has_next"`
	HasPrev  bool `json:"has_prev"`
	Total    int  `json:"total"` // общее количество элементов
}

// Paginate возвращает срез items для указанной страницы и метаданные.
// page нумеруется с 1. При некорректных значениях используются дефолты.
func Paginate[T any](items []T, page, pageSize int) Page[T] {
	total := len(items)
	page, pageSize, offset := PageBounds(page, pageSize)

	start := min(offset, total)
	end := min(start+pageSize, total)

	return Page[T]{
		Items:    items[start:end],
		Page:     page,
		PageSize: pageSize,
		HasNext:  end < total,
		HasPrev:  page > 1,
		Total:    total,
	}
}

// PageBounds нормализует page и pageSize и возвращает смещение страницы.
// pageSize ограничен сверху, номер страницы прижимается так, чтобы смещение
// не выходило за maxOffset.
func PageBounds(page, pageSize int) (int, int, int) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	pageSize = min(pageSize, maxPageSize)
	if page <= 0 {
		page = 1
	}
	if page-1 > maxOffset/pageSize {
		page = maxOffset/pageSize + 1
	}
	return page, pageSize, (page - 1) * pageSize
}

// NewPage оборачивает страницу, уже вырезанную хранилищем.
func NewPage[T any](items []T, page, pageSize, total int) Page[T] {
	page, pageSize, offset := PageBounds(page, pageSize)
	return Page[T]{
		Items:    items,
		Page:     page,
		PageSize: pageSize,
		HasNext:  offset+len(items) < total,
		HasPrev:  page > 1,
		Total:    total,
	}
}
