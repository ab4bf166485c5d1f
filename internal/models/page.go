package models

// Pagination: метаданные постраничной выдачи. Страницы нумеруются с 1.
type Pagination struct {
	CurrentPage   int
	TotalPages    int
	TotalMessages int
}

// NewPagination считает TotalPages = ceil(total/pageSize).
func NewPagination(page, pageSize, total int) Pagination {
	p := Pagination{CurrentPage: page, TotalMessages: total}
	if pageSize > 0 && total > 0 {
		p.TotalPages = (total + pageSize - 1) / pageSize
	}

	return p
}

// Page: одна страница выдачи. Items никогда не nil.
type Page struct {
	Items      []ItemView
	Pagination Pagination
}

// EmptyPage: пустая выдача для страницы page.
func EmptyPage(page int) *Page {
	return &Page{Items: []ItemView{}, Pagination: NewPagination(page, 1, 0)}
}
