package db

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is a normalized pagination request.
type Page struct {
	Number int
	Size   int
}

// NewPage clamps raw query values into a usable range.
func NewPage(number, size int) Page {
	if number < 1 {
		number = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Page{Number: number, Size: size}
}

func (p Page) Skip() int64 {
	return int64((p.Number - 1) * p.Size)
}

func (p Page) Limit() int64 {
	return int64(p.Size)
}

// TotalPages reports how many pages a result set of total documents spans.
func (p Page) TotalPages(total int64) int64 {
	if total == 0 {
		return 0
	}
	pages := total / int64(p.Size)
	if total%int64(p.Size) != 0 {
		pages++
	}
	return pages
}
