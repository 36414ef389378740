package bot

// PageSize is how many rows a list command shows per page.
const PageSize = 10

// page bounds a 1-based page number against a total row count. It
// returns the slice bounds, the resolved page, and the page count.
// A page past the end reports ok=false; an empty list resolves to a
// single empty page.
func page(total, requested int) (start, end, resolved, pages int, ok bool) {
	pages = (total + PageSize - 1) / PageSize
	if pages == 0 {
		pages = 1
	}

	if requested < 1 {
		requested = 1
	}
	if requested > pages {
		return 0, 0, requested, pages, false
	}

	start = (requested - 1) * PageSize
	end = start + PageSize
	if end > total {
		end = total
	}
	return start, end, requested, pages, true
}
