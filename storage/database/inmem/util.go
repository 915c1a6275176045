package inmemdb

import "github.com/trezcool/mahudhurio/core"

// sortableTime formats UTC times so that they sort lexically.
const sortableTime = "2006-01-02T15:04:05.000000000"

// bounds returns the [start, end) bounds of page in a listing of n items; a nil page spans the whole listing.
func bounds(page *core.Pagination, n int) (int, int) {
	if page == nil {
		return 0, n
	}
	return core.PageBounds(*page, n)
}
