package shared

// CursorPage contains metadata for cursor-based listings.
type CursorPage struct {
	NextCursor int64 `json:"nextCursor"`
	HasMore    bool  `json:"hasMore"`
	Limit      int   `json:"limit"`
}

// NewCursorPage computes cursor metadata for a fetched slice. lastID is
// the id of the final row returned; fetched is the row count before
// trimming to the limit.
func NewCursorPage(lastID int64, fetched, limit int) CursorPage {
	if limit <= 0 {
		limit = 20
	}
	page := CursorPage{Limit: limit}
	if fetched > limit {
		page.HasMore = true
		page.NextCursor = lastID
	}
	return page
}
