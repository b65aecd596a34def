package models

// Defaults applied when the list query omits page or limit.
const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// ListQuery selects one page of users, optionally filtered by name.
type ListQuery struct {
	Search string
	Page   int
	Limit  int
}

// Offset is the number of matching records skipped before the page starts.
func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// ListResult is one page of sanitized users with pagination metadata.
type ListResult struct {
	Data       []PublicUser `json:"data"`
	Page       int          `json:"page"`
	Limit      int          `json:"limit"`
	Total      int64        `json:"total"`
	TotalPages int          `json:"totalPages"`
}

// TotalPages returns ceil(total / limit).
func TotalPages(total int64, limit int) int {
	if limit < 1 || total <= 0 {
		return 0
	}
	l := int64(limit)
	return int((total + l - 1) / l)
}
