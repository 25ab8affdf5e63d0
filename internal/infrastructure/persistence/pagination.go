package persistence

const (
	defaultPageSize = 50
	maxPageSize     = 500
	// lookupChunk caps IN (...) lists below driver parameter limits
	lookupChunk = 500
	// insertBatch is the row count per multi-row INSERT
	insertBatch = 200
)

// pageBounds normalizes page/size and returns offset and limit
func pageBounds(page, pageSize int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	return (page - 1) * pageSize, pageSize
}

// chunk splits values into slices of at most size elements
func chunk[T any](values []T, size int) [][]T {
	var out [][]T
	for size < len(values) {
		values, out = values[size:], append(out, values[:size])
	}
	if len(values) > 0 {
		out = append(out, values)
	}
	return out
}
