package persistence

import (
	"strings"
)

// ValidateSortOrder normalizes a sort direction to ASC or DESC, defaulting to DESC
func ValidateSortOrder(orderDir string) string {
	if strings.EqualFold(strings.TrimSpace(orderDir), "ASC") {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField returns sortField when it is whitelisted, else defaultField.
// Sort columns are interpolated into ORDER BY, so only whitelisted names pass.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// OrderSortFields are the orders columns a listing may be sorted by
var OrderSortFields = map[string]bool{
	"updated_at":       true,
	"created_at":       true,
	"external_id":      true,
	"total_value":      true,
	"production_stage": true,
}
