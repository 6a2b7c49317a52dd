package text

// Truncate limits s to max bytes, appending an ellipsis marker when cut.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
