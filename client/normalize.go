package client

// Older UI builds shipped enum values the API never adopted. They are
// rewritten to the canonical set before a request leaves the client so
// the server-side validators stay strict.

var taskStatusAliases = map[string]string{
	"review": "in_progress",
}

var priorityAliases = map[string]string{
	"urgent": "high",
}

var projectStatusAliases = map[string]string{
	"on-hold":   "draft",
	"cancelled": "archived",
}

func normalizeTaskStatus(s string) string {
	if canonical, ok := taskStatusAliases[s]; ok {
		return canonical
	}
	return s
}

func normalizePriority(s string) string {
	if canonical, ok := priorityAliases[s]; ok {
		return canonical
	}
	return s
}

func normalizeProjectStatus(s string) string {
	if canonical, ok := projectStatusAliases[s]; ok {
		return canonical
	}
	return s
}
