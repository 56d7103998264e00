package escalator

import "fmt"

// localizedContent returns the title/body pair for a notification
// level, translated to the original's Japanese-first
// _create_japanese_error_insights-style per-level copy but kept
// English here to match this repo's single-locale UI. taskTitle may be
// empty if the task couldn't be loaded.
func localizedContent(level Level, taskTitle string) (title, body string) {
	task := taskTitle
	if task == "" {
		task = "your current task"
	}
	switch level {
	case LevelLight:
		return "Checkout coming up", fmt.Sprintf("Your planned checkout for %q is in a few minutes.", task)
	case LevelStrong:
		return "Time to check out", fmt.Sprintf("Your planned checkout time for %q has arrived.", task)
	case LevelOverdue:
		return "Overdue checkout", fmt.Sprintf("You're well past your planned checkout for %q. We've flagged the session as unresponsive.", task)
	default:
		return "Session update", fmt.Sprintf("There's an update on %q.", task)
	}
}
