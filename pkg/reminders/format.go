package reminders

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/smith3v/taskmood-bot/pkg/db"
)

const (
	dateLayout          = "02.01.2006 15:04"
	contentLimit        = 50
	digestContentLimit  = 30
	digestHighListed    = 5
	digestMediumListed  = 3
	defaultPriorityIcon = "🟡"
)

var priorityIcons = map[string]string{
	db.PriorityHigh:   "🔴",
	db.PriorityMedium: "🟡",
	db.PriorityLow:    "🟢",
}

func priorityIcon(priority string) string {
	if icon, ok := priorityIcons[priority]; ok {
		return icon
	}
	return defaultPriorityIcon
}

// truncate shortens s to limit runes, marking the cut with an ellipsis, and
// escapes the result for HTML parse mode.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) > limit {
		s = string(runes[:limit]) + "..."
	}
	return html.EscapeString(s)
}

// FormatDeadline renders a deadline reminder. The urgency band depends on
// the time left until dueAt.
func FormatDeadline(taskID uint, content string, dueAt time.Time, priority string, now time.Time, loc *time.Location) string {
	left := dueAt.Sub(now)
	if left < 0 {
		left = 0
	}

	var urgency, timeText string
	switch {
	case left <= time.Hour:
		urgency = "🔴 URGENT!"
		timeText = fmt.Sprintf("⏰ <b>Time left: %d minutes</b>", int(left/time.Minute))
	case left <= 2*time.Hour:
		urgency = "🟠 Heads up!"
		timeText = fmt.Sprintf("⏰ <b>Time left: %d h %d min</b>", int(left/time.Hour), int(left%time.Hour/time.Minute))
	default:
		urgency = "🟡 Reminder"
		timeText = fmt.Sprintf("⏰ <b>Time left: %d hours</b>", int(left/time.Hour))
	}

	var b strings.Builder
	b.WriteString(urgency + "\n\n")
	fmt.Fprintf(&b, "%s <b>Task:</b> %s\n", priorityIcon(priority), truncate(content, contentLimit))
	fmt.Fprintf(&b, "📅 <b>Due:</b> %s\n", dueAt.In(loc).Format(dateLayout))
	b.WriteString(timeText + "\n\n")
	fmt.Fprintf(&b, "<i>Task ID: %d</i>", taskID)
	return b.String()
}

// FormatOverdue renders the one-time notice sent when a task first becomes
// overdue.
func FormatOverdue(taskID uint, content string, dueAt time.Time, priority string, now time.Time, loc *time.Location) string {
	overdue := now.Sub(dueAt)
	if overdue < 0 {
		overdue = 0
	}
	days := int(overdue / (24 * time.Hour))

	var overdueText string
	switch {
	case days == 1:
		overdueText = "📅 <b>Overdue by: 1 day</b>"
	case days > 1:
		overdueText = fmt.Sprintf("📅 <b>Overdue by: %d days</b>", days)
	default:
		overdueText = fmt.Sprintf("📅 <b>Overdue by: %d hours</b>", int(overdue/time.Hour))
	}

	var b strings.Builder
	b.WriteString("🔴 <b>TASK OVERDUE! New overdue task!</b>\n\n")
	fmt.Fprintf(&b, "%s <b>Task:</b> %s\n", priorityIcon(priority), truncate(content, contentLimit))
	fmt.Fprintf(&b, "⏰ <b>Was due:</b> %s\n", dueAt.In(loc).Format(dateLayout))
	b.WriteString(overdueText + "\n\n")
	b.WriteString("🚨 This task has just become overdue\n")
	fmt.Fprintf(&b, "<i>Task ID: %d</i>", taskID)
	return b.String()
}

// FormatReminder renders a due reminder according to its type.
func FormatReminder(rem db.DueReminder, now time.Time, loc *time.Location) (string, error) {
	if rem.TaskDueAt == nil {
		return "", fmt.Errorf("task %d has no due date", rem.TaskID)
	}
	switch rem.Type {
	case db.ReminderTypeDeadline:
		return FormatDeadline(rem.TaskID, rem.TaskContent, *rem.TaskDueAt, rem.TaskPriority, now, loc), nil
	case db.ReminderTypeOverdueImmediate:
		return FormatOverdue(rem.TaskID, rem.TaskContent, *rem.TaskDueAt, rem.TaskPriority, now, loc), nil
	default:
		return "", fmt.Errorf("unknown reminder type %q", rem.Type)
	}
}

// FormatDigest renders the daily overview of a user's overdue tasks. High
// and medium tasks are listed up to a limit, low ones only counted.
func FormatDigest(tasks []db.DigestTask, now time.Time) string {
	var high, medium, low []db.DigestTask
	for _, task := range tasks {
		switch task.Priority {
		case db.PriorityHigh:
			high = append(high, task)
		case db.PriorityLow:
			low = append(low, task)
		default:
			medium = append(medium, task)
		}
	}

	var b strings.Builder
	b.WriteString("🌅 <b>DAILY OVERDUE TASKS DIGEST</b>\n\n")
	fmt.Fprintf(&b, "📊 Total overdue tasks: <b>%d</b>\n\n", len(tasks))

	writeSection := func(icon, title string, section []db.DigestTask, listed int) {
		if len(section) == 0 {
			return
		}
		fmt.Fprintf(&b, "%s <b>%s (%d)</b>\n", icon, title, len(section))
		for i, task := range section {
			if i == listed {
				fmt.Fprintf(&b, "• ... and %d more tasks\n", len(section)-listed)
				break
			}
			fmt.Fprintf(&b, "• #%d %s (%d d.)\n", task.TaskID, truncate(task.Content, digestContentLimit), daysOverdue(task.DueAt, now))
		}
		b.WriteString("\n")
	}
	writeSection("🔴", "HIGH PRIORITY", high, digestHighListed)
	writeSection("🟡", "MEDIUM PRIORITY", medium, digestMediumListed)
	if len(low) > 0 {
		fmt.Fprintf(&b, "🟢 <b>LOW PRIORITY (%d)</b>\n", len(low))
		fmt.Fprintf(&b, "• Total tasks: %d\n\n", len(low))
	}

	b.WriteString("💡 <i>Completed tasks drop out of this digest</i>\n")
	b.WriteString("⏰ <i>This notification is sent once a day</i>")
	return b.String()
}

// daysOverdue counts whole days past dueAt, at least one.
func daysOverdue(dueAt, now time.Time) int {
	days := int(now.Sub(dueAt) / (24 * time.Hour))
	if days < 1 {
		return 1
	}
	return days
}
