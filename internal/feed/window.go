package feed

import (
	"fmt"
	"time"

	"github.com/nhle/labordesk/internal/model"
)

// WindowKind selects a date range preset for the notification list.
type WindowKind string

const (
	WindowAll    WindowKind = "all"
	WindowToday  WindowKind = "today"
	WindowWeek   WindowKind = "week"
	WindowMonth  WindowKind = "month"
	WindowCustom WindowKind = "custom"
)

// DateLayout is the wire format of start_date and end_date.
const DateLayout = "2006-01-02T15:04:05"

// ParseWindowKind validates a user-supplied window name.
func ParseWindowKind(s string) (WindowKind, error) {
	switch k := WindowKind(s); k {
	case WindowAll, WindowToday, WindowWeek, WindowMonth, WindowCustom:
		return k, nil
	case "":
		return WindowAll, nil
	default:
		return "", fmt.Errorf("unknown date filter %q", s)
	}
}

// Window computes the [start_date, end_date) range for kind relative to
// now. Custom windows pass the caller's strings through unchanged. The
// returned filter only carries dates; callers merge role/archived flags.
func Window(kind WindowKind, now time.Time, customStart, customEnd string) (model.ListFilter, error) {
	var f model.ListFilter
	switch kind {
	case WindowAll, "":
	case WindowToday:
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		f.StartDate = start.Format(DateLayout)
		f.EndDate = start.AddDate(0, 0, 1).Format(DateLayout)
	case WindowWeek:
		f.StartDate = now.AddDate(0, 0, -7).Format(DateLayout)
		f.EndDate = now.Format(DateLayout)
	case WindowMonth:
		f.StartDate = now.AddDate(0, 0, -30).Format(DateLayout)
		f.EndDate = now.Format(DateLayout)
	case WindowCustom:
		f.StartDate = customStart
		f.EndDate = customEnd
	default:
		return f, fmt.Errorf("unknown date filter %q", kind)
	}
	return f, nil
}
