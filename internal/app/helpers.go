package app

import (
	"github.com/nhle/labordesk/internal/feed"
	"github.com/nhle/labordesk/internal/ui/feedlist"
)

// windowCycle is the order tab steps through the date presets.
var windowCycle = []feed.WindowKind{
	feed.WindowAll,
	feed.WindowToday,
	feed.WindowWeek,
	feed.WindowMonth,
}

// nextWindow returns the preset after cur. A custom window cycles back to
// all.
func nextWindow(cur feed.WindowKind) feed.WindowKind {
	for i, k := range windowCycle {
		if k == cur {
			return windowCycle[(i+1)%len(windowCycle)]
		}
	}
	return feed.WindowAll
}

func actionSuccess(a feedlist.Action) string {
	switch a {
	case feedlist.ActionArchive:
		return "Notification archived"
	case feedlist.ActionDelete:
		return "Notification deleted"
	case feedlist.ActionConfirm:
		return "Action confirmed"
	case feedlist.ActionReject:
		return "Action rejected"
	}
	return "Done"
}

func actionFailure(a feedlist.Action) string {
	switch a {
	case feedlist.ActionArchive:
		return "Could not archive"
	case feedlist.ActionDelete:
		return "Could not delete"
	case feedlist.ActionConfirm, feedlist.ActionReject:
		return "Could not update action"
	}
	return "Request failed"
}
