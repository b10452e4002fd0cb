package watch

import (
	"log/slog"
	"time"
)

// eventSource abstracts where raw change events come from: native OS
// notifications (notifySource) or snapshot-diff polling (pollSource).
// Both variants honor the same channel semantics: Events delivers one
// Change per raw filesystem mutation, Errors delivers source failures,
// and Close releases OS resources and closes both channels.
//
// The variant set is closed; selection happens once, at construction.
type eventSource interface {
	Events() <-chan Change
	Errors() <-chan error
	Close() error
}

// openSource selects and opens the event source for the given roots.
// ForcePolling skips the native backend entirely; otherwise polling is
// the automatic fallback when the native subscription cannot be
// established (e.g. network filesystems without inotify support).
func openSource(paths []string, forcePolling bool, pollDelay time.Duration, logger *slog.Logger) (eventSource, error) {
	if forcePolling {
		return newPollSource(paths, pollDelay, logger)
	}

	src, err := newNotifySource(paths, logger)
	if err == nil {
		return src, nil
	}

	logger.Warn("native file notifications unavailable, falling back to polling",
		slog.String("error", err.Error()),
		slog.Duration("pollDelay", pollDelay),
	)

	return newPollSource(paths, pollDelay, logger)
}
