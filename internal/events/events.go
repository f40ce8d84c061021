package events

import "github.com/asaskevich/EventBus"

// GlobalBus is the shared event bus for the entire application
var GlobalBus EventBus.Bus

func init() {
	GlobalBus = EventBus.New()
}

// Event types for application-wide coordination
const (
	// Shutdown events
	EventShutdownRequested = "app:shutdown:requested"

	// Index events; handlers receive (share string, records int)
	EventIndexRebuilt = "index:rebuilt"

	// handlers receive (share, path string, size int64, reason string)
	EventFileDeleted = "file:deleted"
	// handlers receive (share, path string)
	EventFileUploaded = "file:uploaded"
)
