package realtime

// Named realtime streams.
const (
	// StreamNotifications carries in-app notification events for a user.
	StreamNotifications = "notifications"
	// StreamApplications carries status changes for the applications a user
	// submitted, so open application screens refresh without polling.
	StreamApplications = "applications"
)

// KnownStreams lists every stream a client may subscribe to.
func KnownStreams() []string {
	return []string{StreamNotifications, StreamApplications}
}
