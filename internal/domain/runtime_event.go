package domain

type RuntimeEventType string

const (
	EventRequestScreenshot       RuntimeEventType = "request_screenshot"
	EventScreenshotTriggered     RuntimeEventType = "screenshot_triggered"
	EventScreenshotTaken         RuntimeEventType = "screenshot_taken"
	EventScreenshotFailed        RuntimeEventType = "screenshot_failed"
	EventSceneApplicationChanged RuntimeEventType = "scene_application_changed"
	EventTrackedDeviceActivated  RuntimeEventType = "tracked_device_activated"
	EventDisplaySettingChanged   RuntimeEventType = "display_setting_changed"
	EventDashboardVisibility     RuntimeEventType = "dashboard_visibility"
	EventQuitAcknowledged        RuntimeEventType = "quit_acknowledged"
)

// RuntimeEvent is one entry of the runtime's event stream. Only the fields
// relevant to Type are set.
type RuntimeEvent struct {
	Type        RuntimeEventType
	Handle      Handle
	DeviceIndex uint32
	Visible     bool
}
