package observability

// Set via -ldflags "-X vr-screenshotter/internal/infrastructure/observability.Version=..."
var (
	Version = "dev"
	Commit  = "none"
	Date    = "" // ISO8601 UTC build time
)

// BuildInfo is reported by /api/version.
func BuildInfo() map[string]string {
	return map[string]string{"version": Version, "commit": Commit, "date": Date}
}
