package buildconfig

// Build-time variables injected via ldflags:
//
//	-X github.com/hearthline/leadflow/internal/buildconfig.version=1.4.0
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = ""
)

func Version() string {
	return version
}

func Commit() string {
	return commit
}

// UserAgent identifies outbound calls to ad platforms.
func UserAgent() string {
	return "leadflow/" + version
}

// VersionInfo is reported by the health endpoint.
func VersionInfo() map[string]string {
	info := map[string]string{
		"version": version,
		"commit":  commit,
	}
	if buildDate != "" {
		info["build_date"] = buildDate
	}
	return info
}
