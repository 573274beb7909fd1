package versioning

// Build metadata of the omniward binary, embedded through -ldflags at
// build time. Version follows the SemVer guidelines (https://semver.org/)
var (
	Version   string
	Branch    string
	Commit    string
	BuildTime string
)
