package config

import "runtime"

// Platform selects the default path set and the artifact naming convention.
type Platform string

const (
	Windows Platform = "windows"
	POSIX   Platform = "posix"
)

// DetectPlatform maps a GOOS value to a Platform.
func DetectPlatform(goos string) Platform {
	if goos == "windows" {
		return Windows
	}
	return POSIX
}

// CurrentPlatform returns the platform of the running process.
func CurrentPlatform() Platform {
	return DetectPlatform(runtime.GOOS)
}

// PathDefaults holds the default database and output paths for a platform.
type PathDefaults struct {
	Database string
	OutDir   string
}

// pathDefaults returns the built-in path set. Both fields always come from
// the same platform.
func pathDefaults(p Platform) PathDefaults {
	if p == Windows {
		return PathDefaults{
			Database: `D:\firebird\database.fdb`,
			OutDir:   `D:\firebird\output`,
		}
	}
	return PathDefaults{
		Database: "/path/to/database.fdb",
		OutDir:   "/data/output",
	}
}
