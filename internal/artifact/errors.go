package artifact

import (
	"fmt"
	"strings"
)

// ExecutableNotFoundError is returned when the artifact is absent and
// cannot be built.
type ExecutableNotFoundError struct {
	Path      string
	Kind      Kind
	AutoBuild bool
}

func (e *ExecutableNotFoundError) Error() string {
	switch {
	case e.Kind != Binary:
		return fmt.Sprintf("%s not found at %s (scripts are not built)", e.Kind, e.Path)
	case !e.AutoBuild:
		return fmt.Sprintf("extractor not found at %s and auto-build is disabled", e.Path)
	}
	return fmt.Sprintf("extractor not found at %s", e.Path)
}

// BuildError is returned when the build command fails to run or exits
// non-zero. Stderr holds the captured build output.
type BuildError struct {
	Command  []string
	ExitCode int
	Stderr   string
	Err      error  // launch or cancellation error, if any
	Hint     string // install instructions when the build tool is missing
}

func (e *BuildError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "build %q failed", strings.Join(e.Command, " "))
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	} else {
		fmt.Fprintf(&b, " with exit code %d", e.ExitCode)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		fmt.Fprintf(&b, "\n%s", s)
	}
	if e.Hint != "" {
		fmt.Fprintf(&b, "\nHint: %s", e.Hint)
	}
	return b.String()
}

func (e *BuildError) Unwrap() error { return e.Err }

// BuildVerificationError is returned when the build reported success but
// nothing was produced at the expected path.
type BuildVerificationError struct {
	Path    string
	Command []string
}

func (e *BuildVerificationError) Error() string {
	return fmt.Sprintf("build %q succeeded but %s does not exist", strings.Join(e.Command, " "), e.Path)
}
