package version

import (
	"fmt"
	"runtime"
)

// Version is the SDK release version, embedded in metric batches and the
// X-Tollgate-SDK-Version header.
const Version = "0.3.0"

// RuntimeVersion returns the Go runtime version string.
func RuntimeVersion() string {
	return runtime.Version()
}

// Platform returns the os/arch pair the SDK is running on.
func Platform() string {
	return fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
}
