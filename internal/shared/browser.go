package shared

import (
	"fmt"
	"os/exec"
	"runtime"
)

var goos = func() string { return runtime.GOOS }

// OpenBrowser launches the default browser at url. The auth flow uses it to
// hand off to Spotify's consent page; callers should print the URL as a
// fallback since headless environments have nothing to launch.
func OpenBrowser(url string) error {
	name, args := launcher(goos(), url)
	if name == "" {
		return fmt.Errorf("unsupported platform: %s", goos())
	}

	if err := exec.Command(name, args...).Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}

	return nil
}

func launcher(os, url string) (string, []string) {
	switch os {
	case "darwin":
		return "open", []string{url}
	case "linux":
		return "xdg-open", []string{url}
	case "windows":
		return "cmd", []string{"/c", "start", url}
	}
	return "", nil
}
