package deps

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"trackline/internal/config"
)

// CheckFFmpeg reports whether the configured ffmpeg binary can be executed.
func CheckFFmpeg(cfg *config.Config) Status {
	return CheckBinaries(Requirements(cfg)[:1])[0]
}

// CheckWritableDirs reports every managed directory the current user cannot
// write to. Missing directories are reported too.
func CheckWritableDirs(cfg *config.Config) []Status {
	dirs := append([]string{cfg.Paths.DataDir}, cfg.ManagedDirs()...)
	results := make([]Status, 0, len(dirs))
	for _, dir := range dirs {
		status := Status{Name: "Directory", Command: dir, Description: "Writable storage"}
		info, err := os.Stat(dir)
		switch {
		case err != nil:
			status.Detail = fmt.Sprintf("stat: %v", err)
		case !info.IsDir():
			status.Detail = "not a directory"
		default:
			if err := unix.Access(dir, unix.W_OK|unix.X_OK); err != nil {
				status.Detail = fmt.Sprintf("not writable: %v", err)
			} else {
				status.Available = true
			}
		}
		results = append(results, status)
	}
	return results
}

func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %q: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%q is a directory", path)
	}
	if err := unix.Access(path, unix.X_OK); err != nil {
		return fmt.Errorf("%q is not executable: %w", path, err)
	}
	return nil
}
