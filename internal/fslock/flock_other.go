//go:build !unix

package fslock

import "os"

// Platforms without flock get no cross-process exclusion.
func lockFile(*os.File) error   { return nil }
func unlockFile(*os.File) error { return nil }
