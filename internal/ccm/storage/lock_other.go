//go:build !unix

package storage

import "os"

// Locking is best-effort; platforms without flock run unlocked.
func lockFile(*os.File) error { return nil }

func unlockFile(*os.File) error { return nil }
