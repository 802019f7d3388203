//go:build !unix

package session

// lockFile is a no-op where flock is unavailable; the store falls back to
// last-writer-wins.
func lockFile(string) (func(), error) {
	return func() {}, nil
}
