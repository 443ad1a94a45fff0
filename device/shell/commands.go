package shell

import "strings"

// Move builds the command renaming from to to.
func Move(from, to string) string {
	return "mv " + Quote(from) + " " + Quote(to)
}

// Remove builds the command deleting a single non-directory entry.
func Remove(path string) string {
	return "rm " + Quote(path)
}

// RemoveDir builds the command deleting a single empty directory.
func RemoveDir(path string) string {
	return "rmdir " + Quote(path)
}

// MakeDir builds the command creating a single directory.
func MakeDir(path string) string {
	return "mkdir " + Quote(path)
}

// IsNotEmpty reports whether rmdir output signals a non-empty directory.
func IsNotEmpty(output string) bool {
	return strings.HasSuffix(strings.TrimSpace(output), "Directory not empty")
}
