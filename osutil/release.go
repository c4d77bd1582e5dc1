package osutil

import (
	"bytes"
	"os"
)

var (
	// this is a variable so it can be overridden during unit-testing.
	osRelease = "/etc/os-release"
)

// ID returns the ID of the system as specific in the osRelease file.
func ID() string { return field("ID") }

// IDLike returns the ID_LIKE of the system, this is a space separated list of distributions this one derives from.
func IDLike() string { return field("ID_LIKE") }

// VersionID returns the VERSION_ID of the system, i.e. "7" or "20.04".
func VersionID() string { return field("VERSION_ID") }

// field returns the value of key in the osRelease file, or the empty string.
func field(key string) string {
	buf, err := os.ReadFile(osRelease)
	if err != nil {
		return ""
	}
	buf = append([]byte{'\n'}, buf...) // want ^KEY=
	prefix := []byte("\n" + key + "=")
	i := bytes.Index(buf, prefix)
	if i < 0 {
		return ""
	}
	val := buf[i+len(prefix):]
	if j := bytes.IndexByte(val, '\n'); j >= 0 {
		val = val[:j]
	}
	// Some attributes are quoted, some are not. Cover both.
	val = bytes.ReplaceAll(val, []byte("\""), []byte{})
	val = bytes.ReplaceAll(val, []byte("'"), []byte{})
	return string(bytes.TrimSpace(val))
}
