package plan

import (
	"fmt"
	"strings"
)

// Family is the OS family of a host. It decides which package manager is used.
type Family string

const (
	RedHat Family = "RedHat"
	Debian Family = "Debian"
)

// families maps os-release IDs (and the family names themselves) to a family.
var families = map[string]Family{
	"redhat":    RedHat,
	"rhel":      RedHat,
	"centos":    RedHat,
	"fedora":    RedHat,
	"rocky":     RedHat,
	"almalinux": RedHat,
	"ol":        RedHat,
	"amzn":      RedHat,
	"debian":    Debian,
	"ubuntu":    Debian,
	"linuxmint": Debian,
	"raspbian":  Debian,
}

// ParseFamily returns the family for s, which is either a family name or an os-release ID.
func ParseFamily(s string) (Family, error) {
	if f, ok := families[strings.ToLower(strings.TrimSpace(s))]; ok {
		return f, nil
	}
	return "", fmt.Errorf("%w: os family %q", ErrUnsupported, s)
}

// FamilyFromRelease returns the family for the os-release ID, falling back to the entries in ID_LIKE.
func FamilyFromRelease(id, idLike string) (Family, error) {
	if f, err := ParseFamily(id); err == nil {
		return f, nil
	}
	for _, like := range strings.Fields(idLike) {
		if f, err := ParseFamily(like); err == nil {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: os-release ID %q (like %q)", ErrUnsupported, id, idLike)
}
