package plan

import (
	"strings"
)

// Selection is the operator's choice of package repositories. The zero value selects the system's default
// repositories, otherwise only the listed mirror identifiers are used.
type Selection struct {
	Mirrors []string
}

// ParseSelection parses the yum_repos flag: "" and "false" select the system default, anything else is a comma
// separated list of mirror identifiers. Blank and duplicate entries are dropped.
func ParseSelection(flag string) Selection {
	flag = strings.TrimSpace(flag)
	if flag == "" || strings.EqualFold(flag, "false") {
		return Selection{}
	}
	sel := Selection{}
	seen := map[string]bool{}
	for _, m := range strings.Split(flag, ",") {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		sel.Mirrors = append(sel.Mirrors, m)
	}
	return sel
}

// Default returns true when the system default repositories are selected.
func (s Selection) Default() bool { return len(s.Mirrors) == 0 }

func (s Selection) String() string {
	if s.Default() {
		return "false"
	}
	return strings.Join(s.Mirrors, ",")
}
