package osutil

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNames(t *testing.T) {
	for _, test := range []struct {
		in  string
		out []string
	}{
		{"", nil},
		{"db1", []string{"db1"}},
		{"db1.example.net", []string{"db1.example.net", "db1"}},
		{".example.net", []string{".example.net"}},
	} {
		if diff := cmp.Diff(names(test.in), test.out); diff != "" {
			t.Errorf("names(%q): diff:\n%s", test.in, diff)
		}
	}
}
