package main

import (
	"strings"
)

// sliceFlag is a flag that accepts comma separated values, it can be given multiple times. Empty elements are
// dropped.
type sliceFlag struct {
	Data *[]string
}

func (s sliceFlag) String() string {
	if s.Data == nil {
		return ""
	}
	return strings.Join(*s.Data, ",")
}

func (s sliceFlag) Set(v string) error {
	for _, e := range strings.Split(v, ",") {
		if e = strings.TrimSpace(e); e != "" {
			*s.Data = append(*s.Data, e)
		}
	}
	return nil
}

func (s sliceFlag) Type() string { return "strings" }
