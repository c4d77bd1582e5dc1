// Package proto holds the structures that return the json to the client.
package proto

type (
	ListHosts struct {
		ListHosts []ListHost
	}

	ListHost struct {
		Machine     string
		Actual      string // Hostname of the machine that answered.
		Family      string
		Version     string
		Repos       string
		State       string
		StateInfo   string
		StateChange string
		Steps       []ListStep `json:",omitempty"`
	}

	ListStep struct {
		Kind     string
		Step     string
		Changed  bool
		Skipped  bool
		Duration string
		Error    string
	}
)
