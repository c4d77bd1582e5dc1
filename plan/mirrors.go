package plan

import (
	"fmt"
	"path"
	"strings"
)

// Repo is a single section in a yum .repo file.
type Repo struct {
	ID       string
	Name     string
	BaseURL  string
	Enabled  bool
	GPGCheck bool
}

// mirror is a predefined set of repositories that is written to a single file.
type mirror struct {
	name  string
	file  string
	repos []Repo
}

// In BaseURL {server} is replaced by the mirror server address and {release} by centos6 or centos7.
var mirrors = []mirror{
	{
		name: "local",
		file: "hostprep-local.repo",
		repos: []Repo{
			{ID: "hostprep-local", Name: "hostprep local yum repo", BaseURL: "http://{server}/static/{release}_repo/"},
		},
	},
	{
		name: "aliyun",
		file: "hostprep-aliyun-yum.repo",
		repos: []Repo{
			{ID: "alibase", Name: "CentOS-$releasever - Base - mirrors.aliyun.com", BaseURL: "http://mirrors.aliyun.com/centos/$releasever/os/$basearch/"},
			{ID: "aliupdates", Name: "CentOS-$releasever - Updates - mirrors.aliyun.com", BaseURL: "http://mirrors.aliyun.com/centos/$releasever/updates/$basearch/"},
			{ID: "aliextras", Name: "CentOS-$releasever - Extras - mirrors.aliyun.com", BaseURL: "http://mirrors.aliyun.com/centos/$releasever/extras/$basearch/"},
			{ID: "aliepel", Name: "Extra Packages for Enterprise Linux $releasever - $basearch - mirrors.aliyun.com", BaseURL: "http://mirrors.aliyun.com/epel/$releasever/$basearch"},
		},
	},
	{
		name: "163",
		file: "hostprep-163-yum.repo",
		repos: []Repo{
			{ID: "163base", Name: "CentOS-$releasever - Base - mirrors.163.com", BaseURL: "http://mirrors.163.com/centos/$releasever/os/$basearch/"},
			{ID: "163updates", Name: "CentOS-$releasever - Updates - mirrors.163.com", BaseURL: "http://mirrors.163.com/centos/$releasever/updates/$basearch/"},
			{ID: "163extras", Name: "CentOS-$releasever - Extras - mirrors.163.com", BaseURL: "http://mirrors.163.com/centos/$releasever/extras/$basearch/"},
			{ID: "ustcepel", Name: "Extra Packages for Enterprise Linux $releasever - $basearch - ustc", BaseURL: "http://centos.ustc.edu.cn/epel/$releasever/$basearch"},
		},
	},
}

// Mirrors returns the names of all known mirrors.
func Mirrors() []string {
	names := make([]string, len(mirrors))
	for i := range mirrors {
		names[i] = mirrors[i].name
	}
	return names
}

// lookup finds the mirror for token, which is either a mirror name or the ID of one of its repositories. The
// returned IDs are the repositories token selects.
func lookup(token string) (*mirror, []string, error) {
	for i := range mirrors {
		m := &mirrors[i]
		if m.name == token {
			ids := make([]string, len(m.repos))
			for j := range m.repos {
				ids[j] = m.repos[j].ID
			}
			return m, ids, nil
		}
		for _, r := range m.repos {
			if r.ID == token {
				return m, []string{r.ID}, nil
			}
		}
	}
	return nil, nil, fmt.Errorf("%w: %q, known mirrors are %s", ErrUnknownMirror, token, strings.Join(Mirrors(), ", "))
}

// render returns the repo file step for m with the placeholders filled in.
func (m *mirror) render(server, release string) *WriteRepoFile {
	r := strings.NewReplacer("{server}", server, "{release}", release)
	w := &WriteRepoFile{Path: path.Join(RepoDir, m.file), Repos: make([]Repo, len(m.repos))}
	for i, repo := range m.repos {
		repo.BaseURL = r.Replace(repo.BaseURL)
		w.Repos[i] = repo
	}
	return w
}

func (m *mirror) templated() bool {
	for _, r := range m.repos {
		if strings.Contains(r.BaseURL, "{") {
			return true
		}
	}
	return false
}
