package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/miekg/hostprep/oscmd"
	"github.com/miekg/hostprep/pack"
	"github.com/miekg/hostprep/plan"
	"github.com/miekg/hostprep/proto"
	"github.com/rodaine/table"
	"github.com/urfave/cli/v2"
	"go.science.ru.nl/log"
)

func atMachine(ctx *cli.Context) (string, error) {
	at := ctx.Args().First()
	if at == "" {
		return "", fmt.Errorf("expected @<machine>")
	}
	if !strings.HasPrefix(at, "@") {
		return "", fmt.Errorf("expected @<machine>")
	}
	return at[1:], nil
}

func query(ctx *cli.Context, at, method string, args ...string) (body []byte, err error) {
	if ctx.String("i") != "" {
		return querySSH(ctx, at, "/"+args[0]+"/"+args[1], args[2:]...)
	}

	c := http.Client{Timeout: 5 * time.Second}
	url := "http://" + at + ":" + ctx.String("a") + "/" + strings.Join(args, "/")
	var resp *http.Response
	switch method {
	case "GET":
		resp, err = c.Get(url)
	case "POST":
		resp, err = c.Post(url, "", nil)
	}
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: %s", url, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func main() {
	app := &cli.App{
		Usage: "inspect and control hostprep, and build distribution tarballs",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "i", Usage: "identity file, when given ssh is used instead of http"},
			&cli.StringFlag{Name: "p", Value: "2222", Usage: "ssh port to connect to"},
			&cli.StringFlag{Name: "a", Value: "8000", Usage: "http port to connect to"},
		},
		Commands: []*cli.Command{
			{
				Name:    "plan",
				Aliases: []string{"p"},
				Usage:   "plan <family> <version> [repos], show the steps for a host without touching it",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "yum-server", Value: "localhost", Usage: "address of the local mirror"},
					&cli.StringFlag{Name: "root", Value: plan.DefaultOptions().Root, Usage: "directory holding the staged packages"},
				},
				Action: func(ctx *cli.Context) error {
					family, err := plan.ParseFamily(ctx.Args().Get(0))
					if err != nil {
						return err
					}
					opts := plan.DefaultOptions()
					opts.YumServer = ctx.String("yum-server")
					opts.Root = ctx.String("root")
					p, err := plan.Resolve(plan.HostProfile{Family: family, Version: ctx.Args().Get(1)}, plan.ParseSelection(ctx.Args().Get(2)), opts)
					if err != nil {
						return err
					}
					planTable(p).Print()
					return nil
				},
			},
			{
				Name:    "list",
				Aliases: []string{"ls", "l"},
				Usage:   "list hosts or a single host",
				Subcommands: []*cli.Command{
					{
						Name:  "hosts",
						Usage: "list hosts @machine",
						Action: func(ctx *cli.Context) error {
							at, err := atMachine(ctx)
							if err != nil {
								return err
							}
							body, err := query(ctx, at, "GET", "list", "hosts")
							if err != nil {
								return err
							}
							lh := proto.ListHosts{}
							if err := json.Unmarshal(body, &lh); err != nil {
								return err
							}
							tbl := table.New("#", "MACHINE", "ACTUAL", "FAMILY", "VERSION", "REPOS", "STATE", "INFO", "SINCE")
							for i, h := range lh.ListHosts {
								tbl.AddRow(i, h.Machine, h.Actual, h.Family, h.Version, h.Repos, h.State, h.StateInfo, timeIsZero(h.StateChange))
							}
							tbl.Print()
							return nil
						},
					},
					{
						Name:    "host",
						Aliases: []string{"h"},
						Usage:   "list host @machine <machine>",
						Action: func(ctx *cli.Context) error {
							at, err := atMachine(ctx)
							if err != nil {
								return err
							}
							machine := ctx.Args().Get(1)
							if machine == "" {
								return fmt.Errorf("need machine")
							}
							body, err := query(ctx, at, "GET", "list", "host", machine)
							if err != nil {
								return err
							}
							h := proto.ListHost{}
							if err := json.Unmarshal(body, &h); err != nil {
								return err
							}
							tbl := table.New("MACHINE", "FAMILY", "VERSION", "REPOS", "STATE", "INFO", "SINCE")
							tbl.AddRow(h.Machine, h.Family, h.Version, h.Repos, h.State, h.StateInfo, timeIsZero(h.StateChange))
							tbl.Print()
							fmt.Println()
							stepTable(h.Steps).Print()
							return nil
						},
					},
				},
			},
			{
				Name:    "apply",
				Aliases: []string{"a"},
				Usage:   "apply @machine <machine>, apply the plan again",
				Action: func(ctx *cli.Context) error {
					at, err := atMachine(ctx)
					if err != nil {
						return err
					}
					machine := ctx.Args().Get(1)
					if machine == "" {
						return fmt.Errorf("need machine")
					}
					_, err = query(ctx, at, "POST", "state", "apply", machine)
					return err
				},
			},
			{
				Name:    "build",
				Aliases: []string{"b"},
				Usage:   "build the distribution tarball",
				Flags:   bundleFlags(),
				Action: func(ctx *cli.Context) error {
					out, err := pack.Build(ctx.Context, bundle(ctx))
					if err != nil {
						return err
					}
					fmt.Println(out)
					return nil
				},
				Subcommands: []*cli.Command{
					{
						Name:  "offline",
						Usage: "build the offline installer",
						Flags: append(bundleFlags(),
							&cli.StringFlag{Name: "installer", Value: "scripts/mkinstaller.sh", Usage: "script creating the self-extracting binary"},
							&cli.StringFlag{Name: "title", Value: "scripts/settitle.sh", Usage: "script embedding the title"},
							&cli.StringFlag{Name: "build", Value: "scripts/mkoffline.sh", Usage: "script creating the final installer"},
							&cli.StringFlag{Name: "product", Value: "All-in-One", Usage: "product title"},
						),
						Action: func(ctx *cli.Context) error {
							o := &pack.Offline{
								InstallerScript: ctx.String("installer"),
								TitleScript:     ctx.String("title"),
								BuildScript:     ctx.String("build"),
								Title:           ctx.String("product"),
								Runner:          &oscmd.Exec{},
							}
							out, err := o.Build(ctx.Context, bundle(ctx))
							if err != nil {
								return err
							}
							fmt.Println(out)
							return nil
						},
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func bundleFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "name", Value: "hostprep", Usage: "base name of the produced files"},
		&cli.StringFlag{Name: "version", Value: "0.0.1", Usage: "version written to the VERSION file"},
		&cli.StringFlag{Name: "out", Value: ".", Usage: "output directory"},
		&cli.StringFlag{Name: "webapp", Usage: "web application archive"},
		&cli.StringFlag{Name: "appserver", Usage: "application server package"},
		&cli.StringFlag{Name: "tsdb", Usage: "time series database package"},
		&cli.StringFlag{Name: "tsdb-dep", Usage: "storage engine package the time series database needs"},
	}
}

func bundle(ctx *cli.Context) pack.Bundle {
	return pack.Bundle{
		Name:      ctx.String("name"),
		Version:   ctx.String("version"),
		OutDir:    ctx.String("out"),
		WebApp:    ctx.String("webapp"),
		AppServer: ctx.String("appserver"),
		TSDB:      ctx.String("tsdb"),
		TSDBDep:   ctx.String("tsdb-dep"),
	}
}

func planTable(p *plan.Plan) table.Table {
	tbl := table.New("#", "KIND", "STEP")
	for i, s := range p.Steps {
		tbl.AddRow(i, s.Kind(), s.String())
	}
	return tbl
}

func stepTable(steps []proto.ListStep) table.Table {
	tbl := table.New("#", "KIND", "STEP", "CHANGED", "DURATION", "ERROR")
	for i, s := range steps {
		changed := fmt.Sprintf("%t", s.Changed)
		if s.Skipped {
			changed = "skipped"
		}
		tbl.AddRow(i, s.Kind, s.Step, changed, s.Duration, s.Error)
	}
	return tbl
}

// If the string s is a IsZero() time, we return N/A as we don't know when the last state change was.
func timeIsZero(s string) string {
	t, err := time.Parse(time.RFC1123, s)
	if err != nil {
		return "N/A"
	}
	if t.IsZero() {
		return "N/A"
	}
	return s
}
