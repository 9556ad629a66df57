package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"imgpkg/internal/imagepkg"
	"imgpkg/internal/metadata"
)

type fileView struct {
	Name   string `json:"name" yaml:"name"`
	Digest string `json:"digest" yaml:"digest"`
}

type packageView struct {
	ID        string            `json:"id" yaml:"id"`
	Path      string            `json:"path" yaml:"path"`
	Algorithm string            `json:"algorithm" yaml:"algorithm"`
	Original  string            `json:"original" yaml:"original"`
	Master    bool              `json:"master" yaml:"master"`
	Preview   bool              `json:"preview" yaml:"preview"`
	Thumbnail bool              `json:"thumbnail" yaml:"thumbnail"`
	Status    string            `json:"status,omitempty" yaml:"status,omitempty"`
	Title     string            `json:"title,omitempty" yaml:"title,omitempty"`
	Keywords  []string          `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Changes   []metadata.Change `json:"changes,omitempty" yaml:"changes,omitempty"`
	Files     []fileView        `json:"files" yaml:"files"`
	Events    int               `json:"events" yaml:"events"`
}

func viewOf(p *imagepkg.Package) (packageView, error) {
	view := packageView{
		ID:        p.ID,
		Path:      p.Path,
		Algorithm: p.Ledger().Algorithm().String(),
		Original:  p.Original,
		Master:    p.Master != nil,
		Preview:   p.Preview != nil,
		Thumbnail: p.Thumbnail != nil,
	}
	entries := p.Ledger().Snapshot()
	for _, name := range p.Files() {
		view.Files = append(view.Files, fileView{Name: name, Digest: entries[name]})
	}
	if doc := p.Metadata(); doc != nil {
		view.Status = doc.GetString(metadata.KeyStatus)
		view.Title = doc.GetString("title")
		view.Keywords = doc.Keywords()
		view.Changes = doc.Changes()
	}
	events, err := p.Events()
	if err != nil {
		return view, err
	}
	view.Events = len(events)
	return view, nil
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show PACKAGE",
		Short: "Show a package summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := parseFormat(format)
			if err != nil {
				return err
			}
			return ctx.withPackage(cmd, args[0], readOnly, func(p *imagepkg.Package) error {
				view, err := viewOf(p)
				if err != nil {
					return err
				}
				if done, err := writeStructured(cmd, outFormat, view); done {
					return err
				}
				renderPackageView(cmd, view)
				return nil
			})
		},
	}

	addFormatFlag(cmd, &format)
	return cmd
}

func renderPackageView(cmd *cobra.Command, view packageView) {
	out := cmd.OutOrStdout()
	status := view.Status
	if status == "" {
		status = "(no meta.xml)"
	}
	fmt.Fprintln(out, renderKeyValues([][2]string{
		{"Package", view.ID},
		{"Path", view.Path},
		{"Original", view.Original},
		{"Master", yesNo(view.Master)},
		{"Preview", yesNo(view.Preview)},
		{"Thumbnail", yesNo(view.Thumbnail)},
		{"Status", status},
		{"Title", view.Title},
		{"Keywords", strings.Join(view.Keywords, ", ")},
		{"History events", strconv.Itoa(view.Events)},
	}))

	rows := make([][]string, 0, len(view.Files))
	for _, f := range view.Files {
		rows = append(rows, []string{f.Name, f.Digest})
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTable([]string{"File", view.Algorithm}, rows, []columnAlignment{alignLeft, alignLeft}))

	if len(view.Changes) > 0 {
		rows = rows[:0]
		for _, c := range view.Changes {
			rows = append(rows, []string{c.Date, c.Agent, c.Description})
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable([]string{"Date", "Agent", "Change"}, rows, nil))
	}
}
