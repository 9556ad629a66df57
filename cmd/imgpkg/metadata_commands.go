package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"imgpkg/internal/imagepkg"
	"imgpkg/internal/metadata"
)

func newMetadataCommand(ctx *commandContext) *cobra.Command {
	metaCmd := &cobra.Command{
		Use:     "metadata",
		Aliases: []string{"meta"},
		Short:   "Read and edit meta.xml",
	}
	metaCmd.AddCommand(newMetadataGetCommand(ctx))
	metaCmd.AddCommand(newMetadataSetCommand(ctx))
	metaCmd.AddCommand(newMetadataKeywordCommand(ctx))
	metaCmd.AddCommand(newMetadataReimportCommand(ctx))
	return metaCmd
}

func parseSection(value string) (metadata.Provenance, error) {
	switch p := metadata.Provenance(strings.ToLower(strings.TrimSpace(value))); p {
	case "", metadata.Curated:
		return metadata.Curated, nil
	case metadata.Original:
		return p, nil
	default:
		return "", fmt.Errorf("unknown section %q (use %s or %s)", value, metadata.Original, metadata.Curated)
	}
}

func newMetadataGetCommand(ctx *commandContext) *cobra.Command {
	var (
		section string
		format  string
	)

	cmd := &cobra.Command{
		Use:   "get PACKAGE KEY",
		Short: "Print the value stored at a slash-separated key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			prov, err := parseSection(section)
			if err != nil {
				return err
			}
			outFormat, err := parseFormat(format)
			if err != nil {
				return err
			}
			return ctx.withPackage(cmd, args[0], readOnly, func(p *imagepkg.Package) error {
				doc := p.Metadata()
				if doc == nil {
					return imagepkg.ErrNoMetadata
				}
				node, err := doc.GetFrom(prov, args[1])
				if err != nil {
					return err
				}
				if done, err := writeStructured(cmd, outFormat, metadata.Plain(node)); done {
					return err
				}
				return printNode(cmd, node)
			})
		},
	}

	cmd.Flags().StringVar(&section, "section", string(metadata.Curated), "Section to read: original or isaw")
	addFormatFlag(cmd, &format)
	return cmd
}

func printNode(cmd *cobra.Command, node metadata.Node) error {
	out := cmd.OutOrStdout()
	switch n := node.(type) {
	case metadata.Leaf:
		fmt.Fprintln(out, string(n))
	case metadata.List:
		for _, item := range n {
			fmt.Fprintln(out, metadata.Text(item))
		}
	default:
		return writeYAML(cmd, metadata.Plain(node))
	}
	return nil
}

func newMetadataSetCommand(ctx *commandContext) *cobra.Command {
	var section string

	cmd := &cobra.Command{
		Use:   "set PACKAGE KEY [VALUE]",
		Short: "Set or, with no value, remove a metadata key",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := ""
			if len(args) == 3 {
				value = args[2]
			}
			var opts []metadata.SetOption
			if cmd.Flags().Changed("section") {
				prov, err := parseSection(section)
				if err != nil {
					return err
				}
				opts = append(opts, metadata.InSections(prov))
			}
			return ctx.withPackage(cmd, args[0], mutating, func(p *imagepkg.Package) error {
				if err := p.SetMetadata(args[1], value, opts...); err != nil {
					if errors.Is(err, metadata.ErrConflict) {
						return fmt.Errorf("%w (remove the existing value first)", err)
					}
					return err
				}
				if value == "" {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: removed %s\n", p.ID, args[1])
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s = %s\n", p.ID, args[1], metadata.Clean(value))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&section, "section", "", "Section to write: original or isaw (descriptive keys default to isaw)")
	return cmd
}

func newMetadataKeywordCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "keyword PACKAGE TERM...",
		Short: "Add typology keywords",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPackage(cmd, args[0], mutating, func(p *imagepkg.Package) error {
				for _, term := range args[1:] {
					if err := p.AddKeyword(term); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: keywords %s\n", p.ID, strings.Join(p.Metadata().Keywords(), ", "))
				return nil
			})
		},
	}
}

func newMetadataReimportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reimport PACKAGE",
		Short: "Import embedded metadata into the original section again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPackage(cmd, args[0], mutating, func(p *imagepkg.Package) error {
				if err := p.ReimportFacts(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: embedded metadata imported\n", p.ID)
				return nil
			})
		},
	}
}
