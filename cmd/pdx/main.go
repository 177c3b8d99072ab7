// Command pdx runs the slide diff and merge engines over local files.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gusuku-oknw/peerdiffx/diff"
	"github.com/gusuku-oknw/peerdiffx/element"
	"github.com/gusuku-oknw/peerdiffx/merge"
	"github.com/gusuku-oknw/peerdiffx/xmldiff"
)

// Version is the current pdx CLI version
var Version = "0.1.0"

// errDifferent signals a non-empty diff under --exit-code.
var errDifferent = errors.New("inputs differ")

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pdx",
		Short:         "pdx - structural and textual diff and merge for slides",
		Long:          `pdx compares slide element collections by stable id, renders unified diffs of slide XML, and three-way merges element collections.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newDiffCmd(), newXMLDiffCmd(), newMergeCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the pdx version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pdx %s\n", Version)
		},
	}
}

func newDiffCmd() *cobra.Command {
	var format string
	var exitCode bool
	cmd := &cobra.Command{
		Use:   "diff <old.json> <new.json>",
		Short: "Compare two element collections",
		Long: `Compare two JSON element collections by element id.

Formats:
  text     one line per change with field details (default)
  compact  one line per changed element id
  stats    a single summary line
  json     the full changeset`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			before, err := readElements(args[0])
			if err != nil {
				return err
			}
			after, err := readElements(args[1])
			if err != nil {
				return err
			}
			cs := diff.Diff(before, after)

			out := cmd.OutOrStdout()
			switch format {
			case "text":
				fmt.Fprint(out, cs.FormatText())
			case "compact":
				if s := cs.FormatCompact(); s != "" {
					fmt.Fprintln(out, s)
				}
			case "stats":
				fmt.Fprintln(out, cs.FormatStats())
			case "json":
				data, err := cs.FormatJSON()
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
			default:
				return fmt.Errorf("unknown format %q", format)
			}
			if exitCode && !cs.Empty() {
				return errDifferent
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, compact, stats, json")
	cmd.Flags().BoolVar(&exitCode, "exit-code", false, "Exit with status 1 when the collections differ")
	return cmd
}

func newXMLDiffCmd() *cobra.Command {
	opts := xmldiff.DefaultOptions()
	var keepWhitespace, noGroup, stat, exitCode bool
	cmd := &cobra.Command{
		Use:   "xmldiff <old.xml> <new.xml>",
		Short: "Unified diff of two slide XML documents",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oldXML, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			newXML, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			o := opts
			o.IgnoreWhitespace = !keepWhitespace
			o.SemanticGrouping = !noGroup
			if o.OldLabel == "" {
				o.OldLabel = args[0]
			}
			if o.NewLabel == "" {
				o.NewLabel = args[1]
			}
			res, err := xmldiff.Compare(string(oldXML), string(newXML), o)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if stat {
				fmt.Fprintf(out, "%d added, %d changed, %d deleted\n", res.Stat.Added, res.Stat.Changed, res.Stat.Deleted)
			} else {
				fmt.Fprint(out, res.Text)
			}
			if exitCode && !res.Identical() {
				return errDifferent
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&keepWhitespace, "keep-whitespace", false, "Treat whitespace in text nodes as significant")
	cmd.Flags().StringSliceVar(&opts.IgnoreAttributes, "ignore-attr", opts.IgnoreAttributes, "Attribute glob patterns to ignore")
	cmd.Flags().BoolVar(&opts.IgnoreNamespaces, "ignore-ns", false, "Drop namespace prefixes and declarations")
	cmd.Flags().BoolVar(&noGroup, "no-group", false, "Disable shape/text-run grouping markers")
	cmd.Flags().IntVarP(&opts.Context, "context", "U", 3, "Lines of context around each hunk")
	cmd.Flags().StringVar(&opts.OldLabel, "old-label", "", "Label for the old side (default: file path)")
	cmd.Flags().StringVar(&opts.NewLabel, "new-label", "", "Label for the new side (default: file path)")
	cmd.Flags().BoolVar(&stat, "stat", false, "Print only the line counts")
	cmd.Flags().BoolVar(&exitCode, "exit-code", false, "Exit with status 1 when the documents differ")
	return cmd
}

func newMergeCmd() *cobra.Command {
	var strict bool
	var output string
	cmd := &cobra.Command{
		Use:   "merge <base.json> <yours.json> <theirs.json>",
		Short: "Three-way merge of element collections",
		Long: `Three-way merge of JSON element collections.

When both sides change the same element, "theirs" wins and a conflict is
reported on stderr. With --strict any conflict fails the merge.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var sides [3]element.Collection
			for i, path := range args {
				c, err := readElements(path)
				if err != nil {
					return err
				}
				sides[i] = c
			}
			res := merge.Merge(sides[0], sides[1], sides[2])
			for _, c := range res.Conflicts {
				fmt.Fprintf(cmd.ErrOrStderr(), "conflict %s %s: %s\n", c.Kind, c.ID, c.Message)
			}
			if strict {
				if err := res.Err(); err != nil {
					return err
				}
			}

			data, err := json.MarshalIndent(res.Elements, "", "  ")
			if err != nil {
				return err
			}
			data = append(data, '\n')
			if output != "" {
				return os.WriteFile(output, data, 0644)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail instead of resolving conflicts last-writer-wins")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the merged collection to a file")
	return cmd
}

// readElements loads and validates a JSON element collection.
func readElements(path string) (element.Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c element.Collection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errDifferent) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
