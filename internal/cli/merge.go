package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tablestream/csvmerge3/internal/cli/appctx"
	"github.com/tablestream/csvmerge3/internal/csvio"
	"github.com/tablestream/csvmerge3/internal/dump"
	"github.com/tablestream/csvmerge3/internal/history"
	"github.com/tablestream/csvmerge3/internal/merge3"
)

var mergeFlags struct {
	key         string
	output      string
	quote       string
	lineTerm    string
	reformatAll bool
	debug       bool
	labelA      string
	labelB      string
}

var mergeCmd = &cobra.Command{
	Use:   "merge <lca> <a> <b>",
	Short: "Three-way merge LCA, A, and B CSV files",
	Args:  cobra.ExactArgs(3),
	RunE:  runMerge,
}

func init() {
	rootCmd.AddCommand(mergeCmd)
	mergeCmd.Flags().StringVar(&mergeFlags.key, "key", "[auto]", "primary key column, or '|'-separated candidates")
	mergeCmd.Flags().StringVarP(&mergeFlags.output, "output", "o", "", "output file (default: stdout)")
	mergeCmd.Flags().StringVar(&mergeFlags.quote, "quote", "minimal", "quoting policy: minimal, all, nonnumeric, none")
	mergeCmd.Flags().StringVar(&mergeFlags.lineTerm, "lineterminator", "native", "output line terminator: native, unix, dos")
	mergeCmd.Flags().BoolVar(&mergeFlags.reformatAll, "reformat-all", false, "re-encode every row instead of passing unchanged rows through verbatim")
	mergeCmd.Flags().BoolVar(&mergeFlags.debug, "debug", false, "write a crash dump on internal invariant violations")
	mergeCmd.Flags().StringVar(&mergeFlags.labelA, "label-a", "", "label for the A file in conflict blocks (default: its path)")
	mergeCmd.Flags().StringVar(&mergeFlags.labelB, "label-b", "", "label for the B file in conflict blocks (default: its path)")
}

func runMerge(cmd *cobra.Command, args []string) error {
	pathLCA, pathA, pathB := args[0], args[1], args[2]

	quoting, err := csvio.ParseQuoting(mergeFlags.quote)
	if err != nil {
		return exitError(merge3.ExitIOError, err)
	}
	term, err := csvio.ParseTerminator(mergeFlags.lineTerm)
	if err != nil {
		return exitError(merge3.ExitIOError, err)
	}

	out := os.Stdout
	if mergeFlags.output != "" {
		f, err := os.Create(mergeFlags.output)
		if err != nil {
			return exitError(merge3.ExitIOError, fmt.Errorf("create output: %w", err))
		}
		defer f.Close()
		out = f
	}

	ctx, err := appctx.Load(cmd)
	if err != nil {
		return exitError(merge3.ExitIOError, err)
	}
	defer ctx.Close()

	var hist *history.Store
	var run *history.Run
	if database, err := ctx.OpenHistory(); err == nil {
		hist = history.New(database)
		if run, err = hist.Begin(pathLCA, pathA, pathB, mergeFlags.key); err != nil {
			run = nil
		}
	}

	opts := merge3.Options{
		KeySpec:     mergeFlags.key,
		Quoting:     quoting,
		Terminator:  term,
		ReformatAll: mergeFlags.reformatAll,
		LabelA:      mergeFlags.labelA,
		LabelB:      mergeFlags.labelB,
	}

	res, mergeErr := merge3.Merge(pathLCA, pathA, pathB, out, opts)

	if mergeErr != nil {
		code := merge3.ExitCodeFor(mergeErr)
		if _, ok := mergeErr.(*merge3.InternalInvariantError); ok && mergeFlags.debug {
			if _, dumpErr := dump.Write(ctx.Config.DumpDir, mergeErr, pathLCA, pathA, pathB, mergeFlags.key); dumpErr == nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote crash dump to %s\n", ctx.Config.DumpDir)
			}
		}
		if hist != nil && run != nil {
			hist.Finish(run.ID, mergeFlags.output, 0, code, mergeErr, nil)
		}
		return exitError(code, mergeErr)
	}

	if hist != nil && run != nil {
		hist.Finish(run.ID, mergeFlags.output, res.ConflictCount, res.ExitCode, nil, conflictSummaries(res.Conflicts))
	}

	if res.ExitCode != merge3.ExitOK {
		return exitError(res.ExitCode, fmt.Errorf("merge completed with %d conflict(s)", res.ConflictCount))
	}
	return nil
}

func conflictSummaries(refs []merge3.ConflictRef) []history.ConflictSummary {
	if len(refs) == 0 {
		return nil
	}
	out := make([]history.ConflictSummary, len(refs))
	for i, r := range refs {
		out[i] = history.ConflictSummary{RowKey: r.Key, Column: r.Column}
	}
	return out
}
