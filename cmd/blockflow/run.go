package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/chazu/blockflow/host"
)

type runFlags struct {
	scene string
	limit time.Duration
	step  time.Duration
	load  string
	save  string
	vars  bool
}

func newRunCmd(g *globalFlags) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run [dir]",
		Short: "Load a scene and run it until every block is idle",
		Long: `Load a scene and run it on a simulated clock until every block is idle
or --for of story time has passed.

Examples:
  blockflow run                      # run the start scene of ./blockflow.toml
  blockflow run ./story --scene town # run a specific scene
  blockflow run --load autosave      # continue from a save slot
  blockflow run --save end --vars    # save the final state and print variables`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStory(cmd, g, f, dirArg(args))
		},
	}
	cmd.Flags().StringVar(&f.scene, "scene", "", "Scene to load (default: project start scene)")
	cmd.Flags().DurationVar(&f.limit, "for", time.Minute, "Maximum story time to run")
	cmd.Flags().DurationVar(&f.step, "step", 0, "Clock step (default: engine tick)")
	cmd.Flags().StringVar(&f.load, "load", "", "Restore this save slot instead of starting fresh")
	cmd.Flags().StringVar(&f.save, "save", "", "Save to this slot when the run ends")
	cmd.Flags().BoolVar(&f.vars, "vars", false, "Print flowchart variables when the run ends")
	return cmd
}

func runStory(cmd *cobra.Command, g *globalFlags, f *runFlags, dir string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	m, err := g.loadManifest(cmd, dir)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	rt, err := openRuntime(m, out)
	if err != nil {
		return err
	}
	defer rt.Close()

	if f.load != "" {
		snap, err := rt.Load(ctx, f.load)
		if err != nil {
			return fmt.Errorf("loading %q: %w", f.load, err)
		}
		if rt.Scene() == "" {
			if err := rt.LoadScene(startScene(rt, m, f.scene)); err != nil {
				return err
			}
		}
		fmt.Fprintf(out, "Restored %q (%s)\n", f.load, snap.Time().Format(time.DateTime))
	} else if err := rt.LoadScene(startScene(rt, m, f.scene)); err != nil {
		return err
	}

	step := f.step
	if step <= 0 {
		step = m.Engine.TickInterval()
	}
	spent := rt.RunFor(step, f.limit)

	if f.vars {
		printVariables(out, rt)
	}
	if rt.Busy() {
		fmt.Fprintf(out, "Stopped after %v with blocks still running\n", spent)
	}
	if f.save != "" {
		if _, err := rt.Save(ctx, f.save, "saved by blockflow run"); err != nil {
			return err
		}
		fmt.Fprintf(out, "Saved %q\n", f.save)
	}
	return nil
}

func printVariables(w io.Writer, rt *host.Runtime) {
	for _, fc := range rt.Flowcharts() {
		for _, v := range fc.Variables().All() {
			fmt.Fprintf(w, "%s.%s = %s\n", fc.Name(), v.Key(), v.Value())
		}
	}
}
