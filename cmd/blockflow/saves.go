package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/chazu/blockflow/save"
)

func newSavesCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "saves",
		Short: "Inspect the project's save slots",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List save slots",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd, g, func(store save.Store) error {
					return listSaves(cmd, store)
				})
			},
		},
		&cobra.Command{
			Use:   "show <slot>",
			Short: "Print the contents of a save slot",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd, g, func(store save.Store) error {
					return showSave(cmd, store, args[0])
				})
			},
		},
		&cobra.Command{
			Use:   "delete <slot>",
			Short: "Delete a save slot",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd, g, func(store save.Store) error {
					return store.Delete(cmd.Context(), args[0])
				})
			},
		},
	)
	return cmd
}

func withStore(cmd *cobra.Command, g *globalFlags, fn func(save.Store) error) error {
	m, err := g.loadManifest(cmd, "")
	if err != nil {
		return err
	}
	store, err := save.OpenStore(m.Save.Backend, m.SavePath())
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func listSaves(cmd *cobra.Command, store save.Store) error {
	slots, err := store.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(slots) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No saves")
		return nil
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SLOT\tSIZE\tUPDATED")
	for _, s := range slots {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, humanize.Bytes(uint64(s.Size)), humanize.Time(s.UpdatedAt))
	}
	return tw.Flush()
}

func showSave(cmd *cobra.Command, store save.Store, slot string) error {
	data, err := store.Read(cmd.Context(), slot)
	if err != nil {
		return err
	}
	snap, err := save.Unmarshal(data)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Slot:        %s\n", slot)
	fmt.Fprintf(out, "Saved:       %s (%s)\n", snap.Time().Format("2006-01-02 15:04:05"), humanize.Time(snap.Time()))
	if snap.Scene != "" {
		fmt.Fprintf(out, "Scene:       %s\n", snap.Scene)
	}
	if snap.Description != "" {
		fmt.Fprintf(out, "Description: %s\n", snap.Description)
	}
	for _, fc := range snap.Flowcharts {
		fmt.Fprintf(out, "\n%s\n", fc.Name)
		for _, vs := range fc.Variables {
			v, err := vs.Decode()
			if err != nil {
				fmt.Fprintf(out, "  %s = <%v>\n", vs.Key, err)
				continue
			}
			fmt.Fprintf(out, "  %s = %s\n", vs.Key, v)
		}
		for _, b := range fc.Blocks {
			if b.Executing {
				fmt.Fprintf(out, "  [%s] running at #%d (runs: %d)\n", b.Name, b.Cursor, b.ExecutionCount)
			} else {
				fmt.Fprintf(out, "  [%s] idle (runs: %d)\n", b.Name, b.ExecutionCount)
			}
		}
	}
	return nil
}
