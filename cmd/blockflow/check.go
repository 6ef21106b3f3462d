package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/chazu/blockflow/document"
)

func newCheckCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check [paths...]",
		Short: "Validate flowchart documents",
		Long: `Parse, schema-check and build flowchart documents, then validate every
block's structure. Paths may be files or directories; with no paths the
project's source directories are checked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := args
			if len(paths) == 0 {
				m, err := g.loadManifest(cmd, "")
				if err != nil {
					return err
				}
				paths = m.SourceDirPaths()
			} else if _, err := g.loadManifest(cmd, ""); err != nil {
				return err
			}
			return checkPaths(cmd, paths)
		},
	}
}

func checkPaths(cmd *cobra.Command, paths []string) error {
	out := cmd.OutOrStdout()
	failed := 0
	report := func(path string, err error) {
		if err != nil {
			failed++
			fmt.Fprintf(out, "FAIL %s\n  %v\n", path, err)
			return
		}
		fmt.Fprintf(out, "ok   %s\n", path)
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			report(p, err)
			continue
		}
		if !info.IsDir() {
			report(p, checkFile(p))
			continue
		}
		files, err := filepath.Glob(filepath.Join(p, "*"+document.Ext))
		if err != nil {
			report(p, err)
			continue
		}
		for _, f := range files {
			report(f, checkFile(f))
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d document(s) failed", failed)
	}
	return nil
}

func checkFile(path string) error {
	d, err := document.Load(path)
	if err != nil {
		return err
	}
	return d.Check()
}

func newKindsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List the command kinds documents may use",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, k := range document.Kinds() {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
		},
	}
}
