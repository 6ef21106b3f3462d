// blockflow CLI - runs, checks and serves flowchart projects
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/blockflow/document"
	"github.com/chazu/blockflow/host"
	"github.com/chazu/blockflow/manifest"
	"github.com/chazu/blockflow/save"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	project   string
	verbosity int
	logFile   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "blockflow",
		Short:         "Run block-based flowchart stories",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.project, "project", "C", ".", "Project directory (searched upward for "+manifest.FileName+")")
	root.PersistentFlags().CountVarP(&g.verbosity, "verbose", "v", "Increase log verbosity (repeatable)")
	root.PersistentFlags().StringVar(&g.logFile, "log-file", "", "Write logs to this file instead of stderr")

	root.AddCommand(
		newRunCmd(g),
		newCheckCmd(g),
		newServeCmd(g),
		newSavesCmd(g),
		newKindsCmd(),
	)
	return root
}

// ---------------------------------------------------------------------------
// Project loading
// ---------------------------------------------------------------------------

// loadManifest finds blockflow.toml above dir, falling back to defaults
// rooted at dir, and configures logging from it and the flags.
func (g *globalFlags) loadManifest(cmd *cobra.Command, dir string) (*manifest.Manifest, error) {
	if dir == "" {
		dir = g.project
	}
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	if m == nil {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, err
		}
		m = manifest.Default(abs)
	}

	verbosity := m.Log.Verbosity
	if cmd.Flags().Changed("verbose") {
		verbosity = g.verbosity
	}
	logFile := m.LogFile()
	if g.logFile != "" {
		logFile = g.logFile
	}
	var path *string
	if logFile != "" {
		path = &logFile
	}
	commonlog.Configure(verbosity, path)
	return m, nil
}

// openRuntime builds a runtime for the project: its save store, the
// documents of every source directory and the standard effectors.
func openRuntime(m *manifest.Manifest, out io.Writer) (*host.Runtime, error) {
	store, err := save.OpenStore(m.Save.Backend, m.SavePath())
	if err != nil {
		return nil, err
	}
	rt := host.New(host.Options{MaxInstantSteps: m.Engine.MaxInstantSteps, Store: store})

	printer := host.NewPrintEffector(out)
	rt.RegisterEffector("say", printer)
	rt.RegisterEffector("print", printer)
	rt.RegisterEffector("delay", host.DelayEffector{Clock: rt.Clock()})

	for _, dir := range m.SourceDirPaths() {
		docs, err := document.LoadDir(dir)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.AddDocuments(docs...)
	}
	if len(rt.Scenes()) == 0 {
		rt.Close()
		return nil, fmt.Errorf("no flowchart documents in %v", m.SourceDirPaths())
	}
	return rt, nil
}

// startScene picks the scene to load: the flag, the manifest's start
// scene, the default scene, then the first scene by name.
func startScene(rt *host.Runtime, m *manifest.Manifest, flag string) string {
	if flag != "" {
		return flag
	}
	if m.Project.StartScene != "" {
		return m.Project.StartScene
	}
	scenes := rt.Scenes()
	if slices.Contains(scenes, host.DefaultScene) {
		return host.DefaultScene
	}
	return scenes[0]
}

func dirArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}
