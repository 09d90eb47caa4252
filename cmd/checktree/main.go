package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/vanderheijden86/checktree/pkg/config"
	"github.com/vanderheijden86/checktree/pkg/export"
	"github.com/vanderheijden86/checktree/pkg/loader"
	"github.com/vanderheijden86/checktree/pkg/model"
	"github.com/vanderheijden86/checktree/pkg/session"
	"github.com/vanderheijden86/checktree/pkg/source"
	"github.com/vanderheijden86/checktree/pkg/state"
	"github.com/vanderheijden86/checktree/pkg/ui"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	demoDepth   = 2
	demoBreadth = 4
	envDebug    = "CHECKTREE_DEBUG"
)

type options struct {
	data         string
	db           string
	seedDB       string
	demo         bool
	hierarchical bool
	multi        bool
	print        bool
	exportMD     string
	exportSVG    string
	stateDir     string
	noWatch      bool
	version      bool

	set map[string]bool // Flags given explicitly
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	o := &options{set: map[string]bool{}}
	fs := flag.NewFlagSet("checktree", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.data, "data", "", "Load the tree from a JSON or YAML file")
	fs.StringVar(&o.db, "db", "", "Load the tree from a SQLite database; lazy nodes fetch from it")
	fs.StringVar(&o.seedDB, "seed-db", "", "Write the demo tree to a SQLite database and exit")
	fs.BoolVar(&o.demo, "demo", false, "Show a generated tree with lazy-loading nodes")
	fs.BoolVar(&o.hierarchical, "hierarchical", false, "Propagate checkbox changes to children and parents")
	fs.BoolVar(&o.multi, "multi", false, "Allow more than one selected node")
	fs.BoolVar(&o.print, "print", false, "Render the tree once to stdout and exit")
	fs.StringVar(&o.exportMD, "export-md", "", "Export the tree as a Markdown checklist (e.g., tree.md)")
	fs.StringVar(&o.exportSVG, "export-svg", "", "Export the visible tree as an SVG snapshot (e.g., tree.svg)")
	fs.StringVar(&o.stateDir, "state-dir", "", "Directory for the persisted tree state (default .checktree)")
	fs.BoolVar(&o.noWatch, "no-watch", false, "Do not reload the data file when it changes")
	fs.BoolVar(&o.version, "version", false, "Show version")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: checktree [options]")
		fmt.Fprintln(stderr, "\nA checkbox tree viewer with lazy loading.")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	return o, nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if opts.version {
		fmt.Fprintf(stdout, "checktree %s\n", version)
		return 0
	}
	log.SetOutput(stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if opts.seedDB != "" {
		if err := seedDatabase(ctx, opts.seedDB); err != nil {
			fmt.Fprintf(stderr, "Error seeding database: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Seeded %s\n", opts.seedDB)
		return 0
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	src, err := openSource(ctx, cfg, opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading tree: %v\n", err)
		return 1
	}
	defer src.close()

	file := state.Load(cfg.StateDir)
	rec := state.NewRecorder(cfg.StateDir, file)
	ctrl := session.New(src.tree,
		session.WithHierarchicalCheck(cfg.HierarchicalCheck),
		session.WithMultiSelect(cfg.MultiSelect),
		session.WithFetcher(src.fetch),
		session.WithSink(rec),
		session.WithLogger(log.Default()),
	)
	file.Apply(ctrl)

	if opts.print || opts.exportMD != "" || opts.exportSVG != "" {
		return runExports(ctrl, opts, stdout, stderr)
	}
	return runTUI(ctx, ctrl, rec, cfg, src, stderr)
}

// loadConfig reads the project config and applies flag overrides.
func loadConfig(opts *options) (config.Config, error) {
	projectDir, found := config.Discover("")
	if !found {
		projectDir, _ = os.Getwd()
	}
	cfg, err := config.Load(projectDir)
	if err != nil {
		return cfg, err
	}
	if opts.set["hierarchical"] {
		cfg.HierarchicalCheck = opts.hierarchical
	}
	if opts.set["multi"] {
		cfg.MultiSelect = opts.multi
	}
	switch {
	case opts.data != "":
		cfg.Data, cfg.Database = opts.data, ""
	case opts.db != "":
		cfg.Data, cfg.Database = "", opts.db
	case opts.demo:
		cfg.Data, cfg.Database = "", ""
	}
	if opts.stateDir != "" {
		cfg.StateDir = opts.stateDir
	}
	if opts.noWatch {
		off := false
		cfg.Watch = &off
	}
	return cfg, cfg.Validate()
}

// treeSource is where the initial tree and lazy children come from.
type treeSource struct {
	title  string
	tree   model.Tree
	fetch  session.Fetcher
	reload func() (model.Tree, error)
	close  func()
}

func openSource(ctx context.Context, cfg config.Config, opts *options) (*treeSource, error) {
	gen := source.Generator{
		Depth:    demoDepth,
		Breadth:  demoBreadth,
		Latency:  time.Duration(cfg.Lazy.Latency),
		FailRate: cfg.Lazy.FailRate,
	}
	switch {
	case cfg.Database != "":
		db, err := source.Open(cfg.Database)
		if err != nil {
			return nil, err
		}
		roots, err := db.Roots(ctx)
		if err != nil {
			db.Close()
			return nil, err
		}
		return &treeSource{
			title:  filepath.Base(cfg.Database),
			tree:   roots,
			fetch:  db.Children,
			reload: func() (model.Tree, error) { return db.Roots(ctx) },
			close:  func() { db.Close() },
		}, nil

	case cfg.Data != "":
		t, err := loader.LoadFile(cfg.Data)
		if err != nil {
			return nil, err
		}
		return &treeSource{
			title:  filepath.Base(cfg.Data),
			tree:   t,
			fetch:  gen.Fetch, // Lazy nodes in a document get generated children
			reload: func() (model.Tree, error) { return loader.LoadFile(cfg.Data) },
			close:  func() {},
		}, nil
	}
	return &treeSource{
		title: "demo",
		tree:  source.Generate(demoDepth, demoBreadth),
		fetch: gen.Fetch,
		close: func() {},
	}, nil
}

// seedDatabase writes the demo tree, with the first level of lazy children
// stored, to a SQLite database.
func seedDatabase(ctx context.Context, path string) error {
	gen := source.Generator{Depth: demoDepth, Breadth: demoBreadth}
	t := source.Generate(demoDepth, demoBreadth)
	var fill func(nodes []*model.Node) error
	fill = func(nodes []*model.Node) error {
		for _, n := range nodes {
			if n.LazyLoad {
				kids, err := gen.Fetch(ctx, n)
				if err != nil {
					return err
				}
				n.Nodes = kids
				continue
			}
			if err := fill(n.Nodes); err != nil {
				return err
			}
		}
		return nil
	}
	if err := fill(t); err != nil {
		return err
	}

	db, err := source.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Seed(ctx, t)
}

func runExports(ctrl *session.Controller, opts *options, stdout, stderr io.Writer) int {
	t := ctrl.Tree()
	if opts.exportMD != "" {
		mdOpts := export.MarkdownOptions{Title: "Checklist", Now: time.Now()}
		if err := export.SaveMarkdownToFile(t, opts.exportMD, mdOpts); err != nil {
			fmt.Fprintf(stderr, "Error exporting markdown: %v\n", err)
			return 1
		}
		fmt.Fprintf(stderr, "Exported %s\n", opts.exportMD)
	}
	if opts.exportSVG != "" {
		if err := export.SaveSVGToFile(t, opts.exportSVG, export.DefaultSVGOptions()); err != nil {
			fmt.Fprintf(stderr, "Error exporting svg: %v\n", err)
			return 1
		}
		fmt.Fprintf(stderr, "Exported %s\n", opts.exportSVG)
	}
	if opts.print {
		width := 0
		if f, ok := stdout.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			if w, _, err := term.GetSize(int(f.Fd())); err == nil {
				width = w
			}
		}
		theme := ui.DefaultTheme(lipgloss.NewRenderer(stdout))
		fmt.Fprintln(stdout, ui.RenderStatic(t, theme, width))
	}
	return 0
}

func runTUI(ctx context.Context, ctrl *session.Controller, rec *state.Recorder, cfg config.Config, src *treeSource, stderr io.Writer) int {
	if os.Getenv(envDebug) != "" {
		f, err := tea.LogToFile(filepath.Join(os.TempDir(), "checktree-debug.log"), "checktree")
		if err != nil {
			fmt.Fprintf(stderr, "Error opening debug log: %v\n", err)
			return 1
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	if err := ensureStateIgnored(cfg); err != nil {
		log.Printf("warning: %v", err)
	}

	var worker *ui.BackgroundWorker
	if cfg.Data != "" && cfg.WatchEnabled() {
		w, err := ui.NewBackgroundWorker(ui.WorkerConfig{DataPath: cfg.Data})
		if err != nil {
			log.Printf("warning: not watching %s: %v", cfg.Data, err)
		} else {
			worker = w
		}
	}

	m := ui.NewModel(ctrl, ui.Options{
		Title:    src.title,
		Theme:    ui.DefaultTheme(lipgloss.DefaultRenderer()),
		Recorder: rec,
		Worker:   worker,
		Reload:   src.reload,
		Context:  ctx,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())

	if worker != nil {
		worker.SetSender(p)
		if err := worker.Start(); err != nil {
			log.Printf("warning: watcher: %v", err)
		}
		defer worker.Stop()
	}

	_, err := p.Run()
	if ferr := rec.Flush(); ferr != nil && err == nil {
		err = ferr
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error running program: %v\n", err)
		return 1
	}
	return 0
}

// ensureStateIgnored keeps a state dir inside a git project out of version
// control.
func ensureStateIgnored(cfg config.Config) error {
	if cfg.ProjectDir == "" {
		return nil
	}
	if _, err := os.Stat(filepath.Join(cfg.ProjectDir, ".git")); err != nil {
		return nil
	}
	rel, err := filepath.Rel(cfg.ProjectDir, cfg.StateDir)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return nil
	}
	return loader.EnsureIgnored(cfg.ProjectDir, rel)
}
