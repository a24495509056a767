package cli

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/funvibe/c4c/internal/cache"
	"github.com/funvibe/c4c/internal/compiler"
	"github.com/funvibe/c4c/internal/config"
	"github.com/funvibe/c4c/internal/diagnostics"
	"github.com/funvibe/c4c/internal/modules"
	"github.com/funvibe/c4c/internal/schema"
	"github.com/funvibe/c4c/internal/vm"
)

const usage = `Usage:
  c4c [-debug] [-dump] [-config c4c.yaml] [-schema schema.yaml] [-db file] [-I dir]... <entry>
  c4c history [-db file] [-n limit] [session-id]

<entry> is a module name or a path to a .tree.yaml file.
`

// Main runs c4c with the process arguments and exits.
func Main() {
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}

// Run executes one c4c invocation and returns the exit status: 0 on
// success, 1 on a fatal diagnostic or any other failure.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 {
		switch args[0] {
		case "-help", "--help", "help":
			fmt.Fprint(stdout, usage)
			return 0
		case "history":
			return runHistory(args[1:], stdout, stderr)
		}
	}

	inv, err := parseArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "c4c: %v\n%s", err, usage)
		return 1
	}
	if err := inv.apply(); err != nil {
		fmt.Fprintf(stderr, "c4c: %v\n", err)
		return 1
	}
	return inv.compile(stdout, stderr)
}

// invocation collects the compile command line merged with the project
// file.
type invocation struct {
	debug      bool
	dump       bool
	configPath string
	schemaPath string
	dbPath     string
	includes   []string
	entry      string

	project *config.Project
	schema  *schema.Schema
}

func parseArgs(args []string) (*invocation, error) {
	inv := &invocation{}
	value := func(i int, flag string) (string, error) {
		if i+1 >= len(args) {
			return "", errors.Errorf("%s needs an argument", flag)
		}
		return args[i+1], nil
	}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		var err error
		switch {
		case arg == "-debug" || arg == "--debug":
			inv.debug = true
		case arg == "-dump" || arg == "--dump":
			inv.dump = true
		case arg == "-config" || arg == "--config":
			inv.configPath, err = value(i, arg)
			i++
		case arg == "-schema" || arg == "--schema":
			inv.schemaPath, err = value(i, arg)
			i++
		case arg == "-db" || arg == "--db":
			inv.dbPath, err = value(i, arg)
			i++
		case arg == "-I":
			var dir string
			dir, err = value(i, arg)
			inv.includes = append(inv.includes, dir)
			i++
		case strings.HasPrefix(arg, "-I"):
			inv.includes = append(inv.includes, arg[2:])
		case strings.HasPrefix(arg, "-"):
			return nil, errors.Errorf("unknown flag %s", arg)
		default:
			if inv.entry != "" {
				return nil, errors.Errorf("more than one entry module: %s and %s", inv.entry, arg)
			}
			inv.entry = arg
		}
		if err != nil {
			return nil, err
		}
	}
	return inv, nil
}

// loadProject reads -config, or c4c.yaml from the working directory when
// it exists, or falls back to the defaults.
func loadProject(path string) (*config.Project, error) {
	if path != "" {
		return config.LoadProject(path)
	}
	if _, err := os.Stat(config.DefaultProjectFile); err == nil {
		return config.LoadProject(config.DefaultProjectFile)
	}
	return config.DefaultProject(), nil
}

// apply merges the project file into the command line. Flags win.
func (inv *invocation) apply() error {
	p, err := loadProject(inv.configPath)
	if err != nil {
		return err
	}
	inv.project = p
	if inv.entry == "" {
		inv.entry = p.Entry
	}
	if inv.entry == "" {
		return errors.New("no entry module given")
	}
	if inv.schemaPath == "" {
		inv.schemaPath = p.Resolve(p.Schema)
	}
	if inv.dbPath == "" {
		inv.dbPath = p.Resolve(p.Cache)
	}

	// An entry given as a file puts its directory first on the search path.
	for _, ext := range config.SourceFileExtensions {
		if strings.HasSuffix(inv.entry, ext) {
			dir := filepath.Dir(inv.entry)
			inv.entry = strings.TrimSuffix(filepath.Base(inv.entry), ext)
			inv.includes = append([]string{dir}, inv.includes...)
			break
		}
	}
	inv.includes = append(inv.includes, p.Dirs()...)

	if inv.schemaPath != "" {
		s, err := schema.LoadFile(inv.schemaPath)
		if err != nil {
			return err
		}
		inv.schema = s
	}
	return nil
}

func (inv *invocation) compile(stdout, stderr io.Writer) int {
	var logger *log.Logger
	if inv.debug {
		logger = log.New(stderr, "c4c: ", log.Ltime|log.Lmicroseconds)
		logger.Printf("entry %s, search path %s", inv.entry, strings.Join(inv.includes, string(filepath.ListSeparator)))
	}

	res, err := compiler.Compile(inv.entry, compiler.Options{
		Source:        modules.DirSource{Paths: inv.includes},
		Schema:        inv.schema,
		Logger:        logger,
		FoldConstants: inv.project.Fold(),
		Severity:      inv.project.Overrides(),
	})
	if err != nil {
		fmt.Fprintf(stderr, "c4c: %v\n", err)
		return 1
	}

	f, _ := stderr.(*os.File)
	diagnostics.Render(stderr, res.Diagnostics, diagnostics.UseColor(inv.project.ColorMode(), f))

	if inv.dump {
		for _, p := range res.Programs {
			fmt.Fprint(stdout, vm.DisassembleProgram(p, res.Pool))
		}
	}

	if inv.dbPath != "" {
		if err := record(inv.dbPath, res); err != nil {
			fmt.Fprintf(stderr, "c4c: %v\n", err)
			return 1
		}
		if logger != nil {
			logger.Printf("recorded session %s in %s", res.ID, inv.dbPath)
		}
	}

	if res.Fatal {
		return 1
	}
	return 0
}

func record(path string, res *compiler.Result) error {
	store, err := cache.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Record(res)
}

// runHistory lists recorded sessions, or the diagnostics of one session.
func runHistory(args []string, stdout, stderr io.Writer) int {
	var dbPath, configPath, session string
	limit := 20
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-db", "--db", "-config", "--config", "-n":
			if i+1 >= len(args) {
				fmt.Fprintf(stderr, "c4c: %s needs an argument\n", args[i])
				return 1
			}
			v := args[i+1]
			i++
			switch args[i-1] {
			case "-n":
				n, err := strconv.Atoi(v)
				if err != nil {
					fmt.Fprintf(stderr, "c4c: -n: %v\n", err)
					return 1
				}
				limit = n
			case "-config", "--config":
				configPath = v
			default:
				dbPath = v
			}
		default:
			if strings.HasPrefix(args[i], "-") {
				fmt.Fprintf(stderr, "c4c: unknown flag %s\n%s", args[i], usage)
				return 1
			}
			session = args[i]
		}
	}
	if dbPath == "" {
		p, err := loadProject(configPath)
		if err != nil {
			fmt.Fprintf(stderr, "c4c: %v\n", err)
			return 1
		}
		dbPath = p.Resolve(p.Cache)
	}
	if dbPath == "" {
		fmt.Fprintf(stderr, "c4c: history needs -db or a project cache\n")
		return 1
	}

	store, err := cache.Open(dbPath)
	if err != nil {
		fmt.Fprintf(stderr, "c4c: %v\n", err)
		return 1
	}
	defer store.Close()

	if session != "" {
		diags, err := store.Diagnostics(session)
		if err != nil {
			fmt.Fprintf(stderr, "c4c: %v\n", err)
			return 1
		}
		diagnostics.Render(stdout, diags, false)
		return 0
	}

	sessions, err := store.Sessions(limit)
	if err != nil {
		fmt.Fprintf(stderr, "c4c: %v\n", err)
		return 1
	}
	for _, s := range sessions {
		status := "ok"
		if s.Fatal {
			status = "fatal"
		}
		fmt.Fprintf(stdout, "%s  %s  %-5s  %s  [%s]  %d diagnostic(s), %d constant(s)\n",
			s.ID, s.CompiledAt.Local().Format("2006-01-02 15:04:05"), status, s.Entry,
			strings.Join(s.Modules, " "), s.Diagnostics, s.Constants)
	}
	return 0
}
