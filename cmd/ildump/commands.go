package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/clrmeta/config"
	"github.com/wippyai/clrmeta/reader"
	"github.com/wippyai/clrmeta/resolve"
	"github.com/wippyai/clrmeta/typesys"
)

// session is the state shared by subcommands of one invocation.
type session struct {
	configPath string
	logLevel   string
	searchDirs []string

	cfg      *config.Config
	log      *zap.Logger
	resolver *resolve.Resolver
}

func newRootCommand() *cobra.Command {
	s := &session{}
	root := &cobra.Command{
		Use:          "ildump",
		Short:        "Inspect ECMA-335 managed modules.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return s.close()
		},
	}
	s.bindFlags(root.PersistentFlags())

	root.AddCommand(
		s.typesCommand(),
		s.membersCommand(),
		s.ilCommand(),
		s.refsCommand(),
		s.attrsCommand(),
		s.browseCommand(),
	)
	return root
}

func (s *session) bindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&s.configPath, "config", config.DefaultPath(), "Path to the YAML config file.")
	fs.StringVar(&s.logLevel, "log-level", "", "Override log.level (debug, info, warn, error).")
	fs.StringSliceVar(&s.searchDirs, "search-dir", nil, "Extra directory to probe for referenced assemblies; repeatable.")
}

func (s *session) setup() error {
	cfg, err := config.Load(s.configPath)
	if err != nil {
		return err
	}
	if s.logLevel != "" {
		cfg.Log.Level = s.logLevel
	}
	cfg.Resolver.SearchDirs = append(cfg.Resolver.SearchDirs, s.searchDirs...)
	log, err := cfg.Logger()
	if err != nil {
		return err
	}
	opts, err := cfg.ResolverOptions(log)
	if err != nil {
		return err
	}
	s.cfg = cfg
	s.log = log
	s.resolver = resolve.New(opts)
	reader.SetLogger(log)
	resolve.SetLogger(log)
	return nil
}

func (s *session) close() error {
	if s.log != nil {
		_ = s.log.Sync()
	}
	if s.resolver == nil {
		return nil
	}
	return s.resolver.Close()
}

func (s *session) open(path string) (*typesys.Module, error) {
	mod, err := s.resolver.Open(path)
	if err != nil {
		return nil, err
	}
	s.log.Debug("opened module", zap.String("module", mod.String()), zap.String("location", mod.Location))
	return mod, nil
}

func (s *session) findType(mod *typesys.Module, name string) (*typesys.TypeDef, error) {
	if t := mod.FindTypeByName(name); t != nil {
		return t, nil
	}
	return nil, fmt.Errorf("type %q not found in %s", name, mod.Name)
}

func (s *session) typesCommand() *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "types <module>",
		Short: "List the type definitions of a module.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mod, err := s.open(args[0])
			if err != nil {
				return err
			}
			types := mod.Types()
			if prefix != "" {
				types = mod.TypesWithPrefix(prefix)
			}
			w := cmd.OutOrStdout()
			for _, t := range types {
				fmt.Fprintln(w, typeLine(t))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "Only list types whose full name starts with prefix.")
	return cmd
}

func (s *session) membersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "members <module> <type>",
		Short: "List the fields, methods, properties and events of a type.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mod, err := s.open(args[0])
			if err != nil {
				return err
			}
			t, err := s.findType(mod, args[1])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, typeLine(t))
			for _, line := range memberLines(t) {
				fmt.Fprintln(w, "  "+line)
			}
			return nil
		},
	}
}

func (s *session) ilCommand() *cobra.Command {
	var tree bool
	cmd := &cobra.Command{
		Use:   "il <module> <type> <method>",
		Short: "Disassemble the bodies of every overload of a method.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			mod, err := s.open(args[0])
			if err != nil {
				return err
			}
			t, err := s.findType(mod, args[1])
			if err != nil {
				return err
			}
			methods := t.FindMethods(args[2])
			if len(methods) == 0 {
				return fmt.Errorf("method %q not found in %s", args[2], t.FullName())
			}
			w := cmd.OutOrStdout()
			for _, m := range methods {
				text, err := methodIL(m, tree)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\n%s\n", m, text)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&tree, "tree", false, "Print structured statements instead of instructions.")
	return cmd
}

func (s *session) refsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refs <module>",
		Short: "Resolve the assembly and module references of a module.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mod, err := s.open(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, ref := range mod.AssemblyRefs {
				fmt.Fprintf(w, "assembly %s => %s\n", ref, resolution(ref.Resolve()))
			}
			for _, ref := range mod.ModuleRefs {
				fmt.Fprintf(w, "module %s => %s\n", ref.Name, resolution(ref.Resolve()))
			}
			printDiagnostics(w, mod)
			return nil
		},
	}
}

func (s *session) attrsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "attrs <module> [type]",
		Short: "Decode the custom attributes and security declarations of an assembly or type.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mod, err := s.open(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(args) == 2 {
				t, err := s.findType(mod, args[1])
				if err != nil {
					return err
				}
				writeAttributes(w, t.Attributes(), t.Security())
				for _, m := range t.Methods() {
					if attrs, sec := m.Attributes(), m.Security(); len(attrs)+len(sec) > 0 {
						fmt.Fprintln(w, m.Name+":")
						writeAttributes(w, attrs, sec)
					}
				}
			} else {
				writeAttributes(w, mod.AssemblyAttributes(), mod.AssemblySecurity())
				writeAttributes(w, mod.Attributes(), nil)
			}
			printDiagnostics(w, mod)
			return nil
		},
	}
}

func (s *session) browseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "browse <module>",
		Short: "Browse types, members and IL interactively.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return fmt.Errorf("browse needs a terminal; use types, members or il instead")
			}
			mod, err := s.open(args[0])
			if err != nil {
				return err
			}
			return runBrowser(mod)
		},
	}
}

func resolution(mod *typesys.Module) string {
	switch {
	case mod.Placeholder:
		return "unresolved"
	case mod.Location != "":
		return mod.Location
	}
	return "(in memory)"
}

func writeAttributes(w io.Writer, attrs []*typesys.Attribute, sec []*typesys.SecurityDeclaration) {
	for _, a := range attrs {
		fmt.Fprintln(w, "  ["+a.String()+"]")
	}
	for _, d := range sec {
		if d.XML != "" {
			fmt.Fprintf(w, "  security %d: %s\n", d.Action, strings.TrimSpace(d.XML))
			continue
		}
		for _, a := range d.Attributes {
			fmt.Fprintf(w, "  security %d: [%s]\n", d.Action, a)
		}
	}
}

func printDiagnostics(w io.Writer, mod *typesys.Module) {
	diags := mod.Diagnostics()
	if len(diags) == 0 {
		return
	}
	fmt.Fprintf(w, "%d diagnostics:\n", len(diags))
	for _, d := range diags {
		fmt.Fprintln(w, "  "+d.Error())
	}
}
