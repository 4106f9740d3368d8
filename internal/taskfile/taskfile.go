// Package taskfile defines devtask targets and loads them from TOML or YAML
// task files.
package taskfile

import (
	"bytes"
	_ "embed"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/BurntSushi/toml"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/VoxDroid/devtask/internal/nameutil"
	"github.com/VoxDroid/devtask/internal/versioning"
)

//go:embed default.toml
var defaultSource []byte

// FileNames lists the task file names Find looks for, in order of preference.
var FileNames = []string{"devtask.toml", "devtask.yaml", "devtask.yml"}

var (
	// ErrNotFound is returned by Find when no task file exists up to the filesystem root.
	ErrNotFound = eris.New("no task file found")
	// ErrUnknownTarget is returned when a requested target is not defined.
	ErrUnknownTarget = eris.New("unknown target")
)

// Format is a task file encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// File is a parsed task file.
type File struct {
	Default string              `toml:"default,omitempty" yaml:"default,omitempty"`
	Vars    map[string][]string `toml:"vars,omitempty" yaml:"vars,omitempty"`
	Targets map[string]*Target  `toml:"targets" yaml:"targets"`

	// Path is where the file was loaded from; empty for the built-in file.
	Path string `toml:"-" yaml:"-"`
}

// Target is one named entry point. Deps run first, then exactly one of
// Commands, Echo or Release (or nothing, for pure aggregate targets).
type Target struct {
	Name        string            `toml:"-" yaml:"-"`
	Description string            `toml:"description,omitempty" yaml:"description,omitempty"`
	Deps        []string          `toml:"deps,omitempty" yaml:"deps,omitempty"`
	Commands    []string          `toml:"commands,omitempty" yaml:"commands,omitempty"`
	Echo        string            `toml:"echo,omitempty" yaml:"echo,omitempty"`
	Dir         string            `toml:"dir,omitempty" yaml:"dir,omitempty"`
	Env         map[string]string `toml:"env,omitempty" yaml:"env,omitempty"`
	Release     *Release          `toml:"release,omitempty" yaml:"release,omitempty"`
}

// Release describes a version bump: read the current version, compute the
// next one and hand it to the bump command as $NEW_VERSION.
type Release struct {
	VersionCommand string `toml:"version_command" yaml:"version_command"`
	BumpCommand    string `toml:"bump_command" yaml:"bump_command"`
	Part           string `toml:"part,omitempty" yaml:"part,omitempty"`
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", eris.Errorf("unsupported task file extension: %s", path)
	}
}

// Parse decodes and validates a task file. Unknown keys are rejected.
func Parse(data []byte, format Format) (*File, error) {
	var f File
	switch format {
	case FormatTOML:
		md, err := toml.Decode(string(data), &f)
		if err != nil {
			return nil, eris.Wrap(err, "parse toml")
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			return nil, eris.Errorf("unknown keys: %s", strings.Join(keys, ", "))
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, eris.New("parse yaml: empty task file")
			}
			return nil, eris.Wrap(err, "parse yaml")
		}
	default:
		return nil, eris.Errorf("unsupported format %q", format)
	}

	f.normalize()
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Load reads and parses the task file at path.
func Load(path string) (*File, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read task file %s", path)
	}
	f, err := Parse(data, format)
	if err != nil {
		return nil, eris.Wrapf(err, "task file %s", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, eris.Wrap(err, "resolve task file path")
	}
	f.Path = abs
	return f, nil
}

// Find walks from dir towards the filesystem root and returns the first task
// file it sees.
func Find(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", eris.Wrap(err, "resolve directory")
	}
	for {
		for _, name := range FileNames {
			candidate := filepath.Join(dir, name)
			info, err := os.Stat(candidate)
			if err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNotFound
		}
		dir = parent
	}
}

// Default returns the built-in task file, equivalent to the project's
// original Makefile.
func Default() *File {
	f, err := Parse(defaultSource, FormatTOML)
	if err != nil {
		panic("built-in task file is invalid: " + err.Error())
	}
	return f
}

// DefaultSource returns the built-in task file as written on disk by `init`.
func DefaultSource() []byte {
	return bytes.Clone(defaultSource)
}

// Marshal encodes f in the given format.
func Marshal(f *File, format Format) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case FormatTOML:
		if err := toml.NewEncoder(&buf).Encode(f); err != nil {
			return nil, eris.Wrap(err, "encode toml")
		}
	case FormatYAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(f); err != nil {
			return nil, eris.Wrap(err, "encode yaml")
		}
		if err := enc.Close(); err != nil {
			return nil, eris.Wrap(err, "encode yaml")
		}
	default:
		return nil, eris.Errorf("unsupported format %q", format)
	}
	return buf.Bytes(), nil
}

func (f *File) normalize() {
	if f.Targets == nil {
		f.Targets = map[string]*Target{}
	}
	for name, t := range f.Targets {
		if t == nil {
			t = &Target{}
			f.Targets[name] = t
		}
		t.Name = name
		if t.Release != nil && strings.TrimSpace(t.Release.Part) == "" {
			t.Release.Part = string(versioning.Patch)
		}
	}
}

// Validate checks names, references and the shape of every target, and that
// the dependency graph has no cycles.
func (f *File) Validate() error {
	if len(f.Targets) == 0 {
		return eris.New("task file defines no targets")
	}
	for _, name := range f.Names() {
		if err := f.Targets[name].validate(); err != nil {
			return err
		}
		for _, dep := range f.Targets[name].Deps {
			if _, ok := f.Targets[dep]; !ok {
				return eris.Wrapf(ErrUnknownTarget, "target %s depends on %q", name, dep)
			}
		}
	}
	if f.Default != "" {
		if _, ok := f.Targets[f.Default]; !ok {
			return eris.Wrapf(ErrUnknownTarget, "default target %q", f.Default)
		}
	}
	seen := make(map[string]string, len(f.Vars))
	for _, name := range sortedKeys(f.Vars) {
		env := envName(name)
		if env == "" {
			return eris.Errorf("invalid var name %q", name)
		}
		if other, ok := seen[env]; ok {
			return eris.Errorf("vars %q and %q both export %s", other, name, env)
		}
		seen[env] = name
	}
	return f.checkCycles()
}

func (t *Target) validate() error {
	if err := nameutil.ValidateName(t.Name); err != nil {
		return eris.Wrapf(err, "target %q", t.Name)
	}
	if t.Release != nil {
		if len(t.Commands) > 0 || t.Echo != "" {
			return eris.Errorf("target %s: release cannot be combined with commands or echo", t.Name)
		}
		if strings.TrimSpace(t.Release.VersionCommand) == "" {
			return eris.Errorf("target %s: release needs version_command", t.Name)
		}
		if strings.TrimSpace(t.Release.BumpCommand) == "" {
			return eris.Errorf("target %s: release needs bump_command", t.Name)
		}
		if _, err := versioning.ParsePart(t.Release.Part); err != nil {
			return eris.Wrapf(err, "target %s", t.Name)
		}
	}
	if len(t.Commands) > 0 && t.Echo != "" {
		return eris.Errorf("target %s: commands and echo are mutually exclusive", t.Name)
	}
	for i, c := range t.Commands {
		if strings.TrimSpace(c) == "" {
			return eris.Errorf("target %s: command %d is empty", t.Name, i+1)
		}
	}
	for _, k := range sortedKeys(t.Env) {
		if !envKeyPattern.MatchString(k) {
			return eris.Errorf("target %s: invalid env name %q", t.Name, k)
		}
	}
	if len(t.Deps) == 0 && len(t.Commands) == 0 && t.Echo == "" && t.Release == nil {
		return eris.Errorf("target %s does nothing", t.Name)
	}
	return nil
}

func (f *File) checkCycles() error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(f.Targets))
	var path []string

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return eris.Errorf("dependency cycle: %s -> %s", strings.Join(path, " -> "), name)
		}
		state[name] = visiting
		path = append(path, name)
		for _, dep := range f.Targets[name].Deps {
			if err := visit(dep); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[name] = done
		return nil
	}

	for _, name := range f.Names() {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}

// Names returns every target name, sorted.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Targets))
	for name := range f.Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the named target or ErrUnknownTarget.
func (f *File) Lookup(name string) (*Target, error) {
	t, ok := f.Targets[name]
	if !ok {
		return nil, eris.Wrapf(ErrUnknownTarget, "%q", name)
	}
	return t, nil
}

// BaseDir is the directory commands run in unless a target overrides it.
// It is empty (the process working directory) for the built-in file.
func (f *File) BaseDir() string {
	if f.Path == "" {
		return ""
	}
	return filepath.Dir(f.Path)
}

// TargetDir resolves t.Dir against the task file's directory.
func (f *File) TargetDir(t *Target) string {
	base := f.BaseDir()
	switch {
	case t.Dir == "":
		return base
	case filepath.IsAbs(t.Dir) || base == "":
		return t.Dir
	default:
		return filepath.Join(base, t.Dir)
	}
}

// Environ returns the task file vars as NAME=value entries. List values are
// joined with single spaces so `$SOURCES` splits back into its items.
func (f *File) Environ() []string {
	names := make([]string, 0, len(f.Vars))
	for name := range f.Vars {
		names = append(names, name)
	}
	sort.Strings(names)
	env := make([]string, 0, len(names))
	for _, name := range names {
		env = append(env, envName(name)+"="+strings.Join(f.Vars[name], " "))
	}
	return env
}

// TargetEnviron is Environ plus the target's own env, sorted by key.
func (f *File) TargetEnviron(t *Target) []string {
	env := f.Environ()
	keys := make([]string, 0, len(t.Env))
	for k := range t.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+t.Env[k])
	}
	return env
}

// envName turns a var name into an environment variable name: upper case,
// anything but letters, digits and '_' replaced by '_'.
func envName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	var b strings.Builder
	for i, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || r == '_'):
			b.WriteRune(unicode.ToUpper(r))
		case r < unicode.MaxASCII && unicode.IsDigit(r):
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var envKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
