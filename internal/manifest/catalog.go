package manifest

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"path"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

const (
	descriptorDir = "catalog"
	schemaFile    = "schema.json"
	schemaURL     = "https://lights-manager.local/manifest.schema.json"
)

var (
	// ErrUnknownApp is returned for names the catalog does not contain.
	ErrUnknownApp = errors.New("unknown application")
	// ErrInvalidManifest is returned for descriptors that fail validation.
	ErrInvalidManifest = errors.New("invalid manifest")
)

//go:embed schema.json catalog/*.yaml
var embedded embed.FS

// Catalog is the validated set of manifest entries keyed by name.
type Catalog struct {
	entries map[string]*Entry
	// invalid holds the validation error of every rejected descriptor, keyed
	// by its name or, when even that cannot be read, by its file stem.
	invalid map[string]error
}

// Default loads the catalog embedded into the binary.
func Default() (*Catalog, error) {
	return NewCatalog(embedded)
}

// NewCatalog reads schema.json and catalog/*.yaml from fsys.
// An invalid descriptor only disables its own application: Load reports
// ErrInvalidManifest for it while the rest of the catalog stays usable.
// A missing or broken schema fails the whole catalog.
func NewCatalog(fsys fs.FS) (*Catalog, error) {
	schema, err := compileSchema(fsys)
	if err != nil {
		return nil, err
	}

	files, err := fs.Glob(fsys, path.Join(descriptorDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("list descriptors: %w", err)
	}

	c := &Catalog{
		entries: make(map[string]*Entry, len(files)),
		invalid: make(map[string]error),
	}

	for _, file := range files {
		contents, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}

		entry, err := decodeEntry(schema, contents)
		if err != nil {
			c.invalid[descriptorName(file, contents)] = fmt.Errorf("%s: %w", file, err)

			continue
		}

		if _, ok := c.entries[entry.Name]; ok {
			delete(c.entries, entry.Name)

			c.invalid[entry.Name] = fmt.Errorf("%s: duplicate name %q: %w", file, entry.Name, ErrInvalidManifest)

			continue
		}

		if _, ok := c.invalid[entry.Name]; ok {
			continue
		}

		c.entries[entry.Name] = entry
	}

	return c, nil
}

// descriptorName reads the name of a descriptor that failed validation.
func descriptorName(file string, contents []byte) string {
	var named struct {
		Name string `yaml:"name"`
	}

	if err := yaml.Unmarshal(contents, &named); err == nil && strings.TrimSpace(named.Name) != "" {
		return named.Name
	}

	return strings.TrimSuffix(path.Base(file), path.Ext(file))
}

// Load returns a copy of the entry called name, resolved for the running platform.
func (c *Catalog) Load(name string) (*Entry, error) {
	entry, ok := c.entries[name]
	if !ok {
		if err, broken := c.invalid[name]; broken {
			return nil, err
		}

		return nil, fmt.Errorf("%q: %w", name, ErrUnknownApp)
	}

	resolved, err := entry.Current()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}

	return resolved, nil
}

// Invalid returns the validation errors of rejected descriptors, keyed by name.
func (c *Catalog) Invalid() map[string]error {
	return maps.Clone(c.invalid)
}

// Names returns the keys of the valid entries in lexical order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Len returns the number of tracked applications.
func (c *Catalog) Len() int {
	return len(c.entries)
}

func compileSchema(fsys fs.FS) (*jsonschema.Schema, error) {
	contents, err := fs.ReadFile(fsys, schemaFile)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(contents))
	if err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err = compiler.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}

	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	return schema, nil
}

func decodeEntry(schema *jsonschema.Schema, contents []byte) (*Entry, error) {
	var raw any
	if err := yaml.Unmarshal(contents, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}

	if err := schema.Validate(raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}

	entry := new(Entry)
	if err := yaml.Unmarshal(contents, entry); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}

	if entry.LaunchCommand != "" && !entry.Launchable {
		return nil, fmt.Errorf("%w: launch_command set on a non-launchable entry", ErrInvalidManifest)
	}

	if entry.ExtraFolder && strings.TrimSpace(entry.FolderKeyword) == "" {
		return nil, fmt.Errorf("%w: extra_folder requires folder_keyword", ErrInvalidManifest)
	}

	return entry, nil
}
