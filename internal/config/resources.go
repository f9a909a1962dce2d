package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Resource describes one table served by the CRUD interface.
type Resource struct {
	// Name is the URL segment; defaults to Table.
	Name string `koanf:"name"`

	// Table is the storage table, optionally schema-qualified.
	Table string `koanf:"table"`

	// Title overrides the file-level title for this resource.
	Title string `koanf:"title"`

	// Hidden columns are never listed, shown or edited.
	Hidden []string `koanf:"hidden"`

	// PageSize overrides the file-level page size when positive.
	PageSize int `koanf:"page_size"`
}

// ResourceFile is the parsed resources.yaml.
//
//	title: Back office
//	page_size: 25
//	resources:
//	  - table: users
//	    hidden: [password_hash]
//	  - name: lines
//	    table: sales.order_lines
type ResourceFile struct {
	Title     string     `koanf:"title"`
	PageSize  int        `koanf:"page_size"`
	Resources []Resource `koanf:"resources"`
}

// LoadResources reads the resource definitions from path.
// Title and page size fall back to the process-level CrudConfig, and
// per-resource values fall back to the file-level ones.
func LoadResources(path string, defaults CrudConfig) (*ResourceFile, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"title":     defaults.Title,
		"page_size": defaults.PageSize,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("error reading resources file %s: %w", path, err)
	}

	var rf ResourceFile
	if err := k.Unmarshal("", &rf); err != nil {
		return nil, fmt.Errorf("unable to decode resources file %s: %w", path, err)
	}

	if err := rf.normalize(); err != nil {
		return nil, fmt.Errorf("resources file %s: %w", path, err)
	}
	return &rf, nil
}

func (rf *ResourceFile) normalize() error {
	if len(rf.Resources) == 0 {
		return fmt.Errorf("no resources defined")
	}
	if rf.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive, got %d", rf.PageSize)
	}

	var errs []string
	seen := make(map[string]bool, len(rf.Resources))
	for i := range rf.Resources {
		r := &rf.Resources[i]
		r.Table = strings.TrimSpace(r.Table)
		if r.Table == "" {
			errs = append(errs, fmt.Sprintf("resource %d: table is required", i))
			continue
		}
		if r.Name == "" {
			r.Name = r.Table
		}
		if seen[r.Name] {
			errs = append(errs, fmt.Sprintf("resource %q: duplicate name", r.Name))
		}
		seen[r.Name] = true

		if r.Title == "" {
			r.Title = rf.Title
		}
		if r.PageSize <= 0 {
			r.PageSize = rf.PageSize
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
