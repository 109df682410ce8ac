package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/gosimple/slug"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// RoleDefinition describes one rank in the org chart. Lower Level means more
// authority.
type RoleDefinition struct {
	Code     string `mapstructure:"code"`
	Name     string `mapstructure:"name"`
	Level    int    `mapstructure:"level"`
	TopLevel bool   `mapstructure:"topLevel"`
}

type RoleCatalog struct {
	Roles []RoleDefinition `mapstructure:"roles"`
}

func DefaultRoleCatalog() RoleCatalog {
	return RoleCatalog{
		Roles: []RoleDefinition{
			{Code: "owner", Name: "Owner", Level: 1, TopLevel: true},
			{Code: "manager", Name: "Manager", Level: 2},
			{Code: "staff", Name: "Staff", Level: 3},
		},
	}
}

// TopLevel returns the code of the role preferred as tree root.
func (c RoleCatalog) TopLevel() string {
	for _, r := range c.Roles {
		if r.TopLevel {
			return r.Code
		}
	}
	return ""
}

func (c RoleCatalog) Has(code string) bool {
	_, ok := c.Lookup(code)
	return ok
}

func (c RoleCatalog) Lookup(code string) (RoleDefinition, bool) {
	code = strings.TrimSpace(code)
	for _, r := range c.Roles {
		if r.Code == code {
			return r, true
		}
	}
	return RoleDefinition{}, false
}

type RoleCatalogHolder struct {
	current atomic.Value // holds RoleCatalog
}

// NewRoleCatalogHolder reads roles.yml from the usual config paths and keeps it
// fresh while the process runs.
func NewRoleCatalogHolder() (*RoleCatalogHolder, error) {
	v := viper.New()
	v.SetConfigName("roles")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/orgchart")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ORGCHART")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return newRoleCatalogHolder(v)
}

// NewStaticRoleCatalogHolder wraps a fixed catalog, mainly for tests and tools.
func NewStaticRoleCatalogHolder(catalog RoleCatalog) (*RoleCatalogHolder, error) {
	catalog = normalizeRoleCatalog(catalog)
	if err := validateRoleCatalog(catalog); err != nil {
		return nil, err
	}
	holder := &RoleCatalogHolder{}
	holder.current.Store(catalog)
	return holder, nil
}

func newRoleCatalogHolder(v *viper.Viper) (*RoleCatalogHolder, error) {
	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	// Decode into a zero catalog; mapstructure merges slices element-wise.
	var catalog RoleCatalog
	if fileLoaded {
		if err := v.Unmarshal(&catalog); err != nil {
			return nil, err
		}
	} else {
		catalog = DefaultRoleCatalog()
	}

	holder, err := NewStaticRoleCatalogHolder(catalog)
	if err != nil {
		return nil, err
	}

	if fileLoaded {
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated RoleCatalog
			if err := v.Unmarshal(&updated); err != nil {
				zap.L().Warn("role catalog reload failed", zap.Error(err))
				return
			}
			updated = normalizeRoleCatalog(updated)
			if err := validateRoleCatalog(updated); err != nil {
				zap.L().Warn("invalid role catalog ignored", zap.Error(err))
				return
			}
			holder.current.Store(updated)
			zap.L().Info("role catalog reloaded", zap.String("file", e.Name))
		})
		v.WatchConfig()
	}

	return holder, nil
}

func (h *RoleCatalogHolder) Get() RoleCatalog {
	return h.current.Load().(RoleCatalog)
}

func normalizeRoleCatalog(c RoleCatalog) RoleCatalog {
	out := RoleCatalog{Roles: make([]RoleDefinition, 0, len(c.Roles))}
	for _, r := range c.Roles {
		code := strings.TrimSpace(r.Code)
		if code == "" {
			code = r.Name
		}
		r.Code = slug.Make(code)
		r.Name = strings.TrimSpace(r.Name)
		if r.Name == "" {
			r.Name = r.Code
		}
		out.Roles = append(out.Roles, r)
	}
	return out
}

func validateRoleCatalog(c RoleCatalog) error {
	if len(c.Roles) == 0 {
		return errors.New("roles cannot be empty")
	}
	seen := make(map[string]struct{}, len(c.Roles))
	topLevel := 0
	for _, r := range c.Roles {
		if r.Code == "" {
			return errors.New("role code cannot be empty")
		}
		if _, ok := seen[r.Code]; ok {
			return fmt.Errorf("duplicate role %q", r.Code)
		}
		seen[r.Code] = struct{}{}
		if r.TopLevel {
			topLevel++
		}
	}
	if topLevel != 1 {
		return fmt.Errorf("exactly one top-level role required, got %d", topLevel)
	}
	return nil
}
