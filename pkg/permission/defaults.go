package permission

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Scope is the axis along which a level is granted
type Scope string

const (
	ScopePublic       Scope = "public"
	ScopeOrganization Scope = "organization"
	ScopeUser         Scope = "user"
	ScopeGroup        Scope = "group"
)

// Default is the permission policy for one resource type: which levels
// each scope may be set to, and the values a fresh permission row gets.
type Default struct {
	PublicChoices       []Level `yaml:"public_choices"`
	OrganizationChoices []Level `yaml:"organization_choices"`
	UserChoices         []Level `yaml:"user_choices"`
	GroupChoices        []Level `yaml:"group_choices"`
	DefaultPublic       Level   `yaml:"default_public"`
	DefaultOrganization Level   `yaml:"default_organization"`
}

var (
	metadataUserChoices = []Level{LevelList, LevelRead, LevelWrite, LevelShare, LevelOwner}
	dataUserChoices     = []Level{LevelList, LevelRead, LevelReadData, LevelWrite, LevelWriteData, LevelShare, LevelOwner}

	metadataOrgChoices = []Level{LevelNone, LevelList, LevelRead, LevelWrite}
	dataOrgChoices     = []Level{LevelNone, LevelList, LevelRead, LevelReadData, LevelWrite, LevelWriteData}

	metadataPublicChoices = []Level{LevelNone, LevelList, LevelRead}
	dataPublicChoices     = []Level{LevelNone, LevelList, LevelRead, LevelReadData}
)

func metadataDefault(public, org Level) Default {
	return Default{
		PublicChoices:       metadataPublicChoices,
		OrganizationChoices: metadataOrgChoices,
		UserChoices:         metadataUserChoices,
		GroupChoices:        metadataUserChoices,
		DefaultPublic:       public,
		DefaultOrganization: org,
	}
}

func dataDefault(public, org Level) Default {
	return Default{
		PublicChoices:       dataPublicChoices,
		OrganizationChoices: dataOrgChoices,
		UserChoices:         dataUserChoices,
		GroupChoices:        dataUserChoices,
		DefaultPublic:       public,
		DefaultOrganization: org,
	}
}

// builtinDefaults is the shipped per-resource-type policy. Operators
// can override entries with a YAML policy file, see Policy.LoadFile.
func builtinDefaults() map[ResourceType]Default {
	return map[ResourceType]Default{
		TypeDashboard:          metadataDefault(LevelNone, LevelList),
		TypeIndicator:          dataDefault(LevelNone, LevelList),
		TypeContextLayer:       dataDefault(LevelNone, LevelList),
		TypeRelatedTable:       dataDefault(LevelNone, LevelList),
		TypeReferenceLayerView: dataDefault(LevelRead, LevelRead),
		TypeHarvester:          metadataDefault(LevelNone, LevelNone),
		TypeGroup:              metadataDefault(LevelNone, LevelList),
		TypeBasemap:            metadataDefault(LevelList, LevelRead),
		TypeStyle:              metadataDefault(LevelList, LevelRead),
		TypeCloudNativeGIS:     dataDefault(LevelNone, LevelList),
	}
}

// Policy holds the active permission-defaults catalog. Safe for
// concurrent use; LoadFile swaps entries atomically.
type Policy struct {
	mu       sync.RWMutex
	defaults map[ResourceType]Default
}

// NewPolicy returns the built-in policy catalog
func NewPolicy() *Policy {
	return &Policy{defaults: builtinDefaults()}
}

// For returns the policy entry for a resource type
func (p *Policy) For(rt ResourceType) Default {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.defaults[rt]
}

// Offered reports whether a level may be assigned for the given
// resource type and scope
func (p *Policy) Offered(rt ResourceType, scope Scope, level Level) bool {
	def := p.For(rt)

	var choices []Level
	switch scope {
	case ScopePublic:
		choices = def.PublicChoices
	case ScopeOrganization:
		choices = def.OrganizationChoices
	case ScopeUser:
		choices = def.UserChoices
	case ScopeGroup:
		choices = def.GroupChoices
	default:
		return false
	}

	for _, choice := range choices {
		if choice == level {
			return true
		}
	}
	return false
}

// Validate checks a level assignment against the catalog, returning
// ErrInvalidLevel for unknown levels and for levels the resource type
// does not offer at that scope.
func (p *Policy) Validate(rt ResourceType, scope Scope, level Level) error {
	if _, err := ParseLevel(string(level)); err != nil {
		return err
	}
	if !p.Offered(rt, scope, level) {
		return fmt.Errorf("%w: %s is not offered for %s at %s scope", ErrInvalidLevel, level, rt, scope)
	}
	return nil
}

// LoadFile merges policy overrides from a YAML file. Entries are keyed
// by resource type name; omitted types keep their current policy. The
// whole file is rejected if any entry references an unknown type or
// level.
func (p *Policy) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read policy file: %w", err)
	}

	var overrides map[string]Default
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return fmt.Errorf("failed to parse policy file: %w", err)
	}

	validated := make(map[ResourceType]Default, len(overrides))
	for name, def := range overrides {
		rt, err := ParseResourceType(name)
		if err != nil {
			return fmt.Errorf("policy file: %w", err)
		}
		for _, levels := range [][]Level{
			def.PublicChoices,
			def.OrganizationChoices,
			def.UserChoices,
			def.GroupChoices,
			{def.DefaultPublic, def.DefaultOrganization},
		} {
			for _, level := range levels {
				if _, err := ParseLevel(string(level)); err != nil {
					return fmt.Errorf("policy file entry %s: %w", name, err)
				}
			}
		}
		validated[rt] = def
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for rt, def := range validated {
		p.defaults[rt] = def
	}
	return nil
}
