package permission

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestPolicyBuiltinCoverage(t *testing.T) {
	policy := NewPolicy()

	for _, rt := range ResourceTypes() {
		def := policy.For(rt)
		if len(def.UserChoices) == 0 {
			t.Errorf("Resource type %s has no user choices", rt)
		}
		if _, err := ParseLevel(string(def.DefaultPublic)); err != nil {
			t.Errorf("Resource type %s has invalid default public level: %v", rt, err)
		}
		if _, err := ParseLevel(string(def.DefaultOrganization)); err != nil {
			t.Errorf("Resource type %s has invalid default organization level: %v", rt, err)
		}

		// Data levels may only be offered to data-capable types.
		for _, level := range def.UserChoices {
			if (level == LevelReadData || level == LevelWriteData) && !DataCapable(rt) {
				t.Errorf("Resource type %s offers data level %s without being data-capable", rt, level)
			}
		}
	}
}

func TestPolicyValidate(t *testing.T) {
	policy := NewPolicy()

	if err := policy.Validate(TypeIndicator, ScopeUser, LevelReadData); err != nil {
		t.Errorf("Expected READ_DATA to be valid for indicator users, got %v", err)
	}
	if err := policy.Validate(TypeDashboard, ScopeUser, LevelReadData); !errors.Is(err, ErrInvalidLevel) {
		t.Errorf("Expected ErrInvalidLevel for READ_DATA on dashboard, got %v", err)
	}
	if err := policy.Validate(TypeDashboard, ScopePublic, LevelOwner); !errors.Is(err, ErrInvalidLevel) {
		t.Errorf("Expected ErrInvalidLevel for public OWNER, got %v", err)
	}
	if err := policy.Validate(TypeDashboard, ScopeUser, Level("ROOT")); !errors.Is(err, ErrInvalidLevel) {
		t.Errorf("Expected ErrInvalidLevel for unknown level, got %v", err)
	}
}

func TestPolicyLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	content := `
dashboard:
  public_choices: [NONE, LIST, READ]
  organization_choices: [NONE, LIST, READ, WRITE]
  user_choices: [LIST, READ, WRITE, SHARE, OWNER]
  group_choices: [LIST, READ, WRITE, SHARE, OWNER]
  default_public: READ
  default_organization: READ
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write policy file: %v", err)
	}

	policy := NewPolicy()
	if err := policy.LoadFile(path); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	def := policy.For(TypeDashboard)
	if def.DefaultPublic != LevelRead {
		t.Errorf("Expected overridden default public READ, got %s", def.DefaultPublic)
	}

	// Untouched types keep their builtin policy.
	if got := policy.For(TypeIndicator).DefaultOrganization; got != LevelList {
		t.Errorf("Expected indicator default organization LIST, got %s", got)
	}
}

func TestPolicyLoadFileRejectsBadEntries(t *testing.T) {
	policy := NewPolicy()
	original := policy.For(TypeDashboard)

	cases := map[string]string{
		"unknown type":  "spaceship:\n  default_public: NONE\n",
		"unknown level": "dashboard:\n  default_public: ROOT\n",
		"bad yaml":      "dashboard: [",
	}

	for name, content := range cases {
		path := filepath.Join(t.TempDir(), "policy.yaml")
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write policy file: %v", err)
		}
		if err := policy.LoadFile(path); err == nil {
			t.Errorf("Expected LoadFile to fail for %s", name)
		}
	}

	// A rejected file leaves the catalog untouched.
	if got := policy.For(TypeDashboard); got.DefaultPublic != original.DefaultPublic {
		t.Errorf("Rejected file changed the catalog: %s != %s", got.DefaultPublic, original.DefaultPublic)
	}
}

func TestLevelRankOrdering(t *testing.T) {
	ladder := []Level{LevelNone, LevelList, LevelRead, LevelReadData, LevelWrite, LevelWriteData, LevelShare, LevelOwner}
	for i := 1; i < len(ladder); i++ {
		if ladder[i].Rank() <= ladder[i-1].Rank() {
			t.Errorf("Expected %s > %s", ladder[i], ladder[i-1])
		}
	}
	if Level("BOGUS").Rank() != -1 {
		t.Errorf("Expected unknown level rank -1, got %d", Level("BOGUS").Rank())
	}
	if Level("BOGUS").AtLeast(LevelNone) {
		t.Error("Unknown level must rank below NONE")
	}
}
