package workflow

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestBuiltinRegistryValidates(t *testing.T) {
	r, err := NewRegistry(Builtin()...)
	if err != nil {
		t.Fatalf("builtin table invalid: %v", err)
	}
	if got := len(r.Entities()); got != len(Builtin()) {
		t.Fatalf("expected %d entities, got %d", len(Builtin()), got)
	}
}

func TestCarDriverLinkedTransitions(t *testing.T) {
	r := NewBuiltinRegistry()

	got := r.ReachableFrom(EntityCarDriver, StatusLinked)
	want := []string{StatusOnRequest, StatusLeaved, StatusRejected}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if !r.IsLegalTransition(EntityCarDriver, StatusLinked, StatusRejected) {
		t.Fatal("expected Linked -> Rejected to be allowed")
	}
	if r.IsLegalTransition(EntityCarDriver, StatusLinked, StatusLinked) {
		t.Fatal("self transition must not be offered")
	}
}

func TestTerminalStatusHasNoTransitions(t *testing.T) {
	r := NewBuiltinRegistry()

	if got := r.ReachableFrom(EntityCarDriver, StatusLeaved); len(got) != 0 {
		t.Fatalf("expected no transitions from Leaved, got %v", got)
	}
	if !r.IsTerminal(EntityCarDriver, StatusLeaved) {
		t.Fatal("expected Leaved to be terminal")
	}
	err := r.CheckTransition(EntityCarDriver, StatusLeaved, StatusLinked)
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
}

func TestTerminalStatesAreAbsorbing(t *testing.T) {
	r := NewBuiltinRegistry()

	for _, entity := range r.Entities() {
		def, _ := r.Definition(entity)
		for _, s := range def.Statuses {
			if len(r.ReachableFrom(entity, s.Name)) != 0 {
				continue
			}
			_ = append(r.ReachableFrom(entity, s.Name), "Injected")
			for _, other := range def.Statuses {
				_ = r.IsLegalTransition(entity, s.Name, other.Name)
				_, _ = r.Describe(entity, other.Name)
			}
			if again := r.ReachableFrom(entity, s.Name); len(again) != 0 {
				t.Fatalf("%s/%s became reachable after calls: %v", entity, s.Name, again)
			}
		}
	}
}

func TestReachableFromReturnsCopy(t *testing.T) {
	r := NewBuiltinRegistry()

	got := r.ReachableFrom(EntityDriver, StatusPending)
	got[0] = "Hacked"
	if again := r.ReachableFrom(EntityDriver, StatusPending); again[0] != StatusActive {
		t.Fatalf("registry mutated through returned slice: %v", again)
	}
}

func TestUnknownEntityAndStatus(t *testing.T) {
	r := NewBuiltinRegistry()

	if got := r.ReachableFrom("spaceship", "Flying"); len(got) != 0 {
		t.Fatalf("expected empty set for unknown entity, got %v", got)
	}
	if _, err := r.Describe(EntityDriver, "Sleeping"); !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus, got %v", err)
	}
	if _, err := r.Describe("spaceship", StatusActive); !errors.Is(err, ErrUnknownEntity) {
		t.Fatalf("expected ErrUnknownEntity, got %v", err)
	}
	d := r.DescribeOrDefault(EntityDriver, "Sleeping")
	if d != DefaultDescriptor("Sleeping") {
		t.Fatalf("expected neutral style, got %+v", d)
	}
}

func TestWalletLabelAliases(t *testing.T) {
	r := NewBuiltinRegistry()

	token, err := r.Resolve(EntityWalletTransaction, "Accepted")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if token != WalletAccepted {
		t.Fatalf("expected %q, got %q", WalletAccepted, token)
	}
	if !r.IsLegalTransition(EntityWalletTransaction, "Pending", "Accepted") {
		t.Fatal("expected label based transition to be legal")
	}
	if !r.IsLegalTransition(EntityWalletTransaction, WalletPending, WalletRejected) {
		t.Fatal("expected token based transition to be legal")
	}
	d, err := r.Describe(EntityWalletTransaction, "accepted")
	if err != nil || d.Name != WalletAccepted {
		t.Fatalf("unexpected descriptor %+v, err %v", d, err)
	}
	if got := r.ReachableFrom(EntityWalletTransaction, "Accepted"); len(got) != 0 {
		t.Fatalf("accepted is terminal, got %v", got)
	}
}

func TestDisabledEntity(t *testing.T) {
	r, err := NewRegistry(Definition{
		Entity:      "archive",
		Statuses:    []StatusDescriptor{{Name: "A"}, {Name: "B"}},
		Transitions: map[string][]string{"A": {"B"}},
		Disabled:    true,
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if got := r.ReachableFrom("archive", "A"); len(got) != 0 {
		t.Fatalf("expected no transitions for disabled entity, got %v", got)
	}
	d, _ := r.Describe("archive", "A")
	if d.Label != "A" {
		t.Fatalf("expected label to default to the name, got %q", d.Label)
	}
}

func TestValidationRejectsBrokenTables(t *testing.T) {
	tests := []struct {
		name string
		def  Definition
		want string
	}{
		{
			name: "unknown target",
			def: Definition{Entity: "x", Statuses: []StatusDescriptor{{Name: "A"}},
				Transitions: map[string][]string{"A": {"B"}}},
			want: "unknown status \"B\"",
		},
		{
			name: "unknown source",
			def: Definition{Entity: "x", Statuses: []StatusDescriptor{{Name: "A"}},
				Transitions: map[string][]string{"Z": {"A"}}},
			want: "transition from unknown status",
		},
		{
			name: "terminal with edges",
			def: Definition{Entity: "x", Statuses: []StatusDescriptor{{Name: "A"}, {Name: "B"}},
				Transitions: map[string][]string{"A": {"B"}}, Terminal: []string{"A"}},
			want: "has outgoing transitions",
		},
		{
			name: "alias to nowhere",
			def:  Definition{Entity: "x", Statuses: []StatusDescriptor{{Name: "A"}}, Aliases: map[string]string{"Done": "done"}},
			want: "alias",
		},
		{
			name: "missing entity",
			def:  Definition{Statuses: []StatusDescriptor{{Name: "A"}}},
			want: "entity type is required",
		},
		{
			name: "duplicate status",
			def:  Definition{Entity: "x", Statuses: []StatusDescriptor{{Name: "A"}, {Name: "A"}}},
			want: "duplicate status",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.def)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestDuplicateEntityRejected(t *testing.T) {
	def := Definition{Entity: "x", Statuses: []StatusDescriptor{{Name: "A"}}}
	if _, err := NewRegistry(def, def); err == nil {
		t.Fatal("expected duplicate entity error")
	}
}

func TestLoadMergesFileOverBuiltin(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workflows.yaml")
	data := `workflows:
  - entity: offer
    statuses:
      - name: Active
        label: status.Active
      - name: Inactive
      - name: Archived
    transitions:
      Active: [Inactive, Archived]
      Inactive: [Active, Archived]
    terminal: [Archived]
  - entity: promoBanner
    statuses:
      - name: Draft
      - name: Live
    transitions:
      Draft: [Live]
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	r, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !r.IsLegalTransition(EntityOffer, StatusActive, "Archived") {
		t.Fatal("expected override to apply")
	}
	if !r.IsTerminal(EntityOffer, "Archived") {
		t.Fatal("expected Archived to be terminal")
	}
	if !r.IsLegalTransition("promoBanner", "Draft", "Live") {
		t.Fatal("expected new entity to be appended")
	}
	if !r.IsLegalTransition(EntityDriver, StatusPending, StatusActive) {
		t.Fatal("untouched builtin entity must survive the merge")
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	if _, err := Parse([]byte("workflows:\n  - entity: x\n    colour: red\n")); err == nil {
		t.Fatal("expected strict parse error")
	}
}
