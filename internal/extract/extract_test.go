package extract

import (
	"context"
	"strings"
	"testing"

	"costscope/internal/graph"
)

const tsFixture = `import OpenAI from "openai";
import { Stripe } from "stripe";

const client = new OpenAI();

export function syncUsers(users) {
  return users.map(u => u.id);
}

const chargeAll = async (customers) => {
  for (const c of customers) {
    await stripe.charges.create({ customer: c });
  }
};

export class BillingService {
  constructor(key) {
    this.key = key;
  }

  async invoice(customer) {
    return stripe.invoices.create({ customer });
  }
}
`

func parseFixture(t *testing.T, path, source string) []graph.CodeUnit {
	t.Helper()
	units, err := New(nil).ParseFile(context.Background(), path, []byte(source))
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	return units
}

func unitByName(units []graph.CodeUnit, name string) *graph.CodeUnit {
	for i := range units {
		if units[i].Name == name {
			return &units[i]
		}
	}
	return nil
}

func TestParseTypeScript(t *testing.T) {
	units := parseFixture(t, "src/billing.ts", tsFixture)

	tests := []struct {
		name string
		kind graph.UnitKind
	}{
		{"syncUsers", graph.KindFunction},
		{"chargeAll", graph.KindFunction},
		{"BillingService", graph.KindClass},
		{"BillingService.constructor", graph.KindMethod},
		{"BillingService.invoice", graph.KindMethod},
	}
	for _, tt := range tests {
		u := unitByName(units, tt.name)
		if u == nil {
			t.Errorf("missing unit %q in %v", tt.name, names(units))
			continue
		}
		if u.Kind != tt.kind {
			t.Errorf("unit %q kind = %q, want %q", tt.name, u.Kind, tt.kind)
		}
		if u.ID == "" {
			t.Errorf("unit %q has empty id", tt.name)
		}
		if u.Location.StartLine <= 0 || u.Location.EndLine < u.Location.StartLine {
			t.Errorf("unit %q has bad location %+v", tt.name, u.Location)
		}
		if u.SourceText == "" {
			t.Errorf("unit %q has empty source text", tt.name)
		}
	}
}

func TestParseTypeScriptImports(t *testing.T) {
	units := parseFixture(t, "src/billing.ts", tsFixture)
	u := unitByName(units, "syncUsers")
	if u == nil {
		t.Fatal("missing unit syncUsers")
	}
	joined := strings.Join(u.Dependencies, "\n")
	if !strings.Contains(joined, `"openai"`) || !strings.Contains(joined, `"stripe"`) {
		t.Errorf("dependencies missing imports: %v", u.Dependencies)
	}
}

func TestParseJavaScriptRequire(t *testing.T) {
	source := `const stripe = require("stripe")(process.env.KEY);

function charge(c) {
  return stripe.charges.create(c);
}
`
	units := parseFixture(t, "lib/charge.js", source)
	u := unitByName(units, "charge")
	if u == nil {
		t.Fatalf("missing unit charge in %v", names(units))
	}
	joined := strings.Join(u.Dependencies, "\n")
	if !strings.Contains(joined, `require("stripe")`) {
		t.Errorf("dependencies missing require line: %v", u.Dependencies)
	}
}

func TestParsePython(t *testing.T) {
	source := `import openai
from stripe import Charge

def sync_users(users):
    return [u.id for u in users]

class Biller:
    def __init__(self, key):
        self.key = key

    def invoice(self, customer):
        return Charge.create(customer=customer)

async def backfill():
    pass
`
	units := parseFixture(t, "scripts/billing.py", source)

	tests := []struct {
		name string
		kind graph.UnitKind
	}{
		{"sync_users", graph.KindFunction},
		{"Biller", graph.KindClass},
		{"Biller.__init__", graph.KindMethod},
		{"Biller.invoice", graph.KindMethod},
		{"backfill", graph.KindFunction},
	}
	for _, tt := range tests {
		u := unitByName(units, tt.name)
		if u == nil {
			t.Errorf("missing unit %q in %v", tt.name, names(units))
			continue
		}
		if u.Kind != tt.kind {
			t.Errorf("unit %q kind = %q, want %q", tt.name, u.Kind, tt.kind)
		}
	}

	u := unitByName(units, "sync_users")
	if u == nil {
		t.Fatal("missing unit sync_users")
	}
	joined := strings.Join(u.Dependencies, "\n")
	if !strings.Contains(joined, "import openai") || !strings.Contains(joined, "from stripe import Charge") {
		t.Errorf("dependencies missing imports: %v", u.Dependencies)
	}
	if u.SourceText != "def sync_users(users):\n    return [u.id for u in users]" {
		t.Errorf("unexpected source text: %q", u.SourceText)
	}
}

func TestPythonNestedDefsNotEmitted(t *testing.T) {
	source := `def outer():
    def inner():
        pass
    return inner
`
	units := parseFixture(t, "a.py", source)
	if len(units) != 1 || units[0].Name != "outer" {
		t.Fatalf("got %v, want only outer", names(units))
	}
}

func TestUnitIDStable(t *testing.T) {
	a := UnitID("src/app.ts", 12, "syncUsers")
	b := UnitID("src/app.ts", 12, "syncUsers")
	if a != b {
		t.Fatalf("same inputs gave different ids: %s vs %s", a, b)
	}
	if len(a) != 16 {
		t.Fatalf("id %q is not 16 hex chars", a)
	}
	if UnitID("src/app.ts", 13, "syncUsers") == a {
		t.Error("line change did not change id")
	}
	if UnitID("src/other.ts", 12, "syncUsers") == a {
		t.Error("path change did not change id")
	}
}

func TestUnitIDsUnaffectedByEditsElsewhere(t *testing.T) {
	before := parseFixture(t, "src/billing.ts", tsFixture)
	// Append a new function; nothing above it moves.
	after := parseFixture(t, "src/billing.ts", tsFixture+"\nexport function extra() {}\n")

	for _, u := range before {
		moved := unitByName(after, u.Name)
		if moved == nil {
			t.Errorf("unit %q missing after edit", u.Name)
			continue
		}
		if moved.ID != u.ID {
			t.Errorf("unit %q id changed after unrelated edit: %s -> %s", u.Name, u.ID, moved.ID)
		}
	}
	if unitByName(after, "extra") == nil {
		t.Error("new unit not extracted")
	}
}

func TestSupports(t *testing.T) {
	e := New(nil)
	for _, path := range []string{"a.ts", "a.tsx", "a.js", "a.jsx", "a.mjs", "a.cjs", "a.py"} {
		if !e.Supports(path) {
			t.Errorf("Supports(%q) = false", path)
		}
	}
	for _, path := range []string{"a.go", "a.rb", "README.md"} {
		if e.Supports(path) {
			t.Errorf("Supports(%q) = true", path)
		}
	}
}

func TestParseFileUnsupportedExtension(t *testing.T) {
	units, err := New(nil).ParseFile(context.Background(), "a.go", []byte("package a"))
	if err != nil || units != nil {
		t.Fatalf("got (%v, %v), want (nil, nil)", units, err)
	}
}

func names(units []graph.CodeUnit) []string {
	out := make([]string, len(units))
	for i, u := range units {
		out[i] = u.Name
	}
	return out
}
