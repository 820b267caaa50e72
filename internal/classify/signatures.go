package classify

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"costscope/internal/graph"
)

// ProviderSignature describes how one known provider shows up in code.
// Modules match against import statements, Calls against extracted call
// shapes; both are case-insensitive substring matches.
type ProviderSignature struct {
	Name     string   `toml:"name" yaml:"name"`
	Category string   `toml:"category" yaml:"category"`
	IsPaid   bool     `toml:"isPaid" yaml:"isPaid"`
	Modules  []string `toml:"modules" yaml:"modules"`
	Calls    []string `toml:"calls" yaml:"calls"`
}

// SignatureTable is the curated knowledge driving quick classification and
// loop-cost detection. It is injectable configuration: the table can grow
// without touching detection logic.
type SignatureTable struct {
	Providers   []ProviderSignature `toml:"provider" yaml:"providers"`
	CostlyCalls []string            `toml:"costlyCalls" yaml:"costlyCalls"`
}

// DefaultSignatureTable returns the compiled-in table.
func DefaultSignatureTable() *SignatureTable {
	return &SignatureTable{
		Providers: []ProviderSignature{
			{Name: "openai", Category: "llm", IsPaid: true,
				Modules: []string{"openai"},
				Calls:   []string{"openai.", ".chat.completions.create", "chatcompletion.create"}},
			{Name: "anthropic", Category: "llm", IsPaid: true,
				Modules: []string{"anthropic", "@anthropic-ai"},
				Calls:   []string{"anthropic.", ".messages.create"}},
			{Name: "google-gemini", Category: "llm", IsPaid: true,
				Modules: []string{"google.generativeai", "@google/generative-ai"},
				Calls:   []string{".generate_content", ".generatecontent"}},
			{Name: "cohere", Category: "llm", IsPaid: true,
				Modules: []string{"cohere"},
				Calls:   []string{"cohere."}},
			{Name: "stripe", Category: "payment", IsPaid: true,
				Modules: []string{"stripe"},
				Calls:   []string{"stripe."}},
			{Name: "paypal", Category: "payment", IsPaid: true,
				Modules: []string{"paypal", "@paypal"},
				Calls:   []string{"paypal."}},
			{Name: "aws", Category: "cloud", IsPaid: true,
				Modules: []string{"boto3", "aws-sdk", "@aws-sdk"},
				Calls:   []string{"boto3.", ".putobject", ".getobject", "dynamodb."}},
			{Name: "gcp", Category: "cloud", IsPaid: true,
				Modules: []string{"google.cloud", "@google-cloud"},
				Calls:   []string{}},
			{Name: "azure", Category: "cloud", IsPaid: true,
				Modules: []string{"azure.", "@azure/"},
				Calls:   []string{}},
			{Name: "s3", Category: "storage", IsPaid: true,
				Modules: []string{"@aws-sdk/client-s3"},
				Calls:   []string{"s3.upload", "s3.put_object", "s3.get_object"}},
			{Name: "mongodb", Category: "database", IsPaid: true,
				Modules: []string{"mongodb", "mongoose", "pymongo"},
				Calls:   []string{".aggregate", ".insertmany", ".findone"}},
			{Name: "postgres", Category: "database", IsPaid: false,
				Modules: []string{"psycopg2", "pg", "sqlalchemy"},
				Calls:   []string{"cursor.execute", "pool.query"}},
			{Name: "redis", Category: "database", IsPaid: false,
				Modules: []string{"redis", "ioredis"},
				Calls:   []string{"redis."}},
			{Name: "sendgrid", Category: "email", IsPaid: true,
				Modules: []string{"sendgrid", "@sendgrid"},
				Calls:   []string{"sendgrid.", ".send("}},
			{Name: "mailgun", Category: "email", IsPaid: true,
				Modules: []string{"mailgun"},
				Calls:   []string{"mailgun."}},
			{Name: "segment", Category: "analytics", IsPaid: true,
				Modules: []string{"analytics-node", "segment"},
				Calls:   []string{"analytics.track", "analytics.identify"}},
			{Name: "mixpanel", Category: "analytics", IsPaid: true,
				Modules: []string{"mixpanel"},
				Calls:   []string{"mixpanel."}},
		},
		CostlyCalls: []string{
			"openai.",
			"anthropic.",
			".chat.completions.create",
			".messages.create",
			".generate_content",
			"chatcompletion.create",
			"requests.get",
			"requests.post",
			"fetch(",
			"axios.",
			"http.get",
			".execute(",
			".query(",
			".scan(",
			".aggregate(",
			".put_object(",
			".get_object(",
			".putobject(",
			".getobject(",
			"s3.upload(",
			"stripe.",
		},
	}
}

// LoadSignatureTable reads a table from a .toml, .yaml or .yml file.
// An empty path returns the compiled-in defaults.
func LoadSignatureTable(path string) (*SignatureTable, error) {
	if path == "" {
		return DefaultSignatureTable(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signature table: %w", err)
	}

	var table SignatureTable
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &table); err != nil {
			return nil, fmt.Errorf("failed to parse signature table: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &table); err != nil {
			return nil, fmt.Errorf("failed to parse signature table: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported signature table format: %s", filepath.Ext(path))
	}

	// A partial file overrides only what it declares.
	defaults := DefaultSignatureTable()
	if len(table.Providers) == 0 {
		table.Providers = defaults.Providers
	}
	if len(table.CostlyCalls) == 0 {
		table.CostlyCalls = defaults.CostlyCalls
	}
	return &table, nil
}

// categoryFromString maps a free-form category to the closed set, falling
// back to other.
func categoryFromString(s string) graph.Category {
	switch graph.Category(strings.ToLower(s)) {
	case graph.CategoryLLM, graph.CategoryPayment, graph.CategoryDatabase,
		graph.CategoryCloud, graph.CategoryAnalytics, graph.CategoryEmail,
		graph.CategoryStorage:
		return graph.Category(strings.ToLower(s))
	default:
		return graph.CategoryOther
	}
}

// roleFromString maps a free-form role to the closed set, falling back to
// none.
func roleFromString(s string) graph.Role {
	switch graph.Role(strings.ToLower(s)) {
	case graph.RoleConsumer, graph.RoleProvider:
		return graph.Role(strings.ToLower(s))
	default:
		return graph.RoleNone
	}
}
