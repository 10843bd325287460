package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario drives a database through writes while live queries watch.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema lists CUE schema files to define, in order.
	// Relative paths resolve against the scenario's base path.
	Schema []string `yaml:"schema"`

	// Setup writes run before any watch opens. They must succeed and are
	// not traced.
	Setup []Step `yaml:"setup,omitempty"`

	// Watch opens live queries before the flow. Each contributes its
	// initial result to the trace.
	Watch []Watch `yaml:"watch,omitempty"`

	// Flow is the main sequence of writes. After each one, every watch on
	// the written table contributes its next emission to the trace.
	Flow []Step `yaml:"flow"`

	// Assertions validate the trace and the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one write.
type Step struct {
	// Op is "insert", "update" or "delete".
	Op string `yaml:"op"`

	// Table is the written table.
	Table string `yaml:"table"`

	// Rows are the inserted rows (insert only).
	Rows []map[string]any `yaml:"rows,omitempty"`

	// Where selects the updated or deleted rows. Key order is kept.
	Where yaml.Node `yaml:"where,omitempty"`

	// Set is the update patch (update only).
	Set map[string]any `yaml:"set,omitempty"`

	// Expect checks the write's result. Nil means the write must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected write result. Unset counts are not
// checked.
type ExpectClause struct {
	Insert *int `yaml:"insert,omitempty"`
	Update *int `yaml:"update,omitempty"`
	Delete *int `yaml:"delete,omitempty"`

	// Error expects the write to fail.
	Error bool `yaml:"error,omitempty"`
}

// Watch is a live query followed for the whole flow.
type Watch struct {
	// Name identifies the watch in the trace and in assertions.
	Name string `yaml:"name"`

	Table   string      `yaml:"table"`
	Where   yaml.Node   `yaml:"where,omitempty"`
	Fields  []string    `yaml:"fields,omitempty"`
	OrderBy []OrderSpec `yaml:"order_by,omitempty"`
	Limit   int         `yaml:"limit,omitempty"`
	Skip    int         `yaml:"skip,omitempty"`

	// Include attaches associated rows to each result row.
	Include []IncludeSpec `yaml:"include,omitempty"`

	// Key is the identity column for ops. Empty means the primary key.
	Key string `yaml:"key,omitempty"`
}

// IncludeSpec names an association whose rows a watch attaches.
type IncludeSpec struct {
	Association string        `yaml:"association"`
	Fields      []string      `yaml:"fields,omitempty"`
	Include     []IncludeSpec `yaml:"include,omitempty"`
}

// OrderSpec is one sort key of a watch.
type OrderSpec struct {
	Column string `yaml:"column"`
	Desc   bool   `yaml:"desc,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "final_rows": the watch's last result matches Rows
	// - "emission_count": the watch emitted exactly Count times
	// - "ops_count": the watch's ops of Kind total exactly Count
	// - "final_state": a one-shot query over Table matches Rows or Count
	Type string `yaml:"type"`

	// Watch names the live query (final_rows, emission_count, ops_count).
	Watch string `yaml:"watch,omitempty"`

	// Kind is the op kind counted by ops_count.
	Kind string `yaml:"kind,omitempty"`

	// Table is queried by final_state.
	Table string `yaml:"table,omitempty"`

	// Where filters the final_state query.
	Where yaml.Node `yaml:"where,omitempty"`

	// Rows are matched in order; each row is a subset match and the
	// result must have exactly len(Rows) rows.
	Rows []map[string]any `yaml:"rows,omitempty"`

	// Count is the expected number of emissions, ops or rows.
	Count *int `yaml:"count,omitempty"`
}

// Step ops.
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Assertion type constants.
const (
	AssertFinalRows     = "final_rows"
	AssertEmissionCount = "emission_count"
	AssertOpsCount      = "ops_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file. Schema paths resolve
// against the scenario file's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving schema paths relative to basePath.
//
// Unknown fields are rejected so typos fail loudly.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i, schemaPath := range scenario.Schema {
		if !filepath.IsAbs(schemaPath) && basePath != "" {
			scenario.Schema[i] = filepath.Join(basePath, schemaPath)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Schema) == 0 {
		return fmt.Errorf("schema list is required and must be non-empty")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for _, schemaPath := range s.Schema {
		if _, err := os.Stat(schemaPath); os.IsNotExist(err) {
			return fmt.Errorf("schema file not found: %s", schemaPath)
		}
	}

	for i := range s.Setup {
		if err := validateStep(fmt.Sprintf("setup[%d]", i), &s.Setup[i]); err != nil {
			return err
		}
	}
	for i := range s.Flow {
		if err := validateStep(fmt.Sprintf("flow[%d]", i), &s.Flow[i]); err != nil {
			return err
		}
	}

	watches := make(map[string]bool, len(s.Watch))
	for i, w := range s.Watch {
		if w.Name == "" {
			return fmt.Errorf("watch[%d]: name is required", i)
		}
		if watches[w.Name] {
			return fmt.Errorf("watch[%d]: duplicate name %q", i, w.Name)
		}
		if w.Table == "" {
			return fmt.Errorf("watch[%d]: table is required", i)
		}
		watches[w.Name] = true
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], watches); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(at string, step *Step) error {
	if step.Table == "" {
		return fmt.Errorf("%s: table is required", at)
	}

	switch step.Op {
	case OpInsert:
		if len(step.Rows) == 0 {
			return fmt.Errorf("%s: rows are required for insert", at)
		}
	case OpUpdate:
		if len(step.Set) == 0 {
			return fmt.Errorf("%s: set is required for update", at)
		}
	case OpDelete:
	case "":
		return fmt.Errorf("%s: op is required", at)
	default:
		return fmt.Errorf("%s: unknown op %q", at, step.Op)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, watches map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFinalRows, AssertEmissionCount, AssertOpsCount:
		if !watches[a.Watch] {
			return fmt.Errorf("assertions[%d]: unknown watch %q for %s", index, a.Watch, a.Type)
		}
	}

	switch a.Type {
	case AssertFinalRows:
	case AssertEmissionCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for emission_count", index)
		}
	case AssertOpsCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for ops_count", index)
		}
		switch a.Kind {
		case OpInsert, OpUpdate, OpDelete:
		default:
			return fmt.Errorf("assertions[%d]: kind must be insert, update or delete", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if a.Rows == nil && a.Count == nil {
			return fmt.Errorf("assertions[%d]: rows or count is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
