package schema

import (
	"fmt"
	"strings"

	"ariga.io/atlas/sql/schema"
)

// ValidationError is one finding of a validation run.
type ValidationError struct {
	Table   string
	Column  string
	Message string
	// Breaking marks changes that can lose data or fail on existing rows.
	Breaking bool
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s.%s: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Table, e.Message)
}

// ValidationResult collects the findings of a validation run. Errors stop
// a migration, warnings are logged.
type ValidationResult struct {
	Errors   []*ValidationError
	Warnings []*ValidationError
}

// HasErrors reports whether there are errors.
func (r *ValidationResult) HasErrors() bool { return len(r.Errors) > 0 }

// HasWarnings reports whether there are warnings.
func (r *ValidationResult) HasWarnings() bool { return len(r.Warnings) > 0 }

// HasBreakingChanges reports whether any finding is breaking.
func (r *ValidationResult) HasBreakingChanges() bool {
	for _, list := range [][]*ValidationError{r.Errors, r.Warnings} {
		for _, e := range list {
			if e.Breaking {
				return true
			}
		}
	}
	return false
}

func (r *ValidationResult) String() string {
	if !r.HasErrors() && !r.HasWarnings() {
		return "no issues found"
	}
	var sb strings.Builder
	write := func(title string, list []*ValidationError) {
		if len(list) == 0 {
			return
		}
		sb.WriteString(title)
		sb.WriteString(":\n")
		for _, e := range list {
			sb.WriteString("  - ")
			sb.WriteString(e.Error())
			if e.Breaking {
				sb.WriteString(" [breaking]")
			}
			sb.WriteByte('\n')
		}
	}
	write("errors", r.Errors)
	write("warnings", r.Warnings)
	return sb.String()
}

func (r *ValidationResult) add(err *ValidationError, allowed bool) {
	if allowed {
		r.Warnings = append(r.Warnings, err)
	} else {
		r.Errors = append(r.Errors, err)
	}
}

func (r *ValidationResult) merge(o *ValidationResult) {
	r.Errors = append(r.Errors, o.Errors...)
	r.Warnings = append(r.Warnings, o.Warnings...)
}

// ValidateOption relaxes the checks of ValidateDiff.
type ValidateOption func(*validateConfig)

type validateConfig struct {
	dropColumn    bool
	dropTable     bool
	dropIndex     bool
	nullToNotNull bool
}

// AllowDropColumn turns dropped columns into warnings.
func AllowDropColumn() ValidateOption {
	return func(c *validateConfig) { c.dropColumn = true }
}

// AllowDropTable turns dropped tables into warnings.
func AllowDropTable() ValidateOption {
	return func(c *validateConfig) { c.dropTable = true }
}

// AllowDropIndex turns dropped indexes into warnings.
func AllowDropIndex() ValidateOption {
	return func(c *validateConfig) { c.dropIndex = true }
}

// AllowNullToNotNull turns NULL to NOT NULL changes into warnings.
func AllowNullToNotNull() ValidateOption {
	return func(c *validateConfig) { c.nullToNotNull = true }
}

// ValidateDiff checks the move from the current tables to the desired ones
// for changes that can lose data or fail on existing rows.
//
//	result := schema.ValidateDiff(current.Tables, desired, schema.AllowDropIndex())
//	if result.HasErrors() {
//	    return fmt.Errorf("unsafe migration:\n%s", result)
//	}
func ValidateDiff(current, desired []*schema.Table, opts ...ValidateOption) *ValidationResult {
	cfg := &validateConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	result := &ValidationResult{}
	want := make(map[string]*schema.Table, len(desired))
	for _, t := range desired {
		want[t.Name] = t
	}
	for _, cur := range current {
		t, ok := want[cur.Name]
		if !ok {
			result.add(&ValidationError{Table: cur.Name, Message: "table will be dropped", Breaking: true}, cfg.dropTable)
			continue
		}
		validateTableDiff(cur, t, cfg, result)
	}
	return result
}

func validateTableDiff(current, desired *schema.Table, cfg *validateConfig, result *ValidationResult) {
	for _, c := range current.Columns {
		if findColumn(desired, c.Name) == nil {
			result.add(&ValidationError{Table: current.Name, Column: c.Name, Message: "column will be dropped", Breaking: true}, cfg.dropColumn)
		}
	}
	for _, want := range desired.Columns {
		have := findColumn(current, want.Name)
		if have == nil {
			if !want.Type.Null && want.Default == nil {
				result.Warnings = append(result.Warnings, &ValidationError{
					Table:   current.Name,
					Column:  want.Name,
					Message: "new NOT NULL column without default fails on tables with rows",
				})
			}
			continue
		}
		if from, to := typeName(have.Type.Type), typeName(want.Type.Type); !strings.EqualFold(from, to) {
			result.Warnings = append(result.Warnings, &ValidationError{
				Table:   current.Name,
				Column:  want.Name,
				Message: fmt.Sprintf("column type changes from %s to %s", from, to),
			})
		}
		if have.Type.Null && !want.Type.Null {
			result.add(&ValidationError{
				Table:    current.Name,
				Column:   want.Name,
				Message:  "column changes from NULL to NOT NULL and fails on NULL values",
				Breaking: true,
			}, cfg.nullToNotNull)
		}
	}
	for _, idx := range current.Indexes {
		if strings.HasPrefix(idx.Name, "sqlite_autoindex_") {
			continue
		}
		if findIndex(desired, idx.Name) == nil {
			result.add(&ValidationError{Table: current.Name, Message: fmt.Sprintf("index %q will be dropped", idx.Name)}, cfg.dropIndex)
		}
	}
}

// ValidateTable checks a table definition for duplicate names and
// dangling references.
func ValidateTable(t *schema.Table) *ValidationResult {
	result := &ValidationResult{}
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if seen[c.Name] {
			result.Errors = append(result.Errors, &ValidationError{Table: t.Name, Column: c.Name, Message: "duplicate column name"})
		}
		seen[c.Name] = true
	}
	if t.PrimaryKey != nil {
		for _, part := range t.PrimaryKey.Parts {
			if part.C != nil && !seen[part.C.Name] {
				result.Errors = append(result.Errors, &ValidationError{Table: t.Name, Column: part.C.Name, Message: "primary key column does not exist"})
			}
		}
	}
	indexes := make(map[string]bool, len(t.Indexes))
	for _, idx := range t.Indexes {
		if indexes[idx.Name] {
			result.Errors = append(result.Errors, &ValidationError{Table: t.Name, Message: fmt.Sprintf("duplicate index name %q", idx.Name)})
		}
		indexes[idx.Name] = true
		for _, part := range idx.Parts {
			if part.C != nil && !seen[part.C.Name] {
				result.Errors = append(result.Errors, &ValidationError{Table: t.Name, Column: part.C.Name, Message: fmt.Sprintf("index %q references a missing column", idx.Name)})
			}
		}
	}
	for _, fk := range t.ForeignKeys {
		for _, c := range fk.Columns {
			if !seen[c.Name] {
				result.Errors = append(result.Errors, &ValidationError{Table: t.Name, Column: c.Name, Message: fmt.Sprintf("foreign key %q references a missing column", fk.Symbol)})
			}
		}
		if len(fk.Columns) != len(fk.RefColumns) {
			result.Errors = append(result.Errors, &ValidationError{Table: t.Name, Message: fmt.Sprintf("foreign key %q has %d columns but %d referenced columns", fk.Symbol, len(fk.Columns), len(fk.RefColumns))})
		}
	}
	return result
}

// ValidateSchema validates each table and the references between them.
func ValidateSchema(tables []*schema.Table) *ValidationResult {
	result := &ValidationResult{}
	names := make(map[string]bool, len(tables))
	for _, t := range tables {
		if names[t.Name] {
			result.Errors = append(result.Errors, &ValidationError{Table: t.Name, Message: "duplicate table name"})
		}
		names[t.Name] = true
		result.merge(ValidateTable(t))
	}
	for _, t := range tables {
		for _, fk := range t.ForeignKeys {
			if fk.RefTable == nil || !names[fk.RefTable.Name] {
				result.Errors = append(result.Errors, &ValidationError{Table: t.Name, Message: fmt.Sprintf("foreign key %q references an unknown table", fk.Symbol)})
			}
		}
	}
	return result
}

func findColumn(t *schema.Table, name string) *schema.Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func findIndex(t *schema.Table, name string) *schema.Index {
	for _, idx := range t.Indexes {
		if idx.Name == name {
			return idx
		}
	}
	return nil
}
