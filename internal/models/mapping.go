package models

// ConceptRole is the meaning of a non-period column
type ConceptRole string

const (
	RoleAccountCode ConceptRole = "account_code"
	RoleAccountName ConceptRole = "account_name"
	RoleCategory    ConceptRole = "category"
	RoleSubcategory ConceptRole = "subcategory"
)

// Valid reports whether r is a known concept role
func (r ConceptRole) Valid() bool {
	switch r {
	case RoleAccountCode, RoleAccountName, RoleCategory, RoleSubcategory:
		return true
	}
	return false
}

// ConceptColumn binds a column index to a concept role
type ConceptColumn struct {
	Index int         `json:"index"`
	Role  ConceptRole `json:"role"`
}

// PeriodColumn binds a column index to a period label
type PeriodColumn struct {
	Index int    `json:"index"`
	Label string `json:"label"`
}

// DataRange is the inclusive row range holding account rows
type DataRange struct {
	StartRow int `json:"start_row"`
	EndRow   int `json:"end_row"`
}

// Mapping describes where accounts, categories and periods live in a grid
type Mapping struct {
	ConceptColumns []ConceptColumn `json:"concept_columns"`
	PeriodColumns  []PeriodColumn  `json:"period_columns"` // Declared order is period order
	DataRange      DataRange       `json:"data_range"`
	HeaderRow      *int            `json:"header_row,omitempty"`
	StatementType  StatementType   `json:"statement_type,omitempty"`
}

// ColumnFor returns the column index mapped to role, or -1
func (m Mapping) ColumnFor(role ConceptRole) int {
	for _, c := range m.ConceptColumns {
		if c.Role == role {
			return c.Index
		}
	}
	return -1
}

// Validate checks the mapping against the grid it will be applied to
func (m Mapping) Validate(grid Grid) error {
	rows := grid.RowCount()
	cols := grid.ColumnCount()

	if rows == 0 {
		return NewStructuralError("grid is empty")
	}
	if err := m.ValidateShape(); err != nil {
		return err
	}
	if m.DataRange.EndRow >= rows {
		return NewStructuralError("data range end row %d outside grid of %d rows", m.DataRange.EndRow, rows)
	}
	for _, c := range m.ConceptColumns {
		if c.Index >= cols {
			return NewStructuralError("concept column %d outside grid of %d columns", c.Index, cols)
		}
	}
	for _, p := range m.PeriodColumns {
		if p.Index >= cols {
			return NewStructuralError("period column %d outside grid of %d columns", p.Index, cols)
		}
	}
	return nil
}

// ValidateShape checks the invariants that hold regardless of the grid
func (m Mapping) ValidateShape() error {
	if m.DataRange.StartRow < 0 || m.DataRange.EndRow < m.DataRange.StartRow {
		return NewStructuralError("invalid data range %d..%d", m.DataRange.StartRow, m.DataRange.EndRow)
	}
	if len(m.PeriodColumns) == 0 {
		return NewStructuralError("mapping declares no period columns")
	}

	seen := make(map[int]string)
	roles := make(map[ConceptRole]bool)
	for _, c := range m.ConceptColumns {
		if !c.Role.Valid() {
			return NewStructuralError("unknown concept role %q", c.Role)
		}
		if roles[c.Role] {
			return NewStructuralError("concept role %q mapped more than once", c.Role)
		}
		roles[c.Role] = true
		if c.Index < 0 {
			return NewStructuralError("concept column %d is negative", c.Index)
		}
		if _, dup := seen[c.Index]; dup {
			return NewStructuralError("column %d mapped more than once", c.Index)
		}
		seen[c.Index] = "concept"
	}
	if !roles[RoleAccountCode] && !roles[RoleAccountName] {
		return NewStructuralError("mapping needs an account_code or account_name column")
	}

	for _, p := range m.PeriodColumns {
		if p.Index < 0 {
			return NewStructuralError("period column %d is negative", p.Index)
		}
		if kind, dup := seen[p.Index]; dup {
			if kind == "concept" {
				return NewStructuralError("column %d is both a concept and a period column", p.Index)
			}
			return NewStructuralError("period column %d declared more than once", p.Index)
		}
		seen[p.Index] = "period"
	}

	return nil
}
