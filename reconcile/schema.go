package reconcile

// ColumnCreate is a column the board is missing.
type ColumnCreate struct {
	Title     string
	Protected bool // created only so the protected field exists; never mapped
}

// SchemaPlan lists the column operations that bring the board in line with
// the spreadsheet schema.
type SchemaPlan struct {
	Keep   ColumnMap      // syncable fields already on the board
	Create []ColumnCreate // spreadsheet order, then protected fields
	Delete []RemoteColumn // remote columns nothing claims
}

// PlanSchema decides which columns to keep, create and delete. The key field
// maps to the item name and never gets a column. The display column and
// protected columns are never deleted.
func PlanSchema(schema []Field, remote []RemoteColumn, p Policy) SchemaPlan {
	plan := SchemaPlan{Keep: make(ColumnMap)}
	planned := make(map[string]bool)

	for _, f := range schema {
		if p.IsKey(f.Name) || p.IsDisplay(f.Name) {
			continue
		}
		if col, ok := findColumn(remote, f.Name); ok {
			if !p.IsProtected(f.Name) {
				plan.Keep[f.Name] = col.ID
			}
			continue
		}
		if planned[Normalize(f.Name)] {
			continue
		}
		planned[Normalize(f.Name)] = true
		plan.Create = append(plan.Create, ColumnCreate{Title: f.Name, Protected: p.IsProtected(f.Name)})
	}

	for _, name := range p.ProtectedFields {
		if _, ok := findColumn(remote, name); ok || planned[Normalize(name)] {
			continue
		}
		planned[Normalize(name)] = true
		plan.Create = append(plan.Create, ColumnCreate{Title: name, Protected: true})
	}

	for _, col := range remote {
		if p.IsDisplay(col.Title) || p.IsKey(col.Title) || p.IsProtected(col.Title) {
			continue
		}
		if inSchema(schema, col.Title) {
			continue
		}
		plan.Delete = append(plan.Delete, col)
	}

	return plan
}

// IsEmpty reports whether the plan changes nothing on the board.
func (s SchemaPlan) IsEmpty() bool {
	return len(s.Create) == 0 && len(s.Delete) == 0
}

func inSchema(schema []Field, title string) bool {
	for _, f := range schema {
		if SameName(f.Name, title) {
			return true
		}
	}
	return false
}
