package reconcile

import (
	"fmt"
	"strings"
)

// Action is what the engine should do with one item.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionSkip   Action = "skip"
)

// FieldValue is one mapped field of an item operation.
type FieldValue struct {
	Field    string
	ColumnID string
	Old      string // remote text before the push ("" for new items)
	New      string // spreadsheet text, trimmed
}

// ItemOp is the planned operation for one record.
type ItemOp struct {
	Action Action
	Key    string       // trimmed key value, used as the item name
	ItemID string       // existing item id for update and skip
	Fields []FieldValue // payload fields in schema order
	Blank  []string     // fields left out of a create because the cell was blank
	Reason string
}

// Payload returns the column id -> text object sent in a single batched update.
func (op ItemOp) Payload() map[string]string {
	payload := make(map[string]string, len(op.Fields))
	for _, fv := range op.Fields {
		payload[fv.ColumnID] = fv.New
	}
	return payload
}

// ModifiedFields describes every changed field as "'old' -> 'new'".
func (op ItemOp) ModifiedFields() map[string]string {
	diffs := make(map[string]string)
	for _, fv := range op.Fields {
		if !SameValue(fv.Old, fv.New) {
			diffs[fv.Field] = fmt.Sprintf("'%s' -> '%s'", strings.TrimSpace(fv.Old), fv.New)
		}
	}
	return diffs
}

// PushPlan is the ordered list of item operations for a push.
type PushPlan struct {
	Ops      []ItemOp
	Warnings []string
}

// Counts returns how many operations of each action the plan holds.
func (p PushPlan) Counts() map[Action]int {
	counts := map[Action]int{ActionCreate: 0, ActionUpdate: 0, ActionSkip: 0}
	for _, op := range p.Ops {
		counts[op.Action]++
	}
	return counts
}

// KeyedRecord is a record whose key has been validated.
type KeyedRecord struct {
	Key string
	Record
}

// ValidateRecords resolves the key field in schema and checks every record
// for a non-blank, unique key. It runs before any remote call.
func ValidateRecords(schema []Field, records []Record, p Policy) ([]KeyedRecord, error) {
	keyField := ""
	for _, f := range schema {
		if p.IsKey(f.Name) {
			keyField = f.Name
			break
		}
	}
	if keyField == "" {
		return nil, fmt.Errorf("%w: no %q column in the spreadsheet header", ErrKeyFieldMissing, p.KeyField)
	}

	keyed := make([]KeyedRecord, 0, len(records))
	firstRow := make(map[string]int, len(records))
	for _, rec := range records {
		key := strings.TrimSpace(rec.Values[keyField])
		if key == "" {
			return nil, fmt.Errorf("%w: row %d has no %s value", ErrKeyFieldMissing, rec.Row, keyField)
		}
		if row, dup := firstRow[key]; dup {
			return nil, fmt.Errorf("%w: %w: %s %q appears on rows %d and %d", ErrKeyFieldMissing, ErrDuplicateKey, keyField, key, row, rec.Row)
		}
		firstRow[key] = rec.Row
		keyed = append(keyed, KeyedRecord{Key: key, Record: rec})
	}
	return keyed, nil
}

// IndexItems maps trimmed item names to items. When the board holds several
// items with one name the first wins and the rest are reported.
func IndexItems(items []RemoteItem) (map[string]RemoteItem, []string) {
	index := make(map[string]RemoteItem, len(items))
	var warnings []string
	for _, item := range items {
		name := strings.TrimSpace(item.Name)
		if first, dup := index[name]; dup {
			warnings = append(warnings, fmt.Sprintf("Duplicate item %q (ID: %s) ignored; using ID: %s", name, item.ID, first.ID))
			continue
		}
		index[name] = item
	}
	return index, warnings
}

// PlanPush builds the item operations for a push. In replace mode remote items
// are ignored because the group is new. In incremental mode an item is updated
// only when a mapped field differs, and then with the full mapped field set so
// blanks clear the remote value.
func PlanPush(schema []Field, records []Record, cols ColumnMap, remote []RemoteItem, mode Mode, p Policy) (PushPlan, error) {
	keyed, err := ValidateRecords(schema, records, p)
	if err != nil {
		return PushPlan{}, err
	}

	var plan PushPlan
	index := map[string]RemoteItem{}
	if mode == ModeIncremental {
		var warnings []string
		index, warnings = IndexItems(remote)
		plan.Warnings = append(plan.Warnings, warnings...)
	}

	for _, rec := range keyed {
		item, exists := index[rec.Key]
		if !exists {
			plan.Ops = append(plan.Ops, planCreate(schema, rec, cols, p))
			continue
		}
		plan.Ops = append(plan.Ops, planUpdate(schema, rec, item, cols, p))
	}

	return plan, nil
}

func planCreate(schema []Field, rec KeyedRecord, cols ColumnMap, p Policy) ItemOp {
	op := ItemOp{Action: ActionCreate, Key: rec.Key, Reason: "Item not on board"}
	for _, f := range schema {
		colID, ok := mappedColumn(f, cols, p)
		if !ok {
			continue
		}
		value := strings.TrimSpace(rec.Values[f.Name])
		if value == "" {
			op.Blank = append(op.Blank, f.Name)
			continue
		}
		op.Fields = append(op.Fields, FieldValue{Field: f.Name, ColumnID: colID, New: value})
	}
	return op
}

func planUpdate(schema []Field, rec KeyedRecord, item RemoteItem, cols ColumnMap, p Policy) ItemOp {
	op := ItemOp{Key: rec.Key, ItemID: item.ID}
	changed := false
	for _, f := range schema {
		colID, ok := mappedColumn(f, cols, p)
		if !ok {
			continue
		}
		local := strings.TrimSpace(rec.Values[f.Name])
		remote := item.Values[colID]
		if !SameValue(local, remote) {
			changed = true
		}
		op.Fields = append(op.Fields, FieldValue{Field: f.Name, ColumnID: colID, Old: remote, New: local})
	}

	if changed {
		op.Action = ActionUpdate
		op.Reason = "Field values differ"
	} else {
		op.Action = ActionSkip
		op.Reason = "No changes detected"
	}
	return op
}

func mappedColumn(f Field, cols ColumnMap, p Policy) (string, bool) {
	if !p.Syncable(f.Name) {
		return "", false
	}
	colID, ok := cols[f.Name]
	return colID, ok && colID != ""
}

// CellUpdate is one spreadsheet cell to overwrite during a pull.
type CellUpdate struct {
	Row   int    // 1-based sheet row
	Field string // disambiguated field name
	Key   string
	Old   string
	New   string
}

// PullPlan lists the cells a pull will change and the board items that have
// no matching record.
type PullPlan struct {
	Updates   []CellUpdate
	Unmatched []RemoteItem
	Warnings  []string
}

// PlanPull compares board items to records by key and queues a cell update
// for every syncable field that differs. Records are never removed and
// remote-only columns are ignored.
func PlanPull(schema []Field, records []Record, remoteCols []RemoteColumn, remote []RemoteItem, p Policy) (PullPlan, error) {
	keyed, err := ValidateRecords(schema, records, p)
	if err != nil {
		return PullPlan{}, err
	}

	byKey := make(map[string]KeyedRecord, len(keyed))
	for _, rec := range keyed {
		byKey[rec.Key] = rec
	}

	cols := MatchColumns(schema, remoteCols, p)
	index, warnings := IndexItems(remote)
	plan := PullPlan{Warnings: warnings}

	for _, item := range remote {
		name := strings.TrimSpace(item.Name)
		if index[name].ID != item.ID {
			continue
		}
		rec, ok := byKey[name]
		if !ok {
			plan.Unmatched = append(plan.Unmatched, item)
			continue
		}
		for _, f := range schema {
			colID, ok := mappedColumn(f, cols, p)
			if !ok {
				continue
			}
			local := rec.Values[f.Name]
			value := strings.TrimSpace(item.Values[colID])
			if SameValue(local, value) {
				continue
			}
			plan.Updates = append(plan.Updates, CellUpdate{
				Row:   rec.Row,
				Field: f.Name,
				Key:   rec.Key,
				Old:   local,
				New:   value,
			})
		}
	}

	return plan, nil
}
