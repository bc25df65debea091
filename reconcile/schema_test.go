package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPolicy = Policy{
	KeyField:        "Year",
	DisplayColumn:   "Name",
	ProtectedFields: []string{"Comment"},
}

func fields(names ...string) []Field {
	out := make([]Field, len(names))
	for i, n := range names {
		out[i] = Field{Name: n, Position: i + 1}
	}
	return out
}

func TestPlanSchema(t *testing.T) {
	t.Run("creates missing columns in spreadsheet order", func(t *testing.T) {
		remote := []RemoteColumn{{ID: "name", Title: "Name"}, {ID: "text1", Title: "make"}}
		plan := PlanSchema(fields("Year", "Make", "Model", "Trim"), remote, testPolicy)

		assert.Equal(t, ColumnMap{"Make": "text1"}, plan.Keep)
		require.Len(t, plan.Create, 3)
		assert.Equal(t, "Model", plan.Create[0].Title)
		assert.Equal(t, "Trim", plan.Create[1].Title)
		assert.Equal(t, ColumnCreate{Title: "Comment", Protected: true}, plan.Create[2])
		assert.Empty(t, plan.Delete)
	})

	t.Run("deletes legacy columns only", func(t *testing.T) {
		remote := []RemoteColumn{
			{ID: "name", Title: "Name"},
			{ID: "text1", Title: "Make"},
			{ID: "text2", Title: "Foo"},
			{ID: "long_text", Title: "comment"},
		}
		plan := PlanSchema(fields("Year", "Make"), remote, testPolicy)

		require.Len(t, plan.Delete, 1)
		assert.Equal(t, "Foo", plan.Delete[0].Title)
		assert.Empty(t, plan.Create)
		assert.False(t, plan.IsEmpty())
	})

	t.Run("protected spreadsheet field is ensured but not mapped", func(t *testing.T) {
		plan := PlanSchema(fields("Year", "Comment", "Make"), []RemoteColumn{{ID: "name", Title: "Name"}}, testPolicy)

		require.Len(t, plan.Create, 2)
		assert.Equal(t, ColumnCreate{Title: "Comment", Protected: true}, plan.Create[0])
		assert.Equal(t, ColumnCreate{Title: "Make"}, plan.Create[1])
		assert.NotContains(t, plan.Keep, "Comment")
	})

	t.Run("key and display fields never become columns", func(t *testing.T) {
		plan := PlanSchema(fields("Year", "Name"), []RemoteColumn{{ID: "c", Title: "Comment"}}, testPolicy)
		assert.True(t, plan.IsEmpty())
	})

	t.Run("remote column set is a superset of the spreadsheet after apply", func(t *testing.T) {
		schema := fields("Year", "Make", "Model")
		remote := []RemoteColumn{{ID: "name", Title: "Name"}, {ID: "foo", Title: "Foo"}}
		plan := PlanSchema(schema, remote, testPolicy)

		after := []RemoteColumn{{ID: "name", Title: "Name"}}
		for _, c := range plan.Create {
			after = append(after, RemoteColumn{ID: c.Title, Title: c.Title})
		}
		for _, f := range schema[1:] {
			_, ok := findColumn(after, f.Name)
			assert.True(t, ok, "missing column %s", f.Name)
		}
		_, ok := findColumn(after, "Foo")
		assert.False(t, ok)
	})
}
