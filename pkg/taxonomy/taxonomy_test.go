package taxonomy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pisflow/pisflow/pkg/models"
	"github.com/pisflow/pisflow/pkg/taxonomy"
)

func TestLoad(t *testing.T) {
	table, err := taxonomy.Load()
	require.NoError(t, err)

	assert.NotEmpty(t, table.Version())
	assert.Equal(t, 134, table.Len())
	assert.Len(t, table.Candidates(), table.Len())
}

func TestLoadBytes_RejectsInvalidDocuments(t *testing.T) {
	testCases := []struct {
		name string
		data string
	}{
		{
			name: "missing entries",
			data: `{"version": "1"}`,
		},
		{
			name: "empty entries",
			data: `{"version": "1", "entries": []}`,
		},
		{
			name: "entry without aliases",
			data: `{"version": "1", "entries": [{"main": "A", "sub": "B", "sub_sub": "C"}]}`,
		},
		{
			name: "blank triple component",
			data: `{"version": "1", "entries": [{"main": "A", "sub": "", "sub_sub": "C", "aliases": ["a"]}]}`,
		},
		{
			name: "not json",
			data: `categories!`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := taxonomy.LoadBytes([]byte(tc.data))
			assert.Error(t, err)
		})
	}
}

func TestLoadBytes_RejectsDuplicateTriples(t *testing.T) {
	data := `{"version": "1", "entries": [
		{"main": "A", "sub": "B", "sub_sub": "C", "aliases": ["one"]},
		{"main": "A", "sub": "B", "sub_sub": "C", "aliases": ["two"]}
	]}`

	_, err := taxonomy.LoadBytes([]byte(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestTable_Contains(t *testing.T) {
	table, err := taxonomy.Load()
	require.NoError(t, err)

	assert.True(t, table.Contains(models.Category{
		Main: "Tools & Hardware", Sub: "Power Tools", SubSub: "Drills",
	}))
	assert.True(t, table.Contains(models.Category{
		Main: "Home & Garden", Sub: "Home Deco", SubSub: "Lighting",
	}))
	assert.False(t, table.Contains(models.Category{
		Main: "Tools & Hardware", Sub: "Power Tools", SubSub: "Quantum Drives",
	}))
	assert.False(t, table.Contains(models.Category{}))
}

func TestTable_LookupExact(t *testing.T) {
	table, err := taxonomy.Load()
	require.NoError(t, err)

	testCases := []struct {
		name  string
		text  string
		want  models.Category
		found bool
	}{
		{
			name:  "exact alias",
			text:  "air fryer",
			want:  models.Category{Main: "Home Appliances", Sub: "Small Kitchen Appliances", SubSub: "Air Fryers"},
			found: true,
		},
		{
			name:  "alias with different casing and punctuation",
			text:  "  Air Fryer!  ",
			want:  models.Category{Main: "Home Appliances", Sub: "Small Kitchen Appliances", SubSub: "Air Fryers"},
			found: true,
		},
		{
			name:  "alias embedded in longer description",
			text:  "brushless cordless drill with two batteries",
			want:  models.Category{Main: "Tools & Hardware", Sub: "Power Tools", SubSub: "Drills"},
			found: true,
		},
		{
			name:  "sub-sub name as lookup key",
			text:  "microwave ovens",
			want:  models.Category{Main: "Home Appliances", Sub: "Large Appliances", SubSub: "Microwave Ovens"},
			found: true,
		},
		{
			name:  "no match",
			text:  "industrial particle accelerator",
			found: false,
		},
		{
			name:  "empty text",
			text:  "   ",
			found: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, found := table.LookupExact(tc.text)
			assert.Equal(t, tc.found, found)

			if tc.found {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestTable_LookupExact_Deterministic(t *testing.T) {
	table, err := taxonomy.Load()
	require.NoError(t, err)

	text := "55 inch smart tv with soundbar bundle"

	first, found := table.LookupExact(text)
	require.True(t, found)

	// Multiple aliases appear in the text; repeated calls must keep
	// picking the same one.
	for range 50 {
		got, found := table.LookupExact(text)
		require.True(t, found)
		assert.Equal(t, first, got)
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "air fryer", taxonomy.Normalize("  Air   Fryer!  "))
	assert.Equal(t, "hi-fi", taxonomy.Normalize("Hi-Fi"))
	assert.Equal(t, "tools & hardware", taxonomy.Normalize("Tools & Hardware"))
	assert.Equal(t, "", taxonomy.Normalize(" ,.! "))
}
