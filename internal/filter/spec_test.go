package filter

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", d.String())
	assert.True(t, d.End().Equal(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.Local)))

	d, err = ParseDate("")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = ParseDate("29/02/2024")
	assert.Error(t, err)
}

func TestDateRange(t *testing.T) {
	today := NewDate(2024, time.May, 10)

	assert.False(t, DateRange{}.Active(today))
	assert.False(t, DateRange{From: Epoch, To: today}.Active(today))
	assert.True(t, DateRange{To: NewDate(2024, time.May, 9)}.Active(today))

	r := DateRange{From: NewDate(2024, time.May, 1), To: NewDate(2024, time.May, 3)}
	assert.True(t, r.Contains(time.Date(2024, time.May, 1, 0, 0, 0, 0, time.Local), today))
	assert.True(t, r.Contains(time.Date(2024, time.May, 3, 23, 59, 59, 0, time.Local), today))
	assert.False(t, r.Contains(time.Date(2024, time.May, 4, 0, 0, 0, 0, time.Local), today))
	assert.False(t, r.Contains(time.Date(2024, time.April, 30, 23, 0, 0, 0, time.Local), today))
}

func TestSpecEncodesDatesAsDays(t *testing.T) {
	spec := DefaultSpec()
	spec.Modified.From = NewDate(2023, time.December, 24)

	data, err := json.Marshal(spec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"from":"2023-12-24"`)

	var decoded Spec
	require.NoError(t, yaml.Unmarshal([]byte("modified:\n  from: 2023-12-24\nname: '*.go'\n"), &decoded))
	assert.True(t, decoded.Modified.From.Equal(spec.Modified.From))
	assert.True(t, decoded.Modified.To.IsZero())
	assert.Equal(t, "*.go", decoded.Name)
}

func TestSpecClone(t *testing.T) {
	spec := DefaultSpec()
	spec.TypeGroups = []string{"images"}
	clone := spec.Clone()
	clone.TypeGroups[0] = "audio"
	assert.Equal(t, "images", spec.TypeGroups[0])
}

func TestGroups(t *testing.T) {
	assert.Equal(t, "images", GroupOf("JPG"))
	assert.Equal(t, GroupOther, GroupOf("bak"))
	assert.Equal(t, "jpg", Extension("/x/Photo.JPG"))
	assert.Equal(t, []string{"txt", "md", "log"}, ParseCustomExtensions(".txt; md;;.LOG "))
	assert.True(t, IsGroup("fonts"))
	assert.True(t, IsGroup(GroupOther))
	assert.False(t, IsGroup("pictures"))

	names := GroupNames()
	assert.Equal(t, GroupOther, names[len(names)-1])
	assert.Len(t, names, len(Groups)+1)
}
