package graphname

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTimelineSortsAndSkipsMalformed(t *testing.T) {
	names := []string{
		"urn:a/timestamp:300/temp",
		"urn:a/timestamp:100/base",
		"not-a-versioned-graph",
		"urn:a/timestamp:300/added",
		"urn:a/timestamp:200/removed",
		"urn:a/timestamp:300/removed",
	}

	tl, bad := BuildTimeline(names)
	require.Len(t, bad, 1)
	assert.Equal(t, "not-a-versioned-graph", bad[0].Name)

	assert.Equal(t, []Name{
		"urn:a/timestamp:100/base",
		"urn:a/timestamp:200/removed",
		"urn:a/timestamp:300/added",
		"urn:a/timestamp:300/removed",
		"urn:a/timestamp:300/temp",
	}, tl.Names())
}

func TestTimelineQueries(t *testing.T) {
	tl, _ := BuildTimeline([]string{
		"timestamp:10/base",
		"timestamp:20/temp",
		"timestamp:30/temp",
		"urn:other/timestamp:40/temp",
	})

	own := tl.ForPrefix("")
	assert.Len(t, own, 3)

	latest, ok := own.Latest(RoleTemp)
	require.True(t, ok)
	assert.Equal(t, int64(30), latest.Timestamp)

	_, ok = own.Latest(RoleAdded)
	assert.False(t, ok)

	assert.Len(t, own.WithRole(RoleTemp), 2)
	assert.Len(t, tl.Before(30), 2)
	assert.Len(t, tl.ForPrefix("urn:other/"), 1)
	assert.Len(t, tl.ForPrefix("urn:other"), 1)
}
