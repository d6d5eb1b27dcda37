package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/couchcryptid/seismic-swarm-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalog = `ID,time,latitude,longitude,depth,mag,magType,type,country,continent,location,fault
1,2016-10-30T06:40:17.320Z,42.84,13.11,10,6.6,mww,earthquake,Italy,Europe,Norcia,Mt. Vettore
2,2016-10-26T19:18:08.000Z,42.91,13.13,9,6.1,mww,Earthquake ,Italy,Europe,Visso,
3,2016-10-26T17:10:36.000Z,42.88,13.12,,5.5,mb,quarry blast,Italy,Europe,,
4,not-a-time,42.88,13.12,8,4.0,mb,earthquake,Italy,Europe,,
5,2016-10-20T10:00:00Z,,13.12,8,4.0,mb,earthquake,Italy,Europe,,
6,2016-10-20T10:00:00Z,42.0,13.12,8,,mb,earthquake,Italy,Europe,,
7,2016-10-21T10:00:00Z,39.5,20.1,12,3.1,ml,earthquake,Greece,Europe,Ioannina,
2,2016-10-22T10:00:00Z,42.0,13.0,8,3.0,ml,earthquake,Italy,Europe,,
8,2016-10-23T10:00:00Z,42.0,13.0,8,3.0,ml,earthquake,,Europe,,
`

func TestLoad(t *testing.T) {
	s, err := Load(strings.NewReader(testCatalog), "test")
	require.NoError(t, err)

	require.Equal(t, 4, s.Len())
	ids := make([]int64, 0, s.Len())
	for _, e := range s.Events() {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []int64{1, 2, 3, 7}, ids, "load order preserved")

	stats := s.Stats()
	assert.Equal(t, 9, stats.Rows)
	assert.Equal(t, 4, stats.Loaded)
	assert.Equal(t, 5, stats.DroppedTotal())
	assert.Equal(t, 1, stats.Dropped["time"])
	assert.Equal(t, 1, stats.Dropped["latitude"])
	assert.Equal(t, 1, stats.Dropped["mag"])
	assert.Equal(t, 1, stats.Dropped["country"])
	assert.Equal(t, 1, stats.Dropped[DropDuplicateID])
}

func TestLoad_OptionalFieldsExplicitlyAbsent(t *testing.T) {
	s, err := Load(strings.NewReader(testCatalog), "test")
	require.NoError(t, err)

	events := s.Events()
	assert.Equal(t, "Mt. Vettore", domain.Deref(events[0].Fault))
	assert.Nil(t, events[1].Fault)
	assert.Nil(t, events[2].Depth)
	assert.Nil(t, events[2].Location)
}

func TestLoad_LowercaseIDAlias(t *testing.T) {
	input := "id,time,latitude,longitude,mag,type,country\n" +
		"10,2020-01-01T00:00:00Z,40,10,2.5,earthquake,Italy\n"

	s, err := Load(strings.NewReader(input), "test")
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())
	assert.Equal(t, int64(10), s.Events()[0].ID)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		message string
	}{
		{"empty input", "", "no header row"},
		{"missing columns", "ID,time,latitude\n1,2020-01-01,40\n", "missing required columns: longitude, mag, type, country"},
		{"missing id column", "time,latitude,longitude,mag,type,country\n", "missing required columns: ID"},
		{"header only", "ID,time,latitude,longitude,mag,type,country\n", "no valid rows"},
		{"all rows invalid", "ID,time,latitude,longitude,mag,type,country\nx,2020-01-01,40,10,2,earthquake,Italy\n", "no valid rows (1 read, 1 dropped)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Load(strings.NewReader(tt.input), "catalog.csv")
			require.Error(t, err)
			assert.Nil(t, s)

			var le *domain.LoadError
			require.True(t, errors.As(err, &le))
			assert.Equal(t, "catalog.csv", le.Source)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.csv")
	require.NoError(t, os.WriteFile(path, []byte(testCatalog), 0o600))

	s, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4, s.Len())
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.csv"))

	var le *domain.LoadError
	require.True(t, errors.As(err, &le))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestStore_Filters(t *testing.T) {
	s, err := Load(strings.NewReader(testCatalog), "test")
	require.NoError(t, err)

	quakes := s.FilterByType(" EARTHQUAKE")
	require.Len(t, quakes, 3)
	assert.Equal(t, int64(1), quakes[0].ID)
	assert.Equal(t, int64(2), quakes[1].ID)
	assert.Equal(t, int64(7), quakes[2].ID)

	assert.Len(t, s.FilterByType("quarry blast"), 1)
	assert.Len(t, s.FilterByCountry("greece "), 1)
	assert.Len(t, s.FilterByCountry(""), 4)
}

func TestStore_EventsIsACopy(t *testing.T) {
	s, err := Load(strings.NewReader(testCatalog), "test")
	require.NoError(t, err)

	events := s.Events()
	events[0].Magnitude = 99

	assert.Equal(t, 6.6, s.Events()[0].Magnitude)
}
