package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/seismic-swarm-etl/internal/catalog"
	"github.com/couchcryptid/seismic-swarm-etl/internal/report"
	"github.com/couchcryptid/seismic-swarm-etl/internal/swarm"
)

const testCatalog = `ID,time,latitude,longitude,mag,type,country
1,2020-03-10T00:00:00Z,42.0,13.0,4.5,earthquake,Italy
2,2020-03-05T00:00:00Z,42.1,13.05,2.0,earthquake,Italy
3,2020-03-08T12:00:00Z,42.05,13.1,3.2,earthquake,Italy
4,2020-01-30T00:00:00Z,42.1,13.05,2.0,earthquake,Italy
`

func writeFixtures(t *testing.T, edit func(string) string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.csv")
	pairsPath := filepath.Join(dir, "pairs.csv")
	require.NoError(t, os.WriteFile(catalogPath, []byte(testCatalog), 0o600))

	store, err := catalog.LoadFile(catalogPath)
	require.NoError(t, err)
	pairs, err := swarm.FindPairs(store.Events(), swarm.DefaultParams())
	require.NoError(t, err)
	require.Len(t, pairs, 3)

	var buf bytes.Buffer
	require.NoError(t, report.Write(&buf, pairs))
	out := buf.String()
	if edit != nil {
		out = edit(out)
	}
	require.NoError(t, os.WriteFile(pairsPath, []byte(out), 0o600))
	return catalogPath, pairsPath
}

func TestRun_ValidReport(t *testing.T) {
	catalogPath, pairsPath := writeFixtures(t, nil)
	var out bytes.Buffer

	code := run(catalogPath, pairsPath, swarm.DefaultParams(), &out)

	assert.Equal(t, 0, code, out.String())
	assert.Contains(t, out.String(), "All validations passed.")
}

func TestRun_MissingPair(t *testing.T) {
	catalogPath, pairsPath := writeFixtures(t, func(s string) string {
		lines := strings.SplitAfter(s, "\n")
		return strings.Join(lines[:len(lines)-2], "")
	})
	var out bytes.Buffer

	code := run(catalogPath, pairsPath, swarm.DefaultParams(), &out)

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "missing pair")
}

func TestRun_WrongThresholds(t *testing.T) {
	catalogPath, pairsPath := writeFixtures(t, nil)
	params := swarm.DefaultParams()
	params.MaxRadiusKm = 5
	var out bytes.Buffer

	code := run(catalogPath, pairsPath, params, &out)

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "outside [0, 5]")
	assert.Contains(t, out.String(), "unexpected pair")
}

func TestRun_BadHeader(t *testing.T) {
	catalogPath, pairsPath := writeFixtures(t, func(s string) string {
		return strings.Replace(s, "MS_ID", "Mainshock", 1)
	})
	var out bytes.Buffer

	code := run(catalogPath, pairsPath, swarm.DefaultParams(), &out)

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "header mismatch")
}

func TestRun_MissingCatalog(t *testing.T) {
	var out bytes.Buffer
	code := run(filepath.Join(t.TempDir(), "none.csv"), "pairs.csv", swarm.DefaultParams(), &out)
	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "FATAL: load catalog")
}

func TestValidateRecomputed_FlagsTamperedDistance(t *testing.T) {
	catalogPath, _ := writeFixtures(t, nil)
	store, err := catalog.LoadFile(catalogPath)
	require.NoError(t, err)
	pairs, err := swarm.FindPairs(store.Events(), swarm.DefaultParams())
	require.NoError(t, err)

	pairs[0].DistanceKm += 0.02
	p := validateRecomputed(pairs)

	require.Len(t, p.errors, 1)
	assert.Contains(t, p.errors[0], "distance_km")
}
