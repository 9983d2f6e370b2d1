package ppid

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedCounter(n int) func() (int, error) {
	return func() (int, error) { return n, nil }
}

func TestVersionDigits(t *testing.T) {
	tests := []struct {
		version string
		want    string
	}{
		{"3.1", "030100"},
		{"1.0.2", "010002"},
		{"2", "020000"},
		{"IEEE 2600.1", "010000"},
		{"BSI-PP-0084 V12", "010200"},
		{"1.0b", "010200"},
		{"Version 0.6 and 2.5", "020500"},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			got, err := versionDigits(tt.version)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVersionDigitsRejectsVersionlessInput(t *testing.T) {
	_, err := versionDigits("no digits here")
	assert.Error(t, err)
}

func TestEnsureGeneratesWellFormedID(t *testing.T) {
	fs := afero.NewMemMapFs()
	g, err := NewGenerator(fs, "pp_generated_ids.json")
	require.NoError(t, err)
	g.counter = fixedCounter(7)

	date := time.Date(2019, 11, 4, 0, 0, 0, 0, time.UTC)
	id, generated, err := g.Ensure("pp_os_v4", "Operating Systems", date, "4.2.1")
	require.NoError(t, err)
	assert.True(t, generated)
	assert.Equal(t, "PP_OS_20191104_V_040201/007", id)
}

func TestEnsureIsStableAcrossCalls(t *testing.T) {
	fs := afero.NewMemMapFs()
	g, err := NewGenerator(fs, "pp_generated_ids.json")
	require.NoError(t, err)
	g.counter = fixedCounter(123)

	date := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	first, generated, err := g.Ensure("pp_db", "Databases", date, "1.1")
	require.NoError(t, err)
	require.True(t, generated)

	// even with a different counter the stored assignment wins
	g.counter = fixedCounter(999)
	second, generated, err := g.Ensure("pp_db", "Databases", date, "1.1")
	require.NoError(t, err)
	assert.False(t, generated)
	assert.Equal(t, first, second)
}

func TestAssignmentsSurviveReload(t *testing.T) {
	fs := afero.NewMemMapFs()
	g, err := NewGenerator(fs, "pp_generated_ids.json")
	require.NoError(t, err)
	g.counter = fixedCounter(42)

	date := time.Date(2018, 6, 1, 0, 0, 0, 0, time.UTC)
	id, _, err := g.Ensure("pp_sc", "ICs, Smart Cards and Smart Card-Related Devices and Systems", date, "3.1")
	require.NoError(t, err)
	require.NoError(t, g.Save())

	reloaded, err := NewGenerator(fs, "pp_generated_ids.json")
	require.NoError(t, err)

	got, ok := reloaded.Lookup("pp_sc")
	require.True(t, ok)
	assert.Equal(t, id, got)
}

func TestResetDropsAssignments(t *testing.T) {
	fs := afero.NewMemMapFs()
	g, err := NewGenerator(fs, "pp_generated_ids.json")
	require.NoError(t, err)
	g.counter = fixedCounter(1)

	date := time.Date(2018, 6, 1, 0, 0, 0, 0, time.UTC)
	_, _, err = g.Ensure("pp_nd", "Network and Network-Related Devices and Systems", date, "2.0")
	require.NoError(t, err)

	g.Reset()
	assert.Empty(t, g.IDs())

	g.counter = fixedCounter(2)
	id, generated, err := g.Ensure("pp_nd", "Network and Network-Related Devices and Systems", date, "2.0")
	require.NoError(t, err)
	assert.True(t, generated)
	assert.Equal(t, "PP_ND_20180601_V_020000/002", id)
}

func TestEnsureRejectsUnknownCategory(t *testing.T) {
	fs := afero.NewMemMapFs()
	g, err := NewGenerator(fs, "pp_generated_ids.json")
	require.NoError(t, err)

	_, _, err = g.Ensure("x", "Quantum Gadgets", time.Now(), "1.0")
	assert.Error(t, err)
}
