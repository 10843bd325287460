package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotFormat(t *testing.T) {
	data, err := Snapshot("sample", sampleResult())
	require.NoError(t, err)

	got := string(data)
	assert.True(t, strings.HasPrefix(got, `{"scenario_name":"sample","trace":[`), got)
	assert.Contains(t, got, `{"seq":2,"type":"write","op":"insert","table":"Task","counts":{"insert":1,"update":0,"delete":0}}`)
	assert.Contains(t, got, `{"kind":"insert","index":1,"value":{"_id":"b","rank":2}}`)
}

func TestAssertGolden_RoundTrip(t *testing.T) {
	scenario, err := LoadScenario(todoScenario)
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	data, err := Snapshot(scenario.Name, first)
	require.NoError(t, err)

	dir := t.TempDir()
	g := goldie.New(t, goldie.WithFixtureDir(dir), goldie.WithNameSuffix(".golden"))
	require.NoError(t, g.Update(t, scenario.Name, data))

	_, err = os.Stat(filepath.Join(dir, scenario.Name+".golden"))
	require.NoError(t, err)

	second, err := Run(scenario)
	require.NoError(t, err)
	require.NoError(t, AssertGolden(t, dir, scenario.Name, second))
}
