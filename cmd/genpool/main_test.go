package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/genpool/internal/workload"
	"github.com/ajitpratap0/genpool/pkg/compression"
	"github.com/ajitpratap0/genpool/pkg/errors"
	"github.com/ajitpratap0/genpool/pkg/json"
	"github.com/ajitpratap0/genpool/pkg/snapshot"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "genpool v"+version)
	assert.Contains(t, out, "OS/Arch:")
}

func TestBenchJSON(t *testing.T) {
	out, err := execute(t, "bench", "--pools", "2", "--ops", "1000", "--seed", "3", "--json")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	for _, line := range lines[:2] {
		var r workload.Report
		require.NoError(t, json.Unmarshal([]byte(line), &r))
		assert.Equal(t, int64(1000), r.Ops)
		assert.LessOrEqual(t, int64(r.Alive), r.Spawns)
	}

	var summary benchSummary
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &summary))
	assert.Equal(t, int64(2000), summary.TotalOps)
	assert.Positive(t, summary.Duration)
}

func TestBenchTableWithMetrics(t *testing.T) {
	out, err := execute(t, "bench", "--pools", "1", "--ops", "500", "--metrics")
	require.NoError(t, err)
	assert.Contains(t, out, "POOL")
	assert.Contains(t, out, "total: 500 ops")
	assert.Contains(t, out, "genpool_pool_events_total")
}

func TestSceneAndInspect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.gps")

	out, err := execute(t, "scene", "--nodes", "300", "--seed", "9", "--tag-every", "3", "--compression", "lz4", "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, "nodes: 301")
	assert.Contains(t, out, "snapshot ")

	out, err = execute(t, "snapshot", "inspect", "--json", path)
	require.NoError(t, err)
	var info snapshot.Info
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, compression.LZ4, info.Algorithm)
	assert.Equal(t, 301, info.Alive)
	assert.Equal(t, 301, info.Records)

	out, err = execute(t, "snapshot", "inspect", path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "algorithm:   lz4"), out)
}

func TestSceneWithoutOutput(t *testing.T) {
	out, err := execute(t, "scene", "--nodes", "10", "--tag-every", "0")
	require.NoError(t, err)
	assert.Equal(t, "nodes: 11, tagged: 0\n", out)
}

func TestSceneRejectsUnknownCompression(t *testing.T) {
	_, err := execute(t, "scene", "--nodes", "1", "--compression", "brotli", "--out", filepath.Join(t.TempDir(), "x"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestInspectMissingFile(t *testing.T) {
	_, err := execute(t, "snapshot", "inspect", filepath.Join(t.TempDir(), "missing.gps"))
	require.Error(t, err)
}
