package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFixtureParsesOperations(t *testing.T) {
	path := writeFixture(t, `
apiVersion: durastore/v1
kind: Object
metadata:
  name: room:lobby
spec:
  backend: memory
  operations:
    - op: put
      key: greeting
      value: hello
    - op: delete
      key: stale
`)

	f, err := LoadFixture(path)
	require.NoError(t, err)
	assert.Equal(t, "room:lobby", f.Metadata.Name)
	assert.Equal(t, BackendMemory, f.Spec.Backend)
	require.Len(t, f.Spec.Operations, 2)
	assert.Equal(t, OpPut, f.Spec.Operations[0].Op)
	assert.Equal(t, "greeting", f.Spec.Operations[0].Key)
	assert.Equal(t, OpDelete, f.Spec.Operations[1].Op)
}

func TestLoadFixtureDefaultsToMemoryBackend(t *testing.T) {
	path := writeFixture(t, `
metadata:
  name: room:lobby
spec: {}
`)

	f, err := LoadFixture(path)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, f.Spec.Backend)
}

func TestLoadFixtureRequiresName(t *testing.T) {
	path := writeFixture(t, `
spec:
  backend: memory
`)

	_, err := LoadFixture(path)
	assert.Error(t, err)
}

func TestLoadFixtureRejectsUnknownKind(t *testing.T) {
	path := writeFixture(t, `
kind: Cluster
metadata:
  name: room:lobby
spec: {}
`)

	_, err := LoadFixture(path)
	assert.Error(t, err)
}

func TestLoadFixtureParsesTransactionBlock(t *testing.T) {
	path := writeFixture(t, `
metadata:
  name: room:lobby
spec:
  backend: bbolt
  path: /tmp/unused.db
  transaction:
    - op: put
      key: a
      value: "1"
    - op: setAlarm
      scheduledTime: 1700000000000
`)

	f, err := LoadFixture(path)
	require.NoError(t, err)
	assert.Equal(t, BackendBolt, f.Spec.Backend)
	require.Len(t, f.Spec.Transaction, 2)
	assert.Equal(t, OpSetAlarm, f.Spec.Transaction[1].Op)
	assert.Equal(t, int64(1700000000000), f.Spec.Transaction[1].ScheduledTime)
}

func TestLoadFixtureMissingFile(t *testing.T) {
	_, err := LoadFixture(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
