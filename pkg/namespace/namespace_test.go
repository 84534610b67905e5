package namespace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewUniqueIDIsUniquePerCall(t *testing.T) {
	ns := New("counters")
	a := ns.NewUniqueID()
	b := ns.NewUniqueID()
	assert.NotEqual(t, a, b)
	assert.Contains(t, a, "counters:")
}

func TestIDFromNameIsDeterministic(t *testing.T) {
	ns := New("counters")
	a := ns.IDFromName("alice")
	b := ns.IDFromName("alice")
	assert.Equal(t, a, b)
}

func TestIDFromNameDiffersAcrossNames(t *testing.T) {
	ns := New("counters")
	a := ns.IDFromName("alice")
	b := ns.IDFromName("bob")
	assert.NotEqual(t, a, b)
}

func TestIDFromNameDiffersAcrossNamespaces(t *testing.T) {
	a := New("counters").IDFromName("alice")
	b := New("widgets").IDFromName("alice")
	assert.NotEqual(t, a, b)
}

func TestIDFromStringValidatesPrefix(t *testing.T) {
	ns := New("counters")
	id := ns.IDFromName("alice")

	got, err := ns.IDFromString(id)
	assert.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = New("widgets").IDFromString(id)
	assert.Error(t, err)
}
