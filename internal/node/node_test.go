package node

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndLookup(t *testing.T) {
	doc := NewDocument()
	btn := New("button", "save", map[string]string{"command": "--x:save"})
	doc.Root().AppendChild(btn)

	got, ok := doc.Lookup("save")
	require.True(t, ok)
	assert.Same(t, btn, got)
	assert.True(t, btn.Connected())
}

func TestDetachDropsSubtreeFromIndex(t *testing.T) {
	doc := NewDocument()
	parent := New("div", "parent", nil)
	child := New("and-then", "child", nil)
	parent.AppendChild(child)
	doc.Root().AppendChild(parent)

	_, ok := doc.Lookup("child")
	require.True(t, ok)

	parent.Detach()

	_, ok = doc.Lookup("parent")
	assert.False(t, ok)
	_, ok = doc.Lookup("child")
	assert.False(t, ok)
	assert.False(t, child.Connected())
}

func TestChildrenNamedPreservesOrder(t *testing.T) {
	parent := New("div", "", nil)
	a := New("and-then", "a", nil)
	other := New("span", "", nil)
	b := New("and-then", "b", nil)
	parent.AppendChild(a)
	parent.AppendChild(other)
	parent.AppendChild(b)

	got := parent.ChildrenNamed("and-then")
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID())
	assert.Equal(t, "b", got[1].ID())
}

func TestChildrenReturnsCopy(t *testing.T) {
	parent := New("div", "", nil)
	a := New("and-then", "a", nil)
	parent.AppendChild(a)

	kids := parent.Children()
	a.Detach()
	// Snapshot taken before the mutation is unaffected.
	require.Len(t, kids, 1)
	assert.Empty(t, parent.Children())
}

func TestAttrHelpers(t *testing.T) {
	n := New("and-then", "", map[string]string{
		"once":  "",
		"delay": "250",
		"slow":  "2s",
		"bad":   "soon",
	})

	assert.True(t, n.AttrBool("once"))
	assert.False(t, n.AttrBool("missing"))
	assert.Equal(t, 250*time.Millisecond, n.AttrDuration("delay"))
	assert.Equal(t, 2*time.Second, n.AttrDuration("slow"))
	assert.Equal(t, time.Duration(0), n.AttrDuration("bad"))
	assert.Equal(t, "fallback", n.AttrOr("missing", "fallback"))
}

func TestLoadYAML(t *testing.T) {
	data := []byte(`
nodes:
  - id: editor
    name: div
  - id: save
    name: button
    attrs:
      command: "--x:save"
      commandfor: editor
    children:
      - name: and-then
        attrs:
          command: "--x:toast:saved"
          condition: success
`)
	doc, err := Load(data)
	require.NoError(t, err)

	save, ok := doc.Lookup("save")
	require.True(t, ok)
	assert.Equal(t, "--x:save", save.AttrOr("command", ""))

	conts := save.ChildrenNamed("and-then")
	require.Len(t, conts, 1)
	assert.Equal(t, "success", conts[0].AttrOr("condition", ""))
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	data := []byte(`
nodes:
  - id: dup
    name: div
  - id: dup
    name: div
`)
	_, err := Load(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate node id")
}
