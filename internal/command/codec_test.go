package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitBasic(t *testing.T) {
	assert.Equal(t, []string{"--ns", "set", "value"}, Split("--ns:set:value"))
}

func TestSplitEscapedDelimiter(t *testing.T) {
	assert.Equal(t, []string{"--ns", "set", "a:b"}, Split(`--ns:set:a\:b`))
}

func TestSplitEscapedEscape(t *testing.T) {
	assert.Equal(t, []string{"--ns", `a\b`}, Split(`--ns:a\\b`))
}

func TestJoinEscapes(t *testing.T) {
	assert.Equal(t, `--ns:a\:b:c\\d`, Join([]string{"--ns", "a:b", `c\d`}))
}

func TestRoundTrip(t *testing.T) {
	cases := [][]string{
		{"--ns"},
		{"--ns", "set", "plain"},
		{"--ns", "a:b", "c,d"},
		{"--ns", `back\slash`, `mixed\:both`},
		{"--ns", "", "empty-mid"},
	}
	for _, parts := range cases {
		assert.Equal(t, parts, Split(Join(parts)), "round trip for %q", parts)
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(` --a:one , --b:two `)
	assert.Equal(t, []string{"--a:one", "--b:two"}, got)
}

func TestSplitListEscapedComma(t *testing.T) {
	got := SplitList(`--toast:Saved\, nice!, --log:done`)
	assert.Equal(t, []string{`--toast:Saved, nice!`, "--log:done"}, got)
}

func TestSplitListKeepsColonEscapes(t *testing.T) {
	// Entries must remain parseable command strings, so `\:` survives
	// list splitting and resolves during command splitting.
	got := SplitList(`--set:a\:b, --other`)
	assert.Equal(t, []string{`--set:a\:b`, "--other"}, got)
	assert.Equal(t, []string{"--set", "a:b"}, Split(got[0]))
}

func TestSplitListDropsEmpties(t *testing.T) {
	assert.Equal(t, []string{"--a"}, SplitList("--a,, ,"))
}
