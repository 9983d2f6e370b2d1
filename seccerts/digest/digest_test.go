package digest

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexRE = regexp.MustCompile(`^[0-9a-f]{16}$`)

func TestComputeShape(t *testing.T) {
	d := Compute("cc", "BSI-DSZ-CC-1091-2018", "Some Product")
	assert.Regexp(t, hexRE, d)
}

func TestComputeIsStable(t *testing.T) {
	a := Compute("cc", "BSI-DSZ-CC-1091-2018", "Some Product")
	b := Compute("cc", "BSI-DSZ-CC-1091-2018", "Some Product")
	assert.Equal(t, a, b)
}

func TestComputeCanonicalizes(t *testing.T) {
	a := Compute("cc", "BSI-DSZ-CC-1091-2018", "Some Product")
	b := Compute("CC", "  bsi-dsz-cc-1091-2018 ", "some   PRODUCT")
	assert.Equal(t, a, b)
}

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"  Hello   World ", "hello world"},
		{"UPPER", "upper"},
		{"tabs\tand\nnewlines", "tabs and newlines"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Canonicalize(tc.in))
	}
}

func TestFieldOrderMatters(t *testing.T) {
	assert.NotEqual(t, Compute("a", "b"), Compute("b", "a"))
}

func TestFieldBoundariesMatter(t *testing.T) {
	// "ab" + "c" must not hash the same as "a" + "bc"
	assert.NotEqual(t, Compute("ab", "c"), Compute("a", "bc"))
}

func TestAssignerCollisionSuffix(t *testing.T) {
	a := NewAssigner()

	first := a.Assign("cc", "ID-1", "name")

	// simulate a different certificate whose canonical identity collides by
	// seeding its digest as taken by someone else
	b := NewAssigner()
	b.Seed(first, "cc", "OTHER", "other name")
	second := b.Assign("cc", "ID-1", "name")

	require.NotEqual(t, first, second)
	assert.Regexp(t, hexRE, second)

	// the suffix rule is deterministic
	c := NewAssigner()
	c.Seed(first, "cc", "OTHER", "other name")
	assert.Equal(t, second, c.Assign("cc", "ID-1", "name"))
}

func TestAssignerIdempotentForSameIdentity(t *testing.T) {
	a := NewAssigner()
	first := a.Assign("cc", "ID-1", "name")
	again := a.Assign("cc", "ID-1", "name")
	assert.Equal(t, first, again)
}
