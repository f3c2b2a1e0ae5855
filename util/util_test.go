package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandstring(t *testing.T) {
	s := Randstring(8)
	assert.Len(t, s, 8)
	assert.Regexp(t, `^[a-z]{8}$`, s)
}

func TestStructMap(t *testing.T) {
	type input struct {
		Name    string
		Workers int
		hidden  bool
	}
	m := StructMap(&input{Name: "a", Workers: 4, hidden: true})
	assert.Equal(t, map[string]any{"Name": "a", "Workers": 4}, m)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "seq-read-64b", Slugify("Seq Read (64b)"))
	assert.Equal(t, "a_b-c", Slugify("--A_b::c--"))
}
