package idgen_test

import (
	"strings"
	"testing"

	"github.com/kestrelmem/noetic/internal/idgen"
	"github.com/stretchr/testify/assert"
)

func TestNew_CarriesPrefixAndIsUnique(t *testing.T) {
	a := idgen.New("mem")
	b := idgen.New("mem")

	assert.True(t, strings.HasPrefix(a, "mem_"))
	assert.True(t, strings.HasPrefix(b, "mem_"))
	assert.NotEqual(t, a, b, "two ids minted back to back must not collide")
}

func TestNew_HasThreeUnderscoreSeparatedParts(t *testing.T) {
	id := idgen.New("sess")
	parts := strings.Split(id, "_")
	assert.Len(t, parts, 3, "expected <prefix>_<epoch_ms>_<random> shape")
	assert.Equal(t, "sess", parts[0])
	assert.Len(t, parts[2], 6, "random suffix must be 6 characters")
}
