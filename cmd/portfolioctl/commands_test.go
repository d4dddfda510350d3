package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitTags(t *testing.T) {
	assert.Equal(t, []string{"swing", "earnings"}, splitTags(" swing, ,earnings "))
	assert.Nil(t, splitTags(""))
}
