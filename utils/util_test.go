package utils_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/utils"
)

func TestFind(t *testing.T) {
	data := []string{"a", "b", "c"}
	byID := map[int32]string{1: "a", 2: "b", 3: "c"}

	all, failed := utils.Find(byID, data, nil)
	assert.Equal(t, data, all)
	assert.Empty(t, failed)

	found, failed := utils.Find(byID, data, []int32{3, 9, 1})
	assert.Equal(t, []string{"c", "a"}, found)
	assert.Equal(t, []int32{9}, failed)
}
