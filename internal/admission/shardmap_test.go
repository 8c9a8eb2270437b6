package admission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShardMapWithLockIsolatesKeys(t *testing.T) {
	sm := newShardMap[int]()

	sm.withLock("a", func(m map[string]int) { m["a"] = 1 })
	sm.withLock("b", func(m map[string]int) { m["b"] = 2 })

	var a, b int
	sm.withLock("a", func(m map[string]int) { a = m["a"] })
	sm.withLock("b", func(m map[string]int) { b = m["b"] })

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
}

func TestShardMapForEachVisitsAllShards(t *testing.T) {
	sm := newShardMap[int]()
	for i := 0; i < 100; i++ {
		key := string(rune('a' + i%26))
		sm.withLock(key, func(m map[string]int) { m[key]++ })
	}

	total := 0
	sm.forEach(func(m map[string]int) {
		for _, v := range m {
			total += v
		}
	})
	assert.Equal(t, 100, total)
}
