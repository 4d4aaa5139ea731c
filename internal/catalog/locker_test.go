package catalog

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedLockerSerializesSameKey(t *testing.T) {
	l := newKeyedLocker()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("category:1")
			defer unlock()
			v := counter
			v++
			counter = v
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}

func TestKeyedLockerOverlappingSetsDoNotDeadlock(t *testing.T) {
	l := newKeyedLocker()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			l.Lock("a", "b", "c")()
		}()
		go func() {
			defer wg.Done()
			l.Lock("c", "a", "", "a")()
		}()
	}
	wg.Wait()
	assert.Empty(t, l.locks, "released locks are dropped")
}
