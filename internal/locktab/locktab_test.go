package locktab_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"putbox/internal/locktab"
)

func TestAcquireReleaseLeavesTableEmpty(t *testing.T) {
	tab := locktab.New()

	h := tab.Acquire("/a/b")
	require.Equal(t, 1, tab.Len())
	h.Release()
	assert.Equal(t, 0, tab.Len())
}

func TestConcurrentHoldersShareOneEntry(t *testing.T) {
	tab := locktab.New()

	h1 := tab.Acquire("/same")
	h2 := tab.Acquire("/same")
	assert.Equal(t, 1, tab.Len(), "both holders must share one entry")

	h1.Release()
	assert.Equal(t, 1, tab.Len(), "entry survives while a holder remains")
	h2.Release()
	assert.Equal(t, 0, tab.Len())
}

func TestDistinctPathsGetDistinctEntries(t *testing.T) {
	tab := locktab.New()

	h1 := tab.Acquire("/a")
	h2 := tab.Acquire("/b")
	assert.Equal(t, 2, tab.Len())
	h1.Release()
	h2.Release()
	assert.Equal(t, 0, tab.Len())
}

func TestMutexSerializesHolders(t *testing.T) {
	tab := locktab.New()

	var inCritical, max int
	var track sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := tab.Acquire("/file")
			defer h.Release()
			h.Lock()
			track.Lock()
			inCritical++
			if inCritical > max {
				max = inCritical
			}
			track.Unlock()
			track.Lock()
			inCritical--
			track.Unlock()
			h.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, max, "critical section must admit one holder at a time")
	assert.Equal(t, 0, tab.Len())
}

func TestStressNoLeakedEntries(t *testing.T) {
	tab := locktab.New()

	paths := []string{"/a", "/b", "/c/d", "/c/e"}
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				h := tab.Acquire(paths[(i+j)%len(paths)])
				h.Lock()
				h.Unlock()
				h.Release()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, tab.Len())
}
