package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUpsertRemoveSnapshot(t *testing.T) {
	r := New()
	r.Upsert(Snapshot{ID: "a", RemoteAddr: "1.2.3.4:1", ConnectedAt: time.Unix(0, 0)})
	r.Upsert(Snapshot{ID: "b", RemoteAddr: "1.2.3.4:2", ConnectedAt: time.Unix(0, 0)})
	assert.Equal(t, 2, r.Len())

	r.Remove("a")
	snaps := r.Snapshot()
	assert.Len(t, snaps, 1)
	assert.Equal(t, "b", snaps[0].ID)
}

func TestConcurrentMutation(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i%26))
			r.Upsert(Snapshot{ID: id, ConnectedAt: time.Unix(0, 0)})
			_ = r.Snapshot()
			r.Remove(id)
		}(i)
	}
	wg.Wait()
}
