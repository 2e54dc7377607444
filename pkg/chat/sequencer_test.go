package chat

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSequencer(t *testing.T) {
	t.Run("should never run two jobs of a room at once", func(t *testing.T) {
		req := require.New(t)
		seq := newSequencer()

		var mu sync.Mutex
		running, maxRunning, total := 0, 0, 0
		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				seq.Do("group:1", func() {
					mu.Lock()
					running++
					total++
					if running > maxRunning {
						maxRunning = running
					}
					mu.Unlock()

					mu.Lock()
					running--
					mu.Unlock()
				})
			}()
		}
		wg.Wait()

		req.Equal(100, total)
		req.Equal(1, maxRunning)
	})

	t.Run("should run jobs of different rooms independently", func(t *testing.T) {
		req := require.New(t)
		seq := newSequencer()
		release := make(chan struct{})
		started := make(chan struct{})

		go seq.Do("group:1", func() {
			close(started)
			<-release
		})
		<-started

		ran := false
		seq.Do("group:2", func() { ran = true })
		req.True(ran)
		close(release)
	})
}
