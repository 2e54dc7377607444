package chat

import "sync"

// sequencer runs jobs of one room one at a time, in submission order. A
// room's goroutine exits once it has no pending jobs.
type sequencer struct {
	mu    sync.Mutex
	rooms map[string]*roomWorker
}

type roomWorker struct {
	jobs    chan func()
	pending int
}

func newSequencer() *sequencer {
	return &sequencer{rooms: make(map[string]*roomWorker)}
}

// Do blocks until job ran on room's worker.
func (s *sequencer) Do(room string, job func()) {
	s.mu.Lock()
	w, ok := s.rooms[room]
	if !ok {
		w = &roomWorker{jobs: make(chan func(), 64)}
		s.rooms[room] = w
		go s.run(room, w)
	}
	w.pending++
	s.mu.Unlock()

	done := make(chan struct{})
	w.jobs <- func() {
		defer close(done)
		job()
	}
	<-done
}

func (s *sequencer) run(room string, w *roomWorker) {
	for job := range w.jobs {
		job()

		s.mu.Lock()
		w.pending--
		if w.pending == 0 {
			delete(s.rooms, room)
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
	}
}

func (s *sequencer) active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}
