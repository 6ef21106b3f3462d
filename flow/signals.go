package flow

// EndReason says why a block stopped executing.
type EndReason int

const (
	EndCompleted EndReason = iota
	EndStopped
)

func (r EndReason) String() string {
	if r == EndStopped {
		return "stopped"
	}
	return "completed"
}

// BlockEvent is delivered to BlockStarted and BlockStopped subscribers.
type BlockEvent struct {
	Flowchart      string
	Block          string
	Index          int
	ExecutionCount int
	Reason         EndReason
}

// CommandEvent is delivered to CommandEntered subscribers before Enter runs.
type CommandEvent struct {
	Flowchart string
	Block     string
	Index     int
	Command   Command
}

type subscriber[E any] struct {
	id int
	fn func(E)
}

type subscribers[E any] []subscriber[E]

func (s *subscribers[E]) add(id int, fn func(E)) {
	*s = append(*s, subscriber[E]{id: id, fn: fn})
}

func (s *subscribers[E]) remove(id int) {
	for i, sub := range *s {
		if sub.id == id {
			*s = append((*s)[:i:i], (*s)[i+1:]...)
			return
		}
	}
}

func (s subscribers[E]) emit(e E) {
	if len(s) == 0 {
		return
	}
	// Copy so handlers may unsubscribe while we iterate.
	for _, sub := range append(subscribers[E](nil), s...) {
		sub.fn(e)
	}
}

// Signals fans out engine events. A nil *Signals ignores everything.
type Signals struct {
	nextID  int
	started subscribers[BlockEvent]
	stopped subscribers[BlockEvent]
	entered subscribers[CommandEvent]
}

func (s *Signals) id() int {
	s.nextID++
	return s.nextID
}

// OnBlockStarted subscribes fn. The returned func unsubscribes.
func (s *Signals) OnBlockStarted(fn func(BlockEvent)) func() {
	id := s.id()
	s.started.add(id, fn)
	return func() { s.started.remove(id) }
}

// OnBlockStopped subscribes fn. The returned func unsubscribes.
func (s *Signals) OnBlockStopped(fn func(BlockEvent)) func() {
	id := s.id()
	s.stopped.add(id, fn)
	return func() { s.stopped.remove(id) }
}

// OnCommandEntered subscribes fn. The returned func unsubscribes.
func (s *Signals) OnCommandEntered(fn func(CommandEvent)) func() {
	id := s.id()
	s.entered.add(id, fn)
	return func() { s.entered.remove(id) }
}

func (s *Signals) blockStarted(e BlockEvent) {
	if s != nil {
		s.started.emit(e)
	}
}

func (s *Signals) blockStopped(e BlockEvent) {
	if s != nil {
		s.stopped.emit(e)
	}
}

func (s *Signals) commandEntered(e CommandEvent) {
	if s != nil {
		s.entered.emit(e)
	}
}
