// Package floor composes the viewport, entity store, drag controller and cart
// simulation into one interactive floor map.
//
// Every operation runs on the goroutine started by Run: input commands and
// clock ticks are taken from a single select loop, so none of the composed
// components need locks.
package floor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fas-floormap/backend/internal/drag"
	"github.com/fas-floormap/backend/internal/entity"
	"github.com/fas-floormap/backend/internal/models"
	"github.com/fas-floormap/backend/internal/sim"
	"github.com/fas-floormap/backend/internal/viewport"
)

var (
	ErrStopped        = errors.New("floor is stopped")
	ErrAlreadyRunning = errors.New("floor is already running")
)

// Journal receives simulation events. Record must not block.
type Journal interface {
	Record(ev models.SimEvent)
}

// Options configures a Floor.
type Options struct {
	Viewport     viewport.Options
	Drag         drag.Options
	Sim          sim.Config
	Graph        *sim.Graph
	TickInterval time.Duration
	MaxStep      time.Duration
	AutoStart    bool
	EditMode     bool
	FitOnResize  bool
	Now          func() time.Time
}

// DefaultOptions returns a floor that starts in view mode with the simulation running.
func DefaultOptions() Options {
	return Options{
		Viewport:     viewport.DefaultOptions(),
		Drag:         drag.DefaultOptions(),
		Sim:          sim.DefaultConfig(),
		TickInterval: sim.DefaultTickInterval,
		MaxStep:      sim.DefaultMaxStep,
		AutoStart:    true,
		FitOnResize:  true,
	}
}

type command struct {
	fn   func()
	done chan struct{}
}

type gesture int

const (
	gestureNone gesture = iota
	gesturePan
	gestureDrag
)

func (g gesture) String() string {
	switch g {
	case gesturePan:
		return "pan"
	case gestureDrag:
		return "drag"
	}
	return "none"
}

// Floor is one interactive floor map session.
type Floor struct {
	id    string
	opts  Options
	now   func() time.Time
	vp    *viewport.Viewport
	store *entity.Store
	drag  *drag.Controller
	sim   *sim.Simulation
	clock *sim.Clock

	journal Journal

	cmds    chan command
	stopped chan struct{}
	started atomic.Bool

	// loop-owned state
	editMode bool
	gesture  gesture
	hover    string
	seq      int64
	frame    models.Frame

	subMu   sync.RWMutex
	subs    map[int]chan models.Frame
	nextSub int
	dropped atomic.Int64
}

// New builds a floor holding the given entities. Call Run to start serving it.
func New(id string, entities []models.MapEntity, opts Options) *Floor {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	f := &Floor{
		id:       id,
		opts:     opts,
		now:      now,
		vp:       viewport.New(opts.Viewport),
		store:    entity.NewStoreWithClock(now),
		drag:     drag.NewController(opts.Drag),
		sim:      sim.New(opts.Graph, opts.Sim),
		clock:    sim.NewClock(opts.TickInterval, opts.MaxStep),
		cmds:     make(chan command),
		stopped:  make(chan struct{}),
		editMode: opts.EditMode,
		subs:     make(map[int]chan models.Frame),
	}
	f.clock.SetNow(now)
	f.sim.SetClock(now)
	f.sim.SetEventHandler(f.onSimEvent)
	f.drag.SetViewMode(!f.editMode)
	f.store.Replace(entities)
	f.frame = BuildFrame(f.simState(), 0, now())
	return f
}

// ID returns the session id the floor was created with.
func (f *Floor) ID() string {
	return f.id
}

// SetJournal attaches an event journal. It must be called before Run.
func (f *Floor) SetJournal(j Journal) {
	f.journal = j
}

// DroppedFrames returns how many frames slow subscribers missed.
func (f *Floor) DroppedFrames() int64 {
	return f.dropped.Load()
}

// Done is closed once Run has returned.
func (f *Floor) Done() <-chan struct{} {
	return f.stopped
}

// Run serves commands and clock ticks until ctx is cancelled.
func (f *Floor) Run(ctx context.Context) error {
	if !f.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer f.closeSubscribers()
	defer close(f.stopped)
	defer f.clock.Stop()

	if f.opts.AutoStart {
		f.startSim()
	}
	fmt.Printf("[Floor %s] Running (%d entities, sim running=%t)\n", shortID(f.id), f.store.Len(), f.clock.Running())

	for {
		select {
		case <-ctx.Done():
			fmt.Printf("[Floor %s] Stopped after %d ticks\n", shortID(f.id), f.sim.Ticks())
			return nil
		case cmd := <-f.cmds:
			cmd.fn()
			close(cmd.done)
		case now := <-f.clock.C():
			f.advance(f.clock.Step(now))
		}
	}
}

// Do runs fn on the floor goroutine and waits for it to finish.
func (f *Floor) Do(ctx context.Context, fn func()) error {
	cmd := command{fn: fn, done: make(chan struct{})}
	select {
	case f.cmds <- cmd:
	case <-f.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-cmd.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// advance ticks the simulation and publishes the resulting frame.
func (f *Floor) advance(dt float64) {
	if dt <= 0 {
		return
	}
	f.sim.Tick(dt)
	f.publish()
}

func (f *Floor) publish() {
	f.seq++
	f.frame = BuildFrame(f.simState(), f.seq, f.now())

	f.subMu.RLock()
	defer f.subMu.RUnlock()
	for _, ch := range f.subs {
		select {
		case ch <- f.frame:
		default:
			f.dropped.Add(1)
		}
	}
}

func (f *Floor) simState() models.SimState {
	st := f.sim.State()
	st.Running = f.clock.Running()
	return st
}

func (f *Floor) onSimEvent(ev models.SimEvent) {
	if f.journal == nil {
		return
	}
	ev.SessionID = f.id
	f.journal.Record(ev)
}

func (f *Floor) startSim() {
	if f.clock.Running() {
		return
	}
	// a partial drag does not survive a restart of the tick source
	f.cancelGesture()
	f.clock.Start()
}

func (f *Floor) stopSim() {
	f.clock.Stop()
}

// Subscribe registers for frames published after every tick. Frames are
// dropped for a subscriber whose buffer is full. The returned func
// unsubscribes and closes the channel.
func (f *Floor) Subscribe(buffer int) (<-chan models.Frame, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan models.Frame, buffer)

	f.subMu.Lock()
	id := f.nextSub
	f.nextSub++
	select {
	case <-f.stopped:
		f.subMu.Unlock()
		close(ch)
		return ch, func() {}
	default:
	}
	f.subs[id] = ch
	f.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.subMu.Lock()
			defer f.subMu.Unlock()
			if c, ok := f.subs[id]; ok {
				delete(f.subs, id)
				close(c)
			}
		})
	}
}

func (f *Floor) closeSubscribers() {
	f.subMu.Lock()
	defer f.subMu.Unlock()
	for id, ch := range f.subs {
		close(ch)
		delete(f.subs, id)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
