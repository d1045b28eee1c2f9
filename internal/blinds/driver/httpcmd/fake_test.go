package httpcmd

import (
	"context"
	"sync"
	"time"

	"github.com/jkaflik/blinds2hap/internal/blinds"
)

const (
	testUpURL     = "http://ctl/up"
	testDownURL   = "http://ctl/down"
	testStopURL   = "http://ctl/stop"
	testStatusURL = "http://ctl/status"
)

type sentCommand struct {
	url    string
	method string
	at     time.Time
}

type fakeCommander struct {
	mu      sync.Mutex
	sent    []sentCommand
	respond func(url string) ([]byte, error)
	delay   time.Duration
}

func (f *fakeCommander) Send(ctx context.Context, url, method string) ([]byte, error) {
	f.mu.Lock()
	f.sent = append(f.sent, sentCommand{url: url, method: method, at: time.Now()})
	respond := f.respond
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if respond != nil {
		return respond(url)
	}
	return nil, nil
}

func (f *fakeCommander) setRespond(fn func(url string) ([]byte, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.respond = fn
}

func (f *fakeCommander) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, c := range f.sent {
		if c.url == url {
			n++
		}
	}
	return n
}

func (f *fakeCommander) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeCommander) first(url string) (sentCommand, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, c := range f.sent {
		if c.url == url {
			return c, true
		}
	}
	return sentCommand{}, false
}

type fakeRecorder struct {
	mu       sync.Mutex
	commands map[string]int
	failures map[string]int
	polls    map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{commands: map[string]int{}, failures: map[string]int{}, polls: map[string]int{}}
}

func (r *fakeRecorder) CommandSent(_, command string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[command]++
	if err != nil {
		r.failures[command]++
	}
}

func (r *fakeRecorder) StatusPolled(_, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.polls[result]++
}

func (r *fakeRecorder) get(m map[string]int, key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return m[key]
}

func newTestBlinds(motionTime time.Duration, cmd Commander, modify ...func(o *Options)) *Blinds {
	opts := Options{
		Name:       "test",
		UpURL:      testUpURL,
		DownURL:    testDownURL,
		StopURL:    testStopURL,
		MotionTime: motionTime,
	}
	for _, m := range modify {
		m(&opts)
	}
	return NewBlinds(opts, cmd)
}

// place puts the blinds at rest on position without any commands.
func place(b *Blinds, position int) {
	b.store.Update(func(st *blinds.PositionState) {
		st.LastPosition = position
		st.TargetPosition = position
		st.MotionState = blinds.Stopped
	})
}

func currentJob(b *Blinds) *motionJob {
	var job *motionJob
	b.store.Update(func(*blinds.PositionState) { job = b.job })
	return job
}
