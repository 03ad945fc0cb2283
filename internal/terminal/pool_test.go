package terminal

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lzjever/mbos-devbox/internal/core"
)

// fakeProcess echoes input back as output until it is killed or exits.
type fakeProcess struct {
	out    *io.PipeReader
	in     *io.PipeWriter
	exited chan struct{}
	once   sync.Once

	mu     sync.Mutex
	size   [2]int
	killed bool
	closed bool
	waited bool
}

func newFakeProcess(cols, rows int) *fakeProcess {
	r, w := io.Pipe()
	return &fakeProcess{out: r, in: w, exited: make(chan struct{}), size: [2]int{cols, rows}}
}

func (f *fakeProcess) Read(b []byte) (int, error) { return f.out.Read(b) }

func (f *fakeProcess) Write(b []byte) (int, error) {
	select {
	case <-f.exited:
		return 0, io.ErrClosedPipe
	default:
	}
	return f.in.Write(b)
}

func (f *fakeProcess) Resize(cols, rows int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.size = [2]int{cols, rows}
	return nil
}

func (f *fakeProcess) exit() {
	f.once.Do(func() {
		close(f.exited)
		f.in.Close()
	})
}

func (f *fakeProcess) Kill() error {
	f.mu.Lock()
	f.killed = true
	f.mu.Unlock()
	f.exit()
	return nil
}

func (f *fakeProcess) Wait() error {
	<-f.exited
	f.mu.Lock()
	f.waited = true
	f.mu.Unlock()
	return nil
}

func (f *fakeProcess) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeProcess) state() (size [2]int, killed, waited, closed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size, f.killed, f.waited, f.closed
}

type fakeSpawner struct {
	mu    sync.Mutex
	procs []*fakeProcess
	dirs  []string
	fail  error
}

func (s *fakeSpawner) Spawn(dir string, cols, rows int) (Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	p := newFakeProcess(cols, rows)
	s.procs = append(s.procs, p)
	s.dirs = append(s.dirs, dir)
	return p, nil
}

func (s *fakeSpawner) spawned() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.procs)
}

type outputSink struct {
	mu  sync.Mutex
	got map[string]string
}

func (o *outputSink) write(id string, data []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.got == nil {
		o.got = make(map[string]string)
	}
	o.got[id] += string(data)
}

func (o *outputSink) get(id string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.got[id]
}

func newTestPool(t *testing.T) (*Pool, *fakeSpawner, *outputSink) {
	t.Helper()
	sp := &fakeSpawner{}
	sink := &outputSink{}
	p := NewPool(sp, "/work/projects/w1", 0, sink.write, zap.NewNop())
	t.Cleanup(func() { p.KillAll() })
	return p, sp, sink
}

func TestCreate_CapacityAndDuplicates(t *testing.T) {
	p, sp, _ := newTestPool(t)

	for i := 0; i < DefaultCapacity; i++ {
		ok, err := p.Create(fmt.Sprintf("t%d", i))
		require.NoError(t, err)
		require.True(t, ok)
	}

	ok, err := p.Create("t4")
	require.NoError(t, err)
	require.False(t, ok, "fifth terminal must be refused")

	ok, err = p.Create("t0")
	require.NoError(t, err)
	require.False(t, ok)

	require.Equal(t, DefaultCapacity, p.Len())
	require.Equal(t, DefaultCapacity, sp.spawned(), "refused creates must not spawn")
	require.Equal(t, "/work/projects/w1", sp.dirs[0])

	size, _, _, _ := sp.procs[0].state()
	require.Equal(t, [2]int{DefaultCols, DefaultRows}, size)
}

func TestCreate_SpawnFailure(t *testing.T) {
	p, sp, _ := newTestPool(t)
	sp.fail = errors.New("no such shell")

	ok, err := p.Create("t1")
	require.False(t, ok)
	require.True(t, core.IsCode(err, core.ErrProcessFailure))
	require.Zero(t, p.Len())
}

func TestWriteEchoesOutput(t *testing.T) {
	p, _, sink := newTestPool(t)
	_, err := p.Create("t1")
	require.NoError(t, err)

	require.True(t, p.Write("t1", []byte("ls\r")))
	require.False(t, p.Write("nope", []byte("ls\r")))

	require.Eventually(t, func() bool { return sink.get("t1") == "ls\r" }, time.Second, 5*time.Millisecond)
}

func TestResizeAll(t *testing.T) {
	p, sp, _ := newTestPool(t)
	for _, id := range []string{"a", "b", "c"} {
		_, err := p.Create(id)
		require.NoError(t, err)
	}

	p.ResizeAll(120, 40)
	p.ResizeAll(0, 40)

	for _, proc := range sp.procs {
		size, _, _, _ := proc.state()
		require.Equal(t, [2]int{120, 40}, size)
	}
}

func TestClose(t *testing.T) {
	p, sp, _ := newTestPool(t)
	_, err := p.Create("a")
	require.NoError(t, err)
	_, err = p.Create("b")
	require.NoError(t, err)

	require.True(t, p.Close("a"))
	require.False(t, p.Close("a"))
	require.Equal(t, []string{"b"}, p.IDs())

	_, killed, waited, closed := sp.procs[0].state()
	require.True(t, killed)
	require.True(t, waited)
	require.True(t, closed)

	ok, err := p.Create("a")
	require.NoError(t, err)
	require.True(t, ok, "a closed id can be reused")
}

func TestProcessExitReleasesSlot(t *testing.T) {
	p, sp, _ := newTestPool(t)
	for i := 0; i < DefaultCapacity; i++ {
		_, err := p.Create(fmt.Sprintf("t%d", i))
		require.NoError(t, err)
	}

	sp.procs[2].exit()
	require.Eventually(t, func() bool { return p.Len() == DefaultCapacity-1 }, time.Second, 5*time.Millisecond)
	_, _, waited, closed := sp.procs[2].state()
	require.True(t, waited)
	require.True(t, closed)

	ok, err := p.Create("t9")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestKillAll(t *testing.T) {
	p, sp, _ := newTestPool(t)
	for i := 0; i < 3; i++ {
		_, err := p.Create(fmt.Sprintf("t%d", i))
		require.NoError(t, err)
	}

	require.Equal(t, 3, p.KillAll())
	require.Zero(t, p.Len())
	for _, proc := range sp.procs {
		_, killed, waited, closed := proc.state()
		require.True(t, killed)
		require.True(t, waited)
		require.True(t, closed)
	}

	require.Zero(t, p.KillAll())
}
