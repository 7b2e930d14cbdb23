package inject

import (
	"io"
	"iter"
	"log/slog"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionList interface {
	Add(x string)
	Remove(x string) bool
	Contains(x string) bool
	Len() int
	All() iter.Seq[string]
}

// network is reached through gameServer.Network.
type network struct {
	name     string
	sessions sessionList
	count    int
}

type gameServer struct {
	net *network
}

func (s *gameServer) Network() *network {
	return s.net
}

type craftHost struct {
	version string
	server  *gameServer
}

// legacyServer has no accessor; its listener is found by scanning.
type legacyServer struct {
	listener *listenThread
}

type listenThread struct {
	pending sessionList
	port    int
	active  sessionList
}

type legacyHost struct {
	server *legacyServer
}

var accessorOptions = Options{
	ServerType:     `\*inject\.gameServer$`,
	ConnectionType: `\*inject\.network$`,
	ListenerType:   `\*inject\.listenThread$`,
}

func quiet(opts Options) Options {
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return opts
}

func newCraftHost(sessions ...string) *craftHost {
	return &craftHost{
		version: "1.21",
		server:  &gameServer{net: &network{name: "main", sessions: NewSliceList(sessions...)}},
	}
}

func TestSliceList(t *testing.T) {
	l := NewSliceList("a", "b", "a")
	assert.Equal(t, 3, l.Len())
	assert.True(t, l.Remove("a"))
	assert.Equal(t, []string{"b", "a"}, slices.Collect(l.All()))
	assert.False(t, l.Remove("z"))
	assert.True(t, l.Contains("a"))

	for x := range l.All() {
		l.Add(x + "!")
	}
	assert.Equal(t, 4, l.Len())
}

func TestReplacedListUnmapped(t *testing.T) {
	orig := NewSliceList("a", "b", "c")
	l := NewReplacedList[string](NewSliceList("a", "b", "c"))

	assert.Equal(t, slices.Collect(orig.All()), slices.Collect(l.All()))
	assert.Equal(t, orig.Len(), l.Len())
	for _, x := range []string{"a", "c", "z"} {
		assert.Equal(t, orig.Contains(x), l.Contains(x), x)
	}
	assert.Equal(t, orig.Remove("b"), l.Remove("b"))
	assert.Equal(t, slices.Collect(orig.All()), slices.Collect(l.All()))
	assert.Empty(t, l.Mappings())
}

func TestReplacedListMapping(t *testing.T) {
	under := NewSliceList("a", "x")
	l := NewReplacedList[string](under)

	l.AddMapping("a", "b")
	assert.Equal(t, []string{"b", "x"}, slices.Collect(l.All()))
	assert.False(t, l.Contains("a"))
	assert.True(t, l.Contains("b"))
	assert.Equal(t, []string{"a", "x"}, slices.Collect(under.All()))

	// 重新插入的原始元素也会被替换
	require.True(t, l.Remove("b"))
	assert.Equal(t, []string{"x"}, slices.Collect(under.All()))
	l.Add("a")
	assert.Equal(t, []string{"x", "b"}, slices.Collect(l.All()))

	assert.True(t, l.RemoveMapping("a"))
	assert.Equal(t, []string{"x", "a"}, slices.Collect(l.All()))
	assert.False(t, l.RemoveMapping("a"))
}

func TestReplacedListChainedMappings(t *testing.T) {
	l := NewReplacedList[string](NewSliceList("a"))
	l.AddMapping("a", "b")
	l.AddMapping("b", "c")
	assert.Equal(t, []string{"c"}, slices.Collect(l.All()))

	l.RevertAll()
	assert.Equal(t, []string{"a"}, slices.Collect(l.All()))
}

func TestReplacedListRemoveMappingFirstOnly(t *testing.T) {
	l := NewReplacedList[string](NewSliceList("a"))
	l.AddMapping("a", "b")
	l.AddMapping("a", "c")
	assert.Equal(t, []string{"b"}, slices.Collect(l.All()))

	require.True(t, l.RemoveMapping("a"))
	assert.Equal(t, []Mapping[string]{{Old: "a", New: "c"}}, l.Mappings())
	assert.Equal(t, []string{"c"}, slices.Collect(l.All()))
}

func TestReplacedListRemoveOriginal(t *testing.T) {
	under := NewSliceList("a", "x")
	l := NewReplacedList[string](under)
	l.AddMapping("a", "b")
	assert.True(t, l.Remove("a"))
	assert.Equal(t, []string{"x"}, slices.Collect(under.All()))
}

func TestReplacedListConcurrentIteration(t *testing.T) {
	l := NewReplacedList[string](NewSliceList("a", "b", "c"))
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				n := 0
				for range l.All() {
					n++
				}
				if n != 3 {
					t.Errorf("iteration saw %d elements", n)
					return
				}
			}
		}()
	}
	for i := 0; i < 500; i++ {
		l.AddMapping("a", "z")
		l.RemoveMapping("a")
	}
	close(stop)
	wg.Wait()
	assert.Empty(t, l.Mappings())
}

func TestInjectAccessorStrategy(t *testing.T) {
	host := newCraftHost("s1", "s2")
	orig := host.server.net.sessions
	before := slices.Collect(orig.All())

	c := NewServerConnection[string](host, quiet(accessorOptions))
	assert.Equal(t, Uninjected, c.State())
	require.NoError(t, c.Inject())
	assert.Equal(t, Injected, c.State())

	lists := c.Lists()
	require.Len(t, lists, 1)
	spliced, ok := host.server.net.sessions.(*ReplacedList[string])
	require.True(t, ok)
	assert.Same(t, lists[0], spliced)
	assert.Same(t, orig, spliced.Underlying())

	// 未注册映射时与原集合一致
	assert.Equal(t, before, slices.Collect(host.server.net.sessions.All()))
	assert.Equal(t, 2, host.server.net.sessions.Len())

	require.NoError(t, c.Inject())
	assert.Len(t, c.Lists(), 1)
}

func TestInjectScanStrategy(t *testing.T) {
	pending, active := NewSliceList("p"), NewSliceList("a1", "a2")
	host := &legacyHost{server: &legacyServer{listener: &listenThread{pending: pending, port: 19132, active: active}}}

	c := NewServerConnection[string](host, quiet(Options{
		ServerType:     `\*inject\.legacyServer$`,
		ConnectionType: `\*inject\.network$`,
		ListenerType:   `\*inject\.listenThread$`,
	}))
	require.NoError(t, c.Inject())
	assert.Len(t, c.Lists(), 2)

	c.Replace("a1", "b1")
	assert.Equal(t, []string{"b1", "a2"}, slices.Collect(host.server.listener.active.All()))
	assert.Equal(t, []string{"p"}, slices.Collect(host.server.listener.pending.All()))

	c.CleanupAll()
	assert.True(t, host.server.listener.pending == pending)
	assert.True(t, host.server.listener.active == active)
	assert.Equal(t, 19132, host.server.listener.port)
}

func TestReplaceInjectsLazily(t *testing.T) {
	host := newCraftHost("s1", "s2")
	c := NewServerConnection[string](host, quiet(accessorOptions))

	c.Replace("s1", "wrapped")
	assert.Equal(t, Injected, c.State())
	sessions := host.server.net.sessions
	assert.Equal(t, []string{"wrapped", "s2"}, slices.Collect(sessions.All()))
	assert.False(t, sessions.Contains("s1"))

	c.Revert("s1")
	assert.Equal(t, []string{"s1", "s2"}, slices.Collect(sessions.All()))
}

func TestCleanupAllRestoresField(t *testing.T) {
	host := newCraftHost("s1")
	orig := host.server.net.sessions
	c := NewServerConnection[string](host, quiet(accessorOptions))

	c.Replace("s1", "x")
	c.Replace("s1", "y")
	require.False(t, host.server.net.sessions == orig)

	c.CleanupAll()
	assert.True(t, host.server.net.sessions == orig)
	assert.Equal(t, Uninjected, c.State())
	assert.Empty(t, c.Lists())
	assert.Equal(t, "main", host.server.net.name)

	// 回滚后可以再次注入
	c.Replace("s1", "z")
	assert.Equal(t, []string{"z"}, slices.Collect(host.server.net.sessions.All()))
	c.CleanupAll()
	assert.True(t, host.server.net.sessions == orig)
}

func TestInjectReusesSplicedList(t *testing.T) {
	host := newCraftHost("s1")
	first := NewServerConnection[string](host, quiet(accessorOptions))
	second := NewServerConnection[string](host, quiet(accessorOptions))

	require.NoError(t, first.Inject())
	require.NoError(t, second.Inject())
	assert.Same(t, first.Lists()[0], second.Lists()[0])

	spliced, ok := host.server.net.sessions.(*ReplacedList[string])
	require.True(t, ok)
	_, nested := spliced.Underlying().(*ReplacedList[string])
	assert.False(t, nested)

	second.CleanupAll()
	assert.True(t, host.server.net.sessions == sessionList(spliced))
	first.CleanupAll()
	_, ok = host.server.net.sessions.(*SliceList[string])
	assert.True(t, ok)
}

func TestInjectFailure(t *testing.T) {
	tests := []struct {
		name string
		host any
		opts Options
	}{
		{"服务器字段不存在", newCraftHost("s1"), Options{ServerType: `\*inject\.missing$`, ConnectionType: `\*inject\.network$`}},
		{"无可用策略", newCraftHost("s1"), Options{ServerType: `\*inject\.gameServer$`}},
		{"集合为空", &craftHost{server: &gameServer{net: &network{}}}, accessorOptions},
		{"宿主不是指针", craftHost{}, accessorOptions},
		{"监听对象为空", &legacyHost{server: &legacyServer{}}, Options{ServerType: `\*inject\.legacyServer$`, ListenerType: `\*inject\.listenThread$`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewServerConnection[string](tt.host, quiet(tt.opts))
			err := c.Inject()
			assert.ErrorIs(t, err, ErrInjectionFailed)
			assert.Equal(t, Failed, c.State())

			assert.NotPanics(t, func() {
				c.Replace("s1", "x")
				c.Revert("s1")
			})
			assert.Equal(t, Failed, c.State())
			assert.Empty(t, c.Lists())
			assert.ErrorIs(t, c.Inject(), ErrInjectionFailed)

			c.CleanupAll()
			assert.Equal(t, Uninjected, c.State())
		})
	}
}

func TestFailedTargetKeepsHostUntouched(t *testing.T) {
	host := newCraftHost("s1")
	orig := host.server.net.sessions
	c := NewServerConnection[string](host, quiet(Options{ServerType: `\*inject\.gameServer$`, ConnectionType: `nothing$`}))

	c.Replace("s1", "x")
	assert.Equal(t, Failed, c.State())
	assert.True(t, host.server.net.sessions == orig)
	assert.Equal(t, []string{"s1"}, slices.Collect(orig.All()))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "uninjected", Uninjected.String())
	assert.Equal(t, "attempting", Attempting.String())
	assert.Equal(t, "injected", Injected.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "State(9)", State(9).String())
}
