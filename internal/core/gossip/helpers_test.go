package gossip

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-gossiphub/internal/core/transport"
)

var errUnreachable = errors.New("unreachable")

// memNetwork 进程内网络：地址到节点的映射，拨号即调用目标节点的 Accept
type memNetwork struct {
	mu    sync.Mutex
	nodes map[string]*Node
	dials map[string]int
}

func newMemNetwork() *memNetwork {
	return &memNetwork{nodes: make(map[string]*Node), dials: make(map[string]int)}
}

func (m *memNetwork) register(n *Node) {
	m.mu.Lock()
	m.nodes[n.Self()] = n
	m.mu.Unlock()
}

func (m *memNetwork) unregister(addr string) {
	m.mu.Lock()
	delete(m.nodes, addr)
	m.mu.Unlock()
}

func (m *memNetwork) dialCount(addr string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dials[addr]
}

type memDialer struct {
	net  *memNetwork
	from string
}

func (d memDialer) Dial(_ context.Context, addr string) (transport.Conn, error) {
	d.net.mu.Lock()
	d.net.dials[addr]++
	target := d.net.nodes[addr]
	d.net.mu.Unlock()

	if target == nil {
		return nil, errUnreachable
	}
	local, remote := transport.Pipe(d.from, addr)
	if err := target.Accept(remote, d.from); err != nil {
		_ = local.Close()
		return nil, err
	}
	return local, nil
}

// newTestNode 创建挂在 net 上的节点并启动
func newTestNode(t *testing.T, net *memNetwork, self string, clk clock.Clock) *Node {
	t.Helper()
	n, err := New(DefaultConfig(self), memDialer{net: net, from: self}, WithClock(clk))
	require.NoError(t, err)
	net.register(n)
	require.NoError(t, n.Start(context.Background()))
	t.Cleanup(func() {
		net.unregister(self)
		_ = n.Destroy()
	})
	return n
}

// inspect 在事件循环中读取内部状态
func inspect(t *testing.T, n *Node, fn func()) {
	t.Helper()
	require.NoError(t, n.call(fn))
}

func peersOf(t *testing.T, n *Node) []string {
	t.Helper()
	snap, err := n.GetState()
	require.NoError(t, err)
	return snap.Peers
}

func knows(t *testing.T, n *Node, addr string) bool {
	t.Helper()
	var ok bool
	inspect(t, n, func() { _, ok = n.known[addr] })
	return ok
}

func retryPending(t *testing.T, n *Node, addr string) bool {
	t.Helper()
	var ok bool
	inspect(t, n, func() { ok = n.retries.Pending(addr) })
	return ok
}

func eventually(t *testing.T, cond func() bool, msgAndArgs ...any) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond, msgAndArgs...)
}

// attach 让 n 接受一条来自 addr 的内存连接，返回测试持有的另一端与其记录器
func attach(t *testing.T, n *Node, addr string) (*transport.PipeConn, *transport.PipeConn, *transport.Recorder) {
	t.Helper()
	nodeSide, remoteSide := transport.Pipe(n.Self(), addr)
	rec := &transport.Recorder{}
	go remoteSide.Serve(rec)
	require.NoError(t, n.Accept(nodeSide, addr))
	return nodeSide, remoteSide, rec
}
