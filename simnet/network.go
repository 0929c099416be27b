// Copyright (c) 2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package simnet

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/wire"
	"github.com/decred/dcrwallet/errors"
	"github.com/decred/walletscenario/lru"
	"github.com/decred/walletscenario/scenario"
)

// Config describes a simulated network.
type Config struct {
	// Params are the ledger rules.  WalletTestParams is used when nil.
	Params *Params

	// Nodes is the number of nodes, all linked to each other.
	Nodes int

	// Latency delays every relayed message.
	Latency time.Duration

	// DataDir keeps each node's chain and wallet in a leveldb database
	// under DataDir/node<i>.  Nodes are kept in memory when empty.
	DataDir string
}

// message is a block or transaction in flight between two nodes.
type message struct {
	from      *Node
	block     *wire.MsgBlock
	tx        *wire.MsgTx
	deliverAt time.Time
}

// queue is an unbounded FIFO of messages for one node.
type queue struct {
	mu     sync.Mutex
	msgs   []message
	notify chan struct{}
}

func newQueue() *queue {
	return &queue{notify: make(chan struct{}, 1)}
}

func (q *queue) push(m message) {
	q.mu.Lock()
	q.msgs = append(q.msgs, m)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// pop blocks until a message is due or quit is closed.
func (q *queue) pop(quit <-chan struct{}) (message, bool) {
	for {
		q.mu.Lock()
		if len(q.msgs) > 0 {
			m := q.msgs[0]
			q.msgs[0] = message{}
			q.msgs = q.msgs[1:]
			q.mu.Unlock()
			if d := time.Until(m.deliverAt); d > 0 {
				t := time.NewTimer(d)
				select {
				case <-quit:
					t.Stop()
					return message{}, false
				case <-t.C:
				}
			}
			return m, true
		}
		q.mu.Unlock()
		select {
		case <-quit:
			return message{}, false
		case <-q.notify:
		}
	}
}

type link struct{ a, b int }

func newLink(a, b int) link {
	if a > b {
		a, b = b, a
	}
	return link{a, b}
}

// Network is a set of simulated nodes relaying blocks and transactions to
// each other over links that may be cut and restored.
type Network struct {
	params  *Params
	latency time.Duration
	nodes   []*Node

	mu    sync.RWMutex
	links map[link]bool

	closeOnce sync.Once
	closeErr  error
}

// NewNetwork creates the nodes of cfg, fully linked, each starting from
// the shared genesis block or from its stored chain.
func NewNetwork(cfg *Config) (*Network, error) {
	const op errors.Op = "simnet.NewNetwork"
	if cfg.Nodes <= 0 {
		return nil, errors.E(op, errors.Invalid, "network needs at least one node")
	}
	params := cfg.Params
	if params == nil {
		params = WalletTestParams()
	}

	net := &Network{
		params:  params,
		latency: cfg.Latency,
		links:   make(map[link]bool),
	}
	for i := 0; i < cfg.Nodes; i++ {
		dir := ""
		if cfg.DataDir != "" {
			dir = filepath.Join(cfg.DataDir, fmt.Sprintf("node%d", i))
		}
		n, err := net.newNode(i, dir)
		if err != nil {
			net.Close()
			return nil, errors.E(op, err)
		}
		net.nodes = append(net.nodes, n)
	}
	for i := range net.nodes {
		for j := i + 1; j < len(net.nodes); j++ {
			net.links[newLink(i, j)] = true
		}
	}
	for _, n := range net.nodes {
		n.wg.Add(1)
		go n.run()
	}
	log.Infof("Started %d node %s network (maturity %d, latency %v)",
		len(net.nodes), params.Name, params.CoinbaseMaturity, cfg.Latency)
	return net, nil
}

func (net *Network) newNode(id int, dir string) (*Node, error) {
	st, err := openStore(dir)
	if err != nil {
		return nil, err
	}
	seed := chainhash.HashB([]byte(fmt.Sprintf("%s node %d", net.params.Name, id)))
	w, err := loadWallet(net.params, st, seed)
	if err != nil {
		st.close()
		return nil, err
	}
	n := &Node{
		id:       id,
		net:      net,
		params:   net.params,
		chain:    newChain(net.params),
		mempool:  newMempool(net.params),
		wallet:   w,
		store:    st,
		rejected: lru.NewCache(rejectedCacheSize),
		inbox:    newQueue(),
		quit:     make(chan struct{}),
	}
	blocks, err := st.blocks()
	if err == nil {
		err = n.replay(blocks)
	}
	if err != nil {
		st.close()
		return nil, err
	}
	if h := n.chain.height(); h > 0 {
		log.Infof("Node %d resumed at height %d", id, h)
	}
	return n, nil
}

// Node returns the node at index i.
func (net *Network) Node(i int) *Node { return net.nodes[i] }

// Nodes returns the nodes as scenario node handles.
func (net *Network) Nodes() []scenario.Node {
	nodes := make([]scenario.Node, len(net.nodes))
	for i, n := range net.nodes {
		nodes[i] = n
	}
	return nodes
}

// peers returns the nodes linked to n.
func (net *Network) peers(n *Node) []*Node {
	net.mu.RLock()
	defer net.mu.RUnlock()
	var peers []*Node
	for _, p := range net.nodes {
		if p != n && net.links[newLink(n.id, p.id)] {
			peers = append(peers, p)
		}
	}
	return peers
}

// relay queues msg for every peer of n except the one it came from.
func (net *Network) relay(n, from *Node, msg message) {
	msg.from = n
	msg.deliverAt = time.Now().Add(net.latency)
	for _, p := range net.peers(n) {
		if p == from {
			continue
		}
		p.inbox.push(msg)
	}
}

// Disconnect cuts the link between nodes i and j.
func (net *Network) Disconnect(i, j int) {
	net.mu.Lock()
	delete(net.links, newLink(i, j))
	net.mu.Unlock()
	log.Debugf("Disconnected nodes %d and %d", i, j)
}

// Connect restores the link between nodes i and j.  Each side is sent the
// blocks it is missing, when its tip is on the other's chain, and the
// other's mempool.
func (net *Network) Connect(i, j int) {
	net.mu.Lock()
	net.links[newLink(i, j)] = true
	net.mu.Unlock()
	log.Debugf("Connected nodes %d and %d", i, j)

	a, b := net.nodes[i], net.nodes[j]
	a.announce(b)
	b.announce(a)
}

// announce queues for peer the main chain blocks above peer's tip and the
// mempool of n.
func (n *Node) announce(peer *Node) {
	peer.mu.Lock()
	peerHash, _ := peer.chain.tip()
	peer.mu.Unlock()

	n.mu.Lock()
	var msgs []message
	if h := n.chain.blockHeight(&peerHash); h >= 0 {
		for _, b := range n.chain.blocks[h+1:] {
			msgs = append(msgs, message{block: b})
		}
	}
	for _, m := range n.mempool.sorted() {
		msgs = append(msgs, message{tx: m.tx})
	}
	n.mu.Unlock()

	deliverAt := time.Now().Add(n.net.latency)
	for _, m := range msgs {
		m.from = n
		m.deliverAt = deliverAt
		peer.inbox.push(m)
	}
}

// Close stops every node and closes its database.  Later calls return the
// result of the first.
func (net *Network) Close() error {
	net.closeOnce.Do(func() {
		for _, n := range net.nodes {
			close(n.quit)
			n.wg.Wait()
			if err := n.store.close(); err != nil && net.closeErr == nil {
				net.closeErr = err
			}
		}
	})
	return net.closeErr
}
