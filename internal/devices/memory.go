package devices

import (
	"sync"

	"github.com/pkg/errors"
)

var (
	// ErrSendFailed is returned by a MemoryOut connection told to fail.
	ErrSendFailed = errors.New("send failed")
	errConnClosed = errors.New("connection closed")
	errListening  = errors.New("already listening")
)

// MemorySystem is an in-process System. Messages injected on a MemoryIn reach
// whatever handler is listening; sends on a MemoryOut are recorded.
type MemorySystem struct {
	mu      sync.Mutex
	ins     []*MemoryIn
	outs    []*MemoryOut
	insErr  error
	outsErr error
	closed  bool
}

// NewMemorySystem returns a system with no ports.
func NewMemorySystem() *MemorySystem {
	return &MemorySystem{}
}

func (s *MemorySystem) AddIn(name string) *MemoryIn {
	s.mu.Lock()
	defer s.mu.Unlock()
	in := &MemoryIn{name: name}
	s.ins = append(s.ins, in)
	return in
}

func (s *MemorySystem) AddOut(name string) *MemoryOut {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := &MemoryOut{name: name}
	s.outs = append(s.outs, out)
	return out
}

// FailEnumeration makes Ins and Outs return the given errors.
func (s *MemorySystem) FailEnumeration(insErr, outsErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insErr, s.outsErr = insErr, outsErr
}

func (s *MemorySystem) Ins() ([]In, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insErr != nil {
		return nil, s.insErr
	}
	ports := make([]In, len(s.ins))
	for i, in := range s.ins {
		ports[i] = in
	}
	return ports, nil
}

func (s *MemorySystem) Outs() ([]Out, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outsErr != nil {
		return nil, s.outsErr
	}
	ports := make([]Out, len(s.outs))
	for i, out := range s.outs {
		ports[i] = out
	}
	return ports, nil
}

// OpenVirtualOut adds an output port, like a driver publishing its own port.
func (s *MemorySystem) OpenVirtualOut(name string) (Out, error) {
	return s.AddOut(name), nil
}

func (s *MemorySystem) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *MemorySystem) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// MemoryIn is an input port fed by Inject.
type MemoryIn struct {
	name string

	mu        sync.Mutex
	onMsg     func(msg []byte)
	listens   int
	listenErr error
}

func (p *MemoryIn) String() string { return p.name }

// FailListen makes the next Listen calls return err.
func (p *MemoryIn) FailListen(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listenErr = err
}

func (p *MemoryIn) Listen(onMsg func(msg []byte)) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listenErr != nil {
		return nil, p.listenErr
	}
	if p.onMsg != nil {
		return nil, errListening
	}
	p.onMsg = onMsg
	p.listens++

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			p.onMsg = nil
			p.mu.Unlock()
		})
	}, nil
}

// Inject delivers msg to the current listener on the calling goroutine. It
// reports whether a listener was registered.
func (p *MemoryIn) Inject(msg []byte) bool {
	p.mu.Lock()
	onMsg := p.onMsg
	p.mu.Unlock()
	if onMsg == nil {
		return false
	}
	onMsg(msg)
	return true
}

func (p *MemoryIn) Listening() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.onMsg != nil
}

// Listens counts successful Listen calls.
func (p *MemoryIn) Listens() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listens
}

// MemoryOut is an output port that records every message sent to it.
type MemoryOut struct {
	name string

	mu         sync.Mutex
	sent       [][]byte
	connects   int
	open       int
	failSends  int
	connectErr error
}

func (p *MemoryOut) String() string { return p.name }

// FailConnect makes the next Connect calls return err.
func (p *MemoryOut) FailConnect(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connectErr = err
}

// FailNextSends makes the next n sends return ErrSendFailed.
func (p *MemoryOut) FailNextSends(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failSends = n
}

func (p *MemoryOut) Connect() (Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.connectErr != nil {
		return nil, p.connectErr
	}
	p.connects++
	p.open++
	return &memoryConn{out: p}, nil
}

// Sent returns a copy of every message received so far.
func (p *MemoryOut) Sent() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	sent := make([][]byte, len(p.sent))
	copy(sent, p.sent)
	return sent
}

// Connects counts successful Connect calls.
func (p *MemoryOut) Connects() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connects
}

// OpenConns counts connections not yet closed.
func (p *MemoryOut) OpenConns() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

type memoryConn struct {
	out    *MemoryOut
	closed bool
}

func (c *memoryConn) Send(msg []byte) error {
	p := c.out
	p.mu.Lock()
	defer p.mu.Unlock()
	if c.closed {
		return errConnClosed
	}
	if p.failSends > 0 {
		p.failSends--
		return ErrSendFailed
	}
	p.sent = append(p.sent, append([]byte(nil), msg...))
	return nil
}

func (c *memoryConn) Close() error {
	p := c.out
	p.mu.Lock()
	defer p.mu.Unlock()
	if c.closed {
		return errConnClosed
	}
	c.closed = true
	p.open--
	return nil
}
