package hub

import "sync"

// Client is the outbound side of one connection: a bounded queue of encoded
// events and a done signal. The queue channel is never closed; writers
// select on Done instead.
type Client struct {
	ID   string
	send chan []byte
	done chan struct{}
	once sync.Once
}

// NewClient creates a client whose queue holds up to size events.
func NewClient(id string, size int) *Client {
	if size <= 0 {
		size = 1
	}
	return &Client{
		ID:   id,
		send: make(chan []byte, size),
		done: make(chan struct{}),
	}
}

// Outbound yields encoded events in delivery order.
func (c *Client) Outbound() <-chan []byte {
	return c.send
}

// Done is closed once the client is closed or evicted.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close marks the client finished. Safe to call more than once.
func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Client) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}
