package bridge

import "github.com/nerrad567/ac-bridge/internal/device"

// Event is one input to the Router. The concrete types below are the only
// implementations; Dispatch switches on them.
type Event interface {
	event()
}

// BusMessage is a message received from the broker.
type BusMessage struct {
	Topic   string
	Payload []byte
}

// ClientCommand is a raw frame received from a dashboard session.
type ClientCommand struct {
	Session Session
	Raw     []byte
}

// ClientConnected is emitted once a session is ready to receive.
type ClientConnected struct {
	Session Session
}

// ClientDisconnected is emitted when a session closes or errors.
type ClientDisconnected struct {
	Session Session
}

// DevicesEvicted carries the records the sweeper just removed.
type DevicesEvicted struct {
	Removed []device.Record
}

func (BusMessage) event()         {}
func (ClientCommand) event()      {}
func (ClientConnected) event()    {}
func (ClientDisconnected) event() {}
func (DevicesEvicted) event()     {}
