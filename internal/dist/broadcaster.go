package dist

// Broadcaster wraps relayed payloads in the client envelope and fans
// them out to the hub's clients.
type Broadcaster struct {
	hub *Hub

	// OnDrop is called when a slow consumer's queue is full (optional).
	OnDrop func()
}

// NewBroadcaster creates a Broadcaster backed by the given Hub.
func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

// Broadcast sends data on a channel to all matching clients. The
// envelope is hand-crafted; data is already JSON so a json.Marshal round
// trip on the hot path buys nothing.
func (b *Broadcaster) Broadcast(channel string, data []byte) {
	buf := make([]byte, 0, len(channel)+len(data)+24)
	buf = append(buf, `{"channel":"`...)
	buf = append(buf, channel...)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, '}')

	b.hub.mu.RLock()
	defer b.hub.mu.RUnlock()
	for client := range b.hub.clients {
		if !client.matchesChannel(channel) {
			continue
		}
		select {
		case client.send <- buf:
		default:
			// Slow consumer — drop rather than stall the relay.
			if b.OnDrop != nil {
				b.OnDrop()
			}
		}
	}
}
