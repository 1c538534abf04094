// Package hub fans pipeline events out to websocket subscribers using a
// channel-based broadcast loop. Subscribers may restrict themselves to a
// set of topics.
package hub

// Message is one broadcast payload, sent as a text frame. An empty Topic
// reaches every client.
type Message struct {
	Topic string
	Data  []byte
}

// NewMessage wraps pre-encoded JSON.
func NewMessage(topic string, data []byte) Message {
	return Message{Topic: topic, Data: data}
}
