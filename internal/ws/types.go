package ws

const (
	// client - server
	MsgSubscribe   = "subscribe"
	MsgUnsubscribe = "unsubscribe"
	MsgPing        = "ping"

	// server - client
	MsgReady      = "ready"
	MsgSubscribed = "subscribed"
	MsgEvent      = "event"
	MsgPong       = "pong"
	MsgError      = "error"
)
