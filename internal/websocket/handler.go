package websocket

// ServeWs registers client, runs each onRegistered hook, starts the writer
// and blocks reading until the peer disconnects. Frames pushed from a hook
// are not lost.
func ServeWs(hub *Hub, client *Client, onRegistered ...func()) {
	hub.Register(client)
	for _, fn := range onRegistered {
		fn()
	}

	go client.writePump()
	client.readPump()
}
