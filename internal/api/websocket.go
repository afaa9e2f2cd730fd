package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"macrocam/internal/protocol"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// local control surface; any origin on the loopback is fine
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSManager handles WebSocket connections and broadcasting. It is also
// the engine.Notifier: engine events become broadcast messages.
type WSManager struct {
	server     *Server
	clients    map[*WebSocketClient]bool
	clientsMu  sync.RWMutex
	broadcast  chan protocol.Message
	register   chan *WebSocketClient
	unregister chan *WebSocketClient
	shutdown   chan struct{}
}

// WebSocketClient represents one connected control client
type WebSocketClient struct {
	manager *WSManager
	conn    *websocket.Conn
	send    chan []byte
	ip      string
}

func newWSManager(s *Server) *WSManager {
	return &WSManager{
		server:     s,
		clients:    make(map[*WebSocketClient]bool),
		broadcast:  make(chan protocol.Message, 64),
		register:   make(chan *WebSocketClient),
		unregister: make(chan *WebSocketClient),
		shutdown:   make(chan struct{}),
	}
}

func (m *WSManager) start() {
	for {
		select {
		case client := <-m.register:
			m.clientsMu.Lock()
			m.clients[client] = true
			m.clientsMu.Unlock()
			log.Printf("WS: client connected from %s, total %d", client.ip, len(m.clients))

		case client := <-m.unregister:
			m.clientsMu.Lock()
			if _, ok := m.clients[client]; ok {
				delete(m.clients, client)
				close(client.send)
				log.Printf("WS: client from %s disconnected, total %d", client.ip, len(m.clients))
			}
			m.clientsMu.Unlock()

		case message := <-m.broadcast:
			m.broadcastMessage(message)

		case <-m.shutdown:
			return
		}
	}
}

func (m *WSManager) broadcastMessage(message protocol.Message) {
	jsonMsg, err := json.Marshal(message)
	if err != nil {
		log.Printf("WS: failed to marshal broadcast message: %v", err)
		return
	}

	m.clientsMu.RLock()
	defer m.clientsMu.RUnlock()
	for client := range m.clients {
		select {
		case client.send <- jsonMsg:
		default:
			close(client.send)
			delete(m.clients, client)
		}
	}
}

func (m *WSManager) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WS: failed to upgrade connection: %v", err)
		return
	}

	client := &WebSocketClient{
		manager: m,
		conn:    conn,
		send:    make(chan []byte, 256),
		ip:      r.RemoteAddr,
	}
	m.register <- client

	go client.writePump()
	go client.readPump()
}

// State implements engine.Notifier.
func (m *WSManager) State(mode string) {
	m.send(protocol.Message{Type: protocol.TypeState, Payload: protocol.StatePayload{Mode: mode}})
}

// Log implements engine.Notifier.
func (m *WSManager) Log(line string) {
	m.send(protocol.Message{Type: protocol.TypeLog, Payload: protocol.LogPayload{Line: line}})
}

// Diagnostics implements engine.Notifier.
func (m *WSManager) Diagnostics(p protocol.DiagnosticsPayload) {
	m.send(protocol.Message{Type: protocol.TypeDiagnostics, Payload: p})
}

func (m *WSManager) send(msg protocol.Message) {
	select {
	case m.broadcast <- msg:
	default:
		// notifier must not block the engine; drop when the hub is behind
	}
}

// readPump pumps messages from the websocket connection to the hub.
func (c *WebSocketClient) readPump() {
	defer func() {
		c.manager.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WS: read error: %v", err)
			}
			break
		}
		c.handleMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(50 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WebSocketClient) handleMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("WS: invalid message format: %v", err)
		return
	}

	eng := c.manager.server.eng
	switch msg.Type {
	case protocol.TypeRecordStart:
		// commands run off the read pump so a slow engine call cannot
		// stall the connection
		go func() {
			if err := eng.StartRecording(); err != nil {
				c.manager.Log("record start failed: " + err.Error())
			}
		}()

	case protocol.TypeRecordStop:
		var payload protocol.RecordStopPayload
		jsonBytes, _ := json.Marshal(msg.Payload)
		if err := json.Unmarshal(jsonBytes, &payload); err != nil {
			log.Printf("WS: invalid record_stop payload: %v", err)
			return
		}
		go func() {
			if _, err := eng.StopRecording(payload.Name); err != nil {
				c.manager.Log("record stop failed: " + err.Error())
			}
		}()

	case protocol.TypePlay:
		var payload protocol.PlayPayload
		jsonBytes, _ := json.Marshal(msg.Payload)
		if err := json.Unmarshal(jsonBytes, &payload); err != nil {
			log.Printf("WS: invalid play payload: %v", err)
			return
		}
		go func() {
			if err := eng.Play(payload.Slug); err != nil {
				c.manager.Log("play failed: " + err.Error())
			}
		}()

	case protocol.TypePlayStop:
		eng.StopPlayback()

	case protocol.TypeList:
		resp := protocol.Message{
			Type:    protocol.TypeMacros,
			Payload: eng.List(),
		}
		respBytes, _ := json.Marshal(resp)
		c.send <- respBytes
	}
}
