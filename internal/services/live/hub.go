// Package live はデータセット更新のライブ配信です。WebSocketで接続した
// クライアント全員に、新しいデータセットバージョンをブロードキャストします。
package live

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client はWebSocket接続を持つ単一のクライアントを表します。
type Client struct {
	ID     string          // クライアント識別用のUUID
	Conn   *websocket.Conn // クライアントとの実際のWebSocketコネクション
	Send   chan []byte     // クライアントへメッセージを送信するためのバッファ付きチャネル
	closed bool            // チャネルが閉じられたかどうかのフラグ
	mu     sync.Mutex      // closedフラグ保護用
}

// SafeSend は安全にチャネルにメッセージを送信します（closedチェック付き）
func (c *Client) SafeSend(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.Send <- message:
		return true
	default:
		return false // チャネルがフル
	}
}

// SafeClose は安全にチャネルを閉じます
func (c *Client) SafeClose() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.Send)
		c.closed = true
	}
}

// DatasetUpdateEvent はクライアントに配信される更新通知です。
type DatasetUpdateEvent struct {
	Type         string    `json:"type"`
	Version      int       `json:"version"`
	TotalResults int       `json:"total_results"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Hub は接続中の全クライアントと更新通知の配信を管理します。
// アプリケーション内でシングルトンとして動作することが想定されます。
type Hub struct {
	clients    map[string]*Client // clientID -> Client のマップ
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	quit       chan struct{}
	mu         sync.RWMutex // clients マップへのアクセスを保護するためのRWMutex
}

// NewHub は新しい Hub を作成し、そのメインイベントループをバックグラウンドで開始します。
func NewHub() *Hub {
	h := &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		quit:       make(chan struct{}),
	}
	go h.Run()
	return h
}

// Run は Hub のメインイベントループです。クライアントの登録/解除と
// 更新通知のブロードキャストを処理します。
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			log.Printf("[LiveHub] Client registered: %s (total: %d)", client.ID, h.clientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if registered, ok := h.clients[client.ID]; ok {
				registered.SafeClose()
				delete(h.clients, client.ID)
			}
			h.mu.Unlock()
			log.Printf("[LiveHub] Client unregistered: %s (total: %d)", client.ID, h.clientCount())

		case message := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients {
				if !client.SafeSend(message) {
					log.Printf("[LiveHub] Failed to send to client %s (channel closed or full)", client.ID)
				}
			}
			h.mu.RUnlock()

		case <-h.quit:
			log.Printf("[LiveHub] シャットダウンシグナルを受信、メインループを終了します")
			return
		}
	}
}

// NotifyDatasetUpdated はデータセット更新を全クライアントに通知します。
// ingest サービスのリスナーとして登録されます。
func (h *Hub) NotifyDatasetUpdated(version, totalResults int) {
	event := DatasetUpdateEvent{
		Type:         "dataset_updated",
		Version:      version,
		TotalResults: totalResults,
		UpdatedAt:    time.Now().UTC(),
	}
	message, err := json.Marshal(event)
	if err != nil {
		log.Printf("[LiveHub] Error marshaling update event: %v", err)
		return
	}

	select {
	case h.broadcast <- message:
	default:
		log.Printf("[LiveHub] Broadcast channel full, skipping update for version %d", version)
	}
}

// RegisterClient は新しいWebSocket接続を Hub に登録し、読み書きの
// ゴルーチンを開始します。
func (h *Hub) RegisterClient(conn *websocket.Conn) *Client {
	client := &Client{
		ID:   uuid.New().String(),
		Conn: conn,
		Send: make(chan []byte, 64),
	}

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(300 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(300 * time.Second)) // Pong受信時にタイムアウトリセット
		return nil
	})

	go h.readPump(client)
	go client.writePump()

	h.register <- client
	return client
}

// readPump はクライアントからの受信を待ち受けます。配信専用のハブなので
// メッセージの内容は無視し、切断検知のためだけに読み続けます。
func (h *Hub) readPump(client *Client) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[LiveHub] Panic in readPump for client %s: %v", client.ID, r)
		}
		h.unregister <- client
		if client.Conn != nil {
			client.Conn.Close()
		}
	}()

	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("[LiveHub] WebSocket unexpected close for client %s: %v", client.ID, err)
			}
			return
		}
	}
}

// writePump は Client の Send チャネルからのメッセージをWebSocketコネクションに
// 書き込みます。クライアントごとにこのゴルーチンが動作します。
func (c *Client) writePump() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[LiveHub] Panic in writePump for client %s: %v", c.ID, r)
		}
		if c.Conn != nil {
			c.Conn.Close()
		}
	}()

	// ピング送信のタイマー（コネクションの生存確認）
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[LiveHub] Error writing message for client %s: %v", c.ID, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Shutdown は Hub を安全にシャットダウンします
func (h *Hub) Shutdown() {
	close(h.quit)

	h.mu.Lock()
	for _, client := range h.clients {
		if client.Conn != nil {
			client.Conn.Close()
		}
		client.SafeClose()
	}
	h.clients = make(map[string]*Client)
	h.mu.Unlock()
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
