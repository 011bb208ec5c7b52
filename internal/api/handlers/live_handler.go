package handlers

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/quicksync-community/benchmark-backend/internal/services/live"
)

// upgrader はHTTP接続をWebSocketプロトコルにアップグレードするための設定です。
// CheckOrigin はクロスオリジンリクエストを許可するかどうかを制御します。
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 配信専用・読み取りのみのエンドポイントなので全Originを許可
		return true
	},
}

// LiveHandler はデータセット更新のライブ配信ハンドラーです。
type LiveHandler struct {
	hub *live.Hub
}

// NewLiveHandler は新しいLiveHandlerインスタンスを作成します。
func NewLiveHandler(hub *live.Hub) *LiveHandler {
	return &LiveHandler{
		hub: hub,
	}
}

// Handle はWebSocket接続を受け付けてハブに登録するハンドラーです。
// GET /api/live
func (h *LiveHandler) Handle(w http.ResponseWriter, r *http.Request) {
	// HTTP接続をWebSocket接続にアップグレード
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[LiveHandler] Failed to upgrade to websocket: %v", err)
		return // アップグレード失敗時はエラーログのみ
	}
	// conn はここでは閉じない。Hubが管理するため。
	h.hub.RegisterClient(conn)
}
