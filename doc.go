// Package seabattle 提供一個即時回合制雙人海戰遊戲服務器。
//
// 客戶端透過 WebSocket 連線、註冊名稱、建立或加入房間，
// 佈下 10 艘船後輪流攻擊，直到一方艦隊全滅；排行榜跨對局累計勝場。
// 也可以選擇與機器人對戰。
//
// # 元件
//
//   - internal/battle：攻擊判定（miss / shot / killed 與擊沉後的周邊標記）
//   - internal/protocol：訊息格式（data 欄位為字串化 JSON）
//   - internal.Registry：連線與身分
//   - internal.RoomManager：等待房間與配對
//   - internal.MatchEngine：對局狀態機、回合與勝負
//   - internal.Leaderboard：勝場排行
//   - internal.Coordinator：單一寫入的分派迴圈
//   - internal.Bot：自動對手，與真人連線共用同一個 Conn 介面
//
// # 並發模型
//
// 所有狀態修改都經由 Coordinator 的單一迴圈依序處理，
// 每則入站訊息連同它產生的出站訊息處理完才處理下一則。
// 機器人的延遲攻擊是稍後到達的另一則入站訊息。
//
// # 使用範例
//
//	cfg := internal.DefaultConfig()
//	coordinator := internal.NewCoordinator(cfg.Game, events.Nop{}, nil, logger)
//	hub := internal.NewWebSocketHub(coordinator, cfg.WebSocket, cfg.Limits, logger)
//	handler := internal.NewHandler(coordinator, hub, nil, logger)
//	log.Fatal(http.ListenAndServe(":3000", handler.Routes()))
//
// 客戶端連接：
//
//	ws://localhost:3000/ws
//	{"id":0,"type":"reg","data":"{\"name\":\"alice\",\"password\":\"secret\"}"}
package seabattle
