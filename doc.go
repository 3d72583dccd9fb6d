// Package gobang 提供一個線上雙人五子棋對局服務器。
//
// 服務器持有固定數量的房間（預設 "1" … "5"），每個房間最多兩位玩家，
// 在 15×15 棋盤上輪流落子，先連成五子者獲勝。
//
// # 房間狀態
//
// 每個房間是一個小型狀態機：
//   - empty：沒有玩家
//   - waiting：一位玩家，等待對手
//   - playing：兩位玩家，黑先
//   - finished：已分勝負，雙方可投票再戰
//
// 任何一方離開或斷線，房間完整重置，留下的玩家收到 player_disconnected。
//
// # WebSocket 通訊
//
// 消息為 JSON 文字幀，以 action 欄位區分：
//
//	→ {"action":"join_room","room_id":"1"}
//	← {"action":"join_success","room_id":"1","role":"black","is_first":true,"game_state":{...}}
//	→ {"action":"move","room_id":"1","x":7,"y":7}
//	← {"action":"move","room_id":"1","x":7,"y":7,"player":1}
//
// 每秒向所有連接廣播一次 room_status（各房間人數）。
//
// # 併發設計
//
//   - 每個房間一把互斥鎖，驗證與修改在同一臨界區內完成
//   - 廣播前取成員快照，發送期間不持有房間鎖
//   - 發送失敗視為斷線，在整輪分發結束後處理
//
// # 使用範例
//
//	coordinator, _ := internal.NewCoordinator(internal.CoordinatorOptions{}, logger)
//	coordinator.Start()
//	hub := internal.NewWebSocketHub(coordinator, internal.DefaultHubConfig(), logger)
//
//	mux := http.NewServeMux()
//	mux.Handle("/", internal.NewHandler(coordinator, logger).Routes())
//	mux.HandleFunc("GET /ws", hub.ServeWS)
//	log.Fatal(http.ListenAndServe(":8080", mux))
//
// 遊戲事件（game_started / move_played / game_over / player_left）
// 可以選擇性地發布到 NATS，主題為 <prefix>.<type>。
package gobang
