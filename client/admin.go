package client

import (
	"encoding/json"
	"net/http"
	"time"
)

// DebugHandler 调试与监控接口
func (g *Game) DebugHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/state", g.HandleDebugState)
	mux.HandleFunc("/debug/config", g.HandleDebugConfig)
	mux.Handle("/metrics", g.metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// HandleDebugState 输出最近一帧的快照
// GET /debug/state
func (g *Game) HandleDebugState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snap := g.LatestSnapshot()
	if snap == nil {
		http.Error(w, "no frame rendered yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}

// HandleDebugConfig 读取与热更新本地预测参数
// GET /debug/config  返回当前参数
// POST /debug/config 以 JSON 载荷更新部分字段，在循环线程中生效
func (g *Game) HandleDebugConfig(w http.ResponseWriter, r *http.Request) {
	type cfg struct {
		StepSpeed      *float64 `json:"stepSpeed,omitempty"`
		MoveIntervalMs *int     `json:"moveIntervalMs,omitempty"`
		PollIntervalMs *int     `json:"pollIntervalMs,omitempty"`
	}

	switch r.Method {
	case http.MethodGet:
		var cur Tunables
		if snap := g.LatestSnapshot(); snap != nil {
			cur = snap.Tunables
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(cur)
		return
	case http.MethodPost:
		var body cfg
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if body.StepSpeed != nil && *body.StepSpeed <= 0 {
			http.Error(w, "stepSpeed must be positive", http.StatusBadRequest)
			return
		}
		if body.PollIntervalMs != nil && *body.PollIntervalMs <= 0 {
			http.Error(w, "pollIntervalMs must be positive", http.StatusBadRequest)
			return
		}
		applied := make(chan Tunables, 1)
		ok := g.Post(func() {
			step := g.pred.StepSpeed()
			interval := g.pred.MoveInterval()
			if body.StepSpeed != nil {
				step = *body.StepSpeed
			}
			if body.MoveIntervalMs != nil {
				interval = time.Duration(*body.MoveIntervalMs) * time.Millisecond
			}
			g.pred.Configure(step, interval)
			if body.PollIntervalMs != nil {
				g.prox.SetPollInterval(time.Duration(*body.PollIntervalMs) * time.Millisecond)
			}
			applied <- g.tunables()
		})
		if !ok {
			http.Error(w, "loop stopped", http.StatusServiceUnavailable)
			return
		}
		var cur Tunables
		select {
		case cur = <-applied:
		case <-r.Context().Done():
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "tunables": cur})
		Log.Infof("config updated: step=%.2f moveInterval=%dms pollInterval=%dms",
			cur.StepSpeed, cur.MoveIntervalMs, cur.PollIntervalMs)
		return
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
}
