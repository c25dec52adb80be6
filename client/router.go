package client

import (
	"encoding/json"
	"fmt"
)

// handlerFunc 处理一种入站消息
type handlerFunc func(raw []byte) error

// MessageRouter 按 type 分发入站帧；未知类型与坏帧只记录日志，不影响连接
type MessageRouter struct {
	handlers map[string]handlerFunc
	metrics  *Metrics
}

func NewMessageRouter(store *EntityStore, prox *ProximityInteraction, ui UI, metrics *Metrics) *MessageRouter {
	if metrics == nil {
		metrics = NewMetrics()
	}
	r := &MessageRouter{handlers: make(map[string]handlerFunc), metrics: metrics}

	r.Handle(MsgYourPlayer, func(raw []byte) error {
		var st EntityState
		if err := json.Unmarshal(raw, &st); err != nil {
			return err
		}
		store.SetLocalPlayer(st)
		Log.Infof("local player established id=%s name=%s at (%.0f, %.0f)", st.ID, st.Name, st.X, st.Y)
		return nil
	})
	r.Handle(MsgWorldState, func(raw []byte) error {
		var ws worldStatePayload
		if err := json.Unmarshal(raw, &ws); err != nil {
			return err
		}
		store.ReconcileWorldState(ws.Players)
		return nil
	})
	r.Handle(MsgPlayerJoined, func(raw []byte) error {
		var st EntityState
		if err := json.Unmarshal(raw, &st); err != nil {
			return err
		}
		store.AddEntity(st)
		ui.SystemMessage(fmt.Sprintf("%s joined the game", st.Name))
		return nil
	})
	r.Handle(MsgPlayerLeft, func(raw []byte) error {
		var pl playerLeftPayload
		if err := json.Unmarshal(raw, &pl); err != nil {
			return err
		}
		store.RemoveEntity(pl.ID)
		return nil
	})
	r.Handle(MsgPlayerMoved, func(raw []byte) error {
		var st EntityState
		if err := json.Unmarshal(raw, &st); err != nil {
			return err
		}
		store.UpdateTarget(st.ID, st.X, st.Y)
		return nil
	})
	r.Handle(MsgChatMessage, func(raw []byte) error {
		var cm chatPayload
		if err := json.Unmarshal(raw, &cm); err != nil {
			return err
		}
		ui.ChatMessage(cm.Name, cm.Message)
		return nil
	})
	r.Handle(MsgNearbyPlayers, func(raw []byte) error {
		var np nearbyPayload
		if err := json.Unmarshal(raw, &np); err != nil {
			return err
		}
		prox.HandleNearby(np.NearbyPlayers)
		return nil
	})
	r.Handle(MsgInteractionResult, func(raw []byte) error {
		var ir interactionResultPayload
		if err := json.Unmarshal(raw, &ir); err != nil {
			return err
		}
		prox.HandleResult(ir.Result)
		return nil
	})
	return r
}

// Handle 注册或替换某个 type 的处理函数
func (r *MessageRouter) Handle(msgType string, h handlerFunc) {
	r.handlers[msgType] = h
}

// Route 解析并分发一帧；返回是否被某个处理函数接受
func (r *MessageRouter) Route(frame []byte) bool {
	r.metrics.FramesReceived.Inc()

	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		r.metrics.FramesMalformed.Inc()
		Log.Warnf("error parsing message: %v", err)
		return false
	}
	h, ok := r.handlers[env.Type]
	if !ok {
		r.metrics.FramesUnknown.Inc()
		Log.Infof("unknown message type: %q", env.Type)
		return false
	}
	if err := h(frame); err != nil {
		r.metrics.FramesMalformed.Inc()
		Log.Warnf("error decoding %s: %v", env.Type, err)
		return false
	}
	return true
}
