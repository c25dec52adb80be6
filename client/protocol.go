package client

import "encoding/json"

// 出站消息类型（客户端 -> 服务端）
const (
	MsgJoin             = "join"
	MsgMove             = "move"
	MsgChat             = "chat"
	MsgGetNearbyPlayers = "get_nearby_players"
	MsgPlayerInteract   = "player_interact"
)

// 入站消息类型（服务端 -> 客户端）
const (
	MsgYourPlayer        = "your_player"
	MsgWorldState        = "world_state"
	MsgPlayerJoined      = "player_joined"
	MsgPlayerLeft        = "player_left"
	MsgPlayerMoved       = "player_moved"
	MsgChatMessage       = "chat_message"
	MsgNearbyPlayers     = "nearby_players"
	MsgInteractionResult = "interaction_result"
)

// OutboundMessage 所有出站消息都是扁平 JSON，带 type 字段
type OutboundMessage interface {
	MessageType() string
}

type JoinMessage struct {
	Type  string  `json:"type"`
	Name  string  `json:"name"`
	Token string  `json:"token"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

func (JoinMessage) MessageType() string { return MsgJoin }

type MoveMessage struct {
	Type      string  `json:"type"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Sprinting bool    `json:"sprinting"`
}

func (MoveMessage) MessageType() string { return MsgMove }

type ChatMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (ChatMessage) MessageType() string { return MsgChat }

type NearbyRequest struct {
	Type     string   `json:"type"`
	PlayerID EntityID `json:"player_id,omitempty"`
}

func (NearbyRequest) MessageType() string { return MsgGetNearbyPlayers }

type InteractRequest struct {
	Type            string   `json:"type"`
	ToPlayerID      EntityID `json:"to_player_id"`
	InteractionType string   `json:"interaction_type"`
	Token           string   `json:"token"`
}

func (InteractRequest) MessageType() string { return MsgPlayerInteract }

// envelope 入站帧的通用头，只解析 type
type envelope struct {
	Type string `json:"type"`
}

// EntityState 服务端下发的实体位置
type EntityState struct {
	ID   EntityID `json:"id"`
	Name string   `json:"name"`
	X    float64  `json:"x"`
	Y    float64  `json:"y"`
}

type worldStatePayload struct {
	Players []EntityState `json:"players"`
}

type playerLeftPayload struct {
	ID EntityID `json:"id"`
}

type chatPayload struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// InteractionDescriptor 服务端声明的一种可用交互
type InteractionDescriptor struct {
	Type    string `json:"type"`
	Label   string `json:"label"`
	Icon    string `json:"icon"`
	Enabled bool   `json:"enabled"`
}

// NearbyEntity 附近可交互的实体及其交互列表
type NearbyEntity struct {
	ID           EntityID                `json:"id"`
	Name         string                  `json:"name"`
	Interactions []InteractionDescriptor `json:"interactions"`
}

type nearbyPayload struct {
	NearbyPlayers []NearbyEntity `json:"nearby_players"`
}

// InteractionResult 交互结果；action 是给 UI 的后续指令（如 show_player_stats）
type InteractionResult struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
	Action  string          `json:"action,omitempty"`
	Stats   json.RawMessage `json:"stats,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type interactionResultPayload struct {
	Result InteractionResult `json:"result"`
}
