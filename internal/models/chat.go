// internal/models/chat.go
package models

// 模型回复里出现时不更新聊天位置的占位值
const PlaceholderLocation = "current location"

// ChatInstance 一个角色的聊天线程
type ChatInstance struct {
	ID             string             `json:"id"`
	CharacterID    string             `json:"character_id"`
	Title          string             `json:"title"`
	CreatedAt      string             `json:"created_at"`
	UpdatedAt      string             `json:"updated_at"`
	Location       string             `json:"location"`
	ScenarioID     string             `json:"scenario_id,omitempty"`
	Conversations  []ConversationTurn `json:"conversations"`
	CharacterState *CharacterState    `json:"character_state,omitempty"`
}

// ConversationTurn 一轮对话记录。UserMessage 为 nil 表示开场问候
type ConversationTurn struct {
	Timestamp         string   `json:"timestamp"`
	UserMessage       *string  `json:"user_message"`
	CharacterResponse string   `json:"character_response"`
	Mood              string   `json:"mood"`
	Emotions          Emotions `json:"emotions"`
	Action            string   `json:"action,omitempty"`
	Location          string   `json:"location,omitempty"`
	SceneDescription  string   `json:"scene_description,omitempty"`

	IsPlayerAction bool   `json:"is_player_action,omitempty"`
	PlayerAction   string `json:"player_action,omitempty"`
	ActionSuccess  *bool  `json:"action_success,omitempty"`
	ActionDetails  string `json:"action_details,omitempty"`
}

// ChatCreateRequest POST /api/chats 的请求体
type ChatCreateRequest struct {
	CharacterID string `json:"character_id"`
	Title       string `json:"title"`
	Location    string `json:"location"`
	ScenarioID  string `json:"scenario_id"`
}

// ChatUpdate PUT /api/chats/:id 可修改的字段
type ChatUpdate struct {
	Title      *string `json:"title"`
	Location   *string `json:"location"`
	ScenarioID *string `json:"scenario_id"`
}

// ChatTurnRequest POST /api/chat/:id 的请求体
type ChatTurnRequest struct {
	Message        string `json:"message"`
	UseLocalModel  bool   `json:"use_local_model"`
	IsPlayerAction bool   `json:"is_player_action"`
	// 默认为 true，只在玩家行动时有意义
	ActionSuccess *bool `json:"action_success"`
}

// Succeeded 返回行动是否成功，缺省视为成功
func (r ChatTurnRequest) Succeeded() bool {
	return r.ActionSuccess == nil || *r.ActionSuccess
}

// ChatTurnResponse 一轮对话返回给客户端的结果
type ChatTurnResponse struct {
	Response         string   `json:"response"`
	Mood             string   `json:"mood"`
	Emotions         Emotions `json:"emotions"`
	OpinionOfUser    string   `json:"opinion_of_user"`
	Action           string   `json:"action"`
	Location         string   `json:"location"`
	SceneDescription string   `json:"scene_description"`
}
