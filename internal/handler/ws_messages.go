package handler

// Ingress message types accepted over the WebSocket.
const (
	msgMatchmakingJoin  = "matchmaking.join"
	msgMatchmakingLeave = "matchmaking.leave"

	msgRoomCreate     = "room.create"
	msgRoomJoin       = "room.join"
	msgRoomLeave      = "room.leave"
	msgRoomReady      = "room.ready"
	msgRoomChangeTeam = "room.changeTeam"

	msgGameSendTroops = "game.sendTroops"
	msgGameSurrender  = "game.surrender"

	msgRematchVote = "rematch.vote"

	msgChatSend  = "chat.send"
	msgChatQuick = "chat.quick"
	msgEmoteSend = "emote.send"
)

type matchmakingJoinMsg struct {
	Mode string `json:"mode"`
}

type roomCreateMsg struct {
	Mode string `json:"mode"`
}

type roomJoinMsg struct {
	RoomID string `json:"room_id"`
}

type roomReadyMsg struct {
	Ready bool `json:"ready"`
}

type roomChangeTeamMsg struct {
	Team int `json:"team"`
}

type sendTroopsMsg struct {
	From     int     `json:"from"`
	To       int     `json:"to"`
	Fraction float64 `json:"fraction"`
}

type chatSendMsg struct {
	Text string `json:"text"`
}

type chatQuickMsg struct {
	MessageID string `json:"message_id"`
}

type emoteSendMsg struct {
	EmoteID string `json:"emote_id"`
}

// errorPayload is the egress body for rejected commands.
type errorPayload struct {
	Command string `json:"command"`
	Error   string `json:"error"`
}
