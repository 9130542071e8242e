package service

// Egress event types sent over the real-time channel.
const (
	EventMatchmakingJoined = "matchmaking.joined"
	EventMatchmakingFound  = "matchmaking.found"

	EventRoomCreated  = "room.created"
	EventRoomJoined   = "room.joined"
	EventPlayerJoined = "room.playerJoined"
	EventPlayerLeft   = "room.playerLeft"
	EventPlayerReady  = "room.playerReady"
	EventTeamChanged  = "room.teamChanged"
	EventHostChanged  = "room.hostChanged"

	EventGameStarted        = "game.started"
	EventTroopsSent         = "game.troopsSent"
	EventTroopArrived       = "game.troopArrived"
	EventStateUpdate        = "game.stateUpdate"
	EventPlayerDisconnected = "game.playerDisconnected"
	EventPlayerReconnected  = "game.playerReconnected"
	EventGameEnded          = "game.ended"

	EventRematchUpdate  = "rematch.update"
	EventRematchStarted = "rematch.started"

	EventChatMessage = "chat.message"
	EventEmote       = "emote.played"
)

// Broadcaster delivers egress events to connections. Implemented by the
// WebSocket hub; sends must never block the caller.
type Broadcaster interface {
	Send(connID, event string, data any)
	SendAll(connIDs []string, event string, data any)
}

// NoopBroadcaster is a no-op implementation for testing.
type NoopBroadcaster struct{}

func (NoopBroadcaster) Send(string, string, any)      {}
func (NoopBroadcaster) SendAll([]string, string, any) {}
