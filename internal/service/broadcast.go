package service

// Event types delivered to room subscribers. Events are full snapshots or
// self-contained notifications; clients never need to reorder them.
const (
	EventPlayerJoined         = "playerJoined"
	EventPlayerLeft           = "playerLeft"
	EventGameStarted          = "gameStarted"
	EventGameStateUpdate      = "gameStateUpdate"
	EventTurnChanged          = "turnChanged"
	EventGameEnded            = "gameEnded"
	EventPlayerTimedOut       = "playerTimedOut"
	EventTimerSync            = "timerSync"
	EventTimerReset           = "timerReset"
	EventGracePeriodStarted   = "gracePeriodStarted"
	EventGracePeriodEnded     = "gracePeriodEnded"
	EventGamePaused           = "gamePaused"
	EventGameResumed          = "gameResumed"
	EventAITakeover           = "aiTakeover"
	EventPlayerResumedControl = "playerResumedControl"
	EventActionError          = "actionError"
	EventChatMessage          = "chatMessage"
	EventHostChanged          = "hostChanged"
)

// Broadcaster sends real-time events to connected clients.
// Implemented by the WebSocket hub.
type Broadcaster interface {
	// EmitToRoom multicasts an event to every connection in the room.
	EmitToRoom(code string, event string, data any)
	// EmitToPlayer sends an event to one member's connections only.
	EmitToPlayer(code string, playerID string, event string, data any)
}

// NoopBroadcaster is a no-op implementation for testing or when WS is disabled.
type NoopBroadcaster struct{}

func (NoopBroadcaster) EmitToRoom(string, string, any)           {}
func (NoopBroadcaster) EmitToPlayer(string, string, string, any) {}
