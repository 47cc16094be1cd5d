package model

import (
	"time"

	"github.com/potluck-games/dicepot/pkg/tenk"
)

// Room status values.
const (
	StatusWaiting  = "waiting"
	StatusPlaying  = "playing"
	StatusFinished = "finished"
)

// AI strategy names. The set is closed; anything else falls back to balanced.
const (
	StrategyConservative = "conservative"
	StrategyBalanced     = "balanced"
	StrategyAggressive   = "aggressive"
	StrategyChaos        = "chaos"
)

// MaxChatMessages caps the per-room chat log; the oldest message is evicted.
const MaxChatMessages = 100

// User represents a registered or guest user.
type User struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"` // google, guest
	ProviderID  string    `json:"provider_id,omitempty"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Stats       UserStats `json:"stats"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UserStats accumulates across finished games.
type UserStats struct {
	GamesPlayed int `json:"games_played"`
	GamesWon    int `json:"games_won"`
	TotalBanked int `json:"total_banked"`
	HighestTurn int `json:"highest_turn"`
}

// Settings are per-room game parameters, validated on room creation.
type Settings struct {
	TargetScore    int `json:"target_score"`
	EntryThreshold int `json:"entry_threshold"`
	// MaxTurnTimerSec bounds a human turn in seconds; 0 disables the timer.
	MaxTurnTimerSec int `json:"max_turn_timer_sec"`
}

// DefaultSettings returns the standard game parameters.
func DefaultSettings() Settings {
	return Settings{
		TargetScore:     tenk.DefaultTargetScore,
		EntryThreshold:  tenk.DefaultEntryThreshold,
		MaxTurnTimerSec: 0,
	}
}

// RoomPlayer is a membership record in a room.
type RoomPlayer struct {
	UserID     string `json:"user_id"`
	Name       string `json:"name"`
	IsAI       bool   `json:"is_ai,omitempty"`
	AIStrategy string `json:"ai_strategy,omitempty"`
	// AITakeoverStrategy drives this player's seat after a timeout or
	// disconnect takeover.
	AITakeoverStrategy string    `json:"ai_takeover_strategy,omitempty"`
	Connected          bool      `json:"connected"`
	JoinedAt           time.Time `json:"joined_at"`
}

// ChatMessage is one entry in a room's chat log.
type ChatMessage struct {
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Content    string    `json:"content"`
	SentAt     time.Time `json:"sent_at"`
}

// Room is the persistent record of one game room. Each room is owned by
// exactly one orchestrator; all mutation goes through it.
type Room struct {
	Code     string          `json:"code"`
	ID       string          `json:"id"`
	HostID   string          `json:"host_id"`
	Status   string          `json:"status"`
	Players  []RoomPlayer    `json:"players"`
	Game     *tenk.GameState `json:"game,omitempty"`
	Settings Settings        `json:"settings"`
	// AIControlledPlayerID is the player currently driven by AI takeover,
	// empty when none.
	AIControlledPlayerID string        `json:"ai_controlled_player_id,omitempty"`
	IsPaused             bool          `json:"is_paused,omitempty"`
	Chat                 []ChatMessage `json:"chat,omitempty"`
	WinnerID             string        `json:"winner_id,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
	StartedAt            *time.Time    `json:"started_at,omitempty"`
	FinishedAt           *time.Time    `json:"finished_at,omitempty"`
}

// Clone returns a deep copy of the room record.
func (r *Room) Clone() *Room {
	out := *r
	out.Players = append([]RoomPlayer(nil), r.Players...)
	out.Chat = append([]ChatMessage(nil), r.Chat...)
	if r.Game != nil {
		out.Game = r.Game.Clone()
	}
	return &out
}

// Player returns the membership record for the given user, or nil.
func (r *Room) Player(userID string) *RoomPlayer {
	for i := range r.Players {
		if r.Players[i].UserID == userID {
			return &r.Players[i]
		}
	}
	return nil
}

// IsMember reports whether the user belongs to the room.
func (r *Room) IsMember(userID string) bool {
	return r.Player(userID) != nil
}

// AddChat appends a chat message, evicting the oldest past the cap.
func (r *Room) AddChat(msg ChatMessage) {
	r.Chat = append(r.Chat, msg)
	if len(r.Chat) > MaxChatMessages {
		r.Chat = r.Chat[len(r.Chat)-MaxChatMessages:]
	}
}

// Leaderboard periods.
const (
	PeriodDaily   = "daily"
	PeriodWeekly  = "weekly"
	PeriodAllTime = "alltime"
)

// ValidPeriod reports whether p names a leaderboard period.
func ValidPeriod(p string) bool {
	return p == PeriodDaily || p == PeriodWeekly || p == PeriodAllTime
}

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	GamesWon int    `json:"games_won"`
}

// Leaderboard is a ranked listing for one period.
type Leaderboard struct {
	Period    string             `json:"period"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updated_at"`
}
