package protocol

type MessageType string
type Mode string

const (
	// Host -> All
	LobbyUpdate MessageType = "LOBBY_UPDATE"
	GameStart   MessageType = "GAME_START"
	UpdateGrid  MessageType = "UPDATE_GRID"
	TurnChange  MessageType = "TURN_CHANGE"
	GameOver    MessageType = "GAME_OVER"

	// Host -> Guest
	ErrorMessage MessageType = "ERROR"

	// Guest -> Host
	JoinGame     MessageType = "JOIN"
	MoveRequest  MessageType = "MOVE"
	RematchReady MessageType = "REMATCH"

	// Relayed in both directions
	FlagToggle   MessageType = "FLAG"
	CursorUpdate MessageType = "CURSOR"
)

const (
	ModeTurn Mode = "turn"
	ModeRace Mode = "race"
	ModeCoop Mode = "coop"
)

// Payload is implemented by every message body. The set is closed: only the
// types declared in this package satisfy it.
type Payload interface {
	MessageType() MessageType
	sealed()
}

// Message represents the base message structure sent between peers.
type Message struct {
	Type    MessageType
	Payload Payload
}

// New wraps a payload into a message tagged with its type.
func New(p Payload) Message {
	return Message{Type: p.MessageType(), Payload: p}
}

// Player is a roster entry as replicated to every participant.
type Player struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Color      string `json:"color"`
	Host       bool   `json:"host"`
	Eliminated bool   `json:"eliminated"`
}

// Tile is a single board cell.
type Tile struct {
	IsMine  bool `json:"isMine"`
	Count   int  `json:"count"`
	IsOpen  bool `json:"isOpen"`
	Flagged bool `json:"flagged"`
}

// GameConfig is owned by the host and broadcast with every roster change.
type GameConfig struct {
	Size       string `json:"size" mapstructure:"size" validate:"oneof=small medium large custom"`
	Rows       int    `json:"rows" mapstructure:"rows" validate:"omitempty,min=5,max=50"`
	Cols       int    `json:"cols" mapstructure:"cols" validate:"omitempty,min=5,max=50"`
	MineCount  int    `json:"mineCount" mapstructure:"mineCount" validate:"omitempty,min=1"`
	MaxPlayers int    `json:"maxPlayers" mapstructure:"maxPlayers" validate:"min=1"`
	Mode       Mode   `json:"mode" mapstructure:"mode" validate:"oneof=turn race coop"`
	NoGuess    bool   `json:"noGuess" mapstructure:"noGuess"`
}

// JoinPayload is sent by a guest once its connection to the host opens.
type JoinPayload struct {
	Name string `json:"name"`
}

// LobbyUpdatePayload is a full roster and config snapshot.
type LobbyUpdatePayload struct {
	Players []Player   `json:"players"`
	Config  GameConfig `json:"config"`
}

// GameStartPayload carries the complete board of a new round.
type GameStartPayload struct {
	Board     [][]Tile `json:"board"`
	TurnIndex int      `json:"turnIndex"`
	Mines     int      `json:"mines"`
	Rows      int      `json:"rows"`
	Cols      int      `json:"cols"`
}

// MovePayload asks the host to reveal (or chord) a cell.
type MovePayload struct {
	R int `json:"r"`
	C int `json:"c"`
}

// UpdateGridPayload is the authoritative state of one cell after a reveal.
// By names the player whose move opened the cell.
type UpdateGridPayload struct {
	R    int    `json:"r"`
	C    int    `json:"c"`
	Tile Tile   `json:"tile"`
	By   string `json:"by,omitempty"`
}

// TurnChangePayload announces the current turn holder by roster index.
type TurnChangePayload struct {
	Index int `json:"idx"`
}

// FlagPayload toggles the flag annotation of a closed cell.
type FlagPayload struct {
	R int `json:"r"`
	C int `json:"c"`
}

// GameOverPayload ends the round.
type GameOverPayload struct {
	Win bool   `json:"win"`
	Msg string `json:"msg"`
}

// CursorPayload is an ephemeral pointer position in [0,1]x[0,1]. Negative
// coordinates mean the pointer left the board.
type CursorPayload struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	ID string  `json:"id,omitempty"`
}

// RematchPayload asks the host for a new round.
type RematchPayload struct{}

// ErrorPayload tells a guest why it was rejected.
type ErrorPayload struct {
	Msg string `json:"msg"`
}

func (JoinPayload) MessageType() MessageType        { return JoinGame }
func (LobbyUpdatePayload) MessageType() MessageType { return LobbyUpdate }
func (GameStartPayload) MessageType() MessageType   { return GameStart }
func (MovePayload) MessageType() MessageType        { return MoveRequest }
func (UpdateGridPayload) MessageType() MessageType  { return UpdateGrid }
func (TurnChangePayload) MessageType() MessageType  { return TurnChange }
func (FlagPayload) MessageType() MessageType        { return FlagToggle }
func (GameOverPayload) MessageType() MessageType    { return GameOver }
func (CursorPayload) MessageType() MessageType      { return CursorUpdate }
func (RematchPayload) MessageType() MessageType     { return RematchReady }
func (ErrorPayload) MessageType() MessageType       { return ErrorMessage }

func (JoinPayload) sealed()        {}
func (LobbyUpdatePayload) sealed() {}
func (GameStartPayload) sealed()   {}
func (MovePayload) sealed()        {}
func (UpdateGridPayload) sealed()  {}
func (TurnChangePayload) sealed()  {}
func (FlagPayload) sealed()        {}
func (GameOverPayload) sealed()    {}
func (CursorPayload) sealed()      {}
func (RematchPayload) sealed()     {}
func (ErrorPayload) sealed()       {}

// IsOffBoard reports whether the cursor carries the "left the board" sentinel.
func (p CursorPayload) IsOffBoard() bool {
	return p.X < 0 || p.Y < 0
}
