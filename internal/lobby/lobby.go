package lobby

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/KDT2006/minewars/internal/protocol"
)

var (
	ErrLobbyFull       = errors.New("lobby full")
	ErrGameInProgress  = errors.New("game in progress")
	ErrInvalidCode     = errors.New("invalid join code")
	ErrDuplicatePlayer = errors.New("player already in lobby")
)

const (
	CodeLength    = 4
	MaxNameLength = 12
	DefaultName   = "GUEST"

	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	peerPrefix   = "mw-"
)

// Palette is assigned by join order; a slot frees up when its player leaves.
var Palette = []string{
	"#6366f1", "#f43f5e", "#10b981", "#f59e0b",
	"#0ea5e9", "#a855f7", "#ec4899", "#84cc16",
}

// Lobby tracks the roster and the game configuration of one hosted session.
// Insertion order is turn order.
type Lobby struct {
	code    string
	config  protocol.GameConfig
	players []*protocol.Player
}

func New(code string, config protocol.GameConfig) *Lobby {
	return &Lobby{code: code, config: config}
}

// Add appends a player and assigns its colour. A full lobby or an active game
// rejects the candidate and leaves the roster untouched.
func (l *Lobby) Add(candidate protocol.Player, gameActive bool) (*protocol.Player, error) {
	if gameActive {
		return nil, ErrGameInProgress
	}
	if len(l.players) >= l.config.MaxPlayers {
		return nil, ErrLobbyFull
	}
	if l.Player(candidate.ID) != nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicatePlayer, candidate.ID)
	}

	p := candidate
	p.Name = SanitizeName(p.Name)
	p.Color = l.nextColor()
	p.Eliminated = false
	l.players = append(l.players, &p)

	return &p, nil
}

// Remove deletes a player by id.
func (l *Lobby) Remove(id string) (protocol.Player, bool) {
	for i, p := range l.players {
		if p.ID == id {
			l.players = append(l.players[:i], l.players[i+1:]...)
			return *p, true
		}
	}
	return protocol.Player{}, false
}

func (l *Lobby) nextColor() string {
	used := make(map[string]bool, len(l.players))
	for _, p := range l.players {
		used[p.Color] = true
	}
	for _, color := range Palette {
		if !used[color] {
			return color
		}
	}
	return Palette[len(l.players)%len(Palette)]
}

func (l *Lobby) Player(id string) *protocol.Player {
	for _, p := range l.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Players returns the live roster in turn order. The game state machine
// mutates elimination flags through these pointers.
func (l *Lobby) Players() []*protocol.Player {
	return l.players
}

func (l *Lobby) Len() int {
	return len(l.players)
}

func (l *Lobby) Code() string {
	return l.code
}

func (l *Lobby) Config() protocol.GameConfig {
	return l.config
}

func (l *Lobby) SetConfig(cfg protocol.GameConfig) {
	l.config = cfg
}

// Snapshot is the LOBBY_UPDATE message for the current roster and config.
func (l *Lobby) Snapshot() protocol.Message {
	players := make([]protocol.Player, len(l.players))
	for i, p := range l.players {
		players[i] = *p
	}
	return protocol.New(protocol.LobbyUpdatePayload{Players: players, Config: l.config})
}

// SanitizeName trims, uppercases and truncates a display name.
func SanitizeName(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	if utf8.RuneCountInString(name) > MaxNameLength {
		name = string([]rune(name)[:MaxNameLength])
	}
	if name == "" {
		return DefaultName
	}
	return name
}

// NewCode returns a random join code. Codes are not coordinated between
// hosts; a collision only makes a join fail.
func NewCode(rng *rand.Rand) string {
	var b strings.Builder
	for i := 0; i < CodeLength; i++ {
		b.WriteByte(codeAlphabet[rng.IntN(len(codeAlphabet))])
	}
	return b.String()
}

// NormalizeCode validates a code typed by a guest, case-insensitively.
func NormalizeCode(input string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(input))
	if utf8.RuneCountInString(code) != CodeLength {
		return "", fmt.Errorf("%w: %q", ErrInvalidCode, input)
	}
	for _, r := range code {
		if r > unicode.MaxASCII || !(unicode.IsUpper(r) || unicode.IsDigit(r)) {
			return "", fmt.Errorf("%w: %q", ErrInvalidCode, input)
		}
	}
	return code, nil
}

// HostPeerID is the transport identity a host registers for its join code.
func HostPeerID(code string) string {
	return peerPrefix + code + "-host"
}

// GuestPeerID builds a guest transport identity from a unique suffix.
func GuestPeerID(suffix string) string {
	return peerPrefix + suffix
}
