// Package console is a line-oriented terminal front end for a session. It
// reads commands from an input stream and redraws the board as the local
// view changes.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/KDT2006/minewars/internal/protocol"
	"github.com/KDT2006/minewars/internal/replica"
)

var errQuit = errors.New("quit")

// Peer is the part of a host or guest the console drives.
type Peer interface {
	Move(ctx context.Context, r, c int) error
	Flag(ctx context.Context, r, c int) error
	View(ctx context.Context) (replica.State, error)
	Updates() <-chan protocol.Message
}

type Console struct {
	peer  Peer
	start func(ctx context.Context) error
	in    io.Reader
	out   io.Writer
}

// New returns a console for peer. start runs on "start" and "rematch".
func New(peer Peer, start func(ctx context.Context) error, in io.Reader, out io.Writer) *Console {
	return &Console{peer: peer, start: start, in: in, out: out}
}

// Run processes commands and updates until the input ends, "quit" is read or
// ctx is done.
func (c *Console) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go c.readLoop(ctx, lines)

	updates := c.peer.Updates()
	dirty := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-updates:
			if c.note(msg) {
				dirty = true
			}
			// batch redraws: a flood fill arrives as many deltas
			if dirty && len(updates) == 0 {
				if err := c.draw(ctx); err != nil {
					return err
				}
				dirty = false
			}
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := c.exec(ctx, line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				fmt.Fprintf(c.out, "error: %v\n", err)
			}
		}
	}
}

func (c *Console) readLoop(ctx context.Context, lines chan<- string) {
	defer close(lines)

	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
}

// note prints one-line notices and reports whether the board needs a redraw.
func (c *Console) note(msg protocol.Message) bool {
	switch p := msg.Payload.(type) {
	case protocol.LobbyUpdatePayload:
		fmt.Fprintf(c.out, "lobby (%d/%d, %s, %s):\n", len(p.Players), p.Config.MaxPlayers, p.Config.Mode, p.Config.Size)
		for i, player := range p.Players {
			role := ""
			if player.Host {
				role = " (host)"
			}
			fmt.Fprintf(c.out, "  %d. %s%s\n", i+1, player.Name, role)
		}
		return false
	case protocol.GameOverPayload:
		result := "LOSS"
		if p.Win {
			result = "WIN"
		}
		fmt.Fprintf(c.out, "game over: %s (%s)\n", p.Msg, result)
		return true
	case protocol.CursorPayload:
		return false
	default:
		return true
	}
}

func (c *Console) draw(ctx context.Context) error {
	view, err := c.peer.View(ctx)
	if err != nil {
		return err
	}
	Render(c.out, view)
	return nil
}

func (c *Console) exec(ctx context.Context, line string) error {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "start", "rematch":
		return c.start(ctx)
	case "move", "m":
		r, col, err := coords(fields)
		if err != nil {
			return err
		}
		return c.peer.Move(ctx, r, col)
	case "flag", "f":
		r, col, err := coords(fields)
		if err != nil {
			return err
		}
		return c.peer.Flag(ctx, r, col)
	case "board", "b":
		return c.draw(ctx)
	case "quit", "q":
		return errQuit
	case "help", "h":
		fmt.Fprintln(c.out, "commands: start | move R C | flag R C | board | rematch | quit")
		return nil
	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
}

func coords(fields []string) (int, int, error) {
	if len(fields) != 3 {
		return 0, 0, fmt.Errorf("usage: %s ROW COL", fields[0])
	}
	r, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid row %q", fields[1])
	}
	col, err := strconv.Atoi(fields[2])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid column %q", fields[2])
	}
	return r, col, nil
}
