package notify

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// BellPlayer rings the terminal bell.
type BellPlayer struct {
	mu  sync.Mutex
	out io.Writer
}

func NewBellPlayer(out io.Writer) *BellPlayer {
	return &BellPlayer{out: out}
}

func (b *BellPlayer) Play(ctx context.Context, kind string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := io.WriteString(b.out, "\a")
	return err
}

// TerminalTitle sets the terminal window title with an OSC escape.
type TerminalTitle struct {
	mu  sync.Mutex
	out io.Writer
}

func NewTerminalTitle(out io.Writer) *TerminalTitle {
	return &TerminalTitle{out: out}
}

func (t *TerminalTitle) SetTitle(title string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := fmt.Fprintf(t.out, "\033]0;%s\007", title)
	return err
}
