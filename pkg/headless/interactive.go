package headless

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/killallgit/foliochat/pkg/chat"
	"github.com/killallgit/foliochat/pkg/engage"
	"github.com/killallgit/foliochat/pkg/store"
)

// TooltipText is printed when the engagement prompt appears.
const TooltipText = "Have a question about the projects? Type it below."

const interactiveHelp = `Commands:
  /open     open the chat panel
  /close    close the panel (replies are counted as unread)
  /new      start a new session
  /back     leave the current session
  /clear    clear the current session
  /read     mark everything as read
  /quit     exit`

// Interactive reads prompts from in, one per line, until EOF, /quit or ctx
// ends. The engagement tooltip is scheduled while the session runs.
func (r *Runner) Interactive(ctx context.Context, in io.Reader) error {
	r.store.Subscribe(&tooltipPrinter{out: r.out})

	if r.cfg.Engagement.Enabled {
		sched := engage.New(r.store, engage.SettingsFromConfig(r.cfg.Engagement))
		if err := sched.Start(); err != nil {
			return err
		}
		defer sched.Stop()
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	closed := !r.store.Snapshot().IsOpen
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "/") {
				quit := r.command(line, &closed)
				if quit {
					return nil
				}
				continue
			}
			if err := r.Ask(ctx, line, AskOptions{Closed: closed}); err != nil {
				fmt.Fprintf(r.out, "error: %v\n", err)
			}
		}
	}
}

func (r *Runner) command(line string, closed *bool) (quit bool) {
	switch line {
	case "/quit", "/exit":
		return true
	case "/open":
		*closed = false
		r.store.Dispatch(chat.OpenChat{})
	case "/close":
		*closed = true
		r.store.Dispatch(chat.CloseChat{})
	case "/new":
		r.store.Dispatch(chat.CreateNewSession{})
	case "/back":
		r.store.Dispatch(chat.GoBackToSessions{})
	case "/clear":
		r.store.Dispatch(chat.ClearMessages{})
	case "/read":
		r.store.Dispatch(chat.MarkAsRead{})
	default:
		fmt.Fprintln(r.out, interactiveHelp)
	}
	return false
}

type tooltipPrinter struct {
	out io.Writer
}

func (p *tooltipPrinter) OnStateChanged(change store.Change) {
	if !change.Before.ShowTooltip && change.After.ShowTooltip {
		fmt.Fprintln(p.out, TooltipText)
	}
}
