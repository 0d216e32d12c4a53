package commands

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mosaicnetworks/meshchat/src/chat"
)

var (
	senderColor  = color.New(color.FgCyan, color.Bold).SprintfFunc()
	historyColor = color.New(color.Faint).SprintfFunc()
)

// colorDisplay prints chat messages to a terminal.
type colorDisplay struct {
	sync.Mutex
	w io.Writer
}

func newColorDisplay(w io.Writer) *colorDisplay {
	return &colorDisplay{w: w}
}

func (d *colorDisplay) ShowMessage(sender string, text string) {
	d.Lock()
	defer d.Unlock()

	fmt.Fprintf(d.w, "%s %s\n", senderColor("%s:", sender), text)
}

func (d *colorDisplay) ShowHistory(messages []chat.Message) {
	d.Lock()
	defer d.Unlock()

	fmt.Fprintln(d.w, historyColor("--- %d messages ---", len(messages)))
	for _, m := range messages {
		ts := time.Unix(int64(m.Timestamp), 0).Format("15:04:05")
		fmt.Fprintf(d.w, "%s %s %s\n", historyColor("[%s]", ts), senderColor("%s:", m.Sender.Username), m.Text)
	}
}
