package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mosaicnetworks/meshchat/src/chat"
	"github.com/peterh/liner"
)

const prompt = "> "

type prompter interface {
	Prompt(p string) (string, error)
	AppendHistory(item string)
	Close() error
}

// dumbterm is used when stdin is not a terminal.
type dumbterm struct {
	r *bufio.Reader
	w io.Writer
}

func (d dumbterm) Prompt(p string) (string, error) {
	fmt.Fprint(d.w, p)
	line, err := d.r.ReadString('\n')
	if err == io.EOF && line != "" {
		err = nil
	}
	return strings.TrimRight(line, "\r\n"), err
}

func (d dumbterm) AppendHistory(string) {}

func (d dumbterm) Close() error { return nil }

func newPrompter() prompter {
	if !liner.TerminalSupported() {
		return dumbterm{r: bufio.NewReader(os.Stdin), w: os.Stdout}
	}

	lr := liner.NewLiner()
	lr.SetCtrlCAborts(true)
	return lr
}

type broadcaster interface {
	Broadcast(text string) chat.Message
}

// console reads lines typed by the user and broadcasts them.
type console struct {
	prompter
	out broadcaster
}

func newConsole(out broadcaster) *console {
	return &console{
		prompter: newPrompter(),
		out:      out,
	}
}

// run reads lines until the input ends. It returns true if the user aborted
// with Ctrl-C.
func (c *console) run() bool {
	for {
		line, err := c.Prompt(prompt)
		if err == liner.ErrPromptAborted {
			return true
		}
		if err != nil {
			return false
		}

		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}

		c.AppendHistory(text)
		c.out.Broadcast(text)
	}
}
