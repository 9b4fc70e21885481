package sim

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/jward/automaple/internal/api"
)

var (
	_ api.Notifier = (*Messages)(nil)
	_ api.Notifier = (*Console)(nil)
)

// ErrNoInput is returned by Prompt when no answer is available.
var ErrNoInput = errors.New("sim: no input available")

// Messages records notifications and answers prompts from a fixed queue.
type Messages struct {
	mu      sync.Mutex
	msgs    []string
	answers []string
}

// NewMessages returns a recorder that answers prompts with answers, in order.
func NewMessages(answers ...string) *Messages {
	return &Messages{answers: answers}
}

func (m *Messages) Notify(msg string) {
	m.mu.Lock()
	m.msgs = append(m.msgs, msg)
	m.mu.Unlock()
}

func (m *Messages) Prompt(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.answers) == 0 {
		return "", ErrNoInput
	}
	a := m.answers[0]
	m.answers = m.answers[1:]
	return a, nil
}

// All returns every notification received so far.
func (m *Messages) All() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.msgs)
}

// Console writes notifications to out and reads prompt answers, one per
// line, from in. Lines are read by a single goroutine started on the first
// Prompt, so a cancelled Prompt leaves the pending line for the next one.
type Console struct {
	mu    sync.Mutex
	out   io.Writer
	in    io.Reader
	once  sync.Once
	lines chan consoleLine
}

type consoleLine struct {
	text string
	err  error
}

func NewConsole(out io.Writer, in io.Reader) *Console {
	return &Console{out: out, in: in}
}

func (c *Console) Notify(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, msg)
}

// Prompt reads one line, returning early with ctx's error if ctx ends first.
func (c *Console) Prompt(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if c.in == nil {
		return "", ErrNoInput
	}
	c.once.Do(func() {
		c.lines = make(chan consoleLine)
		go c.readLines()
	})

	c.mu.Lock()
	fmt.Fprint(c.out, "> ")
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case l, ok := <-c.lines:
		if !ok {
			return "", ErrNoInput
		}
		if l.err != nil && (!errors.Is(l.err, io.EOF) || l.text == "") {
			return "", ErrNoInput
		}
		return strings.TrimRight(l.text, "\r\n"), nil
	}
}

// readLines feeds c.lines until in is exhausted, then closes it.
func (c *Console) readLines() {
	defer close(c.lines)
	r := bufio.NewReader(c.in)
	for {
		text, err := r.ReadString('\n')
		c.lines <- consoleLine{text: text, err: err}
		if err != nil {
			return
		}
	}
}
