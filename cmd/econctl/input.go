package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/danmuck/econctl/internal/logging"
	"github.com/ergochat/readline"
	"golang.org/x/term"
)

// lineEditor reads commands with history when stdin is a terminal and
// falls back to plain line scanning for pipes.
type lineEditor struct {
	rl      *readline.Instance
	scanner *bufio.Scanner
}

func newLineEditor() *lineEditor {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return &lineEditor{scanner: bufio.NewScanner(os.Stdin)}
	}
	rl, err := readline.NewFromConfig(&readline.Config{
		Prompt:          "> ",
		HistoryLimit:    500,
		InterruptPrompt: "^C",
	})
	if err != nil {
		logging.Warnf("econctl readline init failed, using plain input err=%v", err)
		return &lineEditor{scanner: bufio.NewScanner(os.Stdin)}
	}
	return &lineEditor{rl: rl}
}

func (le *lineEditor) Interactive() bool {
	return le.rl != nil
}

// ReadLine returns io.EOF on end of input or Ctrl-C.
func (le *lineEditor) ReadLine(prompt string) (string, error) {
	if le.rl == nil {
		if prompt != "" {
			fmt.Fprint(os.Stderr, prompt)
		}
		if !le.scanner.Scan() {
			if err := le.scanner.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		return le.scanner.Text(), nil
	}
	if prompt != "" {
		le.rl.SetPrompt(prompt)
		defer le.rl.SetPrompt("> ")
	}
	l, err := le.rl.Readline()
	if err == readline.ErrInterrupt {
		return "", io.EOF
	}
	return l, err
}

// Output is where console messages go. With readline active, writes are
// redrawn above the prompt.
func (le *lineEditor) Output() io.Writer {
	if le.rl != nil {
		return le.rl
	}
	return os.Stdout
}

func (le *lineEditor) Close() error {
	if le.rl != nil {
		return le.rl.Close()
	}
	return nil
}

type lineReader interface {
	ReadLine(prompt string) (string, error)
}

// readLines feeds non-empty trimmed input lines to the returned channel and
// closes it at end of input.
func readLines(r lineReader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		for {
			l, err := r.ReadLine("")
			if err != nil {
				if err != io.EOF {
					logging.Warnf("econctl input err=%v", err)
				}
				return
			}
			if l = strings.TrimSpace(l); l != "" {
				out <- l
			}
		}
	}()
	return out
}

// lockedWriter serializes whole-line writes from concurrent printers.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}
