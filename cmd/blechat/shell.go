package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/srg/blechat/internal/groutine"
	"github.com/srg/blechat/internal/peripheral"
)

const shellHelp = `Commands:
  <text>           - Broadcast text to every subscribed device
  /direct <text>   - Set the readable value to text, then broadcast it
  /status          - Show session state, connections and subscriptions
  /start           - Start advertising again after /stop
  /stop            - Stop advertising and drop all connections
  /help            - Show this help
  /quit            - Stop and exit`

// lineReader is the shell input. readline.Instance satisfies it.
type lineReader interface {
	Readline() (string, error)
	Close() error
}

// scannerReader reads lines from a non-terminal input.
type scannerReader struct {
	scanner *bufio.Scanner
}

func (r *scannerReader) Readline() (string, error) {
	if r.scanner.Scan() {
		return r.scanner.Text(), nil
	}
	if err := r.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (r *scannerReader) Close() error {
	return nil
}

// newLineReader returns a readline prompt on a terminal and a line scanner
// otherwise, together with the writer shell output should go to.
func newLineReader(in *os.File, out io.Writer) (lineReader, io.Writer, error) {
	if !term.IsTerminal(int(in.Fd())) {
		return &scannerReader{scanner: bufio.NewScanner(in)}, out, nil
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "chat> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return rl, rl.Stdout(), nil
}

// Shell drives a session from typed commands.
type Shell struct {
	ctx     context.Context
	session *peripheral.Session
	out     io.Writer
	logger  *logrus.Logger
}

// NewShell creates a shell writing to out. ctx bounds /start.
func NewShell(ctx context.Context, session *peripheral.Session, out io.Writer, logger *logrus.Logger) *Shell {
	return &Shell{ctx: ctx, session: session, out: out, logger: logger}
}

// Run executes lines from in until /quit, end of input or ctx cancellation.
func (sh *Shell) Run(ctx context.Context, in lineReader) error {
	defer in.Close()

	type line struct {
		text string
		err  error
	}
	lines := make(chan line)
	groutine.Go(ctx, "shell-input", sh.logger, func(ctx context.Context) {
		for {
			text, err := in.Readline()
			select {
			case lines <- line{text, err}:
			case <-ctx.Done():
				return
			}
			if err != nil && !errors.Is(err, readline.ErrInterrupt) {
				return
			}
		}
	})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l := <-lines:
			if errors.Is(l.err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(l.err, io.EOF) {
				fmt.Fprintln(sh.out, "Exiting...")
				return nil
			}
			if l.err != nil {
				return l.err
			}
			if sh.Execute(l.text) {
				fmt.Fprintln(sh.out, "Exiting...")
				return nil
			}
		}
	}
}

// Execute runs one shell line and reports whether the shell should exit.
func (sh *Shell) Execute(input string) bool {
	input = strings.TrimSpace(input)
	if input == "" {
		return false
	}
	if !strings.HasPrefix(input, "/") {
		sh.broadcast(input, false)
		return false
	}

	cmd, rest, _ := strings.Cut(input, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(cmd) {
	case "/help", "/?":
		fmt.Fprintln(sh.out, shellHelp)
	case "/direct", "/d":
		if rest == "" {
			fmt.Fprintln(sh.out, "Usage: /direct <text>")
			return false
		}
		sh.broadcast(rest, true)
	case "/status", "/s":
		fmt.Fprintln(sh.out, formatStatus(sh.session))
	case "/start":
		if err := sh.session.Start(sh.ctx); err != nil {
			sh.printError(err)
			return false
		}
		fmt.Fprintln(sh.out, "Starting advertising...")
	case "/stop":
		sh.session.Stop()
		fmt.Fprintln(sh.out, "Stopped")
	case "/quit", "/exit", "/q":
		return true
	default:
		fmt.Fprintf(sh.out, "Unknown command: %s (type /help for commands)\n", cmd)
	}
	return false
}

func (sh *Shell) broadcast(text string, direct bool) {
	report, err := sh.session.SendMessage(text, direct)
	if err != nil {
		sh.printError(err)
		return
	}
	fmt.Fprintln(sh.out, formatReport(report))
}

func (sh *Shell) printError(err error) {
	fmt.Fprintf(sh.out, "ERROR: %s\n", FormatUserError(err))
}

// printSignals writes every session signal to out until ctx ends or the
// signal channel closes.
func printSignals(ctx context.Context, session *peripheral.Session, out io.Writer, logger *logrus.Logger) {
	groutine.Go(ctx, "signal-printer", logger, func(ctx context.Context) {
		signals := session.Signals()
		for {
			select {
			case sig, ok := <-signals:
				if !ok {
					return
				}
				fmt.Fprintln(out, formatSignal(sig))
			case <-ctx.Done():
				return
			}
		}
	})
}
