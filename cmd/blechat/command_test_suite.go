//go:build test

package main

import (
	"bytes"
	"context"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/srg/blechat/internal/testutils"
)

// Test device addresses for consistent fake central identification
const (
	TestDeviceAddress1 = "00:00:00:00:00:01"
	TestDeviceAddress2 = "00:00:00:00:00:02"
)

// syncBuffer is a bytes.Buffer safe for the signal printer goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

// CommandTestSuite extends PeripheralSessionSuite with shell testing utilities.
// All cmd/blechat test suites should embed this instead of PeripheralSessionSuite.
type CommandTestSuite struct {
	testutils.PeripheralSessionSuite

	Out   *syncBuffer
	Shell *Shell
}

func (s *CommandTestSuite) SetupTest() {
	s.PeripheralSessionSuite.SetupTest()
	color.NoColor = true

	s.Out = &syncBuffer{}
	s.Shell = NewShell(context.Background(), s.Session, s.Out, s.Logger)
}

// Type executes each line in the shell and returns everything it printed.
func (s *CommandTestSuite) Type(lines ...string) string {
	s.Out.Reset()
	for _, line := range lines {
		if s.Shell.Execute(line) {
			break
		}
	}
	return strings.TrimRight(s.Out.String(), "\n")
}

// AssertOutput compares shell output with expected using the text asserter.
func (s *CommandTestSuite) AssertOutput(actual, expected string) {
	testutils.NewTextAsserter(s.T()).Assert(actual, expected)
}

// ExecuteCommand runs a cobra command with args, returns output and error.
func (s *CommandTestSuite) ExecuteCommand(cmd *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
