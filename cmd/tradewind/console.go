// ABOUTME: Line-oriented console session boundary for driving tool calls manually.
// ABOUTME: Usage: "tools", "describe <tool>", "status", "call <tool> {json args}", "quit"

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"tradewind/internal/runtime"
)

// consoleBoundary is the default session boundary: a manual driver that
// exposes the dispatcher surface on stdin/stdout. The model session plugs in
// behind the same interface.
type consoleBoundary struct {
	in  io.Reader
	out io.Writer
}

func newConsoleBoundary(in io.Reader, out io.Writer) *consoleBoundary {
	return &consoleBoundary{in: in, out: out}
}

func (c *consoleBoundary) Run(ctx context.Context, rt *runtime.Runtime) error {
	c.printStatuses(rt)
	fmt.Fprintf(c.out, "\n%d tools available. Commands: tools, describe <tool>, status, call <tool> <json>, quit\n",
		len(rt.AllowedTools()))

	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(c.out, "> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("reading input: %w", err)
			}
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		command, rest, _ := strings.Cut(line, " ")
		switch command {
		case "quit", "exit":
			return nil
		case "tools":
			for _, name := range rt.AllowedTools() {
				fmt.Fprintf(c.out, "  %s\n", name)
			}
		case "status":
			c.printStatuses(rt)
		case "describe":
			c.describe(rt, strings.TrimSpace(rest))
		case "call":
			c.call(ctx, rt, rest)
		default:
			fmt.Fprintf(c.out, "unknown command %q\n", command)
		}
	}
}

func (c *consoleBoundary) printStatuses(rt *runtime.Runtime) {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	for _, ns := range rt.Statuses() {
		marker := green.Sprint("●")
		detail := ""
		if ns.Status != "ready" {
			marker = red.Sprint("●")
			if ns.Reason != nil {
				detail = fmt.Sprintf("  (%v)", ns.Reason)
			}
		}
		fmt.Fprintf(c.out, "  %s %-16s %s%s\n", marker, ns.Namespace, ns.Status, detail)
	}
}

func (c *consoleBoundary) describe(rt *runtime.Runtime, name string) {
	tool, ok := rt.Dispatcher().Describe(name)
	if !ok {
		fmt.Fprintf(c.out, "no such tool %q\n", name)
		return
	}
	fmt.Fprintf(c.out, "%s\n  %s\n  schema: %s\n",
		tool.Qualified, tool.Tool.Description, tool.Tool.InputSchemaJSON)
}

func (c *consoleBoundary) call(ctx context.Context, rt *runtime.Runtime, rest string) {
	name, rawArgs, _ := strings.Cut(strings.TrimSpace(rest), " ")
	if name == "" {
		fmt.Fprintln(c.out, "usage: call <tool> <json args>")
		return
	}
	args := json.RawMessage(strings.TrimSpace(rawArgs))
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	result, derr := rt.Dispatcher().Invoke(ctx, name, args)
	if derr != nil {
		envelope, _ := json.Marshal(derr.Envelope())
		color.New(color.FgRed).Fprintf(c.out, "%s\n", envelope)
		return
	}
	for _, item := range result.Content {
		fmt.Fprintf(c.out, "%s\n", item.Text)
	}
}
