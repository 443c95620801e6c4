package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	shellquote "github.com/kballard/go-shellquote"
	"github.com/ppacher/luaplug/pkg/plugin"
)

const prompt = "> "

var errUsage = errors.New("usage: :load PATH | :unload NAME | :list | :register | :reload")

// console reads lines from in until EOF. Lines starting with a colon are
// commands, everything else is executed as Lua
func (h *host) console(in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)

	fmt.Fprint(out, prompt)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		var err error
		switch {
		case line == "":
		case strings.HasPrefix(line, ":"):
			err = h.command(line[1:], out)
		default:
			err = h.runString(line)
		}

		if err != nil {
			fmt.Fprintf(out, "error: %s\n", err)
		}

		fmt.Fprint(out, prompt)
	}

	return scanner.Err()
}

// command executes a single console command
func (h *host) command(line string, out io.Writer) error {
	args, err := shellquote.Split(line)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		return errUsage
	}

	switch args[0] {
	case "load":
		if len(args) != 2 {
			return errUsage
		}

		h.lock.Lock()
		defer h.lock.Unlock()

		loaded, err := h.manager.LoadDirectory(args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "loaded %s\n", strings.Join(loaded, ", "))

		return h.manager.RegisterAll(h.loop)

	case "unload":
		if len(args) != 2 {
			return errUsage
		}

		h.lock.Lock()
		defer h.lock.Unlock()

		if err := h.manager.Unload(args[1]); err != nil {
			if errors.Is(err, plugin.ErrCleanupFailed) {
				fmt.Fprintf(out, "unloaded %s\n", args[1])
			}
			return err
		}
		fmt.Fprintf(out, "unloaded %s\n", args[1])

	case "list":
		for _, info := range h.manager.Plugins() {
			fmt.Fprintf(out, "%-16s %-40s %d\n", info.Name, info.Path, info.Environments)
		}

	case "register":
		h.lock.Lock()
		defer h.lock.Unlock()

		return h.manager.RegisterAll(h.loop)

	case "reload":
		return h.reload()

	default:
		return errUsage
	}

	return nil
}
