// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// pursuer is a streaming chat client for OpenAI-compatible APIs with a
// full-screen terminal view, a line-mode REPL and one-shot commands.
package main

import (
	"context"
	"os"

	"github.com/jeranaias/pursuer/internal/cli"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	cmd, args, err := cli.Parse(argv)
	if err != nil {
		cli.DisplayError(os.Stderr, err)
		return cli.GetExitCode(err)
	}
	if args.NoColor {
		cli.DisableColors()
	}

	switch cmd {
	case cli.CmdHelp:
		cli.RunHelp(os.Stdout, cli.ColorsEnabled())
		return cli.ExitSuccess

	case cli.CmdVersion:
		cli.PrintVersion(os.Stdout)
		return cli.ExitSuccess

	case cli.CmdConfig:
		err = cli.RunConfig(args, os.Stdout, os.Stderr)
		cli.DisplayError(os.Stderr, err)
		return cli.GetExitCode(err)
	}

	// The full-screen view owns the terminal, so log output stays in the file.
	app, err := cli.NewApp(args, cli.AppOptions{MirrorLog: cmd != cli.CmdTUI})
	if err != nil {
		cli.DisplayError(os.Stderr, err)
		return cli.GetExitCode(err)
	}
	defer app.Close()

	ctx := context.Background()
	switch cmd {
	case cli.CmdTUI:
		err = cli.RunTUI(app)
	case cli.CmdChat:
		err = cli.RunChat(app)
	case cli.CmdAsk:
		err = cli.RunAsk(ctx, app)
	case cli.CmdHistory:
		err = cli.RunHistory(app)
	case cli.CmdStats:
		err = cli.RunStats(ctx, app)
	}

	cli.DisplayError(os.Stderr, err)
	return cli.GetExitCode(err)
}
