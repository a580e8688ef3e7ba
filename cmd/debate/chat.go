package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

const chatHelp = `Commands:
  /new [participant...]   start a session
  /load SESSION_ID        switch to an existing session
  /history                list your sessions
  /usage                  show quota consumption
  /quit                   leave
Anything else is sent to every participant of the current session.`

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat [participant...]",
		Short: "Interactive debate: start a session and keep sending prompts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rec, err := a.svc.CurrentUser(ctx)
			if err != nil {
				return err
			}
			if rec != nil {
				fmt.Fprintf(a.out, "Hi %s (%s tier).\n", rec.DisplayName, rec.Tier)
			}
			fmt.Fprintln(a.out, chatHelp)

			res, err := a.svc.NewSession(ctx, args)
			if err != nil {
				return err
			}
			renderNewSession(a.out, res)
			return a.repl(ctx)
		},
	}
}

func (a *app) repl(ctx context.Context) error {
	for {
		line, err := a.prompt("> ")
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(a.out)
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		quit, err := a.dispatch(ctx, line)
		if err != nil {
			fmt.Fprintln(a.out, "Error:", describe(err))
		}
		if quit {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (a *app) dispatch(ctx context.Context, line string) (quit bool, err error) {
	if !strings.HasPrefix(line, "/") {
		if _, err := a.svc.Send(ctx, line); err != nil {
			return false, err
		}
		renderResponses(a.out, a.svc.Responses())
		return false, nil
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/new":
		res, err := a.svc.NewSession(ctx, fields[1:])
		if err != nil {
			return false, err
		}
		renderNewSession(a.out, res)
	case "/load":
		if len(fields) != 2 {
			return false, errors.New("usage: /load SESSION_ID")
		}
		sess, err := a.svc.LoadSession(ctx, fields[1])
		if err != nil {
			return false, err
		}
		renderTranscript(a.out, sess)
	case "/history":
		list, err := a.svc.History(ctx)
		if err != nil {
			return false, err
		}
		renderHistory(a.out, list)
	case "/usage":
		c, l, err := a.svc.Usage(ctx)
		if err != nil {
			return false, err
		}
		renderUsage(a.out, c, l)
	case "/help":
		fmt.Fprintln(a.out, chatHelp)
	default:
		return false, fmt.Errorf("unknown command %s (try /help)", fields[0])
	}
	return false, nil
}
