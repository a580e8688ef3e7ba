package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/suPer8Hu/ai-debate/internal/config"
	"github.com/suPer8Hu/ai-debate/internal/conversation"
	"github.com/suPer8Hu/ai-debate/internal/debate"
	"github.com/suPer8Hu/ai-debate/internal/gateway"
	"github.com/suPer8Hu/ai-debate/internal/kv"
	"github.com/suPer8Hu/ai-debate/internal/logging"
	"github.com/suPer8Hu/ai-debate/internal/store/rabbitmq"
	"github.com/suPer8Hu/ai-debate/internal/tokenstore"
	"github.com/suPer8Hu/ai-debate/internal/usage"
)

// app holds what every subcommand needs. It is built once per invocation
// in the root's PersistentPreRunE.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	store   kv.Store
	tokens  *tokenstore.Store
	tracker *usage.Tracker
	svc     *debate.Service

	in      *bufio.Reader
	out     io.Writer
	closers []func() error
}

type rootFlags struct {
	apiURL  string
	verbose bool
}

func (a *app) init(ctx context.Context, cmd *cobra.Command, f rootFlags) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if f.apiURL != "" {
		cfg.APIBaseURL = strings.TrimRight(f.apiURL, "/")
	}
	if f.verbose {
		cfg.LogLevel = "debug"
	}
	a.cfg = cfg
	a.logger = logging.NewWith(cmd.ErrOrStderr(), cfg.LogLevel, false)
	a.in = bufio.NewReader(cmd.InOrStdin())
	a.out = cmd.OutOrStdout()

	if a.store == nil {
		store, err := kv.Open(cfg)
		if err != nil {
			return fmt.Errorf("open local state: %w", err)
		}
		a.store = store
		if c, ok := store.(kv.Closer); ok {
			a.closers = append(a.closers, c.Close)
		}
	}

	policy := usage.DefaultPolicy()
	if cfg.TierPolicyFile != "" {
		if policy, err = usage.LoadPolicyFile(cfg.TierPolicyFile); err != nil {
			return err
		}
	}

	a.tokens = tokenstore.New(a.store)
	a.tracker = usage.NewTracker(a.store, policy)
	client := gateway.New(cfg.APIBaseURL, a.tokens,
		gateway.WithTimeout(cfg.HTTPTimeout),
		gateway.WithLogger(a.logger),
	)

	opts := []debate.Option{debate.WithLogger(a.logger)}
	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			a.logger.Warn("activity feed disabled", "err", err)
		} else {
			a.closers = append(a.closers, pub.Close)
			opts = append(opts, debate.WithActivity(pub))
		}
	}
	a.svc = debate.NewService(client, a.tokens, a.tracker, conversation.NewStore(), opts...)

	_, err = a.svc.Restore(ctx)
	return err
}

func (a *app) close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// prompt reads one line, writing label first when it is not empty.
func (a *app) prompt(label string) (string, error) {
	if label != "" {
		fmt.Fprint(a.out, label)
	}
	line, err := a.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
