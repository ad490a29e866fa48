package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"healthrag/internal/server"
	"healthrag/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	root := &cobra.Command{
		Use:           "healthrag",
		Short:         "Answer health questions grounded in a local document corpus",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to YAML config file (default ./config.yaml, then ~/.config/healthrag/config.yaml)")
	root.AddCommand(serveCMD(&cfgPath), askCMD(&cfgPath), chatCMD(&cfgPath))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serveCMD(cfgPath *string) *cobra.Command {
	var addr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*cfgPath, os.Stderr)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.Server.Listen
			}
			s := server.New(a.service, a.manager,
				server.WithLogger(a.logger),
				server.WithWarmup(a.cfg.Server.Warmup))
			return s.Start(cmd.Context(), addr)
		},
	}
	serve.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.listen)")
	return serve
}

func askCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*cfgPath, os.Stderr)
			if err != nil {
				return err
			}
			answer, err := a.service.Ask(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				a.logger.Error("question failed", "transport", "cli", "error", err)
				return fmt.Errorf("%s", server.MsgProcessingError)
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer)
			return nil
		},
	}
}

func chatCMD(cfgPath *string) *cobra.Command {
	var logPath string
	chat := &cobra.Command{
		Use:   "chat",
		Short: "Interactive terminal chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			// The terminal belongs to the UI, so logs go to a file.
			f, err := tea.LogToFile(logPath, "")
			if err != nil {
				return err
			}
			defer f.Close()
			a, err := newApp(*cfgPath, f)
			if err != nil {
				return err
			}
			if a.cfg.Server.Warmup {
				go func() { _ = a.manager.EnsureReady(cmd.Context()) }()
			}
			m := tui.New(cmd.Context(), a.service)
			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}
	chat.Flags().StringVar(&logPath, "log-file", "healthrag.log", "file receiving logs while the UI runs")
	return chat
}
