// ABOUTME: Interactive chat and one-shot run commands
// ABOUTME: Streams each run's updates to the terminal and handles slash commands between runs

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/coven-playground/internal/model"
	"github.com/2389/coven-playground/internal/playground"
	"github.com/2389/coven-playground/internal/render"
)

var runSession string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withApp(ctx, func(a *app) error { return runChat(ctx, a) })
	},
}

var runCmd = &cobra.Command{
	Use:   "run MESSAGE",
	Short: "Send one message and stream the response",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			ctx := cmd.Context()
			if _, err := a.connect(ctx); err != nil {
				return err
			}
			if runSession != "" {
				if err := a.svc.LoadSession(ctx, runSession); err != nil {
					return err
				}
			}
			res, err := a.submit(ctx, args[0])
			if err != nil {
				return err
			}
			if res.Failed() {
				return fmt.Errorf("run %s: %s", res.Phase, res.Err)
			}
			return nil
		})
	},
}

func init() {
	runCmd.Flags().StringVar(&runSession, "session", "", "Continue this session")
	rootCmd.AddCommand(chatCmd, runCmd)
}

// submit sends input and renders the run's updates as they arrive.
func (a *app) submit(ctx context.Context, input string) (*playground.Result, error) {
	subCtx, cancel := context.WithCancel(ctx)
	updates := a.svc.Subscribe(subCtx, a.svc.Target())
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range updates {
			a.term.Update(u)
		}
	}()

	a.live.Store(true)
	res, err := a.svc.Submit(ctx, input)
	cancel()
	<-done
	a.live.Store(false)
	return res, err
}

func runChat(ctx context.Context, a *app) error {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)
	cyan.Print(banner)
	gray.Printf("    version: %s\n\n", version)

	cat, err := a.connect(ctx)
	if err != nil {
		return err
	}

	green.Print("    ▶ ")
	fmt.Printf("Endpoint:  %s\n", a.endpoint)
	green.Print("    ▶ ")
	fmt.Printf("Target:    %s\n", a.svc.Target())
	green.Print("    ▶ ")
	fmt.Printf("Catalog:   %d agents, %d teams, %d workflows\n", len(cat.Agents), len(cat.Teams), len(cat.Workflows))
	fmt.Println()
	gray.Println("Type a message, or /help for commands.")

	go playground.NewRefresher(a.svc, a.cfg.WorkflowState.RefreshInterval, a.logger).Run(ctx)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		green.Print("you › ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := a.slash(ctx, line)
			if err != nil {
				a.term.Error(err.Error())
			}
			if quit {
				return nil
			}
			continue
		}

		if _, err := a.submit(ctx, line); err != nil {
			a.term.Error(err.Error())
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

const chatHelp = `/new                 start a new conversation
/sessions            list sessions
/load ID             load a session
/delete ID           delete a session
/rename ID NAME      rename a workflow session
/branch RUN_ID       branch the current session from a run
/state               show the workflow session state
/use KIND:ID         switch target (agent:ID, team:ID, workflow:ID)
/export FILE         export the conversation as HTML
/quit                exit`

// slash handles a chat command. It reports whether the chat should end.
func (a *app) slash(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%s needs %d argument(s), see /help", cmd, n)
		}
		return nil
	}

	switch cmd {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Println(chatHelp)
	case "/new":
		return false, a.svc.Clear()
	case "/sessions":
		sessions, err := a.svc.LoadSessions(ctx)
		if err != nil {
			return false, err
		}
		a.term.Sessions(sessions, a.svc.Conversation().SessionID())
	case "/load":
		if err := need(1); err != nil {
			return false, err
		}
		if err := a.svc.LoadSession(ctx, args[0]); err != nil {
			return false, err
		}
		a.term.Conversation(a.svc.Conversation().Messages())
	case "/delete":
		if err := need(1); err != nil {
			return false, err
		}
		return false, a.svc.DeleteSession(ctx, args[0])
	case "/rename":
		if err := need(2); err != nil {
			return false, err
		}
		return false, a.svc.RenameSession(ctx, args[0], strings.Join(args[1:], " "))
	case "/branch":
		if err := need(1); err != nil {
			return false, err
		}
		id, err := a.svc.Branch(ctx, args[0])
		if err != nil {
			return false, err
		}
		fmt.Printf("branched into %s\n", id)
	case "/state":
		if _, err := a.svc.RefreshSessionState(ctx); err != nil {
			return false, err
		}
		a.term.State(a.svc.Conversation().WorkflowState())
	case "/use":
		if err := need(1); err != nil {
			return false, err
		}
		t, err := model.ParseTarget(args[0])
		if err != nil {
			return false, err
		}
		return false, a.svc.Select(ctx, t)
	case "/export":
		if err := need(1); err != nil {
			return false, err
		}
		return false, a.exportConversation(args[0], a.svc.Target().String())
	default:
		return false, errors.New("unknown command, see /help")
	}
	return false, nil
}

// exportConversation writes the current conversation to path as HTML.
func (a *app) exportConversation(path, title string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if err := render.ExportHTML(f, title, a.svc.Conversation().Messages(), time.Now()); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", path)
	return nil
}
