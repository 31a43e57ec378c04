// ABOUTME: Non-interactive commands: endpoint status, catalogs, sessions, state, documents, export
// ABOUTME: Each command builds an app, runs one operation, and prints the result

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/coven-playground/internal/config"
	"github.com/2389/coven-playground/internal/store"
)

var (
	jsonOutput bool
	exportOut  string
	runsLimit  int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check that the endpoint is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			code, err := a.client.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("endpoint %s unavailable: %w", a.endpoint, err)
			}
			color.New(color.FgGreen).Print("● ")
			fmt.Printf("%s (status %d)\n", a.endpoint, code)
			return nil
		})
	},
}

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List agents",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			agents, err := a.client.Agents(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(agents)
			}
			for _, ag := range agents {
				printEntry(ag.AgentID, ag.Name, ag.Model.Model, bool(ag.Storage))
			}
			return nil
		})
	},
}

var teamsCmd = &cobra.Command{
	Use:   "teams",
	Short: "List teams",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			teams, err := a.client.Teams(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(teams)
			}
			for _, t := range teams {
				printEntry(t.TeamID, t.Name, t.Model.Model, bool(t.Storage))
			}
			return nil
		})
	},
}

var workflowsCmd = &cobra.Command{
	Use:   "workflows",
	Short: "List workflows",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			wfs, err := a.client.Workflows(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(wfs)
			}
			for _, wf := range wfs {
				printEntry(wf.WorkflowID, wf.Name, "", bool(wf.Storage))
			}
			return nil
		})
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List sessions of the selected target",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			if _, err := a.connect(cmd.Context()); err != nil {
				return err
			}
			sessions := a.svc.Sessions()
			if jsonOutput {
				return printJSON(sessions)
			}
			a.term.Sessions(sessions, "")
			return nil
		})
	},
}

var sessionCmd = &cobra.Command{
	Use:   "session ID",
	Short: "Show the history of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			ctx := cmd.Context()
			if _, err := a.connect(ctx); err != nil {
				return err
			}
			if err := a.svc.LoadSession(ctx, args[0]); err != nil {
				return err
			}
			msgs := a.svc.Conversation().Messages()
			if jsonOutput {
				return printJSON(msgs)
			}
			a.term.Conversation(msgs)
			return nil
		})
	},
}

var deleteSessionCmd = &cobra.Command{
	Use:   "delete-session ID",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			ctx := cmd.Context()
			if _, err := a.connect(ctx); err != nil {
				return err
			}
			if err := a.svc.DeleteSession(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("deleted %s\n", args[0])
			return nil
		})
	},
}

var renameSessionCmd = &cobra.Command{
	Use:   "rename-session ID NAME",
	Short: "Rename a workflow session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			ctx := cmd.Context()
			if _, err := a.connect(ctx); err != nil {
				return err
			}
			return a.svc.RenameSession(ctx, args[0], args[1])
		})
	},
}

var stateCmd = &cobra.Command{
	Use:   "state SESSION_ID",
	Short: "Show the state of a workflow session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			ctx := cmd.Context()
			if _, err := a.connect(ctx); err != nil {
				return err
			}
			if !a.svc.Target().IsWorkflow() {
				return fmt.Errorf("state requires a workflow target (--workflow)")
			}
			if err := a.svc.LoadSession(ctx, args[0]); err != nil {
				return err
			}
			state := a.svc.Conversation().WorkflowState()
			if jsonOutput {
				return printJSON(state)
			}
			a.term.State(state)
			return nil
		})
	},
}

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List knowledge documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			docs, err := a.client.Documents(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(docs)
			}
			for _, d := range docs {
				printEntry(d.ID, d.Name, "", false)
			}
			return nil
		})
	},
}

var docsAddCmd = &cobra.Command{
	Use:   "add NAME FILE",
	Short: "Upload a knowledge document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[1], err)
		}
		return withApp(cmd.Context(), func(a *app) error {
			if err := a.client.CreateDocument(cmd.Context(), args[0], string(content)); err != nil {
				return err
			}
			fmt.Printf("uploaded %s\n", args[0])
			return nil
		})
	},
}

var endpointCmd = &cobra.Command{
	Use:   "endpoint [URL]",
	Short: "Show or save the playground endpoint",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			if len(args) == 0 {
				fmt.Println(a.endpoint)
				return nil
			}
			if err := config.ValidateEndpoint(args[0]); err != nil {
				return err
			}
			if err := a.store.SetPreference(cmd.Context(), store.PrefEndpoint, args[0]); err != nil {
				return fmt.Errorf("saving endpoint: %w", err)
			}
			fmt.Printf("endpoint set to %s\n", args[0])
			return nil
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export SESSION_ID",
	Short: "Export a session as HTML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			ctx := cmd.Context()
			if _, err := a.connect(ctx); err != nil {
				return err
			}
			if err := a.svc.LoadSession(ctx, args[0]); err != nil {
				return err
			}
			out := exportOut
			if out == "" {
				out = args[0] + ".html"
			}
			return a.exportConversation(out, fmt.Sprintf("%s · %s", a.svc.Target(), args[0]))
		})
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show the local run log",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			runs, err := a.store.ListRuns(cmd.Context(), runsLimit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(runs)
			}
			printRuns(runs)
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{agentsCmd, teamsCmd, workflowsCmd, sessionsCmd, sessionCmd, stateCmd, docsCmd, runsCmd} {
		c.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	}
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default: SESSION_ID.html)")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Number of runs to show")

	docsCmd.AddCommand(docsAddCmd)
	rootCmd.AddCommand(statusCmd, agentsCmd, teamsCmd, workflowsCmd, sessionsCmd, sessionCmd,
		deleteSessionCmd, renameSessionCmd, stateCmd, docsCmd, endpointCmd, exportCmd, runsCmd)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printEntry(id, name, model string, storage bool) {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)

	cyan.Printf("%-24s", id)
	fmt.Printf(" %s", name)
	if model != "" {
		gray.Printf("  [%s]", model)
	}
	if storage {
		gray.Print("  (storage)")
	}
	fmt.Println()
}

func printRuns(runs []*store.RunRecord) {
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return
	}
	outcomeColor := map[store.RunOutcome]*color.Color{
		store.RunOutcomeCompleted: color.New(color.FgGreen),
		store.RunOutcomeFailed:    color.New(color.FgRed),
		store.RunOutcomeAborted:   color.New(color.FgYellow),
		store.RunOutcomeRunning:   color.New(color.FgCyan),
	}
	for _, r := range runs {
		c, ok := outcomeColor[r.Outcome]
		if !ok {
			c = color.New(color.Reset)
		}
		c.Printf("%-10s", r.Outcome)
		fmt.Printf(" %s  %s", r.StartedAt.Local().Format(time.DateTime), r.Target)
		if r.SessionID != "" {
			fmt.Printf("  session=%s", r.SessionID)
		}
		fmt.Printf("  %q", truncate(r.Input, 60))
		if r.Error != "" {
			color.New(color.FgRed).Printf("  %s", r.Error)
		}
		fmt.Println()
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
