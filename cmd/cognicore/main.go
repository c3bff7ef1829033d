// Package main provides the cognicore CLI: an interactive shell over the
// cognitive orchestrator plus one-shot commands.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/quantumflow/cognicore/internal/agent"
	"github.com/quantumflow/cognicore/internal/config"
	"github.com/quantumflow/cognicore/internal/logging"
)

// set at build time
var version = "0.1.0-alpha"

var (
	configPath string
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "cognicore",
		Short:   "Cognitive orchestrator: reasoning, decisions, planning, creativity and learning",
		Version: version,
		RunE:    runRepl,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.cognicore/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level")

	processCmd := &cobra.Command{
		Use:   "process [input]",
		Short: "Process one input and print the result as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskType, _ := cmd.Flags().GetString("type")
			return withOrchestrator(cmd.Context(), func(ctx context.Context, o *agent.Orchestrator) error {
				pctx := map[string]interface{}{}
				if taskType != "" {
					pctx["taskType"] = taskType
				}
				res, err := o.Process(ctx, strings.Join(args, " "), pctx)
				if err != nil {
					return err
				}
				return printJSON(res)
			})
		},
	}
	processCmd.Flags().StringP("type", "t", "", "force the task type (planning, decision, creativity, learning, reasoning, general)")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print the orchestrator health snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrchestrator(cmd.Context(), func(ctx context.Context, o *agent.Orchestrator) error {
				return printJSON(o.Status())
			})
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveConfigPath()
			if err != nil {
				return err
			}
			if err := config.Default().SaveToPath(path); err != nil {
				return err
			}
			fmt.Printf("✓ Wrote default config to %s\n", path)
			return nil
		},
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			fmt.Print(string(out))
			return nil
		},
	})

	replCmd := &cobra.Command{
		Use:   "repl",
		Short: "Start the interactive shell (default)",
		RunE:  runRepl,
	}

	rootCmd.AddCommand(replCmd, processCmd, statusCmd, configCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Error: %v\n", err)
		os.Exit(1)
	}
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.DefaultPath()
}

func loadConfig() (*config.Config, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, cfg.Validate()
}

// newLogger builds the root logger. The level is applied globally so a
// config reload can change it.
func newLogger(cfg *config.Config) (zerolog.Logger, error) {
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return log, err
	}
	level, _ := logging.ParseLevel(cfg.Logging.Level)
	zerolog.SetGlobalLevel(level)
	return log.Level(zerolog.TraceLevel), nil
}

// withOrchestrator runs fn against a started orchestrator and closes it
func withOrchestrator(ctx context.Context, fn func(context.Context, *agent.Orchestrator) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	o, err := agent.New(cfg, agent.WithLogger(log))
	if err != nil {
		return err
	}
	defer o.Close()
	if err := o.Start(ctx); err != nil {
		return err
	}
	return fn(ctx, o)
}

func runRepl(cmd *cobra.Command, args []string) error {
	return withOrchestrator(cmd.Context(), func(ctx context.Context, o *agent.Orchestrator) error {
		path, err := resolveConfigPath()
		if err != nil {
			return err
		}
		watchLog := zerolog.New(os.Stderr).With().Timestamp().Str("component", "config").Logger()
		if err := config.Watch(path, watchLog, func(cfg *config.Config) {
			if level, err := logging.ParseLevel(cfg.Logging.Level); err == nil {
				zerolog.SetGlobalLevel(level)
			}
		}); err != nil {
			watchLog.Warn().Err(err).Msg("Config hot reload disabled")
		}

		printBanner()
		lines := make(chan string)
		go func() {
			defer close(lines)
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				lines <- scanner.Text()
			}
		}()

		for {
			fmt.Print("You: ")
			var input string
			select {
			case <-ctx.Done():
				fmt.Println("\n\nShutting down...")
				return nil
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				input = strings.TrimSpace(line)
			}
			if input == "" {
				continue
			}
			if strings.HasPrefix(input, "/") {
				if quit := handleCommand(ctx, input, o); quit {
					return nil
				}
				continue
			}

			start := time.Now()
			res, err := o.Process(ctx, input, map[string]interface{}{"continue": true})
			if err != nil {
				fmt.Printf("\n❌ Error: %v\n\n", err)
				continue
			}
			printResult(res)
			fmt.Printf("⏱ %.2fs | %s | priority %.2f\n\n", time.Since(start).Seconds(), res.Task.Type, res.Task.Priority)
		}
	})
}

// handleCommand runs a slash command and reports whether to quit
func handleCommand(ctx context.Context, cmd string, o *agent.Orchestrator) bool {
	parts := strings.Fields(cmd)
	arg := strings.TrimSpace(strings.TrimPrefix(cmd, parts[0]))
	var (
		res agent.Result
		err error
	)
	switch parts[0] {
	case "/help":
		fmt.Println("\nCommands:")
		fmt.Println("  /reason <goal>                      reason toward a goal")
		fmt.Println("  /decide <situation> | <a>, <b>, ... choose between options")
		fmt.Println("  /plan <goal>                        build a plan")
		fmt.Println("  /create <problem>                   generate ideas")
		fmt.Println("  /learn <observation>                record an experience")
		fmt.Println("  /status /state /history /exit")
		fmt.Println()
		return false
	case "/reason":
		res.Reasoning, err = o.Reason(ctx, arg, nil, "")
	case "/decide":
		situation, opts, found := strings.Cut(arg, "|")
		if !found {
			fmt.Println("Usage: /decide <situation> | <option>, <option>")
			fmt.Println()
			return false
		}
		var options []string
		for _, opt := range strings.Split(opts, ",") {
			if opt = strings.TrimSpace(opt); opt != "" {
				options = append(options, opt)
			}
		}
		res.Decision, err = o.Decide(ctx, strings.TrimSpace(situation), options, nil)
	case "/plan":
		res.Plan, err = o.Plan(ctx, agent.PlanInput{Goal: arg})
	case "/create":
		res.Creative, err = o.Create(ctx, arg, nil, nil, "")
	case "/learn":
		res.Learning, err = o.Learn(ctx, arg, "")
	case "/status":
		printJSON(o.Status())
		return false
	case "/state":
		printJSON(o.State())
		return false
	case "/history":
		hist := o.History()
		if len(hist) == 0 {
			fmt.Println("\nNo history")
			fmt.Println()
			return false
		}
		fmt.Println("\n=== History ===")
		for i, rec := range hist {
			fmt.Printf("%d. [%s] %s: %s\n", i+1, rec.Status, rec.Task.Type, truncate(rec.Task.Description, 60))
		}
		fmt.Println()
		return false
	case "/exit", "/quit":
		fmt.Println("Goodbye! 👋")
		return true
	default:
		fmt.Printf("Unknown command %s, try /help\n\n", parts[0])
		return false
	}
	if err != nil {
		fmt.Printf("\n❌ Error: %v\n\n", err)
		return false
	}
	printResult(&res)
	return false
}

func printResult(res *agent.Result) {
	fmt.Println()
	switch {
	case res.Plan != nil:
		p := res.Plan
		fmt.Printf("Plan (%s, %s, confidence %.2f)\n", p.Horizon, p.Algorithm, p.Confidence)
		for i, s := range p.Steps {
			fmt.Printf("  %d. %s\n", i+1, s.Name)
		}
		for i, d := range res.Decisions {
			fmt.Printf("  step %d → %s\n", i+1, d.SelectedOption.Name)
		}
	case res.Decision != nil:
		d := res.Decision
		fmt.Printf("Decision: %s (confidence %.2f)\n", d.SelectedOption.Name, d.Confidence)
		for _, a := range d.Alternatives {
			fmt.Printf("  alternative: %s\n", a.Name)
		}
		if res.Execution != nil {
			fmt.Printf("  executed: completed=%t\n", res.Execution.Completed)
		}
	case res.Creative != nil:
		for i, idea := range res.Creative.Outputs {
			if i == 5 {
				break
			}
			fmt.Printf("  %d. %s (%.2f)\n", i+1, idea.Description, idea.Scores.Overall)
		}
	case res.Reasoning != nil:
		c := res.Reasoning
		fmt.Printf("%s\n  confidence %.2f, consistent %t\n", c.FinalConclusion, c.OverallConfidence, c.Consistent)
	case res.Learning != nil:
		fmt.Printf("Learned (%s mode)\n", res.Learning.Mode)
	}
	fmt.Println()
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func printBanner() {
	fmt.Printf(`
╔═════════════════════════════════════════════════════════╗
║                 CogniCore %-12s                  ║
║   reasoning · decisions · planning · creativity · memory ║
╚═════════════════════════════════════════════════════════╝

Type /help for commands.

`, version)
}
