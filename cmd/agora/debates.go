package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alienxp03/agora/internal/core"
	"github.com/alienxp03/agora/internal/engine"
	"github.com/alienxp03/agora/internal/export"
	"github.com/alienxp03/agora/internal/generation"
	"github.com/alienxp03/agora/internal/style"
)

// ============================================================================
// NEW COMMAND
// ============================================================================

var (
	newParticipants []string
	newRounds       int
	newModel        string
	newProvider     string
	newTemperature  float64
)

var newCmd = &cobra.Command{
	Use:   "new <topic>",
	Short: "Create a debate",
	Long: `Create a debate on the given topic. The participants, in order, form the
rotation plan. Participants may be given by name, id or id prefix.`,
	Example: `  agora new "Should cities ban cars?" -p Optimist,Skeptic,Optimist
  agora new "Remote work" -p Analyst,Visionary --provider anthropic --temperature 0.5`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		var plan core.RotationPlan
		for _, ref := range newParticipants {
			p, err := findParticipant(a.engine, strings.TrimSpace(ref))
			if err != nil {
				return err
			}
			plan = append(plan, p.ID)
		}

		cfg := make(map[string]any)
		if newModel != "" {
			cfg[core.ConfigModelName] = newModel
		}
		if newProvider != "" {
			if !a.registry.Has(newProvider) {
				return fmt.Errorf("provider not configured: %s", newProvider)
			}
			cfg[core.ConfigProvider] = newProvider
		}
		if cmd.Flags().Changed("temperature") {
			cfg[core.ConfigTemperature] = newTemperature
		}

		debate, err := a.engine.CreateDebate(core.NewDebateConfig{
			Topic:          strings.Join(args, " "),
			Rounds:         newRounds,
			ParticipantIDs: plan,
			Config:         cfg,
		})
		if err != nil {
			return err
		}

		names, err := a.engine.SpeakerNames()
		if err != nil {
			return err
		}
		printDebateHeader(debate, names)
		fmt.Printf("\nAdvance it with: agora next %s\n", core.ShortID(debate.ID))
		return nil
	},
}

func init() {
	newCmd.Flags().StringSliceVarP(&newParticipants, "participants", "p", nil, "Rotation plan (comma-separated participants)")
	newCmd.Flags().IntVar(&newRounds, "rounds", 0, "Number of rounds (informational)")
	newCmd.Flags().StringVarP(&newModel, "model", "m", "", "Model name")
	newCmd.Flags().StringVar(&newProvider, "provider", "", "Generation provider")
	newCmd.Flags().Float64Var(&newTemperature, "temperature", core.DefaultTemperature, "Debate temperature")
}

// ============================================================================
// LIST COMMAND
// ============================================================================

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List debates",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		debates, err := a.engine.ListDebates(50, 0)
		if err != nil {
			return err
		}
		if len(debates) == 0 {
			fmt.Println("No debates found. Start one with: agora new \"Your topic\" -p <participants>")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTOPIC\tSTATUS\tTURNS\tPLAN\tCREATED")
		for _, d := range debates {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
				core.ShortID(d.ID),
				truncate(d.Topic, 35),
				d.Status,
				d.TurnCount,
				d.PlanSize,
				d.CreatedAt.Format("2006-01-02 15:04"),
			)
		}
		return w.Flush()
	},
}

// ============================================================================
// SHOW COMMAND
// ============================================================================

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a debate and its transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := findDebateByPrefix(a.engine, args[0])
		if err != nil {
			return err
		}
		debate, turns, err := a.engine.GetDebateWithTurns(id)
		if err != nil {
			return err
		}
		names, err := a.engine.SpeakerNames()
		if err != nil {
			return err
		}

		printDebateHeader(debate, names)
		if next, ok, err := a.engine.NextParticipant(id); err == nil && ok {
			fmt.Printf("%s %s\n", style.Label.Render("Next:    "), names[next])
		}
		for _, turn := range turns {
			printTurn(turn, names)
		}
		return nil
	},
}

// ============================================================================
// NEXT COMMAND
// ============================================================================

var (
	nextParticipant string
	nextModerator   bool
	nextAll         bool
)

var nextCmd = &cobra.Command{
	Use:   "next <id>",
	Short: "Generate the next turn",
	Long: `Generate the next turn of a debate. By default the participant scheduled
at the current rotation slot speaks. --participant picks a speaker outside
the plan, --moderator produces a moderator turn, and --all keeps advancing
until the plan is exhausted or a generation fails.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := findDebateByPrefix(a.engine, args[0])
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		names, err := a.engine.SpeakerNames()
		if err != nil {
			return err
		}

		switch {
		case nextModerator:
			return advanceOnce(ctx, a.engine, id, "", names)
		case nextParticipant != "":
			p, err := findParticipant(a.engine, nextParticipant)
			if err != nil {
				return err
			}
			return advanceOnce(ctx, a.engine, id, p.ID, names)
		case nextAll:
			return advanceAll(ctx, a.engine, id, names)
		default:
			next, ok, err := a.engine.NextParticipant(id)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("no participant is scheduled; use --participant, --moderator or reorder the plan")
			}
			return advanceOnce(ctx, a.engine, id, next, names)
		}
	},
}

func init() {
	nextCmd.Flags().StringVar(&nextParticipant, "participant", "", "Speak as this participant")
	nextCmd.Flags().BoolVar(&nextModerator, "moderator", false, "Generate a moderator turn")
	nextCmd.Flags().BoolVar(&nextAll, "all", false, "Advance until the plan is exhausted")
	nextCmd.MarkFlagsMutuallyExclusive("participant", "moderator", "all")
}

func advanceOnce(ctx context.Context, eng *engine.Engine, id, participantID string, names map[string]string) error {
	if name := names[participantID]; name != "" {
		fmt.Println(style.Muted.Render("Waiting for " + name + "..."))
	}
	turn, err := eng.Advance(ctx, id, participantID)
	if err != nil {
		var genErr *generation.Error
		if errors.As(err, &genErr) {
			fmt.Println(style.Error.Render("Generation failed: " + genErr.Kind.String()))
		}
		return err
	}
	printTurn(turn, names)
	return nil
}

// advanceAll stops between turns on interrupt. A turn already being
// generated always completes and is recorded.
func advanceAll(ctx context.Context, eng *engine.Engine, id string, names map[string]string) error {
	for {
		if ctx.Err() != nil {
			fmt.Println("\nInterrupted. Resume with: agora next --all " + core.ShortID(id))
			return nil
		}
		next, ok, err := eng.NextParticipant(id)
		if err != nil {
			return err
		}
		if !ok {
			debate, err := eng.GetDebate(id)
			if err != nil {
				return err
			}
			fmt.Printf("\nDebate is %s.\n", style.Status(debate.Status))
			return nil
		}
		if err := advanceOnce(ctx, eng, id, next, names); err != nil {
			return err
		}
	}
}

// ============================================================================
// SAY COMMAND
// ============================================================================

var sayCmd = &cobra.Command{
	Use:   "say <id> <text>",
	Short: "Interject as the user",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := findDebateByPrefix(a.engine, args[0])
		if err != nil {
			return err
		}
		turn, err := a.engine.Inject(id, strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		printTurn(turn, nil)
		return nil
	},
}

// ============================================================================
// REORDER COMMAND
// ============================================================================

var reorderCmd = &cobra.Command{
	Use:   "reorder <id> <participants...>",
	Short: "Replace the rotation plan",
	Long: `Replace a debate's rotation plan. Use "-" for slots that count as already
spoken. Status is recomputed from the existing transcript.`,
	Example: `  agora reorder 0f3c2a9e - - Skeptic Optimist`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := findDebateByPrefix(a.engine, args[0])
		if err != nil {
			return err
		}
		plan, err := core.ParsePlanArgs(args[1:])
		if err != nil {
			return err
		}
		plan, err = resolvePlan(a.engine, plan)
		if err != nil {
			return err
		}

		debate, err := a.engine.Reorder(id, plan)
		if err != nil {
			return err
		}
		names, err := a.engine.SpeakerNames()
		if err != nil {
			return err
		}
		fmt.Printf("Rotation: %s (%s)\n", core.FormatPlan(debate.Plan, names), style.Status(debate.Status))
		return nil
	},
}

// ============================================================================
// DELETE COMMAND
// ============================================================================

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a debate and its transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := findDebateByPrefix(a.engine, args[0])
		if err != nil {
			return err
		}
		if err := a.engine.Delete(id); err != nil {
			return err
		}
		fmt.Printf("Deleted debate: %s\n", id)
		return nil
	},
}

// ============================================================================
// EXPORT COMMAND
// ============================================================================

var exportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a debate to a file",
	Example: `  agora export 0f3c2a9e --format md
  agora export 0f3c2a9e --format pdf -o debate.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := findDebateByPrefix(a.engine, args[0])
		if err != nil {
			return err
		}
		debate, turns, err := a.engine.GetDebateWithTurns(id)
		if err != nil {
			return err
		}
		names, err := a.engine.SpeakerNames()
		if err != nil {
			return err
		}

		formatFlag, _ := cmd.Flags().GetString("format")
		format, err := export.ParseFormat(formatFlag)
		if err != nil {
			return err
		}
		exporter, err := export.GetExporter(format)
		if err != nil {
			return err
		}

		outputPath, _ := cmd.Flags().GetString("output")
		if outputPath == "" {
			outputPath = export.GenerateFilename(debate, exporter.FileExtension())
		}

		file, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create file: %w", err)
		}
		defer file.Close()

		if err := exporter.Export(&export.Transcript{Debate: debate, Turns: turns, Names: names}, file); err != nil {
			return fmt.Errorf("failed to export: %w", err)
		}

		fmt.Printf("Exported to: %s\n", outputPath)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringP("format", "f", "md", "Export format (md, json, pdf)")
	exportCmd.Flags().StringP("output", "o", "", "Output file path")
}
