package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alienxp03/agora/internal/core"
	"github.com/alienxp03/agora/internal/style"
)

var participantsCmd = &cobra.Command{
	Use:     "participants",
	Aliases: []string{"participant", "p"},
	Short:   "Manage debate participants",
}

var participantListCmd = &cobra.Command{
	Use:   "list",
	Short: "List participants",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		participants, err := a.engine.ListParticipants()
		if err != nil {
			return err
		}
		if len(participants) == 0 {
			fmt.Println("No participants yet. Add the built-in personas with: agora participants seed")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tROLE\tTEMP")
		for _, p := range participants {
			temp := "-"
			if p.Temperature != nil {
				temp = fmt.Sprintf("%.1f", *p.Temperature)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", core.ShortID(p.ID), p.Name, truncate(p.Role, 40), temp)
		}
		return w.Flush()
	},
}

var (
	participantRole        string
	participantInstruction string
	participantName        string
	participantTemperature float64
)

var participantAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a participant",
	Example: `  agora participants add "Economist" --role "Labor economist" \
    --instruction "Ground every claim in data." --temperature 0.4`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		in := core.ParticipantInput{
			Name:        args[0],
			Role:        participantRole,
			Instruction: participantInstruction,
		}
		if cmd.Flags().Changed("temperature") {
			in.Temperature = &participantTemperature
		}

		p, err := a.engine.CreateParticipant(in)
		if err != nil {
			return err
		}
		fmt.Printf("Created participant %s (%s)\n", style.Title.Render(p.Name), core.ShortID(p.ID))
		return nil
	},
}

var participantEditCmd = &cobra.Command{
	Use:   "edit <id|name>",
	Short: "Edit a participant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := findParticipant(a.engine, args[0])
		if err != nil {
			return err
		}

		in := core.ParticipantInput{
			Name:        p.Name,
			Role:        p.Role,
			Instruction: p.Instruction,
			Temperature: p.Temperature,
		}
		flags := cmd.Flags()
		if flags.Changed("name") {
			in.Name = participantName
		}
		if flags.Changed("role") {
			in.Role = participantRole
		}
		if flags.Changed("instruction") {
			in.Instruction = participantInstruction
		}
		if flags.Changed("temperature") {
			in.Temperature = &participantTemperature
		}
		if reset, _ := flags.GetBool("clear-temperature"); reset {
			in.Temperature = nil
		}

		updated, err := a.engine.UpdateParticipant(p.ID, in)
		if err != nil {
			return err
		}
		fmt.Printf("Updated participant %s (%s)\n", style.Title.Render(updated.Name), core.ShortID(updated.ID))
		return nil
	},
}

var participantDeleteCmd = &cobra.Command{
	Use:   "delete <id|name>",
	Short: "Delete a participant",
	Long: `Delete a participant. Existing turns keep the name the participant
had when they were written.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := findParticipant(a.engine, args[0])
		if err != nil {
			return err
		}
		if err := a.engine.DeleteParticipant(p.ID); err != nil {
			return err
		}
		fmt.Printf("Deleted participant: %s\n", p.Name)
		return nil
	},
}

var participantSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Add the built-in personas as participants",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		created, err := a.engine.SeedPersonas()
		if err != nil {
			return err
		}
		if len(created) == 0 {
			fmt.Println("All built-in personas already exist.")
			return nil
		}
		for _, p := range created {
			fmt.Printf("Created %s (%s)\n", style.Title.Render(p.Name), core.ShortID(p.ID))
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{participantAddCmd, participantEditCmd} {
		c.Flags().StringVarP(&participantRole, "role", "r", "", "Participant role")
		c.Flags().StringVarP(&participantInstruction, "instruction", "i", "", "Free-text instruction")
		c.Flags().Float64VarP(&participantTemperature, "temperature", "t", 0, "Temperature override (0-2)")
	}
	participantEditCmd.Flags().StringVarP(&participantName, "name", "n", "", "New name")
	participantEditCmd.Flags().Bool("clear-temperature", false, "Remove the temperature override")

	participantsCmd.AddCommand(participantListCmd)
	participantsCmd.AddCommand(participantAddCmd)
	participantsCmd.AddCommand(participantEditCmd)
	participantsCmd.AddCommand(participantDeleteCmd)
	participantsCmd.AddCommand(participantSeedCmd)
}
