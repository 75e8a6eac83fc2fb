package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/alanyang/nlq-bench/internal/adapter/memory"
	instructionsvc "github.com/alanyang/nlq-bench/internal/service/instruction"
)

func newInstructionsCmd(_ *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "instructions",
		Aliases: []string{"ins"},
		Short:   "Inspect the built-in instruction registry",
	}

	svc := instructionsvc.NewService(instructionsvc.NewRegistry(), memory.NewInstructionRepository(), memory.NewEventBus())

	list := &cobra.Command{
		Use:   "list",
		Short: "List instruction keys and descriptions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries := svc.List()
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{e.Key, e.Description, strconv.FormatBool(e.Custom)})
			}
			renderTable(cmd.OutOrStdout(), []string{"Key", "Description", "Custom"}, rows)
			return nil
		},
	}

	var input, context string
	render := &cobra.Command{
		Use:   "render KEY",
		Short: "Print the prompt an agent would send for KEY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rendered, err := svc.Render(args[0], input, context)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rendered.Prompt)
			return nil
		},
	}
	render.Flags().StringVar(&input, "input", "", "user query or text")
	render.Flags().StringVar(&context, "context", "", "stage context, such as a schema")
	_ = render.MarkFlagRequired("input")

	cmd.AddCommand(list, render)
	return cmd
}
