package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"approvalflow/internal/app"
	"approvalflow/internal/model"
	"approvalflow/internal/service"

	"github.com/spf13/cobra"
)

var overdueFilter service.OverdueFilter

var overdueCmd = &cobra.Command{
	Use:   "overdue",
	Short: "List assignments waiting longer than their timeout",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), false, func(a *app.App) error {
			items, err := a.Monitor.ListOverdue(cmd.Context(), overdueFilter)
			if err != nil {
				return err
			}
			if done, err := printJSON(cmd.OutOrStdout(), items); done || err != nil {
				return err
			}
			return writeOverdue(cmd.OutOrStdout(), items)
		})
	},
}

var bottlenecksCmd = &cobra.Command{
	Use:   "bottlenecks",
	Short: "Summarize overdue assignments per level",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), false, func(a *app.App) error {
			stats, err := a.Monitor.ListBottlenecks(cmd.Context())
			if err != nil {
				return err
			}
			if done, err := printJSON(cmd.OutOrStdout(), stats); done || err != nil {
				return err
			}
			return writeBottlenecks(cmd.OutOrStdout(), stats)
		})
	},
}

func init() {
	overdueCmd.Flags().IntVar(&overdueFilter.Level, "level", 0, "Only this approver level")
	overdueCmd.Flags().StringVar(&overdueFilter.ApproverID, "approver", "", "Only this approver id")
	overdueCmd.Flags().StringVar(&overdueFilter.RequestType, "type", "", "Only this request type")
	overdueCmd.Flags().StringVar(&overdueFilter.Priority, "priority", "", "Only this priority")
	overdueCmd.Flags().BoolVar(&overdueFilter.IncludeWaiting, "all", false, "Include assignments that are not overdue yet")
}

func writeOverdue(w io.Writer, items []model.OverdueItem) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REQUEST\tTITLE\tLEVEL\tAPPROVER\tWAITING(h)\tTIMEOUT(h)\tOVERDUE")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%.2f\t%.2f\t%t\n",
			it.RequestID, it.RequestTitle, it.Level, it.ApproverID, it.WaitingHours, it.TimeoutHours, it.Overdue)
	}
	return tw.Flush()
}

func writeBottlenecks(w io.Writer, stats []model.BottleneckStat) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LEVEL\tOVERDUE\tAVG WAIT(h)")
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%d\t%.2f\n", s.LevelName, s.Count, s.AverageWaitHours)
	}
	return tw.Flush()
}
