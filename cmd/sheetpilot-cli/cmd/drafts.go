package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type entry struct {
	ID              int64  `json:"id"`
	Date            string `json:"date"`
	TimeIn          string `json:"timeIn"`
	TimeOut         string `json:"timeOut"`
	Hours           string `json:"hours"`
	Project         string `json:"project"`
	Tool            string `json:"tool"`
	ChargeCode      string `json:"chargeCode"`
	TaskDescription string `json:"taskDescription"`
	Status          string `json:"status"`
}

func renderEntries(entries []entry) {
	t := newTable()
	t.AppendHeader(table.Row{"ID", "Date", "In", "Out", "Hours", "Project", "Tool", "Charge Code", "Description", "Status"})
	for _, e := range entries {
		t.AppendRow(table.Row{
			e.ID, e.Date, e.TimeIn, e.TimeOut, e.Hours,
			e.Project, e.Tool, e.ChargeCode, e.TaskDescription, e.Status,
		})
	}
	t.Render()
}

func fetchEntries(path, key string) []entry {
	res, err := checkResponse(client.R().Get(path))
	if err != nil {
		log.Fatal(err)
	}

	var body map[string][]entry
	if err := json.Unmarshal(res.Body(), &body); err != nil {
		log.Fatal(err)
	}
	return body[key]
}

func init() {
	rootCmd.AddCommand(draftsCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(failedCmd)
	rootCmd.AddCommand(deleteCmd)

	addCmd.Flags().StringVar(&addDraft.Date, "date", "", "entry date (YYYY-MM-DD)")
	addCmd.Flags().StringVar(&addDraft.TimeIn, "in", "", "start time (HH:MM)")
	addCmd.Flags().StringVar(&addDraft.TimeOut, "out", "", "end time (HH:MM)")
	addCmd.Flags().StringVar(&addDraft.Project, "project", "", "project code")
	addCmd.Flags().StringVar(&addDraft.Tool, "tool", "", "tool (optional)")
	addCmd.Flags().StringVar(&addDraft.ChargeCode, "charge-code", "", "detail charge code (optional)")
	addCmd.Flags().StringVar(&addDraft.TaskDescription, "description", "", "task description")
	addCmd.MarkFlagRequired("date")
	addCmd.MarkFlagRequired("in")
	addCmd.MarkFlagRequired("out")
	addCmd.MarkFlagRequired("project")
	addCmd.MarkFlagRequired("description")
	rootCmd.AddCommand(addCmd)
}

var draftsCmd = &cobra.Command{
	Use:   "drafts",
	Short: "Lists draft timesheet entries waiting for submission.",
	Run: func(cmd *cobra.Command, args []string) {
		renderEntries(fetchEntries("/api/timesheet/drafts", "drafts"))
	},
}

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Lists successfully submitted entries, newest first.",
	Run: func(cmd *cobra.Command, args []string) {
		renderEntries(fetchEntries("/api/archive", "entries"))
	},
}

var failedCmd = &cobra.Command{
	Use:   "failed",
	Short: "Lists entries whose last submission attempt failed.",
	Run: func(cmd *cobra.Command, args []string) {
		renderEntries(fetchEntries("/api/failed", "entries"))
	},
}

var addDraft struct {
	Date            string `json:"date"`
	TimeIn          string `json:"timeIn"`
	TimeOut         string `json:"timeOut"`
	Project         string `json:"project"`
	Tool            string `json:"tool,omitempty"`
	ChargeCode      string `json:"chargeCode,omitempty"`
	TaskDescription string `json:"taskDescription"`
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Saves a new draft entry.",
	Run: func(cmd *cobra.Command, args []string) {
		res, err := checkResponse(client.R().
			SetContext(cmd.Context()).
			SetBody(addDraft).
			Post("/api/timesheet"))
		if err != nil {
			log.Fatal(err)
		}

		var body struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal(res.Body(), &body); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("saved draft %d\n", body.ID)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Deletes a draft entry.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			log.Fatalf("invalid entry id %q", args[0])
		}

		_, err = checkResponse(client.R().
			SetContext(cmd.Context()).
			Delete(fmt.Sprintf("/api/timesheet/%d", id)))
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("deleted draft %d\n", id)
	},
}
