package cmd

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(resetFailedCmd)
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submits every draft entry through the browser automation.",
	Run: func(cmd *cobra.Command, args []string) {
		res, err := checkResponse(client.R().
			SetContext(cmd.Context()).
			Post("/api/timesheet/submit"))
		if err != nil {
			log.Fatal(err)
		}

		var body struct {
			Summary string   `json:"summary"`
			Errors  []string `json:"errors"`
		}
		if err := json.Unmarshal(res.Body(), &body); err != nil {
			log.Fatal(err)
		}

		fmt.Println(body.Summary)
		for _, message := range body.Errors {
			fmt.Printf("  %s\n", message)
		}
	},
}

var resetFailedCmd = &cobra.Command{
	Use:   "reset-failed",
	Short: "Returns every failed entry to draft for another attempt.",
	Run: func(cmd *cobra.Command, args []string) {
		res, err := checkResponse(client.R().
			SetContext(cmd.Context()).
			Post("/api/timesheet/reset-failed"))
		if err != nil {
			log.Fatal(err)
		}

		var body struct {
			Count int64 `json:"count"`
		}
		if err := json.Unmarshal(res.Body(), &body); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("reset %d entries to draft\n", body.Count)
	},
}
