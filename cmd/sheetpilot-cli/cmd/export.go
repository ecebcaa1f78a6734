package cmd

import (
	"fmt"
	"log"
	"mime"
	"os"

	"github.com/spf13/cobra"
)

var exportOutput string

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file, defaults to the server-suggested name")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Downloads the full timesheet as a CSV file.",
	Run: func(cmd *cobra.Command, args []string) {
		res, err := checkResponse(client.R().
			SetContext(cmd.Context()).
			Get("/api/timesheet/export"))
		if err != nil {
			log.Fatal(err)
		}

		output := exportOutput
		if output == "" {
			output = "timesheet_export.csv"
			_, params, err := mime.ParseMediaType(res.Header().Get("Content-Disposition"))
			if err == nil && params["filename"] != "" {
				output = params["filename"]
			}
		}

		if err := os.WriteFile(output, res.Body(), 0644); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("wrote %s\n", output)
	},
}
