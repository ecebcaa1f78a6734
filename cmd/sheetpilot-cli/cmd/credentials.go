package cmd

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	credEmail    string
	credPassword string
)

func init() {
	credentialsSetCmd.Flags().StringVarP(&credEmail, "email", "u", "", "vendor account email")
	credentialsSetCmd.Flags().StringVarP(&credPassword, "password", "p", "", "vendor account password")
	credentialsSetCmd.MarkFlagRequired("email")
	credentialsSetCmd.MarkFlagRequired("password")

	credentialsCmd.AddCommand(credentialsSetCmd)
	credentialsCmd.AddCommand(credentialsListCmd)
	credentialsCmd.AddCommand(credentialsDeleteCmd)
	rootCmd.AddCommand(credentialsCmd)
}

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manages the stored vendor login credentials.",
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Stores the vendor login credentials the submission bot uses.",
	Run: func(cmd *cobra.Command, args []string) {
		_, err := checkResponse(client.R().
			SetContext(cmd.Context()).
			SetBody(map[string]string{
				"email":    credEmail,
				"password": credPassword,
			}).
			Post("/api/credentials"))
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println("credentials saved")
	},
}

var credentialsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists stored credentials with emails redacted.",
	Run: func(cmd *cobra.Command, args []string) {
		res, err := checkResponse(client.R().
			SetContext(cmd.Context()).
			Get("/api/credentials"))
		if err != nil {
			log.Fatal(err)
		}

		var body struct {
			Credentials []struct {
				Service string `json:"service"`
				Email   string `json:"email"`
			} `json:"credentials"`
		}
		if err := json.Unmarshal(res.Body(), &body); err != nil {
			log.Fatal(err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Service", "Email"})
		for _, cred := range body.Credentials {
			t.AppendRow(table.Row{cred.Service, cred.Email})
		}
		t.Render()
	},
}

var credentialsDeleteCmd = &cobra.Command{
	Use:   "delete <service>",
	Short: "Deletes the stored credentials for a service.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, err := checkResponse(client.R().
			SetContext(cmd.Context()).
			Delete("/api/credentials/" + args[0]))
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("deleted credentials for %s\n", args[0])
	},
}
