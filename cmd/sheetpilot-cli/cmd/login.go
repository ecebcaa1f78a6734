package cmd

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var (
	loginUsername string
	loginPassword string
	loginStay     bool
)

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "login username or email")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "login password")
	loginCmd.Flags().BoolVar(&loginStay, "stay-logged-in", false, "request a thirty day session")
	loginCmd.MarkFlagRequired("username")
	loginCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(loginCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Obtains a session token. Export it as SHEETPILOT_TOKEN for the other commands.",
	Run: func(cmd *cobra.Command, args []string) {
		res, err := checkResponse(client.R().
			SetContext(cmd.Context()).
			SetBody(map[string]any{
				"username":     loginUsername,
				"password":     loginPassword,
				"stayLoggedIn": loginStay,
			}).
			Post("/api/login"))
		if err != nil {
			log.Fatal(err)
		}

		var body struct {
			Token     string `json:"token"`
			ExpiresAt string `json:"expiresAt"`
		}
		if err := json.Unmarshal(res.Body(), &body); err != nil {
			log.Fatal(err)
		}

		fmt.Printf("export SHEETPILOT_TOKEN=%s\n", body.Token)
		fmt.Printf("# expires at %s\n", body.ExpiresAt)
	},
}
