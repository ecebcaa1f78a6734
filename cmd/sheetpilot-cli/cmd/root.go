package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	baseURL string
	token   string
	client  *resty.Client
)

var rootCmd = &cobra.Command{
	Use:   "sheetpilot-cli",
	Short: "sheetpilot-cli is a CLI interface for the SheetPilot timesheet daemon.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		client = resty.New()
		client.SetBaseURL(baseURL)
		client.SetTimeout(time.Minute * 10)
		if token != "" {
			client.SetAuthToken(token)
		}
	},
}

func Execute() {
	rootCmd.PersistentFlags().StringVar(
		&baseURL, "addr", "http://localhost:8400",
		"address of the sheetpilot daemon",
	)
	rootCmd.PersistentFlags().StringVar(
		&token, "token", os.Getenv("SHEETPILOT_TOKEN"),
		"session token, defaults to $SHEETPILOT_TOKEN",
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

type errorResponse struct {
	Error string `json:"error"`
}

// checkResponse turns a non-2xx API reply into a readable error.
func checkResponse(res *resty.Response, err error) (*resty.Response, error) {
	if err != nil {
		return nil, err
	}
	if res.IsSuccess() {
		return res, nil
	}

	var body errorResponse
	if jsonErr := json.Unmarshal(res.Body(), &body); jsonErr == nil && body.Error != "" {
		return nil, fmt.Errorf("%s: %s", res.Status(), body.Error)
	}
	return nil, fmt.Errorf("%s", res.Status())
}
