package main

import "sheetpilot-backend/cmd/sheetpilot-cli/cmd"

func main() {
	cmd.Execute()
}
