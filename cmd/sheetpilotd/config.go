package main

import (
	"database/sql"

	"sheetpilot-backend/lib/sqliteutil"
	authdb "sheetpilot-backend/services/auth/db"
	keychaindb "sheetpilot-backend/services/keychain/db"
	timesheetdb "sheetpilot-backend/services/timesheet/db"
)

var (
	authSchema      = authdb.Schema
	keychainSchema  = keychaindb.Schema
	timesheetSchema = timesheetdb.Schema
)

type DatabaseConfig struct {
	Auth      string `json:"auth"`
	Keychain  string `json:"keychain"`
	Timesheet string `json:"timesheet"`
}

type WebdriverConfig struct {
	Endpoint string `json:"endpoint"`
	Headless bool   `json:"headless"`
}

type AdminConfig struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type Config struct {
	Port      int             `json:"port"`
	LoginURL  string          `json:"login_url"`
	Databases DatabaseConfig  `json:"databases"`
	Webdriver WebdriverConfig `json:"webdriver"`
	Admin     AdminConfig     `json:"admin"`
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8400
	}
	if c.LoginURL == "" {
		c.LoginURL = "https://app.smartsheet.com/b/form"
	}
	if c.Databases.Auth == "" {
		c.Databases.Auth = "data/auth.db"
	}
	if c.Databases.Keychain == "" {
		c.Databases.Keychain = "data/keychain.db"
	}
	if c.Databases.Timesheet == "" {
		c.Databases.Timesheet = "data/timesheet.db"
	}
	if c.Webdriver.Endpoint == "" {
		c.Webdriver.Endpoint = "http://localhost:9515"
	}
}

func openDatabase(path, schema string) (*sql.DB, error) {
	return sqliteutil.OpenDB(schema, path)
}
