package bot

import (
	"fmt"
	"strings"
	"time"
)

type LoginAction string

const (
	ActionWait  LoginAction = "wait"
	ActionInput LoginAction = "input"
	ActionClick LoginAction = "click"
)

// LoginStep is one entry of the data-driven login sequence. The
// interpreter in login.go executes steps strictly in slice order;
// adding a new SSO hop is a configuration change, not a code change.
type LoginStep struct {
	Name   string
	Action LoginAction
	// Locator targets the element for Input/Click steps.
	Locator string
	// Selector is what a Wait step polls for.
	Selector string
	// ValueKey names the credential injected by an Input step,
	// either "email" or "password".
	ValueKey string
	// ExpectsNavigation adds a settle delay after the action so the
	// browser can finish transitioning.
	ExpectsNavigation bool
	// Optional steps may fail without aborting the login.
	Optional bool
	// Sensitive values are never logged in cleartext.
	Sensitive bool
}

// The vendor form sits behind a two-hop SSO chain (vendor login page,
// company SSO chooser, then AAD). Selectors here are the stable ids
// observed on those pages.
func LoginSteps() []LoginStep {
	return []LoginStep{
		{Name: "Wait for Login Form", Action: ActionWait, Selector: "#loginEmail", Optional: true},
		{Name: "Email Input", Action: ActionInput, Locator: "#loginEmail", ValueKey: "email", Sensitive: true},
		{Name: "Continue", Action: ActionClick, Locator: "#formControl", ExpectsNavigation: true, Optional: true},
		{Name: "Wait for SSO Choice", Action: ActionWait, Selector: "a.clsJspButtonWide", Optional: true},
		{Name: "Login with company account", Action: ActionClick, Locator: "a.clsJspButtonWide", ExpectsNavigation: true, Optional: true},
		{Name: "Wait for AAD Email", Action: ActionWait, Selector: "#i0116"},
		{Name: "AAD Email", Action: ActionInput, Locator: "#i0116", ValueKey: "email", Sensitive: true},
		{Name: "AAD Next", Action: ActionClick, Locator: "#idSIButton9", ExpectsNavigation: true, Optional: true},
		{Name: "Wait for Password", Action: ActionWait, Selector: "#passwordInput"},
		{Name: "Password Input", Action: ActionInput, Locator: "#passwordInput", ValueKey: "password", Sensitive: true},
		{Name: "Password Submit", Action: ActionClick, Locator: "#submitButton", ExpectsNavigation: true, Optional: true},
		{Name: "Stay Signed In Prompt", Action: ActionWait, Selector: "#idBtn_Back", Optional: true},
		{Name: "Stay Signed In - No", Action: ActionClick, Locator: "#idBtn_Back", ExpectsNavigation: true, Optional: true},
		{Name: "Wait for Form Page Ready", Action: ActionWait, Selector: "input[aria-label='Project']"},
	}
}

// ValidateSteps rejects malformed step tables at startup so bad
// configuration never surfaces as a mid-login failure.
func ValidateSteps(steps []LoginStep) error {
	for _, step := range steps {
		switch step.Action {
		case ActionWait:
			if step.Selector == "" {
				return fmt.Errorf("wait step %q has no selector", step.Name)
			}
		case ActionInput:
			if step.Locator == "" {
				return fmt.Errorf("input step %q has no locator", step.Name)
			}
			if step.ValueKey != "email" && step.ValueKey != "password" {
				return fmt.Errorf("input step %q has unknown value key %q", step.Name, step.ValueKey)
			}
		case ActionClick:
			if step.Locator == "" {
				return fmt.Errorf("click step %q has no locator", step.Name)
			}
		default:
			return fmt.Errorf("step %q has unknown action %q", step.Name, step.Action)
		}
	}
	return nil
}

type FieldDefinition struct {
	Label    string
	Locator  string
	Optional bool
}

func FieldDefinitions() map[string]FieldDefinition {
	return map[string]FieldDefinition{
		"project_code":     {Label: "Project", Locator: "input[aria-label='Project']"},
		"date":             {Label: "Date", Locator: "input[placeholder='mm/dd/yyyy']"},
		"hours":            {Label: "Hours", Locator: "input[aria-label='Hours']"},
		"task_description": {Label: "Task Description", Locator: "textarea[aria-label='Task Description']"},
		"tool":             {Label: "Tool", Locator: "input[aria-label*='Tool']", Optional: true},
		"detail_code":      {Label: "Detail Charge Code", Locator: "input[aria-label='Detail Charge Code']", Optional: true},
	}
}

// FieldOrder fixes the fill order independently of map iteration.
func FieldOrder() []string {
	return []string{
		"project_code",
		"date",
		"hours",
		"tool",
		"task_description",
		"detail_code",
	}
}

// Labels of fields backed by the vendor's type-ahead single-select
// widget. After typing, the first filtered suggestion must be
// confirmed with ArrowDown then Enter or the value is dropped.
var dropdownFieldLabels = []string{"project", "tool", "detail charge code"}

func isDropdownField(label string) bool {
	lower := strings.ToLower(label)
	for _, name := range dropdownFieldLabels {
		if strings.Contains(lower, name) {
			return true
		}
	}
	return false
}

// Tried in order until one resolves to a clickable button.
func submitButtonFallbacks() []string {
	return []string{
		"button[data-client-id='form_submit_btn']",
		"input[type='submit']",
		"button[type='submit']",
		"button.submit",
		"button[aria-label*='submit']",
		"button[aria-label*='save']",
		"button[title*='submit']",
		"button[title*='save']",
	}
}

func successURLFragments() []string {
	return []string{"success", "complete", "confirmation"}
}

func successTextFragments() []string {
	return []string{
		"submissionid",
		"confirmation",
		"success! we've captured your submission",
		"form submitted successfully",
		"thank you for your submission",
	}
}

func successCSSHooks() []string {
	return []string{
		".submission-success",
		".form-success",
		"[data-submission-status='success']",
		".confirmation-message",
		".success-message",
		".alert-success",
	}
}

// Delays is the one backoff/settle policy shared by the login
// interpreter and the webform filler.
type Delays struct {
	// NavRetries bounds initial page-load attempts; exhausting them
	// is fatal for the whole run.
	NavRetries int
	NavBackoff time.Duration

	// StepDelay runs after every login step regardless of outcome to
	// tolerate async re-rendering.
	StepDelay time.Duration
	// ElementSettle runs before locating an element for input/click.
	ElementSettle time.Duration
	// NavSettle runs after a click that expects navigation.
	NavSettle time.Duration

	ElementWaitTimeout time.Duration
	ElementWaitPoll    time.Duration

	FormSettle   time.Duration
	FieldDelay   time.Duration
	SubmitSettle time.Duration

	DropdownOpen    time.Duration
	DropdownSelect  time.Duration
	DropdownConfirm time.Duration
}

func DefaultDelays() Delays {
	return Delays{
		NavRetries: 3,
		NavBackoff: time.Second * 2,

		StepDelay:     time.Millisecond * 300,
		ElementSettle: time.Millisecond * 500,
		NavSettle:     time.Second * 3,

		ElementWaitTimeout: time.Second * 10,
		ElementWaitPoll:    time.Millisecond * 500,

		FormSettle:   time.Second * 3,
		FieldDelay:   time.Millisecond * 200,
		SubmitSettle: time.Second * 3,

		DropdownOpen:    time.Millisecond * 500,
		DropdownSelect:  time.Millisecond * 200,
		DropdownConfirm: time.Millisecond * 300,
	}
}
