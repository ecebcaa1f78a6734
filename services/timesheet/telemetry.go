package timesheet

import "sheetpilot-backend/lib/telemetry"

var tracer = telemetry.Tracer("sheetpilot.services.timesheet")
