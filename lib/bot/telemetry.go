package bot

import "sheetpilot-backend/lib/telemetry"

var tracer = telemetry.Tracer("sheetpilot.lib.bot")
