package auth

import "sheetpilot-backend/lib/telemetry"

var tracer = telemetry.Tracer("sheetpilot.services.auth")
