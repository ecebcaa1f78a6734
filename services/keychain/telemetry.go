package keychain

import "sheetpilot-backend/lib/telemetry"

var tracer = telemetry.Tracer("sheetpilot.services.keychain")
