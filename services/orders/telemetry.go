package orders

import "ordervault/lib/telemetry"

var tracer = telemetry.Tracer("ordervault.services.orders")
