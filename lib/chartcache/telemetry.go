package chartcache

import (
	"go.opentelemetry.io/otel"

	"chartbrief-backend/lib/restyutil"
)

var tracer = otel.Tracer("lib/chartcache")
var restyInstrumentOutput restyutil.InstrumentOutput

func SetRestyInstrumentOutput(output restyutil.InstrumentOutput) {
	restyInstrumentOutput = output
}
