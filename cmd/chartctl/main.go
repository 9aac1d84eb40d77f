package main

import (
	"context"

	"chartbrief-backend/cmd/chartctl/commands"
	"chartbrief-backend/lib/telemetry"
)

func main() {
	telemetry.SetupFromEnv(context.Background(), "chartctl")
	telemetry.InitSlog(true)
	commands.ExecuteContext(context.Background())
}
