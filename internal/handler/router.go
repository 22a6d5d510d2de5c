package handler

import (
	"database/sql"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Dependencies are the collaborators behind the local HTTP surface. SQLDB
// and Redis are optional.
type Dependencies struct {
	Batches   BatchService
	Dataset   DatasetPresenter
	Guardian  SessionGuardian
	Handshake HandshakeRunner
	Prompt    RecoveryPrompt
	SQLDB     *sql.DB
	Redis     redis.UniversalClient
}

// Register mounts probes, the handshake and recovery routes, and the gated
// /v1 API on app.
func Register(app *fiber.App, deps Dependencies) error {
	if deps.Guardian == nil {
		return fmt.Errorf("session guardian is required")
	}

	RegisterHealthRoutes(app, deps.SQLDB, deps.Redis)

	v1 := app.Group("/v1", SessionGate(deps.Guardian))
	if err := RegisterSessionRoutes(app, v1, deps.Guardian, deps.Handshake, deps.Prompt); err != nil {
		return err
	}
	return RegisterBatchRoutes(v1, deps.Batches, deps.Dataset)
}
