package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/extraction-orchestrator/internal/domain"
)

const sessionPath = "/v1/session"

type SessionGuardian interface {
	State(ctx context.Context) (domain.SessionState, error)
	RecoveryURL(from string) string
}

type HandshakeRunner interface {
	Run(ctx context.Context, token string, next string) (string, error)
}

// RecoveryPrompt reports whether the expired-session prompt is showing.
type RecoveryPrompt interface {
	Open() (bool, time.Time)
}

type SessionHandler struct {
	guardian  SessionGuardian
	handshake HandshakeRunner
	prompt    RecoveryPrompt
}

func NewSessionHandler(guardian SessionGuardian, handshake HandshakeRunner, prompt RecoveryPrompt) (*SessionHandler, error) {
	if guardian == nil {
		return nil, fmt.Errorf("session guardian is required")
	}
	if handshake == nil {
		return nil, fmt.Errorf("handshake is required")
	}
	return &SessionHandler{guardian: guardian, handshake: handshake, prompt: prompt}, nil
}

// RegisterSessionRoutes mounts the handshake and recovery routes on app and
// the session status route on v1.
func RegisterSessionRoutes(app fiber.Router, v1 fiber.Router, guardian SessionGuardian, handshake HandshakeRunner, prompt RecoveryPrompt) error {
	h, err := NewSessionHandler(guardian, handshake, prompt)
	if err != nil {
		return err
	}

	app.Get("/liberar", h.Handshake)
	app.Get("/session/recover", h.Recover)
	v1.Get("/session", h.Status)

	return nil
}

type sessionResponse struct {
	State       string     `json:"state"`
	RecoveryURL string     `json:"recoveryUrl,omitempty"`
	PromptOpen  bool       `json:"promptOpen"`
	ExpiredAt   *time.Time `json:"expiredAt,omitempty"`
}

type sessionExpiredResponse struct {
	Error       string `json:"error"`
	RecoveryURL string `json:"recoveryUrl"`
}

// SessionGate blocks every route behind it while the session is expired,
// except the session status route itself.
func SessionGate(guardian SessionGuardian) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if strings.TrimRight(c.Path(), "/") == sessionPath {
			return c.Next()
		}

		state, err := guardian.State(c.UserContext())
		if err != nil {
			return err
		}
		if state != domain.SessionExpired {
			return c.Next()
		}

		return c.Status(fiber.StatusUnauthorized).JSON(sessionExpiredResponse{
			Error:       domain.ErrSessionExpired.Error(),
			RecoveryURL: guardian.RecoveryURL(c.OriginalURL()),
		})
	}
}

func (h *SessionHandler) Status(c *fiber.Ctx) error {
	state, err := h.guardian.State(c.UserContext())
	if err != nil {
		return err
	}

	resp := sessionResponse{State: state.String()}
	if state == domain.SessionExpired {
		resp.RecoveryURL = h.guardian.RecoveryURL(c.Query("from"))
	}
	if h.prompt != nil {
		open, at := h.prompt.Open()
		resp.PromptOpen = open
		if open {
			resp.ExpiredAt = &at
		}
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *SessionHandler) Recover(c *fiber.Ctx) error {
	return c.Redirect(h.guardian.RecoveryURL(c.Query("from")), fiber.StatusFound)
}

func (h *SessionHandler) Handshake(c *fiber.Ctx) error {
	next, err := h.handshake.Run(c.UserContext(), c.Query("token"), c.Query("next"))
	switch {
	case err == nil:
		return c.Redirect(next, fiber.StatusFound)
	case errors.Is(err, domain.ErrMissingToken):
		return fiber.NewError(fiber.StatusBadRequest, domain.ErrMissingToken.Error())
	case errors.Is(err, domain.ErrHandshakeFailed):
		return fiber.NewError(fiber.StatusForbidden, domain.ErrHandshakeFailed.Error())
	default:
		return err
	}
}
