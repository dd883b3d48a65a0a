package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util"
)

const (
	actorKey = "auth_actor"
	// ActorIDKey holds the caller id for request logging.
	ActorIDKey = "actor_id"
)

// AuthMiddleware validates bearer tokens and resolves the acting agent.
type AuthMiddleware struct {
	tokens *TokenManager
	agents repository.AgentRepository
	enroll EnrollFunc
}

// EnrollFunc records a token-identified caller so later lookups by id succeed.
type EnrollFunc func(ctx context.Context, actor domain.Actor) error

// NewAuthMiddleware constructs middleware. With a nil directory the token
// alone identifies the caller.
func NewAuthMiddleware(tokens *TokenManager, agents repository.AgentRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, agents: agents}
}

// WithEnrollment registers callers on first sight. It only applies when no
// directory is configured.
func (m *AuthMiddleware) WithEnrollment(fn EnrollFunc) *AuthMiddleware {
	m.enroll = fn
	return m
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}
	actor := claims.Actor()

	if m.agents != nil {
		agent, err := m.agents.GetByID(c.UserContext(), actor.ID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewUnauthorized("agent not found")
			}
			return apperrors.MapError(err)
		}
		if !agent.Active {
			return apperrors.NewUnauthorized("agent inactive")
		}
		// the directory is authoritative for the role
		actor.Role = agent.Role
	} else if m.enroll != nil {
		if err := m.enroll(c.UserContext(), actor); err != nil {
			return apperrors.MapError(err)
		}
	}

	c.Locals(actorKey, actor)
	c.Locals(ActorIDKey, actor.ID)
	return c.Next()
}

// ActorFromContext retrieves the authenticated caller.
func ActorFromContext(c *fiber.Ctx) (domain.Actor, bool) {
	actor, ok := c.Locals(actorKey).(domain.Actor)
	if !ok || actor.IsSystem() {
		return domain.Actor{}, false
	}
	return actor, true
}
