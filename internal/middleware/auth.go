package middleware

import (
	"collaborative-docs/internal/auth"
	"collaborative-docs/internal/domain"
	"collaborative-docs/internal/errors"
	"collaborative-docs/internal/worker"
	"context"
	"strings"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// ProfileSyncer mirrors a verified identity into the local profile directory.
type ProfileSyncer interface {
	Sync(ctx context.Context, identity domain.Identity) error
}

type TaskSubmitter interface {
	Submit(t worker.Task)
}

type Auth struct {
	Verifier auth.Verifier
	Profiles ProfileSyncer
	Pool     TaskSubmitter
}

// AuthMiddleWare rejects unauthenticated requests with a JSON 401 and
// refreshes the caller's mirrored profile.
func (m *Auth) AuthMiddleWare() gin.HandlerFunc {
	return m.authenticate(func(msg string, err error) error {
		return errors.Unauthorized(msg, err)
	}, true)
}

// SessionAuthMiddleWare rejects unauthenticated requests with a bodiless 401,
// indistinguishable from a refused session. A session join writes nothing,
// so no profile sync is queued.
func (m *Auth) SessionAuthMiddleWare() gin.HandlerFunc {
	return m.authenticate(func(_ string, err error) error {
		return errors.Denied(err)
	}, false)
}

func (m *Auth) authenticate(reject func(msg string, err error) error, syncProfile bool) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			ctx.Error(reject("Authorization is not found!", nil))
			ctx.Abort()
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		identity, err := m.Verifier.Verify(token)
		if err != nil {
			ctx.Error(reject("Invalid token!", err))
			ctx.Abort()
			return
		}

		if syncProfile && m.Profiles != nil && m.Pool != nil {
			caller := *identity
			m.Pool.Submit(func(taskCtx context.Context) error {
				return m.Profiles.Sync(taskCtx, caller)
			})
		}

		ctx.Set(identityKey, *identity)
		ctx.Next()
	}
}

// IdentityFrom returns the caller set by the auth middleware.
func IdentityFrom(c *gin.Context) (domain.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return domain.Identity{}, false
	}
	identity, ok := v.(domain.Identity)
	return identity, ok
}

// SetIdentity is used by handlers' tests to stand in for the auth middleware.
func SetIdentity(c *gin.Context, identity domain.Identity) {
	c.Set(identityKey, identity)
}
