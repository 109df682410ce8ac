package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/orgchart/internal/observability/context"
)

const (
	// HeaderMemberID carries the acting member, set by the upstream auth proxy.
	HeaderMemberID    = "X-Member-Id"
	contextActorIDKey = "actor_id"
)

func (s *Server) ActorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := strings.TrimSpace(c.GetHeader(HeaderMemberID))
		if actorID == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(contextActorIDKey, actorID)
		c.Request = c.Request.WithContext(obscontext.WithActorID(c.Request.Context(), actorID))
		c.Next()
	}
}

func actorIDFromContext(c *gin.Context) (string, bool) {
	value, ok := c.Get(contextActorIDKey)
	if !ok {
		return "", false
	}
	actorID, ok := value.(string)
	return actorID, ok && actorID != ""
}
