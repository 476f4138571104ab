package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sparvidata/automation-core/internal/authn"
	"github.com/sparvidata/automation-core/internal/domain"
)

const errUnauthorized = "Unauthorized"

// PrincipalKey is the gin context key Auth stores the resolved
// domain.Principal under.
const PrincipalKey = "principal"

// Auth validates the bearer token via verifier and sets the resolved
// domain.Principal in the gin context. Delegates entirely to
// internal/authn so this middleware carries no token-format knowledge of
// its own — it only knows how to get a token out of a request.
func Auth(verifier *authn.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}

		rawToken := strings.TrimPrefix(header, "Bearer ")
		principal, err := verifier.Verify(c.Request.Context(), rawToken)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}

		c.Set(PrincipalKey, principal)
		c.Next()
	}
}

// PrincipalFrom extracts the Principal Auth stored in c, ok=false if Auth
// never ran (e.g. a handler mounted outside the authenticated group).
func PrincipalFrom(c *gin.Context) (domain.Principal, bool) {
	v, ok := c.Get(PrincipalKey)
	if !ok {
		return domain.Principal{}, false
	}
	p, ok := v.(domain.Principal)
	return p, ok
}
