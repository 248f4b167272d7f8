package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"voicecampaign/internal/auth"

	"github.com/gin-gonic/gin"
)

func roleRouter(role string, allowed ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), "u", role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}, RequireAnyRole(allowed...), func(c *gin.Context) {
		c.Status(200)
	})
	return r
}

func TestRequireAnyRole_AdminBypasses(t *testing.T) {
	r := roleRouter(RoleAdmin, RoleOperator)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRequireAnyRole_DisallowedRoleForbidden(t *testing.T) {
	r := roleRouter(RoleViewer, RoleOperator)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != 403 {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestRequireAnyRole_MissingIdentityUnauthorized(t *testing.T) {
	r := roleRouter("", RoleOperator)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != 401 {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
