package webserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/velvetpos/velvetpos/config"
	"github.com/velvetpos/velvetpos/internal/domain"
)

const (
	sessionName       = "velvetpos"
	sessionRegisterID = "register_id"
)

// Claims carried by API bearer tokens.
type Claims struct {
	UID     string `json:"uid"`
	Role    string `json:"role"`
	StoreID string `json:"store_id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	jwt.RegisteredClaims
}

// IssueToken signs a token for a staff account.
func IssueToken(cfg config.AuthConfig, opr *domain.SysOpr) (string, time.Time, error) {
	ttl := time.Duration(cfg.TokenTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	expires := time.Now().Add(ttl)
	claims := &Claims{
		UID:     strconv.FormatInt(opr.ID, 10),
		Role:    opr.Role,
		StoreID: opr.StoreID,
		Name:    opr.Realname,
		Email:   opr.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(opr.ID, 10),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JwtSecret))
	return token, expires, err
}

// CurrentUser returns the claims of the authenticated request, nil on public routes.
func CurrentUser(c echo.Context) *Claims {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok {
		return nil
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil
	}
	return claims
}

// RequireAdmin rejects callers without an owner or admin role.
func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		u := CurrentUser(c)
		if u == nil || !domain.IsAdminRole(u.Role) {
			return c.JSON(http.StatusForbidden, ErrorBody{
				Code:  "INSUFFICIENT_PERMISSIONS",
				Error: "Admin access required",
			})
		}
		return next(c)
	}
}

// RememberRegister stores the register of this browser session.
func RememberRegister(c echo.Context, id string) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Options = &sessions.Options{Path: "/", MaxAge: 86400, HttpOnly: true}
	if id == "" {
		delete(sess.Values, sessionRegisterID)
	} else {
		sess.Values[sessionRegisterID] = id
	}
	return sess.Save(c.Request(), c.Response())
}

// RememberedRegister returns the register stored by RememberRegister.
func RememberedRegister(c echo.Context) string {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return ""
	}
	id, _ := sess.Values[sessionRegisterID].(string)
	return id
}
