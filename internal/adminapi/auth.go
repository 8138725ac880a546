package adminapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/velvetpos/velvetpos/internal/domain"
	"github.com/velvetpos/velvetpos/internal/webserver"
	"github.com/velvetpos/velvetpos/pkg/common"
	"go.uber.org/zap"
)

type loginPayload struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type createUserPayload struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"omitempty,max=200"`
	Mobile   string `json:"mobile" validate:"omitempty,max=64"`
	Role     string `json:"role" validate:"omitempty,oneof=admin manager staff"`
}

type userView struct {
	UID     string `json:"uid"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Role    string `json:"role"`
	StoreID string `json:"store_id"`
}

func registerAuthRoutes() {
	webserver.ApiPOST("/auth/login", login)
	webserver.ApiPOST("/auth/verify", verifyToken)
	webserver.ApiPOST("/auth/create-user", createUser, webserver.RequireAdmin)
	webserver.ApiGET("/staff", listStaff, webserver.RequireAdmin)
}

func login(c echo.Context) error {
	var payload loginPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse credentials", nil)
	}
	payload.Email = strings.ToLower(strings.TrimSpace(payload.Email))
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	var opr domain.SysOpr
	err := GetDB(c).Where("email = ?", payload.Email).First(&opr).Error
	if err != nil && !isNotFound(err) {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query user", err.Error())
	}
	if err != nil || !common.CheckPassword(opr.Password, payload.Password) {
		return fail(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
	}
	if opr.Status != common.ENABLED {
		return fail(c, http.StatusForbidden, "USER_DISABLED", "User account is disabled", nil)
	}

	appCtx := GetAppContext(c)
	token, expires, err := webserver.IssueToken(appCtx.Config().Auth, &opr)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "TOKEN_FAILED", "Failed to issue token", err.Error())
	}
	GetDB(c).Model(&domain.SysOpr{}).Where("id = ?", opr.ID).Update("last_login", time.Now())
	zap.L().Info("staff signed in", zap.String("email", opr.Email), zap.String("store_id", opr.StoreID))

	storeConfig, _ := appCtx.ConfigMgr().StoreConfig(opr.StoreID)
	return ok(c, map[string]interface{}{
		"token":      token,
		"expires_at": expires,
		"user": userView{
			UID:     strconv.FormatInt(opr.ID, 10),
			Email:   opr.Email,
			Name:    opr.Realname,
			Role:    opr.Role,
			StoreID: opr.StoreID,
		},
		"store_config": storeConfig,
	})
}

func verifyToken(c echo.Context) error {
	u := webserver.CurrentUser(c)
	if u == nil {
		return fail(c, http.StatusUnauthorized, "AUTH_REQUIRED", "Authentication required", nil)
	}
	storeConfig, err := GetAppContext(c).ConfigMgr().StoreConfig(u.StoreID)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "FETCH_FAILED", "Failed to load store config", err.Error())
	}
	return ok(c, map[string]interface{}{
		"user": userView{
			UID:     u.UID,
			Email:   u.Email,
			Name:    u.Name,
			Role:    u.Role,
			StoreID: u.StoreID,
		},
		"store_config": storeConfig,
	})
}

func createUser(c echo.Context) error {
	var payload createUserPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse user", nil)
	}
	payload.Email = strings.ToLower(strings.TrimSpace(payload.Email))
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}
	if payload.Role == "" {
		payload.Role = domain.RoleStaff
	}

	var count int64
	GetDB(c).Model(&domain.SysOpr{}).Where("email = ?", payload.Email).Count(&count)
	if count > 0 {
		return fail(c, http.StatusConflict, "USER_EXISTS", "A user with this email already exists", nil)
	}

	hashed, err := common.HashPassword(payload.Password)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "CREATION_FAILED", "Failed to hash password", err.Error())
	}
	name := strings.TrimSpace(payload.Name)
	if name == "" {
		name = strings.SplitN(payload.Email, "@", 2)[0]
	}
	opr := domain.SysOpr{
		ID:       common.UUIDint64(),
		StoreID:  storeID(c),
		Realname: name,
		Mobile:   payload.Mobile,
		Email:    payload.Email,
		Password: hashed,
		Role:     payload.Role,
		Status:   common.ENABLED,
	}
	if err := GetDB(c).Create(&opr).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "CREATION_FAILED", "Failed to create user", err.Error())
	}
	logOperation(c, "create_user", "created "+opr.Role+" "+opr.Email)
	return created(c, userView{
		UID:     strconv.FormatInt(opr.ID, 10),
		Email:   opr.Email,
		Name:    opr.Realname,
		Role:    opr.Role,
		StoreID: opr.StoreID,
	})
}

func listStaff(c echo.Context) error {
	var staff []domain.SysOpr
	err := GetDB(c).Where("store_id = ?", storeID(c)).Order("realname").Find(&staff).Error
	if err != nil {
		return fail(c, http.StatusInternalServerError, "FETCH_FAILED", "Failed to query staff", err.Error())
	}
	return ok(c, staff)
}
