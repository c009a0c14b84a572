// Package members manages the collaboration membership of explorer users
// through the exchange service.
package members

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gutsdata/explorer_backend/appctx"
	"github.com/gutsdata/explorer_backend/config"
	"github.com/gutsdata/explorer_backend/neptune"
	"github.com/gutsdata/explorer_backend/utils"
)

// Directory is the user-management side of the exchange service.
type Directory interface {
	CheckUser(ctx context.Context, email string) (json.RawMessage, error)
	InviteUser(ctx context.Context, email string) (json.RawMessage, error)
	DeleteUser(ctx context.Context, email string) (json.RawMessage, error)
}

type emailParam struct {
	Email string `json:"email" validate:"required,email"`
}

// Register mounts GET, POST and DELETE on /user/:email.
func Register(r gin.IRoutes, dir Directory) {
	r.GET("/user/:email", handle("CheckUser", dir.CheckUser))
	r.POST("/user/:email", handle("InviteUser", dir.InviteUser))
	r.DELETE("/user/:email", handle("DeleteUser", dir.DeleteUser))
}

func handle(op string, call func(context.Context, string) (json.RawMessage, error)) gin.HandlerFunc {
	logger := config.GetLogger()
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if !appctx.IsAuthenticated(ctx) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": utils.ErrorNotAuthenticated.Error()})
			return
		}
		param := emailParam{Email: c.Param("email")}
		if err := utils.ValidateStruct(param); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
			return
		}

		body, err := call(ctx, param.Email)
		if err != nil {
			config.LogError(logger, "members/handlers.go", op, "user management request", param.Email, err)
			var se *neptune.StatusError
			switch {
			case errors.Is(err, neptune.ErrUserEndpointNotConfigured):
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "user management not configured"})
			case errors.As(err, &se) && se.StatusCode == http.StatusNotFound:
				c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			default:
				c.JSON(http.StatusBadGateway, gin.H{"error": "user management request failed"})
			}
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", body)
	}
}
