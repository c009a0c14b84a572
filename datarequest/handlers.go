package datarequest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gutsdata/explorer_backend/appctx"
	"github.com/gutsdata/explorer_backend/utils"
)

// SubmitHandler accepts a data request from the explorer frontend and
// forwards it to the exchange service.
func SubmitHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if !appctx.IsAuthenticated(ctx) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": utils.ErrorNotAuthenticated.Error()})
			return
		}

		var req Request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		// the token, not the payload, decides who is asking
		req.UserIdentity = identityFromContext(c)
		if err := utils.ValidateStruct(req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
			return
		}

		resp, err := svc.Submit(ctx, req)
		if err != nil {
			var cfgErr *ConfigError
			var subErr *SubmissionError
			switch {
			case errors.As(err, &cfgErr):
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": cfgErr.Error()})
			case errors.As(err, &subErr) && subErr.StatusCode != 0:
				c.JSON(subErr.StatusCode, gin.H{"error": "Failed to submit form data"})
			default:
				c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to submit form data"})
			}
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", resp)
	}
}

func identityFromContext(c *gin.Context) UserIdentity {
	ctx := c.Request.Context()
	var id UserIdentity
	id.Subject, _ = utils.GetSubjectFromContext(ctx)
	id.Name, _ = utils.GetDisplayNameFromContext(ctx)
	id.Email, _ = utils.GetEmailFromContext(ctx)
	return id
}
