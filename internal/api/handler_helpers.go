package api

import (
	"github.com/gin-gonic/gin"
	"github.com/kalviumcommunity/FocusRoom/internal"
	"github.com/kalviumcommunity/FocusRoom/internal/response"
)

func HandleError(c *gin.Context, logger internal.Logger, err error, status int, msg string) {
	requestID := c.GetString("request_id")
	logger.Errorf("[request_id=%s] %s: %v", requestID, msg, err)
	c.JSON(status, response.Failure(requestID, status, msg+": "+err.Error()))
}

func HandleSuccess(c *gin.Context, logger internal.Logger, data interface{}, meta map[string]any) {
	requestID := c.GetString("request_id")
	logger.Infof("[request_id=%s] Success", requestID)
	c.JSON(200, response.Success(requestID, data, meta))
}
