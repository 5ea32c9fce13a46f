package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"auditor/internal/logger"
	"auditor/internal/middleware"
	"auditor/internal/report"
	"auditor/internal/scan"

	"github.com/gin-gonic/gin"
)

type Analyzer interface {
	Analyze(ctx context.Context, req scan.Request) (*scan.Result, error)
}

type ScanController struct {
	Scans Analyzer
	Log   logger.Logger
}

type analyzeRequest struct {
	TokenAddress string `json:"token_address" binding:"required,solana_address"`
	UserWallet   string `json:"user_wallet" binding:"required,solana_address"`
}

// Analyze runs a token scan and returns the rendered report card
func (sc *ScanController) Analyze(c *gin.Context) {
	var body analyzeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token_address and user_wallet must be valid Solana addresses"})
		return
	}

	res, err := sc.Scans.Analyze(c.Request.Context(), scan.Request{
		TokenAddress: strings.TrimSpace(body.TokenAddress),
		UserWallet:   strings.TrimSpace(body.UserWallet),
	})
	if err != nil {
		switch {
		case errors.Is(err, scan.ErrScanLimitReached):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Scan limit reached"})
		case errors.Is(err, scan.ErrGateDenied):
			c.JSON(http.StatusForbidden, gin.H{"error": "Token gate not satisfied"})
		default:
			sc.Log.Errorw("analysis failed", "token", body.TokenAddress, "requestID", middleware.GetRequestID(c), "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"report": report.ErrorFragment(err.Error())})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"report": res.Report})
}
