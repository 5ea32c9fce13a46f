package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"auditor/internal/card"
	"auditor/internal/logger"
	"auditor/internal/middleware"
	"auditor/internal/report"

	"github.com/gin-gonic/gin"
)

var errInvalidScore = errors.New("degen_score must be a whole number")

type CardGenerator interface {
	Generate(ctx context.Context, req card.Request) (*card.Card, error)
}

type CardController struct {
	Cards CardGenerator
	Log   logger.Logger
}

type cardRequest struct {
	Name       string          `json:"name"`
	Symbol     string          `json:"symbol"`
	FDV        json.RawMessage `json:"fdv"`
	DegenScore json.RawMessage `json:"degen_score"`
}

// GenerateCard renders the shareable meme card as a PNG download
func (cc *CardController) GenerateCard(c *gin.Context) {
	var body cardRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	score, err := parseScore(body.DegenScore)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	name := strings.TrimSpace(body.Name)
	if name == "" {
		name = report.NotAvailable
	}

	out, err := cc.Cards.Generate(c.Request.Context(), card.Request{
		Name:       name,
		Symbol:     body.Symbol,
		FDV:        parseFDV(body.FDV),
		DegenScore: score,
	})
	if err != nil {
		cc.Log.Errorw("card generation failed", "symbol", body.Symbol, "requestID", middleware.GetRequestID(c), "err", err)
		if errors.Is(err, card.ErrFontNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Font file not found on server."})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create and process the AI card."})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.Filename))
	c.Data(http.StatusOK, "image/png", out.PNG)
}

// fdv arrives either preformatted from the report or as a raw number
func parseFDV(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return report.NotAvailable
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
		return report.NotAvailable
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return report.FormatUSD(f)
	}
	return report.NotAvailable
}

func parseScore(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, errInvalidScore
		}
		return n, nil
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err != nil || f != math.Trunc(f) {
		return 0, errInvalidScore
	}
	return int(f), nil
}
