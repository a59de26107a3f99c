package api

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/haneul-labs/saju-engine/internal/apperr"
	"github.com/haneul-labs/saju-engine/internal/fortune"
	"github.com/haneul-labs/saju-engine/internal/orchestrator"
	"github.com/haneul-labs/saju-engine/internal/prompt"
	"github.com/haneul-labs/saju-engine/internal/saju"
	"github.com/haneul-labs/saju-engine/pkg/models"
)

const (
	// webDeadline is the hard cap on one web analysis; a disconnecting
	// wizard aborts through the request context before this fires.
	webDeadline = 90 * time.Second

	maxTextBytes  = 500_000
	maxImageBytes = 5 << 20
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/heic": true,
	"image/heif": true,
}

type birthRequest struct {
	Year   int    `json:"year"`
	Month  int    `json:"month"`
	Day    int    `json:"day"`
	Hour   int    `json:"hour"`
	Minute int    `json:"minute"`
	Gender string `json:"gender"`
}

func (b birthRequest) toInput() (models.BirthInput, error) {
	in := models.BirthInput{
		Year:   b.Year,
		Month:  b.Month,
		Day:    b.Day,
		Hour:   b.Hour,
		Minute: b.Minute,
		Gender: parseGender(b.Gender),
	}
	if err := in.Validate(); err != nil {
		return in, apperr.Wrap(apperr.KindValidation, "invalid birth input", err)
	}
	return in, nil
}

// parseGender folds the wire spellings into the stored code.
func parseGender(s string) models.Gender {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "M", "남", "남성", "남자", "MALE":
		return models.GenderMale
	case "F", "여", "여성", "여자", "FEMALE":
		return models.GenderFemale
	}
	return models.Gender(s)
}

// chartPayload is the deterministic half of every web analysis response.
type chartPayload struct {
	Pillars  string        `json:"pillars"`
	Elements string        `json:"elements"`
	Strength saju.Strength `json:"strength"`
	YearLuck saju.YearLuck `json:"yearLuck"`
}

func (s *Server) chartFor(ctx context.Context, birth models.BirthInput) (prompt.ChartContext, chartPayload, error) {
	pillars, err := s.manse.Resolve(ctx, birth)
	if err != nil {
		return prompt.ChartContext{}, chartPayload{}, err
	}
	chart := prompt.ChartContext{
		Pillars:  pillars,
		Strength: saju.EvaluateStrength(pillars),
		YearLuck: saju.EvaluateYearLuck(pillars, time.Now().Year()),
	}
	payload := chartPayload{
		Pillars:  pillars.Hangul(),
		Elements: fortune.ElementDistribution(pillars),
		Strength: chart.Strength,
		YearLuck: chart.YearLuck,
	}
	return chart, payload, nil
}

// handleWebSaju answers the wizard's general reading request.
func (s *Server) handleWebSaju(c *gin.Context) {
	var req struct {
		birthRequest
		Question string `json:"question"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	birth, err := req.toInput()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), webDeadline)
	defer cancel()

	chart, payload, err := s.chartFor(ctx, birth)
	if err != nil {
		abortWith(c, err)
		return
	}

	analysis := ""
	if s.chat != nil {
		tone := prompt.DetectTone(req.Question)
		resp, err := s.chat.Complete(ctx, s.prompts.General(tone, req.Question, chart, nil, nil))
		if err != nil {
			abortWith(c, err)
			return
		}
		analysis = prompt.CorrectDayPillar(resp.Content, chart.Pillars.Day)
	}

	c.JSON(http.StatusOK, gin.H{"chart": payload, "analysis": analysis})
}

// handleWebRelationship runs the compatibility analysis for two tuples.
func (s *Server) handleWebRelationship(c *gin.Context) {
	var req struct {
		Mine     birthRequest `json:"mine"`
		Partner  birthRequest `json:"partner"`
		Question string       `json:"question"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	mineBirth, err := req.Mine.toInput()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	partnerBirth, err := req.Partner.toInput()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), webDeadline)
	defer cancel()

	mine, minePayload, err := s.chartFor(ctx, mineBirth)
	if err != nil {
		abortWith(c, err)
		return
	}
	partner, partnerPayload, err := s.chartFor(ctx, partnerBirth)
	if err != nil {
		abortWith(c, err)
		return
	}

	result := fortune.Compatibility(mine.Pillars, partner.Pillars, time.Now())

	analysis := ""
	if s.chat != nil {
		tone := prompt.DetectTone(req.Question)
		resp, err := s.chat.Complete(ctx, s.prompts.Compatibility(tone, req.Question, mine, partner, result))
		if err != nil {
			abortWith(c, err)
			return
		}
		analysis = prompt.CorrectDayPillar(resp.Content, mine.Pillars.Day)
	}

	c.JSON(http.StatusOK, gin.H{
		"mine":     minePayload,
		"partner":  partnerPayload,
		"result":   result,
		"analysis": analysis,
	})
}

// handleWebChat relays a web-widget message through the same per-user
// pipeline the chat platforms use.
func (s *Server) handleWebChat(c *gin.Context) {
	var req struct {
		UserID  string `json:"userId" binding:"required"`
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId and message are required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), webDeadline)
	defer cancel()

	collector := &collectingResponder{}
	in := orchestrator.Inbound{Platform: models.PlatformWeb, UserID: req.UserID, Text: req.Message}
	if err := s.orch.Handle(ctx, in, collector); err != nil {
		log.Warn().Err(err).Str("user", req.UserID).Msg("web chat turn ended with error")
	}

	reply := collector.merged()
	c.JSON(http.StatusOK, gin.H{"text": reply.Text, "actions": reply.Actions})
}

// handleReport builds the integrated multipart report: birth fields,
// the free-text question, optional chat exports, and an optional face
// image that is size/type-validated and acknowledged only when consented.
func (s *Server) handleReport(c *gin.Context) {
	birth, err := reportBirth(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	question := c.PostForm("question")
	kakaoText := c.PostForm("kakaoText")
	aiChatText := c.PostForm("aiChatText")
	if len(question)+len(kakaoText)+len(aiChatText) > maxTextBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("text fields exceed %d bytes", maxTextBytes)})
		return
	}

	faceIncluded := false
	if file, err := c.FormFile("faceImage"); err == nil {
		if err := validateFaceImage(file); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if c.PostForm("faceConsent") != "true" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "faceImage requires faceConsent=true"})
			return
		}
		faceIncluded = true
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), webDeadline)
	defer cancel()

	chart, payload, err := s.chartFor(ctx, birth)
	if err != nil {
		abortWith(c, err)
		return
	}

	now := time.Now()
	wealth := fortune.Wealth(chart.Pillars, now.Year())
	daily := fortune.Daily(chart.Pillars, now)

	analysis := ""
	if s.chat != nil {
		combined := question
		if kakaoText != "" || aiChatText != "" {
			combined += "\n\n[대화 내역 요약 참고용]\n" + firstN(kakaoText, 2000) + "\n" + firstN(aiChatText, 2000)
		}
		tone := prompt.DetectTone(question)
		resp, err := s.chat.Complete(ctx, s.prompts.General(tone, combined, chart, nil, nil))
		if err != nil {
			abortWith(c, err)
			return
		}
		analysis = prompt.CorrectDayPillar(resp.Content, chart.Pillars.Day)
	}

	c.JSON(http.StatusOK, gin.H{
		"chart":        payload,
		"wealth":       wealth,
		"daily":        daily,
		"analysis":     analysis,
		"faceIncluded": faceIncluded,
	})
}

func reportBirth(c *gin.Context) (models.BirthInput, error) {
	atoi := func(field string) int {
		n, _ := strconv.Atoi(c.PostForm(field))
		return n
	}
	in := models.BirthInput{
		Year:   atoi("birthYear"),
		Month:  atoi("birthMonth"),
		Day:    atoi("birthDay"),
		Hour:   atoi("birthHour"),
		Minute: atoi("birthMinute"),
		Gender: parseGender(c.PostForm("gender")),
	}
	if err := in.Validate(); err != nil {
		return in, apperr.Wrap(apperr.KindValidation, "invalid birth fields", err)
	}
	return in, nil
}

func validateFaceImage(file *multipart.FileHeader) error {
	if file.Size > maxImageBytes {
		return apperr.Newf(apperr.KindValidation, "faceImage exceeds %d bytes", maxImageBytes)
	}
	ct := file.Header.Get("Content-Type")
	if !allowedImageTypes[ct] {
		return apperr.Newf(apperr.KindValidation, "unsupported image type %q", ct)
	}
	return nil
}

func firstN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// abortWith maps an error kind to the HTTP status of the JSON error.
func abortWith(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindPillarParse:
		status = http.StatusBadRequest
	case apperr.KindAuth:
		status = http.StatusForbidden
	case apperr.KindRateLimited, apperr.KindQuotaExceeded:
		status = http.StatusTooManyRequests
	case apperr.KindUpstreamTimeout:
		status = http.StatusGatewayTimeout
	case apperr.KindUpstreamUnavailable:
		status = http.StatusBadGateway
	case apperr.KindNotFound:
		status = http.StatusNotFound
	}
	log.Warn().Err(err).Int("status", status).Msg("web request failed")
	c.JSON(status, gin.H{"error": err.Error(), "kind": string(apperr.KindOf(err))})
}
