package server

import (
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sermohq/sermo/internal/whisper"
)

const (
	defaultMaxUploadMB = 50
	maxUploadCapMB     = 500
	copyChunkSize      = 1 << 20
)

var errPayloadTooLarge = errors.New("payload too large")

var allowedMIME = map[string]bool{
	"audio/wav":                true,
	"audio/x-wav":              true,
	"audio/mpeg":               true,
	"audio/mp3":                true,
	"audio/mp4":                true,
	"audio/x-m4a":              true,
	"audio/flac":               true,
	"audio/ogg":                true,
	"video/mp4":                true,
	"application/octet-stream": true,
}

var allowedExt = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".mp4":  true,
	".flac": true,
	".ogg":  true,
}

type transcribeResponse struct {
	Text                string   `json:"text"`
	Model               string   `json:"model"`
	DetectedLanguage    *string  `json:"detected_language"`
	LanguageProbability *float64 `json:"language_probability"`
	Seconds             float64  `json:"seconds"`
	Bytes               int64    `json:"bytes"`
}

type transcribeParams struct {
	model       string
	language    string
	beamSize    int
	vadFilter   bool
	maxUploadMB int
}

func (s *Service) handleTranscribe(c *gin.Context) {
	params, err := s.parseTranscribeParams(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tmpPath, written, err := s.receiveUpload(c, params)
	if err != nil {
		return // receiveUpload already wrote the response
	}
	defer func() {
		if err := os.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to remove upload", zap.String("path", tmpPath), zap.Error(err))
		}
	}()

	engine, err := s.cfg.Engines.Get(params.model)
	if err != nil {
		if errors.Is(err, whisper.ErrUnknownModel) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	result, err := engine.Transcribe(c.Request.Context(), tmpPath, whisper.Options{
		Language:  params.language,
		BeamSize:  params.beamSize,
		VADFilter: params.vadFilter,
	})
	if err != nil {
		if errors.Is(err, whisper.ErrBeamSize) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error("transcription failed", zap.String("model", params.model), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "transcription failed"})
		return
	}

	resp := transcribeResponse{
		Text:    result.Text,
		Model:   params.model,
		Seconds: math.Round(result.Seconds*1000) / 1000,
		Bytes:   written,
	}
	if result.DetectedLanguage != "" {
		lang := result.DetectedLanguage
		resp.DetectedLanguage = &lang
		if result.LanguageProbability > 0 {
			prob := result.LanguageProbability
			resp.LanguageProbability = &prob
		}
	}

	c.JSON(http.StatusOK, resp)
}

// receiveUpload streams the multipart file part to a temp file, enforcing
// media-type and size limits incrementally so an oversize body is rejected
// before it is fully buffered. On error it writes the HTTP response itself.
func (s *Service) receiveUpload(c *gin.Context, params transcribeParams) (string, int64, error) {
	reader, err := c.Request.MultipartReader()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected a multipart upload"})
		return "", 0, err
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed multipart body"})
			return "", 0, err
		}

		if part.FormName() != "file" || part.FileName() == "" {
			_ = part.Close()
			continue
		}

		return s.savePart(c, part, params)
	}

	err = errors.New("missing multipart field 'file'")
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	return "", 0, err
}

func (s *Service) savePart(c *gin.Context, part *multipart.Part, params transcribeParams) (string, int64, error) {
	defer part.Close()

	contentType := strings.TrimSpace(part.Header.Get("Content-Type"))
	if contentType != "" {
		if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
			contentType = parsed
		}
		if !allowedMIME[contentType] {
			err := fmt.Errorf("unsupported content-type: %s", contentType)
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error()})
			return "", 0, err
		}
	}

	ext := strings.ToLower(filepath.Ext(part.FileName()))
	if ext != "" && !allowedExt[ext] {
		err := fmt.Errorf("unsupported file extension: %s", ext)
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error()})
		return "", 0, err
	}

	suffix := ext
	if suffix == "" {
		suffix = ".bin"
	}
	tmp, err := os.CreateTemp("", "sermo-upload-*"+suffix)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store upload"})
		return "", 0, err
	}
	tmpPath := tmp.Name()

	maxBytes := int64(params.maxUploadMB) << 20
	written, copyErr := copyLimited(tmp, part, maxBytes)
	closeErr := tmp.Close()

	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmpPath)
		if errors.Is(copyErr, errPayloadTooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("file too large (>%dMB)", params.maxUploadMB)})
			return "", 0, copyErr
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store upload"})
		if copyErr != nil {
			return "", 0, copyErr
		}
		return "", 0, closeErr
	}

	return tmpPath, written, nil
}

// copyLimited copies src to dst in chunks, failing with errPayloadTooLarge as
// soon as the running total passes maxBytes.
func copyLimited(dst io.Writer, src io.Reader, maxBytes int64) (int64, error) {
	buf := make([]byte, copyChunkSize)
	var total int64

	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			total += int64(n)
			if total > maxBytes {
				return total, errPayloadTooLarge
			}
			if _, err := dst.Write(buf[:n]); err != nil {
				return total, err
			}
		}
		if errors.Is(readErr, io.EOF) {
			return total, nil
		}
		if readErr != nil {
			return total, readErr
		}
	}
}

func (s *Service) parseTranscribeParams(c *gin.Context) (transcribeParams, error) {
	params := transcribeParams{
		model:       c.DefaultQuery("model", whisper.DefaultModel),
		language:    c.Query("language"),
		beamSize:    whisper.DefaultBeamSize,
		vadFilter:   true,
		maxUploadMB: defaultMaxUploadMB,
	}
	if s.cfg.MaxUploadMB > 0 && s.cfg.MaxUploadMB <= maxUploadCapMB {
		params.maxUploadMB = s.cfg.MaxUploadMB
	}

	if raw := c.Query("beam_size"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return params, fmt.Errorf("invalid beam_size %q", raw)
		}
		if value < whisper.MinBeamSize || value > whisper.MaxBeamSize {
			return params, fmt.Errorf("beam_size must be between %d and %d", whisper.MinBeamSize, whisper.MaxBeamSize)
		}
		params.beamSize = value
	}

	if raw := c.Query("vad_filter"); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return params, fmt.Errorf("invalid vad_filter %q", raw)
		}
		params.vadFilter = value
	}

	if raw := c.Query("max_upload_mb"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return params, fmt.Errorf("invalid max_upload_mb %q", raw)
		}
		if value < 1 || value > maxUploadCapMB {
			return params, fmt.Errorf("max_upload_mb must be between 1 and %d", maxUploadCapMB)
		}
		params.maxUploadMB = value
	}

	return params, nil
}
