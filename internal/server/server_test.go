package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sermohq/sermo/internal/whisper"
)

type stubEngine struct {
	mu       sync.Mutex
	result   whisper.Result
	err      error
	calls    int
	lastPath string
	lastOpts whisper.Options
}

func (e *stubEngine) Transcribe(_ context.Context, audioPath string, opts whisper.Options) (whisper.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	e.lastPath = audioPath
	e.lastOpts = opts
	return e.result, e.err
}

type stubSource struct {
	engine    *stubEngine
	getCalls  int
	lastModel string
}

func (s *stubSource) Get(model string) (Transcriber, error) {
	s.getCalls++
	s.lastModel = model
	if _, err := whisper.ValidateModel(model); err != nil {
		return nil, err
	}
	return s.engine, nil
}

func newTestService(engine *stubEngine) (*Service, *stubSource) {
	source := &stubSource{engine: engine}
	return New(Config{Engines: source}), source
}

func multipartBody(t *testing.T, fieldName, fileName, contentType string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := new(bytes.Buffer)
	form := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="`+fieldName+`"; filename="`+fileName+`"`)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}

	part, err := form.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, form.Close())

	return body, form.FormDataContentType()
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(&stubEngine{})

	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestTranscribeHappyPath(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{result: whisper.Result{
		Text:                "hello world",
		DetectedLanguage:    "en",
		LanguageProbability: 0.9,
		Seconds:             1.234,
	}}
	svc, source := newTestService(engine)

	body, contentType := multipartBody(t, "file", "a.wav", "audio/wav", []byte("fake wav bytes"))
	req := httptest.NewRequest(http.MethodPost, "/v1/transcribe?model=small&beam_size=5&vad_filter=true", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp transcribeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "hello world", resp.Text)
	require.Equal(t, "small", resp.Model)
	require.NotNil(t, resp.DetectedLanguage)
	require.Equal(t, "en", *resp.DetectedLanguage)
	require.NotNil(t, resp.LanguageProbability)
	require.InDelta(t, 0.9, *resp.LanguageProbability, 1e-9)
	require.Greater(t, resp.Bytes, int64(0))
	require.InDelta(t, 1.234, resp.Seconds, 1e-9)

	require.Equal(t, "small", source.lastModel)
	require.Equal(t, 1, engine.calls)
	require.Equal(t, 5, engine.lastOpts.BeamSize)
	require.True(t, engine.lastOpts.VADFilter)
}

func TestTranscribeOmitsLanguageWhenUndetected(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{result: whisper.Result{Text: "pinned language", Seconds: 0.5}}
	svc, _ := newTestService(engine)

	body, contentType := multipartBody(t, "file", "a.wav", "audio/wav", []byte("bytes"))
	req := httptest.NewRequest(http.MethodPost, "/v1/transcribe?language=en", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"detected_language":null`)
	require.Contains(t, rec.Body.String(), `"language_probability":null`)
	require.Equal(t, "en", engine.lastOpts.Language)
}

func TestTranscribeRejectsUnsupportedContentType(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{}
	svc, source := newTestService(engine)

	body, contentType := multipartBody(t, "file", "a.pdf", "application/pdf", []byte("%PDF-1.4"))
	req := httptest.NewRequest(http.MethodPost, "/v1/transcribe", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	require.Equal(t, 0, source.getCalls)
	require.Equal(t, 0, engine.calls)
}

func TestTranscribeRejectsUnsupportedExtension(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{}
	svc, _ := newTestService(engine)

	body, contentType := multipartBody(t, "file", "a.txt", "", []byte("hello"))
	req := httptest.NewRequest(http.MethodPost, "/v1/transcribe", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	require.Equal(t, 0, engine.calls)
}

func TestTranscribeRejectsOversizePayload(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{}
	svc, source := newTestService(engine)

	payload := make([]byte, 1<<20+10)
	body, contentType := multipartBody(t, "file", "a.wav", "audio/wav", payload)
	req := httptest.NewRequest(http.MethodPost, "/v1/transcribe?max_upload_mb=1", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.Equal(t, 0, source.getCalls)
	require.Equal(t, 0, engine.calls)
}

func TestTranscribeUsesConfiguredUploadLimit(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{}
	source := &stubSource{engine: engine}
	svc := New(Config{Engines: source, MaxUploadMB: 1})

	payload := make([]byte, 1<<20+10)
	body, contentType := multipartBody(t, "file", "a.wav", "audio/wav", payload)
	req := httptest.NewRequest(http.MethodPost, "/v1/transcribe", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.Equal(t, 0, engine.calls)
}

func TestTranscribeRejectsMissingFileField(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(&stubEngine{})

	body := new(bytes.Buffer)
	form := multipart.NewWriter(body)
	require.NoError(t, form.WriteField("note", "no file here"))
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/transcribe", body)
	req.Header.Set("Content-Type", form.FormDataContentType())

	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "file")
}

func TestTranscribeRejectsBadParams(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query string
	}{
		{"beam size too large", "beam_size=11"},
		{"beam size zero", "beam_size=0"},
		{"beam size not a number", "beam_size=wide"},
		{"vad filter not a bool", "vad_filter=sometimes"},
		{"max upload too large", "max_upload_mb=9000"},
		{"max upload zero", "max_upload_mb=0"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			engine := &stubEngine{}
			svc, _ := newTestService(engine)

			body, contentType := multipartBody(t, "file", "a.wav", "audio/wav", []byte("bytes"))
			req := httptest.NewRequest(http.MethodPost, "/v1/transcribe?"+tc.query, body)
			req.Header.Set("Content-Type", contentType)

			rec := httptest.NewRecorder()
			svc.Handler().ServeHTTP(rec, req)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, 0, engine.calls)
		})
	}
}

func TestTranscribeRejectsUnknownModel(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{}
	svc, _ := newTestService(engine)

	body, contentType := multipartBody(t, "file", "a.wav", "audio/wav", []byte("bytes"))
	req := httptest.NewRequest(http.MethodPost, "/v1/transcribe?model=super-huge", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, 0, engine.calls)
}
