package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/sqlassist/sqlassist/internal/assistant"
	"github.com/sqlassist/sqlassist/internal/auth"
	"github.com/sqlassist/sqlassist/internal/schema"
)

type generateRequest struct {
	Text string `json:"text"`
	Mode string `json:"mode,omitempty"`
}

type textRequest struct {
	Text string `json:"text"`
}

type queryRequest struct {
	Query string `json:"query"`
}

func handleGenerate(deps Dependencies, sessions sessionResolver, w http.ResponseWriter, r *http.Request) {
	id, ok := beginSession(sessions, auth.RoleAssistantUser, w, r)
	if !ok {
		return
	}
	var req generateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "TEXT_REQUIRED", "text is required", false, nil)
		return
	}

	resp, err := deps.Assistant.Generate(r.Context(), id, assistant.GenerateRequest{Text: req.Text, Mode: req.Mode})
	if err != nil {
		if errors.Is(err, assistant.ErrUnknownMode) {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_MODE", err.Error(), false, map[string]any{
				"allowed": []string{assistant.ModeRules, assistant.ModeOracle},
			})
			return
		}
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func handleHistory(deps Dependencies, sessions sessionResolver, w http.ResponseWriter, r *http.Request) {
	id, ok := beginSession(sessions, auth.RoleAssistantUser, w, r)
	if !ok {
		return
	}
	history, err := deps.Assistant.History(r.Context(), id)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

func handleClearHistory(deps Dependencies, sessions sessionResolver, w http.ResponseWriter, r *http.Request) {
	id, ok := beginSession(sessions, auth.RoleAssistantUser, w, r)
	if !ok {
		return
	}
	if err := deps.Assistant.ClearHistory(r.Context(), id); err != nil {
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func handleSchemaUpload(deps Dependencies, sessions sessionResolver, w http.ResponseWriter, r *http.Request) {
	id, ok := beginSession(sessions, auth.RoleSchemaWriter, w, r)
	if !ok {
		return
	}

	maxBytes := sessions.maxUpload
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(r.Context(), w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "uploaded file exceeds the size limit", false, map[string]any{"max_bytes": maxBytes})
			return
		}
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_MULTIPART", "invalid multipart upload", false, map[string]any{"details": err.Error()})
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "FILE_REQUIRED", "no file part named \"file\"", false, nil)
		return
	}
	defer func() { _ = file.Close() }()
	if strings.TrimSpace(header.Filename) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "FILE_REQUIRED", "no file selected", false, nil)
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "FILE_UNREADABLE", "failed to read uploaded file", false, map[string]any{"details": err.Error()})
		return
	}

	result, err := deps.Assistant.UploadSchema(r.Context(), id, header.Filename, content)
	if err != nil {
		var unsupported *schema.UnsupportedFormatError
		if errors.As(err, &unsupported) {
			writeError(r.Context(), w, http.StatusBadRequest, "UNSUPPORTED_FORMAT", "unsupported file type", false, map[string]any{
				"extension": unsupported.Extension,
				"allowed":   []string{".sql", ".json", ".txt", ".csv", ".parquet"},
			})
			return
		}
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func handleSchemaText(deps Dependencies, sessions sessionResolver, w http.ResponseWriter, r *http.Request) {
	id, ok := beginSession(sessions, auth.RoleSchemaWriter, w, r)
	if !ok {
		return
	}
	var req textRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "TEXT_REQUIRED", "text is required", false, nil)
		return
	}
	display, err := deps.Assistant.SchemaFromText(r.Context(), id, req.Text)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, display)
}

func handleClearSchema(deps Dependencies, sessions sessionResolver, w http.ResponseWriter, r *http.Request) {
	id, ok := beginSession(sessions, auth.RoleSchemaWriter, w, r)
	if !ok {
		return
	}
	if err := deps.Assistant.ClearSchema(r.Context(), id); err != nil {
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func handleCorrect(deps Dependencies, sessions sessionResolver, w http.ResponseWriter, r *http.Request) {
	id, ok := beginSession(sessions, auth.RoleAssistantUser, w, r)
	if !ok {
		return
	}
	var req queryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := deps.Assistant.Correct(r.Context(), id, req.Query)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func handleExtractFields(deps Dependencies, sessions sessionResolver, w http.ResponseWriter, r *http.Request) {
	if _, ok := beginSession(sessions, auth.RoleAssistantUser, w, r); !ok {
		return
	}
	var req queryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fields": deps.Assistant.ExtractFields(req.Query)})
}

// beginSession checks role and resolves the session key, writing the error
// response itself when it fails.
func beginSession(sessions sessionResolver, role string, w http.ResponseWriter, r *http.Request) (string, bool) {
	if err := requireRole(r, role); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return "", false
	}
	id, err := sessions.resolve(w, r)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_SESSION", err.Error(), false, nil)
		return "", false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid request body", false, map[string]any{"details": err.Error()})
		return false
	}
	return true
}

func writeSessionError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(r.Context(), w, http.StatusInternalServerError, "SESSION_STORE_FAILED", "failed to access session state", true, map[string]any{"details": err.Error()})
}
