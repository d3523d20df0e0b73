package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/loqalabs/loqa-scribe/internal/config"
	"github.com/loqalabs/loqa-scribe/internal/control"
	"github.com/loqalabs/loqa-scribe/internal/eventstore"
	"github.com/loqalabs/loqa-scribe/internal/stt"
)

//go:embed templates/index.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

const uploadField = "audio"

// History lists recent recognition requests.
type History interface {
	ListRecent(ctx context.Context, limit int) ([]eventstore.RequestRecord, error)
}

// Handler serves the transcription control over HTTP.
type Handler struct {
	title    string
	control  *control.Control
	history  History
	upload   config.UploadConfig
	logger   *slog.Logger
	upgrader websocket.Upgrader

	// mu also orders Select and Activate against upload cleanup.
	mu        sync.Mutex
	uploadDir string
	ownsDir   bool
	selected  string // upload backing the selected file
	held      string // upload read by the request in flight
}

func NewHandler(title string, ctl *control.Control, history History, upload config.UploadConfig, log *slog.Logger) *Handler {
	return &Handler{
		title:   title,
		control: ctl,
		history: history,
		upload:  upload,
		logger:  log.With(slog.String("component", "web")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Register mounts the control routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.HandleFunc("GET /api/view", h.handleView)
	mux.HandleFunc("POST /api/file", h.handleUpload)
	mux.HandleFunc("POST /api/recognize", h.handleRecognize)
	mux.HandleFunc("GET /api/history", h.handleHistory)
	mux.HandleFunc("GET /ws", h.handleWebsocket)
}

// Close removes uploaded files.
func (h *Handler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, path := range []string{h.selected, h.held} {
		if path != "" {
			_ = os.Remove(path)
		}
	}
	h.selected, h.held = "", ""
	if h.ownsDir && h.uploadDir != "" {
		_ = os.RemoveAll(h.uploadDir)
	}
}

type pageData struct {
	Title string
	View  control.View
}

func (h *Handler) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := pageData{Title: h.title, View: h.control.View()}
	if err := pageTemplate.Execute(w, data); err != nil {
		h.logger.Error("render page failed", slogError(err))
	}
}

func (h *Handler) handleView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.control.View())
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.upload.MaxBytes+1<<20)
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "audio file exceeds "+strconv.FormatInt(h.upload.MaxBytes, 10)+" bytes")
			return
		}
		writeError(w, http.StatusBadRequest, "missing audio file")
		return
	}
	defer file.Close()

	if header.Size > h.upload.MaxBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "audio file exceeds "+strconv.FormatInt(h.upload.MaxBytes, 10)+" bytes")
		return
	}

	path, size, err := h.store(file)
	if err != nil {
		h.logger.Error("store upload failed", slogError(err))
		writeError(w, http.StatusInternalServerError, "could not store audio file")
		return
	}
	if _, err := stt.OpenAudio(path); err != nil {
		_ = os.Remove(path)
		if errors.Is(err, stt.ErrNotWav) {
			writeError(w, http.StatusUnsupportedMediaType, "only wav files are supported")
			return
		}
		writeError(w, http.StatusBadRequest, "could not read audio file")
		return
	}

	h.selectUpload(control.File{Name: filepath.Base(header.Filename), Path: path, Size: size})
	h.logger.Info("audio file selected", slog.String("file", header.Filename), slog.Int64("size", size))
	writeJSON(w, http.StatusOK, h.control.View())
}

func (h *Handler) store(src io.Reader) (string, int64, error) {
	dir, err := h.ensureUploadDir()
	if err != nil {
		return "", 0, err
	}
	dst, err := os.CreateTemp(dir, "upload_*.wav")
	if err != nil {
		return "", 0, fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()

	size, err := io.Copy(dst, src)
	if err != nil {
		_ = os.Remove(dst.Name())
		return "", 0, fmt.Errorf("write upload file: %w", err)
	}
	return dst.Name(), size, nil
}

func (h *Handler) ensureUploadDir() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.uploadDir != "" {
		return h.uploadDir, nil
	}
	if h.upload.Directory != "" {
		if err := os.MkdirAll(h.upload.Directory, 0o755); err != nil {
			return "", fmt.Errorf("create upload dir: %w", err)
		}
		h.uploadDir = h.upload.Directory
		return h.uploadDir, nil
	}
	dir, err := os.MkdirTemp("", "loqa-scribe-uploads-")
	if err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	h.uploadDir = dir
	h.ownsDir = true
	return dir, nil
}

// selectUpload makes f the selected file and removes the upload it replaces,
// unless the request in flight is still reading it.
func (h *Handler) selectUpload(f control.File) {
	h.mu.Lock()
	defer h.mu.Unlock()
	previous := h.selected
	h.selected = f.Path
	h.control.Select(f)
	if previous != "" && previous != f.Path && previous != h.held {
		_ = os.Remove(previous)
	}
}

// release drops the hold on an upload once its request finishes, removing it
// when it is no longer selected.
func (h *Handler) release(done <-chan struct{}) {
	<-done
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.held != "" && h.held != h.selected {
		_ = os.Remove(h.held)
	}
	h.held = ""
}

func (h *Handler) handleRecognize(w http.ResponseWriter, _ *http.Request) {
	h.mu.Lock()
	done, err := h.control.Activate()
	if err == nil {
		h.held = h.selected
		go h.release(done)
	}
	h.mu.Unlock()

	switch {
	case errors.Is(err, control.ErrNoFile):
		writeError(w, http.StatusBadRequest, control.NoFileAlert)
	case errors.Is(err, control.ErrInFlight):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusAccepted, h.control.View())
	}
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusOK, []eventstore.RequestRecord{})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := h.history.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("list history failed", slogError(err))
		writeError(w, http.StatusInternalServerError, "could not list history")
		return
	}
	if records == nil {
		records = []eventstore.RequestRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
