package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/taskdeck/apiserver/internal/services"
	"github.com/taskdeck/apiserver/types"
)

const (
	maxMultipartMemory = 32 << 20
	maxAttachmentBytes = 32 << 20
	formFieldFile      = "file"
)

// NoteHandler provides HTTP handlers for notes and their attachments.
type NoteHandler struct {
	noteService *services.NoteService
	userService *services.UserService
}

// NewNoteHandler constructs a handler with the provided services.
func NewNoteHandler(noteService *services.NoteService, userService *services.UserService) *NoteHandler {
	return &NoteHandler{
		noteService: noteService,
		userService: userService,
	}
}

// NoteRouter registers note routes on the given router. All routes
// require authentication.
func NoteRouter(r chi.Router, handler *NoteHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)
	r.Get("/", handler.ListNotes)
	r.Post("/", handler.CreateNote)
	r.Route("/{noteID}", func(r chi.Router) {
		r.Get("/", handler.GetNote)
		r.Put("/", handler.UpdateNote)
		r.Delete("/", handler.DeleteNote)
		r.Put("/attachment", handler.UploadAttachment)
		r.Get("/attachment", handler.DownloadAttachment)
		r.Delete("/attachment", handler.DeleteAttachment)
	})
}

func (h *NoteHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	actor, err := currentUser(r, h.userService)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	notes, err := h.noteService.List(r.Context(), actor)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list notes")
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (h *NoteHandler) GetNote(w http.ResponseWriter, r *http.Request) {
	actor, err := currentUser(r, h.userService)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parseIDParam(r, "noteID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	note, err := h.noteService.Get(r.Context(), actor, id)
	if err != nil {
		writeResourceError(w, err, "note")
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (h *NoteHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	actor, err := currentUser(r, h.userService)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req NoteCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)
	if req.Title == "" || req.Content == "" {
		writeError(w, http.StatusBadRequest, "title and content are required")
		return
	}

	note, err := h.noteService.Create(r.Context(), actor, types.Note{
		Title:   req.Title,
		Content: req.Content,
		Tags:    req.Tags,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create note")
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (h *NoteHandler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	actor, err := currentUser(r, h.userService)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parseIDParam(r, "noteID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req NoteUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	patch := services.NotePatch{
		Title:   req.Title,
		Content: req.Content,
	}
	if req.Tags != nil {
		tags := []string(*req.Tags)
		patch.Tags = &tags
	}

	note, err := h.noteService.Update(r.Context(), actor, id, patch)
	if err != nil {
		writeResourceError(w, err, "note")
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (h *NoteHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	actor, err := currentUser(r, h.userService)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parseIDParam(r, "noteID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.noteService.Delete(r.Context(), actor, id); err != nil {
		writeResourceError(w, err, "note")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadAttachment stores the multipart "file" field as the note's
// attachment, replacing any previous one.
func (h *NoteHandler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	actor, err := currentUser(r, h.userService)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parseIDParam(r, "noteID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile(formFieldFile)
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if header.Size > maxAttachmentBytes {
		writeError(w, http.StatusBadRequest, "uploaded file too large")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	note, err := h.noteService.Attach(r.Context(), actor, id, types.Attachment{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
	}, file)
	if err != nil {
		writeResourceError(w, err, "note")
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DownloadAttachment streams the note's attachment back to the client.
func (h *NoteHandler) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	actor, err := currentUser(r, h.userService)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parseIDParam(r, "noteID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reader, attachment, err := h.noteService.OpenAttachment(r.Context(), actor, id)
	if err != nil {
		writeResourceError(w, err, "attachment")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", attachment.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+attachment.Filename+`"`)
	_, _ = io.Copy(w, reader)
}

func (h *NoteHandler) DeleteAttachment(w http.ResponseWriter, r *http.Request) {
	actor, err := currentUser(r, h.userService)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parseIDParam(r, "noteID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	note, err := h.noteService.DeleteAttachment(r.Context(), actor, id)
	if err != nil {
		writeResourceError(w, err, "attachment")
		return
	}
	writeJSON(w, http.StatusOK, note)
}

type NoteCreateRequest struct {
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Tags    TagList `json:"tags"`
}

type NoteUpdateRequest struct {
	Title   *string  `json:"title"`
	Content *string  `json:"content"`
	Tags    *TagList `json:"tags"`
}

// TagList accepts either a JSON array of strings or a single
// comma-separated string, and normalizes both forms the same way.
type TagList []string

func (t *TagList) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*t = normalizeTags([]string{asString})
		return nil
	}
	var asSlice []string
	if err := json.Unmarshal(data, &asSlice); err != nil {
		return err
	}
	*t = normalizeTags(asSlice)
	return nil
}
