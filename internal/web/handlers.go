package web

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/hpungsan/fishscroll/internal/config"
	"github.com/hpungsan/fishscroll/internal/errors"
	"github.com/hpungsan/fishscroll/internal/fish"
	"github.com/hpungsan/fishscroll/internal/imaging"
	"github.com/hpungsan/fishscroll/internal/ops"
)

// MaxUploadBytes caps the identify form body.
const MaxUploadBytes = 16 << 20

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	pipeline ops.Pipeline
	cfg      *config.Config
	renderer *Renderer
}

// HandleList handles GET /history: newest entries first.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	result := ops.List(h.pipeline.History, ops.ListInput{
		Limit:  parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset: parseIntParam(r, "offset", 0),
	})

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "list", ListPageData{
		PageData:   h.renderer.page("History", "history"),
		Items:      result.Items,
		Pagination: result.Pagination,
		Limit:      h.pipeline.History.Limit(),
		Cleared:    parseIntParam(r, "cleared", -1),
	})
}

// HandleDetail handles GET /history/{id}: one entry rendered as a result card.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	entry, err := ops.Fetch(h.pipeline.History, ops.FetchInput{ID: r.PathValue("id")})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, entry)
		return
	}

	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData:      h.renderer.page(entry.Analysis.DisplayName(), "history"),
		Entry:         entry,
		RenderedHTML:  renderMarkdown(fish.Markdown(&entry.Analysis)),
		LowConfidence: entry.Analysis.NeedsAlternatives(),
	})
}

// HandleImage handles GET /history/{id}/image: the stored image bytes.
func (h *Handlers) HandleImage(w http.ResponseWriter, r *http.Request) {
	entry, err := ops.Fetch(h.pipeline.History, ops.FetchInput{ID: r.PathValue("id"), IncludeImage: true})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	uri, err := imaging.ParseDataURI(entry.Image)
	if err != nil {
		log.Printf("web: entry %s has an unreadable image: %v", entry.ID, err)
		http.NotFound(w, r)
		return
	}
	// Entries can hold a non-image payload if normalization fell back.
	mime := imaging.SniffMIME(uri.Data)
	if !strings.HasPrefix(mime, "image/") {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(uri.Data)))
	w.Header().Set("Cache-Control", "private, max-age=86400, immutable")
	_, _ = w.Write(uri.Data)
}

// HandleDelete handles DELETE /history/{id} and its form fallback
// POST /history/{id}/delete.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Remove(r.Context(), h.pipeline.History, r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if result.Warning != "" {
		log.Printf("web: remove %s: %s", result.ID, result.Warning)
	}

	if r.Header.Get("X-Partial") == "true" {
		w.Header().Set("X-Redirect", "/history")
		w.WriteHeader(http.StatusOK)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	http.Redirect(w, r, "/history", http.StatusSeeOther)
}

// HandleClear handles POST /history/clear. The form must carry confirm=true.
func (h *Handlers) HandleClear(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	result, err := ops.Clear(r.Context(), h.pipeline.History, r.FormValue("confirm") == "true")
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if result.Warning != "" {
		log.Printf("web: clear: %s", result.Warning)
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/history?cleared=%d", result.Cleared), http.StatusSeeOther)
}

// HandleIdentifyForm handles GET /identify.
func (h *Handlers) HandleIdentifyForm(w http.ResponseWriter, r *http.Request) {
	h.renderer.renderPage(w, r, "identify", h.identifyPage())
}

// HandleIdentify handles POST /identify: a multipart upload in field "image",
// or camera=true for a snapshot. Success redirects to the new entry.
func (h *Handlers) HandleIdentify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		h.identifyFailed(w, r, errors.NewInvalidRequest(fmt.Sprintf("invalid upload: %v", err)))
		return
	}

	input := ops.IdentifyInput{
		Camera: r.FormValue("camera") == "true",
		Facing: r.FormValue("facing"),
	}
	if !input.Camera {
		image, err := readUpload(r)
		if err != nil {
			h.identifyFailed(w, r, err)
			return
		}
		input.Image = image
	}

	result, err := ops.Identify(r.Context(), h.pipeline, input)
	if err != nil {
		h.identifyFailed(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}
	if result.EntryID == "" {
		// No history entry to link to; show the card in place.
		h.renderer.renderPage(w, r, "detail", DetailPageData{
			PageData:      h.renderer.page(result.Analysis.DisplayName(), "identify"),
			Entry:         &ops.FetchOutput{Analysis: *result.Analysis, ImageKB: result.ImageKB},
			RenderedHTML:  renderMarkdown(fish.Markdown(result.Analysis)),
			LowConfidence: result.Analysis.NeedsAlternatives(),
		})
		return
	}
	http.Redirect(w, r, "/history/"+result.EntryID, http.StatusSeeOther)
}

// identifyFailed re-renders the form with the failure, keeping any raw
// backend response visible.
func (h *Handlers) identifyFailed(w http.ResponseWriter, r *http.Request, err error) {
	if wantsJSON(r) || isPartial(r) {
		h.renderer.renderError(w, r, err)
		return
	}

	fErr, ok := errors.As(err)
	if !ok {
		log.Printf("web: identify: %v", err)
		fErr = errors.NewInternal(nil)
	}

	data := h.identifyPage()
	data.Error = fErr.Message
	data.ErrorCode = string(fErr.Code)
	data.RawResponse = errors.RawResponse(err)
	h.renderer.renderPageStatus(w, r, fErr.Status, "identify", data)
}

func (h *Handlers) identifyPage() IdentifyPageData {
	data := IdentifyPageData{PageData: h.renderer.page("Identify", "identify")}
	if h.cfg != nil {
		data.MaxDimension = h.cfg.MaxDimension
	}
	if h.pipeline.Capture != nil {
		data.CameraReady = h.pipeline.Capture.HasCamera()
		data.Facing = string(h.pipeline.Capture.Facing())
	}
	return data
}

// readUpload returns the "image" form file as a data URI.
func readUpload(r *http.Request) (string, error) {
	file, _, err := r.FormFile("image")
	if err != nil {
		return "", errors.NewMissingInput("choose an image to upload")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", errors.NewInvalidRequest(fmt.Sprintf("cannot read upload: %v", err))
	}
	if len(data) == 0 {
		return "", errors.NewMissingInput("uploaded file is empty")
	}
	return imaging.EncodeDataURI("", data), nil
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
