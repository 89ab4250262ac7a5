package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"orderdesk/internal"
	"orderdesk/internal/desk"
	"orderdesk/internal/extract"
	"orderdesk/internal/queue"
	"orderdesk/internal/session"
)

type queueResponse struct {
	DayKey   string                  `json:"day_key"`
	Items    []internal.QueueItem    `json:"items"`
	Exported bool                    `json:"exported"`
	Pending  *queue.PendingDuplicate `json:"pending,omitempty"`
}

type submitRequest struct {
	Text     string `json:"text"`
	Filename string `json:"filename"`
}

type rollbackRequest struct {
	Confirm bool `json:"confirm"`
}

func (s *Server) handleQueue(w http.ResponseWriter, _ *http.Request) {
	state := s.desk.State()
	respondJSON(w, http.StatusOK, queueResponse{
		DayKey:   state.DayKey,
		Items:    state.Items,
		Exported: s.desk.Exported(),
		Pending:  s.desk.Pending(),
	})
}

func (s *Server) handleClearQueue(w http.ResponseWriter, r *http.Request) {
	s.desk.Clear(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQueueItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.desk.Get(chi.URLParam(r, "orderID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	if err := s.desk.Remove(chi.URLParam(r, "orderID")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQueueCSV(w http.ResponseWriter, r *http.Request) {
	if len(s.desk.State().Items) == 0 {
		respondError(w, r, desk.ErrQueueEmpty)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="queue.csv"`)
	if err := s.desk.QueueCSV(w); err != nil {
		respondError(w, r, err)
	}
}

func (s *Server) handleSubmitText(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	s.submit(w, r, req.Text, req.Filename)
}

func (s *Server) handleSubmitUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, r, errors.Wrap(errBadRequest, err.Error()))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, errors.Wrap(errBadRequest, "missing file field"))
		return
	}
	defer file.Close()

	blob, err := io.ReadAll(file)
	if err != nil {
		respondError(w, r, errors.Wrap(errBadRequest, err.Error()))
		return
	}
	text, err := extract.DocumentText(header.Filename, blob)
	if err != nil {
		respondError(w, r, errors.Wrap(errBadRequest, err.Error()))
		return
	}
	s.submit(w, r, text, header.Filename)
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request, text, filename string) {
	out, err := s.desk.Submit(r.Context(), text, filename)
	if err != nil {
		respondError(w, r, err)
		return
	}
	status := http.StatusCreated
	if out.Result.Pending != nil {
		status = http.StatusOK
	}
	respondJSON(w, status, out)
}

func (s *Server) handleReopen(w http.ResponseWriter, r *http.Request) {
	order, err := s.desk.Reopen(chi.URLParam(r, "orderID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (s *Server) handleOrderXLSX(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	wb, err := s.desk.OrderWorkbook(orderID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer wb.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, orderID))
	if _, err := wb.WriteTo(w); err != nil {
		logRequestError(r, err, "write workbook")
	}
}

func (s *Server) handleOrderCSV(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	if _, err := s.desk.Get(orderID); err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, orderID))
	if err := s.desk.OrderCSV(w, orderID); err != nil {
		logRequestError(r, err, "write csv")
	}
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	pending := s.desk.Pending()
	if pending == nil {
		respondError(w, r, queue.ErrNoPending)
		return
	}
	respondJSON(w, http.StatusOK, pending)
}

func (s *Server) handleConfirmPending(w http.ResponseWriter, r *http.Request) {
	item, err := s.desk.ConfirmPending()
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

func (s *Server) handleCancelPending(w http.ResponseWriter, r *http.Request) {
	if err := s.desk.CancelPending(); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTinting(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.desk.TintingList())
}

func (s *Server) handleGetView(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.desk.View())
}

func (s *Server) handlePutView(w http.ResponseWriter, r *http.Request) {
	var view session.ViewState
	if err := decodeJSON(r, &view); err != nil {
		respondError(w, r, err)
		return
	}
	s.desk.SetView(view)
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	res, err := s.desk.ExportQueue(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	var req rollbackRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	msg, err := s.desk.Rollback(r.Context(), req.Confirm)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func (s *Server) handleExportHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, r, errors.Wrap(errBadRequest, "limit must be a positive number"))
			return
		}
		limit = n
	}
	recs, err := s.desk.Exports(r.Context(), limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if recs == nil {
		recs = []internal.ExportRecord{}
	}
	respondJSON(w, http.StatusOK, recs)
}

func (s *Server) handleInFlight(w http.ResponseWriter, r *http.Request) {
	inFlight := s.desk.InFlight()
	if inFlight == nil {
		respondError(w, r, desk.ErrNoInFlight)
		return
	}
	respondJSON(w, http.StatusOK, inFlight)
}

func (s *Server) handleRetryInFlight(w http.ResponseWriter, r *http.Request) {
	out, err := s.desk.RetryInFlight(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleDiscardInFlight(w http.ResponseWriter, r *http.Request) {
	if err := s.desk.DiscardInFlight(); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
