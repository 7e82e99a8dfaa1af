package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/verbatim/pkg/core"
	"github.com/aretw0/verbatim/pkg/textdiff"
)

type checkSummary struct {
	ID          string           `json:"id"`
	Status      core.CheckStatus `json:"status"`
	Similarity  *float64         `json:"similarity"`
	CreatedAt   time.Time        `json:"createdAt"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
}

type reportView struct {
	ID           string        `json:"id"`
	OriginalName string        `json:"originalName"`
	CreatedAt    time.Time     `json:"createdAt"`
	CloudLink    *string       `json:"cloudLink"`
	AddedToCloud bool          `json:"addedToCloud"`
	Pages        any           `json:"pages,omitempty"`
	LatestCheck  *checkSummary `json:"latestCheck,omitempty"`
}

func newReportView(doc core.Document) reportView {
	v := reportView{
		ID:           doc.ID,
		OriginalName: doc.Name,
		CreatedAt:    doc.CreatedAt,
		AddedToCloud: doc.AddedToCloud(),
		Pages:        doc.Metadata[core.MetaPages],
	}
	if link := doc.CloudLink(); link != "" {
		v.CloudLink = &link
	}
	return v
}

func newCheckSummary(c core.Check) *checkSummary {
	return &checkSummary{
		ID:          c.ID,
		Status:      c.Status,
		Similarity:  c.Similarity,
		CreatedAt:   c.CreatedAt,
		CompletedAt: c.CompletedAt,
	}
}

func (s *Server) listReports(w http.ResponseWriter, r *http.Request) error {
	docs, err := s.svc.ListDocuments(r.Context())
	if err != nil {
		return err
	}

	reports := make([]reportView, 0, len(docs))
	cloud := 0
	for _, doc := range docs {
		v := newReportView(doc)
		if latest, err := s.svc.LatestCheck(r.Context(), doc.ID); err == nil {
			v.LatestCheck = newCheckSummary(latest)
		}
		if v.AddedToCloud {
			cloud++
		}
		reports = append(reports, v)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"reports":           reports,
		"cloudReportsCount": cloud,
	})
	return nil
}

type uploadResult struct {
	ReportID string           `json:"reportId,omitempty"`
	CheckID  string           `json:"checkId,omitempty"`
	Status   core.CheckStatus `json:"status,omitempty"`
	FileName string           `json:"fileName"`
	Message  string           `json:"message,omitempty"`
}

func (s *Server) uploadReports(w http.ResponseWriter, r *http.Request) error {
	if !s.limiter.Allow() {
		return httpError(http.StatusTooManyRequests, "too many uploads, retry later", nil)
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return httpError(http.StatusBadRequest, "expected multipart form data", err)
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	files = append(files, r.MultipartForm.File["file"]...)
	if len(files) == 0 {
		return httpError(http.StatusBadRequest, "no file in request", nil)
	}

	if len(files) == 1 {
		res, err := s.ingestUpload(r, files[0])
		s.metrics.upload(err == nil)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusAccepted, res)
		return nil
	}

	items := make([]uploadResult, 0, len(files))
	accepted := 0
	for _, fh := range files {
		res, err := s.ingestUpload(r, fh)
		s.metrics.upload(err == nil)
		if err != nil {
			_, msg := s.mapError(err)
			res = uploadResult{FileName: fh.Filename, Message: msg}
		} else {
			accepted++
		}
		items = append(items, res)
	}
	status := http.StatusAccepted
	if accepted == 0 {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]any{"items": items})
	return nil
}

func isPDF(fh *multipart.FileHeader) bool {
	ct := fh.Header.Get("Content-Type")
	if ct == "application/pdf" {
		return true
	}
	return (ct == "" || ct == "application/octet-stream") && strings.EqualFold(filepath.Ext(fh.Filename), ".pdf")
}

func (s *Server) ingestUpload(r *http.Request, fh *multipart.FileHeader) (uploadResult, error) {
	if !isPDF(fh) {
		return uploadResult{}, httpError(http.StatusBadRequest, "only PDF files are supported", nil)
	}
	f, err := fh.Open()
	if err != nil {
		return uploadResult{}, err
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		return uploadResult{}, err
	}

	doc, err := s.svc.IngestPDF(r.Context(), fh.Filename, data, nil)
	if err != nil {
		return uploadResult{}, err
	}

	var check core.Check
	if s.queue != nil {
		check, err = s.queue.Enqueue(r.Context(), doc.ID)
	} else {
		check, err = s.svc.RunCheck(r.Context(), doc.ID)
	}
	if err != nil {
		return uploadResult{}, fmt.Errorf("schedule check: %w", err)
	}
	s.logger.Info("report uploaded", "report", doc.ID, "name", fh.Filename, "check", check.ID)

	return uploadResult{
		ReportID: doc.ID,
		CheckID:  check.ID,
		Status:   check.Status,
		FileName: fh.Filename,
	}, nil
}

func (s *Server) deleteAll(w http.ResponseWriter, r *http.Request) error {
	n, err := s.svc.DeleteAll(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
	return nil
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) error {
	doc, err := s.svc.GetDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	list, err := s.svc.ListChecks(r.Context(), doc.ID)
	if err != nil && !errors.Is(err, core.ErrUnsupported) {
		return err
	}
	checks := make([]*checkSummary, 0, len(list))
	for _, c := range list {
		checks = append(checks, newCheckSummary(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"report": newReportView(doc),
		"checks": checks,
	})
	return nil
}

func (s *Server) deleteReport(w http.ResponseWriter, r *http.Request) error {
	id := r.PathValue("id")
	if err := s.svc.DeleteDocument(r.Context(), id); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"report": map[string]string{"id": id}})
	return nil
}

func (s *Server) markCloud(w http.ResponseWriter, r *http.Request) error {
	var body struct {
		CloudLink *string `json:"cloudLink"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&body); err != nil || body.CloudLink == nil {
		return httpError(http.StatusBadRequest, "cloudLink is required", err)
	}
	doc, err := s.svc.MarkCloud(r.Context(), r.PathValue("id"), *body.CloudLink)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"report": newReportView(doc)})
	return nil
}

// cloudLinkBody decodes {"cloudLink": "..."} and normalizes the link.
func cloudLinkBody(r *http.Request) (string, error) {
	var body struct {
		CloudLink *string `json:"cloudLink"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&body); err != nil || body.CloudLink == nil {
		return "", httpError(http.StatusBadRequest, "cloudLink is required", err)
	}
	return core.NormalizeCloudLink(*body.CloudLink)
}

// cloudFailure keeps user-fixable cloud problems as 400 and reports the rest
// as an upstream failure.
func cloudFailure(err error, msg string) error {
	if core.IsCloudScanError(err) || errors.Is(err, core.ErrUnsupported) {
		return err
	}
	return httpError(http.StatusBadGateway, msg, err)
}

func (s *Server) cloudScan(w http.ResponseWriter, r *http.Request) error {
	link, err := cloudLinkBody(r)
	if err != nil {
		return err
	}
	items, err := s.svc.InspectCloud(r.Context(), link)
	if err != nil {
		return cloudFailure(err, "failed to scan cloud storage")
	}
	writeJSON(w, http.StatusOK, map[string]any{"cloudLink": link, "resources": items})
	return nil
}

func (s *Server) cloudSync(w http.ResponseWriter, r *http.Request) error {
	link, err := cloudLinkBody(r)
	if err != nil {
		return err
	}
	result, err := s.svc.SyncCloud(r.Context(), link)
	if err != nil {
		return cloudFailure(err, "failed to sync cloud storage")
	}
	writeJSON(w, http.StatusOK, map[string]any{"cloudLink": link, "result": result})
	return nil
}

func (s *Server) relatedReports(w http.ResponseWriter, r *http.Request) error {
	docs, err := s.svc.Related(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	reports := make([]reportView, 0, len(docs))
	for _, doc := range docs {
		reports = append(reports, newReportView(doc))
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
	return nil
}

func (s *Server) originalReport(w http.ResponseWriter, r *http.Request) error {
	data, err := s.svc.Original(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	return nil
}

func (s *Server) createCheck(w http.ResponseWriter, r *http.Request) error {
	id := r.PathValue("id")
	var (
		check core.Check
		err   error
	)
	if s.queue != nil {
		check, err = s.queue.Enqueue(r.Context(), id)
	} else {
		check, err = s.svc.RunCheck(r.Context(), id)
	}
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"checkId": check.ID, "status": check.Status})
	return nil
}

type checkView struct {
	ID                 string           `json:"id"`
	Status             core.CheckStatus `json:"status"`
	Similarity         *float64         `json:"similarity"`
	Matches            []core.Match     `json:"matches"`
	CreatedAt          time.Time        `json:"createdAt"`
	CompletedAt        *time.Time       `json:"completedAt"`
	Error              string           `json:"error,omitempty"`
	ReportID           string           `json:"reportId"`
	ReportName         *string          `json:"reportName"`
	ReportCloudLink    *string          `json:"reportCloudLink"`
	ReportAddedToCloud bool             `json:"reportAddedToCloud"`
}

func (s *Server) getCheck(w http.ResponseWriter, r *http.Request) error {
	check, err := s.svc.GetCheck(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	v := checkView{
		ID:          check.ID,
		Status:      check.Status,
		Similarity:  check.Similarity,
		Matches:     check.Matches,
		CreatedAt:   check.CreatedAt,
		CompletedAt: check.CompletedAt,
		Error:       check.Error,
		ReportID:    check.DocumentID,
	}
	if v.Matches == nil {
		v.Matches = []core.Match{}
	}
	if doc, err := s.svc.GetDocument(r.Context(), check.DocumentID); err == nil {
		rv := newReportView(doc)
		v.ReportName = &rv.OriginalName
		v.ReportCloudLink = rv.CloudLink
		v.ReportAddedToCloud = rv.AddedToCloud
	}
	writeJSON(w, http.StatusOK, map[string]any{"check": v})
	return nil
}

type diffPart struct {
	Added   bool   `json:"added"`
	Removed bool   `json:"removed"`
	Value   string `json:"value"`
}

func (s *Server) diff(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	sourceID, targetID := q.Get("source"), q.Get("target")
	if sourceID == "" || targetID == "" {
		return httpError(http.StatusBadRequest, "source and target are required", nil)
	}

	source, target, segments, err := s.svc.Diff(r.Context(), sourceID, targetID)
	if err != nil {
		return err
	}
	parts := make([]diffPart, 0, len(segments))
	for _, seg := range segments {
		parts = append(parts, diffPart{
			Added:   seg.Kind == textdiff.Added,
			Removed: seg.Kind == textdiff.Removed,
			Value:   seg.Text,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"source": map[string]string{"id": source.ID, "name": source.Name},
		"target": map[string]string{"id": target.ID, "name": target.Name},
		"diff":   parts,
	})
	return nil
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, s.state())
	return nil
}
