package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/raterudder/energyrates/pkg/log"
	"github.com/raterudder/energyrates/pkg/syncer"
	"github.com/raterudder/energyrates/pkg/types"
)

const syncTypeAll = "all"

type syncRequest struct {
	Date  string `json:"date"`
	Start string `json:"start"`
	End   string `json:"end"`
	Type  string `json:"type"`
}

type syncResult struct {
	Type     types.Kind `json:"type"`
	Date     civil.Date `json:"date"`
	Fetched  int        `json:"fetched"`
	Written  int        `json:"written"`
	Rejected int        `json:"rejected"`
}

type syncResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Date    string       `json:"date,omitempty"`
	Start   string       `json:"start,omitempty"`
	End     string       `json:"end,omitempty"`
	Type    string       `json:"type"`
	Results []syncResult `json:"results"`
}

// syncKinds maps the request type to the kinds to sync.
func syncKinds(typ string) ([]types.Kind, error) {
	if typ == "" || typ == syncTypeAll {
		return types.Kinds, nil
	}
	kind, err := types.ParseKind(typ)
	if err != nil {
		return nil, err
	}
	return []types.Kind{kind}, nil
}

func toSyncResults(results []syncer.Result) []syncResult {
	out := make([]syncResult, 0, len(results))
	for _, r := range results {
		out = append(out, syncResult{
			Type:     r.Kind,
			Date:     r.Day,
			Fetched:  r.Fetched,
			Written:  r.Written,
			Rejected: r.Rejected,
		})
	}
	return out
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req syncRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode sync request", slog.Any("error", err))
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	kinds, err := syncKinds(req.Type)
	if err != nil {
		writeJSONError(w, "Invalid type. Use electricity, gas or all", http.StatusBadRequest)
		return
	}
	typ := req.Type
	if typ == "" {
		typ = syncTypeAll
	}

	var (
		start, end civil.Date
		isRange    bool
	)
	switch {
	case req.Start != "" || req.End != "":
		isRange = true
		if req.Start == "" || req.End == "" {
			writeJSONError(w, "Both start and end are required (format: YYYY-MM-DD)", http.StatusBadRequest)
			return
		}
		if start, err = types.ParseDay(req.Start); err != nil {
			writeJSONError(w, msgDateInvalid, http.StatusBadRequest)
			return
		}
		if end, err = types.ParseDay(req.End); err != nil {
			writeJSONError(w, msgDateInvalid, http.StatusBadRequest)
			return
		}
	case req.Date != "":
		if start, err = types.ParseDay(req.Date); err != nil {
			writeJSONError(w, msgDateInvalid, http.StatusBadRequest)
			return
		}
		end = start
	default:
		writeJSONError(w, msgDateRequired, http.StatusBadRequest)
		return
	}

	results, err := s.syncer.SyncRange(ctx, start, end, kinds...)
	if err != nil {
		var verr *types.ValidationError
		if errors.As(err, &verr) {
			writeJSONFailure(w, "Invalid sync request", err, http.StatusBadRequest)
			return
		}
		log.Ctx(ctx).ErrorContext(
			ctx,
			"sync request failed",
			slog.String("type", typ),
			slog.String("start", start.String()),
			slog.String("end", end.String()),
			slog.Any("error", err),
		)
		writeJSONFailure(w, fmt.Sprintf("Failed to sync %s rates", typ), err, http.StatusInternalServerError)
		return
	}

	resp := syncResponse{
		Success: true,
		Type:    typ,
		Results: toSyncResults(results),
	}
	label := strings.ToUpper(typ[:1]) + typ[1:]
	if isRange {
		resp.Start = start.String()
		resp.End = end.String()
		resp.Message = fmt.Sprintf("%s rates synced successfully for %s to %s", label, resp.Start, resp.End)
	} else {
		resp.Date = start.String()
		resp.Message = fmt.Sprintf("%s rates synced successfully for %s", label, resp.Date)
	}
	writeJSON(w, resp, http.StatusOK)
}
