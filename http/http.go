// Package http exposes the swale over a JSON HTTP API.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rillworks/dataswale"
	"github.com/rillworks/dataswale/delta"
	"github.com/rillworks/dataswale/geometry"
	"github.com/rillworks/dataswale/version"
)

// ListenAndServe starts an http server bound to the given address.
func ListenAndServe(swale *dataswale.Swale, addr string) error {
	return http.ListenAndServe(addr, Handler(swale))
}

// Handler returns an http.Handler serving the swale API.
func Handler(swale *dataswale.Swale) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /deltas/{layer}", handleSubmit(swale))
	mux.HandleFunc("POST /publish", handlePublish(swale))
	mux.HandleFunc("POST /new-version", handlePublish(swale))
	mux.HandleFunc("POST /layers/{layer}/clear", handleClear(swale))
	mux.HandleFunc("POST /replay/{batch}", handleReplay(swale))
	mux.HandleFunc("GET /layers/{layer}", handleRead(swale))
	mux.HandleFunc("GET /versions", handleVersions(swale))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

func handleSubmit(swale *dataswale.Swale) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to read body: %v", err), http.StatusBadRequest)
			return
		}
		var override delta.Type
		if typeValue := r.URL.Query().Get("type"); typeValue != "" {
			override, err = delta.ParseType(typeValue)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		batchID, err := swale.Submit(r.Context(), r.PathValue("layer"), payload, override, r.URL.Query().Get("batch_id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"batch_id": batchID})
	}
}

func handlePublish(swale *dataswale.Swale) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := swale.Publish(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

func handleClear(swale *dataswale.Swale) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := swale.ClearLayer(r.Context(), r.PathValue("layer")); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	}
}

func handleReplay(swale *dataswale.Swale) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := swale.Replay(r.Context(), r.PathValue("batch"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func handleRead(swale *dataswale.Swale) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseBBox(r.URL.Query().Get("bbox"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, err := swale.ExportLayer(r.Context(), r.PathValue("layer"), r.URL.Query().Get("version"), filter)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		w.Write(data)
	}
}

func handleVersions(swale *dataswale.Swale) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		infos, err := swale.Versions().Versions(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		if infos == nil {
			infos = []version.Info{}
		}
		writeJSON(w, http.StatusOK, infos)
	}
}

// parseBBox parses a "west,south,east,north" query value.
func parseBBox(value string) (*geometry.Bounds, error) {
	if value == "" {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox must be west,south,east,north")
	}
	coords := make([]float64, 4)
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid bbox value %q", part)
		}
		coords[i] = f
	}
	return &geometry.Bounds{MinX: coords[0], MinY: coords[1], MaxX: coords[2], MaxY: coords[3]}, nil
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var verr *delta.ValidationError
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
	case errors.Is(err, version.ErrUnknownVersion):
		status = http.StatusNotFound
	case strings.Contains(err.Error(), "unknown layer"):
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	out, err := json.Marshal(value)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(out)
}
