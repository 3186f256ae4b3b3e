package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/fortuna/augur/internal/extract"
	"github.com/fortuna/augur/internal/feature"
	"github.com/fortuna/augur/internal/per"
	"github.com/fortuna/augur/internal/selection"
	"github.com/fortuna/augur/internal/service"
)

// Handler contains dependencies for HTTP handlers
type Handler struct {
	features   *service.FeatureService
	ratings    *per.Engine
	extractSvc *extract.Service
	reporter   extract.Reporter
	log        *zap.Logger
}

// NewHandler creates a new handler. reporter, if non-nil, receives extraction
// progress (wired to the websocket hub).
func NewHandler(features *service.FeatureService, ratings *per.Engine, extractSvc *extract.Service, reporter extract.Reporter, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		features:   features,
		ratings:    ratings,
		extractSvc: extractSvc,
		reporter:   reporter,
		log:        log,
	}
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "augur",
	})
}

type gameContextRequest struct {
	GameID     int    `json:"game_id,omitempty"`
	SeasonID   int    `json:"season_id"`
	HomeTeamID int    `json:"home_team_id"`
	AwayTeamID int    `json:"away_team_id"`
	Date       string `json:"date"`
}

type featureRequest struct {
	Features  []string                     `json:"features"`
	Game      gameContextRequest           `json:"game"`
	Strict    bool                         `json:"strict,omitempty"`
	Overrides map[string]map[string]string `json:"overrides,omitempty"`
}

// AssembleFeatures computes a feature vector for one game context
func (h *Handler) AssembleFeatures(w http.ResponseWriter, r *http.Request) {
	var req featureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Features) == 0 {
		respondError(w, http.StatusBadRequest, "At least one feature name is required", nil)
		return
	}

	date, err := time.Parse("2006-01-02", req.Game.Date)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid game date, expected YYYY-MM-DD", err)
		return
	}

	overrides, err := parseOverrides(req.Overrides)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid availability overrides", err)
		return
	}

	game := selection.GameContext{
		GameID:     req.Game.GameID,
		SeasonID:   req.Game.SeasonID,
		HomeTeamID: req.Game.HomeTeamID,
		AwayTeamID: req.Game.AwayTeamID,
		Date:       date,
	}

	vector, err := h.features.Assemble(r.Context(), req.Features, game, service.AssembleOptions{
		Strict:    req.Strict,
		Overrides: overrides,
	})
	if err != nil {
		var nameErr *feature.InvalidFeatureNameError
		if errors.As(err, &nameErr) {
			respondError(w, http.StatusBadRequest, "Invalid feature name", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to assemble features", err)
		return
	}

	respondJSON(w, http.StatusOK, vector)
}

// GetFeatureCatalog returns the supported statistic names and grammar
func (h *Handler) GetFeatureCatalog(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"grammar":    "statistic|window|reduction|perspective[|side]",
		"windows":    []string{"season", "games_N", "days_N", "months_N", "blend:window:weight/window:weight"},
		"reductions": []string{"avg", "raw"},
		"statistics": feature.Statistics(),
	})
}

// GetLeagueContext returns the per-season league constants as of a date
func (h *Handler) GetLeagueContext(w http.ResponseWriter, r *http.Request) {
	seasonID, err := strconv.Atoi(mux.Vars(r)["seasonID"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid season ID", err)
		return
	}

	asOf := time.Now().UTC()
	if v := r.URL.Query().Get("as_of"); v != "" {
		asOf, err = time.Parse("2006-01-02", v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid as_of date, expected YYYY-MM-DD", err)
			return
		}
	}

	lc, err := h.ratings.League(r.Context(), seasonID, asOf)
	if errors.Is(err, per.ErrMissingLeagueContext) {
		respondError(w, http.StatusNotFound, "No league data before the requested date", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to derive league context", err)
		return
	}

	respondJSON(w, http.StatusOK, lc)
}

type extractionRequest struct {
	SeasonID int      `json:"season_id"`
	Start    string   `json:"start"`
	End      string   `json:"end"`
	Features []string `json:"features"`
	Workers  int      `json:"workers,omitempty"`
}

// StartExtraction enqueues a bulk training-set extraction job
func (h *Handler) StartExtraction(w http.ResponseWriter, r *http.Request) {
	var req extractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := time.Parse("2006-01-02", req.Start)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid start date, expected YYYY-MM-DD", err)
		return
	}
	end, err := time.Parse("2006-01-02", req.End)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid end date, expected YYYY-MM-DD", err)
		return
	}

	job, err := h.extractSvc.Enqueue(extract.JobSpec{
		SeasonID: req.SeasonID,
		Start:    start,
		End:      end,
		Features: req.Features,
		Workers:  req.Workers,
	}, h.reporter)
	if err != nil {
		respondError(w, http.StatusConflict, "Failed to start extraction", err)
		return
	}

	respondJSON(w, http.StatusAccepted, job)
}

// GetExtractionStatus returns the active job and recent history
func (h *Handler) GetExtractionStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.extractSvc.Status())
}

// GetExtractionRows returns the output rows of a completed job
func (h *Handler) GetExtractionRows(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobID"]
	rows, ok := h.extractSvc.Rows(jobID)
	if !ok {
		respondError(w, http.StatusNotFound, "No rows for job", nil)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func parseOverrides(raw map[string]map[string]string) (map[int]selection.Override, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	overrides := make(map[int]selection.Override, len(raw))
	for teamKey, players := range raw {
		teamID, err := strconv.Atoi(teamKey)
		if err != nil {
			return nil, err
		}
		override := make(selection.Override, len(players))
		for playerKey, status := range players {
			playerID, err := strconv.Atoi(playerKey)
			if err != nil {
				return nil, err
			}
			switch selection.Status(status) {
			case selection.StatusPlaying, selection.StatusStarting, selection.StatusInjured:
				override[playerID] = selection.Status(status)
			default:
				return nil, errors.New("status must be 'playing', 'starting', or 'injured'")
			}
		}
		overrides[teamID] = override
	}
	return overrides, nil
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}

	if err != nil {
		response["details"] = err.Error()
	}

	json.NewEncoder(w).Encode(response)
}
