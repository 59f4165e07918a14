package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/trueform/formsight/internal/api/response"
	"github.com/trueform/formsight/pkg/models"
)

// NewListSportsHandler returns an http.HandlerFunc for GET /api/v1/sports.
func NewListSportsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, models.Sports())
	}
}

// NewGetSportHandler returns an http.HandlerFunc for GET /api/v1/sports/{sportID}.
func NewGetSportHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sport, ok := models.SportByID(chi.URLParam(r, "sportID"))
		if !ok {
			response.Error(w, http.StatusNotFound, "SPORT_NOT_FOUND", "Sport not found", nil)
			return
		}
		response.JSON(w, sport)
	}
}
