package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/finbright/bankcore/internal/models"
	service "github.com/finbright/bankcore/internal/services"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

type AdminHandler struct {
	admin service.AdminService
}

func NewAdminHandler(admin service.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

func (h *AdminHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/balance", h.AdjustBalance).Methods("POST")
	r.HandleFunc("/settings", h.SetOption).Methods("POST")
	r.HandleFunc("/transfers/{txRef}/approve", h.ApproveTransfer).Methods("POST")
	r.HandleFunc("/transfers/{txRef}/decline", h.DeclineTransfer).Methods("POST")
	r.HandleFunc("/loans/{id}/approve", h.ApproveLoan).Methods("POST")
	r.HandleFunc("/loans/{id}/decline", h.DeclineLoan).Methods("POST")
	r.HandleFunc("/cards/{id}/approve", h.ApproveCard).Methods("POST")
	r.HandleFunc("/cards/{id}/decline", h.DeclineCard).Methods("POST")
}

func (h *AdminHandler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID    int32           `json:"user_id"`
		Currency  string          `json:"currency"`
		Amount    decimal.Decimal `json:"amount"`
		Direction string          `json:"direction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	balance, err := h.admin.AdjustBalance(r.Context(), req.UserID, req.Currency, req.Amount, models.TransferType(req.Direction))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user_id": req.UserID, "currency": req.Currency, "balance": balance})
}

func (h *AdminHandler) SetOption(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	epoch, err := h.admin.SetOption(r.Context(), req.Key, req.Value)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"key": req.Key, "epoch": epoch})
}

func (h *AdminHandler) ApproveTransfer(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.ApproveTransfer(r.Context(), mux.Vars(r)["txRef"]); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}

func (h *AdminHandler) DeclineTransfer(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.DeclineTransfer(r.Context(), mux.Vars(r)["txRef"]); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "declined"})
}

func pathID(r *http.Request) (int32, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 32)
	return int32(id), err
}

func (h *AdminHandler) ApproveLoan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	loan, err := h.admin.ApproveLoan(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (h *AdminHandler) DeclineLoan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.admin.DeclineLoan(r.Context(), id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "declined"})
}

func (h *AdminHandler) ApproveCard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.admin.ApproveCard(r.Context(), id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}

func (h *AdminHandler) DeclineCard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.admin.DeclineCard(r.Context(), id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "declined"})
}
