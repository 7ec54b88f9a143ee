package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/finbright/bankcore/internal/models"
	service "github.com/finbright/bankcore/internal/services"
	pkgerrors "github.com/finbright/bankcore/pkg/errors"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

type Handler struct {
	auth          service.AuthService
	transfers     service.TransferService
	applications  service.ApplicationService
	notifications service.NotificationService
}

func NewHandler(
	auth service.AuthService,
	transfers service.TransferService,
	applications service.ApplicationService,
	notifications service.NotificationService,
) *Handler {
	return &Handler{
		auth:          auth,
		transfers:     transfers,
		applications:  applications,
		notifications: notifications,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps the error taxonomy onto HTTP statuses so every failure mode
// surfaces as a distinct, user-readable outcome.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pkgerrors.ErrUserNotFound),
		errors.Is(err, pkgerrors.ErrTransferNotFound),
		errors.Is(err, pkgerrors.ErrLoanNotFound),
		errors.Is(err, pkgerrors.ErrCardNotFound),
		errors.Is(err, pkgerrors.ErrNotificationNotFound):
		return http.StatusNotFound
	case errors.Is(err, pkgerrors.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, pkgerrors.ErrTransfersDisabled):
		return http.StatusForbidden
	case errors.Is(err, pkgerrors.ErrSequenceViolation),
		errors.Is(err, pkgerrors.ErrStepAlreadyVerified),
		errors.Is(err, pkgerrors.ErrDuplicatePendingApplication),
		errors.Is(err, pkgerrors.ErrRequestAlreadyProcessed),
		errors.Is(err, pkgerrors.ErrVersionConflict),
		errors.Is(err, pkgerrors.ErrBalanceLocked),
		errors.Is(err, pkgerrors.ErrTransferNotPending):
		return http.StatusConflict
	case errors.Is(err, pkgerrors.ErrInvalidCode),
		errors.Is(err, pkgerrors.ErrInvalidOtp),
		errors.Is(err, pkgerrors.ErrOtpExpired),
		errors.Is(err, pkgerrors.ErrInsufficientFunds),
		errors.Is(err, pkgerrors.ErrWrongRegion),
		errors.Is(err, pkgerrors.ErrUnknownStep),
		errors.Is(err, pkgerrors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, pkgerrors.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, pkgerrors.ErrUsernameExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func userIDFrom(r *http.Request) (int32, bool) {
	userID, ok := r.Context().Value("user_id").(int32)
	return userID, ok
}

func (h *Handler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
}

func (h *Handler) RegisterProtectedRoutes(r *mux.Router) {
	r.HandleFunc("/transfers", h.InitiateTransfer).Methods("POST")
	r.HandleFunc("/transfers", h.ListTransfers).Methods("GET")
	r.HandleFunc("/transfers/{txRef}", h.GetTransfer).Methods("GET")
	r.HandleFunc("/transfers/{txRef}/verify", h.SubmitVerificationCode).Methods("POST")
	r.HandleFunc("/transfers/{txRef}/otp", h.ConfirmOTP).Methods("POST")
	r.HandleFunc("/balance", h.GetBalance).Methods("GET")
	r.HandleFunc("/history", h.GetHistory).Methods("GET")
	r.HandleFunc("/notifications", h.ListNotifications).Methods("GET")
	r.HandleFunc("/notifications/{id}/read", h.MarkNotificationRead).Methods("POST")
	r.HandleFunc("/loans", h.ApplyForLoan).Methods("POST")
	r.HandleFunc("/loans", h.ListLoans).Methods("GET")
	r.HandleFunc("/cards", h.ApplyForCard).Methods("POST")
	r.HandleFunc("/cards", h.ListCards).Methods("GET")
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	userID, err := h.auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int32{"user_id": userID})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	token, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) InitiateTransfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}

	var req struct {
		Amount        decimal.Decimal `json:"amount"`
		Currency      string          `json:"currency"`
		Region        string          `json:"region"`
		BankName      string          `json:"bank_name"`
		AccountNumber string          `json:"account_number"`
		HolderName    string          `json:"holder_name"`
		RequestID     string          `json:"request_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	t, err := h.transfers.InitiateTransfer(r.Context(), userID, service.InitiateTransferInput{
		Amount:        req.Amount,
		Currency:      req.Currency,
		Region:        models.Region(req.Region),
		BankName:      req.BankName,
		AccountNumber: req.AccountNumber,
		HolderName:    req.HolderName,
		RequestID:     req.RequestID,
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}
	transfers, err := h.transfers.ListTransfers(r.Context(), userID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, transfers)
}

func (h *Handler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}
	t, err := h.transfers.GetTransfer(r.Context(), userID, mux.Vars(r)["txRef"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) SubmitVerificationCode(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}

	var req struct {
		Step string `json:"step"`
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.transfers.SubmitVerificationCode(r.Context(), userID, mux.Vars(r)["txRef"], models.Step(req.Step), req.Code)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) ConfirmOTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}

	var req struct {
		OTP string `json:"otp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	t, err := h.transfers.ConfirmOTP(r.Context(), userID, mux.Vars(r)["txRef"], req.OTP)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": t.Status, "tx_ref": t.TxRef})
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}

	currency := r.URL.Query().Get("currency")
	if currency == "" {
		currency = models.DefaultCurrency
	}
	balance, err := h.transfers.GetBalance(r.Context(), userID, currency)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"currency": currency, "balance": balance})
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}
	metas, err := h.transfers.History(r.Context(), userID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, metas)
}

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}
	notifications, err := h.notifications.List(r.Context(), userID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, notifications)
}

func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.notifications.MarkRead(r.Context(), int32(id), userID); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ApplyForLoan(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}

	var req struct {
		Amount         decimal.Decimal `json:"amount"`
		InterestRate   decimal.Decimal `json:"interest_rate"`
		DurationMonths int32           `json:"duration_months"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	loan, err := h.applications.ApplyForLoan(r.Context(), userID, req.Amount, req.InterestRate, req.DurationMonths)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}
	loans, err := h.applications.ListLoans(r.Context(), userID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

func (h *Handler) ApplyForCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}

	var req struct {
		CardType string `json:"card_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	card, err := h.applications.ApplyForCard(r.Context(), userID, req.CardType)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

func (h *Handler) ListCards(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}
	cards, err := h.applications.ListCards(r.Context(), userID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}
