package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"account-service/internal/api/handler/dto"
	"account-service/internal/domain/account"
	"account-service/internal/domain/customer"
	"account-service/internal/pkg/apperrors"

	"github.com/go-chi/chi/v5"
)

type AccountHandler struct {
	service account.Service
	logger  *slog.Logger
}

func NewAccountHandler(s account.Service, l *slog.Logger) *AccountHandler {
	if s == nil {
		panic("account service cannot be nil")
	}
	if l == nil {
		panic("logger cannot be nil")
	}
	return &AccountHandler{
		service: s,
		logger:  l.With("component", "AccountHandler"),
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return fmt.Errorf("no request body")
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	if payload == nil {
		w.WriteHeader(status)
		return
	}
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Default().Error("Failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":{"message":"Internal server error"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

func respondError(w http.ResponseWriter, err error) {
	status, message, field := http.StatusInternalServerError, "An unexpected error occurred.", ""
	var validationError *apperrors.ValidationError

	switch {
	case errors.Is(err, account.ErrNotFound), errors.Is(err, customer.ErrNotFound), errors.Is(err, apperrors.ErrNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, account.ErrInvalidState),
		errors.Is(err, apperrors.ErrInvalidArgument),
		errors.Is(err, apperrors.ErrValidation):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, account.ErrAccountNumberTaken),
		errors.Is(err, account.ErrInsufficientFunds),
		errors.Is(err, account.ErrInvalidTransition),
		errors.Is(err, account.ErrUpdateConflict),
		errors.Is(err, customer.ErrDuplicateEmail),
		errors.Is(err, customer.ErrDuplicatePhone),
		errors.Is(err, customer.ErrHasOpenAccounts),
		errors.Is(err, apperrors.ErrConflict),
		errors.Is(err, apperrors.ErrAlreadyExists):
		status, message = http.StatusConflict, err.Error()
	case errors.As(err, &validationError):
		status, message, field = http.StatusBadRequest, validationError.Message, validationError.Field
	case errors.Is(err, apperrors.ErrDatabase):
		// Transient storage failure: the one condition a caller may retry.
		status, message = http.StatusServiceUnavailable, "Storage temporarily unavailable."
	default:
		slog.Default().Error("Unhandled internal error", "error", err)
	}

	resp := dto.ErrorResponse{
		Error: dto.ErrorDetail{
			Message: message,
			Field:   field,
		},
	}
	respondJSON(w, status, resp)
}

func getAccountIDFromURL(r *http.Request) (int64, error) {
	idStr := chi.URLParam(r, "accountID")
	if idStr == "" {
		return 0, fmt.Errorf("%w: accountID not found in URL path", apperrors.ErrInvalidArgument)
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid accountID format in URL path: %s", apperrors.ErrInvalidArgument, idStr)
	}
	return id, nil
}

// CreateAccount handles POST /api/v1/accounts
// @Summary Open a new account
// @Description Opens a new account for an existing customer with a globally unique account number.
// @Tags Accounts
// @Accept json
// @Produce json
// @Param request body dto.CreateAccountRequest true "Account creation request"
// @Success 201 {object} dto.AccountResponse "Account successfully created"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload"
// @Failure 404 {object} dto.ErrorResponse "Owning customer not found"
// @Failure 409 {object} dto.ErrorResponse "Account number already taken"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /api/v1/accounts [post]
// @Security BearerAuth
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	h.logger.DebugContext(r.Context(), "Received create account request")

	var req dto.CreateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		h.logger.WarnContext(r.Context(), "Request validation failed", slog.Any("error", err))
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	accType, _ := account.ParseType(req.AccountType)
	initialBalance, _ := req.ParsedInitialBalance()

	created, err := h.service.CreateAccount(r.Context(), req.CustomerID, req.AccountNumber, accType, initialBalance, req.Currency)
	if err != nil {
		level := slog.LevelWarn
		if !errors.Is(err, customer.ErrNotFound) && !errors.Is(err, account.ErrAccountNumberTaken) && !errors.Is(err, account.ErrInvalidState) {
			level = slog.LevelError
		}
		h.logger.Log(r.Context(), level, "Service failed to create account", slog.Any("error", err))
		respondError(w, err)
		return
	}

	resp := dto.NewAccountResponse(created)
	h.logger.InfoContext(r.Context(), "Account created successfully", slog.String("accountID", resp.AccountID))
	respondJSON(w, http.StatusCreated, resp)
}

// GetAccount handles GET /api/v1/accounts/{accountID}
// @Summary Retrieve account details
// @Description Retrieves the read-only projection of an account by its internal ID.
// @Tags Accounts
// @Produce json
// @Param accountID path int true "Account ID" Minimum(1)
// @Success 200 {object} dto.AccountResponse "Account details retrieved"
// @Failure 400 {object} dto.ErrorResponse "Invalid account ID format"
// @Failure 404 {object} dto.ErrorResponse "Account not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /api/v1/accounts/{accountID} [get]
// @Security BearerAuth
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := getAccountIDFromURL(r)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Failed to get account ID from URL", slog.Any("error", err))
		respondError(w, err)
		return
	}

	projection, err := h.service.GetAccountByID(r.Context(), accountID)
	if err != nil {
		level := slog.LevelWarn
		if !errors.Is(err, account.ErrNotFound) {
			level = slog.LevelError
		}
		h.logger.Log(r.Context(), level, "Service failed to get account", slog.Any("error", err))
		respondError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Account retrieved successfully")
	respondJSON(w, http.StatusOK, dto.NewAccountProjectionResponse(projection))
}

// GetAccountByNumber handles GET /api/v1/accounts/number/{accountNumber}
// @Summary Retrieve account details by account number
// @Description Retrieves the read-only projection of an account by its externally visible number.
// @Tags Accounts
// @Produce json
// @Param accountNumber path string true "Account number"
// @Success 200 {object} dto.AccountResponse "Account details retrieved"
// @Failure 400 {object} dto.ErrorResponse "Missing account number"
// @Failure 404 {object} dto.ErrorResponse "Account not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /api/v1/accounts/number/{accountNumber} [get]
// @Security BearerAuth
func (h *AccountHandler) GetAccountByNumber(w http.ResponseWriter, r *http.Request) {
	accountNumber := chi.URLParam(r, "accountNumber")
	if accountNumber == "" {
		respondError(w, fmt.Errorf("%w: accountNumber not found in URL path", apperrors.ErrInvalidArgument))
		return
	}

	projection, err := h.service.GetAccountByNumber(r.Context(), accountNumber)
	if err != nil {
		level := slog.LevelWarn
		if !errors.Is(err, account.ErrNotFound) {
			level = slog.LevelError
		}
		h.logger.Log(r.Context(), level, "Service failed to get account by number", slog.Any("error", err))
		respondError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Account retrieved successfully by number")
	respondJSON(w, http.StatusOK, dto.NewAccountProjectionResponse(projection))
}

// AdjustBalance handles POST /api/v1/accounts/{accountID}/adjustments
// @Summary Adjust an account balance
// @Description Applies a signed decimal amount to the account balance under optimistic concurrency.
// @Tags Accounts
// @Accept json
// @Produce json
// @Param accountID path int true "Account ID" Minimum(1)
// @Param request body dto.AdjustBalanceRequest true "Signed adjustment amount"
// @Success 200 {object} dto.AccountResponse "Balance adjusted"
// @Failure 400 {object} dto.ErrorResponse "Invalid account ID or amount"
// @Failure 404 {object} dto.ErrorResponse "Account not found"
// @Failure 409 {object} dto.ErrorResponse "Insufficient funds, closed account or concurrent update conflict"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /api/v1/accounts/{accountID}/adjustments [post]
// @Security BearerAuth
func (h *AccountHandler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	accountID, err := getAccountIDFromURL(r)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Failed to get account ID from URL", slog.Any("error", err))
		respondError(w, err)
		return
	}

	var req dto.AdjustBalanceRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	delta, err := req.ParsedAmount()
	if err != nil {
		h.logger.WarnContext(r.Context(), "Request validation failed", slog.Any("error", err))
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	adjusted, err := h.service.AdjustBalance(r.Context(), accountID, delta)
	if err != nil {
		level := slog.LevelWarn
		if !errors.Is(err, account.ErrNotFound) &&
			!errors.Is(err, account.ErrInsufficientFunds) &&
			!errors.Is(err, account.ErrInvalidTransition) {
			level = slog.LevelError
		}
		h.logger.Log(r.Context(), level, "Service failed to adjust balance", slog.Any("error", err))
		respondError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Balance adjusted successfully", slog.Int64("accountID", accountID))
	respondJSON(w, http.StatusOK, dto.NewAccountResponse(adjusted))
}

// CloseAccount handles POST /api/v1/accounts/{accountID}/close
// @Summary Close an account
// @Description Transitions a zero-balance ACTIVE account to CLOSED. CLOSED is terminal.
// @Tags Accounts
// @Produce json
// @Param accountID path int true "Account ID" Minimum(1)
// @Success 204 "Account successfully closed"
// @Failure 400 {object} dto.ErrorResponse "Invalid account ID format"
// @Failure 404 {object} dto.ErrorResponse "Account not found"
// @Failure 409 {object} dto.ErrorResponse "Non-zero balance or already closed"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /api/v1/accounts/{accountID}/close [post]
// @Security BearerAuth
func (h *AccountHandler) CloseAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := getAccountIDFromURL(r)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Failed to get account ID from URL", slog.Any("error", err))
		respondError(w, err)
		return
	}

	if err := h.service.CloseAccount(r.Context(), accountID); err != nil {
		level := slog.LevelWarn
		if !errors.Is(err, account.ErrNotFound) && !errors.Is(err, account.ErrInvalidTransition) {
			level = slog.LevelError
		}
		h.logger.Log(r.Context(), level, "Service failed to close account", slog.Any("error", err))
		respondError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Account closed successfully", slog.Int64("accountID", accountID))
	respondJSON(w, http.StatusNoContent, nil)
}
