package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/cache"
	"saldo/internal/core"
	"saldo/internal/engine"
	"saldo/internal/ledger"
	applog "saldo/internal/log"
)

const derivedCacheKey = "derived"

// Server exposes the ledger and the derived-state views over a JSON API.
// Reads go through a small TTL cache keyed on the derived state; every
// write flushes it and the next read recomputes.
type Server struct {
	http.Server
	store           ledger.Store
	engine          *engine.Service
	defaultCurrency string
	rateLimiter     *rateLimiter

	derivedCache *cache.TTLCache[engine.DerivedState]

	shutdownOnce sync.Once
}

// Options carries the tunables the config layer resolves.
type Options struct {
	Addr            string
	DefaultCurrency string
	CacheTTL        time.Duration
	RatePerMinute   int
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(opts Options, store ledger.Store, eng *engine.Service) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    opts.Addr,
			Handler: mux,
		},
		store:           store,
		engine:          eng,
		defaultCurrency: opts.DefaultCurrency,
		rateLimiter:     newRateLimiter(opts.RatePerMinute),
		derivedCache:    cache.New[engine.DerivedState](4, opts.CacheTTL),
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/wallet", s.withRequestBoundary(s.handleWallet))
	mux.HandleFunc("/transactions", s.withRequestBoundary(s.handleTransactions))
	mux.HandleFunc("/balance", s.withRequestBoundary(s.handleBalance))
	mux.HandleFunc("/balance/series", s.withRequestBoundary(s.handleBalanceSeries))
	mux.HandleFunc("/aggregates/category", s.withRequestBoundary(s.handleCategoryAggregates))
	mux.HandleFunc("/aggregates/daily", s.withRequestBoundary(s.handleDailyAggregates))
	mux.HandleFunc("/limit", s.withRequestBoundary(s.handleLimit))
	mux.HandleFunc("/limit/status", s.withRequestBoundary(s.handleLimitStatus))
	mux.HandleFunc("/categories", s.withRequestBoundary(s.handleCategories))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withRequestBoundary adds security headers, rate limiting on mutating
// methods, a request ID, and request logging.
func (s *Server) withRequestBoundary(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			applog.FieldRequestID, requestID,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldClientIP, clientIP)

		if mutating(r.Method) && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded",
				applog.FieldClientIP, clientIP, applog.FieldMethod, r.Method, applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			applog.FieldRequestID, requestID,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldStatusCode, rw.statusCode,
			applog.FieldDuration, time.Since(start).Milliseconds())
	}
}

type requestIDKey struct{}

func mutating(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodDelete
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.ListCategories(r.Context(), core.Expense); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store not ready")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// derived returns the current derived state, from cache when fresh.
func (s *Server) derived(ctx context.Context) (engine.DerivedState, error) {
	if ds, ok := s.derivedCache.Get(derivedCacheKey); ok {
		return ds, nil
	}
	ds, err := s.engine.Refresh(ctx)
	if err != nil {
		return engine.DerivedState{}, err
	}
	s.derivedCache.Set(derivedCacheKey, ds)
	return ds, nil
}

// invalidate drops cached views after a write.
func (s *Server) invalidate() {
	s.derivedCache.Flush()
}

type walletRequest struct {
	Name           string          `json:"name"`
	Currency       string          `json:"currency"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

type walletResponse struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Currency       string          `json:"currency"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	CreatedAt      time.Time       `json:"created_at"`
}

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		wallet, err := s.store.GetWallet(r.Context())
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toWalletResponse(*wallet))
	case http.MethodPost:
		var req walletRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.Currency == "" {
			req.Currency = s.defaultCurrency
		}
		wallet, err := core.NewWallet(req.Name, req.Currency, req.InitialBalance, time.Now())
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if _, err := s.store.CreateWallet(r.Context(), wallet); err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		s.invalidate()
		writeJSON(w, http.StatusCreated, toWalletResponse(wallet))
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

func toWalletResponse(w core.Wallet) walletResponse {
	return walletResponse{
		ID:             w.ID,
		Name:           w.Name,
		Currency:       w.Currency,
		InitialBalance: w.InitialBalance,
		CreatedAt:      w.CreatedAt,
	}
}

type transactionRequest struct {
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Type        string `json:"type"`
}

type transactionResponse struct {
	ID          string          `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Date        string          `json:"date,omitempty"`
	DisplayDate string          `json:"display_date"`
	Type        string          `json:"type"`
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListTransactions(w, r)
	case http.MethodPost:
		s.handleCreateTransaction(w, r)
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	txs, err := s.store.ListTransactions(r.Context(), filter)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	resp := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		resp = append(resp, toTransactionResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var date time.Time
	if req.Date != "" {
		parsed, err := time.Parse(time.RFC3339, req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid date %q: expected RFC3339", req.Date))
			return
		}
		date = parsed
	}

	tx, err := core.NewTransaction(req.Amount, req.Category, req.Description, date, core.TransactionType(req.Type))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := s.store.AppendTransaction(r.Context(), tx); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.invalidate()

	// Recompute eagerly so threshold notifications follow the write, not
	// the next read.
	if _, err := s.engine.Refresh(r.Context()); err != nil && !errors.Is(err, ledger.ErrNoActiveWallet) {
		slog.ErrorContext(r.Context(), "Post-write refresh failed", applog.FieldError, err)
	}

	writeJSON(w, http.StatusCreated, toTransactionResponse(tx))
}

func toTransactionResponse(t core.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:          t.ID,
		Amount:      t.Amount,
		Category:    t.Category,
		Description: t.Description,
		DisplayDate: t.DisplayDate(),
		Type:        string(t.Type),
	}
	if t.HasValidDate() {
		resp.Date = t.Date.Format(time.RFC3339)
	}
	return resp
}

func filterFromQuery(r *http.Request) (ledger.Filter, error) {
	q := r.URL.Query()
	f := ledger.Filter{
		Category: q.Get("category"),
	}

	if typ := q.Get("type"); typ != "" {
		t := core.TransactionType(typ)
		if !t.IsValid() {
			return ledger.Filter{}, fmt.Errorf("invalid type %q", typ)
		}
		f.Type = t
	}
	if from := q.Get("from"); from != "" {
		parsed, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return ledger.Filter{}, fmt.Errorf("invalid from %q: expected RFC3339", from)
		}
		f.From = parsed
	}
	if to := q.Get("to"); to != "" {
		parsed, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return ledger.Filter{}, fmt.Errorf("invalid to %q: expected RFC3339", to)
		}
		f.To = parsed
	}

	return f, nil
}

type balanceResponse struct {
	Balance      decimal.Decimal `json:"balance"`
	TotalIncome  decimal.Decimal `json:"total_income"`
	TotalExpense decimal.Decimal `json:"total_expense"`
	ComputedAt   time.Time       `json:"computed_at"`
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	ds, err := s.derived(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{
		Balance:      ds.Balance,
		TotalIncome:  ds.TotalIncome,
		TotalExpense: ds.TotalExpense,
		ComputedAt:   ds.ComputedAt,
	})
}

func (s *Server) handleBalanceSeries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	ds, err := s.derived(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"series": ds.Series})
}

func (s *Server) handleCategoryAggregates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	typ := core.TransactionType(r.URL.Query().Get("type"))
	if typ == "" {
		typ = core.Expense
	}
	if !typ.IsValid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid type %q", typ))
		return
	}

	ds, err := s.derived(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	totals := ds.ExpenseByCategory
	if typ == core.Income {
		totals = ds.IncomeByCategory
	}
	resp := make([]categoryTotalResponse, 0, len(totals))
	for _, ct := range totals {
		resp = append(resp, categoryTotalResponse{
			Category: ct.Category,
			Total:    ct.Total,
			Percent:  ct.Percent,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"type": typ, "categories": resp})
}

type categoryTotalResponse struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Percent  decimal.Decimal `json:"percent"`
}

type dateBucketResponse struct {
	Date         string                `json:"date"`
	Net          decimal.Decimal       `json:"net"`
	Transactions []transactionResponse `json:"transactions"`
}

func (s *Server) handleDailyAggregates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	ds, err := s.derived(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	days := make([]dateBucketResponse, 0, len(ds.ByDate))
	for _, b := range ds.ByDate {
		day := dateBucketResponse{
			Date:         b.Date,
			Net:          b.Net,
			Transactions: make([]transactionResponse, 0, len(b.Transactions)),
		}
		for _, t := range b.Transactions {
			day.Transactions = append(day.Transactions, toTransactionResponse(t))
		}
		days = append(days, day)
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days})
}

type limitRequest struct {
	Amount    string `json:"amount"`
	Category  string `json:"category"`
	Period    string `json:"period"`
	StartDate string `json:"start_date"`
}

func (s *Server) handleLimit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, "PUT")
		return
	}

	var req limitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := core.SpendingLimit{
		Amount:   amount,
		Category: core.Category{Name: req.Category},
		Period:   core.LimitPeriod(req.Period),
		SetAt:    time.Now(),
	}
	if req.StartDate != "" {
		parsed, err := time.Parse(time.RFC3339, req.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid start_date %q: expected RFC3339", req.StartDate))
			return
		}
		limit.StartDate = parsed
	}
	if err := limit.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.SaveLimit(r.Context(), limit); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.invalidate()

	writeJSON(w, http.StatusOK, map[string]any{
		"amount":   limit.Amount,
		"category": limit.Category.Name,
		"period":   limit.Period,
		"set_at":   limit.SetAt,
	})
}

type limitStatusResponse struct {
	Amount           decimal.Decimal `json:"amount"`
	Category         string          `json:"category"`
	Period           string          `json:"period"`
	Spend            decimal.Decimal `json:"spend"`
	Ratio            decimal.Decimal `json:"ratio"`
	NotifiedHalf     bool            `json:"notified_half"`
	Notified80       bool            `json:"notified_80"`
	NotifiedExceeded bool            `json:"notified_exceeded"`
}

func (s *Server) handleLimitStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	limit, err := s.store.GetLimit(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	ds, err := s.derived(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	state := s.engine.ThresholdState()
	writeJSON(w, http.StatusOK, limitStatusResponse{
		Amount:           limit.Amount,
		Category:         limit.Category.Name,
		Period:           string(limit.Period),
		Spend:            ds.LimitSpend,
		Ratio:            ds.LimitRatio,
		NotifiedHalf:     state.NotifiedHalf,
		Notified80:       state.Notified80,
		NotifiedExceeded: state.NotifiedExceeded,
	})
}

type categoryRequest struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		typ := core.TransactionType(r.URL.Query().Get("type"))
		if typ == "" {
			typ = core.Expense
		}
		if !typ.IsValid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid type %q", typ))
			return
		}
		cats, err := s.store.ListCategories(r.Context(), typ)
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		resp := make([]categoryResponse, 0, len(cats))
		for _, c := range cats {
			resp = append(resp, toCategoryResponse(c))
		}
		writeJSON(w, http.StatusOK, map[string]any{"type": typ, "categories": resp})
	case http.MethodPost:
		var req categoryRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		typ := core.TransactionType(req.Type)
		if !typ.IsValid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid type %q", req.Type))
			return
		}
		cat, err := s.store.AddCategory(r.Context(), typ, req.Name)
		if err != nil {
			if errors.Is(err, core.ErrMissingCategory) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			s.writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toCategoryResponse(cat))
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

type categoryResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Source string `json:"source"`
}

func toCategoryResponse(c core.Category) categoryResponse {
	return categoryResponse{ID: c.ID, Name: c.Name, Source: string(c.Source)}
}

// writeStoreError maps ledger errors onto HTTP statuses.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrNoActiveWallet):
		writeError(w, http.StatusNotFound, "no active wallet")
	case errors.Is(err, ledger.ErrNoLimit):
		writeError(w, http.StatusNotFound, "no spending limit set")
	case errors.Is(err, ledger.ErrStoreUnavailable):
		slog.ErrorContext(r.Context(), "Store unavailable", applog.FieldError, err, applog.FieldPath, r.URL.Path)
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
	default:
		slog.ErrorContext(r.Context(), "Request failed", applog.FieldError, err, applog.FieldPath, r.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Encode response failed", applog.FieldError, err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
