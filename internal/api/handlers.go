package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/susu3304/expensesplitter/internal/splitter"
	"github.com/susu3304/expensesplitter/internal/ui"
	"github.com/susu3304/expensesplitter/internal/units"
)

type viewResponse struct {
	Status splitter.Status `json:"status"`
	View   ui.View         `json:"view"`
	// LoginRequired tells the page to attach a bearer token to writes.
	LoginRequired bool `json:"login_required"`
}

type opResponse struct {
	OK      bool     `json:"ok"`
	Kind    string   `json:"kind,omitempty"`
	Message string   `json:"message,omitempty"`
	Result  any      `json:"result,omitempty"`
	View    *ui.View `json:"view,omitempty"`
}

type historyEntry struct {
	splitter.TxRecord
	AmountEther string `json:"amount_ether,omitempty"`
	ExplorerURL string `json:"explorer_url,omitempty"`
}

type historyResponse struct {
	Enabled      bool           `json:"enabled"`
	Transactions []historyEntry `json:"transactions"`
}

// statusFor maps a controller error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, splitter.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, splitter.ErrNoContract):
		return http.StatusConflict
	case errors.Is(err, splitter.ErrConnection),
		errors.Is(err, splitter.ErrContractUnreachable),
		errors.Is(err, splitter.ErrQuery),
		errors.Is(err, splitter.ErrTransaction):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) respond(w http.ResponseWriter, result any, err error) {
	view := a.ctrl.Board().View()
	resp := opResponse{OK: err == nil, View: &view}
	if err != nil {
		resp.Kind = splitter.KindName(err)
		resp.Message = splitter.Display(err)
	} else {
		resp.Result = result
	}
	writeJSON(w, statusFor(err), resp)
}

// opContext detaches a write from the HTTP request so a closed tab does not
// abandon a confirmation; a session reset still cancels it.
func opContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

// decodeBody reads an optional JSON body into v.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (a *API) badBody(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, opResponse{Kind: "validation", Message: "invalid request body"})
}

func (a *API) handleView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, viewResponse{
		Status:        a.ctrl.Status(),
		View:          a.ctrl.Board().View(),
		LoginRequired: a.config.OAuthEnabled(),
	})
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	resp := historyResponse{Enabled: a.history != nil, Transactions: []historyEntry{}}
	status := a.ctrl.Status()
	if a.history == nil || status.Contract == nil || status.ChainID == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := a.history.ListTransactions(r.Context(), status.ChainID.Uint64(), *status.Contract, limit)
	if err != nil {
		a.log.Error("listing history failed", "error", err)
		http.Error(w, "failed to list transactions", http.StatusInternalServerError)
		return
	}
	for _, rec := range records {
		entry := historyEntry{TxRecord: rec, ExplorerURL: a.config.TxURL(rec.Hash.Hex())}
		if rec.Amount != nil {
			entry.AmountEther = units.FormatEther(rec.Amount)
		}
		resp.Transactions = append(resp.Transactions, entry)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleConnect(w http.ResponseWriter, r *http.Request) {
	addr, err := a.ctrl.Connect(opContext(r))
	var result any
	if err == nil {
		result = map[string]string{"address": addr.Hex()}
	}
	a.respond(w, result, err)
}

func (a *API) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	a.respond(w, nil, a.ctrl.Disconnect(r.Context()))
}

func (a *API) handleLoadContract(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
	}
	if err := decodeBody(r, &req); err != nil {
		a.badBody(w)
		return
	}
	addr, err := a.ctrl.LoadContract(opContext(r), req.Address)
	var result any
	if err == nil {
		result = map[string]string{"address": addr.Hex()}
	}
	a.respond(w, result, err)
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	_, err := a.ctrl.Refresh(r.Context())
	a.respond(w, nil, err)
}

func (a *API) handleRecordExpense(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string `json:"description"`
		Amount      string `json:"amount"`
	}
	if err := decodeBody(r, &req); err != nil {
		a.badBody(w)
		return
	}
	res, err := a.ctrl.RecordExpense(opContext(r), req.Description, req.Amount)
	a.respond(w, res, err)
}

func (a *API) handleAddParticipant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
	}
	if err := decodeBody(r, &req); err != nil {
		a.badBody(w)
		return
	}
	res, err := a.ctrl.AddParticipant(opContext(r), req.Address)
	a.respond(w, res, err)
}

func (a *API) handleContribute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount string `json:"amount"`
	}
	if err := decodeBody(r, &req); err != nil {
		a.badBody(w)
		return
	}
	res, err := a.ctrl.Contribute(opContext(r), req.Amount)
	a.respond(w, res, err)
}

func (a *API) handleSettle(w http.ResponseWriter, r *http.Request) {
	res, err := a.ctrl.Settle(opContext(r))
	a.respond(w, res, err)
}
