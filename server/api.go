package server

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/omniward/omniward/accessmgmt"
	"github.com/omniward/omniward/store"
	"github.com/omniward/omniward/types"
)

// callerHeader attributes an operator API request to an account. Requests
// without the header act as the configured admin, the API listener is assumed
// to sit behind operator-only network access.
const callerHeader = "X-Omniward-Caller"

func (s *Server) setupAPI() error {
	addr := s.config.APIAddr
	if addr == "" {
		addr = DefaultAPIAddr
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/settings", s.handleSettings)
	mux.HandleFunc("/wrapped", s.handleWrapped)
	mux.HandleFunc("/roles/grant", s.handleRoleGrant)
	mux.HandleFunc("/roles/revoke", s.handleRoleRevoke)
	mux.HandleFunc("/roles/bind", s.handleRoleBind)
	mux.HandleFunc("/messages/pending", s.handlePendingMessages)
	mux.HandleFunc("/messages/execute", s.handleExecuteMessages)
	mux.HandleFunc("/automation", s.handleAutomation)
	mux.HandleFunc("/automation/interval", s.handleAutomationInterval)
	mux.HandleFunc("/automation/limit", s.handleAutomationLimit)
	mux.HandleFunc("/apps", s.handleApps)
	mux.HandleFunc("/collections", s.handleCollections)
	mux.HandleFunc("/tokens", s.handleTokens)
	mux.HandleFunc("/transfers", s.handleTransfers)
	mux.HandleFunc("/audit", s.handleAudit)

	s.apiServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 60 * time.Second,
	}

	go func() {
		if err := s.apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("operator api server error", "err", err)
		}
	}()

	s.logger.Info("operator api started", "addr", addr)

	return nil
}

func (s *Server) caller(r *http.Request) (types.Address, error) {
	raw := r.Header.Get(callerHeader)
	if raw == "" {
		return s.config.Admin, nil
	}

	var addr types.Address
	if err := addr.UnmarshalText([]byte(raw)); err != nil {
		return types.ZeroAddress, fmt.Errorf("malformed %s header: %w", callerHeader, err)
	}

	return addr, nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func readJSON(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, err)

		return false
	}

	return true
}

func parseRamp(raw string) (store.RampType, error) {
	switch strings.ToLower(raw) {
	case "onramp", "0", "":
		return store.OnRamp, nil
	case "offramp", "1":
		return store.OffRamp, nil
	default:
		return store.OnRamp, fmt.Errorf("unknown ramp type %q", raw)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	pending, err := s.adp.PendingMessageCount()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)

		return
	}

	auto, err := s.adp.GetAutomationState()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"chainId":         s.config.ChainID,
		"routerChainId":   s.config.RouterChainID,
		"feeTokenEnabled": s.config.FeeTokenEnabled,
		"pendingMessages": pending,
		"automation":      auto,
	})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ramp, err := parseRamp(r.URL.Query().Get("ramp"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)

			return
		}

		if rawChain := r.URL.Query().Get("chain"); rawChain != "" {
			chainID, err := strconv.ParseUint(rawChain, 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)

				return
			}

			setting, err := s.bridge.GetChainSetting(chainID, ramp)
			if err != nil {
				writeError(w, http.StatusNotFound, err)

				return
			}

			writeJSON(w, http.StatusOK, setting)

			return
		}

		settings, err := s.bridge.ChainSettings()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)

			return
		}

		writeJSON(w, http.StatusOK, settings)
	case http.MethodPost:
		caller, err := s.caller(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)

			return
		}

		var req struct {
			EvmChainID    uint64        `json:"evmChainId"`
			RouterChainID uint64        `json:"routerChainId"`
			Adapter       types.Address `json:"adapter"`
			Ramp          string        `json:"ramp"`
			Enabled       bool          `json:"enabled"`
			GasLimit      uint64        `json:"gasLimit"`
		}

		if !readJSON(w, r, &req) {
			return
		}

		ramp, err := parseRamp(req.Ramp)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)

			return
		}

		setting := &store.ChainSetting{
			EvmChainID:    req.EvmChainID,
			RouterChainID: req.RouterChainID,
			Adapter:       req.Adapter,
			Ramp:          ramp,
			Enabled:       req.Enabled,
			GasLimit:      req.GasLimit,
		}

		if err := s.bridge.SetChainSetting(caller, setting); err != nil {
			writeError(w, http.StatusForbidden, err)

			return
		}

		writeJSON(w, http.StatusOK, setting)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleWrapped(w http.ResponseWriter, r *http.Request) {
	chainID, err := strconv.ParseUint(r.URL.Query().Get("chain"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	var origin types.Address
	if err := origin.UnmarshalText([]byte(r.URL.Query().Get("origin"))); err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	record, err := s.bridge.GetWrappedAsset(chainID, origin)
	if err != nil {
		writeError(w, http.StatusNotFound, err)

		return
	}

	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleRoleGrant(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)

		return
	}

	caller, err := s.caller(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	var req struct {
		Role         uint64        `json:"role"`
		Account      types.Address `json:"account"`
		DelaySeconds int64         `json:"delaySeconds"`
	}

	if !readJSON(w, r, &req) {
		return
	}

	err = s.access.GrantRole(caller, accessmgmt.Role(req.Role), req.Account,
		secondsToDuration(req.DelaySeconds))
	if err != nil {
		writeError(w, http.StatusForbidden, err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"result": "granted"})
}

func (s *Server) handleRoleRevoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)

		return
	}

	caller, err := s.caller(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	var req struct {
		Role    uint64        `json:"role"`
		Account types.Address `json:"account"`
	}

	if !readJSON(w, r, &req) {
		return
	}

	if err := s.access.RevokeRole(caller, accessmgmt.Role(req.Role), req.Account); err != nil {
		writeError(w, http.StatusForbidden, err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"result": "revoked"})
}

func (s *Server) handleRoleBind(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)

		return
	}

	caller, err := s.caller(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	var req struct {
		Target types.Address `json:"target"`
		Func   uint8         `json:"func"`
		Role   uint64        `json:"role"`
	}

	if !readJSON(w, r, &req) {
		return
	}

	err = s.access.SetTargetFunctionRole(caller, req.Target,
		accessmgmt.FuncID(req.Func), accessmgmt.Role(req.Role))
	if err != nil {
		writeError(w, http.StatusForbidden, err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"result": "bound"})
}

func (s *Server) handlePendingMessages(w http.ResponseWriter, r *http.Request) {
	count, err := s.adp.PendingMessageCount()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)

		return
	}

	limit := uint64(20)
	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		if limit, err = strconv.ParseUint(rawLimit, 10, 64); err != nil {
			writeError(w, http.StatusBadRequest, err)

			return
		}
	}

	messages := []*store.QueuedMessage{}

	for i := uint64(0); i < limit && i < count; i++ {
		msg, err := s.adp.GetPendingMessage(i)
		if err != nil {
			break
		}

		messages = append(messages, msg)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":    count,
		"messages": messages,
	})
}

func (s *Server) handleExecuteMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)

		return
	}

	caller, err := s.caller(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	var req struct {
		Limit uint64 `json:"limit"`
	}

	if !readJSON(w, r, &req) {
		return
	}

	executed, err := s.adp.ExecuteMessages(caller, req.Limit)
	if err != nil {
		writeError(w, http.StatusConflict, err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"executed": len(executed),
		"messages": executed,
	})
}

func (s *Server) handleAutomation(w http.ResponseWriter, r *http.Request) {
	auto, err := s.adp.GetAutomationState()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)

		return
	}

	writeJSON(w, http.StatusOK, auto)
}

func (s *Server) handleAutomationInterval(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)

		return
	}

	caller, err := s.caller(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	var req struct {
		Seconds int64 `json:"seconds"`
	}

	if !readJSON(w, r, &req) {
		return
	}

	if err := s.adp.SetUpdateInterval(caller, secondsToDuration(req.Seconds)); err != nil {
		writeError(w, http.StatusForbidden, err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"result": "updated"})
}

func (s *Server) handleAutomationLimit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)

		return
	}

	caller, err := s.caller(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	var req struct {
		Limit uint64 `json:"limit"`
	}

	if !readJSON(w, r, &req) {
		return
	}

	if err := s.adp.SetDefaultExecutionLimit(caller, req.Limit); err != nil {
		writeError(w, http.StatusForbidden, err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"result": "updated"})
}

func (s *Server) handleApps(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if id := r.URL.Query().Get("id"); id != "" {
			app, err := s.hub.Lookup(id)
			if err != nil {
				writeError(w, http.StatusNotFound, err)

				return
			}

			writeJSON(w, http.StatusOK, app)

			return
		}

		apps, err := s.hub.Apps()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)

			return
		}

		writeJSON(w, http.StatusOK, apps)
	case http.MethodPost:
		var req struct {
			Address types.Address `json:"address"`
			Type    string        `json:"type"`
		}

		if !readJSON(w, r, &req) {
			return
		}

		caller, err := s.caller(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)

			return
		}

		app, err := s.hub.CreateApp(caller, req.Address, req.Type)
		if err != nil {
			writeError(w, http.StatusConflict, err)

			return
		}

		writeJSON(w, http.StatusOK, app)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCollections(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var address types.Address
		if err := address.UnmarshalText([]byte(r.URL.Query().Get("address"))); err != nil {
			writeError(w, http.StatusBadRequest, err)

			return
		}

		coll, err := s.vault.GetCollection(address, nil)
		if err != nil {
			writeError(w, http.StatusNotFound, err)

			return
		}

		writeJSON(w, http.StatusOK, coll)
	case http.MethodPost:
		caller, err := s.caller(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)

			return
		}

		var req struct {
			Address types.Address `json:"address"`
			Name    string        `json:"name"`
			Symbol  string        `json:"symbol"`
		}

		if !readJSON(w, r, &req) {
			return
		}

		if err := s.vault.CreateCollection(caller, req.Address, req.Name, req.Symbol, nil); err != nil {
			writeError(w, http.StatusConflict, err)

			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"result": "created"})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var collection types.Address
		if err := collection.UnmarshalText([]byte(r.URL.Query().Get("collection"))); err != nil {
			writeError(w, http.StatusBadRequest, err)

			return
		}

		tokenID, err := strconv.ParseUint(r.URL.Query().Get("id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)

			return
		}

		token, err := s.vault.GetToken(collection, tokenID, nil)
		if err != nil {
			writeError(w, http.StatusNotFound, err)

			return
		}

		writeJSON(w, http.StatusOK, token)
	case http.MethodPost:
		caller, err := s.caller(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)

			return
		}

		var req struct {
			Collection types.Address `json:"collection"`
			TokenID    uint64        `json:"tokenId"`
			Owner      types.Address `json:"owner"`
			URI        string        `json:"uri"`
		}

		if !readJSON(w, r, &req) {
			return
		}

		if err := s.vault.Mint(caller, req.Collection, req.TokenID, req.Owner, req.URI, nil); err != nil {
			writeError(w, http.StatusConflict, err)

			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"result": "minted"})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleTransfers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)

		return
	}

	caller, err := s.caller(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	var req struct {
		ToChainID  uint64        `json:"toChainId"`
		Collection types.Address `json:"collection"`
		TokenID    uint64        `json:"tokenId"`
		Fee        string        `json:"fee"`
	}

	if !readJSON(w, r, &req) {
		return
	}

	var result interface{}

	if s.config.FeeTokenEnabled {
		result, err = s.bridge.SendERC721UsingFeeToken(caller, req.ToChainID, req.Collection, req.TokenID)
	} else {
		fee, ok := new(big.Int).SetString(req.Fee, 10)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Errorf("malformed fee amount %q", req.Fee))

			return
		}

		result, err = s.bridge.SendERC721(caller, req.ToChainID, req.Collection, req.TokenID, fee)
	}

	if err != nil {
		writeError(w, http.StatusConflict, err)

		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)

			return
		}

		limit = parsed
	}

	events, err := s.state.AuditEvents(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)

		return
	}

	writeJSON(w, http.StatusOK, events)
}
