// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package httpapi implements the read-only query surface of spec.md §6.3: a
// thin chi router over the store, never touching the cache or engine.
package httpapi

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/bitapeslabs/dunes-indexer/internal/common"
	"github.com/bitapeslabs/dunes-indexer/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

var protocolIDPattern = regexp.MustCompile(`^[0-9]+:[0-9]+$`)

// Server exposes the HTTP query surface backed by st.
type Server struct {
	st  store.Store
	log *zap.SugaredLogger
}

func New(st store.Store, log *zap.SugaredLogger) *Server {
	return &Server{st: st, log: log}
}

// Router builds the chi mux for the five routes of spec.md §6.3.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.loggerMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/utxo/{txidvout}", s.handleUtxo)
	r.Get("/utxo/{txidvout}/{duneProtocolID}", s.handleUtxo)
	r.Get("/address/{addr}", s.handleAddress)
	r.Get("/address/{addr}/{duneProtocolID}", s.handleAddress)
	r.Get("/snapshot/{start}/{end}/address/{addr}", s.handleSnapshot)
	r.Get("/snapshot/{start}/{end}/address/{addr}/{duneProtocolID}", s.handleSnapshot)
	return r
}

func (s *Server) loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.log.Debugw("http request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		v = struct{}{}
	}
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.log.Errorw("httpapi: internal error", "op", op, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

// balanceDTO is the wire shape for one dune balance line.
type balanceDTO struct {
	DuneProtocolID string `json:"dune_protocol_id"`
	Name           string `json:"name"`
	Amount         string `json:"amount"`
}

// parseTxidVout splits the "<txid>:<vout>" path segment spec.md §6.3 uses
// for UTXO identity.
func parseTxidVout(s string) (txid string, vout uint32, ok bool) {
	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return "", 0, false
	}
	txid = s[:idx]
	if len(txid) != 64 {
		return "", 0, false
	}
	n, err := strconv.ParseUint(s[idx+1:], 10, 32)
	if err != nil {
		return "", 0, false
	}
	return txid, uint32(n), true
}

func validProtocolID(s string) bool {
	return protocolIDPattern.MatchString(s)
}

func (s *Server) handleUtxo(w http.ResponseWriter, r *http.Request) {
	txid, vout, ok := parseTxidVout(chi.URLParam(r, "txidvout"))
	if !ok {
		badRequest(w, "malformed txid:vout")
		return
	}
	duneProtocolID := chi.URLParam(r, "duneProtocolID")
	if duneProtocolID != "" && !validProtocolID(duneProtocolID) {
		badRequest(w, "malformed dune_protocol_id")
		return
	}

	txs, err := s.st.LoadTransactionsByHashes([]string{txid})
	if err != nil {
		s.internalError(w, "LoadTransactionsByHashes", err)
		return
	}
	if len(txs) == 0 {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	utxos, err := s.st.LoadUtxosByNaturalKeys([]store.UtxoNaturalKey{{TransactionID: txs[0].ID, VoutIndex: vout}})
	if err != nil {
		s.internalError(w, "LoadUtxosByNaturalKeys", err)
		return
	}
	if len(utxos) == 0 {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	ubs, err := s.st.LoadUtxoBalancesByUtxoIDs([]int64{utxos[0].ID})
	if err != nil {
		s.internalError(w, "LoadUtxoBalancesByUtxoIDs", err)
		return
	}

	amounts := make(map[int64]common.Uint128, len(ubs))
	for _, ub := range ubs {
		amounts[ub.DuneID] = amounts[ub.DuneID].MustAdd(ub.Balance)
	}

	var targetDune *string
	if duneProtocolID != "" {
		targetDune = &duneProtocolID
	}
	out, err := s.dunesToBalanceDTOs(amounts, targetDune)
	if err != nil {
		s.internalError(w, "dune lookup", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddress(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "addr")
	if addr == "" {
		badRequest(w, "malformed address")
		return
	}
	duneProtocolID := chi.URLParam(r, "duneProtocolID")
	if duneProtocolID != "" && !validProtocolID(duneProtocolID) {
		badRequest(w, "malformed dune_protocol_id")
		return
	}

	addrs, err := s.st.LoadAddressesByStrings([]string{addr})
	if err != nil {
		s.internalError(w, "LoadAddressesByStrings", err)
		return
	}
	if len(addrs) == 0 {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	bals, err := s.st.LoadBalancesByAddressIDs([]int64{addrs[0].ID})
	if err != nil {
		s.internalError(w, "LoadBalancesByAddressIDs", err)
		return
	}
	amounts := make(map[int64]common.Uint128, len(bals))
	for _, b := range bals {
		amounts[b.DuneID] = b.Balance
	}

	var targetDune *string
	if duneProtocolID != "" {
		targetDune = &duneProtocolID
	}
	out, err := s.dunesToBalanceDTOs(amounts, targetDune)
	if err != nil {
		s.internalError(w, "dune lookup", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	start, errStart := strconv.ParseInt(chi.URLParam(r, "start"), 10, 64)
	end, errEnd := strconv.ParseInt(chi.URLParam(r, "end"), 10, 64)
	if errStart != nil || errEnd != nil || start > end {
		badRequest(w, "malformed block range")
		return
	}
	addr := chi.URLParam(r, "addr")
	if addr == "" {
		badRequest(w, "malformed address")
		return
	}
	duneProtocolID := chi.URLParam(r, "duneProtocolID")
	if duneProtocolID != "" && !validProtocolID(duneProtocolID) {
		badRequest(w, "malformed dune_protocol_id")
		return
	}

	addrs, err := s.st.LoadAddressesByStrings([]string{addr})
	if err != nil {
		s.internalError(w, "LoadAddressesByStrings", err)
		return
	}
	if len(addrs) == 0 {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	utxos, err := s.st.LoadUtxosForSnapshot(addrs[0].ID, end)
	if err != nil {
		s.internalError(w, "LoadUtxosForSnapshot", err)
		return
	}
	amounts := make(map[int64]common.Uint128)
	for _, u := range utxos {
		if u.BlockCreated < start {
			continue
		}
		ubs, err := s.st.LoadUtxoBalancesByUtxoIDs([]int64{u.ID})
		if err != nil {
			s.internalError(w, "LoadUtxoBalancesByUtxoIDs", err)
			return
		}
		for _, ub := range ubs {
			amounts[ub.DuneID] = amounts[ub.DuneID].MustAdd(ub.Balance)
		}
	}

	var targetDune *string
	if duneProtocolID != "" {
		targetDune = &duneProtocolID
	}
	out, err := s.dunesToBalanceDTOs(amounts, targetDune)
	if err != nil {
		s.internalError(w, "dune lookup", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) dunesToBalanceDTOs(amounts map[int64]common.Uint128, onlyProtocolID *string) ([]balanceDTO, error) {
	if len(amounts) == 0 {
		return nil, nil
	}
	ids := make([]int64, 0, len(amounts))
	for id := range amounts {
		ids = append(ids, id)
	}
	dunes, err := s.st.LoadDunesByIDs(ids)
	if err != nil {
		return nil, err
	}
	out := make([]balanceDTO, 0, len(dunes))
	for _, d := range dunes {
		amt := amounts[d.ID]
		if amt.IsZero() {
			continue
		}
		if onlyProtocolID != nil && d.DuneProtocolID != *onlyProtocolID {
			continue
		}
		out = append(out, balanceDTO{DuneProtocolID: d.DuneProtocolID, Name: d.Name, Amount: amt.String()})
	}
	return out, nil
}
