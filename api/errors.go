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

package api

import (
	"errors"
	"net/http"

	"github.com/blinklabs-io/ballot/address"
	"github.com/blinklabs-io/ballot/database/types"
	"github.com/blinklabs-io/ballot/ledger"
)

var errorStatuses = []struct {
	err    error
	status int
}{
	{ledger.ErrNotFound, http.StatusNotFound},
	{ledger.ErrAlreadyExists, http.StatusConflict},
	{ledger.ErrAlreadyVoted, http.StatusConflict},
	// Also matches ErrAlreadyFinalized
	{ledger.ErrProposalClosed, http.StatusConflict},
	{ledger.ErrTooManyVoters, http.StatusConflict},
	{ledger.ErrUnauthorized, http.StatusForbidden},
	{ledger.ErrAirdropDisabled, http.StatusForbidden},
	{ledger.ErrInsufficientFunds, http.StatusPaymentRequired},
	{ledger.ErrVoterListMismatch, http.StatusBadRequest},
	{ledger.ErrDescriptionRequired, http.StatusBadRequest},
	{ledger.ErrDescriptionTooLong, http.StatusBadRequest},
	{ledger.ErrInvalidAmount, http.StatusBadRequest},
	{address.ErrInvalidAddress, http.StatusBadRequest},
	{ErrInvalidPaginationParameters, http.StatusBadRequest},
	{ledger.ErrOverflow, http.StatusUnprocessableEntity},
	{ErrInvalidSignature, http.StatusUnauthorized},
	// Every retry lost its commit race
	{types.ErrTxnConflict, http.StatusServiceUnavailable},
}

// errorStatus returns the HTTP status for err
func errorStatus(err error) int {
	for _, item := range errorStatuses {
		if errors.Is(err, item.err) {
			return item.status
		}
	}
	return http.StatusInternalServerError
}

// writeAPIError writes err with its mapped status. Internal errors are
// logged and not exposed.
func (a *API) writeAPIError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		a.logger.Error(
			"request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		message = "internal server error"
	}
	writeError(w, status, http.StatusText(status), message)
}
