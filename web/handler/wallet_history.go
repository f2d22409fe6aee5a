package handler

import (
	"errors"
	"net/http"

	"github.com/screwyprof/oppfeed/feed"
	"github.com/screwyprof/oppfeed/pkg/httpkit"
	"github.com/screwyprof/oppfeed/web/api"
	"github.com/screwyprof/oppfeed/web/handler/bind"
)

const DeleteWalletHistoryRoute = http.MethodDelete + " " + "/v1/wallets/{address}/history"

var ErrWalletRequired = errors.New("wallet address is required")

// HistoryInvalidator drops any cached history of a wallet
type HistoryInvalidator interface {
	Invalidate(wallet string)
}

// DeleteWalletHistory lets the activity pipeline force a fresh history read after
// a wallet completes or saves something.
type DeleteWalletHistory struct {
	invalidator HistoryInvalidator
}

func NewDeleteWalletHistory(invalidator HistoryInvalidator) *DeleteWalletHistory {
	return &DeleteWalletHistory{
		invalidator: invalidator,
	}
}

func (h *DeleteWalletHistory) AddRoutes(m *http.ServeMux) {
	m.Handle(DeleteWalletHistoryRoute, httpkit.HandlerFunc(h.DeleteWalletHistory))
}

func (h *DeleteWalletHistory) DeleteWalletHistory(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	wallet := feed.NormalizeWallet(r.PathValue("address"))
	if wallet == "" {
		return httpkit.JsonError(api.BadRequest(errors.Join(feed.ErrInvalidFilter, ErrWalletRequired)))
	}
	if len(wallet) > bind.MaxWalletLength {
		return httpkit.JsonError(api.BadRequest(bind.ErrWalletTooLong))
	}

	h.invalidator.Invalidate(wallet)

	return httpkit.NoContent()
}
