package handler

import (
	"context"
	"net/http"

	"github.com/screwyprof/oppfeed/feed"
	"github.com/screwyprof/oppfeed/pkg/httpkit"
	"github.com/screwyprof/oppfeed/web/api"
	"github.com/screwyprof/oppfeed/web/handler/bind"
)

const GetOpportunitiesRoute = http.MethodGet + " " + "/v1/opportunities"

// FeedPager serves one page of the discovery feed
type FeedPager interface {
	Page(ctx context.Context, req feed.Request) (*feed.Page, error)
}

type GetOpportunities struct {
	pager FeedPager
}

func NewGetOpportunities(pager FeedPager) *GetOpportunities {
	return &GetOpportunities{
		pager: pager,
	}
}

func (h *GetOpportunities) AddRoutes(m *http.ServeMux) {
	m.Handle(GetOpportunitiesRoute, httpkit.HandlerFunc(h.GetOpportunities))
}

func (h *GetOpportunities) GetOpportunities(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	req, err := bind.GetOpportunitiesRequest(r)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	feedReq, err := bind.FeedRequest(req)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	page, err := h.pager.Page(r.Context(), feedReq)
	if err != nil {
		return httpkit.JsonError(api.Wrap(err))
	}

	// Pages are per wallet and per snapshot
	w.Header().Set("Cache-Control", "private, no-store")

	return httpkit.JSON(bind.GetOpportunitiesResponse(page))
}
