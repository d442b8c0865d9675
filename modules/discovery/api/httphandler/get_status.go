package httphandler

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"github.com/veil-network/pool-scanner/common"
	"github.com/veil-network/pool-scanner/common/errs"
	"github.com/veil-network/pool-scanner/modules/discovery/internal/entity"
)

type getStatusRequest struct {
	Identity string `params:"identity"`
	Pool     string `query:"pool"`
}

func (r getStatusRequest) Validate() error {
	return validateScopeParams(r.Identity, r.Pool)
}

type poolStatus struct {
	Pool          common.Pool `json:"pool"`
	Cursor        string      `json:"cursor"`
	LastUsedIndex int64       `json:"lastUsedIndex"`
	Chains        int         `json:"chains"`
	LiveChains    int         `json:"liveChains"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

type getStatusResult struct {
	Identity common.Identity `json:"identity"`
	Pools    []poolStatus    `json:"pools"`
}

type getStatusResponse = HttpResponse[getStatusResult]

func (h *HttpHandler) GetStatus(ctx *fiber.Ctx) (err error) {
	var req getStatusRequest
	if err := ctx.ParamsParser(&req); err != nil {
		return errors.WithStack(err)
	}
	if err := ctx.QueryParser(&req); err != nil {
		return errors.WithStack(err)
	}
	if err := req.Validate(); err != nil {
		return errors.WithStack(err)
	}

	states, err := h.getStates(ctx.UserContext(), common.Identity(req.Identity), common.Pool(req.Pool))
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return errs.NewPublicError("no discovery state found for identity")
		}
		return errors.Wrap(err, "error during getStates")
	}

	pools := lo.Map(states, func(state entity.DiscoveryState, _ int) poolStatus {
		liveChains := lo.CountBy(state.Chains, func(chain entity.NoteChain) bool {
			return chain.IsLive()
		})
		return poolStatus{
			Pool:          state.Pool,
			Cursor:        state.Cursor,
			LastUsedIndex: state.LastUsedIndex,
			Chains:        len(state.Chains),
			LiveChains:    liveChains,
			UpdatedAt:     state.UpdatedAt,
		}
	})

	resp := getStatusResponse{
		Result: &getStatusResult{
			Identity: common.Identity(req.Identity),
			Pools:    pools,
		},
	}
	return errors.WithStack(ctx.JSON(resp))
}
