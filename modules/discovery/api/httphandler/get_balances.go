package httphandler

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/uint128"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/veil-network/pool-scanner/common"
	"github.com/veil-network/pool-scanner/common/errs"
	"github.com/veil-network/pool-scanner/pkg/decimals"
)

type getBalancesRequest struct {
	Identity string `params:"identity"`
	Pool     string `query:"pool"`
}

func (r getBalancesRequest) Validate() error {
	return validateScopeParams(r.Identity, r.Pool)
}

type poolBalance struct {
	Pool       common.Pool     `json:"pool"`
	Amount     uint128.Uint128 `json:"amount"`
	Display    decimal.Decimal `json:"display"`
	Decimals   uint8           `json:"decimals"`
	LiveChains int             `json:"liveChains"`
}

type getBalancesResult struct {
	Identity common.Identity `json:"identity"`
	List     []poolBalance   `json:"list"`
}

type getBalancesResponse = HttpResponse[getBalancesResult]

func (h *HttpHandler) GetBalances(ctx *fiber.Ctx) (err error) {
	var req getBalancesRequest
	if err := ctx.ParamsParser(&req); err != nil {
		return errors.WithStack(err)
	}
	if err := ctx.QueryParser(&req); err != nil {
		return errors.WithStack(err)
	}
	if err := req.Validate(); err != nil {
		return errors.WithStack(err)
	}

	result, err := h.balancesForScope(ctx.UserContext(), common.Identity(req.Identity), common.Pool(req.Pool))
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return errs.NewPublicError("no discovery state found for identity")
		}
		return errors.Wrap(err, "error during balancesForScope")
	}

	resp := getBalancesResponse{Result: result}
	return errors.WithStack(ctx.JSON(resp))
}

func (h *HttpHandler) balancesForScope(ctx context.Context, identity common.Identity, pool common.Pool) (*getBalancesResult, error) {
	states, err := h.getStates(ctx, identity, pool)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	list := make([]poolBalance, 0, len(states))
	for _, state := range states {
		total := uint128.Zero
		liveChains := 0
		for _, chain := range state.Chains {
			total = total.Add(chain.Balance())
			if chain.IsLive() {
				liveChains++
			}
		}
		list = append(list, poolBalance{
			Pool:       state.Pool,
			Amount:     total,
			Display:    decimals.ToDecimal(total, h.decimals),
			Decimals:   h.decimals,
			LiveChains: liveChains,
		})
	}

	return &getBalancesResult{
		Identity: identity,
		List:     list,
	}, nil
}
