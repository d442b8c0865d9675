package httphandler

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/uint128"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"github.com/veil-network/pool-scanner/common"
	"github.com/veil-network/pool-scanner/common/errs"
	"github.com/veil-network/pool-scanner/modules/discovery/internal/entity"
)

type getChainsRequest struct {
	Identity string `params:"identity"`
	Pool     string `query:"pool"`
	OnlyLive bool   `query:"onlyLive"`
}

func (r getChainsRequest) Validate() error {
	return validateScopeParams(r.Identity, r.Pool)
}

type noteTx struct {
	Hash        common.Hash `json:"hash"`
	BlockNumber uint64      `json:"blockNumber"`
	Timestamp   time.Time   `json:"timestamp"`
}

type note struct {
	ChangeIndex uint64            `json:"changeIndex"`
	Amount      uint128.Uint128   `json:"amount"`
	Status      entity.NoteStatus `json:"status"`
	Tx          noteTx            `json:"tx"`
}

type noteChain struct {
	Pool         common.Pool     `json:"pool"`
	DepositIndex uint64          `json:"depositIndex"`
	Label        common.Hash     `json:"label"`
	Live         bool            `json:"live"`
	Balance      uint128.Uint128 `json:"balance"`
	Notes        []note          `json:"notes"`
}

type getChainsResult struct {
	Identity common.Identity `json:"identity"`
	Chains   []noteChain     `json:"chains"`
}

type getChainsResponse = HttpResponse[getChainsResult]

func (h *HttpHandler) GetChains(ctx *fiber.Ctx) (err error) {
	var req getChainsRequest
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

	chains := make([]noteChain, 0)
	for _, state := range states {
		for _, chain := range state.Chains {
			if req.OnlyLive && !chain.IsLive() {
				continue
			}
			chains = append(chains, noteChain{
				Pool:         state.Pool,
				DepositIndex: chain.DepositIndex(),
				Label:        chain[0].Label,
				Live:         chain.IsLive(),
				Balance:      chain.Balance(),
				Notes: lo.Map(chain, func(n entity.Note, _ int) note {
					return note{
						ChangeIndex: n.ChangeIndex,
						Amount:      n.Amount,
						Status:      n.Status,
						Tx: noteTx{
							Hash:        n.Tx.Hash,
							BlockNumber: n.Tx.BlockNumber,
							Timestamp:   n.Tx.Timestamp,
						},
					}
				}),
			})
		}
	}

	resp := getChainsResponse{
		Result: &getChainsResult{
			Identity: common.Identity(req.Identity),
			Chains:   chains,
		},
	}
	return errors.WithStack(ctx.JSON(resp))
}
