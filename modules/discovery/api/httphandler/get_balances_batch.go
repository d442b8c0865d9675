package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"

	"github.com/veil-network/pool-scanner/common"
	"github.com/veil-network/pool-scanner/common/errs"
)

type getBalancesQuery struct {
	Identity string `json:"identity"`
	Pool     string `json:"pool"`
}

type getBalancesBatchRequest struct {
	Queries []getBalancesQuery `json:"queries"`
}

const getBalancesBatchMaxQueries = 100

func (r getBalancesBatchRequest) Validate() error {
	var errList []error
	if len(r.Queries) == 0 {
		errList = append(errList, errors.New("at least one query is required"))
	}
	if len(r.Queries) > getBalancesBatchMaxQueries {
		errList = append(errList, errors.Errorf("cannot exceed %d queries", getBalancesBatchMaxQueries))
	}
	for i, query := range r.Queries {
		if query.Identity == "" {
			errList = append(errList, errors.Errorf("queries[%d]: 'identity' is required", i))
		}
		if query.Pool != "" && !common.Pool(query.Pool).IsValid() {
			errList = append(errList, errors.Errorf("queries[%d]: 'pool' is not a valid pool address", i))
		}
	}
	return errs.WithPublicMessage(errors.Join(errList...), "validation error")
}

type getBalancesBatchResult struct {
	List []*getBalancesResult `json:"list"`
}

type getBalancesBatchResponse = HttpResponse[getBalancesBatchResult]

func (h *HttpHandler) GetBalancesBatch(ctx *fiber.Ctx) (err error) {
	var req getBalancesBatchRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errors.WithStack(err)
	}
	if err := req.Validate(); err != nil {
		return errors.WithStack(err)
	}

	results := make([]*getBalancesResult, len(req.Queries))
	eg, ectx := errgroup.WithContext(ctx.UserContext())
	for i, query := range req.Queries {
		i := i
		query := query
		eg.Go(func() error {
			result, err := h.balancesForScope(ectx, common.Identity(query.Identity), common.Pool(query.Pool))
			if err != nil {
				if errors.Is(err, errs.NotFound) {
					// absent scopes yield an empty balance list, not an error
					results[i] = &getBalancesResult{Identity: common.Identity(query.Identity), List: nil}
					return nil
				}
				return errors.Wrapf(err, "error during balancesForScope for query %d", i)
			}
			results[i] = result
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return errors.WithStack(err)
	}

	resp := getBalancesBatchResponse{
		Result: &getBalancesBatchResult{
			List: results,
		},
	}
	return errors.WithStack(ctx.JSON(resp))
}
