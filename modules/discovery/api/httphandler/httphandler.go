package httphandler

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/veil-network/pool-scanner/common"
	"github.com/veil-network/pool-scanner/common/errs"
	"github.com/veil-network/pool-scanner/modules/discovery/datagateway"
	"github.com/veil-network/pool-scanner/modules/discovery/internal/entity"
)

type HttpHandler struct {
	dg       datagateway.DiscoveryReaderDataGateway
	decimals uint8
}

func New(dg datagateway.DiscoveryReaderDataGateway, decimals uint8) *HttpHandler {
	return &HttpHandler{
		dg:       dg,
		decimals: decimals,
	}
}

type HttpResponse[T any] struct {
	Error  *string `json:"error"`
	Result *T      `json:"result,omitempty"`
}

func validateScopeParams(identity, pool string) error {
	var errList []error
	if identity == "" {
		errList = append(errList, errors.New("'identity' is required"))
	}
	if pool != "" && !common.Pool(pool).IsValid() {
		errList = append(errList, errors.New("'pool' is not a valid pool address"))
	}
	return errs.WithPublicMessage(errors.Join(errList...), "validation error")
}

// getStates returns the persisted states for the identity, narrowed to one
// pool when given. Returns errs.NotFound when nothing has been persisted.
func (h *HttpHandler) getStates(ctx context.Context, identity common.Identity, pool common.Pool) ([]entity.DiscoveryState, error) {
	if pool != "" {
		state, err := h.dg.GetDiscoveryState(ctx, identity, pool)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		return []entity.DiscoveryState{state}, nil
	}
	states, err := h.dg.GetDiscoveryStates(ctx, identity)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(states) == 0 {
		return nil, errors.WithStack(errs.NotFound)
	}
	return states, nil
}
