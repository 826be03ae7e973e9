package token

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/code-payments/token-lifecycle/pkg/lifecycle"
	"github.com/code-payments/token-lifecycle/pkg/wallet"
)

const (
	successJsonKey = "success"
	errorJsonKey   = "error"
)

type GenericApiResponseBody map[string]any

func NewGenericApiSuccessResponseBody() GenericApiResponseBody {
	return map[string]any{
		successJsonKey: true,
	}
}

func NewGenericApiFailureResponseBody(err error) GenericApiResponseBody {
	return map[string]any{
		successJsonKey: false,
		errorJsonKey:   err.Error(),
	}
}

func (b *GenericApiResponseBody) ToString() string {
	marshalled, _ := json.Marshal(b)
	return string(marshalled)
}

// HandleRejectionInWebContext maps a rejected operation's precondition error
// to a status code.
func HandleRejectionInWebContext(err error) int {
	switch err {
	case wallet.ErrWalletNotConnected:
		return http.StatusUnauthorized
	case lifecycle.ErrMintNotSet, lifecycle.ErrMintAlreadyCreated:
		return http.StatusConflict
	case lifecycle.ErrAirdropNotSupported:
		return http.StatusForbidden
	case lifecycle.ErrAirdropRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadRequest
	}
}

// 10^19 is the largest power of ten that fits in a uint64.
const maxDisplayDecimals = 19

var errAmountOverflow = errors.New("amount cannot be displayed")

// FormatQuarks renders a base unit amount as a whole token amount with
// grouping, ie: 1234500000000 with 9 decimals is "1,234.500000000". Only the
// whole part goes through the printer, so no precision is lost.
func FormatQuarks(quarks uint64, decimals uint8) (string, error) {
	if decimals > maxDisplayDecimals {
		return "", errAmountOverflow
	}

	scale := uint64(1)
	for i := uint8(0); i < decimals; i++ {
		scale *= 10
	}

	printer := message.NewPrinter(language.English)
	whole := printer.Sprint(number.Decimal(quarks / scale))
	if decimals == 0 {
		return whole, nil
	}
	return fmt.Sprintf("%s.%0*d", whole, int(decimals), quarks%scale), nil
}
