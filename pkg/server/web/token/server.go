// Package token exposes the token lifecycle orchestrator as JSON endpoints.
package token

import (
	"context"
	"crypto/ed25519"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/token-lifecycle/pkg/data/operation"
	"github.com/code-payments/token-lifecycle/pkg/database/query"
	"github.com/code-payments/token-lifecycle/pkg/lifecycle"
	"github.com/code-payments/token-lifecycle/pkg/notify/memory"
	"github.com/code-payments/token-lifecycle/pkg/solana"
	"github.com/code-payments/token-lifecycle/pkg/wallet"
)

const (
	v1PathPrefix = "/v1"

	v1StatePath            = v1PathPrefix + "/state"
	v1HistoryPath          = v1PathPrefix + "/history"
	v1TokenPathPrefix      = v1PathPrefix + "/token/"
	v1WalletConnectPath    = v1PathPrefix + "/wallet/connect"
	v1WalletDisconnectPath = v1PathPrefix + "/wallet/disconnect"
	v1WalletAirdropPath    = v1PathPrefix + "/wallet/airdrop"

	contentTypeHeaderName      = "content-type"
	jsonContentTypeHeaderValue = "application/json"

	defaultHistoryLimit = 25
	maxHistoryLimit     = 100

	recentNotificationLimit = 5
)

var (
	errPostExpected = errors.New("http post expected")
	errGetExpected  = errors.New("http get expected")
)

type Server struct {
	log *logrus.Entry

	orchestrator *lifecycle.Orchestrator
	connector    wallet.Connector
	notifier     *memory.Notifier
	history      operation.Store
}

// NewTokenServer returns a Server for orchestrator. The connector may be nil
// when the wallet cannot be connected or disconnected at runtime.
func NewTokenServer(
	orchestrator *lifecycle.Orchestrator,
	connector wallet.Connector,
	notifier *memory.Notifier,
	history operation.Store,
) *Server {
	return &Server{
		log:          logrus.StandardLogger().WithField("type", "token/server"),
		orchestrator: orchestrator,
		connector:    connector,
		notifier:     notifier,
		history:      history,
	}
}

func (s *Server) stateHandler(path string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		log := s.log.WithField("path", path)

		statusCode, body := func() (int, GenericApiResponseBody) {
			ctx := r.Context()

			if r.Method != http.MethodGet {
				return http.StatusBadRequest, NewGenericApiFailureResponseBody(errGetExpected)
			}

			owner, connected := s.orchestrator.Owner()
			mint, minted := s.orchestrator.Mint()

			respBody := NewGenericApiSuccessResponseBody()
			respBody["wallet"] = s.walletState(ctx, log, owner, connected)
			respBody["mint"] = nil
			if minted {
				respBody["mint"] = map[string]any{
					"address": base58.Encode(mint),
					"label":   solana.FormatAddress(mint),
				}
			}

			counterparty, err := s.orchestrator.Counterparty(ctx)
			if err == nil {
				respBody["counterparty"] = solana.FormatAddress(counterparty)
			} else {
				log.WithError(err).Warn("invalid counterparty configured")
			}

			actions := make(map[string]bool)
			for op := lifecycle.OperationCreateToken; op <= lifecycle.OperationCloseTokenAccount; op++ {
				actions[op.String()] = connected && (minted != (op == lifecycle.OperationCreateToken))
			}
			respBody["actions"] = actions

			if connected && minted {
				respBody["token_balance"] = s.tokenBalance(ctx, log)
			}

			respBody["notifications"] = s.recentNotifications()
			return http.StatusOK, respBody
		}()

		writeResponse(log, w, statusCode, body)
	}
}

func (s *Server) walletState(ctx context.Context, log *logrus.Entry, owner ed25519.PublicKey, connected bool) map[string]any {
	state := map[string]any{
		"connected": connected,
	}
	if !connected {
		return state
	}

	state["address"] = base58.Encode(owner)
	state["label"] = solana.FormatAddress(owner)

	lamports, err := s.orchestrator.Balance(ctx)
	if err != nil {
		log.WithError(err).Warn("failure getting wallet balance")
		return state
	}

	formatted, err := FormatQuarks(lamports, 9)
	if err == nil {
		state["sol_balance"] = formatted
	}
	return state
}

func (s *Server) tokenBalance(ctx context.Context, log *logrus.Entry) any {
	balance, err := s.orchestrator.TokenBalance(ctx)
	if err == solana.ErrNoBalance {
		return "0"
	} else if err != nil {
		log.WithError(err).Warn("failure getting token balance")
		return nil
	}

	quarks, err := balance.Quarks()
	if err != nil {
		log.WithError(err).Warn("invalid token balance")
		return nil
	}

	formatted, err := FormatQuarks(quarks, balance.Decimals)
	if err != nil {
		return nil
	}
	return formatted
}

func (s *Server) recentNotifications() []map[string]any {
	recent := s.notifier.Recent(recentNotificationLimit)

	res := make([]map[string]any, len(recent))
	for i, n := range recent {
		res[i] = map[string]any{
			"level":      n.Level.String(),
			"message":    n.Message,
			"created_at": n.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	return res
}

func (s *Server) operationHandler(path string, op lifecycle.Operation) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		log := s.log.WithFields(logrus.Fields{
			"path":      path,
			"operation": op.String(),
		})

		statusCode, body := func() (int, GenericApiResponseBody) {
			ctx := r.Context()

			if r.Method != http.MethodPost {
				return http.StatusBadRequest, NewGenericApiFailureResponseBody(errPostExpected)
			}

			var result *lifecycle.Result
			switch op {
			case lifecycle.OperationCreateToken:
				result = s.orchestrator.CreateToken(ctx)
			case lifecycle.OperationMintTokens:
				result = s.orchestrator.MintTokens(ctx)
			case lifecycle.OperationSendTokens:
				result = s.orchestrator.SendTokens(ctx)
			case lifecycle.OperationBurnTokens:
				result = s.orchestrator.BurnTokens(ctx)
			case lifecycle.OperationDelegateTokens:
				result = s.orchestrator.DelegateTokens(ctx)
			case lifecycle.OperationRevokeDelegate:
				result = s.orchestrator.RevokeDelegate(ctx)
			case lifecycle.OperationCloseTokenAccount:
				result = s.orchestrator.CloseTokenAccount(ctx)
			case lifecycle.OperationAirdrop:
				lamports, err := parseUint64Query(r, "lamports", 0)
				if err != nil {
					return http.StatusBadRequest, NewGenericApiFailureResponseBody(err)
				}
				result = s.orchestrator.Airdrop(ctx, lamports)
			default:
				return http.StatusNotFound, NewGenericApiFailureResponseBody(errors.New("unknown operation"))
			}

			return resultToResponse(result)
		}()

		writeResponse(log, w, statusCode, body)
	}
}

// resultToResponse reports the outcome of an operation. The cause of a
// failed operation is not surfaced, only its stage.
func resultToResponse(result *lifecycle.Result) (int, GenericApiResponseBody) {
	var statusCode int
	var respBody GenericApiResponseBody

	switch result.Status {
	case lifecycle.StatusSucceeded:
		statusCode = http.StatusOK
		respBody = NewGenericApiSuccessResponseBody()
	case lifecycle.StatusRejected:
		statusCode = HandleRejectionInWebContext(result.Err)
		respBody = NewGenericApiFailureResponseBody(result.Err)
	default:
		statusCode = http.StatusBadGateway
		respBody = GenericApiResponseBody{successJsonKey: false}
		respBody["stage"] = string(result.Stage)
	}

	respBody["id"] = result.Id.String()
	respBody["operation"] = result.Operation.String()
	respBody["status"] = result.Status.String()
	if result.Signature != nil {
		respBody["signature"] = result.Signature.String()
	}
	if len(result.Mint) > 0 {
		respBody["mint"] = base58.Encode(result.Mint)
	}
	if result.Amount > 0 {
		respBody["amount"] = strconv.FormatUint(result.Amount, 10)
	}
	return statusCode, respBody
}

func (s *Server) connectHandler(path string, connect bool) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		log := s.log.WithField("path", path)

		statusCode, body := func() (int, GenericApiResponseBody) {
			if r.Method != http.MethodPost {
				return http.StatusBadRequest, NewGenericApiFailureResponseBody(errPostExpected)
			}

			if s.connector == nil {
				return http.StatusNotImplemented, NewGenericApiFailureResponseBody(errors.New("wallet connection is fixed"))
			}

			if connect {
				if err := s.connector.Connect(); err != nil {
					log.WithError(err).Warn("failure connecting wallet")
					return http.StatusInternalServerError, NewGenericApiFailureResponseBody(errors.New("failed to connect wallet"))
				}
			} else {
				s.connector.Disconnect()
			}

			_, connected := s.orchestrator.Owner()

			respBody := NewGenericApiSuccessResponseBody()
			respBody["connected"] = connected
			return http.StatusOK, respBody
		}()

		writeResponse(log, w, statusCode, body)
	}
}

func (s *Server) historyHandler(path string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		log := s.log.WithField("path", path)

		statusCode, body := func() (int, GenericApiResponseBody) {
			ctx := r.Context()

			if r.Method != http.MethodGet {
				return http.StatusBadRequest, NewGenericApiFailureResponseBody(errGetExpected)
			}

			owner, ok := s.orchestrator.Owner()
			if !ok {
				return http.StatusUnauthorized, NewGenericApiFailureResponseBody(wallet.ErrWalletNotConnected)
			}

			limit, err := parseUint64Query(r, "limit", 0)
			if err != nil {
				return http.StatusBadRequest, NewGenericApiFailureResponseBody(err)
			}

			page, err := query.NewPage(
				defaultHistoryLimit,
				maxHistoryLimit,
				query.WithLimit(limit),
				query.WithDirection(query.ToOrderingWithFallback(r.URL.Query().Get("order"), query.Descending)),
				query.WithBase58Cursor(r.URL.Query().Get("cursor")),
			)
			if err != nil {
				return http.StatusBadRequest, NewGenericApiFailureResponseBody(errors.New("invalid cursor"))
			}

			records, err := s.history.GetAllByOwner(ctx, base58.Encode(owner), page.Cursor, page.Limit, page.Order)
			if err == operation.ErrNotFound {
				records = nil
			} else if err != nil {
				log.WithError(err).Warn("failure getting operation history")
				return http.StatusInternalServerError, NewGenericApiFailureResponseBody(errors.New("internal server error"))
			}

			items := make([]map[string]any, len(records))
			for i, record := range records {
				items[i] = recordToJson(record)
			}

			respBody := NewGenericApiSuccessResponseBody()
			respBody["operations"] = items
			if len(records) > 0 {
				if next, ok := page.NextCursor(len(records), records[len(records)-1].Id); ok {
					respBody["next_cursor"] = next.ToBase58()
				}
			}
			return http.StatusOK, respBody
		}()

		writeResponse(log, w, statusCode, body)
	}
}

func recordToJson(record *operation.Record) map[string]any {
	item := map[string]any{
		"id":         record.OperationId,
		"type":       record.Type.String(),
		"state":      record.State.String(),
		"created_at": record.CreatedAt.UTC().Format(time.RFC3339),
	}
	if record.Mint != nil {
		item["mint"] = *record.Mint
	}
	if record.Counterparty != nil {
		item["counterparty"] = *record.Counterparty
	}
	if record.Signature != nil {
		item["signature"] = *record.Signature
	}
	if record.Quantity > 0 {
		item["quantity"] = strconv.FormatUint(record.Quantity, 10)
	}
	return item
}

func parseUint64Query(r *http.Request, name string, fallback uint64) (uint64, error) {
	value := r.URL.Query().Get(name)
	if len(value) == 0 {
		return fallback, nil
	}

	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, errors.New(name + " query parameter is not a number")
	}
	return parsed, nil
}

func writeResponse(log *logrus.Entry, w http.ResponseWriter, statusCode int, body GenericApiResponseBody) {
	w.Header().Set(contentTypeHeaderName, jsonContentTypeHeaderValue)
	w.WriteHeader(statusCode)
	if _, err := w.Write([]byte(body.ToString())); err != nil {
		log.WithError(err).Info("failed to write body")
	}
}

func (s *Server) GetHandlers() map[string]http.HandlerFunc {
	handlers := map[string]http.HandlerFunc{
		v1StatePath:            s.stateHandler(v1StatePath),
		v1HistoryPath:          s.historyHandler(v1HistoryPath),
		v1WalletConnectPath:    s.connectHandler(v1WalletConnectPath, true),
		v1WalletDisconnectPath: s.connectHandler(v1WalletDisconnectPath, false),
		v1WalletAirdropPath:    s.operationHandler(v1WalletAirdropPath, lifecycle.OperationAirdrop),
	}

	for op := lifecycle.OperationCreateToken; op <= lifecycle.OperationCloseTokenAccount; op++ {
		path := v1TokenPathPrefix + op.String()
		handlers[path] = s.operationHandler(path, op)
	}
	return handlers
}
