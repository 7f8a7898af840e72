package telegram

import (
	"errors"
	"strings"

	"editguard/pkg/guard"

	"github.com/gotd/td/tgerr"
)

func mapTelegramOutboundError(operation guard.OutboundOperation, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, guard.ErrInvalidOutboundRequest) || errors.Is(err, guard.ErrOutboundUnsupported) {
		return err
	}

	outboundErr := &guard.OutboundError{
		Operation: operation,
		Kind:      guard.OutboundErrorKindUnknown,
		Platform:  guard.PlatformTelegram,
		Cause:     err,
	}

	if retryAfter, ok := tgerr.AsFloodWait(err); ok {
		outboundErr.Kind = guard.OutboundErrorKindRateLimited
		outboundErr.RetryAfter = retryAfter
		if rpcErr, hasRPC := tgerr.As(err); hasRPC {
			outboundErr.Code = rpcErr.Code
			outboundErr.Type = rpcErr.Type
		}

		return outboundErr
	}

	rpcErr, ok := tgerr.As(err)
	if !ok {
		return outboundErr
	}

	outboundErr.Code = rpcErr.Code
	outboundErr.Type = rpcErr.Type
	outboundErr.Kind = classifyTelegramRPCError(rpcErr)

	return outboundErr
}

func classifyTelegramRPCError(rpcErr *tgerr.Error) guard.OutboundErrorKind {
	if rpcErr == nil {
		return guard.OutboundErrorKindUnknown
	}

	errorType := strings.ToUpper(strings.TrimSpace(rpcErr.Type))
	if rpcErr.Code == 420 || rpcErr.Code == 429 || strings.Contains(errorType, "FLOOD") {
		return guard.OutboundErrorKindRateLimited
	}

	switch errorType {
	case "MESSAGE_DELETE_FORBIDDEN", "CHAT_ADMIN_REQUIRED", "MESSAGE_AUTHOR_REQUIRED", "CHAT_WRITE_FORBIDDEN":
		return guard.OutboundErrorKindPermissionDenied
	case "MESSAGE_ID_INVALID", "MSG_ID_INVALID":
		return guard.OutboundErrorKindNotFound
	}

	switch rpcErr.Code {
	case 303:
		return guard.OutboundErrorKindTemporary
	case 400, 401, 403, 404, 405, 406:
		return guard.OutboundErrorKindPermanent
	case 500, 501, 502, 503, 504:
		return guard.OutboundErrorKindTemporary
	}
	if rpcErr.Code >= 500 {
		return guard.OutboundErrorKindTemporary
	}

	return guard.OutboundErrorKindUnknown
}
