package publish

import (
	"errors"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"github.com/mymmrac/telego/telegoapi"
	"github.com/slack-go/slack"

	"github.com/nextlevelbuilder/parrot/internal/providers"
)

// ErrMessageTooLong means the target would reject the post for its length.
var ErrMessageTooLong = errors.New("message exceeds target length limit")

func telegramError(err error) error {
	var apiErr *telegoapi.Error
	if errors.As(err, &apiErr) && apiErr.ErrorCode != 0 {
		return &providers.APIError{Provider: "telegram", Status: apiErr.ErrorCode, Body: apiErr.Description}
	}
	return err
}

func discordError(err error) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		return &providers.APIError{Provider: "discord", Status: restErr.Response.StatusCode, Body: string(restErr.ResponseBody)}
	}
	var rateErr *discordgo.RateLimitError
	if errors.As(err, &rateErr) && rateErr.RateLimit != nil {
		return &providers.APIError{Provider: "discord", Status: http.StatusTooManyRequests, Body: rateErr.Error()}
	}
	return err
}

func slackError(err error) error {
	var rateErr *slack.RateLimitedError
	if errors.As(err, &rateErr) {
		return &providers.APIError{Provider: "slack", Status: http.StatusTooManyRequests, Body: rateErr.Error()}
	}
	var statusErr slack.StatusCodeError
	if errors.As(err, &statusErr) {
		return &providers.APIError{Provider: "slack", Status: statusErr.Code, Body: statusErr.Status}
	}
	var respErr slack.SlackErrorResponse
	if errors.As(err, &respErr) {
		return &providers.APIError{Provider: "slack", Status: slackErrorStatus(respErr.Err), Body: respErr.Err}
	}
	return err
}

// slackErrorStatus maps an ok=false error code, which Slack sends with
// HTTP 200, to the status it stands for.
func slackErrorStatus(code string) int {
	switch code {
	case "ratelimited":
		return http.StatusTooManyRequests
	case "invalid_auth", "not_authed", "account_inactive", "token_revoked", "token_expired":
		return http.StatusUnauthorized
	case "missing_scope", "not_in_channel", "channel_not_found", "is_archived", "restricted_action":
		return http.StatusForbidden
	case "internal_error", "fatal_error", "service_unavailable":
		return http.StatusServiceUnavailable
	}
	return http.StatusBadRequest
}
