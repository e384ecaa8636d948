// Package cognito implements the identity-provider port on the AWS
// Cognito user pools API. It owns the wire protocol and the mapping of
// SDK failures onto the core error taxonomy; round semantics live in the
// service layer.
package cognito

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	ciptypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/smithy-go"

	"github.com/apiaryhq/hive/core"
	"github.com/apiaryhq/hive/ports"
)

// Provider talks to a Cognito user pool. All of its operations are
// unauthenticated app-client calls, so it runs with anonymous AWS
// credentials.
type Provider struct {
	client   *cip.Client
	clientID string
	now      func() time.Time
}

var _ ports.IdentityProvider = (*Provider)(nil)

// New creates a provider for the pool's region and app client.
func New(ctx context.Context, region, clientID string) (*Provider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	cfg.Credentials = aws.AnonymousCredentials{}

	return &Provider{
		client:   cip.NewFromConfig(cfg),
		clientID: clientID,
		now:      time.Now,
	}, nil
}

// InitiateAuth opens a user SRP exchange.
func (p *Provider) InitiateAuth(ctx context.Context, params map[string]string) (*ports.AuthResponse, error) {
	out, err := p.client.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow:       ciptypes.AuthFlowTypeUserSrpAuth,
		ClientId:       aws.String(p.clientID),
		AuthParameters: params,
	})
	if err != nil {
		return nil, classify("initiate auth", err)
	}

	return p.response(out.ChallengeName, out.ChallengeParameters, out.Session, out.AuthenticationResult)
}

// RespondToChallenge answers one challenge round.
func (p *Provider) RespondToChallenge(ctx context.Context, name core.ChallengeName, continuation string, responses map[string]string) (*ports.AuthResponse, error) {
	input := &cip.RespondToAuthChallengeInput{
		ChallengeName:      ciptypes.ChallengeNameType(name),
		ClientId:           aws.String(p.clientID),
		ChallengeResponses: responses,
	}
	if continuation != "" {
		input.Session = aws.String(continuation)
	}

	out, err := p.client.RespondToAuthChallenge(ctx, input)
	if err != nil {
		return nil, classify("respond to auth challenge", err)
	}

	return p.response(out.ChallengeName, out.ChallengeParameters, out.Session, out.AuthenticationResult)
}

// RenewTokens runs the refresh-token flow. Cognito does not rotate the
// refresh token here, so the returned bundle has an empty RefreshToken.
func (p *Provider) RenewTokens(ctx context.Context, refreshToken, deviceKey string) (*core.Tokens, error) {
	params := map[string]string{core.ParamRefreshToken: refreshToken}
	if deviceKey != "" {
		params[core.ParamDeviceKey] = deviceKey
	}

	out, err := p.client.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow:       ciptypes.AuthFlowTypeRefreshTokenAuth,
		ClientId:       aws.String(p.clientID),
		AuthParameters: params,
	})
	if err != nil {
		return nil, classify("renew tokens", err)
	}
	if out.AuthenticationResult == nil {
		return nil, &core.Rejection{Code: core.RejectionMalformed, Message: "refresh response carried no tokens"}
	}

	return p.tokens(out.AuthenticationResult)
}

// ConfirmDevice registers the device secret verifier.
func (p *Provider) ConfirmDevice(ctx context.Context, accessToken, deviceKey, deviceName string, verifier ports.DeviceSecretVerifier) (bool, error) {
	out, err := p.client.ConfirmDevice(ctx, &cip.ConfirmDeviceInput{
		AccessToken: aws.String(accessToken),
		DeviceKey:   aws.String(deviceKey),
		DeviceName:  aws.String(deviceName),
		DeviceSecretVerifierConfig: &ciptypes.DeviceSecretVerifierConfigType{
			PasswordVerifier: aws.String(verifier.PasswordVerifier),
			Salt:             aws.String(verifier.Salt),
		},
	})
	if err != nil {
		return false, classify("confirm device", err)
	}

	return out.UserConfirmationNecessary, nil
}

// MarkDeviceRemembered flags a device as remembered.
func (p *Provider) MarkDeviceRemembered(ctx context.Context, accessToken, deviceKey string) error {
	_, err := p.client.UpdateDeviceStatus(ctx, &cip.UpdateDeviceStatusInput{
		AccessToken:            aws.String(accessToken),
		DeviceKey:              aws.String(deviceKey),
		DeviceRememberedStatus: ciptypes.DeviceRememberedStatusTypeRemembered,
	})
	if err != nil {
		return classify("update device status", err)
	}
	return nil
}

// SignOut revokes all of the user's tokens.
func (p *Provider) SignOut(ctx context.Context, accessToken string) error {
	_, err := p.client.GlobalSignOut(ctx, &cip.GlobalSignOutInput{
		AccessToken: aws.String(accessToken),
	})
	if err != nil {
		return classify("global sign out", err)
	}
	return nil
}

func (p *Provider) response(challenge ciptypes.ChallengeNameType, params map[string]string, session *string, result *ciptypes.AuthenticationResultType) (*ports.AuthResponse, error) {
	if result != nil {
		tokens, err := p.tokens(result)
		if err != nil {
			return nil, err
		}
		return &ports.AuthResponse{Tokens: tokens}, nil
	}

	if challenge == "" {
		return nil, &core.Rejection{Code: core.RejectionMalformed, Message: "response carried neither tokens nor a challenge"}
	}

	if params == nil {
		params = map[string]string{}
	}

	return &ports.AuthResponse{
		Challenge: &core.ChallengeParameters{
			Name:         core.ChallengeName(challenge),
			Values:       params,
			Continuation: aws.ToString(session),
		},
	}, nil
}

func (p *Provider) tokens(result *ciptypes.AuthenticationResultType) (*core.Tokens, error) {
	if result.AccessToken == nil || result.IdToken == nil {
		return nil, &core.Rejection{Code: core.RejectionMalformed, Message: "authentication result is missing tokens"}
	}

	tokens := &core.Tokens{
		AccessToken:  aws.ToString(result.AccessToken),
		IDToken:      aws.ToString(result.IdToken),
		RefreshToken: aws.ToString(result.RefreshToken),
		IssuedAt:     p.now(),
		ExpiresIn:    time.Duration(result.ExpiresIn) * time.Second,
	}

	if md := result.NewDeviceMetadata; md != nil && md.DeviceKey != nil && md.DeviceGroupKey != nil {
		tokens.NewDevice = &core.UntrustedDevice{
			DeviceKey:      aws.ToString(md.DeviceKey),
			DeviceGroupKey: aws.ToString(md.DeviceGroupKey),
		}
	}

	return tokens, nil
}

// classify maps an SDK failure to the core taxonomy: known pool
// exceptions become rejections, any other API error is a malformed
// protocol exchange, and everything else is a transport failure.
func classify(op string, err error) error {
	var notAuthorized *ciptypes.NotAuthorizedException
	if errors.As(err, &notAuthorized) {
		msg := notAuthorized.ErrorMessage()
		if strings.Contains(strings.ToLower(msg), "disabled") {
			return &core.Rejection{Code: core.RejectionDisabled, Message: msg}
		}
		return &core.Rejection{Code: core.RejectionNotAuthorized, Message: msg}
	}

	var userNotFound *ciptypes.UserNotFoundException
	if errors.As(err, &userNotFound) {
		return &core.Rejection{Code: core.RejectionUserNotFound, Message: userNotFound.ErrorMessage()}
	}

	var notConfirmed *ciptypes.UserNotConfirmedException
	if errors.As(err, &notConfirmed) {
		return &core.Rejection{Code: core.RejectionDisabled, Message: notConfirmed.ErrorMessage()}
	}

	var passwordReset *ciptypes.PasswordResetRequiredException
	if errors.As(err, &passwordReset) {
		return &core.Rejection{Code: core.RejectionNotAuthorized, Message: passwordReset.ErrorMessage()}
	}

	var tooMany *ciptypes.TooManyRequestsException
	if errors.As(err, &tooMany) {
		return &core.Rejection{Code: core.RejectionThrottled, Message: tooMany.ErrorMessage(), RetryAfter: retryAfterHint(err)}
	}

	var limitExceeded *ciptypes.LimitExceededException
	if errors.As(err, &limitExceeded) {
		return &core.Rejection{Code: core.RejectionThrottled, Message: limitExceeded.ErrorMessage(), RetryAfter: retryAfterHint(err)}
	}

	var notFound *ciptypes.ResourceNotFoundException
	if errors.As(err, &notFound) {
		msg := notFound.ErrorMessage()
		if strings.Contains(strings.ToLower(msg), "device") {
			return &core.Rejection{Code: core.RejectionDeviceNotFound, Message: msg}
		}
		return &core.Rejection{Code: core.RejectionMalformed, Message: msg}
	}

	var invalidParameter *ciptypes.InvalidParameterException
	if errors.As(err, &invalidParameter) {
		return &core.Rejection{Code: core.RejectionMalformed, Message: invalidParameter.ErrorMessage()}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return &core.Rejection{Code: core.RejectionMalformed, Message: apiErr.ErrorCode() + ": " + apiErr.ErrorMessage()}
	}

	return &core.TransportError{Op: op, Err: err}
}

// retryAfterHint extracts the backoff hint from the throttled response's
// Retry-After header. Zero when the provider sent none.
func retryAfterHint(err error) time.Duration {
	var respErr *awshttp.ResponseError
	if !errors.As(err, &respErr) || respErr.HTTPResponse() == nil {
		return 0
	}
	header := respErr.HTTPResponse().Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	seconds, parseErr := strconv.Atoi(header)
	if parseErr != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
