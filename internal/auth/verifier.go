package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cristianortiz/auctionEngine/internal/shared/config"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ErrVerificationFailed means the payment service could not give a verdict.
var ErrVerificationFailed = errors.New("token verification failed")

const checkPath = "/token/check"

type checkRequest struct {
	Token       string `json:"token"`
	ServiceName string `json:"serviceName"`
	MethodName  string `json:"methodName"`
}

type checkResponse struct {
	Allowed bool `json:"allowed"`
}

// Verifier asks the payment service whether a token may call a method.
type Verifier struct {
	cache       TokenCache
	checkURL    string
	serviceName string
	timeout     time.Duration
}

func NewVerifier(cfg config.AuthConfig, cache TokenCache) *Verifier {
	return &Verifier{
		cache:       cache,
		checkURL:    joinURL(cfg.BaseURL, checkPath),
		serviceName: cfg.ServiceName,
		timeout:     cfg.Timeout,
	}
}

// Verify returns the cached verdict when there is one. A 401 or 403 from the
// payment service is a cached denial; any other non-200 status is an error.
func (v *Verifier) Verify(ctx context.Context, token, method string) (bool, error) {
	if token == "" {
		return false, nil
	}

	key := CacheKey(token, method)
	if allowed, ok := v.cache.Get(ctx, key); ok {
		return allowed, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	log.Debug("Verifying token",
		zap.String("url", v.checkURL),
		zap.String("serviceName", v.serviceName),
		zap.String("methodName", method),
		zap.Int("tokenLength", len(token)),
	)

	agent := fiber.Post(v.checkURL)
	agent.JSON(checkRequest{Token: token, ServiceName: v.serviceName, MethodName: method})
	if v.timeout > 0 {
		agent.Timeout(v.timeout)
	}
	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		err := errors.Join(errs...)
		log.Error("Payment service request failed", zap.String("url", v.checkURL), zap.Error(err))
		return false, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	switch {
	case status == fiber.StatusUnauthorized || status == fiber.StatusForbidden:
		v.cache.Put(ctx, key, false)
		return false, nil
	case status != fiber.StatusOK:
		log.Warn("Payment service returned unexpected status",
			zap.Int("status", status),
			zap.ByteString("body", body),
		)
		return false, fmt.Errorf("%w: token verification service returned status %d", ErrVerificationFailed, status)
	}

	var resp checkResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, fmt.Errorf("%w: failed to parse token verification response: %v", ErrVerificationFailed, err)
	}
	v.cache.Put(ctx, key, resp.Allowed)
	return resp.Allowed, nil
}

func joinURL(base, path string) string {
	if base == "" {
		return path
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
