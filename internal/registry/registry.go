// Package registry announces the service's callable methods to the service registry.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cristianortiz/auctionEngine/internal/shared/config"
	"github.com/cristianortiz/auctionEngine/internal/shared/logger"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

const (
	ServiceName    = "auction"
	requestTimeout = 10 * time.Second
)

type Argument struct {
	ArgumentNumber int    `json:"argumentNumber"`
	ArgumentName   string `json:"argumentName"`
	ArgumentType   string `json:"argumentType"`
	IsRequired     bool   `json:"isRequired"`
}

type Method struct {
	MethodName string     `json:"methodName"`
	Price      float64    `json:"price"`
	IsPrivate  bool       `json:"isPrivate"`
	Arguments  []Argument `json:"arguments"`
}

// Arg is shorthand for building an Argument.
func Arg(number int, name, argType string, required bool) Argument {
	return Argument{ArgumentNumber: number, ArgumentName: name, ArgumentType: argType, IsRequired: required}
}

type registerRequest struct {
	ServiceName string   `json:"service_name"`
	Methods     []Method `json:"methods"`
}

type Client struct {
	url string
}

func NewClient(cfg config.RegistryConfig) *Client {
	return &Client{url: cfg.URL}
}

// Register posts the method list; any non-2xx answer is an error.
func (c *Client) Register(ctx context.Context, methods []Method) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload := registerRequest{ServiceName: ServiceName, Methods: make([]Method, 0, len(methods))}
	for _, m := range methods {
		if m.Arguments == nil {
			m.Arguments = []Argument{}
		}
		payload.Methods = append(payload.Methods, m)
	}

	agent := fiber.Post(c.url)
	agent.JSON(payload)
	agent.Timeout(requestTimeout)
	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("service registry request: %w", errors.Join(errs...))
	}
	if status < 200 || status >= 300 {
		log.Warn("Service registry rejected registration", zap.Int("status", status), zap.ByteString("body", body))
		return fmt.Errorf("service registry call failed with status %d", status)
	}

	log.Info("Service registry updated", zap.String("url", c.url), zap.Int("methods", len(methods)))
	return nil
}
