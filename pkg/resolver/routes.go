package resolver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/b-open-io/did-resolver/pkg/driver"
)

// Routes handles the resolution HTTP endpoints.
type Routes struct {
	resolver *Resolver
	logger   *slog.Logger
}

// NewRoutes creates a new routes handler.
func NewRoutes(r *Resolver, logger *slog.Logger) *Routes {
	if logger == nil {
		logger = slog.Default()
	}
	return &Routes{
		resolver: r,
		logger:   logger,
	}
}

// Register registers the routes on a Fiber router.
func (r *Routes) Register(router fiber.Router, prefix string) {
	g := router.Group(prefix)
	g.Get("/identifiers/*", r.HandleResolve)
	g.Get("/properties", r.HandleProperties)
}

// HandleResolve resolves an identifier
// @Summary Resolve identifier
// @Description Resolve a DID or DID URL to a DID resolution result
// @Tags resolver
// @Produce json
// @Param identifier path string true "DID, DID URL or other identifier"
// @Success 200 {object} did.ResolveResult
// @Failure 400 {object} map[string]string "Malformed identifier"
// @Failure 404 {object} map[string]string "No resolve result"
// @Failure 500 {object} map[string]string "Resolver problem"
// @Router /identifiers/{identifier} [get]
func (r *Routes) HandleResolve(c *fiber.Ctx) error {
	raw := c.Params("*")
	identifier, err := url.PathUnescape(raw)
	if err != nil {
		identifier = raw
	}
	if q := string(c.Request().URI().QueryString()); q != "" {
		identifier += "?" + q
	}
	if identifier == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "identifier is required",
		})
	}

	result, err := r.resolver.Resolve(c.UserContext(), identifier, nil)
	if err != nil {
		if errors.Is(err, driver.ErrMalformedIdentifier) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		r.logger.Error("resolve failed", "identifier", identifier, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("resolver problem for %s: %v", identifier, err),
		})
	}

	if result.Document == nil {
		cause := fmt.Errorf("no resolve result for %s", identifier)
		if !result.ResolutionMetadata.Has("driverId") {
			cause = fmt.Errorf("no resolve result for %s: %w", identifier, driver.ErrNoDriverMatched)
		}
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": cause.Error(),
		})
	}

	return c.JSON(result)
}

// HandleProperties returns driver properties
// @Summary Driver properties
// @Description Returns the properties of every configured driver keyed by driver id
// @Tags resolver
// @Produce json
// @Success 200 {object} map[string]map[string]interface{}
// @Failure 500 {object} map[string]string "Resolver problem"
// @Router /properties [get]
func (r *Routes) HandleProperties(c *fiber.Ctx) error {
	props, err := r.resolver.Properties(c.UserContext())
	if err != nil {
		r.logger.Error("properties failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("resolver problem: %v", err),
		})
	}
	return c.JSON(props)
}
