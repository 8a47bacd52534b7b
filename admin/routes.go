package admin

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/b-open-io/did-resolver/pkg/btcr"
)

// DefaultListLimit caps anchor listings without an explicit limit.
const DefaultListLimit = 100

// Routes handles admin HTTP routes
type Routes struct {
	index  *btcr.AnchorIndex
	config *RoutesConfig
	logger *slog.Logger
}

// NewRoutes creates a new Routes instance
func NewRoutes(index *btcr.AnchorIndex, cfg *RoutesConfig, logger *slog.Logger) *Routes {
	if logger == nil {
		logger = slog.Default()
	}
	return &Routes{
		index:  index,
		config: cfg,
		logger: logger,
	}
}

// Register registers admin routes on a Fiber app group
func (r *Routes) Register(group fiber.Router) {
	anchors := group.Group("/anchors")

	anchors.Get("/", r.handleListAnchors)
	anchors.Post("/", r.handlePutAnchors)
	anchors.Get("/:chain/:txid", r.handleGetAnchor)
	anchors.Delete("/:chain/:txid", r.handleDeleteAnchor)

	r.logger.Debug("registered admin routes")
}

func parseChain(s string) (btcr.Chain, error) {
	switch chain := btcr.Chain(strings.ToUpper(s)); chain {
	case btcr.Mainnet, btcr.Testnet:
		return chain, nil
	default:
		return "", fmt.Errorf("invalid chain %q", s)
	}
}

// handleListAnchors lists indexed anchors of a chain
// @Summary List anchors
// @Description Returns indexed BTCR anchors of a chain in location order
// @Tags admin
// @Produce json
// @Param chain query string false "MAINNET or TESTNET" default(MAINNET)
// @Param limit query int false "Maximum entries" default(100)
// @Success 200 {array} btcr.AnchorEntry
// @Failure 400 {object} map[string]string "Bad request"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /admin/anchors [get]
func (r *Routes) handleListAnchors(c *fiber.Ctx) error {
	chain, err := parseChain(c.Query("chain", string(btcr.Mainnet)))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	limit := c.QueryInt("limit", DefaultListLimit)
	if limit <= 0 {
		limit = DefaultListLimit
	}

	entries, err := r.index.List(c.Context(), chain, limit)
	if err != nil {
		r.logger.Error("failed to list anchors", "error", err, "chain", chain)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list anchors",
		})
	}
	return c.JSON(entries)
}

// handlePutAnchors writes anchor entries
// @Summary Put anchors
// @Description Writes or replaces BTCR anchor entries in the index
// @Tags admin
// @Accept json
// @Produce json
// @Param body body []btcr.AnchorEntry true "Anchor entries"
// @Success 200 {object} map[string]int "Number of entries written"
// @Failure 400 {object} map[string]string "Bad request"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /admin/anchors [post]
func (r *Routes) handlePutAnchors(c *fiber.Ctx) error {
	var entries []*btcr.AnchorEntry
	if err := c.BodyParser(&entries); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	for i, e := range entries {
		if e == nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": fmt.Sprintf("entry %d: empty", i)})
		}
		e.Chain = btcr.Chain(strings.ToUpper(string(e.Chain)))
		if err := e.Validate(); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": fmt.Sprintf("entry %d: %v", i, err)})
		}
	}

	for _, e := range entries {
		if err := r.index.Put(c.Context(), e); err != nil {
			r.logger.Error("failed to write anchor", "error", err, "txid", e.Txid)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to write anchor",
			})
		}
	}

	r.logger.Info("anchors written", "count", len(entries))
	return c.JSON(fiber.Map{"written": len(entries)})
}

// handleGetAnchor returns one anchor entry
// @Summary Get anchor
// @Description Returns the indexed anchor entry of a transaction
// @Tags admin
// @Produce json
// @Param chain path string true "MAINNET or TESTNET"
// @Param txid path string true "Transaction id"
// @Success 200 {object} btcr.AnchorEntry
// @Failure 400 {object} map[string]string "Bad request"
// @Failure 404 {object} map[string]string "Not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /admin/anchors/{chain}/{txid} [get]
func (r *Routes) handleGetAnchor(c *fiber.Ctx) error {
	chain, err := parseChain(c.Params("chain"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	entry, err := r.index.Get(c.Context(), chain, c.Params("txid"))
	if errors.Is(err, btcr.ErrAnchorNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "anchor not found"})
	}
	if err != nil {
		r.logger.Error("failed to get anchor", "error", err, "txid", c.Params("txid"))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to get anchor",
		})
	}
	return c.JSON(entry)
}

// handleDeleteAnchor removes one anchor entry
// @Summary Delete anchor
// @Description Removes the indexed anchor entry of a transaction
// @Tags admin
// @Produce json
// @Param chain path string true "MAINNET or TESTNET"
// @Param txid path string true "Transaction id"
// @Success 200 {object} map[string]string "success message"
// @Failure 400 {object} map[string]string "Bad request"
// @Failure 404 {object} map[string]string "Not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /admin/anchors/{chain}/{txid} [delete]
func (r *Routes) handleDeleteAnchor(c *fiber.Ctx) error {
	chain, err := parseChain(c.Params("chain"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	txid := c.Params("txid")
	err = r.index.Delete(c.Context(), chain, txid)
	if errors.Is(err, btcr.ErrAnchorNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "anchor not found"})
	}
	if err != nil {
		r.logger.Error("failed to delete anchor", "error", err, "txid", txid)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to delete anchor",
		})
	}
	return c.JSON(fiber.Map{"message": "anchor deleted"})
}
