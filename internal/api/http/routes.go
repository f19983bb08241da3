package httpapi

import (
	"context"
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/swio-meteo/cyclone-archive/internal/cyclone"
	"github.com/swio-meteo/cyclone-archive/internal/store"
	"github.com/swio-meteo/cyclone-archive/internal/viewer"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app. rootCtx scopes
// background snapshot loads to the server lifetime rather than the request.
func RegisterRoutes(app *fiber.App, rootCtx context.Context, engine *viewer.Engine, dataRoot string) {
	v1 := app.Group("/api/v1")

	v1.Get("/index", func(c *fiber.Ctx) error {
		entries := engine.Index().Entries()
		if entries == nil {
			entries = []cyclone.SnapshotMetadata{}
		}
		return c.JSON(entries)
	})

	v1.Get("/state", func(c *fiber.Ctx) error {
		return c.JSON(engine.Status())
	})

	v1.Get("/current", func(c *fiber.Ctx) error {
		snap, ok := engine.Current()
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no current snapshot")
		}
		return c.JSON(fiber.Map{
			"metadata":   snap.Meta,
			"trajectory": snap.Data,
		})
	})

	v1.Get("/snapshots/:index", func(c *fiber.Ctx) error {
		i, err := parseIndex(c)
		if err != nil {
			return err
		}
		snap, err := engine.Snapshot(c.Context(), i)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no snapshot at requested index")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to load snapshot")
		}
		return c.JSON(fiber.Map{
			"metadata":   snap.Meta,
			"trajectory": snap.Data,
		})
	})

	v1.Post("/select/:index", func(c *fiber.Ctx) error {
		i, err := parseIndex(c)
		if err != nil {
			return err
		}
		// Out-of-range selection is a deliberate no-op, so this always
		// accepts; the UI follows the engine state, not this response.
		engine.LoadSnapshot(rootCtx, i)
		return c.SendStatus(fiber.StatusAccepted)
	})

	v1.Get("/overlay/:index/:layer", func(c *fiber.Ctx) error {
		i, err := parseIndex(c)
		if err != nil {
			return err
		}

		var req overlayQuery
		req.Layer = c.Params("layer")
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		meta, err := engine.Metadata(i)
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "no snapshot at requested index")
		}

		img := meta.Image(cyclone.SatelliteLayer(req.Layer))
		if img == nil {
			return fiber.NewError(fiber.StatusNotFound, "no such satellite layer for snapshot")
		}

		return c.JSON(fiber.Map{
			"url":    cyclone.ResourceURL(dataRoot, img.File),
			"bounds": cyclone.OverlayBounds(img.BBox),
		})
	})
}

// overlayQuery holds the validated overlay path parameters.
type overlayQuery struct {
	Layer string `validate:"required,oneof=ir108 rgb"`
}

func parseIndex(c *fiber.Ctx) (int, error) {
	i, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "index must be an integer")
	}
	return i, nil
}
