package server

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/taxsyncpro/taxsync/internal/clients"
	"github.com/taxsyncpro/taxsync/internal/common"
	"github.com/taxsyncpro/taxsync/internal/entity"
	"github.com/taxsyncpro/taxsync/internal/export"
	"github.com/taxsyncpro/taxsync/internal/importer/decode"
	"github.com/taxsyncpro/taxsync/internal/imports"
	"github.com/taxsyncpro/taxsync/internal/logger"
	"github.com/taxsyncpro/taxsync/internal/receipts"
	"github.com/taxsyncpro/taxsync/internal/reports"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *handlers) health(c *fiber.Ctx) error {
	if err := h.deps.Store.Ping(c.UserContext()); err != nil {
		logger.FromContext(c.UserContext()).Warn("health check failed", "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *handlers) listCategories(c *fiber.Ctx) error {
	cats, err := h.deps.Receipts.ListCategories(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"categories": cats})
}

func (h *handlers) listClients(c *fiber.Ctx) error {
	list, err := h.deps.Clients.ListClients(c.UserContext())
	if err != nil {
		return err
	}
	if list == nil {
		list = []entity.Client{}
	}
	return c.JSON(fiber.Map{"clients": list})
}

func (h *handlers) createClient(c *fiber.Ctx) error {
	var req clients.CreateClientRequest
	if err := c.BodyParser(&req); err != nil {
		return common.InvalidArgumentErrorf("invalid request body: %v", err)
	}
	client, err := h.deps.Clients.CreateClient(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(client)
}

func (h *handlers) listReceipts(c *fiber.Ctx) error {
	clientID, err := queryInt64(c, "client_id")
	if err != nil {
		return err
	}
	limit, err := queryInt64(c, "limit")
	if err != nil {
		return err
	}
	recs, err := h.deps.Receipts.ListReceipts(c.UserContext(), receipts.ListReceiptsRequest{
		FromDate: c.Query("from"),
		ToDate:   c.Query("to"),
		Category: c.Query("category"),
		ClientID: clientID,
		Limit:    int(limit),
	})
	if err != nil {
		return err
	}
	if recs == nil {
		recs = []entity.Receipt{}
	}
	return c.JSON(fiber.Map{"receipts": recs})
}

func (h *handlers) uploadImport(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return common.InvalidArgumentError("file is required")
	}
	up, err := h.deps.Imports.Upload(c.UserContext(), decode.MultipartSource{Header: file})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(up)
}

func (h *handlers) listImports(c *fiber.Ctx) error {
	limit, err := queryInt64(c, "limit")
	if err != nil {
		return err
	}
	if limit == 0 {
		limit = 50
	}
	list, err := h.deps.Imports.History(c.UserContext(), int(limit))
	if err != nil {
		return err
	}
	if list == nil {
		list = []entity.ImportBatch{}
	}
	return c.JSON(fiber.Map{"imports": list})
}

// getImport serves a live session, or a finished batch by the same id space.
func (h *handlers) getImport(c *fiber.Ctx) error {
	id, err := pathUUID(c)
	if err != nil {
		return err
	}
	if up, err := h.deps.Imports.Get(id); err == nil {
		return c.JSON(up)
	}
	batch, err := h.deps.Imports.Batch(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"batch": batch})
}

func (h *handlers) setImportMapping(c *fiber.Ctx) error {
	id, err := pathUUID(c)
	if err != nil {
		return err
	}
	var mapping entity.ColumnMapping
	if err := c.BodyParser(&mapping); err != nil {
		return common.InvalidArgumentErrorf("invalid mapping: %v", err)
	}
	up, err := h.deps.Imports.SetMapping(c.UserContext(), id, mapping)
	if err != nil {
		return err
	}
	return c.JSON(up)
}

func (h *handlers) commitImport(c *fiber.Ctx) error {
	id, err := pathUUID(c)
	if err != nil {
		return err
	}
	var req imports.CommitRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return common.InvalidArgumentErrorf("invalid request body: %v", err)
		}
	}
	up, err := h.deps.Imports.Commit(c.UserContext(), id, req)
	if errors.Is(err, common.ErrDuplicate) && up != nil {
		status, body := errorBody(err)
		body["duplicate_of"] = up.DuplicateOf
		return c.Status(status).JSON(body)
	}
	if err != nil {
		return err
	}
	return c.JSON(up)
}

func (h *handlers) discardImport(c *fiber.Ctx) error {
	id, err := pathUUID(c)
	if err != nil {
		return err
	}
	if _, err := h.deps.Imports.Get(id); err != nil {
		return err
	}
	h.deps.Imports.Discard(id)
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) reportSummary(c *fiber.Ctx) error {
	clientID, err := queryInt64(c, "client_id")
	if err != nil {
		return err
	}
	sum, err := h.deps.Reports.Summary(c.UserContext(), reports.Request{
		From:     c.Query("from"),
		To:       c.Query("to"),
		ClientID: clientID,
	})
	if err != nil {
		return err
	}
	return c.JSON(sum)
}

func (h *handlers) exportXLSX(c *fiber.Ctx) error {
	clientID, err := queryInt64(c, "client_id")
	if err != nil {
		return err
	}
	data, err := h.deps.Export.ExportReceiptsXLSX(c.UserContext(), export.Request{
		From:     c.Query("from"),
		To:       c.Query("to"),
		ClientID: clientID,
	})
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="receipts.xlsx"`)
	return c.Send(data)
}

func pathUUID(c *fiber.Ctx) (uuid.UUID, error) {
	raw := c.Params("id")
	if err := common.ValidateAndReturnError(common.NewValidator().Field("id", raw, common.UUID)); err != nil {
		return uuid.Nil, err
	}
	return uuid.MustParse(raw), nil
}

func queryInt64(c *fiber.Ctx, key string) (int64, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, common.InvalidArgumentError(fmt.Sprintf("%s must be a non-negative integer", key))
	}
	return n, nil
}
