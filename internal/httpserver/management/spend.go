package management

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/deepaktammali/litellm/internal/httpserver/httputil"
	spendsvc "github.com/deepaktammali/litellm/internal/services/spend"
	"github.com/deepaktammali/litellm/internal/timeutil"
)

func (h *handler) spendList(c *fiber.Ctx) error {
	r, err := h.parseDateRange(c)
	if err != nil {
		return httputil.WriteError(c, httputil.ErrorTypeBadRequest, "start_date and end_date must be YYYY-MM-DD dates", "start_date")
	}

	page := int64(c.QueryInt("page", 1))
	if page < 1 {
		return httputil.WriteError(c, httputil.ErrorTypeBadRequest, "page must be >= 1", "page")
	}
	pageSize := int64(c.QueryInt("page_size", h.container.Config.Reporting.DefaultPageSize))
	if pageSize < 1 {
		return httputil.WriteError(c, httputil.ErrorTypeBadRequest, "page_size must be >= 1", "page_size")
	}
	if max := int64(h.container.Config.Reporting.MaxPageSize); pageSize > max {
		pageSize = max
	}

	start := time.Now()
	report, err := h.container.Spend.ListReportPage(c.UserContext(), r, page, pageSize)
	if err != nil {
		return httputil.WriteError(c, httputil.ErrorTypeInternal, "failed to build spend report", "")
	}
	h.container.Observability.RecordSpendReport("list", time.Since(start))
	return c.JSON(report)
}

func (h *handler) spendDetail(c *fiber.Ctx) error {
	userID := c.Params("userID")
	r, err := h.parseDateRange(c)
	if err != nil {
		return httputil.WriteError(c, httputil.ErrorTypeBadRequest, "start_date and end_date must be YYYY-MM-DD dates", "start_date")
	}

	start := time.Now()
	report, err := h.container.Spend.DetailReportFor(c.UserContext(), userID, r)
	if errors.Is(err, spendsvc.ErrCustomerNotFound) {
		return httputil.WriteError(c, httputil.ErrorTypeNotFound, fmt.Sprintf("%s not found", userID), "end_user_id")
	}
	if err != nil {
		return httputil.WriteError(c, httputil.ErrorTypeInternal, "failed to build spend report", "")
	}
	h.container.Observability.RecordSpendReport("detail", time.Since(start))
	return c.JSON(report)
}

func (h *handler) spendGlobal(c *fiber.Ctx) error {
	r, err := h.parseDateRange(c)
	if err != nil {
		return httputil.WriteError(c, httputil.ErrorTypeBadRequest, "start_date and end_date must be YYYY-MM-DD dates", "start_date")
	}

	start := time.Now()
	report, err := h.container.Spend.GlobalReportFor(c.UserContext(), r)
	if err != nil {
		return httputil.WriteError(c, httputil.ErrorTypeInternal, "failed to build spend report", "")
	}
	h.container.Observability.RecordSpendReport("global", time.Since(start))
	return c.JSON(report)
}

func (h *handler) parseDateRange(c *fiber.Ctx) (timeutil.DateRange, error) {
	return timeutil.ParseDateRange(c.Query("start_date"), c.Query("end_date"), h.container.ReportingLoc())
}
