package spend

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/deepaktammali/litellm/internal/store"
	"github.com/deepaktammali/litellm/internal/timeutil"
)

// ErrCustomerNotFound reports a detail report request for an unknown customer.
var ErrCustomerNotFound = errors.New("customer not found")

// Service aggregates the append-only spend log into customer-facing reports.
type Service struct {
	spend     store.SpendStore
	customers store.CustomerStore
	timezone  *time.Location
}

func NewService(spendStore store.SpendStore, customerStore store.CustomerStore, timezone *time.Location) *Service {
	return &Service{
		spend:     spendStore,
		customers: customerStore,
		timezone:  timeutil.EnsureLocation(timezone),
	}
}

// Location returns the reporting timezone used for date filters.
func (s *Service) Location() *time.Location {
	if s == nil {
		return time.UTC
	}
	return s.timezone
}

// DateRangeInfo echoes the requested filter back to the caller.
type DateRangeInfo struct {
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

// CustomerRow is one row of the paginated list report.
type CustomerRow struct {
	EndUserID             string  `json:"end_user_id"`
	Alias                 *string `json:"alias"`
	TotalSpend            float64 `json:"total_spend"`
	TotalRequests         int64   `json:"total_requests"`
	TotalTokens           int64   `json:"total_tokens"`
	TotalPromptTokens     int64   `json:"total_prompt_tokens"`
	TotalCompletionTokens int64   `json:"total_completion_tokens"`
}

// ListReport is the paginated per-customer spend summary.
type ListReport struct {
	TotalCustomers int64          `json:"total_customers"`
	Page           int64          `json:"page"`
	PageSize       int64          `json:"page_size"`
	TotalPages     int64          `json:"total_pages"`
	DateRange      *DateRangeInfo `json:"date_range,omitempty"`
	SpendReport    []CustomerRow  `json:"spend_report"`
}

// ListReportPage runs the count and grouped-aggregation queries and shapes
// the page. An empty result is a valid report, not an error.
func (s *Service) ListReportPage(ctx context.Context, r timeutil.DateRange, page, pageSize int64) (ListReport, error) {
	report := ListReport{
		Page:        page,
		PageSize:    pageSize,
		SpendReport: []CustomerRow{},
		DateRange:   dateRangeInfo(r),
	}

	total, err := s.spend.CountSpendingCustomers(ctx, r)
	if err != nil {
		return ListReport{}, err
	}
	report.TotalCustomers = total
	report.TotalPages = (total + pageSize - 1) / pageSize
	if total == 0 {
		return report, nil
	}

	rows, err := s.spend.CustomerSpendPage(ctx, r, pageSize, (page-1)*pageSize)
	if err != nil {
		return ListReport{}, err
	}
	for _, row := range rows {
		report.SpendReport = append(report.SpendReport, CustomerRow{
			EndUserID:             row.EndUserID,
			Alias:                 row.Alias,
			TotalSpend:            row.Totals.Spend.InexactFloat64(),
			TotalRequests:         row.Totals.Requests,
			TotalTokens:           row.Totals.TotalTokens,
			TotalPromptTokens:     row.Totals.PromptTokens,
			TotalCompletionTokens: row.Totals.CompletionTokens,
		})
	}
	return report, nil
}

// ModelRow is one per-model breakdown row of the detail report, in the
// order produced by the grouped query.
type ModelRow struct {
	Model                 string  `json:"model"`
	TotalSpend            float64 `json:"total_spend"`
	TotalTokens           int64   `json:"total_tokens"`
	TotalPromptTokens     int64   `json:"total_prompt_tokens"`
	TotalCompletionTokens int64   `json:"total_completion_tokens"`
	TotalRequests         int64   `json:"total_requests"`
}

// DetailReport is the single-customer aggregate with model breakdown.
type DetailReport struct {
	EndUserID             string         `json:"end_user_id"`
	Alias                 *string        `json:"alias"`
	TotalSpend            float64        `json:"total_spend"`
	TotalRequests         int64          `json:"total_requests"`
	TotalTokens           int64          `json:"total_tokens"`
	TotalPromptTokens     int64          `json:"total_prompt_tokens"`
	TotalCompletionTokens int64          `json:"total_completion_tokens"`
	DateRange             *DateRangeInfo `json:"date_range,omitempty"`
	SpendByModel          []ModelRow     `json:"spend_by_model"`
}

// DetailReportFor resolves the customer, then aggregates their spend. A
// customer with no spend log rows yields all-zero aggregates.
func (s *Service) DetailReportFor(ctx context.Context, userID string, r timeutil.DateRange) (DetailReport, error) {
	customer, err := s.customers.GetCustomer(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return DetailReport{}, ErrCustomerNotFound
	}
	if err != nil {
		return DetailReport{}, err
	}

	totals, err := s.spend.CustomerSpendTotals(ctx, userID, r)
	if err != nil {
		return DetailReport{}, err
	}
	byModel, err := s.spend.CustomerSpendByModel(ctx, userID, r)
	if err != nil {
		return DetailReport{}, err
	}

	report := DetailReport{
		EndUserID:             customer.UserID,
		Alias:                 customer.Alias,
		TotalSpend:            totals.Spend.InexactFloat64(),
		TotalRequests:         totals.Requests,
		TotalTokens:           totals.TotalTokens,
		TotalPromptTokens:     totals.PromptTokens,
		TotalCompletionTokens: totals.CompletionTokens,
		DateRange:             dateRangeInfo(r),
		SpendByModel:          []ModelRow{},
	}
	for _, row := range byModel {
		report.SpendByModel = append(report.SpendByModel, ModelRow{
			Model:                 row.Model,
			TotalSpend:            row.Totals.Spend.InexactFloat64(),
			TotalTokens:           row.Totals.TotalTokens,
			TotalPromptTokens:     row.Totals.PromptTokens,
			TotalCompletionTokens: row.Totals.CompletionTokens,
			TotalRequests:         row.Totals.Requests,
		})
	}
	return report, nil
}

// ModelBreakdown is the per-model accumulator of the global report.
type ModelBreakdown struct {
	TotalSpend            float64 `json:"total_spend"`
	TotalTokens           int64   `json:"total_tokens"`
	TotalPromptTokens     int64   `json:"total_prompt_tokens"`
	TotalCompletionTokens int64   `json:"total_completion_tokens"`
	TotalRequests         int64   `json:"total_requests"`
}

// GlobalRow is one customer of the unpaginated alias-joined report.
type GlobalRow struct {
	EndUserID             string                    `json:"end_user_id"`
	Alias                 *string                   `json:"alias"`
	TotalSpend            float64                   `json:"total_spend"`
	TotalRequests         int64                     `json:"total_requests"`
	TotalTokens           int64                     `json:"total_tokens"`
	TotalPromptTokens     int64                     `json:"total_prompt_tokens"`
	TotalCompletionTokens int64                     `json:"total_completion_tokens"`
	SpendByModel          map[string]ModelBreakdown `json:"spend_by_model"`
}

// GlobalReport is the full, sorted spend report.
type GlobalReport struct {
	SpendReport    []GlobalRow    `json:"spend_report"`
	TotalCustomers int            `json:"total_customers"`
	DateRange      *DateRangeInfo `json:"date_range,omitempty"`
}

type globalAccumulator struct {
	totals  store.SpendTotals
	byModel map[string]*store.SpendTotals
	models  []string
}

// GlobalReportFor fetches spend logs and customers independently, joins them
// in memory by user id, and returns rows sorted by total spend descending
// (insertion order on ties).
func (s *Service) GlobalReportFor(ctx context.Context, r timeutil.DateRange) (GlobalReport, error) {
	entries, err := s.spend.ListSpendLogs(ctx, r)
	if err != nil {
		return GlobalReport{}, err
	}
	customers, err := s.customers.ListCustomers(ctx)
	if err != nil {
		return GlobalReport{}, err
	}

	aliasByID := make(map[string]*string, len(customers))
	for _, customer := range customers {
		aliasByID[customer.UserID] = customer.Alias
	}

	grouped := make(map[string]*globalAccumulator)
	var order []string
	for _, entry := range entries {
		acc, ok := grouped[entry.EndUser]
		if !ok {
			acc = &globalAccumulator{byModel: make(map[string]*store.SpendTotals)}
			grouped[entry.EndUser] = acc
			order = append(order, entry.EndUser)
		}
		addEntry(&acc.totals, entry)
		modelTotals, ok := acc.byModel[entry.Model]
		if !ok {
			modelTotals = &store.SpendTotals{}
			acc.byModel[entry.Model] = modelTotals
			acc.models = append(acc.models, entry.Model)
		}
		addEntry(modelTotals, entry)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return grouped[order[i]].totals.Spend.Cmp(grouped[order[j]].totals.Spend) > 0
	})

	report := GlobalReport{
		SpendReport:    make([]GlobalRow, 0, len(order)),
		TotalCustomers: len(order),
		DateRange:      dateRangeInfo(r),
	}
	for _, userID := range order {
		acc := grouped[userID]
		row := GlobalRow{
			EndUserID:             userID,
			Alias:                 aliasByID[userID],
			TotalSpend:            acc.totals.Spend.InexactFloat64(),
			TotalRequests:         acc.totals.Requests,
			TotalTokens:           acc.totals.TotalTokens,
			TotalPromptTokens:     acc.totals.PromptTokens,
			TotalCompletionTokens: acc.totals.CompletionTokens,
			SpendByModel:          make(map[string]ModelBreakdown, len(acc.models)),
		}
		for _, model := range acc.models {
			totals := acc.byModel[model]
			row.SpendByModel[model] = ModelBreakdown{
				TotalSpend:            totals.Spend.InexactFloat64(),
				TotalTokens:           totals.TotalTokens,
				TotalPromptTokens:     totals.PromptTokens,
				TotalCompletionTokens: totals.CompletionTokens,
				TotalRequests:         totals.Requests,
			}
		}
		report.SpendReport = append(report.SpendReport, row)
	}
	return report, nil
}

func addEntry(totals *store.SpendTotals, entry store.SpendLogEntry) {
	totals.Spend = totals.Spend.Add(entry.Spend)
	totals.Requests++
	totals.TotalTokens += entry.TotalTokens
	totals.PromptTokens += entry.PromptTokens
	totals.CompletionTokens += entry.CompletionTokens
}

func dateRangeInfo(r timeutil.DateRange) *DateRangeInfo {
	start, end := r.Labels()
	if start == "" && end == "" {
		return nil
	}
	return &DateRangeInfo{StartDate: start, EndDate: end}
}
