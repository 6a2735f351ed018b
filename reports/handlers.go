package reports

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/insights_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	return page, pageSize
}

func dateParam(c *gin.Context, name string) (*time.Time, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	t, err := utils.ParseDateOnly(raw, utils.DefaultTimezone)
	if err != nil {
		return nil, false
	}
	return &t, true
}

func decimalParam(c *gin.Context, name string) (*decimal.Decimal, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, false
	}
	return &d, true
}

func asOfParam(c *gin.Context) (time.Time, bool) {
	raw := strings.TrimSpace(c.Query("asOf"))
	if raw == "" {
		t, err := utils.ConvertToDate(time.Now(), utils.DefaultTimezone)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	t, err := utils.ParseDateOnly(raw, utils.DefaultTimezone)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func bankReserveFilters(c *gin.Context) (BankReserveFilters, bool) {
	from, okFrom := dateParam(c, "fromDate")
	to, okTo := dateParam(c, "toDate")
	minTotal, okMin := decimalParam(c, "minTotal")
	maxTotal, okMax := decimalParam(c, "maxTotal")
	if !okFrom || !okTo || !okMin || !okMax {
		return BankReserveFilters{}, false
	}
	return BankReserveFilters{
		BusinessEntityId: c.Query("entityId"),
		FromDate:         from,
		ToDate:           to,
		MinTotal:         minTotal,
		MaxTotal:         maxTotal,
	}, true
}

func BankReserveDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filters, ok := bankReserveFilters(c)
		if !ok {
			badRequest(c, "invalid filter value")
			return
		}
		page, pageSize := pageParams(c)
		resp, err := GetBankReserveDetail(c.Request.Context(), filters, page, pageSize)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func BankReserveListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filters, ok := bankReserveFilters(c)
		if !ok {
			badRequest(c, "invalid filter value")
			return
		}
		page, pageSize := pageParams(c)
		resp, err := ListBankReserves(c.Request.Context(), filters, page, pageSize)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func BankReserveSummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		asOf, ok := asOfParam(c)
		if !ok {
			badRequest(c, "invalid asOf date")
			return
		}
		resp, err := GetBankReserveSummary(c.Request.Context(), asOf, c.Query("entityId"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func BankReserveExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filters, ok := bankReserveFilters(c)
		if !ok {
			badRequest(c, "invalid filter value")
			return
		}
		f, err := ExportBankReserveDetailExcel(c.Request.Context(), filters)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		writeWorkbook(c, f, "bank-reserves.xlsx")
	}
}

func expensePayoutFilters(c *gin.Context) (ExpensePayoutFilters, bool) {
	from, okFrom := dateParam(c, "fromDate")
	to, okTo := dateParam(c, "toDate")
	minAmount, okMin := decimalParam(c, "minAmount")
	maxAmount, okMax := decimalParam(c, "maxAmount")
	if !okFrom || !okTo || !okMin || !okMax {
		return ExpensePayoutFilters{}, false
	}
	return ExpensePayoutFilters{
		BusinessEntityId: c.Query("entityId"),
		FromDate:         from,
		ToDate:           to,
		MinAmount:        minAmount,
		MaxAmount:        maxAmount,
	}, true
}

func ExpensePayoutDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filters, ok := expensePayoutFilters(c)
		if !ok {
			badRequest(c, "invalid filter value")
			return
		}
		page, pageSize := pageParams(c)
		resp, err := GetExpensePayoutDetail(c.Request.Context(), filters, page, pageSize)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func ExpensePayoutListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filters, ok := expensePayoutFilters(c)
		if !ok {
			badRequest(c, "invalid filter value")
			return
		}
		page, pageSize := pageParams(c)
		resp, err := ListExpensePayouts(c.Request.Context(), filters, page, pageSize)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func ExpensePayoutSummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		asOf, ok := asOfParam(c)
		if !ok {
			badRequest(c, "invalid asOf date")
			return
		}
		resp, err := GetExpensePayoutSummary(c.Request.Context(), asOf, c.Query("entityId"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func salesCollectionFilters(c *gin.Context) (SalesCollectionFilters, bool) {
	from, okFrom := dateParam(c, "fromDate")
	to, okTo := dateParam(c, "toDate")
	minCollected, okMin := decimalParam(c, "minCollected")
	maxCollected, okMax := decimalParam(c, "maxCollected")
	if !okFrom || !okTo || !okMin || !okMax {
		return SalesCollectionFilters{}, false
	}
	return SalesCollectionFilters{
		BusinessEntityId: c.Query("entityId"),
		ProjectId:        c.Query("projectId"),
		FromDate:         from,
		ToDate:           to,
		MinCollected:     minCollected,
		MaxCollected:     maxCollected,
	}, true
}

func SalesCollectionDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filters, ok := salesCollectionFilters(c)
		if !ok {
			badRequest(c, "invalid filter value")
			return
		}
		page, pageSize := pageParams(c)
		resp, err := GetSalesCollectionDetail(c.Request.Context(), filters, page, pageSize)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func SalesCollectionListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filters, ok := salesCollectionFilters(c)
		if !ok {
			badRequest(c, "invalid filter value")
			return
		}
		page, pageSize := pageParams(c)
		resp, err := ListSalesCollections(c.Request.Context(), filters, page, pageSize)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func SalesCollectionSummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		asOf, ok := asOfParam(c)
		if !ok {
			badRequest(c, "invalid asOf date")
			return
		}
		resp, err := GetSalesCollectionSummary(c.Request.Context(), asOf, c.Query("entityId"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func SalesCollectionExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filters, ok := salesCollectionFilters(c)
		if !ok {
			badRequest(c, "invalid filter value")
			return
		}
		f, err := ExportSalesCollectionDetailExcel(c.Request.Context(), filters)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		writeWorkbook(c, f, "sales-collections.xlsx")
	}
}

func revenueReservationFilters(c *gin.Context) (RevenueReservationFilters, bool) {
	from, okFrom := dateParam(c, "fromDate")
	to, okTo := dateParam(c, "toDate")
	minAmount, okMin := decimalParam(c, "minAmount")
	maxAmount, okMax := decimalParam(c, "maxAmount")
	if !okFrom || !okTo || !okMin || !okMax {
		return RevenueReservationFilters{}, false
	}
	return RevenueReservationFilters{
		ProjectId:     c.Query("projectId"),
		SalesTeamName: c.Query("salesTeam"),
		FromDate:      from,
		ToDate:        to,
		MinAmount:     minAmount,
		MaxAmount:     maxAmount,
	}, true
}

func RevenueReservationDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filters, ok := revenueReservationFilters(c)
		if !ok {
			badRequest(c, "invalid filter value")
			return
		}
		page, pageSize := pageParams(c)
		resp, err := GetRevenueReservationDetail(c.Request.Context(), filters, page, pageSize)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func RevenueReservationListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filters, ok := revenueReservationFilters(c)
		if !ok {
			badRequest(c, "invalid filter value")
			return
		}
		page, pageSize := pageParams(c)
		resp, err := ListRevenueReservations(c.Request.Context(), filters, page, pageSize)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func RevenueReservationSummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		asOf, ok := asOfParam(c)
		if !ok {
			badRequest(c, "invalid asOf date")
			return
		}
		resp, err := GetRevenueReservationSummary(c.Request.Context(), asOf, c.Query("projectId"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func procurementOrderFilters(c *gin.Context) (ProcurementOrderFilters, bool) {
	from, okFrom := dateParam(c, "fromDate")
	to, okTo := dateParam(c, "toDate")
	minAmount, okMin := decimalParam(c, "minAmount")
	maxAmount, okMax := decimalParam(c, "maxAmount")
	if !okFrom || !okTo || !okMin || !okMax {
		return ProcurementOrderFilters{}, false
	}
	return ProcurementOrderFilters{
		BusinessEntityId: c.Query("entityId"),
		ProjectId:        c.Query("projectId"),
		SupplierName:     c.Query("supplier"),
		Status:           c.Query("status"),
		FromDate:         from,
		ToDate:           to,
		MinAmount:        minAmount,
		MaxAmount:        maxAmount,
	}, true
}

func ProcurementOrderDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filters, ok := procurementOrderFilters(c)
		if !ok {
			badRequest(c, "invalid filter value")
			return
		}
		page, pageSize := pageParams(c)
		resp, err := GetProcurementOrderDetail(c.Request.Context(), filters, page, pageSize)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func ProcurementOrderListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filters, ok := procurementOrderFilters(c)
		if !ok {
			badRequest(c, "invalid filter value")
			return
		}
		page, pageSize := pageParams(c)
		resp, err := ListProcurementOrders(c.Request.Context(), filters, page, pageSize)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func ProcurementOrderSummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		asOf, ok := asOfParam(c)
		if !ok {
			badRequest(c, "invalid asOf date")
			return
		}
		resp, err := GetProcurementOrderSummary(c.Request.Context(), asOf, c.Query("entityId"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func socialInsightFilters(c *gin.Context) (SocialInsightFilters, bool) {
	from, okFrom := dateParam(c, "fromDate")
	to, okTo := dateParam(c, "toDate")
	if !okFrom || !okTo {
		return SocialInsightFilters{}, false
	}
	return SocialInsightFilters{
		BusinessEntityId: c.Query("entityId"),
		Platform:         c.Query("platform"),
		FromDate:         from,
		ToDate:           to,
	}, true
}

func SocialInsightDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filters, ok := socialInsightFilters(c)
		if !ok {
			badRequest(c, "invalid filter value")
			return
		}
		page, pageSize := pageParams(c)
		resp, err := GetSocialInsightDetail(c.Request.Context(), filters, page, pageSize)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func SocialInsightListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filters, ok := socialInsightFilters(c)
		if !ok {
			badRequest(c, "invalid filter value")
			return
		}
		page, pageSize := pageParams(c)
		resp, err := ListSocialInsights(c.Request.Context(), filters, page, pageSize)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func SocialInsightSummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		asOf, ok := asOfParam(c)
		if !ok {
			badRequest(c, "invalid asOf date")
			return
		}
		resp, err := GetSocialInsightSummary(c.Request.Context(), asOf, c.Query("entityId"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func writeWorkbook(c *gin.Context, f *excelize.File, filename string) {
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename="+filename)
	if err := f.Write(c.Writer); err != nil {
		c.Status(http.StatusInternalServerError)
	}
}
