package orderControllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tealeg/xlsx"
	"gorm.io/gorm"

	"github.com/ainan-ahmed/ecommforall-backend/models"
)

// ExportOrdersToExcel downloads all orders with their items as an xlsx
// workbook for reporting tooling.
func ExportOrdersToExcel(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var orders []models.Order
		if err := db.Preload("Items").Order("created_at DESC").Find(&orders).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
			return
		}

		file := xlsx.NewFile()
		sheet, err := file.AddSheet("Orders")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel sheet"})
			return
		}

		headers := []string{
			"OrderID", "UserID", "Status", "PaymentStatus", "TotalAmount",
			"ProductName", "SKU", "Price", "Quantity", "Subtotal",
			"CreatedAt", "CancelledAt", "CancellationReason",
		}
		headerRow := sheet.AddRow()
		for _, h := range headers {
			headerRow.AddCell().SetValue(h)
		}

		// One row per order item, order columns repeated.
		for _, o := range orders {
			cancelledAt := ""
			if o.CancelledAt != nil {
				cancelledAt = o.CancelledAt.Format("2006-01-02 15:04:05")
			}
			for _, item := range o.Items {
				row := sheet.AddRow()
				row.AddCell().SetValue(o.ID.String())
				row.AddCell().SetValue(o.UserID.String())
				row.AddCell().SetValue(string(o.Status))
				row.AddCell().SetValue(string(o.PaymentStatus))
				row.AddCell().SetValue(o.TotalAmount.String())
				row.AddCell().SetValue(item.ProductName)
				row.AddCell().SetValue(item.SKU)
				row.AddCell().SetValue(item.Price.String())
				row.AddCell().SetValue(item.Quantity)
				row.AddCell().SetValue(item.Subtotal.String())
				row.AddCell().SetValue(o.CreatedAt.Format("2006-01-02 15:04:05"))
				row.AddCell().SetValue(cancelledAt)
				row.AddCell().SetValue(o.CancellationReason)
			}
		}

		c.Header("Content-Disposition", "attachment; filename=orders.xlsx")
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Transfer-Encoding", "binary")
		c.Header("Expires", "0")

		if err := file.Write(c.Writer); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to write Excel file"})
			return
		}
	}
}
