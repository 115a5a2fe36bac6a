package checkout

import (
	"fmt"
	"strings"

	"github.com/iurnickita/goldpos/internal/model"
)

// Receipt - текст чека для принтера. Только замороженные значения продажи.
func Receipt(sale model.Sale) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SALE %s\n", sale.ID)
	fmt.Fprintf(&b, "%s\n", sale.Data.TransactedAt.Format("2006-01-02 15:04"))
	if sale.Data.CustomerName != "" {
		fmt.Fprintf(&b, "Customer: %s\n", sale.Data.CustomerName)
	}
	b.WriteString("--------------------------------\n")
	for _, line := range sale.Lines {
		fmt.Fprintf(&b, "%d. %s\n", line.Position, line.Barcode)
		fmt.Fprintf(&b, "   %sg @ %s  %s\n",
			line.WeightFrozen.StringFixed(model.WeightPlaces),
			line.AppliedRate.StringFixed(model.MoneyPlaces),
			line.PriceFrozen.StringFixed(model.MoneyPlaces))
	}
	b.WriteString("--------------------------------\n")
	fmt.Fprintf(&b, "Gross:    %s\n", sale.Data.GrossTotal.StringFixed(model.MoneyPlaces))
	if !sale.Data.TradeInTotal.IsZero() {
		fmt.Fprintf(&b, "Old gold: -%s\n", sale.Data.TradeInTotal.StringFixed(model.MoneyPlaces))
	}
	fmt.Fprintf(&b, "Net:      %s\n", sale.Data.NetAmount.StringFixed(model.MoneyPlaces))
	return b.String()
}
