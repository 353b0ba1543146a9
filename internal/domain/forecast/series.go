package forecast

import (
	"sort"
	"time"

	"github.com/jhoicas/stockout-sync/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// BuildDailySeries convierte el historial crudo de un SKU en observaciones diarias.
//
// El stock de un día es la suma, por bodega, de la última observación de ese día (UTC).
// Las ventas del día i son max(0, stock(i-1) - stock(i)) repartidas entre los días del hueco
// si faltan días intermedios; una reposición cuenta como cero ventas.
// El primer día solo siembra la serie y no genera observación.
func BuildDailySeries(records []*entity.InventoryHistoryRecord) []Observation {
	type whLast struct {
		at  time.Time
		qty int
	}
	byDay := make(map[time.Time]map[string]whLast)
	for _, r := range records {
		if r == nil {
			continue
		}
		day := truncateDay(r.RecordedAt)
		whs, ok := byDay[day]
		if !ok {
			whs = make(map[string]whLast)
			byDay[day] = whs
		}
		if prev, seen := whs[r.WarehouseID]; !seen || !r.RecordedAt.Before(prev.at) {
			whs[r.WarehouseID] = whLast{at: r.RecordedAt, qty: r.Quantity}
		}
	}

	days := make([]time.Time, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	totals := make([]decimal.Decimal, len(days))
	for i, d := range days {
		sum := 0
		for _, w := range byDay[d] {
			sum += w.qty
		}
		totals[i] = decimal.NewFromInt(int64(sum))
	}

	if len(days) < 2 {
		return []Observation{}
	}
	out := make([]Observation, 0, len(days)-1)
	for i := 1; i < len(days); i++ {
		sold := totals[i-1].Sub(totals[i])
		if sold.IsNegative() {
			sold = decimal.Zero
		}
		gap := int64(days[i].Sub(days[i-1]) / (24 * time.Hour))
		if gap > 1 {
			sold = sold.Div(decimal.NewFromInt(gap))
		}
		out = append(out, Observation{Date: days[i], Stock: totals[i], DailySales: sold})
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
