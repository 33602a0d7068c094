package entity

// ExportRow is the flat record handed to accounting, one per approved item.
type ExportRow struct {
	Station   string
	WeekLabel string
	PlateVIN  string
	Mileage   string
	WorkName  string
	Quantity  float64
	Price     float64
	Total     float64
}
