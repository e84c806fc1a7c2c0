// Package notes renders the structured section appended to a lead's
// free-text notes and splits it back off again.
package notes

import (
	"strconv"
	"strings"

	"leads-backend/internal/models"
)

const Marker = "--- DETAILED LEAD INFORMATION ---"

type field struct {
	label string
	value string
}

// Details renders survey and energy answers as "Label: Value" lines in a
// fixed order. Blank answers are skipped.
func Details(s models.Survey, e models.EnergyFields) string {
	fields := []field{
		{"Preferred Contact Time", s.PreferredContactTime},
		{"Property Ownership", s.PropertyOwnership},
		{"Property Type", s.PropertyType},
		{"Number of Bedrooms", s.NumberOfBedrooms},
		{"Roof Type", s.RoofType},
		{"Roof Material", s.RoofMaterial},
		{"Average Monthly Electricity Bill", s.AverageMonthlyElectricityBill},
		{"Current Energy Supplier", s.CurrentEnergySupplier},
		{"Electric Heating Appliances", s.ElectricHeatingAppliances},
		{"Energy Details", s.EnergyDetails},
		{"Timeframe", s.Timeframe},
		{"Moving Properties Next Five Years", s.MovingPropertiesNextFiveYears},
		{"Timeframe Details", s.TimeframeDetails},
		{"Energy Bill Amount", formatAmount(e.EnergyBillAmount)},
		{"Has EV Charger", yesNo(e.HasEVCharger)},
		{"Day/Night Rate", e.DayNightRate},
		{"Has Previous Quotes", yesNo(e.HasPreviousQuotes)},
		{"Previous Quotes Details", e.PreviousQuotesDetails},
	}

	var b strings.Builder
	for _, f := range fields {
		v := strings.TrimSpace(f.value)
		if v == "" {
			continue
		}
		b.WriteString(f.label)
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Compose joins free text and a details block
func Compose(free, details string) string {
	free = strings.TrimSpace(free)
	details = strings.TrimSpace(details)
	switch {
	case details == "":
		return free
	case free == "":
		return Marker + "\n" + details
	default:
		return free + "\n\n" + Marker + "\n" + details
	}
}

// Split separates the free text from a previously composed details block
func Split(notes string) (free, details string) {
	idx := strings.Index(notes, Marker)
	if idx < 0 {
		return strings.TrimSpace(notes), ""
	}
	return strings.TrimSpace(notes[:idx]), strings.TrimSpace(notes[idx+len(Marker):])
}

// AppendFree adds a line of free text unless it is already recorded, so
// replaying the same intake payload leaves notes untouched.
func AppendFree(free, line string) string {
	line = strings.TrimSpace(line)
	if line == "" {
		return free
	}
	for _, existing := range strings.Split(free, "\n") {
		if strings.TrimSpace(existing) == line {
			return free
		}
	}
	if free == "" {
		return line
	}
	return free + "\n" + line
}

// Rebuild recomputes a lead's notes from its free text and typed survey
func Rebuild(l *models.Lead, free string) string {
	return Compose(free, Details(l.Survey, l.Energy))
}

func yesNo(b *bool) string {
	if b == nil {
		return ""
	}
	if *b {
		return "Yes"
	}
	return "No"
}

func formatAmount(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', 2, 64)
}
