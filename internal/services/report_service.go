package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"leads-backend/internal/apperr"
	"leads-backend/internal/models"
	"leads-backend/internal/notes"
	"leads-backend/internal/timeutil"

	"github.com/jung-kurt/gofpdf/v2"
)

// ReportService renders leads for people outside the app: the salesrep's
// appointment sheet and the admin CSV export.
type ReportService struct {
	Leads *LeadService
}

func NewReportService(leads *LeadService) *ReportService {
	return &ReportService{Leads: leads}
}

// AppointmentSheet returns a one-page PDF for the assigned salesrep or an
// admin, plus a filename for the download.
func (s *ReportService) AppointmentSheet(ctx context.Context, actor models.Actor, id int) ([]byte, string, error) {
	l, err := s.Leads.Get(ctx, actor, id)
	if err != nil {
		return nil, "", err
	}
	isRep := l.FieldSalesRepID != nil && *l.FieldSalesRepID == actor.ID
	if actor.Role != models.RoleAdmin && !isRep {
		return nil, "", apperr.Forbidden("only the assigned salesrep can print this sheet")
	}
	if l.AppointmentDate == nil {
		return nil, "", apperr.Validation("appointment_date", "lead has no appointment")
	}

	data, err := GenerateAppointmentPDF(l)
	if err != nil {
		return nil, "", apperr.Internal("render appointment sheet", err)
	}
	return data, fmt.Sprintf("appointment-%s.pdf", l.LeadNumber), nil
}

// GenerateAppointmentPDF lays out customer, address, appointment time in
// London, survey answers and the free-text notes.
func GenerateAppointmentPDF(l *models.Lead) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	// Header
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(190, 10, "Solar Survey Appointment", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(190, 6, fmt.Sprintf("Lead %s  -  Generated: %s", l.LeadNumber,
		timeutil.Now().Format("02-Jan-2006 03:04 PM")), "", 1, "C", false, 0, "")
	pdf.Ln(5)

	// Appointment box
	pdf.SetFillColor(200, 230, 255)
	pdf.SetFont("Arial", "B", 14)
	when := timeutil.FormatLondon(*l.AppointmentDate, timeutil.DisplayLayout)
	pdf.CellFormat(190, 10, tr("Appointment: "+when), "1", 1, "C", true, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(95, 7, tr("Sales rep: "+orDash(l.SalesRepName)), "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, tr("Agent: "+orDash(l.AgentName)), "RB", 1, "L", false, 0, "")
	pdf.Ln(5)

	// Customer Info Box
	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Customer", "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(95, 7, tr("Name: "+l.DisplayName()), "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, tr("Phone: "+l.Phone), "RB", 1, "L", false, 0, "")
	pdf.CellFormat(95, 7, tr("Email: "+orDash(l.Email)), "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, tr("Postcode: "+orDash(l.PostalCode)), "RB", 1, "L", false, 0, "")
	pdf.MultiCell(190, 7, tr("Address: "+orDash(strings.Join(nonEmpty(l.Address(), l.City), ", "))), "1", "L", false)
	pdf.Ln(5)

	// Survey table
	rows := surveyRows(l)
	if len(rows) > 0 {
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(190, 8, "Property survey", "1", 1, "L", true, 0, "")
		pdf.SetFont("Arial", "", 10)
		for _, r := range rows {
			pdf.CellFormat(70, 6, tr(r[0]), "1", 0, "L", false, 0, "")
			pdf.CellFormat(120, 6, tr(truncate(r[1], 70)), "1", 1, "L", false, 0, "")
		}
		pdf.Ln(5)
	}

	// Notes, details block excluded since the survey table shows it
	if free, _ := notes.Split(l.Notes); strings.TrimSpace(free) != "" {
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(190, 8, "Notes", "1", 1, "L", true, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(190, 5, tr(free), "1", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func surveyRows(l *models.Lead) [][2]string {
	sv, e := l.Survey, l.Energy
	candidates := [][2]string{
		{"Property type", sv.PropertyType},
		{"Ownership", sv.PropertyOwnership},
		{"Bedrooms", sv.NumberOfBedrooms},
		{"Roof type", sv.RoofType},
		{"Roof material", sv.RoofMaterial},
		{"Monthly electricity bill", sv.AverageMonthlyElectricityBill},
		{"Energy supplier", sv.CurrentEnergySupplier},
		{"Electric heating", sv.ElectricHeatingAppliances},
		{"Timeframe", sv.Timeframe},
		{"Moving in next 5 years", sv.MovingPropertiesNextFiveYears},
		{"Preferred contact time", sv.PreferredContactTime},
		{"Day/night rate", e.DayNightRate},
		{"Previous quotes", e.PreviousQuotesDetails},
	}
	if e.EnergyBillAmount != nil {
		candidates = append(candidates, [2]string{"Energy bill amount", fmt.Sprintf("%.2f", *e.EnergyBillAmount)})
	}
	if e.HasEVCharger != nil {
		candidates = append(candidates, [2]string{"EV charger", yesNo(*e.HasEVCharger)})
	}
	var rows [][2]string
	for _, c := range candidates {
		if strings.TrimSpace(c[1]) != "" {
			rows = append(rows, c)
		}
	}
	return rows
}

// leadCSVHeader is the column order of ExportCSV
var leadCSVHeader = []string{
	"lead_number", "status", "full_name", "phone", "email", "address", "city", "postal_code",
	"agent", "sales_rep", "appointment_date", "sale_amount", "source", "created_at",
}

// ExportCSV writes every lead matching q that the actor can see
func (s *ReportService) ExportCSV(ctx context.Context, actor models.Actor, q models.LeadQuery) ([]byte, error) {
	if actor.Role != models.RoleAdmin {
		return nil, apperr.Forbidden("only admins can export leads")
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(leadCSVHeader); err != nil {
		return nil, err
	}

	q.Limit = maxListLimit
	for q.Offset = 0; ; q.Offset += maxListLimit {
		leads, _, err := s.Leads.List(ctx, actor, q)
		if err != nil {
			return nil, err
		}
		for _, l := range leads {
			appt, sale := "", ""
			if l.AppointmentDate != nil {
				appt = timeutil.FormatLondon(*l.AppointmentDate, timeutil.DisplayLayout)
			}
			if l.SaleAmount != nil {
				sale = strconv.FormatFloat(*l.SaleAmount, 'f', 2, 64)
			}
			err := w.Write([]string{
				l.LeadNumber, l.Status, l.DisplayName(), l.Phone, l.Email, l.Address(), l.City, l.PostalCode,
				l.AgentName, l.SalesRepName, appt, sale, l.Source,
				timeutil.FormatLondon(l.CreatedAt, timeutil.DisplayLayout),
			})
			if err != nil {
				return nil, err
			}
		}
		if len(leads) < maxListLimit {
			break
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func nonEmpty(parts ...string) []string {
	var out []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
