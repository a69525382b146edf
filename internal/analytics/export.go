package analytics

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/radiusdt/recovery-analytics/internal/models"
)

// Export section names accepted by WriteCSV.
const (
	ExportCohorts   = "cohorts"
	ExportFunnel    = "funnel"
	ExportSources   = "utm_sources"
	ExportMediums   = "utm_mediums"
	ExportCampaigns = "utm_campaigns"
	ExportHours     = "hours"
	ExportWeekdays  = "weekdays"
	ExportValues    = "cart_value"
	ExportROI       = "roi_campaigns"
)

// ExportSections lists every section in output order.
var ExportSections = []string{
	ExportCohorts, ExportFunnel, ExportSources, ExportMediums, ExportCampaigns,
	ExportHours, ExportWeekdays, ExportValues, ExportROI,
}

// ValidExportSection reports whether name is a known export section.
func ValidExportSection(name string) bool {
	for _, s := range ExportSections {
		if s == name {
			return true
		}
	}
	return false
}

// WriteCSV flattens r into CSV. Each section starts with a single-cell
// "# name" row followed by its header row; sections are separated by an
// empty row. Sections absent from r are skipped. When only is non-empty,
// only those sections are written.
func WriteCSV(w io.Writer, r *models.Report, only ...string) error {
	cw := csv.NewWriter(w)

	want := func(name string) bool {
		if len(only) == 0 {
			return true
		}
		for _, o := range only {
			if o == name {
				return true
			}
		}
		return false
	}

	first := true
	emit := func(name string, header []string, rows [][]string) error {
		if !want(name) {
			return nil
		}
		if !first {
			if err := cw.Write([]string{""}); err != nil {
				return err
			}
		}
		first = false
		if err := cw.Write([]string{"# " + name}); err != nil {
			return err
		}
		if err := cw.Write(header); err != nil {
			return err
		}
		return cw.WriteAll(rows)
	}

	if r.Cohorts != nil {
		rows := make([][]string, 0, len(r.Cohorts))
		for _, c := range r.Cohorts {
			rows = append(rows, []string{c.Week, itoa(c.TotalCarts), itoa(c.RecoveredCarts), ftoa(c.TotalValue), ftoa(c.RecoveredValue), c.RecoveryRate, c.AvgCartValue})
		}
		if err := emit(ExportCohorts, []string{"week", "total_carts", "recovered_carts", "total_value", "recovered_value", "recovery_rate", "avg_cart_value"}, rows); err != nil {
			return fmt.Errorf("failed to write cohorts: %w", err)
		}
	}

	if f := r.Funnel; f != nil {
		rows := [][]string{{itoa(f.Sent), itoa(f.Opened), itoa(f.Clicked), itoa(f.Converted), f.OpenRate, f.ClickRate, f.ConversionRate, f.ClickToConversion}}
		if err := emit(ExportFunnel, []string{"sent", "opened", "clicked", "converted", "open_rate", "click_rate", "conversion_rate", "click_to_conversion"}, rows); err != nil {
			return fmt.Errorf("failed to write funnel: %w", err)
		}
	}

	if r.UTM != nil {
		for _, g := range []struct {
			name    string
			buckets []models.UTMBucket
		}{
			{ExportSources, r.UTM.Sources},
			{ExportMediums, r.UTM.Mediums},
			{ExportCampaigns, r.UTM.Campaigns},
		} {
			rows := make([][]string, 0, len(g.buckets))
			for _, b := range g.buckets {
				rows = append(rows, []string{b.Name, itoa(b.Carts), itoa(b.Recovered), ftoa(b.TotalValue), ftoa(b.RecoveredValue), b.RecoveryRate})
			}
			if err := emit(g.name, []string{"name", "carts", "recovered", "total_value", "recovered_value", "recovery_rate"}, rows); err != nil {
				return fmt.Errorf("failed to write %s: %w", g.name, err)
			}
		}
	}

	if t := r.TimeOfDay; t != nil {
		rows := make([][]string, 0, len(t.ByHour))
		for _, h := range t.ByHour {
			rows = append(rows, []string{itoa(h.Hour), itoa(h.Carts), itoa(h.Recovered), h.RecoveryRate})
		}
		if err := emit(ExportHours, []string{"hour", "carts", "recovered", "recovery_rate"}, rows); err != nil {
			return fmt.Errorf("failed to write hours: %w", err)
		}

		rows = make([][]string, 0, len(t.ByDayOfWeek))
		for _, d := range t.ByDayOfWeek {
			rows = append(rows, []string{itoa(d.Day), d.Label, itoa(d.Carts), itoa(d.Recovered), d.RecoveryRate})
		}
		if err := emit(ExportWeekdays, []string{"day", "label", "carts", "recovered", "recovery_rate"}, rows); err != nil {
			return fmt.Errorf("failed to write weekdays: %w", err)
		}
	}

	if r.CartValue != nil {
		rows := make([][]string, 0, len(r.CartValue))
		for _, b := range r.CartValue {
			hi := ""
			if b.Max != nil {
				hi = ftoa(*b.Max)
			}
			rows = append(rows, []string{b.Range, ftoa(b.Min), hi, itoa(b.Carts), itoa(b.Recovered), ftoa(b.TotalValue), ftoa(b.RecoveredValue), b.RecoveryRate})
		}
		if err := emit(ExportValues, []string{"range", "min", "max", "carts", "recovered", "total_value", "recovered_value", "recovery_rate"}, rows); err != nil {
			return fmt.Errorf("failed to write cart value: %w", err)
		}
	}

	if r.ROI != nil {
		rows := make([][]string, 0, len(r.ROI.Campaigns))
		for _, c := range r.ROI.Campaigns {
			rows = append(rows, []string{
				c.CampaignID, c.CampaignName, c.UTMCampaign, ftoa(c.AdSpend),
				itoa(c.TotalCarts), itoa(c.RecoveredCarts), ftoa(c.RecoveredValue),
				ftoa(c.ROIPercentage), ftoa(c.ROAS), ftoa(c.CostPerCart), ftoa(c.RecoveryRate),
			})
		}
		if err := emit(ExportROI, []string{"campaign_id", "campaign_name", "utm_campaign", "ad_spend", "total_carts", "recovered_carts", "recovered_value", "roi_percentage", "roas", "cost_per_cart", "recovery_rate"}, rows); err != nil {
			return fmt.Errorf("failed to write roi: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func itoa(n int) string { return strconv.Itoa(n) }

func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', 2, 64) }
