// Package export reads and writes the pipeline's on-disk tables: one CSV
// per satellite channel, one CSV for the ground series, and the merged
// feature table as CSV and Parquet.
package export

import (
	"fmt"
	"time"
)

// dateLayout is the calendar-date format burned into the filename scheme.
const dateLayout = "2006-01-02"

// ChannelCSVName names the per-channel satellite series file, e.g.
// goes_C13_st_2024-01-01_et_2024-01-07_BRASILIA.csv.
func ChannelCSVName(channel string, start, end time.Time, station string) string {
	return fmt.Sprintf("goes_%s_st_%s_et_%s_%s.csv",
		channel, start.Format(dateLayout), end.Format(dateLayout), station)
}

// GroundCSVName names the ground series file, e.g.
// sonda_BSRN_st_2024-01-01_et_2024-01-07_BRASILIA.csv.
func GroundCSVName(dataType string, start, end time.Time, station string) string {
	return fmt.Sprintf("sonda_%s_st_%s_et_%s_%s.csv",
		dataType, start.Format(dateLayout), end.Format(dateLayout), station)
}

// FeatureBaseName names the merged feature table without extension, e.g.
// final_features_st_2024-01-01_et_2024-01-07_BRASILIA.
func FeatureBaseName(start, end time.Time, station string) string {
	return fmt.Sprintf("final_features_st_%s_et_%s_%s",
		start.Format(dateLayout), end.Format(dateLayout), station)
}
