package sonda

import (
	"archive/zip"
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JvCastelo/masters-project/internal/domain"
)

// droppedColumns are the .dat columns stripped at decode: calendar fields
// redundant with the timestamp, and measurements this pipeline never uses.
var droppedColumns = map[string]bool{
	"acronym": true,
	"year":    true,
	"day":     true,
	"min":     true,
	"dir_avg": true,
	"dif_avg": true,
	"lw_avg":  true,
	"par_avg": true,
	"lux_avg": true,
}

// ReadArchive decodes a SONDA ZIP into raw columns and records. The .dat
// inside has a title line, a header row, then a units row before the data;
// title and units carry no data and are discarded. Values stay strings:
// interpreting them is the normalizer's job.
func ReadArchive(zipPath string) (domain.RawArchive, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return domain.RawArchive{}, fmt.Errorf("open archive %s: %w", zipPath, err)
	}
	defer zr.Close()

	var dat *zip.File
	for _, f := range zr.File {
		if strings.HasSuffix(strings.ToLower(f.Name), ".dat") {
			dat = f
			break
		}
	}
	if dat == nil {
		return domain.RawArchive{}, fmt.Errorf("no .dat file in %s", zipPath)
	}

	rc, err := dat.Open()
	if err != nil {
		return domain.RawArchive{}, fmt.Errorf("open %s in %s: %w", dat.Name, zipPath, err)
	}
	defer rc.Close()

	archive, err := decodeDat(rc)
	if err != nil {
		return domain.RawArchive{}, fmt.Errorf("decode %s in %s: %w", dat.Name, zipPath, err)
	}
	return archive, nil
}

func decodeDat(r io.Reader) (domain.RawArchive, error) {
	buf := bufio.NewReader(r)
	if _, err := buf.ReadString('\n'); err != nil {
		return domain.RawArchive{}, fmt.Errorf("read title line: %w", err)
	}

	cr := csv.NewReader(buf)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return domain.RawArchive{}, fmt.Errorf("read header: %w", err)
	}

	tsIdx := -1
	type keptColumn struct {
		name string
		idx  int
	}
	var kept []keptColumn
	for i, name := range header {
		name = strings.TrimSpace(name)
		switch {
		case name == "timestamp":
			tsIdx = i
		case name != "" && !droppedColumns[name]:
			kept = append(kept, keptColumn{name: name, idx: i})
		}
	}
	if tsIdx < 0 {
		return domain.RawArchive{}, errors.New("archive has no timestamp column")
	}

	columns := make([]string, len(kept))
	for i, kc := range kept {
		columns[i] = kc.name
	}

	var records []domain.RawRecord
	unitsRow := true
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.RawArchive{}, fmt.Errorf("read record %d: %w", len(records), err)
		}
		if unitsRow {
			unitsRow = false
			continue
		}

		fields := make(map[string]string, len(kept))
		for _, kc := range kept {
			if kc.idx < len(row) {
				fields[kc.name] = row[kc.idx]
			}
		}
		timestamp := ""
		if tsIdx < len(row) {
			timestamp = row[tsIdx]
		}
		records = append(records, domain.RawRecord{Timestamp: timestamp, Fields: fields})
	}

	return domain.RawArchive{Columns: columns, Records: records}, nil
}
