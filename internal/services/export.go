// export.go
//
// A parking management data service for plate-recognition car parks
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of parksense-api.
// parksense-api is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// parksense-api is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with parksense-api.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/parksense/parksense-api/internal/models"
)

// ExportFileName is the name history exports are downloaded as
const ExportFileName = "history_entries.csv"

// HistoryColumns is the header row and column order of history exports
var HistoryColumns = []string{
	"id",
	"plate",
	"entry_time",
	"exit_time",
	"parking_time",
	"cost",
	"paid",
	"car_id",
	"image_id",
	"exit_image_id",
	"rate_id",
	"number_free_spaces",
}

// WriteHistoryCSV writes the header and one record per history row to w
func WriteHistoryCSV(w io.Writer, rows []models.History) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(HistoryColumns); err != nil {
		return err
	}
	for i := range rows {
		if err := cw.Write(historyRecord(&rows[i])); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportHistoryCSV writes rows to a CSV file at path, replacing any existing file
func ExportHistoryCSV(rows []models.History, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}

	if err := WriteHistoryCSV(f, rows); err != nil {
		f.Close()
		return fmt.Errorf("failed to write export file: %w", err)
	}
	return f.Close()
}

// ExportHistoryToDir writes rows to a uniquely named CSV file under dir and
// returns its path
func ExportHistoryToDir(rows []models.History, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	path := filepath.Join(dir, uuid.New().String()+".csv")
	if err := ExportHistoryCSV(rows, path); err != nil {
		return "", err
	}
	return path, nil
}

func historyRecord(h *models.History) []string {
	return []string{
		strconv.FormatUint(uint64(h.ID), 10),
		h.Plate,
		formatTime(h.EntryTime),
		formatTime(h.ExitTime),
		formatFloat(h.ParkingTime),
		h.Cost.String(),
		strconv.FormatBool(h.Paid),
		formatID(h.CarID),
		h.ImageID,
		formatString(h.ExitImageID),
		formatID(h.RateID),
		formatInt(h.NumberFreeSpaces),
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', 2, 64)
}

func formatID(id *uint) string {
	if id == nil {
		return ""
	}
	return strconv.FormatUint(uint64(*id), 10)
}

func formatString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}
