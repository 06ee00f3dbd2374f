package attendance

import (
	"context"
	"encoding/csv"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/shepherd-hub/backend/internal/models"
)

// Export writes the occurrence's check-ins as CSV.
func (s *Service) Export(ctx context.Context, tenantID, occurrenceID uuid.UUID, w io.Writer) error {
	list, err := s.List(ctx, tenantID, occurrenceID)
	if err != nil {
		return err
	}
	return writeCSV(w, list)
}

func writeCSV(w io.Writer, list []models.AttendanceRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Name", "Type", "Method", "Checked In At", "Notes"}); err != nil {
		return err
	}
	for _, r := range list {
		name, kind := r.GuestName, "guest"
		if r.MemberID != nil {
			name, kind = r.MemberName, "member"
		}
		row := []string{name, kind, string(r.CheckinMethod), r.CheckedInAt.UTC().Format(time.RFC3339), r.Notes}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
