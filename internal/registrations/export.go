package registrations

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/shepherd-hub/backend/internal/models"
)

// Export writes the occurrence's registrations as CSV, one column per form field after the fixed ones.
func (s *Service) Export(ctx context.Context, tenantID, occurrenceID uuid.UUID, w io.Writer) error {
	occ, err := s.occurrences.Get(ctx, tenantID, occurrenceID)
	if err != nil {
		return err
	}
	sc, err := s.schedules.Get(ctx, tenantID, occ.ScheduleID)
	if err != nil {
		return err
	}
	list, err := s.store.List(ctx, tenantID, occurrenceID, nil)
	if err != nil {
		return err
	}
	return writeCSV(w, sc.FormSchema, list)
}

func writeCSV(w io.Writer, fields []models.FormField, list []models.Registration) error {
	cw := csv.NewWriter(w)
	header := []string{"Name", "Email", "Phone", "Type", "Party Size", "Status", "Waitlist Position", "Registered At"}
	for _, f := range fields {
		header = append(header, f.Label)
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range list {
		kind := "guest"
		if r.MemberID != nil {
			kind = "member"
		}
		pos := ""
		if r.WaitlistPosition != nil {
			pos = strconv.Itoa(*r.WaitlistPosition)
		}
		row := []string{
			r.DisplayName(),
			r.ContactEmail(),
			r.GuestPhone,
			kind,
			strconv.Itoa(r.PartySize),
			string(r.Status),
			pos,
			r.CreatedAt.UTC().Format(time.RFC3339),
		}
		answers := map[string]interface{}{}
		if len(r.FormResponses) > 0 {
			_ = json.Unmarshal(r.FormResponses, &answers)
		}
		for _, f := range fields {
			row = append(row, answerString(answers[f.ID]))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func answerString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "yes"
		}
		return "no"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
